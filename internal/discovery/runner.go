package discovery

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/ambience/internal/groups"
	"github.com/dokzlo13/ambience/internal/registry"
)

// Result is the outcome of one scan.
type Result struct {
	Generation uint64
	Lights     []registry.Light
	Err        error
	Took       time.Duration
}

// Entries returns the found lights as group document entries, for refreshing
// cached labels and addresses.
func (r Result) Entries() []groups.LightEntry {
	out := make([]groups.LightEntry, 0, len(r.Lights))
	for _, l := range r.Lights {
		out = append(out, l.Entry())
	}
	return out
}

// ScanFunc performs a single scan.
type ScanFunc func(ctx context.Context) ([]registry.Light, error)

// Runner runs scans in the background, one at a time. Starting a scan
// supersedes the one in flight: the old scan is cancelled, the new one only
// begins after the old one has returned, and only the latest generation is
// ever delivered.
type Runner struct {
	scan ScanFunc

	mu       sync.Mutex
	gen      uint64
	cancel   context.CancelFunc
	prevDone chan struct{}
	running  bool
	observer func(Result)

	sendMu  sync.Mutex
	results chan Result
}

// NewRunner creates a runner around scan.
func NewRunner(scan ScanFunc) *Runner {
	return &Runner{
		scan:    scan,
		results: make(chan Result, 1),
	}
}

// SetObserver registers a callback invoked with every delivered result,
// before it is made available on Results.
func (r *Runner) SetObserver(fn func(Result)) {
	r.mu.Lock()
	r.observer = fn
	r.mu.Unlock()
}

// Results returns the channel completed scans are delivered on. Each
// generation is delivered at most once.
func (r *Runner) Results() <-chan Result {
	return r.results
}

// Running reports whether a scan is in flight.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Generation returns the generation of the most recently started scan.
func (r *Runner) Generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gen
}

// Start begins a new scan and returns its generation.
func (r *Runner) Start(ctx context.Context) uint64 {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
		log.Debug().Uint64("generation", r.gen).Msg("Superseding running scan")
	}
	r.gen++
	gen := r.gen
	scanCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true
	prev := r.prevDone
	done := make(chan struct{})
	r.prevDone = done
	r.mu.Unlock()

	go func() {
		defer close(done)
		defer cancel()

		if prev != nil {
			select {
			case <-prev:
			case <-scanCtx.Done():
				r.deliver(Result{Generation: gen, Err: scanCtx.Err()})
				return
			}
		}

		start := time.Now()
		lights, err := r.scan(scanCtx)
		r.deliver(Result{
			Generation: gen,
			Lights:     lights,
			Err:        err,
			Took:       time.Since(start),
		})
	}()

	return gen
}

// Stop cancels the scan in flight, if any. Its result is discarded.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.gen++
	r.running = false
}

func (r *Runner) deliver(res Result) {
	r.mu.Lock()
	if res.Generation != r.gen {
		r.mu.Unlock()
		r.discard(res)
		return
	}
	r.cancel = nil
	r.running = false
	observer := r.observer
	r.mu.Unlock()

	// The observer may call back into the runner
	if observer != nil {
		observer(res)
	}

	r.sendMu.Lock()
	defer r.sendMu.Unlock()

	// A newer scan may have started while the observer ran
	if res.Generation != r.Generation() {
		r.discard(res)
		return
	}

	// Only deliver sends, under sendMu, so after the drain the send
	// cannot block.
	select {
	case <-r.results:
	default:
	}
	r.results <- res
}

func (r *Runner) discard(res Result) {
	log.Debug().
		Uint64("generation", res.Generation).
		Uint64("latest", r.Generation()).
		Msg("Discarding stale scan result")
}

// Wait starts a scan and blocks until its result is delivered.
func (r *Runner) Wait(ctx context.Context) (Result, error) {
	gen := r.Start(ctx)
	for {
		select {
		case res := <-r.results:
			if res.Generation == gen {
				return res, nil
			}
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
}
