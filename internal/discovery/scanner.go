// Package discovery enumerates LIFX lights on the local network.
package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/dokzlo13/ambience/internal/lifx"
	"github.com/dokzlo13/ambience/internal/registry"
)

// Scanner runs one discovery sweep and fetches the attributes of every
// light that answered.
type Scanner struct {
	client  lifx.Client
	workers int
	limiter *rate.Limiter
}

// NewScanner creates a scanner. workers bounds concurrent per-device fetches;
// rateLimitRPS bounds requests sent to bulbs (0 = unlimited).
func NewScanner(client lifx.Client, workers int, rateLimitRPS float64) *Scanner {
	if workers <= 0 {
		workers = 8
	}

	limit := rate.Inf
	burst := 1
	if rateLimitRPS > 0 {
		limit = rate.Limit(rateLimitRPS)
		burst = max(int(rateLimitRPS), 1)
	}

	return &Scanner{
		client:  client,
		workers: workers,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Scan discovers reachable lights. A light whose label or identifier cannot
// be fetched is left out; the rest of the scan is unaffected.
func (s *Scanner) Scan(ctx context.Context) ([]registry.Light, error) {
	start := time.Now()

	devices, err := s.client.Discover(ctx)
	if err != nil {
		if len(devices) == 0 {
			return nil, fmt.Errorf("discovery failed: %w", err)
		}
		log.Warn().Err(err).Int("devices", len(devices)).Msg("Discovery ended with error, keeping partial results")
	}

	found := make([]*registry.Light, len(devices))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, dev := range devices {
		i, dev := i, dev
		g.Go(func() error {
			l, err := s.fetch(gctx, dev)
			if err != nil {
				log.Debug().Err(err).Msg("Skipping device that did not answer")
				return nil
			}
			found[i] = l
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(found))
	lights := make([]registry.Light, 0, len(found))
	for _, l := range found {
		if l == nil || seen[l.ID] {
			continue
		}
		seen[l.ID] = true
		lights = append(lights, *l)
	}
	registry.Sort(lights)

	log.Info().
		Int("answered", len(devices)).
		Int("usable", len(lights)).
		Dur("took", time.Since(start)).
		Msg("Discovery finished")

	return lights, nil
}

// fetch reads the attributes of one device. Label and identifier are
// required; everything else is best effort.
func (s *Scanner) fetch(ctx context.Context, dev lifx.Device) (*registry.Light, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	id, err := dev.Identifier(ctx)
	if err != nil || id == "" {
		return nil, fmt.Errorf("identifier: %w", err)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	label, err := dev.Label(ctx)
	if err != nil || label == "" {
		return nil, fmt.Errorf("label of %s: %w", id, err)
	}

	l := &registry.Light{
		ID:     lifx.NormalizeID(id),
		Label:  label,
		Online: true,
	}

	logger := log.With().Str("device", l.ID).Logger()

	if s.limiter.Wait(ctx) == nil {
		if addr, err := dev.Address(ctx); err == nil {
			l.Address = addr
		} else {
			logger.Debug().Err(err).Msg("Address unavailable")
		}
	}
	if s.limiter.Wait(ctx) == nil {
		if caps, err := dev.Capabilities(ctx); err == nil {
			l.Capabilities = caps
		} else {
			logger.Debug().Err(err).Msg("Capabilities unavailable")
		}
	}
	if s.limiter.Wait(ctx) == nil {
		if on, err := dev.Power(ctx); err == nil {
			l.Power = on
		}
	}
	if s.limiter.Wait(ctx) == nil {
		if color, err := dev.Color(ctx); err == nil {
			l.Color = color
		}
	}
	if l.Capabilities.Has(lifx.Infrared) {
		if ir, err := dev.Infrared(ctx); err == nil {
			l.Infrared = ir
		}
	}
	if s.limiter.Wait(ctx) == nil {
		if info, err := dev.Info(ctx); err == nil {
			l.Info = info
		}
	}

	return l, nil
}
