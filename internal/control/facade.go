// Package control forwards user actions to lights and keeps the registry
// in step with what the bulbs report.
package control

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/dokzlo13/ambience/internal/groups"
	"github.com/dokzlo13/ambience/internal/lifx"
	"github.com/dokzlo13/ambience/internal/registry"
)

var (
	// ErrUnknownLight indicates the identifier is not in the registry
	ErrUnknownLight = errors.New("unknown light")

	// ErrEmptyLabel indicates a blank light label
	ErrEmptyLabel = errors.New("light label must not be empty")
)

// Op names a control operation.
type Op string

const (
	OpSetPower    Op = "set_power"
	OpSetColor    Op = "set_color"
	OpSetLabel    Op = "set_label"
	OpSetInfrared Op = "set_infrared"
	OpRefresh     Op = "refresh"
)

// Outcome reports the result of one forwarded call.
type Outcome struct {
	Op      Op
	LightID string
	Group   string
	Err     error
}

// Facade is the single entry point for changing lights.
type Facade struct {
	client  lifx.Client
	lights  *registry.Registry
	store   *groups.Store
	limiter *rate.Limiter

	mu       sync.Mutex
	devices  map[string]handle
	observer func(Outcome)
}

// handle is a device bound to the address it was opened with.
type handle struct {
	address string
	dev     lifx.Device
}

// New creates a facade. rateLimitRPS bounds outgoing requests (0 = unlimited).
func New(client lifx.Client, lights *registry.Registry, store *groups.Store, rateLimitRPS float64) *Facade {
	limit := rate.Inf
	burst := 1
	if rateLimitRPS > 0 {
		limit = rate.Limit(rateLimitRPS)
		burst = max(int(rateLimitRPS), 1)
	}

	return &Facade{
		client:  client,
		lights:  lights,
		store:   store,
		limiter: rate.NewLimiter(limit, burst),
		devices: make(map[string]handle),
	}
}

// SetObserver registers a callback invoked after every forwarded call.
func (f *Facade) SetObserver(fn func(Outcome)) {
	f.mu.Lock()
	f.observer = fn
	f.mu.Unlock()
}

// callFunc performs one request against a resolved light.
type callFunc func(ctx context.Context, dev lifx.Device, l registry.Light) error

// SetPower switches a light on or off.
func (f *Facade) SetPower(ctx context.Context, id string, on bool) error {
	return f.call(ctx, "", id, OpSetPower, f.power(on))
}

func (f *Facade) power(on bool) callFunc {
	return func(ctx context.Context, dev lifx.Device, l registry.Light) error {
		if err := dev.SetPower(ctx, on); err != nil {
			return err
		}
		f.lights.Update(l.ID, func(l *registry.Light) { l.Power = on })
		return nil
	}
}

// SetColor sends a color. Parts of the color the light cannot render are
// replaced by its current values.
func (f *Facade) SetColor(ctx context.Context, id string, color lifx.HSBK) error {
	return f.call(ctx, "", id, OpSetColor, f.color(color))
}

func (f *Facade) color(want lifx.HSBK) callFunc {
	return func(ctx context.Context, dev lifx.Device, l registry.Light) error {
		color := gate(l, want)
		if err := dev.SetColor(ctx, color); err != nil {
			return err
		}
		f.lights.Update(l.ID, func(l *registry.Light) { l.Color = color })
		return nil
	}
}

// SetDisplay sends slider values, skipping the call when they match what the
// light already shows at slider resolution.
func (f *Facade) SetDisplay(ctx context.Context, id string, d lifx.Display) error {
	if l, ok := f.lights.Get(id); ok && l.Color.ToDisplay().SameAs(d) {
		return nil
	}
	return f.SetColor(ctx, id, d.HSBK())
}

// gate keeps hue and saturation for color lights and kelvin for white
// lights; lights with unknown capabilities get the color unchanged.
func gate(l registry.Light, c lifx.HSBK) lifx.HSBK {
	if l.Capabilities == 0 {
		return c
	}
	if !l.Capabilities.Has(lifx.Color) {
		c.Hue = l.Color.Hue
		c.Saturation = 0
	}
	if !l.Capabilities.Has(lifx.Temperature) {
		c.Kelvin = l.Color.Kelvin
	}
	return c
}

// SetLabel renames a light on the bulb and in every group that caches its label.
func (f *Facade) SetLabel(ctx context.Context, id, label string) error {
	label = strings.TrimSpace(label)
	if label == "" {
		return ErrEmptyLabel
	}
	if len(label) > lifx.MaxLabelBytes {
		return fmt.Errorf("%w: %d bytes", lifx.ErrLabelTooLong, len(label))
	}
	return f.call(ctx, "", id, OpSetLabel, func(ctx context.Context, dev lifx.Device, _ registry.Light) error {
		if err := dev.SetLabel(ctx, label); err != nil {
			return err
		}
		f.lights.Update(id, func(l *registry.Light) { l.Label = label })
		if f.store != nil {
			if err := f.store.UpdateLightLabel(id, label); err != nil {
				log.Warn().Err(err).Str("light", id).Msg("Renamed light but failed to update cached label")
			}
		}
		return nil
	})
}

// SetInfrared sets the infrared level as a fraction in [0,1].
func (f *Facade) SetInfrared(ctx context.Context, id string, level float64) error {
	return f.call(ctx, "", id, OpSetInfrared, func(ctx context.Context, dev lifx.Device, l registry.Light) error {
		if l.Capabilities != 0 && !l.Capabilities.Has(lifx.Infrared) {
			return lifx.ErrUnsupported
		}
		if err := dev.SetInfrared(ctx, level); err != nil {
			return err
		}
		f.lights.Update(id, func(l *registry.Light) { l.Infrared = level })
		return nil
	})
}

// Refresh reads the current state of a light back into the registry.
func (f *Facade) Refresh(ctx context.Context, id string) (registry.Light, error) {
	var out registry.Light
	err := f.call(ctx, "", id, OpRefresh, func(ctx context.Context, dev lifx.Device, l registry.Light) error {
		label, err := dev.Label(ctx)
		if err != nil {
			return err
		}
		on, err := dev.Power(ctx)
		if err != nil {
			return err
		}
		color, err := dev.Color(ctx)
		if err != nil {
			return err
		}
		caps, err := dev.Capabilities(ctx)
		if err != nil {
			caps = l.Capabilities
		}
		var ir float64
		if caps.Has(lifx.Infrared) {
			ir, _ = dev.Infrared(ctx)
		}
		info, _ := dev.Info(ctx)

		f.lights.Update(id, func(l *registry.Light) {
			l.Label = label
			l.Power = on
			l.Color = color
			l.Capabilities = caps
			l.Infrared = ir
			if info != nil {
				l.Info = info
			}
		})
		return nil
	})
	if err != nil {
		return registry.Light{}, err
	}
	out, _ = f.lights.Get(id)
	return out, nil
}

func (f *Facade) device(id string) (lifx.Device, registry.Light, error) {
	l, ok := f.lights.Get(id)
	if !ok {
		return nil, registry.Light{}, fmt.Errorf("%w: %s", ErrUnknownLight, id)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	// Reopen when a scan has seen the light at a new address
	if h, ok := f.devices[l.ID]; ok && h.address == l.Address {
		return h.dev, l, nil
	}
	dev, err := f.client.Device(l.ID, l.Address)
	if err != nil {
		return nil, l, err
	}
	f.devices[l.ID] = handle{address: l.Address, dev: dev}
	return dev, l, nil
}

// call resolves the light, runs fn under the rate limit, updates the online
// flag and reports the outcome. group is set when the call is part of a
// group operation.
func (f *Facade) call(ctx context.Context, group, id string, op Op, fn callFunc) error {
	id = lifx.NormalizeID(id)

	err := f.limiter.Wait(ctx)
	if err == nil {
		var dev lifx.Device
		var l registry.Light
		dev, l, err = f.device(id)
		if err == nil {
			err = fn(ctx, dev, l)
		}
	}

	switch {
	case err == nil:
		f.lights.SetOnline(id, true)
	case errors.Is(err, lifx.ErrUnreachable):
		f.lights.SetOnline(id, false)
		log.Warn().Err(err).Str("light", id).Str("op", string(op)).Msg("Light unreachable")
	default:
		log.Debug().Err(err).Str("light", id).Str("op", string(op)).Msg("Control call rejected")
	}

	f.notify(Outcome{Op: op, LightID: id, Group: group, Err: err})
	return err
}

func (f *Facade) notify(o Outcome) {
	f.mu.Lock()
	observer := f.observer
	f.mu.Unlock()
	if observer != nil {
		observer(o)
	}
}
