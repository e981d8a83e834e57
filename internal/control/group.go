package control

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/ambience/internal/groups"
	"github.com/dokzlo13/ambience/internal/lifx"
	"github.com/dokzlo13/ambience/internal/registry"
)

// GroupResult collects the per-light outcome of a group operation.
type GroupResult struct {
	Group   string
	Applied []string
	Failed  map[string]error
}

// Err joins every per-light failure, or returns nil when all lights succeeded.
func (r GroupResult) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	ids := make([]string, 0, len(r.Failed))
	for id := range r.Failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	errs := make([]error, 0, len(ids))
	for _, id := range ids {
		errs = append(errs, r.Failed[id])
	}
	return errors.Join(errs...)
}

// GroupSetPower switches every member of a group.
func (f *Facade) GroupSetPower(ctx context.Context, group string, on bool) (GroupResult, error) {
	return f.applyGroup(ctx, group, OpSetPower, f.power(on))
}

// GroupSetColor sends the same color to every member of a group.
func (f *Facade) GroupSetColor(ctx context.Context, group string, color lifx.HSBK) (GroupResult, error) {
	return f.applyGroup(ctx, group, OpSetColor, f.color(color))
}

// applyGroup runs fn for each member in order. A failing member does not
// stop the rest; only a missing group is returned as an error.
func (f *Facade) applyGroup(ctx context.Context, label string, op Op, fn callFunc) (GroupResult, error) {
	res := GroupResult{Group: label, Failed: make(map[string]error)}
	if f.store == nil {
		return res, fmt.Errorf("%w: %q", groups.ErrGroupNotFound, label)
	}

	g, ok := f.store.Group(label)
	if !ok {
		return res, fmt.Errorf("%w: %q", groups.ErrGroupNotFound, label)
	}

	for _, e := range g.Lights {
		id := lifx.NormalizeID(e.ID)
		// Members never scanned are still addressable through their cached address
		if _, known := f.lights.Get(id); !known {
			f.lights.Put(registry.Light{ID: id, Label: e.Label, Address: e.Address})
		}
		if err := f.call(ctx, label, id, op, fn); err != nil {
			res.Failed[id] = err
			continue
		}
		res.Applied = append(res.Applied, id)
	}

	if len(res.Failed) > 0 {
		log.Warn().
			Str("group", label).
			Int("applied", len(res.Applied)).
			Int("failed", len(res.Failed)).
			Msg("Group operation partially applied")
	}
	return res, nil
}
