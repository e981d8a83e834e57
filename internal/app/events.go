package app

import (
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/ambience/internal/control"
	"github.com/dokzlo13/ambience/internal/discovery"
	"github.com/dokzlo13/ambience/internal/eventbus"
	"github.com/dokzlo13/ambience/internal/groups"
)

// wire connects component callbacks to the registry, the bus and the ledger.
func (s *Services) wire() {
	s.Bus.SubscribeAll(func(ev eventbus.Event) {
		if err := s.Ledger.Record(ev); err != nil {
			log.Error().Err(err).Str("event_type", string(ev.Type)).Msg("Failed to record event")
		}
	})

	s.Runner.SetObserver(s.onScan)
	s.Groups.SetObserver(s.onMutation)
	s.Control.SetObserver(s.onControl)
}

// onScan runs on the scan goroutine before the result reaches the UI.
func (s *Services) onScan(res discovery.Result) {
	if res.Err != nil {
		s.Bus.Publish(eventbus.NewEvent(eventbus.EventTypeScanFailed, map[string]any{
			"generation": res.Generation,
			"error":      res.Err.Error(),
		}))
		return
	}

	// The group document is left to whoever consumes the result
	s.Lights.MergeScan(res.Lights)

	s.Bus.Publish(eventbus.NewEvent(eventbus.EventTypeScanCompleted, map[string]any{
		"generation": res.Generation,
		"lights":     len(res.Lights),
		"took_ms":    res.Took.Milliseconds(),
	}))
}

func (s *Services) onMutation(m groups.Mutation) {
	data := map[string]any{
		"op":    string(m.Op),
		"group": m.Group,
	}
	if m.NewName != "" {
		data["new_name"] = m.NewName
	}
	if m.LightID != "" {
		data["light"] = m.LightID
	}
	if m.Label != "" {
		data["label"] = m.Label
	}
	s.Bus.Publish(eventbus.NewEvent(eventbus.EventTypeGroupChanged, data))
}

func (s *Services) onControl(o control.Outcome) {
	data := map[string]any{
		"op":    string(o.Op),
		"light": o.LightID,
	}
	if o.Group != "" {
		data["group"] = o.Group
	}

	eventType := eventbus.EventTypeControlCompleted
	if o.Err != nil {
		eventType = eventbus.EventTypeControlFailed
		data["error"] = o.Err.Error()
	}
	s.Bus.Publish(eventbus.NewEvent(eventType, data))
}
