package mqtt

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/ambience/internal/eventbus"
)

// Publisher sends a payload to a topic.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// Message is the JSON body published for every event.
type Message struct {
	ID   string         `json:"id"`
	Type string         `json:"type"`
	Time time.Time      `json:"time"`
	Data map[string]any `json:"data,omitempty"`
}

// Bridge forwards bus events to "<prefix>/events/<type>".
type Bridge struct {
	prefix string
	pub    Publisher
}

// NewBridge creates a bridge publishing under prefix.
func NewBridge(prefix string, pub Publisher) *Bridge {
	return &Bridge{prefix: strings.TrimSuffix(prefix, "/"), pub: pub}
}

// StatusTopic is the retained availability topic for a prefix.
func StatusTopic(prefix string) string {
	return strings.TrimSuffix(prefix, "/") + "/status"
}

// Topic returns the topic an event type is published on.
func (b *Bridge) Topic(t eventbus.EventType) string {
	return b.prefix + "/events/" + string(t)
}

// Attach subscribes the bridge to every bus event.
func (b *Bridge) Attach(bus *eventbus.Bus) {
	bus.SubscribeAll(b.Handle)
}

// Handle publishes one event. Failures are logged, never propagated.
func (b *Bridge) Handle(ev eventbus.Event) {
	payload, err := json.Marshal(Message{ID: ev.ID, Type: string(ev.Type), Time: ev.Time, Data: ev.Data})
	if err != nil {
		log.Error().Err(err).Str("event_type", string(ev.Type)).Msg("Failed to encode event for MQTT")
		return
	}

	if err := b.pub.Publish(b.Topic(ev.Type), payload); err != nil {
		log.Warn().Err(err).Str("event_type", string(ev.Type)).Msg("Failed to publish event to MQTT")
	}
}
