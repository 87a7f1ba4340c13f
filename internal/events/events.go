// Package events carries pipeline progress to external consumers.
//
// Progress delivery is fire-and-forget: the pipeline never waits for
// a subscriber, and a lost event only degrades observability. Events
// for one project are published in the causal order of the mutations
// that produced them.
package events

import "time"

// Event is one progress notification.
type Event struct {
	Type      string         `json:"type"`
	ProjectID string         `json:"project_id"`
	Stage     string         `json:"stage"`
	Message   string         `json:"message"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Sink accepts progress events. Implementations must not block the
// caller beyond a local buffer write.
type Sink interface {
	Publish(event Event) error
}

// NopSink discards every event. Used when no transport is configured
// and in tests that don't observe progress.
type NopSink struct{}

// Publish implements Sink.
func (NopSink) Publish(Event) error { return nil }
