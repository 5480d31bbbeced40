// Package audit emits security-relevant events for the revocation and
// cleanup flows. Storage is owned by the surrounding system; the core
// only defines the event shape and a Sink interface.
package audit

import (
	"context"
	"log/slog"
	"time"
)

const (
	ActionRevocationRequested = "revocation.requested"
	ActionRevocationConfirmed = "revocation.confirmed"
	ActionRevocationCancelled = "revocation.cancelled"
	ActionRevocationLocked    = "revocation.locked"
	ActionCleanupRun          = "cleanup.run"
)

// Event records one security-relevant action. Raw confirmation codes
// and stored hashes must never appear in Metadata.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	Action    string            `json:"action"`
	ActorID   string            `json:"actor_id,omitempty"`
	TargetID  string            `json:"target_id,omitempty"`
	Success   bool              `json:"success"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type Sink interface {
	Emit(ctx context.Context, event Event)
}

// SlogSink writes events as structured log lines. It is the default
// sink when no external audit store is wired in.
type SlogSink struct{}

func (SlogSink) Emit(_ context.Context, event Event) {
	attrs := []any{
		"action", event.Action,
		"actor_id", event.ActorID,
		"target_id", event.TargetID,
		"success", event.Success,
	}
	for k, v := range event.Metadata {
		attrs = append(attrs, "meta_"+k, v)
	}
	slog.Info("Audit event", attrs...)
}

// ChannelSink buffers events on a channel, used by tests to assert on
// the emitted stream.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan Event, buffer)}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}
