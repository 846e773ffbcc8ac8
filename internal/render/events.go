// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package render defines the events the session core emits for a display
// layer, and the Sink that receives them.
package render

import (
	"fmt"
	"sync"

	"github.com/jeranaias/tethr-tui/internal/model"
)

// Event is one render-ready notification. The set is closed: only the types
// in this file implement it.
type Event interface {
	isEvent()
	String() string
}

// =============================================================================
// TURN EVENTS
// =============================================================================

// TextUpdated carries the full accumulated answer text of a turn so far.
// A sink can replace its display of the turn with Text on every update.
type TextUpdated struct {
	TurnID string
	Text   string
}

// TurnFinalized marks a turn as completed by the server.
type TurnFinalized struct {
	TurnID         string
	ConversationID string
}

// TurnFailed marks a turn as failed. It is always the last event of its turn.
type TurnFailed struct {
	TurnID  string
	Message string
}

// =============================================================================
// CONVERSATION EVENTS
// =============================================================================

// ConversationIdentityAssigned is emitted once, when a fresh conversation
// receives its server id.
type ConversationIdentityAssigned struct {
	ConversationID string
}

// MessageReplayed re-renders one prior message of a resumed conversation.
type MessageReplayed struct {
	Role model.Role
	Text string
}

// ConversationCleared tells the sink to drop everything it displays.
type ConversationCleared struct{}

// DecodeFailed reports a stream line that could not be decoded. It is
// diagnostic only.
type DecodeFailed struct {
	Line   string
	Reason string
}

func (TextUpdated) isEvent()                  {}
func (TurnFinalized) isEvent()                {}
func (TurnFailed) isEvent()                   {}
func (ConversationIdentityAssigned) isEvent() {}
func (MessageReplayed) isEvent()              {}
func (ConversationCleared) isEvent()          {}
func (DecodeFailed) isEvent()                 {}

func (e TextUpdated) String() string { return fmt.Sprintf("TextUpdated(%q)", e.Text) }
func (e TurnFinalized) String() string {
	return fmt.Sprintf("TurnFinalized(%q)", e.ConversationID)
}
func (e TurnFailed) String() string { return fmt.Sprintf("TurnFailed(%q)", e.Message) }
func (e ConversationIdentityAssigned) String() string {
	return fmt.Sprintf("ConversationIdentityAssigned(%q)", e.ConversationID)
}
func (e MessageReplayed) String() string {
	return fmt.Sprintf("MessageReplayed(%s, %q)", e.Role, e.Text)
}
func (ConversationCleared) String() string { return "ConversationCleared()" }
func (e DecodeFailed) String() string {
	return fmt.Sprintf("DecodeFailed(%s: %q)", e.Reason, e.Line)
}

// IsTerminal reports whether e ends a turn.
func IsTerminal(e Event) bool {
	switch e.(type) {
	case TurnFinalized, TurnFailed:
		return true
	}
	return false
}

// =============================================================================
// SINKS
// =============================================================================

// Sink consumes render events in emission order.
type Sink interface {
	Render(Event)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Event)

// Render calls f(e).
func (f SinkFunc) Render(e Event) { f(e) }

// Discard is a Sink that drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Emit sends events to sink in order. A nil sink drops them.
func Emit(sink Sink, events ...Event) {
	if sink == nil {
		return
	}
	for _, e := range events {
		sink.Render(e)
	}
}

// Tee fans events out to several sinks.
func Tee(sinks ...Sink) Sink {
	return SinkFunc(func(e Event) {
		for _, s := range sinks {
			if s != nil {
				s.Render(e)
			}
		}
	})
}

// Recorder stores every event it receives. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Render appends e.
func (r *Recorder) Render(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Strings returns the recorded events in their String form.
func (r *Recorder) Strings() []string {
	events := r.Events()
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.String()
	}
	return out
}

// Reset drops all recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
