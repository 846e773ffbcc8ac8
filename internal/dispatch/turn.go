// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dispatch

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a PendingTurn.
type Status int

const (
	StatusStreaming Status = iota
	StatusCompleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusStreaming:
		return "streaming"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// PendingTurn is one outstanding request/response exchange.
type PendingTurn struct {
	ID             string
	Message        string
	StartedAt      time.Time
	FirstContentAt time.Time

	status  Status
	text    strings.Builder
	content int
}

// NewPendingTurn creates a streaming turn for the given user message.
func NewPendingTurn(message string) *PendingTurn {
	return &PendingTurn{
		ID:        uuid.NewString(),
		Message:   message,
		StartedAt: time.Now(),
	}
}

// Text returns the concatenation of all content received so far.
func (t *PendingTurn) Text() string {
	return t.text.String()
}

// Status returns the turn status.
func (t *PendingTurn) Status() Status {
	return t.status
}

// Resolved reports whether the turn has completed or failed.
func (t *PendingTurn) Resolved() bool {
	return t.status != StatusStreaming
}

// ContentFrames returns how many content frames the turn has received.
func (t *PendingTurn) ContentFrames() int {
	return t.content
}

// TimeToFirstContent returns the delay between the send and the first content
// frame, or zero when no content has arrived.
func (t *PendingTurn) TimeToFirstContent() time.Duration {
	if t.FirstContentAt.IsZero() {
		return 0
	}
	return t.FirstContentAt.Sub(t.StartedAt)
}

func (t *PendingTurn) append(text string) {
	if t.FirstContentAt.IsZero() {
		t.FirstContentAt = time.Now()
	}
	t.content++
	t.text.WriteString(text)
}
