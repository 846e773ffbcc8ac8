// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package dispatch routes decoded frames to a pending turn and reports the
// render events and the turn outcome each frame produces.
package dispatch

import (
	"github.com/jeranaias/tethr-tui/internal/frame"
	"github.com/jeranaias/tethr-tui/internal/logging"
	"github.com/jeranaias/tethr-tui/internal/render"
)

// Messages used when the client has to fail a turn on its own.
const (
	MsgMissingConversationID = "server ended the turn without a conversation id"
	MsgServerError           = "the server reported an error"
)

// OutcomeKind tells the caller what a frame did to the turn.
type OutcomeKind int

const (
	StillStreaming OutcomeKind = iota
	Finalized
	Failed
)

func (k OutcomeKind) String() string {
	switch k {
	case StillStreaming:
		return "still_streaming"
	case Finalized:
		return "finalized"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the turn-level result of dispatching one frame.
type Outcome struct {
	Kind           OutcomeKind
	ConversationID string // set when Kind == Finalized
	Message        string // set when Kind == Failed
}

// Terminal reports whether the outcome ends the turn.
func (o Outcome) Terminal() bool {
	return o.Kind != StillStreaming
}

// Dispatch applies f to turn. conversationID is the id the session already
// holds, empty for a fresh conversation.
//
// Frames reaching a turn that is already resolved are ignored: they produce
// no events and a StillStreaming outcome.
func Dispatch(f frame.Frame, turn *PendingTurn, conversationID string) ([]render.Event, Outcome) {
	if turn == nil || turn.Resolved() {
		logging.Debug("ignoring frame for resolved turn", "frame", f.String())
		return nil, Outcome{Kind: StillStreaming}
	}

	switch f.Kind() {
	case frame.KindContent:
		turn.append(f.Text())
		return []render.Event{render.TextUpdated{TurnID: turn.ID, Text: turn.Text()}},
			Outcome{Kind: StillStreaming}

	case frame.KindTurnEnd:
		id := f.ConversationID()
		switch {
		case id == "" && conversationID == "":
			return Fail(turn, MsgMissingConversationID)
		case id == "":
			id = conversationID
		case conversationID != "" && id != conversationID:
			logging.Warn("server returned a different conversation id; keeping the current one",
				"current", conversationID, "received", id)
			id = conversationID
		}
		turn.status = StatusCompleted
		return []render.Event{render.TurnFinalized{TurnID: turn.ID, ConversationID: id}},
			Outcome{Kind: Finalized, ConversationID: id}

	case frame.KindTurnError:
		msg := f.ErrorMessage()
		if msg == "" {
			msg = MsgServerError
		}
		return Fail(turn, msg)
	}

	logging.Warn("dispatch: unexpected frame kind", "kind", f.Kind())
	return nil, Outcome{Kind: StillStreaming}
}

// Fail marks turn as failed with message. It is a no-op on a resolved turn.
func Fail(turn *PendingTurn, message string) ([]render.Event, Outcome) {
	if turn == nil || turn.Resolved() {
		return nil, Outcome{Kind: StillStreaming}
	}
	turn.status = StatusFailed
	return []render.Event{render.TurnFailed{TurnID: turn.ID, Message: message}},
		Outcome{Kind: Failed, Message: message}
}
