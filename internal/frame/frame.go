// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package frame

import (
	"encoding/json"
	"fmt"
	"strings"
)

// =============================================================================
// FRAME KINDS
// =============================================================================

// Kind identifies the variant of a Frame. The set is closed.
type Kind string

const (
	KindContent   Kind = "content"
	KindTurnEnd   Kind = "turn_end"
	KindTurnError Kind = "turn_error"
)

// Wire tags used by the server in the "type" field.
const (
	wireChunk = "chunk"
	wireEnd   = "end"
	wireError = "error"
)

func (k Kind) String() string {
	return string(k)
}

// =============================================================================
// FRAME
// =============================================================================

// Frame is one decoded unit of the response stream. Fields are unexported so
// a frame cannot change after it has been decoded.
type Frame struct {
	kind           Kind
	text           string
	conversationID string
	errorMessage   string
}

// Content creates a content frame carrying incremental answer text.
func Content(text string) Frame {
	return Frame{kind: KindContent, text: text}
}

// TurnEnd creates an end-of-turn frame.
func TurnEnd(conversationID string) Frame {
	return Frame{kind: KindTurnEnd, conversationID: conversationID}
}

// TurnError creates an error frame.
func TurnError(message string) Frame {
	return Frame{kind: KindTurnError, errorMessage: message}
}

// Kind returns the frame variant.
func (f Frame) Kind() Kind { return f.kind }

// Text returns the answer text of a content frame.
func (f Frame) Text() string { return f.text }

// ConversationID returns the conversation id of a turn-end frame. It may be
// empty; the dispatcher decides whether that is acceptable.
func (f Frame) ConversationID() string { return f.conversationID }

// ErrorMessage returns the message of a turn-error frame.
func (f Frame) ErrorMessage() string { return f.errorMessage }

func (f Frame) String() string {
	switch f.kind {
	case KindContent:
		return fmt.Sprintf("Content(%q)", f.text)
	case KindTurnEnd:
		return fmt.Sprintf("TurnEnd(%q)", f.conversationID)
	case KindTurnError:
		return fmt.Sprintf("TurnError(%q)", f.errorMessage)
	}
	return "Frame(invalid)"
}

// =============================================================================
// DECODE FAILURE
// =============================================================================

// DecodeFailure describes a complete line that could not be parsed.
type DecodeFailure struct {
	Line   string
	Reason string
	Err    error
}

func (e *DecodeFailure) Error() string {
	if e.Err != nil {
		return "frame: " + e.Reason + ": " + e.Err.Error()
	}
	return "frame: " + e.Reason
}

func (e *DecodeFailure) Unwrap() error {
	return e.Err
}

// =============================================================================
// PARSE / ENCODE
// =============================================================================

// wireFrame mirrors the JSON object on the wire. Pointer fields let the
// parser tell an absent field from an empty string.
type wireFrame struct {
	Type    string  `json:"type"`
	Content *string `json:"content,omitempty"`
	ConvoID *string `json:"convo_id,omitempty"`
}

// Parse decodes one complete, already trimmed line into a Frame.
// Any failure is returned as a *DecodeFailure.
func Parse(line string) (Frame, error) {
	var w wireFrame
	if err := json.Unmarshal([]byte(line), &w); err != nil {
		return Frame{}, &DecodeFailure{Line: line, Reason: "invalid json", Err: err}
	}

	switch w.Type {
	case wireChunk:
		if w.Content == nil {
			return Frame{}, &DecodeFailure{Line: line, Reason: "chunk frame without content"}
		}
		return Content(*w.Content), nil
	case wireEnd:
		id := ""
		if w.ConvoID != nil {
			id = strings.TrimSpace(*w.ConvoID)
		}
		return TurnEnd(id), nil
	case wireError:
		if w.Content == nil {
			return Frame{}, &DecodeFailure{Line: line, Reason: "error frame without content"}
		}
		return TurnError(*w.Content), nil
	case "":
		return Frame{}, &DecodeFailure{Line: line, Reason: "missing frame type"}
	default:
		return Frame{}, &DecodeFailure{Line: line, Reason: fmt.Sprintf("unknown frame type %q", w.Type)}
	}
}

// Marshal encodes a frame in wire form, terminated by a newline.
func Marshal(f Frame) ([]byte, error) {
	var w wireFrame
	switch f.kind {
	case KindContent:
		w = wireFrame{Type: wireChunk, Content: &f.text}
	case KindTurnEnd:
		w = wireFrame{Type: wireEnd, ConvoID: &f.conversationID}
	case KindTurnError:
		w = wireFrame{Type: wireError, Content: &f.errorMessage}
	default:
		return nil, fmt.Errorf("frame: cannot marshal kind %q", f.kind)
	}
	data, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
