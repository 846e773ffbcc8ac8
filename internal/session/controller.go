// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jeranaias/tethr-tui/internal/dispatch"
	"github.com/jeranaias/tethr-tui/internal/frame"
	"github.com/jeranaias/tethr-tui/internal/logging"
	"github.com/jeranaias/tethr-tui/internal/model"
	"github.com/jeranaias/tethr-tui/internal/render"
)

// MsgConnectionClosed is the failure reported when a stream ends before the
// server resolved the turn.
const MsgConnectionClosed = "connection closed unexpectedly"

// ErrInvalidOperation is returned for calls the current state does not allow.
var ErrInvalidOperation = errors.New("invalid operation")

func invalidOp(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidOperation, fmt.Sprintf(format, args...))
}

// =============================================================================
// STATE
// =============================================================================

// State is the controller state.
type State int

const (
	// Idle means no turn is in flight.
	Idle State = iota
	// AwaitingFirstByte means a turn was started and no content arrived yet.
	AwaitingFirstByte
	// Streaming means at least one content frame arrived for the turn.
	Streaming
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingFirstByte:
		return "awaiting_first_byte"
	case Streaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller is the conversation session state machine.
type Controller struct {
	sink render.Sink
	log  *slog.Logger

	state          State
	conversationID string
	// announced is set once ConversationIdentityAssigned has been emitted
	// for the current conversation.
	announced bool

	turn       *Turn
	transcript []model.Message
	lastAnswer string

	maxLineBytes int
}

// Option configures a Controller.
type Option func(*Controller)

// WithMaxLineBytes sets the longest stream line the codec accepts.
func WithMaxLineBytes(n int) Option {
	return func(c *Controller) { c.maxLineBytes = n }
}

// NewController creates an idle controller with no conversation. A nil sink
// discards events.
func NewController(sink render.Sink, opts ...Option) *Controller {
	if sink == nil {
		sink = render.Discard
	}
	c := &Controller{
		sink:         sink,
		log:          logging.With("component", "session"),
		maxLineBytes: frame.DefaultMaxLineBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetSink replaces the event sink.
func (c *Controller) SetSink(sink render.Sink) {
	if sink == nil {
		sink = render.Discard
	}
	c.sink = sink
}

// State returns the current state.
func (c *Controller) State() State { return c.state }

// ConversationID returns the active conversation id, empty for a fresh
// conversation.
func (c *Controller) ConversationID() string { return c.conversationID }

// TurnInFlight reports whether a turn is awaiting resolution.
func (c *Controller) TurnInFlight() bool { return c.turn != nil }

// Transcript returns a copy of the messages of the current conversation.
func (c *Controller) Transcript() []model.Message {
	out := make([]model.Message, len(c.transcript))
	copy(out, c.transcript)
	return out
}

// Snapshot is a read-only view of a Controller.
type Snapshot struct {
	State          State
	ConversationID string
	TurnInFlight   bool
	TurnID         string
	PartialText    string
	LastAnswer     string
	TranscriptLen  int
}

// Snapshot returns the current controller state.
func (c *Controller) Snapshot() Snapshot {
	s := Snapshot{
		State:          c.state,
		ConversationID: c.conversationID,
		TurnInFlight:   c.turn != nil,
		LastAnswer:     c.lastAnswer,
		TranscriptLen:  len(c.transcript),
	}
	if c.turn != nil {
		s.TurnID = c.turn.pending.ID
		s.PartialText = c.turn.pending.Text()
	}
	return s
}

// =============================================================================
// TRANSITIONS
// =============================================================================

// StartTurn begins a new exchange for message. It fails with
// ErrInvalidOperation when a turn is already in flight or message is blank;
// in that case nothing changes.
func (c *Controller) StartTurn(message string) (*Turn, error) {
	if c.turn != nil {
		return nil, invalidOp("turn %s is still in flight", c.turn.pending.ID)
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, invalidOp("message is empty")
	}

	t := &Turn{
		ctrl:    c,
		pending: dispatch.NewPendingTurn(message),
		codec:   frame.NewCodecWithLimit(c.maxLineBytes),
	}
	c.turn = t
	c.state = AwaitingFirstByte
	c.transcript = append(c.transcript, model.NewUserMessage(message))

	c.log.Debug("turn started", "turn", t.pending.ID, "conversation", c.conversationID)
	return t, nil
}

// OnFrame routes one decoded frame to the turn in flight.
func (c *Controller) OnFrame(f frame.Frame) error {
	if c.turn == nil {
		return invalidOp("no turn in flight for %s", f)
	}
	events, outcome := dispatch.Dispatch(f, c.turn.pending, c.conversationID)
	c.turn.stats.Frames++

	if f.Kind() == frame.KindContent && c.state == AwaitingFirstByte {
		c.state = Streaming
	}

	switch outcome.Kind {
	case dispatch.Finalized:
		c.emit(events...)
		c.finalize(outcome.ConversationID)
	case dispatch.Failed:
		c.emit(events...)
		c.fail(outcome.Message)
	default:
		c.emit(events...)
	}
	return nil
}

// OnStreamClosed reports that the response stream ended. If the turn in
// flight was not resolved by the server it fails with MsgConnectionClosed.
func (c *Controller) OnStreamClosed() {
	if c.turn == nil {
		return
	}
	events, outcome := dispatch.Fail(c.turn.pending, MsgConnectionClosed)
	c.emit(events...)
	if outcome.Kind == dispatch.Failed {
		c.fail(outcome.Message)
	}
}

// StartNewConversation forgets the current conversation id and transcript.
// Server-side history is untouched.
func (c *Controller) StartNewConversation() error {
	if c.turn != nil {
		return invalidOp("cannot start a new conversation while a turn is in flight")
	}
	c.log.Debug("new conversation", "previous", c.conversationID)
	c.conversationID = ""
	c.announced = false
	c.transcript = nil
	c.lastAnswer = ""
	c.state = Idle
	c.emit(render.ConversationCleared{})
	return nil
}

// ResumeConversation switches to an existing conversation and replays prior
// messages to the sink. No turn is started.
func (c *Controller) ResumeConversation(conversationID string, prior []model.Message) error {
	if c.turn != nil {
		return invalidOp("cannot resume a conversation while a turn is in flight")
	}
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return invalidOp("conversation id is empty")
	}

	c.conversationID = conversationID
	c.announced = true
	c.state = Idle
	c.lastAnswer = ""
	c.transcript = append([]model.Message(nil), prior...)

	c.emit(render.ConversationCleared{})
	for _, m := range prior {
		c.emit(render.MessageReplayed{Role: m.Role, Text: m.Content})
		if m.Role == model.RoleAssistant {
			c.lastAnswer = m.Content
		}
	}
	c.log.Debug("conversation resumed", "conversation", conversationID, "messages", len(prior))
	return nil
}

func (c *Controller) finalize(conversationID string) {
	t := c.turn
	answer := t.pending.Text()

	c.transcript = append(c.transcript, model.NewAssistantMessage(answer))
	c.lastAnswer = answer
	c.endTurn()

	if c.conversationID == "" {
		c.conversationID = conversationID
	}
	if !c.announced {
		c.announced = true
		c.emit(render.ConversationIdentityAssigned{ConversationID: c.conversationID})
	}
}

func (c *Controller) fail(message string) {
	t := c.turn
	reply := model.NewAssistantMessage(t.pending.Text())
	reply.Failed = true
	c.transcript = append(c.transcript, reply)

	c.log.Info("turn failed", "turn", t.pending.ID, "reason", message)
	c.endTurn()
}

func (c *Controller) endTurn() {
	t := c.turn
	t.stats.TimeToFirstContent = t.pending.TimeToFirstContent()
	c.log.Debug("turn resolved",
		"turn", t.pending.ID,
		"status", t.pending.Status().String(),
		"frames", t.stats.Frames,
		"decode_failures", t.stats.DecodeFailures,
		"bytes", t.stats.Bytes,
		"ttfc", t.stats.TimeToFirstContent,
	)
	c.turn = nil
	c.state = Idle
}

func (c *Controller) emit(events ...render.Event) {
	render.Emit(c.sink, events...)
}

// =============================================================================
// TURN
// =============================================================================

// Stats counts what one turn received.
type Stats struct {
	Bytes              int
	Frames             int
	DecodeFailures     int
	Discarded          int
	TimeToFirstContent time.Duration
}

// Turn is the handle for one exchange. It owns the frame codec of the
// response stream.
type Turn struct {
	ctrl    *Controller
	pending *dispatch.PendingTurn
	codec   *frame.Codec
	stats   Stats
}

// ID returns the turn id.
func (t *Turn) ID() string { return t.pending.ID }

// Message returns the user message that started the turn.
func (t *Turn) Message() string { return t.pending.Message }

// Text returns the answer text accumulated so far.
func (t *Turn) Text() string { return t.pending.Text() }

// Status returns the status of the turn.
func (t *Turn) Status() dispatch.Status { return t.pending.Status() }

// Done reports whether the turn has been resolved.
func (t *Turn) Done() bool { return t.pending.Resolved() }

// Stats returns the counters collected so far.
func (t *Turn) Stats() Stats { return t.stats }

// Feed decodes a chunk of the response body and applies every complete
// frame in order. Chunks arriving after the turn resolved are dropped.
func (t *Turn) Feed(chunk []byte) error {
	if t.ctrl.turn != t {
		if t.Done() {
			return nil
		}
		return invalidOp("turn %s is not the active turn", t.pending.ID)
	}
	t.stats.Bytes += len(chunk)

	decoded, err := t.codec.Feed(chunk)
	if err != nil {
		return err
	}
	for _, d := range decoded {
		if t.ctrl.turn != t {
			// Resolved by an earlier line of this chunk; nothing may follow
			// the terminal event.
			t.ctrl.log.Debug("ignoring line after turn resolved", "turn", t.pending.ID)
			continue
		}
		if d.IsFailure() {
			t.stats.DecodeFailures++
			t.ctrl.log.Warn("dropping undecodable stream line",
				"turn", t.pending.ID, "reason", d.Failure.Reason, "line", d.Failure.Line)
			t.ctrl.emit(render.DecodeFailed{Line: d.Failure.Line, Reason: d.Failure.Reason})
			continue
		}
		if err := t.ctrl.OnFrame(d.Frame); err != nil {
			return err
		}
	}
	return nil
}

// Close ends the response stream. Any unterminated fragment is discarded;
// a turn the server never resolved fails with MsgConnectionClosed.
func (t *Turn) Close() {
	t.stats.Discarded += t.codec.Close()
	if t.ctrl.turn == t {
		t.ctrl.OnStreamClosed()
	}
}

// Fail resolves the turn with message, for failures outside the stream such
// as a rejected request. It is a no-op on a resolved turn.
func (t *Turn) Fail(message string) {
	t.codec.Close()
	if t.ctrl.turn != t {
		return
	}
	events, outcome := dispatch.Fail(t.pending, message)
	t.ctrl.emit(events...)
	if outcome.Kind == dispatch.Failed {
		t.ctrl.fail(outcome.Message)
	}
}
