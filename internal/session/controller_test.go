// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/tethr-tui/internal/dispatch"
	"github.com/jeranaias/tethr-tui/internal/frame"
	"github.com/jeranaias/tethr-tui/internal/model"
	"github.com/jeranaias/tethr-tui/internal/render"
)

const (
	lineHel = `{"type":"chunk","content":"Hel"}` + "\n"
	lineLo  = `{"type":"chunk","content":"lo"}` + "\n"
	lineEnd = `{"type":"end","convo_id":"c1"}` + "\n"
)

func newTestController(t *testing.T) (*Controller, *render.Recorder) {
	t.Helper()
	rec := &render.Recorder{}
	return NewController(rec), rec
}

func startTurn(t *testing.T, c *Controller, msg string) *Turn {
	t.Helper()
	turn, err := c.StartTurn(msg)
	require.NoError(t, err)
	return turn
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestScenarioA_WholeStream(t *testing.T) {
	c, rec := newTestController(t)
	turn := startTurn(t, c, "hi")

	require.NoError(t, turn.Feed([]byte(lineHel+lineLo+lineEnd)))

	assert.Equal(t, []render.Event{
		render.TextUpdated{TurnID: turn.ID(), Text: "Hel"},
		render.TextUpdated{TurnID: turn.ID(), Text: "Hello"},
		render.TurnFinalized{TurnID: turn.ID(), ConversationID: "c1"},
		render.ConversationIdentityAssigned{ConversationID: "c1"},
	}, rec.Events())
	assert.Equal(t, "c1", c.ConversationID())
	assert.False(t, c.TurnInFlight())
	assert.Equal(t, Idle, c.State())
}

func TestScenarioB_SplitMidLine(t *testing.T) {
	whole, wholeRec := newTestController(t)
	wt := startTurn(t, whole, "hi")
	require.NoError(t, wt.Feed([]byte(lineHel+lineLo+lineEnd)))

	split, splitRec := newTestController(t)
	st := startTurn(t, split, "hi")
	stream := lineHel + lineLo + lineEnd
	require.NoError(t, st.Feed([]byte(`{"type":"ch`)))
	require.NoError(t, st.Feed([]byte(stream[len(`{"type":"ch`):])))

	assert.Equal(t, wholeRec.Strings(), splitRec.Strings())
	assert.Equal(t, "c1", split.ConversationID())
}

func TestScenarioC_DecodeFailureDoesNotFailTurn(t *testing.T) {
	c, rec := newTestController(t)
	turn := startTurn(t, c, "hi")

	require.NoError(t, turn.Feed([]byte("not-json\n"+`{"type":"chunk","content":"ok"}`+"\n")))

	events := rec.Events()
	require.Len(t, events, 2)
	assert.IsType(t, render.DecodeFailed{}, events[0])
	assert.Equal(t, render.TextUpdated{TurnID: turn.ID(), Text: "ok"}, events[1])
	assert.Equal(t, 1, turn.Stats().DecodeFailures)
	assert.True(t, c.TurnInFlight())
	assert.Equal(t, Streaming, c.State())
	assert.Equal(t, dispatch.StatusStreaming, turn.Status())
}

func TestScenarioD_ConnectionClosedEarly(t *testing.T) {
	c, rec := newTestController(t)
	turn := startTurn(t, c, "hi")

	require.NoError(t, turn.Feed([]byte(`{"type":"chunk","content":"partial"}`+"\n")))
	turn.Close()

	assert.Equal(t, []string{
		`TextUpdated("partial")`,
		`TurnFailed("connection closed unexpectedly")`,
	}, rec.Strings())
	assert.False(t, c.TurnInFlight())
	assert.Equal(t, Idle, c.State())

	_, err := c.StartTurn("again")
	assert.NoError(t, err)
}

// =============================================================================
// STATE MACHINE
// =============================================================================

func TestStateTransitions(t *testing.T) {
	c, _ := newTestController(t)
	assert.Equal(t, Idle, c.State())

	turn := startTurn(t, c, "hi")
	assert.Equal(t, AwaitingFirstByte, c.State())
	assert.True(t, c.TurnInFlight())

	require.NoError(t, turn.Feed([]byte(lineHel)))
	assert.Equal(t, Streaming, c.State())

	require.NoError(t, turn.Feed([]byte(lineEnd)))
	assert.Equal(t, Idle, c.State())
	assert.True(t, turn.Done())
}

func TestEmptyContentStillEmitsOneEvent(t *testing.T) {
	c, rec := newTestController(t)
	turn := startTurn(t, c, "hi")

	require.NoError(t, turn.Feed([]byte(`{"type":"chunk","content":""}`+"\n")))

	assert.Equal(t, []render.Event{render.TextUpdated{TurnID: turn.ID(), Text: ""}}, rec.Events())
	assert.Equal(t, Streaming, c.State())
}

func TestStartTurnRejectedWhileInFlight(t *testing.T) {
	c, rec := newTestController(t)
	turn := startTurn(t, c, "first")
	require.NoError(t, turn.Feed([]byte(lineHel)))
	before := c.Snapshot()
	eventsBefore := len(rec.Events())

	second, err := c.StartTurn("second")
	assert.Nil(t, second)
	assert.True(t, errors.Is(err, ErrInvalidOperation))

	assert.Equal(t, before, c.Snapshot())
	assert.Len(t, rec.Events(), eventsBefore)
	assert.Equal(t, "Hel", turn.Text())
}

func TestStartTurnRejectsBlankMessage(t *testing.T) {
	c, _ := newTestController(t)
	for _, msg := range []string{"", "   ", "\n\t"} {
		_, err := c.StartTurn(msg)
		assert.ErrorIs(t, err, ErrInvalidOperation)
	}
	assert.Equal(t, Idle, c.State())
	assert.False(t, c.TurnInFlight())
}

func TestStartTurnTrimsMessage(t *testing.T) {
	c, _ := newTestController(t)
	turn := startTurn(t, c, "  hello  ")
	assert.Equal(t, "hello", turn.Message())
}

func TestTurnSucceedsAfterResolution(t *testing.T) {
	tests := []struct {
		name   string
		stream string
	}{
		{"finalized", lineHel + lineEnd},
		{"server error", lineHel + `{"type":"error","content":"boom"}` + "\n"},
		{"protocol violation", `{"type":"end"}` + "\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newTestController(t)
			turn := startTurn(t, c, "hi")
			require.NoError(t, turn.Feed([]byte(tt.stream)))

			events := rec.Events()
			require.NotEmpty(t, events)
			assert.False(t, c.TurnInFlight())

			_, err := c.StartTurn("next")
			assert.NoError(t, err)
		})
	}
}

func TestIdentityAssignedOnce(t *testing.T) {
	c, rec := newTestController(t)

	for i := 0; i < 3; i++ {
		turn := startTurn(t, c, "hi")
		require.NoError(t, turn.Feed([]byte(lineHel+lineEnd)))
	}

	count := 0
	for _, e := range rec.Events() {
		if _, ok := e.(render.ConversationIdentityAssigned); ok {
			count++
		}
	}
	assert.Equal(t, 1, count)
	assert.Equal(t, "c1", c.ConversationID())
}

func TestIdentityNotAssignedOnFailure(t *testing.T) {
	c, rec := newTestController(t)
	turn := startTurn(t, c, "hi")
	require.NoError(t, turn.Feed([]byte(`{"type":"error","content":"nope"}`+"\n")))

	for _, e := range rec.Events() {
		_, ok := e.(render.ConversationIdentityAssigned)
		assert.False(t, ok)
	}
	assert.Empty(t, c.ConversationID())

	turn = startTurn(t, c, "again")
	require.NoError(t, turn.Feed([]byte(lineEnd)))
	assert.Contains(t, rec.Strings(), `ConversationIdentityAssigned("c1")`)
}

func TestConversationIDIsImmutable(t *testing.T) {
	c, _ := newTestController(t)
	turn := startTurn(t, c, "hi")
	require.NoError(t, turn.Feed([]byte(lineEnd)))

	turn = startTurn(t, c, "again")
	require.NoError(t, turn.Feed([]byte(`{"type":"end","convo_id":"other"}`+"\n")))
	assert.Equal(t, "c1", c.ConversationID())
}

func TestProtocolViolation(t *testing.T) {
	c, rec := newTestController(t)
	turn := startTurn(t, c, "hi")
	require.NoError(t, turn.Feed([]byte(lineHel+`{"type":"end","convo_id":""}`+"\n")))

	assert.Equal(t, []string{
		`TextUpdated("Hel")`,
		`TurnFailed("server ended the turn without a conversation id")`,
	}, rec.Strings())
	assert.Empty(t, c.ConversationID())
	assert.Equal(t, Idle, c.State())
}

func TestErrorIsTerminalForTurn(t *testing.T) {
	c, rec := newTestController(t)
	turn := startTurn(t, c, "hi")

	stream := lineHel +
		`{"type":"error","content":"tool failed"}` + "\n" +
		`{"type":"chunk","content":" more"}` + "\n" +
		lineEnd
	require.NoError(t, turn.Feed([]byte(stream)))
	turn.Close()

	assert.Equal(t, []string{
		`TextUpdated("Hel")`,
		`TurnFailed("tool failed")`,
	}, rec.Strings())
	assert.Empty(t, c.ConversationID())
}

func TestUndecodableLineAfterResolutionIsDropped(t *testing.T) {
	c, rec := newTestController(t)
	turn := startTurn(t, c, "hi")

	stream := `{"type":"error","content":"boom"}` + "\n" +
		"garbage\n" +
		lineHel
	require.NoError(t, turn.Feed([]byte(stream)))
	turn.Close()

	assert.Equal(t, []string{`TurnFailed("boom")`}, rec.Strings())
	assert.Zero(t, turn.Stats().DecodeFailures)
}

func TestStaleTurnFeedIsIgnored(t *testing.T) {
	c, rec := newTestController(t)
	turn := startTurn(t, c, "hi")
	require.NoError(t, turn.Feed([]byte(lineEnd)))
	n := len(rec.Events())

	assert.NoError(t, turn.Feed([]byte(lineHel)))
	turn.Close()
	assert.Len(t, rec.Events(), n)
}

func TestOnFrameWithoutTurn(t *testing.T) {
	c, _ := newTestController(t)
	err := c.OnFrame(frame.Content("x"))
	assert.ErrorIs(t, err, ErrInvalidOperation)
}

func TestOnStreamClosedWhenIdleIsNoop(t *testing.T) {
	c, rec := newTestController(t)
	c.OnStreamClosed()
	assert.Empty(t, rec.Events())
}

func TestTurnFail(t *testing.T) {
	c, rec := newTestController(t)
	turn := startTurn(t, c, "hi")

	turn.Fail("Bot is not ready yet.")
	assert.Equal(t, []string{`TurnFailed("Bot is not ready yet.")`}, rec.Strings())
	assert.False(t, c.TurnInFlight())

	turn.Fail("again")
	assert.Len(t, rec.Events(), 1)
}

func TestTurnCloseDiscardsFragment(t *testing.T) {
	c, rec := newTestController(t)
	turn := startTurn(t, c, "hi")
	require.NoError(t, turn.Feed([]byte(lineHel+`{"type":"end","convo_id":"c1"}`)))
	turn.Close()

	assert.Equal(t, []string{
		`TextUpdated("Hel")`,
		`TurnFailed("connection closed unexpectedly")`,
	}, rec.Strings())
	assert.Equal(t, len(`{"type":"end","convo_id":"c1"}`), turn.Stats().Discarded)
	assert.Empty(t, c.ConversationID())
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

func TestStartNewConversation(t *testing.T) {
	c, rec := newTestController(t)
	turn := startTurn(t, c, "hi")
	require.NoError(t, turn.Feed([]byte(lineHel+lineEnd)))

	require.NoError(t, c.StartNewConversation())
	assert.Empty(t, c.ConversationID())
	assert.Empty(t, c.Transcript())
	assert.Equal(t, "ConversationCleared()", rec.Strings()[len(rec.Strings())-1])

	rec.Reset()
	turn = startTurn(t, c, "fresh")
	require.NoError(t, turn.Feed([]byte(`{"type":"end","convo_id":"c2"}`+"\n")))
	assert.Equal(t, "c2", c.ConversationID())
	assert.Contains(t, rec.Strings(), `ConversationIdentityAssigned("c2")`)
}

func TestStartNewConversationRejectedWhileInFlight(t *testing.T) {
	c, _ := newTestController(t)
	startTurn(t, c, "hi")

	err := c.StartNewConversation()
	assert.ErrorIs(t, err, ErrInvalidOperation)
	assert.True(t, c.TurnInFlight())
}

func TestResumeConversation(t *testing.T) {
	c, rec := newTestController(t)
	prior := []model.Message{
		model.NewUserMessage("what is go?"),
		model.NewAssistantMessage("a language"),
	}

	require.NoError(t, c.ResumeConversation("c7", prior))
	assert.Equal(t, []string{
		"ConversationCleared()",
		`MessageReplayed(user, "what is go?")`,
		`MessageReplayed(assistant, "a language")`,
	}, rec.Strings())
	assert.Equal(t, "c7", c.ConversationID())
	assert.False(t, c.TurnInFlight())
	assert.Equal(t, Idle, c.State())
	assert.Len(t, c.Transcript(), 2)
	assert.Equal(t, "a language", c.Snapshot().LastAnswer)

	rec.Reset()
	turn := startTurn(t, c, "more")
	require.NoError(t, turn.Feed([]byte(lineHel+`{"type":"end","convo_id":"c7"}`+"\n")))
	assert.NotContains(t, rec.Strings(), `ConversationIdentityAssigned("c7")`)
	assert.Equal(t, "c7", c.ConversationID())
}

func TestResumeConversationGuards(t *testing.T) {
	c, _ := newTestController(t)
	assert.ErrorIs(t, c.ResumeConversation("  ", nil), ErrInvalidOperation)

	startTurn(t, c, "hi")
	assert.ErrorIs(t, c.ResumeConversation("c1", nil), ErrInvalidOperation)
	assert.Empty(t, c.ConversationID())
}

func TestTranscript(t *testing.T) {
	c, _ := newTestController(t)
	turn := startTurn(t, c, "hi")
	require.NoError(t, turn.Feed([]byte(lineHel+lineLo+lineEnd)))

	turn = startTurn(t, c, "again")
	turn.Fail("boom")

	tr := c.Transcript()
	require.Len(t, tr, 4)
	assert.Equal(t, model.RoleUser, tr[0].Role)
	assert.Equal(t, "Hello", tr[1].Content)
	assert.False(t, tr[1].Failed)
	assert.True(t, tr[3].Failed)

	snap := c.Snapshot()
	assert.Equal(t, "Hello", snap.LastAnswer)
	assert.Equal(t, 4, snap.TranscriptLen)
}

func TestSnapshotDuringTurn(t *testing.T) {
	c, _ := newTestController(t)
	turn := startTurn(t, c, "hi")
	require.NoError(t, turn.Feed([]byte(lineHel)))

	snap := c.Snapshot()
	assert.Equal(t, Streaming, snap.State)
	assert.True(t, snap.TurnInFlight)
	assert.Equal(t, turn.ID(), snap.TurnID)
	assert.Equal(t, "Hel", snap.PartialText)
}

func TestSessionsAreIndependent(t *testing.T) {
	a, _ := newTestController(t)
	b, _ := newTestController(t)

	ta := startTurn(t, a, "hi")
	require.NoError(t, ta.Feed([]byte(lineEnd)))

	assert.Equal(t, "c1", a.ConversationID())
	assert.Empty(t, b.ConversationID())
	_, err := b.StartTurn("hello")
	assert.NoError(t, err)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "awaiting_first_byte", AwaitingFirstByte.String())
	assert.Equal(t, "streaming", Streaming.String())
}
