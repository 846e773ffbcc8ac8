// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tethr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/tethr-tui/internal/model"
	"github.com/jeranaias/tethr-tui/internal/render"
	"github.com/jeranaias/tethr-tui/internal/server"
	"github.com/jeranaias/tethr-tui/internal/session"
)

func newBackend(t *testing.T) (*server.Server, *Client) {
	t.Helper()
	srv := server.New(server.Config{Responder: server.EchoResponder{ChunkRunes: 4}, RateLimit: 1000})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, NewClientWithConfig(&ClientConfig{BaseURL: ts.URL + "/", Timeout: 5 * time.Second})
}

// =============================================================================
// AUTH
// =============================================================================

func TestAuthenticate(t *testing.T) {
	_, c := newBackend(t)

	id, err := c.Authenticate(context.Background(), "demo", "demo")
	require.NoError(t, err)
	assert.Equal(t, model.Identity{Name: "demo", Role: "Developer"}, *id)
}

func TestAuthenticateRejected(t *testing.T) {
	_, c := newBackend(t)

	_, err := c.Authenticate(context.Background(), "demo", "nope")
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, "Invalid credentials", err.Error())

	var ce *ClientError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, http.StatusUnauthorized, ce.Status)
}

func TestAuthenticateUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	c := NewClientWithConfig(&ClientConfig{BaseURL: url, Timeout: time.Second})
	_, err := c.Authenticate(context.Background(), "demo", "demo")
	require.Error(t, err)
	assert.True(t, IsConnection(err))
}

// =============================================================================
// CHAT
// =============================================================================

func TestChatEndToEnd(t *testing.T) {
	srv, c := newBackend(t)
	ctx := context.Background()

	id, err := c.Authenticate(ctx, "demo", "demo")
	require.NoError(t, err)

	rec := &render.Recorder{}
	ctrl := session.NewController(rec)

	turn, err := ctrl.StartTurn("hello")
	require.NoError(t, err)

	body, err := c.OpenChat(ctx, NewChatRequest(*id, turn.Message(), ctrl.ConversationID()))
	require.NoError(t, err)
	require.NoError(t, session.Stream(ctx, turn, body, session.DefaultStreamOptions()))

	require.Equal(t, session.Idle, ctrl.State())
	list := srv.Memory().List("demo")
	require.Len(t, list, 1)
	assert.Equal(t, list[0].ID, ctrl.ConversationID())
	assert.Contains(t, turn.Text(), "> hello")

	events := rec.Events()
	require.GreaterOrEqual(t, len(events), 3)
	assert.Equal(t, render.TurnFinalized{TurnID: turn.ID(), ConversationID: list[0].ID}, events[len(events)-2])
	assert.Equal(t, render.ConversationIdentityAssigned{ConversationID: list[0].ID}, events[len(events)-1])

	// The second turn continues the same conversation and announces nothing.
	rec.Reset()
	turn, err = ctrl.StartTurn("again")
	require.NoError(t, err)
	body, err = c.OpenChat(ctx, NewChatRequest(*id, turn.Message(), ctrl.ConversationID()))
	require.NoError(t, err)
	require.NoError(t, session.Stream(ctx, turn, body, session.DefaultStreamOptions()))

	assert.Len(t, srv.Memory().List("demo"), 1)
	for _, e := range rec.Events() {
		_, announced := e.(render.ConversationIdentityAssigned)
		assert.False(t, announced)
	}
}

func TestOpenChatNotReady(t *testing.T) {
	srv, c := newBackend(t)
	srv.SetReady(false)

	_, err := c.OpenChat(context.Background(), NewChatRequest(model.Identity{Name: "demo"}, "hi", ""))
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
	assert.Equal(t, "Bot is not ready yet.", err.Error())
}

func TestOpenChatValidates(t *testing.T) {
	_, c := newBackend(t)

	_, err := c.OpenChat(context.Background(), NewChatRequest(model.Identity{Name: "demo"}, "  ", ""))
	assert.Error(t, err)

	_, err = c.OpenChat(context.Background(), NewChatRequest(model.Identity{}, "hi", ""))
	assert.True(t, IsUnauthorized(err))
}

func TestNewChatRequest(t *testing.T) {
	id := model.Identity{Name: "Naveen", Role: "Engineer"}

	fresh := NewChatRequest(id, "hi", "")
	assert.Nil(t, fresh.ConvoID)
	assert.Equal(t, UserInfo{Name: "Naveen", Role: "Engineer"}, fresh.UserInfo)

	cont := NewChatRequest(id, "hi", "abc")
	require.NotNil(t, cont.ConvoID)
	assert.Equal(t, "abc", *cont.ConvoID)
}

// =============================================================================
// HISTORY
// =============================================================================

func TestHistory(t *testing.T) {
	srv, c := newBackend(t)
	ctx := context.Background()

	convID := srv.Memory().Start("demo", "first question")
	srv.Memory().Append("demo", convID, "first question", "first answer")

	list, err := c.ListConversations(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, []model.ConversationSummary{{ID: convID, Title: "first question..."}}, list)

	history, err := c.GetConversation(ctx, "demo", convID)
	require.NoError(t, err)
	assert.Equal(t, []model.Message{
		{Role: model.RoleUser, Content: "first question"},
		{Role: model.RoleAssistant, Content: "first answer"},
	}, ToMessages(history))

	empty, err := c.GetConversation(ctx, "demo", "does-not-exist")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

// =============================================================================
// ERRORS
// =============================================================================

func TestStatusErrors(t *testing.T) {
	tests := []struct {
		status int
		body   string
		check  func(error) bool
		msg    string
	}{
		{http.StatusForbidden, `{}`, IsUnauthorized, "Invalid credentials"},
		{http.StatusNotFound, `{"detail":"Not Found"}`, IsNotFound, "Not Found"},
		{http.StatusServiceUnavailable, `{"detail":"Bot not available"}`, IsUnavailable, "Bot not available"},
		{http.StatusUnprocessableEntity, `{"detail":[{"msg":"field required"},{"msg":"bad type"}]}`,
			func(err error) bool { return errors.Is(err, ErrInvalidResponse) },
			"server returned 422 Unprocessable Entity: field required; bad type"},
		{http.StatusInternalServerError, `oops`,
			func(err error) bool { return errors.Is(err, ErrInvalidResponse) },
			"server returned 500 Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer ts.Close()

			c := NewClientWithConfig(&ClientConfig{BaseURL: ts.URL})
			_, err := c.ListConversations(context.Background(), "demo")
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error type: %v", err)
			assert.Equal(t, tt.msg, err.Error())
		})
	}
}

func TestRequestHeaders(t *testing.T) {
	var got http.Header
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		fmt.Fprint(w, `[]`)
	}))
	defer ts.Close()

	c := NewClientWithConfig(&ClientConfig{BaseURL: ts.URL, UserAgent: "tethr-test"})
	_, err := c.ListConversations(context.Background(), "demo")
	require.NoError(t, err)
	assert.Equal(t, "tethr-test", got.Get("User-Agent"))
	assert.Len(t, got.Get("X-Request-ID"), 36)
}

func TestCanceledContext(t *testing.T) {
	_, c := newBackend(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ListConversations(ctx, "demo")
	require.Error(t, err)
	assert.True(t, IsConnection(err) || IsTimeout(err))
}
