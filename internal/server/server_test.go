// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/tethr-tui/internal/frame"
	"github.com/jeranaias/tethr-tui/internal/model"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	srv := New(Config{Responder: EchoResponder{ChunkRunes: 5}, RateLimit: 1000})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func detail(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body struct {
		Detail string `json:"detail"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Detail
}

func frames(t *testing.T, resp *http.Response) []frame.Frame {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out []frame.Frame
	for _, d := range frame.DecodeAll(raw) {
		require.False(t, d.IsFailure(), "unexpected decode failure: %v", d.Failure)
		out = append(out, d.Frame)
	}
	return out
}

// =============================================================================
// AUTH
// =============================================================================

func TestAuth(t *testing.T) {
	_, ts := newTestServer(t)

	resp := post(t, ts.URL+"/api/auth", `{"name":"demo","password":"demo"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body authResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "demo", body.Username)
	assert.Equal(t, "Developer", body.Role)
	assert.NotEmpty(t, resp.Header.Get("X-Content-Type-Options"))
}

func TestAuthRejectsBadCredentials(t *testing.T) {
	_, ts := newTestServer(t)

	for _, body := range []string{
		`{"name":"demo","password":"wrong"}`,
		`{"name":"nobody","password":"demo"}`,
	} {
		resp := post(t, ts.URL+"/api/auth", body)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, DetailInvalidCredentials, detail(t, resp))
	}
}

func TestAuthRejectsMalformedBody(t *testing.T) {
	_, ts := newTestServer(t)
	resp := post(t, ts.URL+"/api/auth", `{not json`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

// =============================================================================
// CHAT
// =============================================================================

func TestChatStreamsFramesAndEnds(t *testing.T) {
	srv, ts := newTestServer(t)

	resp := post(t, ts.URL+"/api/chat",
		`{"message":"hello there","username":"demo","convo_id":null,"user_info":{"name":"demo","role":"Developer"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/x-ndjson", resp.Header.Get("Content-Type"))

	got := frames(t, resp)
	require.GreaterOrEqual(t, len(got), 2)

	var text strings.Builder
	for _, f := range got[:len(got)-1] {
		require.Equal(t, frame.KindContent, f.Kind())
		text.WriteString(f.Text())
	}
	assert.Contains(t, text.String(), "Hi **demo** (Developer)")
	assert.Contains(t, text.String(), "> hello there")

	last := got[len(got)-1]
	require.Equal(t, frame.KindTurnEnd, last.Kind())
	id := last.ConversationID()
	require.NotEmpty(t, id)

	list := srv.Memory().List("demo")
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)
	assert.Equal(t, "hello there...", list[0].Title)

	history := srv.Memory().History("demo", id)
	require.Len(t, history, 2)
	assert.Equal(t, model.RoleUser, history[0].Role)
	assert.Equal(t, text.String(), history[1].Content)
}

func TestChatContinuesConversation(t *testing.T) {
	srv, ts := newTestServer(t)

	first := frames(t, post(t, ts.URL+"/api/chat", `{"message":"one","username":"demo","convo_id":null}`))
	id := first[len(first)-1].ConversationID()

	second := frames(t, post(t, ts.URL+"/api/chat", `{"message":"two","username":"demo","convo_id":"`+id+`"}`))
	assert.Equal(t, id, second[len(second)-1].ConversationID())

	var text strings.Builder
	for _, f := range second {
		text.WriteString(f.Text())
	}
	assert.Contains(t, text.String(), "1 earlier exchange")
	assert.Len(t, srv.Memory().History("demo", id), 4)
	assert.Len(t, srv.Memory().List("demo"), 1)
}

func TestChatResponderErrorSendsErrorFrameThenEnd(t *testing.T) {
	srv, ts := newTestServer(t)
	srv.WithResponder(ResponderFunc(func(ctx context.Context, p Prompt, emit func(string) error) error {
		if err := emit("partial"); err != nil {
			return err
		}
		return errors.New("model crashed")
	}))

	got := frames(t, post(t, ts.URL+"/api/chat", `{"message":"hi","username":"demo","convo_id":null}`))
	require.Len(t, got, 3)
	assert.Equal(t, frame.KindContent, got[0].Kind())
	assert.Equal(t, frame.KindTurnError, got[1].Kind())
	assert.Equal(t, "model crashed", got[1].ErrorMessage())
	assert.Equal(t, frame.KindTurnEnd, got[2].Kind())
	assert.Equal(t, int64(1), srv.Stats().FailedTurns)
}

func TestChatNotReady(t *testing.T) {
	srv, ts := newTestServer(t)
	srv.SetReady(false)

	resp := post(t, ts.URL+"/api/chat", `{"message":"hi","username":"demo","convo_id":null}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, DetailNotReady, detail(t, resp))

	resp = post(t, ts.URL+"/api/chat", `{"message":"hi","username":"demo","convo_id":null}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestChatRejectsBlankMessage(t *testing.T) {
	_, ts := newTestServer(t)
	resp := post(t, ts.URL+"/api/chat", `{"message":"   ","username":"demo","convo_id":null}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

func TestConversationEndpoints(t *testing.T) {
	srv, ts := newTestServer(t)
	id := srv.Memory().Start("demo", "what is the meaning of life, the universe and everything")
	srv.Memory().Append("demo", id, "q", "a")

	resp, err := http.Get(ts.URL + "/api/conversations/demo")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list []model.ConversationSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, "what is the meaning of life, the universe and...", list[0].Title)

	resp2, err := http.Get(ts.URL + "/api/conversation/demo/" + id)
	require.NoError(t, err)
	defer resp2.Body.Close()

	var msgs []map[string]string
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&msgs))
	assert.Equal(t, []map[string]string{
		{"role": "user", "content": "q"},
		{"role": "assistant", "content": "a"},
	}, msgs)
}

func TestConversationUnknownIsEmpty(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/conversation/demo/missing")
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(raw))

	resp2, err := http.Get(ts.URL + "/api/conversations/nobody")
	require.NoError(t, err)
	defer resp2.Body.Close()
	raw, err = io.ReadAll(resp2.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(raw))
}

// =============================================================================
// HEALTH, STATS, LIFECYCLE
// =============================================================================

func TestHealth(t *testing.T) {
	srv, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var h HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&h))
	assert.Equal(t, "ok", h.Status)
	assert.True(t, h.Ready)

	srv.SetReady(false)
	resp2, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&h))
	assert.Equal(t, "degraded", h.Status)
}

func TestStatsCountsRequests(t *testing.T) {
	srv, ts := newTestServer(t)
	for i := 0; i < 3; i++ {
		resp, err := http.Get(ts.URL + "/health")
		require.NoError(t, err)
		resp.Body.Close()
	}
	assert.Equal(t, int64(3), srv.Stats().TotalRequests)
}

func TestServeAndShutdown(t *testing.T) {
	srv := New(Config{Addr: "127.0.0.1:0"})
	assert.NoError(t, srv.Shutdown(context.Background()))

	errc := make(chan error, 1)
	ln, err := newLocalListener()
	require.NoError(t, err)
	go func() { errc <- srv.Serve(ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	assert.NoError(t, <-errc)
}
