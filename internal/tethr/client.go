// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tethr provides the HTTP client for the tethr chat service.
package tethr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/jeranaias/tethr-tui/internal/logging"
	"github.com/jeranaias/tethr-tui/internal/model"
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the tethr client.
type ClientConfig struct {
	// BaseURL is the server base URL (default: http://127.0.0.1:8000)
	BaseURL string

	// Timeout for non-streaming requests (default: 30s)
	Timeout time.Duration

	// StreamTimeout bounds the wait for the chat response headers (default: 30s).
	// The body itself is only bounded by the caller's context.
	StreamTimeout time.Duration

	// RequestsPerSecond limits outbound requests (default: 2, zero disables)
	RequestsPerSecond float64

	// Burst is the limiter bucket size (default: 4)
	Burst int

	// UserAgent is sent with every request.
	UserAgent string
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:           "http://127.0.0.1:8000",
		Timeout:           30 * time.Second,
		StreamTimeout:     30 * time.Second,
		RequestsPerSecond: 2,
		Burst:             4,
		UserAgent:         "tethr-tui",
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the tethr chat service.
//
// The Client is safe for concurrent use.
//
// Example:
//
//	client := tethr.NewClient()
//	id, err := client.Authenticate(ctx, "Naveen", password)
//	body, err := client.OpenChat(ctx, tethr.NewChatRequest(*id, "hello", ""))
//	defer body.Close()
type Client struct {
	config       *ClientConfig
	httpClient   *http.Client
	streamClient *http.Client
	limiter      *rate.Limiter
	log          *slog.Logger
}

// NewClient creates a new client with default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a new client with custom configuration.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	defaults := DefaultConfig()

	// Fill in defaults for any zero values
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Timeout == 0 {
		config.Timeout = defaults.Timeout
	}
	if config.StreamTimeout == 0 {
		config.StreamTimeout = defaults.StreamTimeout
	}
	if config.Burst <= 0 {
		config.Burst = defaults.Burst
	}
	if config.UserAgent == "" {
		config.UserAgent = defaults.UserAgent
	}

	limit := rate.Inf
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = config.StreamTimeout

	return &Client{
		config:       config,
		httpClient:   &http.Client{Timeout: config.Timeout},
		streamClient: &http.Client{Transport: transport},
		limiter:      rate.NewLimiter(limit, config.Burst),
		log:          logging.With("component", "tethr"),
	}
}

// GetConfig returns the client configuration.
func (c *Client) GetConfig() *ClientConfig {
	return c.config
}

// BaseURL returns the server address the client talks to.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// =============================================================================
// AUTH
// =============================================================================

// Authenticate checks name and password with the server. A rejected login
// returns an error matching ErrUnauthorized whose message is the server's
// detail.
func (c *Client) Authenticate(ctx context.Context, name, password string) (*model.Identity, error) {
	resp, err := c.do(ctx, c.httpClient, http.MethodPost, "/api/auth", AuthRequest{Name: name, Password: password})
	if err != nil {
		return nil, err
	}
	defer drainAndClose(resp.Body)

	var result AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode auth response", Cause: err}
	}
	if result.Username == "" {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "auth response without username"}
	}

	return &model.Identity{Name: result.Username, Role: result.Role}, nil
}

// =============================================================================
// CHAT
// =============================================================================

// OpenChat sends a chat message and returns the streaming response body.
// The caller must close it. Frames are newline-delimited JSON, see package
// frame.
func (c *Client) OpenChat(ctx context.Context, req ChatRequest) (io.ReadCloser, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, &ClientError{Type: ErrTypeUnknown, Message: "message is empty"}
	}
	if req.Username == "" {
		return nil, &ClientError{Type: ErrTypeUnauthorized, Message: "not logged in"}
	}

	resp, err := c.do(ctx, c.streamClient, http.MethodPost, "/api/chat", req)
	if err != nil {
		return nil, err
	}
	c.log.Debug("chat stream opened",
		"content_type", resp.Header.Get("Content-Type"),
		"conversation", derefString(req.ConvoID))
	return resp.Body, nil
}

// =============================================================================
// HISTORY
// =============================================================================

// ListConversations returns the user's conversations, newest first.
func (c *Client) ListConversations(ctx context.Context, username string) ([]model.ConversationSummary, error) {
	path := "/api/conversations/" + url.PathEscape(username)
	resp, err := c.do(ctx, c.httpClient, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer drainAndClose(resp.Body)

	var result []model.ConversationSummary
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode conversation list", Cause: err}
	}
	return result, nil
}

// GetConversation returns the messages of one conversation. The server
// answers an unknown id with an empty list.
func (c *Client) GetConversation(ctx context.Context, username, conversationID string) ([]HistoryMessage, error) {
	path := "/api/conversation/" + url.PathEscape(username) + "/" + url.PathEscape(conversationID)
	resp, err := c.do(ctx, c.httpClient, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer drainAndClose(resp.Body)

	var result []HistoryMessage
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode conversation", Cause: err}
	}
	return result, nil
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

// do sends one request and maps transport failures and non-2xx statuses to
// ClientErrors. On success the caller owns resp.Body.
func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, body any) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, transportError(err)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, &ClientError{Type: ErrTypeUnknown, Message: "failed to marshal request", Cause: err}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json, application/x-ndjson")
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		c.log.Debug("request failed", "method", method, "path", path, "request_id", requestID, "error", err)
		return nil, transportError(err)
	}
	c.log.Debug("request", "method", method, "path", path, "status", resp.StatusCode,
		"request_id", requestID, "elapsed", time.Since(start))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer drainAndClose(resp.Body)
	return nil, statusError(resp)
}

func transportError(err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &ClientError{Type: ErrTypeTimeout, Message: "request timed out", Cause: err}
	case errors.As(err, &netErr) && netErr.Timeout():
		return &ClientError{Type: ErrTypeTimeout, Message: "request timed out", Cause: err}
	case errors.Is(err, context.Canceled):
		return &ClientError{Type: ErrTypeConnection, Message: "request canceled", Cause: err}
	default:
		return &ClientError{Type: ErrTypeConnection, Message: "cannot reach the tethr server", Cause: err}
	}
}

func statusError(resp *http.Response) error {
	var eb errorBody
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(data, &eb)
	detail := eb.message()

	clientErr := &ClientError{Status: resp.StatusCode}
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		clientErr.Type = ErrTypeUnauthorized
		clientErr.Message = orDefault(detail, "Invalid credentials")
	case http.StatusNotFound:
		clientErr.Type = ErrTypeNotFound
		clientErr.Message = orDefault(detail, "not found")
	case http.StatusServiceUnavailable:
		clientErr.Type = ErrTypeUnavailable
		clientErr.Message = orDefault(detail, "service unavailable")
	default:
		clientErr.Type = ErrTypeInvalidResponse
		if detail != "" {
			clientErr.Message = fmt.Sprintf("server returned %s: %s", resp.Status, detail)
		} else {
			clientErr.Message = "server returned " + resp.Status
		}
	}
	return clientErr
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Helper to drain response body
func drainAndClose(r io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(r, 64<<10))
	r.Close()
}
