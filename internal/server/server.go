// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jeranaias/tethr-tui/internal/frame"
	"github.com/jeranaias/tethr-tui/internal/logging"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultPort is the default port for the development server.
	DefaultPort = 8000

	// MaxMessageLength is the maximum length for a chat message.
	MaxMessageLength = 100000

	// MaxRequestBodySize is the maximum size for request body (1MB).
	MaxRequestBodySize = 1 * 1024 * 1024

	// Version is the server version.
	Version = "0.1.0"
)

// Details returned by the service, matching the production server.
const (
	DetailInvalidCredentials = "Invalid credentials"
	DetailNotReady           = "Bot is not ready yet."
	DetailNotAvailable       = "Bot not available"
)

// ============================================================================
// USERS
// ============================================================================

// User is one account the server accepts.
type User struct {
	Password string
	Role     string
}

// DefaultUsers returns the demo accounts of the development server.
func DefaultUsers() map[string]User {
	return map[string]User{
		"demo":  {Password: "demo", Role: "Developer"},
		"guest": {Password: "guest", Role: "Team Member"},
	}
}

// ============================================================================
// SERVER STATS
// ============================================================================

// ServerStats tracks server usage statistics.
type ServerStats struct {
	TotalRequests int64     `json:"total_requests"`
	Turns         int64     `json:"turns"`
	FailedTurns   int64     `json:"failed_turns"`
	Conversations int64     `json:"conversations"`
	StartTime     time.Time `json:"start_time"`
}

// Uptime returns the server uptime duration.
func (s ServerStats) Uptime() time.Duration {
	return time.Since(s.StartTime)
}

type stats struct {
	requests      atomic.Int64
	turns         atomic.Int64
	failedTurns   atomic.Int64
	conversations atomic.Int64
	start         time.Time
}

func (s *stats) snapshot() ServerStats {
	return ServerStats{
		TotalRequests: s.requests.Load(),
		Turns:         s.turns.Load(),
		FailedTurns:   s.failedTurns.Load(),
		Conversations: s.conversations.Load(),
		StartTime:     s.start,
	}
}

// ============================================================================
// SERVER
// ============================================================================

// Config configures a development server.
type Config struct {
	// Addr is the listen address (default: 127.0.0.1:8000)
	Addr string

	// Users are the accepted accounts (default: DefaultUsers)
	Users map[string]User

	// Responder produces answers (default: EchoResponder)
	Responder Responder

	// RateLimit is the number of requests per minute per client (default: 120)
	RateLimit int
}

// Server is an in-memory implementation of the tethr chat service used for
// local development and tests.
type Server struct {
	addr      string
	router    chi.Router
	server    *http.Server
	memory    *Memory
	limiter   *RateLimiter
	log       *slog.Logger
	stats     stats
	ready     atomic.Bool
	mu        sync.RWMutex
	users     map[string]User
	responder Responder
}

// New creates a Server. It is ready to serve chats immediately.
func New(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = fmt.Sprintf("127.0.0.1:%d", DefaultPort)
	}
	if cfg.Users == nil {
		cfg.Users = DefaultUsers()
	}
	if cfg.Responder == nil {
		cfg.Responder = EchoResponder{ChunkRunes: 8, Delay: 15 * time.Millisecond}
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 120
	}

	s := &Server{
		addr:      cfg.Addr,
		memory:    NewMemory(),
		limiter:   NewRateLimiter(cfg.RateLimit, time.Minute),
		log:       logging.With("component", "server"),
		users:     cfg.Users,
		responder: cfg.Responder,
	}
	s.stats.start = time.Now()
	s.ready.Store(true)
	s.setupRoutes()
	return s
}

// WithResponder replaces the answer generator.
func (s *Server) WithResponder(r Responder) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responder = r
	return s
}

// SetReady toggles whether chats are accepted. A server that is not ready
// answers 503 like a backend whose model failed to load.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Memory returns the conversation memory.
func (s *Server) Memory() *Memory {
	return s.memory
}

// Stats returns a copy of the usage counters.
func (s *Server) Stats() ServerStats {
	return s.stats.snapshot()
}

// Handler returns the routed handler with the full middleware chain.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		RequestLogger(s.log),
		middleware.Recoverer,
		SecurityHeadersMiddleware(),
		RateLimitMiddleware(s.limiter, s.log),
		s.countRequests,
	)

	r.Route("/api", func(api chi.Router) {
		api.Post("/auth", s.handleAuth)
		api.Post("/chat", s.handleChat)
		api.Get("/conversations/{username}", s.handleConversations)
		api.Get("/conversation/{username}/{convoID}", s.handleConversation)
	})
	r.Get("/health", s.handleHealth)
	r.Get("/stats", s.handleStats)

	s.router = r
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.stats.requests.Add(1)
		next.ServeHTTP(w, r)
	})
}

// ============================================================================
// WIRE TYPES
// ============================================================================

type authRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type authResponse struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

type chatRequest struct {
	Message  string  `json:"message"`
	Username string  `json:"username"`
	ConvoID  *string `json:"convo_id"`
	UserInfo struct {
		Name string `json:"name"`
		Role string `json:"role"`
	} `json:"user_info"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Ready   bool   `json:"ready"`
}

// ============================================================================
// HANDLERS
// ============================================================================

// handleAuth handles POST /api/auth.
func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	var req authRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}

	s.mu.RLock()
	user, ok := s.users[req.Name]
	s.mu.RUnlock()

	if !ok || user.Password != req.Password {
		s.log.Warn("failed authentication attempt", "user", req.Name)
		writeDetail(w, http.StatusUnauthorized, DetailInvalidCredentials)
		return
	}

	s.log.Info("user authenticated", "user", req.Name)
	writeJSON(w, http.StatusOK, authResponse{Username: req.Name, Role: user.Role})
}

// handleChat handles POST /api/chat. The answer is streamed as
// newline-delimited frames: chunk frames, optional error frames, and a
// final end frame carrying the conversation id.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		writeDetail(w, http.StatusServiceUnavailable, DetailNotReady)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" || req.Username == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "message and username are required")
		return
	}
	if len(req.Message) > MaxMessageLength {
		writeDetail(w, http.StatusRequestEntityTooLarge, "message too long")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeDetail(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	convoID := ""
	if req.ConvoID != nil {
		convoID = strings.TrimSpace(*req.ConvoID)
	}
	if convoID == "" {
		convoID = s.memory.Start(req.Username, req.Message)
		s.stats.conversations.Add(1)
	}
	history := s.memory.History(req.Username, convoID)

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	send := func(f frame.Frame) error {
		line, err := frame.Marshal(f)
		if err != nil {
			return err
		}
		if _, err := w.Write(line); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	s.mu.RLock()
	responder := s.responder
	s.mu.RUnlock()

	var full strings.Builder
	prompt := Prompt{Message: req.Message, Username: req.Username, Role: req.UserInfo.Role, History: history}
	err := responder.Respond(r.Context(), prompt, func(text string) error {
		full.WriteString(text)
		return send(frame.Content(text))
	})
	s.stats.turns.Add(1)

	if err != nil {
		if r.Context().Err() != nil {
			s.log.Info("client went away", "conversation", convoID)
			return
		}
		s.stats.failedTurns.Add(1)
		s.log.Warn("responder failed", "conversation", convoID, "error", err)
		if sendErr := send(frame.TurnError(err.Error())); sendErr != nil {
			return
		}
	}

	if full.Len() > 0 {
		s.memory.Append(req.Username, convoID, req.Message, full.String())
	}
	_ = send(frame.TurnEnd(convoID))
}

// handleConversations handles GET /api/conversations/{username}.
func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		writeDetail(w, http.StatusServiceUnavailable, DetailNotAvailable)
		return
	}
	writeJSON(w, http.StatusOK, s.memory.List(chi.URLParam(r, "username")))
}

// handleConversation handles GET /api/conversation/{username}/{convoID}.
func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		writeDetail(w, http.StatusServiceUnavailable, DetailNotAvailable)
		return
	}

	history := s.memory.History(chi.URLParam(r, "username"), chi.URLParam(r, "convoID"))
	out := make([]map[string]string, 0, len(history))
	for _, m := range history {
		out = append(out, map[string]string{"role": m.Role.String(), "content": m.Content})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if !s.ready.Load() {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: status, Version: Version, Ready: s.ready.Load()})
}

// handleStats handles GET /stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st := s.stats.snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"stats":          st,
		"uptime_seconds": int64(st.Uptime().Seconds()),
	})
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// ListenAndServe listens on the configured address and serves until
// Shutdown is called.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	srv := s.server
	s.mu.Unlock()

	s.log.Info("server started", "addr", ln.Addr().String(), "version", Version)
	err := srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	srv := s.server
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}

	st := s.stats.snapshot()
	s.log.Info("server shutting down", "requests", st.TotalRequests, "turns", st.Turns)
	return srv.Shutdown(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDetail writes an error in the service's {"detail": "..."} shape.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
