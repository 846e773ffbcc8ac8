// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package internal contains race detection tests that exercise several
// packages together.
//
// Run with: go test -race -v ./internal/...
package internal

import (
	"context"
	"fmt"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/tethr-tui/internal/config"
	"github.com/jeranaias/tethr-tui/internal/model"
	"github.com/jeranaias/tethr-tui/internal/render"
	"github.com/jeranaias/tethr-tui/internal/server"
	"github.com/jeranaias/tethr-tui/internal/session"
	"github.com/jeranaias/tethr-tui/internal/storage"
	"github.com/jeranaias/tethr-tui/internal/tethr"
)

// =============================================================================
// TEST CONFIGURATION
// =============================================================================

const (
	// Number of concurrent goroutines for race tests
	raceConcurrency = 50
	// Number of iterations per goroutine
	raceIterations = 20
	// Timeout for race tests
	raceTimeout = 30 * time.Second
)

// =============================================================================
// CONFIG CONCURRENCY TESTS
// =============================================================================

// TestConcurrency_ConfigGlobalAccess reads the global config while other
// goroutines replace it, as the config watcher does under the TUI.
func TestConcurrency_ConfigGlobalAccess(t *testing.T) {
	t.Setenv("TETHR_HOME", t.TempDir())
	config.ResetGlobalForTesting()
	t.Cleanup(config.ResetGlobalForTesting)

	ctx, cancel := context.WithTimeout(context.Background(), raceTimeout)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < raceConcurrency; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < raceIterations && ctx.Err() == nil; j++ {
				cfg := config.Global()
				_ = cfg.Server.URL
				_ = cfg.Stream.IdleTimeout()
				_ = cfg.UI.Markdown
			}
		}()
		go func(n int) {
			defer wg.Done()
			for j := 0; j < raceIterations && ctx.Err() == nil; j++ {
				cfg := config.Default()
				cfg.Server.Burst = n + j
				config.SetGlobal(cfg)
			}
		}(i)
	}
	wg.Wait()
	assert.NotNil(t, config.Global())
}

// TestConcurrency_ConfigGetSet sets keys on private clones concurrently.
func TestConcurrency_ConfigGetSet(t *testing.T) {
	base := config.Default()

	var wg sync.WaitGroup
	errs := make(chan error, raceConcurrency)
	for i := 0; i < raceConcurrency; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			cfg := base.Clone()
			want := fmt.Sprintf("%d", n+1)
			if err := cfg.Set("server.burst", want); err != nil {
				errs <- err
				return
			}
			got, err := cfg.Get("server.burst")
			if err != nil {
				errs <- err
				return
			}
			if fmt.Sprint(got) != want {
				errs <- fmt.Errorf("burst = %v, want %s", got, want)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
	assert.Equal(t, config.Default().Server.Burst, base.Server.Burst)
}

// =============================================================================
// CONVERSATION CONCURRENCY TESTS
// =============================================================================

// TestConcurrency_ParallelConversations runs many users' sessions against
// one server. Each goroutine owns its controller, as the TUI and CLI do.
func TestConcurrency_ParallelConversations(t *testing.T) {
	srv := server.New(server.Config{Responder: server.EchoResponder{ChunkRunes: 3}, RateLimit: 100000})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	client := tethr.NewClientWithConfig(&tethr.ClientConfig{BaseURL: ts.URL, Timeout: 10 * time.Second})

	const turns = 3
	ctx, cancel := context.WithTimeout(context.Background(), raceTimeout)
	defer cancel()

	ids := make([]string, raceConcurrency)
	var wg sync.WaitGroup
	errs := make(chan error, raceConcurrency)
	for i := 0; i < raceConcurrency; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			rec := &render.Recorder{}
			ctrl := session.NewController(rec)
			id := model.Identity{Name: "demo", Role: "Developer"}

			for j := 0; j < turns; j++ {
				turn, err := ctrl.StartTurn(fmt.Sprintf("user %d turn %d", n, j))
				if err != nil {
					errs <- err
					return
				}
				body, err := client.OpenChat(ctx, tethr.NewChatRequest(id, turn.Message(), ctrl.ConversationID()))
				if err != nil {
					turn.Fail(tethr.Describe(err))
					errs <- err
					return
				}
				if err := session.Stream(ctx, turn, body, session.DefaultStreamOptions()); err != nil {
					errs <- err
					return
				}
			}

			assigned := 0
			for _, e := range rec.Events() {
				if _, ok := e.(render.ConversationIdentityAssigned); ok {
					assigned++
				}
			}
			if assigned != 1 {
				errs <- fmt.Errorf("session %d: %d identity events", n, assigned)
			}
			ids[n] = ctrl.ConversationID()
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	seen := make(map[string]bool)
	for _, id := range ids {
		require.NotEmpty(t, id)
		assert.False(t, seen[id], "conversation id reused: %s", id)
		seen[id] = true
		assert.Len(t, srv.Memory().History("demo", id), 2*turns)
	}
	assert.Len(t, srv.Memory().List("demo"), raceConcurrency)
	assert.EqualValues(t, raceConcurrency*turns, srv.Stats().Turns)
}

// =============================================================================
// STORAGE CONCURRENCY TESTS
// =============================================================================

// TestConcurrency_StoreAccess caches and reads conversation lists of many
// users through one store.
func TestConcurrency_StoreAccess(t *testing.T) {
	store, err := storage.Open(filepath.Join(t.TempDir(), "tethr.db"))
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, raceConcurrency)
	for i := 0; i < raceConcurrency; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			user := fmt.Sprintf("user-%d", n)
			for j := 0; j < 5; j++ {
				list := []model.ConversationSummary{{ID: fmt.Sprintf("c-%d-%d", n, j), Title: user}}
				if err := store.CacheConversations(ctx, user, list); err != nil {
					errs <- err
					return
				}
				got, _, err := store.CachedConversations(ctx, user)
				if err != nil {
					errs <- err
					return
				}
				if len(got) != 1 || got[0].Title != user {
					errs <- fmt.Errorf("%s read %v", user, got)
					return
				}
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

// =============================================================================
// BENCHMARKS
// =============================================================================

func BenchmarkConcurrent_ConfigGlobal(b *testing.B) {
	config.SetGlobal(config.Default())
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = config.Global().Server.URL
		}
	})
}
