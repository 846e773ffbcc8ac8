// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/tethr-tui/internal/logging"
	"github.com/jeranaias/tethr-tui/internal/model"
	"github.com/jeranaias/tethr-tui/internal/session"
	"github.com/jeranaias/tethr-tui/internal/tethr"
)

// Backend is the part of the tethr client the chat view needs.
// *tethr.Client implements it.
type Backend interface {
	OpenChat(ctx context.Context, req tethr.ChatRequest) (io.ReadCloser, error)
	ListConversations(ctx context.Context, username string) ([]model.ConversationSummary, error)
	GetConversation(ctx context.Context, username, conversationID string) ([]tethr.HistoryMessage, error)
}

// HistoryCache stores conversation lists for offline display.
// *storage.Store implements it.
type HistoryCache interface {
	CacheConversations(ctx context.Context, username string, list []model.ConversationSummary) error
	CachedConversations(ctx context.Context, username string) ([]model.ConversationSummary, time.Time, error)
}

const historyTimeout = 15 * time.Second

// =============================================================================
// COMMAND CREATORS
// =============================================================================

// runTurnCmd opens the chat stream for req and pumps it into turn. The
// turn's events reach the update loop through the controller sink; the
// closing TurnDoneMsg is posted to the same mailbox so it always arrives
// after them.
//
// The command owns the controller until it posts TurnDoneMsg.
func runTurnCmd(ctx context.Context, backend Backend, turn *session.Turn, req tethr.ChatRequest,
	opts session.StreamOptions, cm *cancelManager, box *mailbox) tea.Cmd {
	return func() tea.Msg {
		defer cm.cancel()

		body, err := backend.OpenChat(ctx, req)
		if err != nil {
			logging.Warn("chat request failed", "turn", turn.ID(), "error", err)
			turn.Fail(tethr.Describe(err))
			box.post(TurnDoneMsg{TurnID: turn.ID(), Err: err})
			return nil
		}

		err = session.Stream(ctx, turn, body, opts)
		box.post(TurnDoneMsg{TurnID: turn.ID(), Err: err})
		return nil
	}
}

// loadHistoryCmd fetches the conversation list, falling back to the cache
// when the server cannot be reached.
func loadHistoryCmd(backend Backend, cache HistoryCache, username string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
		defer cancel()

		list, err := backend.ListConversations(ctx, username)
		if err == nil {
			if cache != nil {
				if cerr := cache.CacheConversations(ctx, username, list); cerr != nil {
					logging.Warn("caching conversations failed", "error", cerr)
				}
			}
			return HistoryMsg{Conversations: list}
		}
		if cache != nil && (tethr.IsConnection(err) || tethr.IsTimeout(err)) {
			cached, _, cerr := cache.CachedConversations(ctx, username)
			if cerr == nil && len(cached) > 0 {
				return HistoryMsg{Conversations: cached, Cached: true}
			}
		}
		return HistoryMsg{Err: err}
	}
}

// loadConversationCmd fetches one conversation for resuming.
func loadConversationCmd(backend Backend, username, conversationID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
		defer cancel()

		history, err := backend.GetConversation(ctx, username, conversationID)
		if err != nil {
			return ConversationMsg{ConversationID: conversationID, Err: err}
		}
		return ConversationMsg{ConversationID: conversationID, Messages: tethr.ToMessages(history)}
	}
}
