// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/tethr-tui/internal/model"
	"github.com/jeranaias/tethr-tui/internal/render"
)

// =============================================================================
// MESSAGES
// =============================================================================

// EventMsg wraps a render event from the session controller.
type EventMsg struct {
	Event render.Event
}

// TurnDoneMsg is posted after the stream of a turn has been fully consumed
// and every event of the turn has been posted.
type TurnDoneMsg struct {
	TurnID string
	Err    error
}

// HistoryMsg carries the user's conversation list.
type HistoryMsg struct {
	Conversations []model.ConversationSummary
	Cached        bool
	Err           error
}

// ConversationMsg carries the messages of a conversation to resume.
type ConversationMsg struct {
	ConversationID string
	Messages       []model.Message
	Err            error
}

// SettingsMsg applies display settings changed while the program runs,
// typically from a reloaded config file.
type SettingsMsg struct {
	Markdown  bool
	ShowStats bool
}

// mailMsg delivers everything posted to the mailbox since the last delivery.
type mailMsg []tea.Msg

// =============================================================================
// MAILBOX
// =============================================================================

// mailbox carries messages from the stream goroutine and the session sink
// to the update loop. Posting never blocks, so the controller may emit
// events from inside Update without deadlocking the program.
type mailbox struct {
	mu     sync.Mutex
	queue  []tea.Msg
	notify chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{notify: make(chan struct{}, 1)}
}

// post appends msg and wakes the waiting command.
func (b *mailbox) post(msg tea.Msg) {
	b.mu.Lock()
	b.queue = append(b.queue, msg)
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// take removes and returns everything queued, in posting order.
func (b *mailbox) take() []tea.Msg {
	b.mu.Lock()
	defer b.mu.Unlock()
	msgs := b.queue
	b.queue = nil
	return msgs
}

// wait returns a command that blocks until something is posted.
func (b *mailbox) wait() tea.Cmd {
	return func() tea.Msg {
		<-b.notify
		return mailMsg(b.take())
	}
}

// Render implements render.Sink.
func (b *mailbox) Render(e render.Event) {
	b.post(EventMsg{Event: e})
}
