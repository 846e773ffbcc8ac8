// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"sync"

	"github.com/google/uuid"

	"github.com/jeranaias/tethr-tui/internal/model"
	"github.com/jeranaias/tethr-tui/internal/util"
)

// TitleLength is how many characters of the first message form a
// conversation title.
const TitleLength = 45

type conversation struct {
	id      string
	title   string
	history []model.Message
}

// Memory keeps every user's conversations in process memory. The newest
// conversation is first.
type Memory struct {
	mu    sync.RWMutex
	users map[string][]*conversation
}

// NewMemory creates an empty conversation memory.
func NewMemory() *Memory {
	return &Memory{users: make(map[string][]*conversation)}
}

// Start creates a conversation titled after firstMessage and returns its id.
func (m *Memory) Start(username, firstMessage string) string {
	c := &conversation{
		id:    uuid.NewString(),
		title: util.TruncateRunesNoEllipsis(firstMessage, TitleLength) + "...",
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[username] = append([]*conversation{c}, m.users[username]...)
	return c.id
}

// Append records one exchange. Unknown conversations are ignored.
func (m *Memory) Append(username, id, userMessage, reply string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.find(username, id)
	if c == nil {
		return false
	}
	c.history = append(c.history,
		model.Message{Role: model.RoleUser, Content: userMessage},
		model.Message{Role: model.RoleAssistant, Content: reply},
	)
	return true
}

// History returns the messages of a conversation, empty when unknown.
func (m *Memory) History(username, id string) []model.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c := m.find(username, id)
	if c == nil {
		return []model.Message{}
	}
	out := make([]model.Message, len(c.history))
	copy(out, c.history)
	return out
}

// List returns the user's conversations, newest first.
func (m *Memory) List(username string) []model.ConversationSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	convs := m.users[username]
	out := make([]model.ConversationSummary, 0, len(convs))
	for _, c := range convs {
		out = append(out, model.ConversationSummary{ID: c.id, Title: c.title})
	}
	return out
}

func (m *Memory) find(username, id string) *conversation {
	for _, c := range m.users[username] {
		if c.id == id {
			return c
		}
	}
	return nil
}
