// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tethr

import (
	"encoding/json"
	"strings"

	"github.com/jeranaias/tethr-tui/internal/model"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// AuthRequest is the body of POST /api/auth.
type AuthRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// UserInfo describes the sender of a chat message.
type UserInfo struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// ChatRequest is the body of POST /api/chat. ConvoID is nil for a fresh
// conversation and encodes as null.
type ChatRequest struct {
	Message  string   `json:"message"`
	Username string   `json:"username"`
	ConvoID  *string  `json:"convo_id"`
	UserInfo UserInfo `json:"user_info"`
}

// NewChatRequest builds a chat request for id. An empty conversationID
// starts a new conversation.
func NewChatRequest(id model.Identity, message, conversationID string) ChatRequest {
	req := ChatRequest{
		Message:  message,
		Username: id.Name,
		UserInfo: UserInfo{Name: id.Name, Role: id.Role},
	}
	if conversationID != "" {
		req.ConvoID = &conversationID
	}
	return req
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// AuthResponse is returned by a successful login.
type AuthResponse struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// HistoryMessage is one prior message of a stored conversation.
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToMessages converts history entries to transcript messages.
func ToMessages(history []HistoryMessage) []model.Message {
	out := make([]model.Message, 0, len(history))
	for _, h := range history {
		out = append(out, model.Message{Role: model.ParseRole(h.Role), Content: h.Content})
	}
	return out
}

// errorBody is the error shape produced by the server. detail is usually a
// string but validation errors carry a list.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

func (b errorBody) message() string {
	if len(b.Detail) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(b.Detail, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(b.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return string(b.Detail)
}
