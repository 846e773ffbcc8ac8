// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// json_output.go - JSON output support for scripting.
package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/jeranaias/tethr-tui/internal/model"
)

// JSONResponse is the response envelope of every command run with --json.
type JSONResponse struct {
	// Success indicates whether the command completed successfully
	Success bool `json:"success"`

	// Data contains the command-specific response data
	Data any `json:"data"`

	// Error contains the error message if Success is false, null otherwise
	Error *string `json:"error"`

	// Timestamp is the RFC 3339 time the response was generated
	Timestamp string `json:"timestamp"`

	Command string `json:"command,omitempty"`
}

// NewJSONResponse creates a new successful JSON response.
func NewJSONResponse(command string, data any) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates an error JSON response. Data carries the
// error category.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	errStr := err.Error()
	return &JSONResponse{
		Success:   false,
		Data:      errorJSON(err),
		Error:     &errStr,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Print writes the response as indented JSON.
func (r *JSONResponse) Print(w io.Writer) error {
	data, err := marshalIndent(r)
	if err != nil {
		return fmt.Errorf("encode json response: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// =============================================================================
// COMMAND DATA
// =============================================================================

// IdentityData is returned by login and whoami.
type IdentityData struct {
	Name   string `json:"name"`
	Role   string `json:"role"`
	Server string `json:"server"`
}

// AskData is returned by ask.
type AskData struct {
	ConversationID string `json:"conversation_id"`
	Answer         string `json:"answer"`
	Frames         int    `json:"frames"`
	Bytes          int    `json:"bytes"`
	FirstTextMS    int64  `json:"first_text_ms,omitempty"`
}

// HistoryListData is returned by history list.
type HistoryListData struct {
	Conversations []model.ConversationSummary `json:"conversations"`
	Cached        bool                        `json:"cached"`
	FetchedAt     string                      `json:"fetched_at,omitempty"`
}

// HistoryShowData is returned by history show.
type HistoryShowData struct {
	ConversationID string          `json:"conversation_id"`
	Messages       []model.Message `json:"messages"`
}

// ConfigValueData is returned by config get and config path.
type ConfigValueData struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}
