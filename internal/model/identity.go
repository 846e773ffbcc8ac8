// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "strings"

// Identity is the authenticated user as returned by the auth endpoint and
// kept in the local store between runs.
type Identity struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// Valid reports whether the identity names a user.
func (id Identity) Valid() bool {
	return strings.TrimSpace(id.Name) != ""
}

func (id Identity) String() string {
	if id.Role == "" {
		return id.Name
	}
	return id.Name + " (" + id.Role + ")"
}

// ConversationSummary is one entry of a user's conversation list.
type ConversationSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}
