// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// # Key Types
//
//   - Message: one transcript entry with role, content and timestamp
//   - Role: sender enumeration (user, assistant, system)
//   - Identity: the logged-in user (name and role)
//   - ConversationSummary: id and title of a stored conversation
//
// Roles arriving from the history endpoint are normalised with ParseRole so
// the renderer only has to deal with the three known values.
package model
