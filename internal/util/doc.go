// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across tethr.
//
// # Key Functions
//
// String Utilities:
//   - TruncateRunes: UTF-8 safe string truncation with ellipsis
//   - TruncateWidth, PadRight: column-aware layout for terminal tables
//   - SingleLine: collapse multi-line text for one-line previews
//
// File Operations:
//   - WritePrivate, WritePrivateFile: owner-only, crash-safe replacement of
//     files under the tethr home
//
// # Usage
//
//	// Truncate long strings safely for display
//	display := util.TruncateRunes(longText, 50)
//
//	// Replace the config file without exposing a half-written copy
//	err := util.WritePrivateFile(path, data)
package util
