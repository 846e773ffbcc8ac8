// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the tethr TUI.
//
// All colors use Lip Gloss AdaptiveColor, so they follow the terminal's
// light or dark background. NewTheme pins the background when the user
// configured ui.theme explicitly.
//
// Status helpers (RenderSuccess, RenderError, ...) always pair the color with
// an ASCII indicator such as [OK] or [X].
package styles
