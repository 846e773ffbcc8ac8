// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the chat view of the tethr TUI.

The Model is a Bubble Tea model that acts as the render sink of a
session.Controller. Typing a message starts a turn; a command goroutine
opens the chat stream and pumps it through session.Stream while the
controller's render events travel back to the update loop through a
non-blocking mailbox.

# Key Components

## Model (model.go)

Holds the displayed transcript, the input box, the viewport and the
controller. While a reply streams the controller belongs to the stream
goroutine; the model only reads the events it posts.

## View (view.go)

Header with identity and conversation id, the transcript with completed
replies rendered as markdown through glamour, a status bar and the input.

## Commands (commands.go)

  - /new - start a new conversation
  - /resume <id> - continue an earlier conversation
  - /history - list conversations, from cache when the server is down
  - /help, /quit

# Usage

	m := chat.New(chat.Options{
		Theme:    styles.NewTheme("auto"),
		Backend:  client,
		Cache:    store,
		Identity: id,
		Markdown: true,
	})
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return err
	}
*/
package chat
