// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/tethr-tui/internal/model"
	"github.com/jeranaias/tethr-tui/internal/util"
)

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// Command describes one slash command.
type Command struct {
	Name  string
	Args  string
	Usage string
}

// Commands lists the slash commands the chat view understands.
var Commands = []Command{
	{Name: "/new", Usage: "start a new conversation"},
	{Name: "/resume", Args: "<id>", Usage: "continue an earlier conversation"},
	{Name: "/history", Usage: "list your conversations"},
	{Name: "/help", Usage: "show commands and keys"},
	{Name: "/quit", Usage: "exit tethr"},
}

// runCommand executes a line starting with "/".
func (m Model) runCommand(line string) (Model, tea.Cmd) {
	fields := strings.Fields(line)
	name := strings.ToLower(fields[0])
	args := fields[1:]

	switch name {
	case "/new", "/clear":
		m.newConversation()
		m.refresh()
		return m, nil

	case "/resume":
		if len(args) != 1 {
			m.setNotice("usage: /resume <id>", true)
			return m, nil
		}
		return m, m.resume(args[0])

	case "/history":
		return m, m.loadHistory()

	case "/help":
		m.entries = append(m.entries, entry{role: model.RoleSystem, text: commandHelp(), done: true})
		m.follow = true
		m.refresh()
		return m, nil

	case "/quit", "/exit":
		next, cmd := m.quit()
		return next.(Model), cmd

	default:
		m.setNotice("unknown command "+name+" (try /help)", true)
		return m, nil
	}
}

// commandHelp renders the command list.
func commandHelp() string {
	var b strings.Builder
	b.WriteString("Commands:")
	for _, c := range Commands {
		usage := c.Name
		if c.Args != "" {
			usage += " " + c.Args
		}
		b.WriteString("\n  ")
		b.WriteString(util.PadRight(usage, 14))
		b.WriteString(c.Usage)
	}
	return b.String()
}
