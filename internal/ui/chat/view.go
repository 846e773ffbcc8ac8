// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/tethr-tui/internal/logging"
	"github.com/jeranaias/tethr-tui/internal/model"
	"github.com/jeranaias/tethr-tui/internal/ui/styles"
	"github.com/jeranaias/tethr-tui/internal/util"
)

const (
	maxInputChars = 4096
	inputHeight   = 3
	spinnerFPS    = time.Second / 10

	// headerHeight + statusHeight + input box with its border.
	chromeHeight = 1 + 1 + inputHeight + 2
	minBodyWidth = 20
)

// =============================================================================
// LAYOUT
// =============================================================================

func (m Model) handleResize(msg tea.WindowSizeMsg) Model {
	m.width = msg.Width
	m.height = msg.Height
	m.theme.SetSize(msg.Width, msg.Height)

	vpHeight := msg.Height - chromeHeight
	if vpHeight < 1 {
		vpHeight = 1
	}
	m.viewport.Width = msg.Width
	m.viewport.Height = vpHeight
	m.input.SetWidth(max(msg.Width-4, minBodyWidth))

	if m.opts.Markdown {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(m.theme.GlamourStyle()),
			glamour.WithWordWrap(m.bodyWidth()),
		)
		if err != nil {
			logging.Warn("markdown renderer unavailable", "error", err)
			r = nil
		}
		m.renderer = r
	}
	m.ready = true
	m.refresh()
	return m
}

func (m Model) bodyWidth() int {
	return max(m.width-4, minBodyWidth)
}

// refresh re-renders the transcript into the viewport.
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	var b strings.Builder
	for i := range m.entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(m.renderEntry(&m.entries[i]))
	}
	m.viewport.SetContent(b.String())
	if m.follow {
		m.viewport.GotoBottom()
	}
}

// renderEntry renders one transcript block. Completed replies are rendered
// as markdown once per width and cached on the entry.
func (m *Model) renderEntry(e *entry) string {
	width := m.bodyWidth()
	t := m.theme

	switch e.role {
	case model.RoleUser:
		return t.UserLabel.Render(e.role.DisplayName()) + "\n" +
			t.UserBody.Width(width).Render(e.text)

	case model.RoleAssistant:
		label := t.AssistantLabel.Render(e.role.DisplayName())
		var body string
		switch {
		case e.failed:
			body = e.text
			if body != "" {
				body += "\n"
			}
			body += t.FailedMessage.Render(styles.StatusIndicators.Error + " " + e.reason)
		case !e.done && e.text == "":
			body = t.Hint.Render(m.spinner.View() + " waiting for reply")
		case e.done && m.renderer != nil:
			if e.rendered == "" || e.width != width {
				out, err := m.renderer.Render(e.text)
				if err != nil {
					out = e.text
				}
				e.rendered = strings.TrimRight(out, "\n")
				e.width = width
			}
			return label + "\n" + e.rendered
		default:
			body = e.text
		}
		return label + "\n" + t.AssistantBody.Width(width).Render(body)

	default:
		return t.SystemMessage.Width(width).Render(e.text)
	}
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the chat interface.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Starting tethr..."
	}

	body := m.viewport.View()
	if m.showHelp {
		body = lipgloss.Place(m.width, m.viewport.Height, lipgloss.Center, lipgloss.Center,
			m.help.View(m.keys)+"\n\n"+m.theme.Hint.Render(commandHelp()))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		body,
		m.renderStatus(),
		m.theme.InputBorder.Width(max(m.width-2, minBodyWidth)).Render(m.input.View()),
	)
}

func (m Model) renderHeader() string {
	t := m.theme
	left := t.HeaderBrand.Render("tethr")
	if m.identity.Valid() {
		left += " " + t.HeaderSubtitle.Render(m.identity.String())
	}

	convo := "new conversation"
	if m.conversationID != "" {
		convo = "conversation " + m.conversationID
	}
	right := t.HeaderSubtitle.Render(convo)

	gap := m.width - 2 - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		return t.Header.Width(m.width).Render(util.TruncateWidth(left+" "+right, max(m.width-2, 1)))
	}
	return t.Header.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

func (m Model) renderStatus() string {
	t := m.theme
	var left string
	switch {
	case m.notice != "" && m.noticeError:
		left = t.ErrorStyle.Render(m.notice)
	case m.notice != "":
		left = t.StatusValue.Render(m.notice)
	case m.streaming:
		left = m.spinner.View() + " " + t.StatusValue.Render("receiving")
	case m.opts.ShowStats && m.lastStats != "":
		left = t.StatusKey.Render("last reply ") + t.StatusValue.Render(m.lastStats)
	default:
		left = t.StatusKey.Render("ready")
	}
	if m.decodeFails > 0 && m.opts.ShowStats {
		left += t.WarnStyle.Render("  " + styles.StatusIndicators.Warning + " skipped lines")
	}

	m.help.Width = m.width / 2
	right := m.help.ShortHelpView(m.keys.ShortHelp())

	gap := m.width - 2 - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		return t.StatusBar.Width(m.width).Render(left)
	}
	return t.StatusBar.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}
