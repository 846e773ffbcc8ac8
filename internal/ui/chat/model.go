// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/tethr-tui/internal/logging"
	"github.com/jeranaias/tethr-tui/internal/model"
	"github.com/jeranaias/tethr-tui/internal/render"
	"github.com/jeranaias/tethr-tui/internal/session"
	"github.com/jeranaias/tethr-tui/internal/tethr"
	"github.com/jeranaias/tethr-tui/internal/ui/styles"
)

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures a chat Model.
type Options struct {
	Theme    *styles.Theme
	Backend  Backend
	Cache    HistoryCache
	Identity model.Identity

	// ConversationID is resumed when the program starts.
	ConversationID string

	// Markdown renders completed replies with glamour.
	Markdown bool

	// ShowStats adds per-turn stream statistics to the status bar.
	ShowStats bool

	Stream       session.StreamOptions
	MaxLineBytes int
}

// =============================================================================
// ENTRIES
// =============================================================================

// entry is one block of the transcript as displayed.
type entry struct {
	role   model.Role
	text   string
	turnID string

	done   bool
	failed bool
	reason string

	// rendered caches the markdown rendering of a completed reply.
	rendered string
	width    int
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat view. It renders the events of
// a session.Controller and drives its turns.
type Model struct {
	theme    *styles.Theme
	keys     KeyMap
	opts     Options
	identity model.Identity

	ctrl      *session.Controller
	backend   Backend
	cache     HistoryCache
	box       *mailbox
	cancelMgr *cancelManager

	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model
	help     help.Model
	renderer *glamour.TermRenderer

	entries []entry
	// active is the index of the reply being streamed, or -1.
	active int
	turn   *session.Turn

	// streaming is set while a turn command owns the controller.
	streaming      bool
	conversationID string
	follow         bool

	notice      string
	noticeError bool
	lastStats   string
	decodeFails int
	showHelp    bool

	width    int
	height   int
	ready    bool
	quitting bool
}

// New creates a chat model.
func New(opts Options) Model {
	if opts.Theme == nil {
		opts.Theme = styles.NewTheme("auto")
	}
	if opts.Stream.ReadSize == 0 && opts.Stream.IdleTimeout == 0 {
		opts.Stream = session.DefaultStreamOptions()
	}

	box := newMailbox()
	var ctrlOpts []session.Option
	if opts.MaxLineBytes > 0 {
		ctrlOpts = append(ctrlOpts, session.WithMaxLineBytes(opts.MaxLineBytes))
	}

	ta := textarea.New()
	ta.Placeholder = "Send a message... (/help for commands)"
	ta.Prompt = "> "
	ta.ShowLineNumbers = false
	ta.CharLimit = maxInputChars
	ta.SetHeight(inputHeight)
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    spinnerFPS,
	}
	sp.Style = opts.Theme.Spinner

	return Model{
		theme:     opts.Theme,
		keys:      DefaultKeyMap(),
		opts:      opts,
		identity:  opts.Identity,
		ctrl:      session.NewController(box, ctrlOpts...),
		backend:   opts.Backend,
		cache:     opts.Cache,
		box:       box,
		cancelMgr: newCancelManager(),
		viewport:  viewport.New(80, 20),
		input:     ta,
		spinner:   sp,
		help:      help.New(),
		active:    -1,
		follow:    true,
	}
}

// ConversationID returns the id of the conversation shown, if any.
func (m Model) ConversationID() string { return m.conversationID }

// Streaming reports whether a reply is being received.
func (m Model) Streaming() bool { return m.streaming }

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init starts the mailbox listener and resumes the configured conversation.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textarea.Blink, m.box.wait()}
	if id := strings.TrimSpace(m.opts.ConversationID); id != "" && m.backend != nil {
		cmds = append(cmds, loadConversationCmd(m.backend, m.identity.Name, id))
	}
	return tea.Batch(cmds...)
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg), nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case mailMsg:
		var cmds []tea.Cmd
		for _, inner := range msg {
			next, cmd := m.Update(inner)
			m = next.(Model)
			cmds = append(cmds, cmd)
		}
		cmds = append(cmds, m.box.wait())
		return m, tea.Batch(cmds...)

	case EventMsg:
		m.handleEvent(msg.Event)
		m.refresh()
		return m, nil

	case TurnDoneMsg:
		return m.handleTurnDone(msg), nil

	case HistoryMsg:
		m.handleHistory(msg)
		m.refresh()
		return m, nil

	case ConversationMsg:
		m.handleConversation(msg)
		m.refresh()
		return m, nil

	case SettingsMsg:
		m.opts.Markdown = msg.Markdown
		m.opts.ShowStats = msg.ShowStats
		m.renderer = nil
		if m.ready {
			return m.handleResize(tea.WindowSizeMsg{Width: m.width, Height: m.height}), nil
		}
		return m, nil

	case spinner.TickMsg:
		if !m.streaming {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()

	case key.Matches(msg, m.keys.Cancel):
		if m.streaming {
			if m.cancelMgr.cancel() {
				m.setNotice("cancelling reply...", false)
			}
			return m, nil
		}
		if m.showHelp {
			m.showHelp = false
			return m, nil
		}
		if msg.String() == "ctrl+c" {
			return m.quit()
		}
		m.notice = ""
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
		return m, nil

	case key.Matches(msg, m.keys.NewChat):
		m.newConversation()
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.History):
		return m, m.loadHistory()

	case key.Matches(msg, m.keys.Submit):
		text := m.input.Value()
		if m.streaming && !strings.HasPrefix(strings.TrimSpace(text), "/") {
			m.setNotice("wait for the current reply to finish", true)
			return m, nil
		}
		m.input.Reset()
		next, cmd := m.submit(text)
		if next.streaming && !m.streaming {
			return next, tea.Batch(cmd, next.spinner.Tick)
		}
		return next, cmd

	case key.Matches(msg, m.keys.Up):
		m.viewport.LineUp(1)
		m.follow = m.viewport.AtBottom()
		return m, nil
	case key.Matches(msg, m.keys.Down):
		m.viewport.LineDown(1)
		m.follow = m.viewport.AtBottom()
		return m, nil
	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		m.follow = m.viewport.AtBottom()
		return m, nil
	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		m.follow = m.viewport.AtBottom()
		return m, nil
	case key.Matches(msg, m.keys.Home):
		m.viewport.GotoTop()
		m.follow = false
		return m, nil
	case key.Matches(msg, m.keys.End):
		m.viewport.GotoBottom()
		m.follow = true
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.cancelMgr.cancel()
	m.quitting = true
	return m, tea.Quit
}

// =============================================================================
// TURNS
// =============================================================================

// submit handles one line of input: a slash command or a chat message.
func (m Model) submit(text string) (Model, tea.Cmd) {
	text = strings.TrimSpace(text)
	if text == "" {
		return m, nil
	}
	if strings.HasPrefix(text, "/") {
		return m.runCommand(text)
	}
	if m.streaming {
		m.setNotice("wait for the current reply to finish", true)
		return m, nil
	}
	if m.backend == nil {
		m.setNotice("not connected to a server", true)
		return m, nil
	}

	turn, err := m.ctrl.StartTurn(text)
	if err != nil {
		m.setNotice(err.Error(), true)
		return m, nil
	}

	m.entries = append(m.entries,
		entry{role: model.RoleUser, text: turn.Message(), done: true},
		entry{role: model.RoleAssistant, turnID: turn.ID()},
	)
	m.active = len(m.entries) - 1
	m.turn = turn
	m.streaming = true
	m.follow = true
	m.notice = ""
	m.refresh()

	ctx, cancel := context.WithCancel(context.Background())
	m.cancelMgr.set(cancel)

	req := tethr.NewChatRequest(m.identity, turn.Message(), m.ctrl.ConversationID())
	return m, runTurnCmd(ctx, m.backend, turn, req, m.opts.Stream, m.cancelMgr, m.box)
}

func (m Model) handleTurnDone(msg TurnDoneMsg) Model {
	m.streaming = false
	m.cancelMgr.cancel()

	if m.turn != nil && m.turn.ID() == msg.TurnID {
		st := m.turn.Stats()
		m.lastStats = fmt.Sprintf("%d frames, %d bytes", st.Frames, st.Bytes)
		if st.TimeToFirstContent > 0 {
			m.lastStats += fmt.Sprintf(", first text %s", st.TimeToFirstContent.Round(time.Millisecond))
		}
		if st.Discarded > 0 {
			m.lastStats += fmt.Sprintf(", %d discarded", st.Discarded)
		}
	}
	m.turn = nil
	m.active = -1

	switch {
	case errors.Is(msg.Err, context.Canceled):
		m.setNotice("reply cancelled", false)
	case msg.Err != nil:
		m.setNotice(tethr.Describe(msg.Err), true)
	}
	m.refresh()
	return m
}

// handleEvent applies one render event to the displayed transcript.
func (m *Model) handleEvent(e render.Event) {
	switch e := e.(type) {
	case render.TextUpdated:
		if ent := m.entryFor(e.TurnID); ent != nil {
			ent.text = e.Text
		}

	case render.TurnFinalized:
		if ent := m.entryFor(e.TurnID); ent != nil {
			ent.done = true
		}
		if e.ConversationID != "" {
			m.conversationID = e.ConversationID
		}

	case render.TurnFailed:
		if ent := m.entryFor(e.TurnID); ent != nil {
			ent.done = true
			ent.failed = true
			ent.reason = e.Message
		}

	case render.ConversationIdentityAssigned:
		m.conversationID = e.ConversationID
		m.setNotice("conversation "+e.ConversationID, false)

	case render.MessageReplayed:
		m.entries = append(m.entries, entry{role: e.Role, text: e.Text, done: true})

	case render.ConversationCleared:
		m.entries = nil
		m.active = -1

	case render.DecodeFailed:
		m.decodeFails++
		logging.Debug("undecodable stream line", "reason", e.Reason)
	}
}

// entryFor returns the reply entry of turnID.
func (m *Model) entryFor(turnID string) *entry {
	if m.active >= 0 && m.active < len(m.entries) && m.entries[m.active].turnID == turnID {
		return &m.entries[m.active]
	}
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].turnID == turnID {
			return &m.entries[i]
		}
	}
	return nil
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

func (m *Model) newConversation() {
	if m.streaming {
		m.setNotice("wait for the current reply to finish", true)
		return
	}
	if err := m.ctrl.StartNewConversation(); err != nil {
		m.setNotice(err.Error(), true)
		return
	}
	m.conversationID = ""
	m.lastStats = ""
	m.setNotice("new conversation", false)
}

func (m *Model) loadHistory() tea.Cmd {
	if m.backend == nil {
		m.setNotice("not connected to a server", true)
		return nil
	}
	m.setNotice("loading conversations...", false)
	return loadHistoryCmd(m.backend, m.cache, m.identity.Name)
}

func (m *Model) resume(conversationID string) tea.Cmd {
	if m.streaming {
		m.setNotice("wait for the current reply to finish", true)
		return nil
	}
	if m.backend == nil {
		m.setNotice("not connected to a server", true)
		return nil
	}
	m.setNotice("loading conversation "+conversationID+"...", false)
	return loadConversationCmd(m.backend, m.identity.Name, conversationID)
}

func (m *Model) handleHistory(msg HistoryMsg) {
	if msg.Err != nil {
		m.setNotice("history: "+tethr.Describe(msg.Err), true)
		return
	}
	var b strings.Builder
	if len(msg.Conversations) == 0 {
		b.WriteString("No conversations yet.")
	} else {
		b.WriteString("Conversations (use /resume <id>):")
		for _, c := range msg.Conversations {
			fmt.Fprintf(&b, "\n  %s  %s", c.ID, c.Title)
		}
	}
	if msg.Cached {
		b.WriteString("\n(server unreachable, showing cached list)")
	}
	m.entries = append(m.entries, entry{role: model.RoleSystem, text: b.String(), done: true})
	m.notice = ""
	m.follow = true
}

func (m *Model) handleConversation(msg ConversationMsg) {
	if msg.Err != nil {
		m.setNotice("resume: "+tethr.Describe(msg.Err), true)
		return
	}
	if m.streaming {
		m.setNotice("wait for the current reply to finish", true)
		return
	}
	if err := m.ctrl.ResumeConversation(msg.ConversationID, msg.Messages); err != nil {
		m.setNotice(err.Error(), true)
		return
	}
	m.conversationID = msg.ConversationID
	m.lastStats = ""
	m.follow = true
	m.setNotice(fmt.Sprintf("resumed %s (%d messages)", msg.ConversationID, len(msg.Messages)), false)
}

func (m *Model) setNotice(text string, isError bool) {
	m.notice = text
	m.noticeError = isError
}
