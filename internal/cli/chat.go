// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive line-mode chat.
//
// Command: chat
// Short:   Chat without the full-screen interface
//
// Examples:
//
//	tethr chat
//	tethr chat --convo 1f0c...
//
// Interactive commands:
//
//	/new            Start a new conversation
//	/resume ID      Continue an earlier conversation
//	/history        List your conversations
//	/help           Show available commands
//	/quit, /exit    Exit chat
//	Ctrl+C          Cancel the reply being streamed
//	Ctrl+D          Exit chat
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/jeranaias/tethr-tui/internal/config"
	"github.com/jeranaias/tethr-tui/internal/logging"
	"github.com/jeranaias/tethr-tui/internal/model"
	"github.com/jeranaias/tethr-tui/internal/session"
	"github.com/jeranaias/tethr-tui/internal/tethr"
	"github.com/jeranaias/tethr-tui/internal/util"
)

const chatPrompt = "you> "

// =============================================================================
// INPUT HISTORY
// =============================================================================

// lineReader reads chat input.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
	Close() error
}

// ChatCLI provides line editing and persistent input history.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI and loads its history file.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	c := &ChatCLI{line: line, historyFile: filepath.Join(dir, "chat_history")}
	if f, err := os.Open(c.historyFile); err == nil {
		_, _ = c.line.ReadHistory(f)
		f.Close()
	}
	return c
}

// Prompt reads one line.
func (c *ChatCLI) Prompt(prompt string) (string, error) {
	return c.line.Prompt(prompt)
}

// AppendHistory records a line for arrow-key recall.
func (c *ChatCLI) AppendHistory(item string) {
	c.line.AppendHistory(item)
}

// Close writes the history file with owner-only permissions and restores
// the terminal.
func (c *ChatCLI) Close() error {
	err := util.WritePrivate(c.historyFile, func(w io.Writer) error {
		_, err := c.line.WriteHistory(w)
		return err
	})
	if err != nil {
		logging.Debug("write chat history", "error", err)
	}
	return c.line.Close()
}

// =============================================================================
// REPL
// =============================================================================

// HandleChat runs the interactive chat loop on the terminal.
func HandleChat(ctx context.Context, a *App) error {
	if _, err := a.Identity(ctx); err != nil {
		return err
	}
	r := NewChatCLI()
	defer r.Close()
	return runChat(ctx, a, r)
}

// chatSession is the state of one REPL.
type chatSession struct {
	app     *App
	id      model.Identity
	ctrl    *session.Controller
	printer *turnPrinter
}

// runChat reads lines from r until EOF, Ctrl+C at the prompt, or /quit.
func runChat(ctx context.Context, a *App, r lineReader) error {
	id, err := a.Identity(ctx)
	if err != nil {
		return err
	}
	p := &turnPrinter{w: a.Out, live: true, replay: true}
	s := &chatSession{app: a, id: id, ctrl: a.NewController(p), printer: p}

	if !a.Args.Quiet {
		fmt.Fprintf(a.Out, "%s %s\n", TitleStyle.Render("tethr chat"), DimStyle.Render("as "+id.String()+", /help for commands"))
	}
	if a.Args.ConvoID != "" {
		if err := s.resume(ctx, a.Args.ConvoID); err != nil {
			return err
		}
	}

	for {
		line, err := r.Prompt(chatPrompt)
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			fmt.Fprintln(a.Out)
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.AppendHistory(line)

		if strings.HasPrefix(line, "/") {
			quit, err := s.command(ctx, line)
			if err != nil {
				DisplayError(a.Err, "chat", err, false)
			}
			if quit {
				return nil
			}
			continue
		}
		s.send(ctx, line)
	}
}

// send runs one turn. Ctrl+C while streaming cancels only this turn.
func (s *chatSession) send(ctx context.Context, message string) {
	a := s.app
	turnCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	fmt.Fprint(a.Out, AssistantStyle.Render(model.RoleAssistant.DisplayName()+">")+" ")
	_, err := runTurn(turnCtx, a, s.ctrl, s.printer, s.id, message)
	if s.printer.answer == "" || !strings.HasSuffix(s.printer.answer, "\n") {
		fmt.Fprintln(a.Out)
	}

	switch {
	case err != nil && turnCtx.Err() != nil && ctx.Err() == nil:
		fmt.Fprintln(a.Err, WarningStyle.Render("[Cancelled]"))
	case err != nil:
		DisplayError(a.Err, "chat", err, false)
	case s.printer.announced != "":
		a.info("conversation %s", s.printer.announced)
	}
}

// command handles a slash command and reports whether to quit.
func (s *chatSession) command(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	name, args := strings.ToLower(fields[0]), fields[1:]

	switch name {
	case "/quit", "/exit", "/q":
		return true, nil
	case "/new", "/clear":
		if err := s.ctrl.StartNewConversation(); err != nil {
			return false, err
		}
		s.app.info("Started a new conversation.")
		return false, nil
	case "/resume":
		if len(args) == 0 {
			return false, ErrMissingArgument("conversation id", "/resume ID")
		}
		return false, s.resume(ctx, args[0])
	case "/history":
		list, err := fetchConversations(ctx, s.app, s.id)
		if err != nil {
			return false, err
		}
		if list.cached {
			s.app.info("server unreachable; showing cached list")
		}
		printConversations(s.app.Out, list.items, GetTerminalWidth())
		return false, nil
	case "/help", "/h", "/?":
		printChatHelp(s.app.Out)
		return false, nil
	default:
		msg := fmt.Sprintf("unknown command %s", fields[0])
		return false, &ValidationError{Field: "command", Reason: msg, Example: "/help"}
	}
}

// resume loads a stored conversation and replays it.
func (s *chatSession) resume(ctx context.Context, conversationID string) error {
	history, err := s.app.Client().GetConversation(ctx, s.id.Name, conversationID)
	if err != nil {
		return err
	}
	if err := s.ctrl.ResumeConversation(conversationID, tethr.ToMessages(history)); err != nil {
		return err
	}
	s.app.info("Resumed conversation %s (%d messages).", conversationID, len(history))
	return nil
}

func printChatHelp(w io.Writer) {
	rows := [][2]string{
		{"/new", "Start a new conversation"},
		{"/resume ID", "Continue an earlier conversation"},
		{"/history", "List your conversations"},
		{"/help", "Show this help"},
		{"/quit", "Exit chat"},
	}
	for _, r := range rows {
		fmt.Fprintln(w, RenderKeyValue(r[0], r[1]))
	}
}
