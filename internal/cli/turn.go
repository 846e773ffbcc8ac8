// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// turn.go - Running one exchange from the command line.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/jeranaias/tethr-tui/internal/logging"
	"github.com/jeranaias/tethr-tui/internal/model"
	"github.com/jeranaias/tethr-tui/internal/render"
	"github.com/jeranaias/tethr-tui/internal/session"
	"github.com/jeranaias/tethr-tui/internal/tethr"
)

// =============================================================================
// TURN PRINTER
// =============================================================================

// turnPrinter is the render sink of CLI sessions. In live mode it writes
// answer text as it grows; otherwise it only collects it.
type turnPrinter struct {
	w    io.Writer
	live bool

	// replay prints messages of resumed conversations.
	replay bool

	answer    string
	printed   int
	failed    string
	finalID   string
	announced string
}

// Render implements render.Sink.
func (p *turnPrinter) Render(e render.Event) {
	switch e := e.(type) {
	case render.TextUpdated:
		p.answer = e.Text
		if p.live && len(e.Text) > p.printed {
			io.WriteString(p.w, e.Text[p.printed:])
			p.printed = len(e.Text)
		}
	case render.TurnFinalized:
		p.finalID = e.ConversationID
	case render.TurnFailed:
		p.failed = e.Message
	case render.ConversationIdentityAssigned:
		p.announced = e.ConversationID
	case render.MessageReplayed:
		if p.replay {
			printMessage(p.w, model.Message{Role: e.Role, Content: e.Text}, nil)
		}
	case render.DecodeFailed:
		logging.Debug("undecodable stream line", "reason", e.Reason)
	}
}

// reset prepares the printer for the next turn.
func (p *turnPrinter) reset() {
	p.answer = ""
	p.printed = 0
	p.failed = ""
	p.finalID = ""
	p.announced = ""
}

// printMessage writes one labelled transcript message. render, when not
// nil, formats assistant text.
func printMessage(w io.Writer, m model.Message, render func(string) string) {
	style := AssistantStyle
	if m.Role == model.RoleUser {
		style = UserStyle
	}
	text := m.Content
	if render != nil && m.Role == model.RoleAssistant {
		text = render(text)
	}
	fmt.Fprintf(w, "%s %s\n", style.Render(m.Role.DisplayName()+">"), text)
}

// =============================================================================
// TURN RUNNER
// =============================================================================

// runTurn sends message in ctrl's current conversation and streams the
// reply into the controller's sink. A turn the server failed returns a
// *TurnError; a request that never reached the stream returns the client
// error.
func runTurn(ctx context.Context, a *App, ctrl *session.Controller, p *turnPrinter,
	id model.Identity, message string) (*session.Turn, error) {
	p.reset()
	turn, err := ctrl.StartTurn(message)
	if err != nil {
		return nil, err
	}

	req := tethr.NewChatRequest(id, turn.Message(), ctrl.ConversationID())
	body, err := a.Client().OpenChat(ctx, req)
	if err != nil {
		turn.Fail(tethr.Describe(err))
		return turn, err
	}

	streamErr := session.Stream(ctx, turn, body, a.StreamOptions())
	if p.failed != "" {
		return turn, &TurnError{Message: p.failed, Cause: streamErr}
	}
	return turn, streamErr
}
