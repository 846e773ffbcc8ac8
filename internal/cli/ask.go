// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - One-shot question command.
//
// Command: ask
// Short:   Ask a single question
// Aliases: a
//
// Examples:
//
//	tethr ask "What is the weather like?"
//	tethr ask --convo 1f0c... "And tomorrow?"
//	echo "hello" | tethr ask
//	tethr ask --json "hi"
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// maxStdinQuestion bounds a question read from a pipe.
const maxStdinQuestion = 1 << 20

// HandleAsk sends one message and prints the reply. Without --raw or --json
// and on a terminal, the answer is rendered as markdown once complete;
// otherwise it is written as it streams.
func HandleAsk(ctx context.Context, a *App) error {
	query := strings.TrimSpace(a.Args.Query)
	if query == "" && !isTerminalReader(a.In) {
		data, err := io.ReadAll(io.LimitReader(a.In, maxStdinQuestion))
		if err != nil {
			return fmt.Errorf("read question from stdin: %w", err)
		}
		query = strings.TrimSpace(string(data))
	}
	if query == "" {
		return ErrMissingArgument("question", `tethr ask "What can you do?"`)
	}

	id, err := a.Identity(ctx)
	if err != nil {
		return err
	}

	markdown := a.markdown()
	p := &turnPrinter{w: a.Out, live: !markdown && !a.Args.JSON}
	ctrl := a.NewController(p)
	if a.Args.ConvoID != "" {
		if err := ctrl.ResumeConversation(a.Args.ConvoID, nil); err != nil {
			return err
		}
	}

	turn, err := runTurn(ctx, a, ctrl, p, id, query)
	if err != nil {
		if p.live && p.printed > 0 {
			fmt.Fprintln(a.Out)
		}
		return err
	}

	if a.Args.JSON {
		stats := turn.Stats()
		return NewJSONResponse("ask", AskData{
			ConversationID: ctrl.ConversationID(),
			Answer:         p.answer,
			Frames:         stats.Frames,
			Bytes:          stats.Bytes,
			FirstTextMS:    stats.TimeToFirstContent.Milliseconds(),
		}).Print(a.Out)
	}

	switch {
	case markdown:
		fmt.Fprint(a.Out, a.renderMarkdown(p.answer))
	case !strings.HasSuffix(p.answer, "\n"):
		fmt.Fprintln(a.Out)
	}

	if p.announced != "" {
		a.info("conversation %s (continue with: tethr ask --convo %s ...)", p.announced, p.announced)
	}
	return nil
}
