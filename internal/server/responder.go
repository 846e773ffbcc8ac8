// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/tethr-tui/internal/model"
)

// Prompt is what a Responder gets for one chat message.
type Prompt struct {
	Message  string
	Username string
	Role     string
	History  []model.Message
}

// Responder produces the answer to a prompt as a sequence of text pieces.
// Returning an error after some pieces were emitted is allowed; the server
// reports it as an error frame and still ends the turn.
type Responder interface {
	Respond(ctx context.Context, p Prompt, emit func(text string) error) error
}

// ResponderFunc adapts a function to a Responder.
type ResponderFunc func(ctx context.Context, p Prompt, emit func(text string) error) error

// Respond calls f.
func (f ResponderFunc) Respond(ctx context.Context, p Prompt, emit func(text string) error) error {
	return f(ctx, p, emit)
}

// EchoResponder answers with a short markdown echo of the prompt, split into
// pieces of ChunkRunes characters with Delay between them.
type EchoResponder struct {
	ChunkRunes int
	Delay      time.Duration
}

// Respond implements Responder.
func (e EchoResponder) Respond(ctx context.Context, p Prompt, emit func(text string) error) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi **%s**", p.Username)
	if p.Role != "" {
		fmt.Fprintf(&b, " (%s)", p.Role)
	}
	fmt.Fprintf(&b, ", you said:\n\n> %s\n", p.Message)
	if n := len(p.History) / 2; n > 0 {
		fmt.Fprintf(&b, "\nThis conversation has %d earlier exchange(s).\n", n)
	}

	size := e.ChunkRunes
	if size <= 0 {
		size = 8
	}
	runes := []rune(b.String())
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		if err := emit(string(runes[start:end])); err != nil {
			return err
		}
		if e.Delay > 0 {
			select {
			case <-time.After(e.Delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}
