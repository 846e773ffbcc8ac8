// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// app.go - Shared state of one CLI invocation.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/tethr-tui/internal/config"
	"github.com/jeranaias/tethr-tui/internal/model"
	"github.com/jeranaias/tethr-tui/internal/session"
	"github.com/jeranaias/tethr-tui/internal/storage"
	"github.com/jeranaias/tethr-tui/internal/tethr"
)

// App carries the configuration, streams and lazily opened resources a
// command needs. The zero streams are stdin, stdout and stderr.
type App struct {
	Out io.Writer
	Err io.Writer
	In  io.Reader

	Args   Args
	Config *config.Config

	store  *storage.Store
	client *tethr.Client
}

// NewApp creates an App for args. --server overrides the configured URL.
func NewApp(cfg *config.Config, args Args) *App {
	if cfg == nil {
		cfg = config.Default()
	}
	if args.Server != "" {
		cfg.Server.URL = strings.TrimRight(args.Server, "/")
	}
	return &App{
		Out:    os.Stdout,
		Err:    os.Stderr,
		In:     os.Stdin,
		Args:   args,
		Config: cfg,
	}
}

// Store opens the local store on first use.
func (a *App) Store() (*storage.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	s, err := storage.Open(a.Config.Storage.Path)
	if err != nil {
		return nil, err
	}
	a.store = s
	return s, nil
}

// Client returns the tethr client for the configured server.
func (a *App) Client() *tethr.Client {
	if a.client == nil {
		srv := a.Config.Server
		a.client = tethr.NewClientWithConfig(&tethr.ClientConfig{
			BaseURL:           srv.URL,
			Timeout:           srv.Timeout(),
			StreamTimeout:     srv.StreamTimeout(),
			RequestsPerSecond: srv.RequestsPerSecond,
			Burst:             srv.Burst,
			UserAgent:         "tethr-cli/" + Version,
		})
	}
	return a.client
}

// Identity returns the stored login, or ErrNotLoggedIn.
func (a *App) Identity(ctx context.Context) (model.Identity, error) {
	store, err := a.Store()
	if err != nil {
		return model.Identity{}, err
	}
	id, err := store.LoadIdentity(ctx)
	if errors.Is(err, storage.ErrNoIdentity) {
		return model.Identity{}, ErrNotLoggedIn
	}
	return id, err
}

// Close releases the store.
func (a *App) Close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}

// StreamOptions returns the response reading options from the config.
func (a *App) StreamOptions() session.StreamOptions {
	return session.StreamOptions{
		ReadSize:    a.Config.Stream.ReadSize,
		IdleTimeout: a.Config.Stream.IdleTimeout(),
	}
}

// NewController creates a session controller writing to sink.
func (a *App) NewController(sink *turnPrinter) *session.Controller {
	var opts []session.Option
	if n := a.Config.Stream.MaxLineBytes; n > 0 {
		opts = append(opts, session.WithMaxLineBytes(n))
	}
	return session.NewController(sink, opts...)
}

// =============================================================================
// OUTPUT
// =============================================================================

// markdown reports whether answers should be rendered through glamour.
func (a *App) markdown() bool {
	return a.Config.UI.Markdown && !a.Args.Raw && !a.Args.JSON && isTerminalWriter(a.Out)
}

// renderMarkdown renders text for the terminal, falling back to the plain
// text when rendering fails.
func (a *App) renderMarkdown(text string) string {
	style := glamour.WithAutoStyle()
	switch a.Config.UI.Theme {
	case "dark", "light":
		style = glamour.WithStandardStyle(a.Config.UI.Theme)
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(GetTerminalWidth()-4))
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return out
}

// info prints a status line to stderr unless --quiet or --json is set.
func (a *App) info(format string, args ...any) {
	if a.Args.Quiet || a.Args.JSON {
		return
	}
	fmt.Fprintln(a.Err, DimStyle.Render(fmt.Sprintf(format, args...)))
}
