// tethr - a terminal client for a streaming chat service.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/tethr-tui/internal/cli"
	"github.com/jeranaias/tethr-tui/internal/config"
	"github.com/jeranaias/tethr-tui/internal/logging"
	"github.com/jeranaias/tethr-tui/internal/ui/chat"
	"github.com/jeranaias/tethr-tui/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse()
	os.Exit(run(cmd, args))
}

// run executes cmd and returns the process exit code.
func run(cmd cli.Command, args cli.Args) int {
	cfg, err := config.Load()
	if err != nil {
		// config, help and version must work with a broken file so it can be fixed
		switch cmd {
		case cli.CmdConfig, cli.CmdHelp, cli.CmdVersion:
			logging.Warn("config load failed, using defaults", "error", err)
			cfg = config.Default()
		default:
			cli.DisplayError(os.Stderr, cmd.String(), err, args.JSON)
			return cli.ExitConfigError
		}
	}
	config.SetGlobal(cfg)
	applyLogLevel(cfg, args.Verbose)

	// The TUI reads Ctrl+C as a key and chat cancels turns with it, so only
	// the one-shot commands stop on interrupt.
	signals := []os.Signal{syscall.SIGTERM}
	if cmd != cli.CmdTUI && cmd != cli.CmdChat {
		signals = append(signals, os.Interrupt)
	}
	ctx, stop := signal.NotifyContext(context.Background(), signals...)
	defer stop()

	app := cli.NewApp(cfg, args)
	defer app.Close()

	if cmd == cli.CmdTUI {
		err = runTUI(ctx, app)
	} else {
		err = cli.Run(ctx, cmd, app)
	}
	if err != nil {
		cli.DisplayError(os.Stderr, cmd.String(), err, args.JSON)
		return cli.GetExitCode(err)
	}
	return cli.ExitSuccess
}

// applyLogLevel sets the log level from the config; --verbose wins.
func applyLogLevel(cfg *config.Config, verbose bool) {
	if verbose {
		logging.SetVerbose(true)
		return
	}
	if lvl, ok := logging.ParseLevel(cfg.Logging.Level); ok {
		logging.SetLevel(lvl)
	}
}

// =============================================================================
// TUI
// =============================================================================

func runTUI(ctx context.Context, app *cli.App) error {
	if !cli.IsTTY() || !cli.IsStdoutTTY() {
		return &cli.TTYRequiredError{Operation: "start the chat interface"}
	}
	id, err := app.Identity(ctx)
	if err != nil {
		return err
	}
	store, err := app.Store()
	if err != nil {
		return err
	}
	cfg := app.Config

	// The alternate screen owns stderr from here on.
	if closer, err := logging.OpenFile(cfg.Logging.File); err == nil {
		defer closer.Close()
	} else {
		logging.SetOutput(io.Discard)
		defer logging.SetOutput(os.Stderr)
	}
	logging.Info("starting tui", "user", id.Name, "server", cfg.Server.URL, "version", Version)

	m := chat.New(chat.Options{
		Theme:          styles.NewTheme(cfg.UI.Theme),
		Backend:        app.Client(),
		Cache:          store,
		Identity:       id,
		ConversationID: app.Args.ConvoID,
		Markdown:       cfg.UI.Markdown,
		ShowStats:      cfg.UI.ShowStats,
		Stream:         app.StreamOptions(),
		MaxLineBytes:   cfg.Stream.MaxLineBytes,
	})

	p := tea.NewProgram(m, tea.WithAltScreen())

	if path, err := config.ConfigPath(); err == nil {
		w, err := config.NewWatcher(path, 0, func(c *config.Config) {
			applyLogLevel(c, app.Args.Verbose)
			p.Send(chat.SettingsMsg{Markdown: c.UI.Markdown, ShowStats: c.UI.ShowStats})
		})
		if err != nil {
			logging.Debug("config watcher unavailable", "path", path, "error", err)
		} else {
			defer w.Close()
		}
	}

	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}
