// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and the non-interactive
// commands of tethr.
//
// # Key Types
//
//   - Command: enumeration of the CLI commands
//   - Args: parsed global and command-specific flags
//   - App: configuration, streams and lazily opened store and client
//   - JSONResponse: the --json output envelope
//
// # Usage
//
//	cmd, args := cli.Parse()
//	app := cli.NewApp(cfg, args)
//	defer app.Close()
//	if err := cli.Run(ctx, cmd, app); err != nil {
//	    cli.DisplayError(os.Stderr, cmd.String(), err, args.JSON)
//	    os.Exit(cli.GetExitCode(err))
//	}
//
// Turns run through the same session.Controller the TUI uses; the CLI
// sink prints answer text as it streams, or collects it for markdown and
// JSON output.
package cli
