// tethr-devserver - an in-memory chat service for local development.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// Usage:
//
//	tethr-devserver [--addr 127.0.0.1:8000] [--chunk 8] [--delay 15] [--rate 120] [-v]
//
// Accounts demo/demo and guest/guest are accepted. Answers echo the prompt
// in chunks of --chunk runes, --delay milliseconds apart.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jeranaias/tethr-tui/internal/cli"
	"github.com/jeranaias/tethr-tui/internal/logging"
	"github.com/jeranaias/tethr-tui/internal/server"
)

const shutdownTimeout = 5 * time.Second

func main() {
	args := cli.NewArgParser(os.Args[1:], "v", "verbose", "not-ready")
	if args.BoolFlag("v") || args.BoolFlag("verbose") {
		logging.SetVerbose(true)
	} else {
		logging.SetVerbose(false)
	}

	srv := server.New(server.Config{
		Addr: args.FlagOrDefault("addr", fmt.Sprintf("127.0.0.1:%d", server.DefaultPort)),
		Responder: server.EchoResponder{
			ChunkRunes: args.FlagIntOrDefault("chunk", 8),
			Delay:      time.Duration(args.FlagIntOrDefault("delay", 15)) * time.Millisecond,
		},
		RateLimit: args.FlagIntOrDefault("rate", 120),
	})
	if args.BoolFlag("not-ready") {
		srv.SetReady(false)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if err != nil {
			logging.Error("server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Error("shutdown failed", "error", err)
			os.Exit(1)
		}
		<-errCh
	}
}
