// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"runtime"
)

// Run executes a non-interactive command. CmdTUI is started by the caller.
func Run(ctx context.Context, cmd Command, a *App) error {
	switch cmd {
	case CmdAsk:
		return HandleAsk(ctx, a)
	case CmdChat:
		return HandleChat(ctx, a)
	case CmdLogin:
		return HandleLogin(ctx, a)
	case CmdLogout:
		return HandleLogout(ctx, a)
	case CmdWhoami:
		return HandleWhoami(ctx, a)
	case CmdHistory:
		return HandleHistory(ctx, a)
	case CmdConfig:
		return HandleConfig(ctx, a)
	case CmdVersion:
		if a.Args.JSON {
			return NewJSONResponse("version", VersionData{
				Version:   Version,
				GitCommit: GitCommit,
				BuildDate: BuildDate,
				GoVersion: runtime.Version(),
			}).Print(a.Out)
		}
		PrintVersion(a.Out)
		return nil
	case CmdHelp:
		PrintUsage(a.Out)
		return nil
	case CmdUnknown:
		err := &ValidationError{Field: "command", Value: a.Args.Unknown, Reason: "unknown command", Example: "tethr help"}
		if s := SuggestCommand(a.Args.Unknown); s != "" {
			err.Reason = fmt.Sprintf("unknown command (did you mean %q?)", s)
		}
		return err
	default:
		return fmt.Errorf("%s cannot be run from here", cmd)
	}
}
