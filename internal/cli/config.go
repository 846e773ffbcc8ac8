// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Config command implementation for tethr.
//
// Command: config [subcommand]
// Short:   View and modify configuration
//
// Subcommands:
//
//	show (default)      Display current configuration
//	get <key>           Print one value
//	set <key> <value>   Set a configuration value
//	reset               Reset to default configuration
//	path                Show configuration file path
//
// Examples:
//
//	tethr config set server.url http://chat.example:8000
//	tethr config set ui.markdown false
//	tethr config get stream.idle_timeout_secs
package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/jeranaias/tethr-tui/internal/config"
)

// HandleConfig routes the config subcommands.
func HandleConfig(_ context.Context, a *App) error {
	switch strings.ToLower(a.Args.Subcommand) {
	case "", "show", "list":
		return configShow(a)
	case "get":
		return configGet(a)
	case "set":
		return configSet(a)
	case "reset":
		return configReset(a)
	case "path":
		return configPath(a)
	default:
		return &ValidationError{
			Field:   "config subcommand",
			Value:   a.Args.Subcommand,
			Reason:  "expected show, get, set, reset or path",
			Example: "tethr config get server.url",
		}
	}
}

func configShow(a *App) error {
	if a.Args.JSON {
		return NewJSONResponse("config", a.Config).Print(a.Out)
	}
	section := ""
	for _, key := range config.GetAllKeys() {
		value, err := a.Config.Get(key)
		if err != nil {
			return err
		}
		if head, _, _ := strings.Cut(key, "."); head != section {
			if section != "" {
				fmt.Fprintln(a.Out)
			}
			section = head
			fmt.Fprintln(a.Out, TitleStyle.Render("["+section+"]"))
		}
		fmt.Fprintf(a.Out, "  %s = %v\n", LabelStyle.Width(24).Render(key), value)
	}
	return nil
}

func configGet(a *App) error {
	if a.Args.ConfigKey == "" {
		return ErrMissingArgument("key", "tethr config get server.url")
	}
	value, err := a.Config.Get(a.Args.ConfigKey)
	if err != nil {
		return &ValidationError{Field: "key", Value: a.Args.ConfigKey, Reason: err.Error()}
	}
	if a.Args.JSON {
		return NewJSONResponse("config", ConfigValueData{Key: a.Args.ConfigKey, Value: value}).Print(a.Out)
	}
	fmt.Fprintln(a.Out, value)
	return nil
}

// configSet changes one key in the config file. The file is only written
// when the result validates.
func configSet(a *App) error {
	key, value := a.Args.ConfigKey, a.Args.ConfigVal
	if key == "" || value == "" {
		return ErrMissingArgument("key and value", "tethr config set ui.theme dark")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Set(key, value); err != nil {
		return &ValidationError{Field: key, Value: value, Reason: err.Error()}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.Save(cfg); err != nil {
		return err
	}
	a.Config = cfg

	if a.Args.JSON {
		stored, _ := cfg.Get(key)
		return NewJSONResponse("config", ConfigValueData{Key: key, Value: stored}).Print(a.Out)
	}
	fmt.Fprintf(a.Out, "%s %s = %s\n", SuccessStyle.Render("[OK]"), key, value)
	return nil
}

func configReset(a *App) error {
	cfg := config.Default()
	if err := config.Save(cfg); err != nil {
		return err
	}
	a.Config = cfg
	if a.Args.JSON {
		return NewJSONResponse("config", cfg).Print(a.Out)
	}
	fmt.Fprintf(a.Out, "%s Configuration reset to defaults\n", SuccessStyle.Render("[OK]"))
	return nil
}

func configPath(a *App) error {
	path, err := config.ConfigPath()
	if err != nil {
		return err
	}
	if a.Args.JSON {
		return NewJSONResponse("config", ConfigValueData{Key: "path", Value: path}).Print(a.Out)
	}
	fmt.Fprintln(a.Out, path)
	return nil
}
