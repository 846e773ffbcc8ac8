// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for tethr.
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (TETHR_SERVER_URL, TETHR_LOG_LEVEL, TETHR_DB_PATH, TETHR_THEME)
//   - ~/.tethr/config.toml ($TETHR_HOME/config.toml when set)
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	client := tethr.NewClientWithConfig(&tethr.ClientConfig{BaseURL: cfg.Server.URL})
//
// Keys can be read and written with dot notation, as `tethr config set` does:
//
//	_ = cfg.Set("ui.theme", "dark")
//	v, _ := cfg.Get("server.url")
//
// A Watcher reloads the global config when the file changes.
package config
