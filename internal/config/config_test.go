// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("TETHR_HOME", dir)
	for _, k := range []string{"TETHR_SERVER_URL", "TETHR_LOG_LEVEL", "TETHR_DB_PATH", "TETHR_THEME"} {
		t.Setenv(k, "")
	}
	return dir
}

// TestConfig_ConcurrentAccess tests that Global() and SetGlobal() can be
// safely called concurrently. Run with -race.
func TestConfig_ConcurrentAccess(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)

		go func() {
			defer wg.Done()
			c := Default()
			c.UI.Theme = "dark"
			SetGlobal(c)
		}()

		go func() {
			defer wg.Done()
			if Global() == nil {
				t.Error("Global() returned nil")
			}
		}()
	}
	wg.Wait()
}

// TestConfig_ConcurrentReload tests concurrent ReloadGlobal and Global calls.
func TestConfig_ConcurrentReload(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()
	_ = Global()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = ReloadGlobal()
		}()
	}
	for i := 0; i < 80; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if Global() == nil {
				t.Error("Global() returned nil")
			}
		}()
	}
	wg.Wait()
}

func TestConfig_SetGlobalOverwrites(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	c := Default()
	c.Server.URL = "http://example.test:9000"
	SetGlobal(c)
	assert.Equal(t, "http://example.test:9000", Global().Server.URL)
}

func TestConfig_Default(t *testing.T) {
	dir := isolate(t)
	cfg := Default()

	assert.Equal(t, "http://127.0.0.1:8000", cfg.Server.URL)
	assert.Equal(t, 30*time.Second, cfg.Server.Timeout())
	assert.Equal(t, 2*time.Minute, cfg.Stream.IdleTimeout())
	assert.Equal(t, 1<<20, cfg.Stream.MaxLineBytes)
	assert.Equal(t, filepath.Join(dir, "tethr.db"), cfg.Storage.Path)
	assert.Equal(t, "auto", cfg.UI.Theme)
	assert.True(t, cfg.UI.Markdown)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad url", func(c *Config) { c.Server.URL = "ftp://x" }, "server.url"},
		{"url without host", func(c *Config) { c.Server.URL = "http://" }, "server.url"},
		{"zero timeout", func(c *Config) { c.Server.TimeoutSecs = 0 }, "server.timeout_secs"},
		{"negative rps", func(c *Config) { c.Server.RequestsPerSecond = -1 }, "server.requests_per_second"},
		{"zero burst", func(c *Config) { c.Server.Burst = 0 }, "server.burst"},
		{"tiny line limit", func(c *Config) { c.Stream.MaxLineBytes = 10 }, "stream.max_line_bytes"},
		{"empty db path", func(c *Config) { c.Storage.Path = " " }, "storage.path"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad theme", func(c *Config) { c.UI.Theme = "neon" }, "ui.theme"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var verrs ValidateErrors
			require.True(t, errors.As(err, &verrs))
			require.Len(t, verrs, 1)
			assert.Equal(t, tt.field, verrs[0].Field)
		})
	}
}

func TestConfig_GetSet(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Set("server.url", "http://10.0.0.5:8000"))
	require.NoError(t, cfg.Set("stream.read-size", "512"))
	require.NoError(t, cfg.Set("server.requests_per_second", "0.5"))
	require.NoError(t, cfg.Set("ui.markdown", "off"))

	v, err := cfg.Get("server.url")
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.5:8000", v)
	assert.Equal(t, 512, cfg.Stream.ReadSize)
	assert.Equal(t, 0.5, cfg.Server.RequestsPerSecond)
	assert.False(t, cfg.UI.Markdown)

	_, err = cfg.Get("server.nope")
	assert.ErrorContains(t, err, "unknown field: server.nope")
	assert.Error(t, cfg.Set("ui", "x"))
	assert.Error(t, cfg.Set("ui.theme.x", "x"))
	assert.Error(t, cfg.Set("stream.read_size", "lots"))
	assert.Error(t, cfg.Set("ui.markdown", "maybe"))
	_, err = cfg.Get("")
	assert.Error(t, err)
}

func TestGetAllKeys(t *testing.T) {
	keys := GetAllKeys()
	assert.Contains(t, keys, "server.url")
	assert.Contains(t, keys, "stream.max_line_bytes")
	assert.Contains(t, keys, "ui.theme")
	assert.IsIncreasing(t, keys)

	cfg := Default()
	for _, k := range keys {
		_, err := cfg.Get(k)
		assert.NoError(t, err, k)
	}
}

func TestConfig_Clone(t *testing.T) {
	cfg := Default()
	clone := cfg.Clone()
	clone.UI.Theme = "light"
	assert.Equal(t, "auto", cfg.UI.Theme)
}

func TestSaveAndLoad(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")

	cfg := Default()
	cfg.Server.URL = "https://tethr.example.com"
	cfg.UI.Markdown = false
	cfg.Server.RequestsPerSecond = 0
	require.NoError(t, Save(cfg))

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://tethr.example.com", loaded.Server.URL)
	assert.False(t, loaded.UI.Markdown, "explicit false survives defaults")
	assert.Equal(t, float64(0), loaded.Server.RequestsPerSecond)
}

func TestSaveCreatesPrivateHome(t *testing.T) {
	home := filepath.Join(isolate(t), "nested", ".tethr")
	path := filepath.Join(home, "config.toml")

	require.NoError(t, SaveTOML(Default(), path))

	if runtime.GOOS != "windows" {
		info, err := os.Stat(home)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
		info, err = os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}
	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, Default().Server.URL, loaded.Server.URL)
}

func TestLoadFillsDefaults(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[ui]\ntheme = \"dark\"\n"), 0644))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "dark", cfg.UI.Theme)
	assert.True(t, cfg.UI.Markdown)
	assert.Equal(t, "http://127.0.0.1:8000", cfg.Server.URL)
	assert.Equal(t, float64(2), cfg.Server.RequestsPerSecond)

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm(), "permissions are tightened on load")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[ui]\ntheme = \"neon\"\n"), 0600))

	_, err := LoadFromPath(path)
	assert.ErrorContains(t, err, "ui.theme")

	require.NoError(t, os.WriteFile(path, []byte("not = [toml"), 0600))
	_, err = LoadFromPath(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("TETHR_SERVER_URL", "http://override:1234/")
	t.Setenv("TETHR_LOG_LEVEL", "DEBUG")
	t.Setenv("TETHR_DB_PATH", "/tmp/other.db")
	t.Setenv("TETHR_THEME", "Light")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://override:1234", cfg.Server.URL)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "/tmp/other.db", cfg.Storage.Path)
	assert.Equal(t, "light", cfg.UI.Theme)
}

func TestWatcherReloads(t *testing.T) {
	dir := isolate(t)
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	path := filepath.Join(dir, "config.toml")
	require.NoError(t, SaveTOML(Default(), path))

	changed := make(chan *Config, 4)
	w, err := NewWatcher(path, 20*time.Millisecond, func(c *Config) { changed <- c })
	require.NoError(t, err)
	defer w.Close()

	cfg := Default()
	cfg.UI.Theme = "dark"
	require.NoError(t, SaveTOML(cfg, path))

	select {
	case c := <-changed:
		assert.Equal(t, "dark", c.UI.Theme)
		assert.Equal(t, "dark", Global().UI.Theme)
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}
}
