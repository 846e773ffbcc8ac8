// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	// register sqlite driver
	_ "modernc.org/sqlite"

	"github.com/jeranaias/tethr-tui/internal/model"
	"github.com/jeranaias/tethr-tui/internal/util"
)

// ErrNoIdentity is returned by LoadIdentity when nobody is logged in.
var ErrNoIdentity = errors.New("not logged in")

const keyIdentity = "identity"

// Schema is the database schema for the client store.
const Schema = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS conversations (
	username   TEXT NOT NULL,
	id         TEXT NOT NULL,
	title      TEXT NOT NULL,
	position   INTEGER NOT NULL,
	fetched_at INTEGER NOT NULL,
	PRIMARY KEY (username, id)
);
CREATE INDEX IF NOT EXISTS idx_conversations_user_position ON conversations(username, position);
`

// =============================================================================
// STORE
// =============================================================================

// Store is the client-local sqlite database holding the logged-in identity
// and a cache of conversation lists.
type Store struct {
	db   *sql.DB
	path string
}

// DefaultPath returns ~/.tethr/tethr.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".tethr", "tethr.db"), nil
}

// Open opens (or creates) the store at path. The special path ":memory:"
// opens a private in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), util.PrivateDirPerm); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// SQLite allows one writer at a time
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	s := &Store{db: db, path: path}
	if _, err := db.Exec(Schema); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	if path != ":memory:" {
		_ = os.Chmod(path, util.PrivateFilePerm)
	}
	return s, nil
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.path
}

// Close releases underlying database resources.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// KEY-VALUE
// =============================================================================

// Put stores value under key, replacing any previous value.
func (s *Store) Put(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Get returns the value under key and whether it exists.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// =============================================================================
// IDENTITY
// =============================================================================

// SaveIdentity records the logged-in user.
func (s *Store) SaveIdentity(ctx context.Context, id model.Identity) error {
	if !id.Valid() {
		return errors.New("identity requires a name")
	}
	data, err := json.Marshal(id)
	if err != nil {
		return err
	}
	return s.Put(ctx, keyIdentity, string(data))
}

// LoadIdentity returns the logged-in user, or ErrNoIdentity.
func (s *Store) LoadIdentity(ctx context.Context) (model.Identity, error) {
	raw, ok, err := s.Get(ctx, keyIdentity)
	if err != nil {
		return model.Identity{}, err
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return model.Identity{}, ErrNoIdentity
	}

	var id model.Identity
	if err := json.Unmarshal([]byte(raw), &id); err != nil || !id.Valid() {
		return model.Identity{}, ErrNoIdentity
	}
	return id, nil
}

// ClearIdentity logs out: the identity and the user's cached conversation
// list are removed.
func (s *Store) ClearIdentity(ctx context.Context) error {
	id, err := s.LoadIdentity(ctx)
	if err != nil && !errors.Is(err, ErrNoIdentity) {
		return err
	}
	if err == nil {
		if err := s.ForgetConversations(ctx, id.Name); err != nil {
			return err
		}
	}
	return s.Delete(ctx, keyIdentity)
}
