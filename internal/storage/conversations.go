// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jeranaias/tethr-tui/internal/model"
)

// =============================================================================
// CONVERSATION LIST CACHE
// =============================================================================

// CacheConversations replaces the cached conversation list of username.
// Order is preserved, so the newest conversation stays first.
func (s *Store) CacheConversations(ctx context.Context, username string, list []model.ConversationSummary) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE username = ?`, username); err != nil {
		return fmt.Errorf("clear cached conversations: %w", err)
	}

	now := time.Now().Unix()
	for i, c := range list {
		_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO conversations (username, id, title, position, fetched_at)
			VALUES (?, ?, ?, ?, ?)`,
			username, c.ID, c.Title, i, now)
		if err != nil {
			return fmt.Errorf("cache conversation %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// CachedConversations returns the last cached list of username and when it
// was fetched. An empty cache returns a nil list and a zero time.
func (s *Store) CachedConversations(ctx context.Context, username string) ([]model.ConversationSummary, time.Time, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, fetched_at FROM conversations
		WHERE username = ? ORDER BY position`, username)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("query cached conversations: %w", err)
	}
	defer rows.Close()

	var (
		list    []model.ConversationSummary
		fetched int64
	)
	for rows.Next() {
		var c model.ConversationSummary
		if err := rows.Scan(&c.ID, &c.Title, &fetched); err != nil {
			return nil, time.Time{}, err
		}
		list = append(list, c)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, err
	}
	if len(list) == 0 {
		return nil, time.Time{}, nil
	}
	return list, time.Unix(fetched, 0), nil
}

// ForgetConversations drops the cached list of username.
func (s *Store) ForgetConversations(ctx context.Context, username string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE username = ?`, username); err != nil {
		return fmt.Errorf("forget conversations: %w", err)
	}
	return nil
}
