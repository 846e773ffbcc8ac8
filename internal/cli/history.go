// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// history.go - Conversation history command.
//
// Command: history
// Aliases: conversations
//
// Subcommands:
//
//	list (default)   List your conversations
//	show ID          Print one conversation
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jeranaias/tethr-tui/internal/logging"
	"github.com/jeranaias/tethr-tui/internal/model"
	"github.com/jeranaias/tethr-tui/internal/tethr"
	"github.com/jeranaias/tethr-tui/internal/util"
)

const (
	idColumnWidth = 38
	minTitleWidth = 20
)

// HandleHistory routes the history subcommands.
func HandleHistory(ctx context.Context, a *App) error {
	switch strings.ToLower(a.Args.Subcommand) {
	case "", "list", "ls":
		return historyList(ctx, a)
	case "show", "view":
		if a.Args.ConvoID == "" {
			return ErrMissingArgument("conversation id", "tethr history show ID")
		}
		return historyShow(ctx, a, a.Args.ConvoID)
	default:
		return &ValidationError{
			Field:   "history subcommand",
			Value:   a.Args.Subcommand,
			Reason:  "expected list or show",
			Example: "tethr history show ID",
		}
	}
}

// conversationList is a fetched or cached conversation list.
type conversationList struct {
	items     []model.ConversationSummary
	cached    bool
	fetchedAt time.Time
}

// fetchConversations lists id's conversations. Fresh lists are cached;
// when the server cannot be reached the cached list is returned instead.
func fetchConversations(ctx context.Context, a *App, id model.Identity) (conversationList, error) {
	store, err := a.Store()
	if err != nil {
		return conversationList{}, err
	}

	items, err := a.Client().ListConversations(ctx, id.Name)
	if err == nil {
		if cerr := store.CacheConversations(ctx, id.Name, items); cerr != nil {
			logging.Warn("cache conversation list", "error", cerr)
		}
		return conversationList{items: items, fetchedAt: time.Now()}, nil
	}

	if !tethr.IsConnection(err) && !tethr.IsTimeout(err) && !tethr.IsUnavailable(err) {
		return conversationList{}, err
	}
	cached, at, cerr := store.CachedConversations(ctx, id.Name)
	if cerr != nil || at.IsZero() {
		return conversationList{}, err
	}
	logging.Info("using cached conversation list", "error", err, "fetched_at", at)
	return conversationList{items: cached, cached: true, fetchedAt: at}, nil
}

func historyList(ctx context.Context, a *App) error {
	id, err := a.Identity(ctx)
	if err != nil {
		return err
	}
	list, err := fetchConversations(ctx, a, id)
	if err != nil {
		return err
	}

	if a.Args.JSON {
		data := HistoryListData{Conversations: list.items, Cached: list.cached}
		if data.Conversations == nil {
			data.Conversations = []model.ConversationSummary{}
		}
		if !list.fetchedAt.IsZero() {
			data.FetchedAt = list.fetchedAt.UTC().Format(time.RFC3339)
		}
		return NewJSONResponse("history", data).Print(a.Out)
	}

	if list.cached {
		a.info("server unreachable; showing list cached %s", list.fetchedAt.Local().Format("2006-01-02 15:04"))
	}
	printConversations(a.Out, list.items, GetTerminalWidth())
	return nil
}

// printConversations writes an id/title table.
func printConversations(w io.Writer, items []model.ConversationSummary, width int) {
	if len(items) == 0 {
		fmt.Fprintln(w, DimStyle.Render("No conversations yet."))
		return
	}
	titleWidth := max(width-idColumnWidth-1, minTitleWidth)
	fmt.Fprintln(w, TitleStyle.Render(util.PadRight("ID", idColumnWidth)+" TITLE"))
	for _, c := range items {
		title := util.TruncateWidth(util.SingleLine(c.Title), titleWidth)
		fmt.Fprintf(w, "%s %s\n", util.PadRight(c.ID, idColumnWidth), title)
	}
}

func historyShow(ctx context.Context, a *App, conversationID string) error {
	id, err := a.Identity(ctx)
	if err != nil {
		return err
	}
	history, err := a.Client().GetConversation(ctx, id.Name, conversationID)
	if err != nil {
		return err
	}
	messages := tethr.ToMessages(history)

	if a.Args.JSON {
		return NewJSONResponse("history", HistoryShowData{
			ConversationID: conversationID,
			Messages:       messages,
		}).Print(a.Out)
	}

	var render func(string) string
	if a.markdown() {
		render = a.renderMarkdown
	}
	for _, m := range messages {
		printMessage(a.Out, m, render)
	}
	return nil
}
