// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// auth.go - login, logout and whoami.
package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jeranaias/tethr-tui/internal/storage"
)

// HandleLogin authenticates against the server and stores the identity.
// The password is read without echo when stdin is a terminal.
func HandleLogin(ctx context.Context, a *App) error {
	p := newPrompter(a.In, a.Err)

	name := strings.TrimSpace(a.Args.Name)
	if name == "" {
		line, err := p.Line("Name: ")
		if err != nil {
			return fmt.Errorf("read name: %w", err)
		}
		name = strings.TrimSpace(line)
	}
	if name == "" {
		return ErrMissingArgument("name", "tethr login --name demo")
	}

	password, err := p.Password("Password: ")
	if err != nil {
		return err
	}

	id, err := a.Client().Authenticate(ctx, name, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	store, err := a.Store()
	if err != nil {
		return err
	}
	if prev, err := store.LoadIdentity(ctx); err == nil && prev.Name != id.Name {
		if err := store.ClearIdentity(ctx); err != nil {
			return err
		}
	}
	if err := store.SaveIdentity(ctx, *id); err != nil {
		return err
	}

	if a.Args.JSON {
		return NewJSONResponse("login", IdentityData{Name: id.Name, Role: id.Role, Server: a.Config.Server.URL}).Print(a.Out)
	}
	fmt.Fprintf(a.Out, "%s Logged in as %s\n", SuccessStyle.Render("[OK]"), id.String())
	return nil
}

// HandleLogout forgets the stored identity and its cached conversations.
func HandleLogout(ctx context.Context, a *App) error {
	store, err := a.Store()
	if err != nil {
		return err
	}
	id, err := store.LoadIdentity(ctx)
	if errors.Is(err, storage.ErrNoIdentity) {
		a.info("Not logged in.")
		return nil
	}
	if err != nil {
		return err
	}
	if err := store.ClearIdentity(ctx); err != nil {
		return err
	}
	if a.Args.JSON {
		return NewJSONResponse("logout", IdentityData{Name: id.Name, Role: id.Role}).Print(a.Out)
	}
	fmt.Fprintf(a.Out, "Logged out %s\n", id.Name)
	return nil
}

// HandleWhoami prints the stored identity.
func HandleWhoami(ctx context.Context, a *App) error {
	id, err := a.Identity(ctx)
	if err != nil {
		return err
	}
	if a.Args.JSON {
		return NewJSONResponse("whoami", IdentityData{Name: id.Name, Role: id.Role, Server: a.Config.Server.URL}).Print(a.Out)
	}
	fmt.Fprintln(a.Out, RenderKeyValue("Name", id.Name))
	fmt.Fprintln(a.Out, RenderKeyValue("Role", id.Role))
	fmt.Fprintln(a.Out, RenderKeyValue("Server", a.Config.Server.URL))
	return nil
}
