// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage keeps tethr's client-local state in a sqlite database.
//
// Two things live there: the identity of the logged-in user and the last
// conversation list fetched for each user, used when the server cannot be
// reached.
//
// # Usage
//
//	store, err := storage.Open(path)
//	defer store.Close()
//
//	err = store.SaveIdentity(ctx, model.Identity{Name: "Naveen", Role: "Engineer"})
//	id, err := store.LoadIdentity(ctx) // storage.ErrNoIdentity when logged out
//
// # Storage Location
//
// The database is ~/.tethr/tethr.db unless configured otherwise.
package storage
