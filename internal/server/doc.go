// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server is an in-memory development backend for tethr.
//
// It speaks the same HTTP API as the production chat service so the client
// can be run and tested without it.
//
// # Endpoints
//
//   - POST /api/auth                           - name/password login
//   - POST /api/chat                           - streamed answer (application/x-ndjson)
//   - GET  /api/conversations/{username}       - conversation list, newest first
//   - GET  /api/conversation/{username}/{id}   - messages of one conversation
//   - GET  /health                             - health check
//   - GET  /stats                              - usage counters
//
// # Usage
//
//	srv := server.New(server.Config{Addr: "127.0.0.1:8000"})
//	go srv.ListenAndServe()
//	defer srv.Shutdown(ctx)
//
// In tests, mount Handler on httptest.NewServer instead.
package server
