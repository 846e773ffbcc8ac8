// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the conversation state machine.
//
// A Controller tracks the active conversation id and the single turn that
// may be in flight. Raw stream bytes enter through a Turn handle, are split
// into frames by the frame codec, routed by the dispatcher, and leave as
// render events on the controller's Sink.
//
// # Key Types
//
//   - Controller: conversation state machine (Idle, AwaitingFirstByte, Streaming)
//   - Turn: handle for feeding one response stream into the controller
//   - Snapshot: read-only view of the controller state
//
// # Usage
//
//	ctrl := session.NewController(sink)
//	turn, err := ctrl.StartTurn("hello")
//	if err != nil {
//	    return err // errors.Is(err, session.ErrInvalidOperation)
//	}
//	body, err := client.OpenChat(ctx, req)
//	if err != nil {
//	    turn.Fail(err.Error())
//	    return err
//	}
//	return session.Stream(ctx, turn, body, session.DefaultStreamOptions())
//
// # Concurrency
//
// A Controller is not safe for concurrent use. All calls must come from one
// goroutine; ReadChunks moves blocking reads off that goroutine and hands
// the bytes back over a channel.
package session
