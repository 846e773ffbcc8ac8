// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/jeranaias/tethr-tui/internal/logging"
)

// ErrIdleTimeout is reported when the stream delivers no bytes for longer
// than StreamOptions.IdleTimeout.
var ErrIdleTimeout = errors.New("stream idle timeout")

// =============================================================================
// STREAM OPTIONS
// =============================================================================

// StreamOptions tunes how a response body is read.
type StreamOptions struct {
	// ReadSize is the buffer size of each read (default: 4 KiB).
	ReadSize int

	// IdleTimeout fails the turn when no bytes arrive for this long.
	// Zero disables the check.
	IdleTimeout time.Duration
}

// DefaultStreamOptions returns the default read options.
func DefaultStreamOptions() StreamOptions {
	return StreamOptions{
		ReadSize:    4096,
		IdleTimeout: 2 * time.Minute,
	}
}

func (o StreamOptions) withDefaults() StreamOptions {
	if o.ReadSize <= 0 {
		o.ReadSize = 4096
	}
	return o
}

// =============================================================================
// CHUNK READER
// =============================================================================

// Chunk is one read from a response body. The last chunk on a channel has a
// non-nil Err: io.EOF for a clean end, ErrIdleTimeout, a context error, or the
// read error.
type Chunk struct {
	Data []byte
	Err  error
}

// ReadChunks reads body on background goroutines and delivers the bytes in
// order on the returned channel, which is closed after the final chunk.
// If body is an io.Closer it is closed when reading stops, which also
// unblocks a pending Read after a timeout or cancellation.
func ReadChunks(ctx context.Context, body io.Reader, opts StreamOptions) <-chan Chunk {
	opts = opts.withDefaults()
	out := make(chan Chunk)
	raw := make(chan Chunk)
	done := make(chan struct{})

	go func() {
		defer close(raw)
		for {
			buf := make([]byte, opts.ReadSize)
			n, err := body.Read(buf)
			if n > 0 {
				select {
				case raw <- Chunk{Data: buf[:n]}:
				case <-done:
					return
				}
			}
			if err != nil {
				select {
				case raw <- Chunk{Err: err}:
				case <-done:
				}
				return
			}
		}
	}()

	go func() {
		defer close(out)
		defer close(done)
		if c, ok := body.(io.Closer); ok {
			defer c.Close()
		}

		var idle <-chan time.Time
		var timer *time.Timer
		if opts.IdleTimeout > 0 {
			timer = time.NewTimer(opts.IdleTimeout)
			defer timer.Stop()
			idle = timer.C
		}

		send := func(c Chunk) bool {
			select {
			case out <- c:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			select {
			case c, ok := <-raw:
				if !ok {
					return
				}
				if !send(c) || c.Err != nil {
					return
				}
				if timer != nil {
					if !timer.Stop() {
						select {
						case <-timer.C:
						default:
						}
					}
					timer.Reset(opts.IdleTimeout)
				}
			case <-idle:
				send(Chunk{Err: ErrIdleTimeout})
				return
			case <-ctx.Done():
				// The consumer may have stopped listening; do not block.
				select {
				case out <- Chunk{Err: ctx.Err()}:
				default:
				}
				return
			}
		}
	}()

	return out
}

// =============================================================================
// STREAM PUMP
// =============================================================================

// Stream feeds body into turn until the turn resolves or the body ends, then
// closes the turn. It runs on the caller's goroutine, so turn's controller
// must not be used concurrently while Stream runs.
//
// A clean end of stream returns nil even when the turn failed; transport
// problems are returned after the turn has been failed with
// MsgConnectionClosed.
func Stream(ctx context.Context, turn *Turn, body io.Reader, opts StreamOptions) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var streamErr error
	for c := range ReadChunks(ctx, body, opts) {
		if len(c.Data) > 0 {
			if err := turn.Feed(c.Data); err != nil {
				streamErr = err
				break
			}
		}
		if c.Err != nil {
			if !errors.Is(c.Err, io.EOF) {
				streamErr = c.Err
			}
			break
		}
		if turn.Done() {
			break
		}
	}

	if streamErr == nil && ctx.Err() != nil && !turn.Done() {
		streamErr = ctx.Err()
	}
	if streamErr != nil && !turn.Done() {
		logging.Warn("response stream failed", "turn", turn.ID(), "error", streamErr)
	}
	turn.Close()
	return streamErr
}
