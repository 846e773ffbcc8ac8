// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package frame

import (
	"bytes"
	"errors"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/jeranaias/tethr-tui/internal/logging"
)

// DefaultMaxLineBytes bounds a single frame line (1 MiB).
const DefaultMaxLineBytes = 1 << 20

// ErrClosed is returned by Feed after Close.
var ErrClosed = errors.New("frame: codec closed")

// Decoded is one result of a Feed pass: either a Frame or a DecodeFailure.
type Decoded struct {
	Frame   Frame
	Failure *DecodeFailure
}

// IsFailure reports whether this result is a decode failure.
func (d Decoded) IsFailure() bool {
	return d.Failure != nil
}

// =============================================================================
// CODEC
// =============================================================================

// Codec turns raw stream bytes into frames. It is not safe for concurrent use;
// one codec belongs to one stream.
type Codec struct {
	decoder transform.Transformer

	// raw holds bytes of a multi-byte character split across reads.
	raw []byte
	// line holds decoded text not yet terminated by '\n'.
	line []byte
	// scratch is the decoder output buffer, reused across feeds.
	scratch []byte

	maxLine int
	// overflow is set while skipping the remainder of an over-long line.
	overflow bool
	closed   bool
}

// NewCodec creates a codec with the default line limit.
func NewCodec() *Codec {
	return NewCodecWithLimit(DefaultMaxLineBytes)
}

// NewCodecWithLimit creates a codec that rejects lines longer than maxLine bytes.
func NewCodecWithLimit(maxLine int) *Codec {
	if maxLine <= 0 {
		maxLine = DefaultMaxLineBytes
	}
	return &Codec{
		decoder: unicode.UTF8.NewDecoder(),
		scratch: make([]byte, 4096),
		maxLine: maxLine,
	}
}

// Feed decodes one chunk and returns every complete line found so far, in
// arrival order. Empty lines are skipped. The returned slice is nil when the
// chunk completed no line.
func (c *Codec) Feed(chunk []byte) ([]Decoded, error) {
	if c.closed {
		return nil, ErrClosed
	}
	if len(chunk) == 0 {
		return nil, nil
	}

	c.decode(chunk)
	return c.splitLines(), nil
}

// decode appends the UTF-8 text contained in chunk to c.line. Bytes of an
// incomplete trailing character stay in c.raw until the next chunk.
func (c *Codec) decode(chunk []byte) {
	src := chunk
	if len(c.raw) > 0 {
		src = append(c.raw, chunk...)
		c.raw = nil
	}

	for len(src) > 0 {
		nDst, nSrc, err := c.decoder.Transform(c.scratch, src, false)
		c.line = append(c.line, c.scratch[:nDst]...)
		src = src[nSrc:]

		if err == transform.ErrShortDst {
			continue
		}
		if err == transform.ErrShortSrc || nSrc == 0 {
			break
		}
	}

	if len(src) > 0 {
		c.raw = append([]byte(nil), src...)
	}
}

// splitLines extracts complete lines from c.line and keeps the tail.
func (c *Codec) splitLines() []Decoded {
	var out []Decoded

	for {
		idx := bytes.IndexByte(c.line, '\n')
		if idx < 0 {
			break
		}
		raw := c.line[:idx]
		c.line = c.line[idx+1:]

		if c.overflow {
			// Tail of a line that was already reported as too long.
			c.overflow = false
			continue
		}
		if len(raw) > c.maxLine {
			out = append(out, Decoded{Failure: c.tooLong(raw)})
			continue
		}

		text := strings.TrimSpace(string(raw))
		if text == "" {
			continue
		}
		f, err := Parse(text)
		if err != nil {
			var failure *DecodeFailure
			if errors.As(err, &failure) {
				out = append(out, Decoded{Failure: failure})
			} else {
				out = append(out, Decoded{Failure: &DecodeFailure{Line: text, Reason: "parse", Err: err}})
			}
			continue
		}
		out = append(out, Decoded{Frame: f})
	}

	if len(c.line) > c.maxLine && !c.overflow {
		out = append(out, Decoded{Failure: c.tooLong(c.line)})
		c.overflow = true
		c.line = nil
	} else if c.overflow {
		c.line = nil
	}

	// Compact so the backing array does not grow without bound.
	if len(c.line) == 0 {
		c.line = c.line[:0:0]
	} else {
		c.line = append([]byte(nil), c.line...)
	}
	return out
}

func (c *Codec) tooLong(raw []byte) *DecodeFailure {
	preview := raw
	if len(preview) > 64 {
		preview = preview[:64]
	}
	return &DecodeFailure{Line: string(preview), Reason: "line exceeds maximum length"}
}

// Buffered returns the number of bytes held back waiting for a line break,
// including any partial character.
func (c *Codec) Buffered() int {
	return len(c.line) + len(c.raw)
}

// Close ends the stream. Any unterminated fragment is discarded without being
// parsed and its size in bytes is returned. Close is idempotent.
func (c *Codec) Close() int {
	if c.closed {
		return 0
	}
	dropped := c.Buffered()
	c.closed = true
	c.line = nil
	c.raw = nil
	c.overflow = false
	c.decoder.Reset()
	if dropped > 0 {
		logging.Warn("discarded unterminated frame fragment", "bytes", dropped)
	}
	return dropped
}

// Closed reports whether Close has been called.
func (c *Codec) Closed() bool {
	return c.closed
}

// DecodeAll parses a complete stream in one pass. Any unterminated trailing
// fragment is dropped, matching the behaviour of Feed followed by Close.
func DecodeAll(stream []byte) []Decoded {
	c := NewCodec()
	out, _ := c.Feed(stream)
	c.Close()
	return out
}
