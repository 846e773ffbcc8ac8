// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package frame

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioA = `{"type":"chunk","content":"Hel"}` + "\n" +
	`{"type":"chunk","content":"lo"}` + "\n" +
	`{"type":"end","convo_id":"c1"}` + "\n"

func feedAll(t *testing.T, c *Codec, chunks ...string) []Decoded {
	t.Helper()
	var out []Decoded
	for _, chunk := range chunks {
		got, err := c.Feed([]byte(chunk))
		require.NoError(t, err)
		out = append(out, got...)
	}
	return out
}

func frames(ds []Decoded) []Frame {
	var out []Frame
	for _, d := range ds {
		if !d.IsFailure() {
			out = append(out, d.Frame)
		}
	}
	return out
}

func TestCodec_SingleChunk(t *testing.T) {
	c := NewCodec()
	got := feedAll(t, c, scenarioA)

	assert.Equal(t, []Frame{Content("Hel"), Content("lo"), TurnEnd("c1")}, frames(got))
	assert.Equal(t, 0, c.Buffered())
}

func TestCodec_SplitMidLine(t *testing.T) {
	c := NewCodec()
	got := feedAll(t, c, `{"type":"ch`, strings.TrimPrefix(scenarioA, `{"type":"ch`))

	assert.Equal(t, []Frame{Content("Hel"), Content("lo"), TurnEnd("c1")}, frames(got))
}

func TestCodec_PartialLineIsBuffered(t *testing.T) {
	c := NewCodec()
	got := feedAll(t, c, `{"type":"chunk",`)

	assert.Nil(t, got)
	assert.Equal(t, len(`{"type":"chunk",`), c.Buffered())
}

// Every split point of a multi-frame stream, including points inside
// multi-byte characters, must yield the same frames as a single read.
func TestCodec_EverySplitPoint(t *testing.T) {
	stream := `{"type":"chunk","content":"héllo "}` + "\n" +
		`{"type":"chunk","content":"世界 🎉"}` + "\r\n" +
		"\n" +
		`{"type":"error","content":"ünïcode"}` + "\n" +
		`{"type":"end","convo_id":"c-9"}` + "\n"

	want := frames(DecodeAll([]byte(stream)))
	require.Len(t, want, 4)
	assert.Equal(t, Content("世界 🎉"), want[1])

	raw := []byte(stream)
	for i := 0; i <= len(raw); i++ {
		c := NewCodec()
		var got []Decoded
		for _, part := range [][]byte{raw[:i], raw[i:]} {
			out, err := c.Feed(part)
			require.NoError(t, err)
			got = append(got, out...)
		}
		assert.Equal(t, want, frames(got), "split at byte %d", i)
		assert.Equal(t, 0, c.Close(), "split at byte %d", i)
	}
}

func TestCodec_ByteAtATime(t *testing.T) {
	raw := []byte(`{"type":"chunk","content":"日本語"}` + "\n")
	c := NewCodec()

	var got []Decoded
	for i := range raw {
		out, err := c.Feed(raw[i : i+1])
		require.NoError(t, err)
		got = append(got, out...)
	}
	assert.Equal(t, []Frame{Content("日本語")}, frames(got))
}

func TestCodec_DecodeFailureDoesNotStopStream(t *testing.T) {
	c := NewCodec()
	got := feedAll(t, c, "not-json\n"+`{"type":"chunk","content":"ok"}`+"\n")

	require.Len(t, got, 2)
	require.True(t, got[0].IsFailure())
	assert.Equal(t, "not-json", got[0].Failure.Line)
	assert.Equal(t, "invalid json", got[0].Failure.Reason)
	assert.Equal(t, Content("ok"), got[1].Frame)
}

func TestCodec_SkipsEmptyAndWhitespaceLines(t *testing.T) {
	c := NewCodec()
	got := feedAll(t, c, "\n\n   \n\t\r\n"+`  {"type":"chunk","content":"a"}  `+"\r\n")

	assert.Len(t, got, 1)
	assert.Equal(t, Content("a"), got[0].Frame)
}

func TestCodec_UnknownType(t *testing.T) {
	c := NewCodec()
	got := feedAll(t, c, `{"type":"status","content":"x"}`+"\n")

	require.Len(t, got, 1)
	require.True(t, got[0].IsFailure())
	assert.Contains(t, got[0].Failure.Reason, "unknown frame type")
}

func TestCodec_InvalidBytesAreReplaced(t *testing.T) {
	c := NewCodec()
	got, err := c.Feed([]byte("{\"type\":\"chunk\",\"content\":\"a\xffb\"}\n"))
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, Content("a�b"), got[0].Frame)
}

func TestCodec_CloseDiscardsFragment(t *testing.T) {
	c := NewCodec()
	got := feedAll(t, c, `{"type":"chunk","content":"partial"}`+"\n"+`{"type":"end","convo_id":"c1"}`)

	assert.Equal(t, []Frame{Content("partial")}, frames(got))
	assert.Equal(t, len(`{"type":"end","convo_id":"c1"}`), c.Close())
	assert.True(t, c.Closed())
	assert.Equal(t, 0, c.Buffered())

	assert.Equal(t, 0, c.Close())

	_, err := c.Feed([]byte("\n"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCodec_CloseDiscardsPartialCharacter(t *testing.T) {
	c := NewCodec()
	// First two bytes of a three byte character.
	_, err := c.Feed([]byte{0xe4, 0xb8})
	require.NoError(t, err)
	assert.Equal(t, 2, c.Buffered())
	assert.Equal(t, 2, c.Close())
}

func TestCodec_LineTooLong(t *testing.T) {
	c := NewCodecWithLimit(40)

	long := `{"type":"chunk","content":"` + strings.Repeat("x", 60) + `"}`
	got := feedAll(t, c, long[:50], long[50:]+"\n"+`{"type":"chunk","content":"ok"}`+"\n")

	require.Len(t, got, 2)
	require.True(t, got[0].IsFailure())
	assert.Equal(t, "line exceeds maximum length", got[0].Failure.Reason)
	assert.Equal(t, Content("ok"), got[1].Frame)
}

func TestCodec_LineTooLongInOneChunk(t *testing.T) {
	c := NewCodecWithLimit(40)

	got := feedAll(t, c, strings.Repeat("y", 50)+"\n"+`{"type":"end","convo_id":"c"}`+"\n")

	require.Len(t, got, 2)
	assert.True(t, got[0].IsFailure())
	assert.False(t, got[1].IsFailure())
}

func TestCodec_EmptyFeed(t *testing.T) {
	c := NewCodec()
	got, err := c.Feed(nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}
