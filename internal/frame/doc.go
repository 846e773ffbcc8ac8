// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package frame decodes the newline-delimited JSON stream returned by the
// chat endpoint into typed frames.
//
// # Key Types
//
//   - Frame: immutable decoded unit (content, turn end, turn error)
//   - Codec: incremental decoder fed with raw network chunks
//   - DecodeFailure: a complete line that could not be turned into a Frame
//
// # Usage
//
//	codec := frame.NewCodec()
//	for chunk := range chunks {
//	    decoded, err := codec.Feed(chunk)
//	    if err != nil {
//	        break // codec already closed
//	    }
//	    for _, d := range decoded {
//	        if d.Failure != nil {
//	            continue // logged by the caller, never fatal
//	        }
//	        handle(d.Frame)
//	    }
//	}
//	codec.Close() // drops any unterminated trailing fragment
//
// Network reads may split a line, or a multi-byte character, at any byte.
// The codec decodes UTF-8 incrementally beneath line splitting, so splitting
// the same stream differently always yields the same frames.
package frame
