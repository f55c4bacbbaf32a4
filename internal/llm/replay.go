// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package llm

import (
	"context"
	"unicode/utf8"
)

const defaultReplayChunkSize = 64

// ReplayClient is a Client that streams a recorded response instead of
// calling a model. The response is cut into chunks of ChunkSize bytes,
// never splitting a UTF-8 sequence.
type ReplayClient struct {
	Response  string
	ChunkSize int
}

// Stream ignores req and streams the recorded response.
func (c *ReplayClient) Stream(ctx context.Context, req Request) (*Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	size := c.ChunkSize
	if size <= 0 {
		size = defaultReplayChunkSize
	}
	return NewStaticStream(Chunk(c.Response, size), nil), nil
}

// Chunk cuts s into pieces of about size bytes on rune boundaries.
func Chunk(s string, size int) []string {
	var out []string
	for len(s) > size {
		n := size
		for n > 0 && !utf8.RuneStart(s[n]) {
			n--
		}
		if n == 0 {
			_, n = utf8.DecodeRuneInString(s)
		}
		out = append(out, s[:n])
		s = s[n:]
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}
