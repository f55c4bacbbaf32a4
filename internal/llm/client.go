// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package llm

import (
	"context"
	"errors"

	"github.com/petar-djukic/go-editfiles/pkg/types"
)

// ErrLLMFailure indicates the LLM call failed (network, auth, rate limit,
// interrupted stream).
var ErrLLMFailure = errors.New("LLM failure")

// Request is a single completion request.
type Request struct {
	Messages    []types.Message // Conversation; system messages become the system prompt
	Temperature float64
	MaxTokens   int // Zero uses the client default
}

// Client streams completions from a model.
type Client interface {
	Stream(ctx context.Context, req Request) (*Stream, error)
}

// Stream delivers the text of a completion as it is generated. Chunks is
// closed when the completion ends; Err and Usage are valid after that.
type Stream struct {
	chunks chan string
	err    error
	usage  types.TokenUsage
}

func newStream() *Stream {
	return &Stream{chunks: make(chan string, 64)}
}

// NewStaticStream returns a finished stream that yields chunks and then
// ends with err.
func NewStaticStream(chunks []string, err error) *Stream {
	s := &Stream{chunks: make(chan string, len(chunks))}
	for _, c := range chunks {
		s.chunks <- c
	}
	s.close(types.TokenUsage{}, err)
	return s
}

// Chunks returns the channel of text chunks in generation order.
func (s *Stream) Chunks() <-chan string {
	return s.chunks
}

// Err returns the error that ended the stream, or nil when it completed.
func (s *Stream) Err() error {
	return s.err
}

// Usage returns the token usage reported by the provider.
func (s *Stream) Usage() types.TokenUsage {
	return s.usage
}

// send delivers a chunk, giving up when ctx is done.
func (s *Stream) send(ctx context.Context, chunk string) bool {
	select {
	case s.chunks <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

// close records the outcome and closes the chunk channel. The channel
// close publishes err and usage to readers.
func (s *Stream) close(usage types.TokenUsage, err error) {
	s.usage = usage
	s.err = err
	close(s.chunks)
}
