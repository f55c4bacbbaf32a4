// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/petar-djukic/go-editfiles/internal/llm"
	"github.com/petar-djukic/go-editfiles/internal/metrics"
	"github.com/petar-djukic/go-editfiles/pkg/types"
)

// Request is one invocation of the edit tool.
type Request struct {
	Instructions string          // What to change, in the caller's words
	Conversation []types.Message // Prior conversation, sent as context
}

// Runner drives sessions against an inference client.
type Runner struct {
	deps      Deps
	client    llm.Client
	maxTokens int
	log       logrus.FieldLogger
}

// NewRunner creates a Runner. maxTokens of zero uses the client default.
func NewRunner(deps Deps, client llm.Client, maxTokens int) *Runner {
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	return &Runner{deps: deps, client: client, maxTokens: maxTokens, log: deps.Logger}
}

// Run asks the model for edits and applies them. On success it returns the
// transcript of applied blocks. Failures carry the report as the error
// text; stream and store errors abort before anything is saved.
func (r *Runner) Run(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	requestID := uuid.NewString()
	if r.deps.Audit != nil {
		requestID = r.deps.Audit.NewRequest(req.Instructions)
	}
	s := New(r.deps, requestID)
	log := r.log.WithFields(logrus.Fields{"session_id": s.ID(), "request_id": requestID})

	out, err := r.run(ctx, s, req)

	if r.deps.Audit != nil {
		r.deps.Audit.SetOutput(requestID, out, err)
	}
	outcome := outcomeOf(s, err)
	r.deps.Metrics.ObserveSession(outcome, time.Since(start))

	entry := log.WithFields(logrus.Fields{"outcome": outcome, "duration": time.Since(start).String()})
	if err != nil {
		entry.WithError(err).Warn("edit session failed")
	} else {
		entry.Info("edit session succeeded")
	}
	return out, err
}

func (r *Runner) run(ctx context.Context, s *Session, req Request) (string, error) {
	prompt, err := llm.RenderEditPrompt()
	if err != nil {
		return "", fmt.Errorf("rendering edit prompt: %w", err)
	}

	stream, err := r.client.Stream(ctx, llm.Request{
		Messages:    BuildMessages(req.Conversation, req.Instructions, prompt),
		Temperature: 0,
		MaxTokens:   r.maxTokens,
	})
	if err != nil {
		s.state = StateFailed
		return "", err
	}

	for chunk := range stream.Chunks() {
		if err := s.ProcessChunk(ctx, chunk); err != nil {
			drain(stream)
			return "", err
		}
	}
	if err := stream.Err(); err != nil {
		s.state = StateFailed
		return "", err
	}

	if err := s.Finish(ctx); err != nil {
		return "", err
	}
	return s.Finalize(ctx)
}

// drain discards the rest of a stream the session stopped reading. The
// producer stops once the context is cancelled, which Run does on return.
func drain(stream *llm.Stream) {
	go func() {
		for range stream.Chunks() {
		}
	}()
}

func outcomeOf(s *Session, err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSucceeded
	case errors.Is(err, ErrNoChanges):
		return metrics.OutcomeNoChanges
	case s.finalized:
		return metrics.OutcomeFailed
	default:
		return metrics.OutcomeAborted
	}
}
