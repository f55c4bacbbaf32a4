// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package session runs edit sessions: it streams a model response through
// the edit parser, applies each action to its document in parse order,
// and turns the accumulated state into a single textual report.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/petar-djukic/go-editfiles/internal/document"
	"github.com/petar-djukic/go-editfiles/internal/editformat"
	"github.com/petar-djukic/go-editfiles/internal/editor"
	"github.com/petar-djukic/go-editfiles/internal/metrics"
	"github.com/petar-djukic/go-editfiles/pkg/types"
)

const defaultSaveConcurrency = 4

// ErrPathNotFound is returned when an action names a path the document
// store cannot resolve. It aborts the session.
var ErrPathNotFound = errors.New("path not found in project")

// ErrFinalized is returned by Finalize on a session that was already
// finalized.
var ErrFinalized = errors.New("session already finalized")

// ChangeTracker is told which documents a session edited.
type ChangeTracker interface {
	NotifyEdited(ctx context.Context, handles []types.DocumentHandle) error
}

// AuditLog records the raw model output of sessions. It never affects
// control flow.
type AuditLog interface {
	NewRequest(instructions string) string
	RecordChunk(requestID, chunk string, units []types.ParsedUnit)
	SetOutput(requestID, output string, err error)
}

// Deps holds the collaborators of a session. Store is required; the rest
// may be nil.
type Deps struct {
	Store           document.Store
	Tracker         ChangeTracker
	Audit           AuditLog
	Metrics         *metrics.Metrics
	Logger          logrus.FieldLogger
	SaveConcurrency int // Zero uses the default
}

// State is the lifecycle position of a session.
type State int

const (
	StateInitiated State = iota
	StateStreaming
	StateFinalizing
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInitiated:
		return "initiated"
	case StateStreaming:
		return "streaming"
	case StateFinalizing:
		return "finalizing"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Session accumulates the state of one edit session. Actions are applied
// one at a time; each sees the edits applied before it. A Session is not
// safe for concurrent use.
type Session struct {
	deps      Deps
	id        string
	requestID string
	log       logrus.FieldLogger
	state     State
	finalized bool

	parser  *editformat.Parser
	output  strings.Builder
	touched map[types.DocumentHandle]struct{}
	order   []types.DocumentHandle
	bad     []types.BadSearch
}

// New creates a session. requestID ties the session to an audit record
// and may be empty.
func New(deps Deps, requestID string) *Session {
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	if deps.SaveConcurrency <= 0 {
		deps.SaveConcurrency = defaultSaveConcurrency
	}
	id := uuid.NewString()
	s := &Session{
		deps:      deps,
		id:        id,
		requestID: requestID,
		log:       deps.Logger.WithField("session_id", id),
		parser:    editformat.NewParser(),
		touched:   make(map[types.DocumentHandle]struct{}),
	}
	s.output.WriteString(SuccessHeader)
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// State returns the lifecycle state.
func (s *Session) State() State { return s.state }

// Touched returns the edited documents in first-edit order.
func (s *Session) Touched() []types.DocumentHandle {
	out := make([]types.DocumentHandle, len(s.order))
	copy(out, s.order)
	return out
}

// ProcessChunk parses chunk and applies every action it completes. A
// returned error is fatal to the session.
func (s *Session) ProcessChunk(ctx context.Context, chunk string) error {
	if s.state == StateInitiated {
		s.state = StateStreaming
	}
	units := s.parser.ParseChunk(chunk)
	if s.deps.Audit != nil {
		s.deps.Audit.RecordChunk(s.requestID, chunk, units)
	}
	return s.applyAll(ctx, units)
}

// Finish flushes the parser at the end of the stream and applies the
// actions it completes. Those actions are audited under an empty chunk.
func (s *Session) Finish(ctx context.Context) error {
	if s.state == StateInitiated {
		s.state = StateStreaming
	}
	units := s.parser.Finish()
	if s.deps.Audit != nil && len(units) > 0 {
		s.deps.Audit.RecordChunk(s.requestID, "", units)
	}
	return s.applyAll(ctx, units)
}

func (s *Session) applyAll(ctx context.Context, units []types.ParsedUnit) error {
	for _, u := range units {
		if err := s.applyAction(ctx, u); err != nil {
			s.state = StateFailed
			return err
		}
	}
	return nil
}

type diffResult struct {
	diff  types.Diff
	stage types.MatchStage
	bad   *types.BadSearch
	err   error
}

func (s *Session) applyAction(ctx context.Context, u types.ParsedUnit) error {
	action := u.Action
	log := s.log.WithFields(logrus.Fields{"file": action.FilePath, "kind": action.Kind.String()})

	h, err := s.deps.Store.Resolve(ctx, action.FilePath)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPathNotFound, action.FilePath, err)
	}
	snapshot, err := s.deps.Store.Snapshot(ctx, h)
	if err != nil {
		return fmt.Errorf("reading %s: %w", action.FilePath, err)
	}

	res, err := s.computeDiff(ctx, h, action, snapshot)
	if err != nil {
		return err
	}
	s.deps.Metrics.ObserveAction(action.Kind, res.stage)
	log = log.WithField("stage", res.stage.String())

	if res.bad != nil {
		s.bad = append(s.bad, *res.bad)
		closest, sim, start, end := editor.ClosestMatch(snapshot, action.Old)
		log.WithFields(logrus.Fields{
			"closest":    closest,
			"similarity": sim,
			"lines":      fmt.Sprintf("%d-%d", start, end),
		}).Debug("search text not found")
		return nil
	}

	if err := s.deps.Store.Apply(ctx, h, res.diff); err != nil {
		return fmt.Errorf("applying edit to %s: %w", action.FilePath, err)
	}
	s.output.WriteString("\n\n" + u.Source)
	if _, ok := s.touched[h]; !ok {
		s.touched[h] = struct{}{}
		s.order = append(s.order, h)
	}
	log.WithField("edits", len(res.diff.Edits)).Debug("edit applied")
	return nil
}

// computeDiff runs the match on a separate goroutine and waits for it, so
// a cancelled context is noticed while a large document is being searched.
func (s *Session) computeDiff(ctx context.Context, h types.DocumentHandle, action types.EditAction, snapshot string) (diffResult, error) {
	ch := make(chan diffResult, 1)
	go func() {
		var r diffResult
		switch action.Kind {
		case types.ActionReplace:
			r.diff, r.stage, r.bad = editor.LocateAndDiff(action.FilePath, action.Old, action.New, snapshot)
		case types.ActionWrite:
			r.diff, r.err = s.deps.Store.Diff(ctx, h, action.New)
			r.stage = types.StageWholeFile
		default:
			r.err = fmt.Errorf("unknown action kind %s", action.Kind)
		}
		ch <- r
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return r, fmt.Errorf("diffing %s: %w", action.FilePath, r.err)
		}
		return r, nil
	case <-ctx.Done():
		return diffResult{}, ctx.Err()
	}
}

// Finalize saves every edited document once, notifies the change tracker
// and builds the report. Parse errors and unmatched searches are returned
// as an *EditError; a clean session that edited nothing returns
// ErrNoChanges. A session is finalized at most once.
func (s *Session) Finalize(ctx context.Context) (string, error) {
	if s.finalized {
		return "", ErrFinalized
	}
	s.state = StateFinalizing
	s.finalized = true

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.deps.SaveConcurrency)
	for _, h := range s.order {
		g.Go(func() error {
			if err := s.deps.Store.Save(gctx, h); err != nil {
				return fmt.Errorf("saving %s: %w", h, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.state = StateFailed
		return "", err
	}

	if s.deps.Tracker != nil {
		if err := s.deps.Tracker.NotifyEdited(ctx, s.Touched()); err != nil {
			s.log.WithError(err).Warn("change tracker failed")
		}
	}

	parseErrs := s.parser.Errors()
	s.deps.Metrics.AddParseErrors(len(parseErrs))
	msgs := make([]string, len(parseErrs))
	for i, e := range parseErrs {
		msgs[i] = e.Error()
	}

	out, err := BuildReport(ReportState{
		Output:      s.output.String(),
		Touched:     len(s.order),
		BadSearches: s.bad,
		ParseErrors: msgs,
	})
	if err != nil {
		s.state = StateFailed
	} else {
		s.state = StateSucceeded
	}
	s.log.WithFields(logrus.Fields{
		"touched":      len(s.order),
		"bad_searches": len(s.bad),
		"parse_errors": len(msgs),
		"state":        s.state.String(),
	}).Info("edit session finalized")
	return out, err
}
