// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package audit records what the editing model was asked, what it
// streamed back and what the session reported. Sinks never fail the
// session: write errors are logged and dropped.
package audit

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/petar-djukic/go-editfiles/pkg/types"
)

// Sink receives audit events for edit requests.
type Sink interface {
	NewRequest(instructions string) string
	RecordChunk(requestID, chunk string, units []types.ParsedUnit)
	SetOutput(requestID, output string, err error)
}

// Logger writes audit events to a logrus logger.
type Logger struct {
	log logrus.FieldLogger
}

// NewLogger returns a Logger. A nil log uses the standard logger.
func NewLogger(log logrus.FieldLogger) *Logger {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Logger{log: log.WithField("component", "audit")}
}

func (l *Logger) NewRequest(instructions string) string {
	id := uuid.NewString()
	l.adoptRequest(id, instructions)
	return id
}

func (l *Logger) adoptRequest(id, instructions string) {
	l.log.WithFields(logrus.Fields{
		"request_id":   id,
		"instructions": instructions,
	}).Info("edit request")
}

func (l *Logger) RecordChunk(requestID, chunk string, units []types.ParsedUnit) {
	entry := l.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"bytes":      len(chunk),
	})
	if len(units) > 0 {
		actions := make([]string, len(units))
		for i, u := range units {
			actions[i] = u.Action.String()
		}
		entry = entry.WithField("actions", actions)
	}
	entry.Debug("response chunk")
}

func (l *Logger) SetOutput(requestID, output string, err error) {
	entry := l.log.WithField("request_id", requestID)
	if err != nil {
		entry.WithError(err).Warn("edit request failed")
		return
	}
	entry.WithField("output_bytes", len(output)).Info("edit request completed")
}

// Multi fans events out to several sinks under one request id, generated
// by Multi itself.
type Multi []Sink

func (m Multi) NewRequest(instructions string) string {
	id := uuid.NewString()
	for _, s := range m {
		if r, ok := s.(requestAdopter); ok {
			r.adoptRequest(id, instructions)
			continue
		}
		s.NewRequest(instructions)
	}
	return id
}

func (m Multi) RecordChunk(requestID, chunk string, units []types.ParsedUnit) {
	for _, s := range m {
		s.RecordChunk(requestID, chunk, units)
	}
}

func (m Multi) SetOutput(requestID, output string, err error) {
	for _, s := range m {
		s.SetOutput(requestID, output, err)
	}
}

// requestAdopter is implemented by sinks that can record a request under
// an id chosen elsewhere.
type requestAdopter interface {
	adoptRequest(id, instructions string)
}
