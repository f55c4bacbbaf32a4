// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package git

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/petar-djukic/go-editfiles/pkg/types"
)

// PathFunc maps document handles to absolute file paths.
type PathFunc func([]types.DocumentHandle) []string

// Tracker reports the documents an edit session touched to the repository.
type Tracker struct {
	repo         *Repo
	paths        PathFunc
	instructions string
	log          logrus.FieldLogger
}

// NewTracker returns a tracker for one session. instructions become the
// subject of the generated commit message.
func NewTracker(repo *Repo, paths PathFunc, instructions string, log logrus.FieldLogger) *Tracker {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Tracker{repo: repo, paths: paths, instructions: instructions, log: log}
}

// NotifyEdited stages the edited files and, with AutoCommit, commits them.
// Files outside the working tree are skipped.
func (t *Tracker) NotifyEdited(ctx context.Context, handles []types.DocumentHandle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cfg := t.repo.cfg
	if !cfg.Stage && !cfg.AutoCommit {
		return nil
	}

	var files []string
	for _, p := range t.paths(handles) {
		rel, ok := t.repo.relPath(p)
		if !ok {
			t.log.WithField("file", p).Warn("edited file is outside the repository")
			continue
		}
		files = append(files, rel)
	}
	if len(files) == 0 {
		return nil
	}

	if cfg.AutoCommit {
		if err := t.repo.commitFiles(files, t.instructions); err != nil {
			return err
		}
		t.log.WithField("files", len(files)).Info("committed edits")
		return nil
	}
	if err := t.repo.stage(files); err != nil {
		return err
	}
	t.log.WithField("files", len(files)).Debug("staged edits")
	return nil
}
