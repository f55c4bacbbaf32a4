// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package git

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	gogit "github.com/go-git/go-git/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petar-djukic/go-editfiles/pkg/types"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// handles returns handles whose ids are absolute paths under dir.
func handles(dir string, names ...string) []types.DocumentHandle {
	out := make([]types.DocumentHandle, len(names))
	for i, n := range names {
		out[i] = types.NewDocumentHandle(filepath.Join(dir, filepath.FromSlash(n)))
	}
	return out
}

func idPaths(hs []types.DocumentHandle) []string {
	out := make([]string, len(hs))
	for i, h := range hs {
		out[i] = h.ID()
	}
	return out
}

func stagedFiles(t *testing.T, dir string) map[string]gogit.StatusCode {
	t.Helper()
	r, err := gogit.PlainOpen(dir)
	require.NoError(t, err)
	wt, err := r.Worktree()
	require.NoError(t, err)
	status, err := wt.Status()
	require.NoError(t, err)

	out := make(map[string]gogit.StatusCode)
	for f, s := range status {
		out[f] = s.Staging
	}
	return out
}

func TestTracker_StagesEditedFiles(t *testing.T) {
	dir := initTestRepo(t)
	repo, err := Open(Config{WorkDir: dir, Stage: true})
	require.NoError(t, err)

	writeFile(t, dir, "main.go", "package main\n\nfunc main() { println() }\n")
	writeFile(t, dir, "pkg/new.go", "package pkg\n")
	writeFile(t, dir, "other.go", "package main\n")

	tr := NewTracker(repo, idPaths, "Print something", quietLogger())
	require.NoError(t, tr.NotifyEdited(context.Background(), handles(dir, "main.go", "pkg/new.go")))

	staged := stagedFiles(t, dir)
	assert.Equal(t, gogit.Modified, staged["main.go"])
	assert.Equal(t, gogit.Added, staged["pkg/new.go"])
	assert.Equal(t, gogit.Untracked, staged["other.go"])

	count, err := repo.commitCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestTracker_AutoCommit(t *testing.T) {
	dir := initTestRepo(t)
	repo, err := Open(Config{WorkDir: dir, AutoCommit: true})
	require.NoError(t, err)

	writeFile(t, dir, "feature.go", "package main\n\nfunc Feature() {}\n")
	writeFile(t, dir, "untouched.go", "package main\n")

	tr := NewTracker(repo, idPaths, "Add a feature", quietLogger())
	require.NoError(t, tr.NotifyEdited(context.Background(), handles(dir, "feature.go")))

	count, err := repo.commitCount()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	msg, err := repo.lastCommitMessage()
	require.NoError(t, err)
	assert.Contains(t, msg, "feat: add a feature")
	assert.Contains(t, msg, "- feature.go")
	assert.Contains(t, msg, toolTrailer)

	// Only the edited file was committed.
	dirty, err := repo.IsDirty()
	require.NoError(t, err)
	assert.True(t, dirty)

	require.NoError(t, repo.Undo())
	count, err = repo.commitCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestTracker_Noop(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		handles func(dir string) []types.DocumentHandle
	}{
		{"disabled", Config{}, func(dir string) []types.DocumentHandle { return handles(dir, "main.go") }},
		{"no handles", Config{AutoCommit: true}, func(string) []types.DocumentHandle { return nil }},
		{"outside repository", Config{AutoCommit: true}, func(string) []types.DocumentHandle {
			return handles(filepath.Join(string(filepath.Separator), "elsewhere"), "x.go")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := initTestRepo(t)
			tt.cfg.WorkDir = dir
			repo, err := Open(tt.cfg)
			require.NoError(t, err)

			writeFile(t, dir, "main.go", "package main\n// changed\n")
			tr := NewTracker(repo, idPaths, "x", quietLogger())
			require.NoError(t, tr.NotifyEdited(context.Background(), tt.handles(dir)))

			count, err := repo.commitCount()
			require.NoError(t, err)
			assert.Equal(t, 1, count)
			assert.Equal(t, gogit.Unmodified, stagedFiles(t, dir)["main.go"])
		})
	}
}

func TestTracker_CancelledContext(t *testing.T) {
	dir := initTestRepo(t)
	repo, err := Open(Config{WorkDir: dir, AutoCommit: true})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = NewTracker(repo, idPaths, "x", quietLogger()).NotifyEdited(ctx, handles(dir, "main.go"))
	assert.ErrorIs(t, err, context.Canceled)
}
