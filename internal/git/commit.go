// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package git

import (
	"fmt"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const (
	authorName  = "go-editfiles"
	authorEmail = "noreply@go-editfiles"
)

// HandleDirty checks for uncommitted changes and either commits them
// separately or returns ErrDirtyWorkTree, depending on Config.DirtyCommit.
func (r *Repo) HandleDirty() error {
	dirty, err := r.IsDirty()
	if err != nil {
		return err
	}
	if !dirty {
		return nil
	}
	if !r.cfg.DirtyCommit {
		return ErrDirtyWorkTree
	}

	wt, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}
	if _, err := wt.Add("."); err != nil {
		return fmt.Errorf("staging dirty files: %w", err)
	}
	if err := r.commit(wt, dirtyCommitMsg); err != nil {
		return fmt.Errorf("committing dirty files: %w", err)
	}
	return nil
}

// stage adds the given repository-relative files to the index.
func (r *Repo) stage(files []string) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}
	for _, f := range files {
		if _, err := wt.Add(f); err != nil {
			return fmt.Errorf("staging %s: %w", f, err)
		}
	}
	return nil
}

// commitFiles stages files and commits them with a message generated from
// instructions.
func (r *Repo) commitFiles(files []string, instructions string) error {
	if err := r.stage(files); err != nil {
		return err
	}
	wt, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}
	if err := r.commit(wt, GenerateMessage(instructions, files)); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

func (r *Repo) commit(wt *gogit.Worktree, msg string) error {
	_, err := wt.Commit(msg, &gogit.CommitOptions{
		Author: &object.Signature{
			Name:  authorName,
			Email: authorEmail,
			When:  time.Now(),
		},
	})
	return err
}

// Undo reverts the last commit if go-editfiles made it. The reset is soft,
// so the edits stay staged in the working tree.
func (r *Repo) Undo() error {
	ok, err := r.IsToolCommit()
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotToolCommit
	}

	head, err := r.repo.Head()
	if err != nil {
		return fmt.Errorf("getting HEAD: %w", err)
	}
	commit, err := r.repo.CommitObject(head.Hash())
	if err != nil {
		return fmt.Errorf("getting commit: %w", err)
	}
	if commit.NumParents() == 0 {
		return fmt.Errorf("cannot undo: HEAD is the initial commit")
	}
	parent, err := commit.Parent(0)
	if err != nil {
		return fmt.Errorf("getting parent commit: %w", err)
	}

	wt, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}
	if err := wt.Reset(&gogit.ResetOptions{Commit: parent.Hash, Mode: gogit.SoftReset}); err != nil {
		return fmt.Errorf("resetting to parent: %w", err)
	}
	return nil
}
