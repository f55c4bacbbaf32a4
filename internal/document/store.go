// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package document provides the document stores edit sessions read from
// and write to. A store resolves paths to handles, hands out snapshots of
// the current text, applies diffs in memory and persists documents on
// Save.
package document

import (
	"context"
	"errors"

	"github.com/petar-djukic/go-editfiles/pkg/types"
)

var (
	// ErrNotFound is returned when a path does not resolve to a document.
	ErrNotFound = errors.New("document not found")

	// ErrOutsideRoot is returned when a path escapes every workspace root.
	ErrOutsideRoot = errors.New("path is outside the workspace roots")
)

// Store is the document collaborator of an edit session. Diffs handed to
// Apply must have been computed against the current snapshot of the same
// document.
type Store interface {
	Resolve(ctx context.Context, path string) (types.DocumentHandle, error)
	Snapshot(ctx context.Context, h types.DocumentHandle) (string, error)
	Diff(ctx context.Context, h types.DocumentHandle, target string) (types.Diff, error)
	Apply(ctx context.Context, h types.DocumentHandle, diff types.Diff) error
	Save(ctx context.Context, h types.DocumentHandle) error
}
