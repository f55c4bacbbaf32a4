// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package document

import (
	"context"
	"fmt"
	"sync"

	"github.com/petar-djukic/go-editfiles/internal/editor"
	"github.com/petar-djukic/go-editfiles/pkg/types"
)

// MemStore is an in-memory Store. Paths resolve when they were seeded or
// when AllowCreate is set. Safe for concurrent use.
type MemStore struct {
	// AllowCreate makes unknown paths resolve to new empty documents.
	AllowCreate bool

	mu    sync.Mutex
	text  map[string]string
	saved map[string]string
	saves map[string]int
}

// NewMemStore returns a store seeded with files, keyed by path.
func NewMemStore(files map[string]string) *MemStore {
	m := &MemStore{
		text:  make(map[string]string, len(files)),
		saved: make(map[string]string, len(files)),
		saves: make(map[string]int),
	}
	for p, content := range files {
		m.text[p] = content
		m.saved[p] = content
	}
	return m
}

func (m *MemStore) Resolve(ctx context.Context, path string) (types.DocumentHandle, error) {
	if err := ctx.Err(); err != nil {
		return types.DocumentHandle{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.text[path]; !ok {
		if !m.AllowCreate || path == "" {
			return types.DocumentHandle{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		m.text[path] = ""
	}
	return types.NewDocumentHandle(path), nil
}

func (m *MemStore) Snapshot(ctx context.Context, h types.DocumentHandle) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	text, ok := m.text[h.ID()]
	if !ok {
		return "", fmt.Errorf("%w: unknown handle %s", ErrNotFound, h)
	}
	return text, nil
}

func (m *MemStore) Diff(ctx context.Context, h types.DocumentHandle, target string) (types.Diff, error) {
	snapshot, err := m.Snapshot(ctx, h)
	if err != nil {
		return types.Diff{}, err
	}
	return editor.WholeFileDiff(target, snapshot), nil
}

func (m *MemStore) Apply(ctx context.Context, h types.DocumentHandle, diff types.Diff) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	text, ok := m.text[h.ID()]
	if !ok {
		return fmt.Errorf("%w: unknown handle %s", ErrNotFound, h)
	}
	updated, err := diff.Apply(text)
	if err != nil {
		return fmt.Errorf("applying diff to %s: %w", h, err)
	}
	m.text[h.ID()] = updated
	return nil
}

func (m *MemStore) Save(ctx context.Context, h types.DocumentHandle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	text, ok := m.text[h.ID()]
	if !ok {
		return fmt.Errorf("%w: unknown handle %s", ErrNotFound, h)
	}
	m.saved[h.ID()] = text
	m.saves[h.ID()]++
	return nil
}

// Content returns the current, possibly unsaved, text of path.
func (m *MemStore) Content(path string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text[path]
}

// Saved returns the text of path as of its last Save.
func (m *MemStore) Saved(path string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved[path]
}

// SaveCount returns how many times path was saved.
func (m *MemStore) SaveCount(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves[path]
}
