// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package document

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/petar-djukic/go-editfiles/internal/editor"
	"github.com/petar-djukic/go-editfiles/pkg/types"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/sirupsen/logrus"
)

const defaultCacheSize = 256

// FSConfig configures a filesystem store.
type FSConfig struct {
	Roots     []string           // Lookup directories, tried in order; defaults to the working directory
	CacheSize int                // Resolved path cache entries; defaults to 256
	DryRun    bool               // Save keeps changes in memory instead of writing them
	Logger    logrus.FieldLogger // Defaults to the standard logger
}

// FSStore is a Store backed by files under a set of root directories.
// Open documents are buffered in memory until saved. Safe for concurrent
// use.
type FSStore struct {
	roots  []string
	dryRun bool
	logger logrus.FieldLogger
	cache  *lru.Cache[string, string] // requested path -> absolute path

	mu   sync.Mutex
	docs map[string]*fsDoc // keyed by absolute path
}

type fsDoc struct {
	abs      string
	rel      string // Path relative to the root it was found under
	original string // Content on disk when opened or last saved
	text     string
	loaded   bool
	exists   bool
}

// NewFSStore creates a filesystem store. Roots must be existing
// directories.
func NewFSStore(cfg FSConfig) (*FSStore, error) {
	roots := cfg.Roots
	if len(roots) == 0 {
		roots = []string{"."}
	}

	var absRoots []string
	for _, r := range roots {
		abs, err := filepath.Abs(r)
		if err != nil {
			return nil, fmt.Errorf("resolving root %s: %w", r, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("root %s: %w", r, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("root %s is not a directory", r)
		}
		absRoots = append(absRoots, abs)
	}

	size := cfg.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("creating path cache: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &FSStore{
		roots:  absRoots,
		dryRun: cfg.DryRun,
		logger: logger,
		cache:  cache,
		docs:   make(map[string]*fsDoc),
	}, nil
}

// Resolve maps a path to a document handle. Relative paths are looked up
// under each root in order; the first existing file wins. A path naming
// no existing file resolves to a new empty document under the first root
// whose matching parent directory exists.
func (s *FSStore) Resolve(ctx context.Context, path string) (types.DocumentHandle, error) {
	if err := ctx.Err(); err != nil {
		return types.DocumentHandle{}, err
	}
	if abs, ok := s.cache.Get(path); ok {
		return types.NewDocumentHandle(abs), nil
	}

	candidates, err := s.candidates(path)
	if err != nil {
		return types.DocumentHandle{}, err
	}

	for _, c := range candidates {
		info, err := os.Stat(c.abs)
		if err != nil {
			continue
		}
		if info.IsDir() {
			return types.DocumentHandle{}, fmt.Errorf("%w: %s is a directory", ErrNotFound, path)
		}
		return s.open(path, c, true), nil
	}

	for _, c := range candidates {
		if info, err := os.Stat(filepath.Dir(c.abs)); err == nil && info.IsDir() {
			return s.open(path, c, false), nil
		}
	}

	return types.DocumentHandle{}, fmt.Errorf("%w: %s", ErrNotFound, path)
}

type candidate struct {
	abs string
	rel string
}

// candidates lists the locations path may refer to, one per root that
// contains it.
func (s *FSStore) candidates(path string) ([]candidate, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimSpace(path)))
	if clean == "." || clean == "" {
		return nil, fmt.Errorf("%w: empty path", ErrNotFound)
	}

	var out []candidate
	for _, root := range s.roots {
		abs := clean
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(root, clean)
		}
		rel, err := filepath.Rel(root, abs)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		out = append(out, candidate{abs: abs, rel: filepath.ToSlash(rel)})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	return out, nil
}

func (s *FSStore) open(path string, c candidate, exists bool) types.DocumentHandle {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[c.abs]; !ok {
		s.docs[c.abs] = &fsDoc{abs: c.abs, rel: c.rel, exists: exists}
	}
	s.cache.Add(path, c.abs)
	return types.NewDocumentHandle(c.abs)
}

// doc returns the buffered document for h, reading it from disk on first
// use. Callers hold s.mu.
func (s *FSStore) doc(h types.DocumentHandle) (*fsDoc, error) {
	d, ok := s.docs[h.ID()]
	if !ok {
		return nil, fmt.Errorf("%w: unknown handle %s", ErrNotFound, h)
	}
	if d.loaded {
		return d, nil
	}

	data, err := os.ReadFile(d.abs)
	switch {
	case err == nil:
		d.original = string(data)
		d.exists = true
	case errors.Is(err, fs.ErrNotExist):
		d.exists = false
	default:
		return nil, fmt.Errorf("reading %s: %w", d.rel, err)
	}
	d.text = d.original
	d.loaded = true
	return d, nil
}

// Snapshot returns the current buffered text of the document.
func (s *FSStore) Snapshot(ctx context.Context, h types.DocumentHandle) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.doc(h)
	if err != nil {
		return "", err
	}
	return d.text, nil
}

// Diff computes the diff turning the current text into target.
func (s *FSStore) Diff(ctx context.Context, h types.DocumentHandle, target string) (types.Diff, error) {
	snapshot, err := s.Snapshot(ctx, h)
	if err != nil {
		return types.Diff{}, err
	}
	return editor.WholeFileDiff(target, snapshot), nil
}

// Apply applies diff to the buffered text. Nothing is written until Save.
func (s *FSStore) Apply(ctx context.Context, h types.DocumentHandle, diff types.Diff) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.doc(h)
	if err != nil {
		return err
	}
	text, err := diff.Apply(d.text)
	if err != nil {
		return fmt.Errorf("applying diff to %s: %w", d.rel, err)
	}
	d.text = text
	return nil
}

// Save persists the buffered text. Unchanged existing documents are not
// rewritten. In dry-run mode the text stays in memory.
func (s *FSStore) Save(ctx context.Context, h types.DocumentHandle) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	d, err := s.doc(h)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	text, rel, abs := d.text, d.rel, d.abs
	unchanged := d.exists && text == d.original
	s.mu.Unlock()

	if unchanged {
		return nil
	}
	if s.dryRun {
		s.logger.WithField("file", rel).Debug("dry run, not saving")
		return nil
	}

	if err := atomicWrite(abs, []byte(text)); err != nil {
		return fmt.Errorf("saving %s: %w", rel, err)
	}
	s.logger.WithField("file", rel).Debug("saved")

	s.mu.Lock()
	d.original = text
	d.exists = true
	s.mu.Unlock()
	return nil
}

// UnifiedDiff renders the unsaved change of a document as a unified diff.
// The result is empty when the document is unchanged.
func (s *FSStore) UnifiedDiff(h types.DocumentHandle) (string, error) {
	s.mu.Lock()
	d, err := s.doc(h)
	if err != nil {
		s.mu.Unlock()
		return "", err
	}
	original, text, rel := d.original, d.text, d.rel
	s.mu.Unlock()

	if original == text {
		return "", nil
	}
	from := "a/" + rel
	if original == "" {
		from = "/dev/null"
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(original),
		B:        difflib.SplitLines(text),
		FromFile: from,
		ToFile:   "b/" + rel,
		Context:  3,
	})
}

// Paths returns the absolute file path of each handle, in order.
func (s *FSStore) Paths(handles []types.DocumentHandle) []string {
	out := make([]string, 0, len(handles))
	for _, h := range handles {
		out = append(out, h.ID())
	}
	return out
}

// RelPath returns the root-relative, slash-separated path of a handle.
func (s *FSStore) RelPath(h types.DocumentHandle) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.docs[h.ID()]; ok {
		return d.rel
	}
	return h.ID()
}
