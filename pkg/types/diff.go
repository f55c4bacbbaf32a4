// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package types

import (
	"fmt"
	"sort"
)

// TextEdit replaces the byte range [Start, End) of a document with NewText.
type TextEdit struct {
	Start   int
	End     int
	NewText string
}

// Diff is a positional description of a change to one document snapshot.
// Edits are sorted by Start and never overlap; offsets refer to the
// snapshot the diff was computed against.
type Diff struct {
	Edits []TextEdit
}

// IsEmpty reports whether the diff changes nothing.
func (d Diff) IsEmpty() bool {
	return len(d.Edits) == 0
}

// Apply returns text with every edit applied. Edits are applied back to
// front so earlier offsets stay valid.
func (d Diff) Apply(text string) (string, error) {
	edits := make([]TextEdit, len(d.Edits))
	copy(edits, d.Edits)
	sort.SliceStable(edits, func(i, j int) bool { return edits[i].Start < edits[j].Start })

	prevEnd := -1
	for _, e := range edits {
		if e.Start < 0 || e.End < e.Start || e.End > len(text) {
			return "", fmt.Errorf("edit [%d,%d) out of range for text of length %d", e.Start, e.End, len(text))
		}
		if e.Start < prevEnd {
			return "", fmt.Errorf("edit [%d,%d) overlaps previous edit", e.Start, e.End)
		}
		prevEnd = e.End
	}

	for i := len(edits) - 1; i >= 0; i-- {
		e := edits[i]
		text = text[:e.Start] + e.NewText + text[e.End:]
	}
	return text, nil
}

// DocumentHandle is an opaque, comparable reference to a live document.
// Two handles are equal exactly when they name the same document.
type DocumentHandle struct {
	id string
}

// NewDocumentHandle wraps a store-specific document identity.
func NewDocumentHandle(id string) DocumentHandle {
	return DocumentHandle{id: id}
}

// ID returns the store-specific identity of the document.
func (h DocumentHandle) ID() string {
	return h.id
}

// IsZero reports whether the handle refers to no document.
func (h DocumentHandle) IsZero() bool {
	return h.id == ""
}

func (h DocumentHandle) String() string {
	return h.id
}
