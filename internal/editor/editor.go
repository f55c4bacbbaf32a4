// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package editor computes diffs for edit actions against document
// snapshots. Search text is located by exact match first and then by
// indentation-insensitive line matching; whole-file writes are diffed
// line by line. All functions are pure and safe for concurrent use.
package editor

import (
	"github.com/petar-djukic/go-editfiles/pkg/types"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// LocateAndDiff computes the diff replacing the first occurrence of old in
// snapshot with new and reports which stage matched. It returns a
// BadSearch, with stage types.StageNone, when old is empty or cannot be
// found.
func LocateAndDiff(filePath, old, new, snapshot string) (types.Diff, types.MatchStage, *types.BadSearch) {
	m := findMatch(snapshot, old, new)
	if m == nil {
		return types.Diff{}, types.StageNone, &types.BadSearch{FilePath: filePath, Search: old}
	}
	return types.Diff{Edits: []types.TextEdit{{
		Start:   m.start,
		End:     m.end,
		NewText: m.replacement,
	}}}, m.stage, nil
}

// WholeFileDiff computes a line-level diff turning snapshot into
// newContent. Applying the result to snapshot yields newContent exactly.
func WholeFileDiff(newContent, snapshot string) types.Diff {
	if newContent == snapshot {
		return types.Diff{}
	}

	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(snapshot, newContent)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var (
		edits   []types.TextEdit
		offset  int
		pending *types.TextEdit
	)
	flush := func() {
		if pending != nil {
			edits = append(edits, *pending)
			pending = nil
		}
	}

	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			flush()
			offset += len(d.Text)
		case diffmatchpatch.DiffDelete:
			if pending == nil {
				pending = &types.TextEdit{Start: offset, End: offset}
			}
			offset += len(d.Text)
			pending.End = offset
		case diffmatchpatch.DiffInsert:
			if pending == nil {
				pending = &types.TextEdit{Start: offset, End: offset}
			}
			pending.NewText += d.Text
		}
	}
	flush()

	return types.Diff{Edits: edits}
}
