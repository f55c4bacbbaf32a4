// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package types defines the values shared across go-editfiles packages:
// edit actions, diffs, document handles and conversation messages.
package types

import "fmt"

// ActionKind distinguishes the two edit actions a model can request.
type ActionKind int

const (
	ActionReplace ActionKind = iota // Replace the first occurrence of Old with New
	ActionWrite                     // Replace the whole file with New
)

func (k ActionKind) String() string {
	switch k {
	case ActionReplace:
		return "replace"
	case ActionWrite:
		return "write"
	default:
		return "unknown"
	}
}

// EditAction is a single structured edit parsed from model output.
// For ActionWrite, New holds the full file content and Old is empty.
type EditAction struct {
	Kind     ActionKind
	FilePath string // Path exactly as written in the block header
	Old      string // Search text (ActionReplace only)
	New      string // Replacement text or whole-file content
}

// Replace constructs a replace action.
func Replace(filePath, old, new string) EditAction {
	return EditAction{Kind: ActionReplace, FilePath: filePath, Old: old, New: new}
}

// Write constructs a whole-file write action.
func Write(filePath, content string) EditAction {
	return EditAction{Kind: ActionWrite, FilePath: filePath, New: content}
}

func (a EditAction) String() string {
	return fmt.Sprintf("%s %s", a.Kind, a.FilePath)
}

// ParsedUnit pairs an action with the verbatim stream text that produced it.
type ParsedUnit struct {
	Action EditAction
	Source string // Contiguous slice of the stream, header through closing marker
}

// BadSearch records a replace action whose search text was not found in
// the current document content.
type BadSearch struct {
	FilePath string // File the search was attempted in
	Search   string // The unmatched search text, verbatim
}

func (b *BadSearch) Error() string {
	return fmt.Sprintf("no match found in %s", b.FilePath)
}

// MatchStage identifies which matching strategy located the search text.
type MatchStage int

const (
	StageExact          MatchStage = iota // Byte-for-byte match
	StageFlexibleIndent                   // Match ignoring leading whitespace
	StageWholeFile                        // Whole-file write, no matching
	StageNone                             // No match found
)

func (s MatchStage) String() string {
	switch s {
	case StageExact:
		return "exact"
	case StageFlexibleIndent:
		return "flexible_indent"
	case StageWholeFile:
		return "whole_file"
	case StageNone:
		return "none"
	default:
		return "unknown"
	}
}
