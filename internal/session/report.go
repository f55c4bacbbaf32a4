// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/petar-djukic/go-editfiles/pkg/types"
)

const (
	// SuccessHeader starts the transcript of a session.
	SuccessHeader = "Successfully applied. Here's a list of changes:"

	// FailureHeaderNoEdits replaces SuccessHeader when nothing was applied.
	FailureHeaderNoEdits = "I couldn't apply any edits!"

	// FailureHeaderWithEdits replaces SuccessHeader when some edits were
	// applied but others failed.
	FailureHeaderWithEdits = "Errors occurred. First, here's a list of the edits we managed to apply:"

	matchReminder = "The SEARCH section must exactly match an existing block of lines including all white space, comments, indentation, docstrings, etc."
	doNotResend   = "The other SEARCH/REPLACE blocks were applied successfully. Do not re-send them!"
	retryHint     = "You can fix errors by running the tool again. You can include instructions, but errors are part of the conversation so you don't need to repeat them."
)

// ErrNoChanges is returned when a session parsed cleanly but touched no
// document.
var ErrNoChanges = errors.New("The instructions didn't lead to any changes. You might need to consult the file contents first.")

// EditError is the failure of a session with unmatched searches or
// malformed blocks. Error returns the full report.
type EditError struct {
	Report      string
	BadSearches []types.BadSearch
	ParseErrors []string
	Applied     int
}

func (e *EditError) Error() string {
	return e.Report
}

// ReportState is the accumulated state a report is built from.
type ReportState struct {
	Output      string // Transcript starting with SuccessHeader
	Touched     int    // Number of documents edited
	BadSearches []types.BadSearch
	ParseErrors []string
}

// BuildReport decides the outcome of a finished session. It returns the
// transcript on success, ErrNoChanges when nothing happened, and an
// *EditError otherwise.
func BuildReport(st ReportState) (string, error) {
	if len(st.BadSearches) == 0 && len(st.ParseErrors) == 0 {
		if st.Touched == 0 {
			return "", ErrNoChanges
		}
		return st.Output, nil
	}

	header := FailureHeaderWithEdits
	if st.Touched == 0 {
		header = FailureHeaderNoEdits
	}

	var b strings.Builder
	b.WriteString(header)
	b.WriteString(strings.TrimPrefix(st.Output, SuccessHeader))

	if len(st.BadSearches) > 0 {
		fmt.Fprintf(&b, "\n\n# %d SEARCH/REPLACE block(s) failed to match:\n\n", len(st.BadSearches))
		for _, bad := range st.BadSearches {
			fmt.Fprintf(&b, "## No exact match in: %s\n```\n%s\n```\n\n",
				bad.FilePath, strings.TrimSuffix(bad.Search, "\n"))
		}
		b.WriteString(matchReminder)
	}

	if len(st.ParseErrors) > 0 {
		fmt.Fprintf(&b, "\n\n# %d SEARCH/REPLACE blocks failed to parse:\n", len(st.ParseErrors))
		for _, e := range st.ParseErrors {
			fmt.Fprintf(&b, "- %s\n", e)
		}
	}

	if st.Touched > 0 {
		b.WriteString("\n\n" + doNotResend + "\n")
	} else {
		b.WriteString("\n\n")
	}
	b.WriteString(retryHint + "\n")

	return "", &EditError{
		Report:      b.String(),
		BadSearches: st.BadSearches,
		ParseErrors: st.ParseErrors,
		Applied:     st.Touched,
	}
}
