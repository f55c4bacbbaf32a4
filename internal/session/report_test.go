// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package session

import (
	"errors"
	"testing"

	"github.com/petar-djukic/go-editfiles/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	wantReminder = "The SEARCH section must exactly match an existing block of lines including all white space, comments, indentation, docstrings, etc."
	wantRetry    = "You can fix errors by running the tool again. You can include instructions, but errors are part of the conversation so you don't need to repeat them.\n"
)

func TestBuildReport_Success(t *testing.T) {
	out, err := BuildReport(ReportState{
		Output:  "Successfully applied. Here's a list of changes:\n\na.go\n<<<<<<< WRITE\nx\n>>>>>>> WRITE",
		Touched: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, "Successfully applied. Here's a list of changes:\n\na.go\n<<<<<<< WRITE\nx\n>>>>>>> WRITE", out)
}

func TestBuildReport_NoChanges(t *testing.T) {
	out, err := BuildReport(ReportState{Output: SuccessHeader})
	assert.Empty(t, out)
	require.ErrorIs(t, err, ErrNoChanges)
	assert.Equal(t, "The instructions didn't lead to any changes. You might need to consult the file contents first.", err.Error())
}

func TestBuildReport_Failures(t *testing.T) {
	tests := []struct {
		name  string
		state ReportState
		want  string
	}{
		{
			name: "nothing applied",
			state: ReportState{
				Output:      SuccessHeader,
				BadSearches: []types.BadSearch{{FilePath: "a.go", Search: "old\n"}},
			},
			want: "I couldn't apply any edits!" +
				"\n\n# 1 SEARCH/REPLACE block(s) failed to match:\n\n" +
				"## No exact match in: a.go\n```\nold\n```\n\n" +
				wantReminder +
				"\n\n" + wantRetry,
		},
		{
			name: "partial success",
			state: ReportState{
				Output:      SuccessHeader + "\n\nSRC",
				Touched:     1,
				BadSearches: []types.BadSearch{{FilePath: "b.go", Search: "x"}},
				ParseErrors: []string{"line 9: unclosed block: missing >>>>>>> REPLACE marker"},
			},
			want: "Errors occurred. First, here's a list of the edits we managed to apply:\n\nSRC" +
				"\n\n# 1 SEARCH/REPLACE block(s) failed to match:\n\n" +
				"## No exact match in: b.go\n```\nx\n```\n\n" +
				wantReminder +
				"\n\n# 1 SEARCH/REPLACE blocks failed to parse:\n" +
				"- line 9: unclosed block: missing >>>>>>> REPLACE marker\n" +
				"\n\nThe other SEARCH/REPLACE blocks were applied successfully. Do not re-send them!\n" +
				wantRetry,
		},
		{
			name: "parse errors only",
			state: ReportState{
				Output:      SuccessHeader,
				ParseErrors: []string{"e1", "e2"},
			},
			want: "I couldn't apply any edits!" +
				"\n\n# 2 SEARCH/REPLACE blocks failed to parse:\n- e1\n- e2\n" +
				"\n\n" + wantRetry,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := BuildReport(tt.state)
			assert.Empty(t, out)
			require.Error(t, err)

			var editErr *EditError
			require.True(t, errors.As(err, &editErr))
			assert.Equal(t, tt.want, editErr.Report)
			assert.Equal(t, tt.want, err.Error())
			assert.Equal(t, tt.state.Touched, editErr.Applied)
		})
	}
}
