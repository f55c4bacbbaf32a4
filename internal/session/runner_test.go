// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petar-djukic/go-editfiles/internal/document"
	"github.com/petar-djukic/go-editfiles/internal/llm"
	"github.com/petar-djukic/go-editfiles/internal/metrics"
	"github.com/petar-djukic/go-editfiles/pkg/types"
)

// fakeClient streams canned chunks and records the request.
type fakeClient struct {
	chunks    []string
	streamErr error // Error ending the stream
	callErr   error // Error returned by Stream
	got       llm.Request
}

func (f *fakeClient) Stream(_ context.Context, req llm.Request) (*llm.Stream, error) {
	f.got = req
	if f.callErr != nil {
		return nil, f.callErr
	}
	return llm.NewStaticStream(f.chunks, f.streamErr), nil
}

func TestRunner_Run(t *testing.T) {
	store := document.NewMemStore(map[string]string{"main.go": "package main\n\nfunc main() {}\n"})
	tracker := &fakeTracker{}
	audit := &fakeAudit{}
	reg := prometheus.NewRegistry()
	client := &fakeClient{chunks: llm.Chunk(
		"Adding a greeting.\n\nmain.go\n<<<<<<< SEARCH\nfunc main() {}\n=======\nfunc main() { println(\"hi\") }\n>>>>>>> REPLACE\n", 5)}

	r := NewRunner(Deps{
		Store:   store,
		Tracker: tracker,
		Audit:   audit,
		Metrics: metrics.New(reg),
		Logger:  quietLogger(),
	}, client, 2048)

	conversation := []types.Message{
		{Role: types.RoleUser, Parts: []types.Part{types.TextPart("say hi")}},
		{Role: types.RoleAssistant, Parts: []types.Part{toolUse("t1")}},
	}
	out, err := r.Run(context.Background(), Request{Instructions: "print hi in main", Conversation: conversation})
	require.NoError(t, err)

	assert.Contains(t, out, SuccessHeader)
	assert.Contains(t, out, "func main() { println(\"hi\") }")
	assert.Equal(t, "package main\n\nfunc main() { println(\"hi\") }\n", store.Saved("main.go"))

	assert.Zero(t, client.got.Temperature)
	assert.Equal(t, 2048, client.got.MaxTokens)
	require.Len(t, client.got.Messages, 3)
	assert.Empty(t, client.got.Messages[1].Parts)
	last := client.got.Messages[2]
	require.Len(t, last.Parts, 2)
	assert.Contains(t, last.Parts[0].Text, "<<<<<<< SEARCH")
	assert.Equal(t, "print hi in main", last.Parts[1].Text)

	assert.Equal(t, "print hi in main", audit.instructions)
	assert.Equal(t, out, audit.output)
	assert.NoError(t, audit.err)
	assert.Len(t, tracker.calls, 1)

	n, err := testutil.GatherAndCount(reg, "editfiles_sessions_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, gatherText(t, reg), `editfiles_sessions_total{outcome="succeeded"} 1`)
	assert.Contains(t, gatherText(t, reg), `editfiles_actions_total{kind="replace",stage="exact"} 1`)
}

func TestRunner_StreamErrorAborts(t *testing.T) {
	store := document.NewMemStore(map[string]string{"a.txt": "a\n"})
	tracker := &fakeTracker{}
	reg := prometheus.NewRegistry()
	client := &fakeClient{
		chunks:    []string{"a.txt\n<<<<<<< SEARCH\na\n=======\nb\n>>>>>>> REPLACE\n"},
		streamErr: errors.New("connection reset"),
	}

	r := NewRunner(Deps{Store: store, Tracker: tracker, Metrics: metrics.New(reg), Logger: quietLogger()}, client, 0)
	out, err := r.Run(context.Background(), Request{Instructions: "x"})
	assert.Empty(t, out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")

	assert.Equal(t, "b\n", store.Content("a.txt"))
	assert.Zero(t, store.SaveCount("a.txt"))
	assert.Empty(t, tracker.calls)
	assert.Contains(t, gatherText(t, reg), `editfiles_sessions_total{outcome="aborted"} 1`)
}

func TestRunner_ClientError(t *testing.T) {
	audit := &fakeAudit{}
	client := &fakeClient{callErr: llm.ErrLLMFailure}
	r := NewRunner(Deps{Store: document.NewMemStore(nil), Audit: audit, Logger: quietLogger()}, client, 0)

	_, err := r.Run(context.Background(), Request{Instructions: "x"})
	assert.ErrorIs(t, err, llm.ErrLLMFailure)
	assert.ErrorIs(t, audit.err, llm.ErrLLMFailure)
}

func TestRunner_Outcomes(t *testing.T) {
	tests := []struct {
		name     string
		response string
		outcome  string
	}{
		{"no changes", "Nothing to do.\n", metrics.OutcomeNoChanges},
		{"unmatched search", "a.txt\n<<<<<<< SEARCH\nzzz\n=======\nb\n>>>>>>> REPLACE\n", metrics.OutcomeFailed},
		{"unknown path", "nope.txt\n<<<<<<< SEARCH\na\n=======\nb\n>>>>>>> REPLACE\n", metrics.OutcomeAborted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := prometheus.NewRegistry()
			store := document.NewMemStore(map[string]string{"a.txt": "a\n"})
			r := NewRunner(Deps{Store: store, Metrics: metrics.New(reg), Logger: quietLogger()},
				&fakeClient{chunks: []string{tt.response}}, 0)

			_, err := r.Run(context.Background(), Request{Instructions: "x"})
			require.Error(t, err)
			assert.Contains(t, gatherText(t, reg), `editfiles_sessions_total{outcome="`+tt.outcome+`"} 1`)
		})
	}
}

// gatherText renders every metric in reg in the text exposition format.
func gatherText(t *testing.T, reg *prometheus.Registry) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "metrics.prom")
	require.NoError(t, metrics.WriteTextfile(path, reg))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}
