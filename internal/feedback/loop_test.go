// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package feedback

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func loopConfig(dir string, maxRetries int) LoopConfig {
	return LoopConfig{
		Verify:     Config{WorkDir: dir, Command: "go build ./..."},
		Format:     FormatConfig{WorkDir: dir},
		MaxRetries: maxRetries,
		Logger:     quietLogger(),
	}
}

func TestRetryLoop_StopsOnSuccess(t *testing.T) {
	dir := setupGoModule(t, map[string]string{"main.go": brokenMain})

	var prompts []string
	retryFn := func(ctx context.Context, instructions string) ([]string, error) {
		prompts = append(prompts, instructions)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0o644))
		return []string{"main.go", "util.go"}, nil
	}

	result, err := Run(context.Background(), loopConfig(dir, 3), []string{"main.go"}, retryFn)

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Retries)
	assert.True(t, result.Final.OK)
	assert.Equal(t, []string{"main.go", "util.go"}, result.EditedFiles)
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "`go build ./...` failing")
	assert.Contains(t, prompts[0], "main.go")
}

func TestRetryLoop_StopsAfterMaxRetries(t *testing.T) {
	dir := setupGoModule(t, map[string]string{"main.go": brokenMain})

	calls := 0
	retryFn := func(ctx context.Context, instructions string) ([]string, error) {
		calls++
		return []string{"main.go"}, nil
	}

	result, err := Run(context.Background(), loopConfig(dir, 2), []string{"main.go"}, retryFn)

	require.ErrorIs(t, err, ErrVerifyFailed)
	assert.False(t, result.Success)
	assert.Equal(t, 2, result.Retries)
	assert.Equal(t, 2, calls)
	assert.False(t, result.Final.OK)
}

func TestRetryLoop_NoRetries(t *testing.T) {
	dir := setupGoModule(t, map[string]string{"main.go": brokenMain})

	retryFn := func(ctx context.Context, instructions string) ([]string, error) {
		t.Fatal("retry should not run")
		return nil, nil
	}

	result, err := Run(context.Background(), loopConfig(dir, -1), nil, retryFn)
	require.ErrorIs(t, err, ErrVerifyFailed)
	assert.Zero(t, result.Retries)
}

func TestRetryLoop_RetryError(t *testing.T) {
	dir := setupGoModule(t, map[string]string{"main.go": brokenMain})
	boom := errors.New("model unavailable")

	_, err := Run(context.Background(), loopConfig(dir, 2), nil, func(context.Context, string) ([]string, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "retry 1 failed")
}

func TestRetryLoop_ContextCancellation(t *testing.T) {
	dir := setupGoModule(t, map[string]string{"main.go": brokenMain})
	ctx, cancel := context.WithCancel(context.Background())

	retryFn := func(ctx context.Context, instructions string) ([]string, error) {
		cancel()
		return []string{"main.go"}, nil
	}

	result, err := Run(ctx, loopConfig(dir, 5), []string{"main.go"}, retryFn)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, result.Success)
	assert.Equal(t, 1, result.Retries)
}

func TestRetryLoop_AlreadySuccessful(t *testing.T) {
	dir := setupGoModule(t, map[string]string{"main.go": "package main\n\nfunc main() {}\n"})

	retryFn := func(ctx context.Context, instructions string) ([]string, error) {
		t.Fatal("retry should not be called for passing code")
		return nil, nil
	}

	result, err := Run(context.Background(), loopConfig(dir, 3), []string{"main.go"}, retryFn)

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Zero(t, result.Retries)
}

func TestMergeFiles(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		add      []string
		want     []string
	}{
		{"no overlap", []string{"a.go"}, []string{"b.go"}, []string{"a.go", "b.go"}},
		{"with overlap", []string{"a.go", "b.go"}, []string{"b.go", "c.go"}, []string{"a.go", "b.go", "c.go"}},
		{"empty additional", []string{"a.go"}, nil, []string{"a.go"}},
		{"empty existing", nil, []string{"a.go"}, []string{"a.go"}},
		{"duplicates in one list", []string{"a.go", "a.go"}, nil, []string{"a.go"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mergeFiles(tt.existing, tt.add))
		})
	}
}
