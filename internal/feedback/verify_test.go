// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package feedback

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const brokenMain = `package main

func main() {
    x :=
}
`

func TestVerify_BuildErrorDetected(t *testing.T) {
	dir := setupGoModule(t, map[string]string{"main.go": brokenMain})

	result := Verify(context.Background(), Config{WorkDir: dir, Command: "go build ./..."})

	assert.False(t, result.OK)
	assert.Equal(t, "go build ./...", result.Command)
	assert.NotEmpty(t, result.Output)
	require.NotEmpty(t, result.Errors)

	found := false
	for _, e := range result.Errors {
		if filepath.Base(e.FilePath) == "main.go" {
			found = true
			assert.Greater(t, e.Line, 0)
			assert.NotEmpty(t, e.Message)
		}
	}
	assert.True(t, found, "expected error in main.go, got: %v", result.Errors)
}

func TestVerify_SuccessfulBuild(t *testing.T) {
	dir := setupGoModule(t, map[string]string{"main.go": "package main\n\nfunc main() {}\n"})

	result := Verify(context.Background(), Config{WorkDir: dir, Command: "go vet ./..."})
	assert.True(t, result.OK, "vet failed: %s", result.Output)
	assert.Empty(t, result.Errors)
}

func TestVerify_EmptyCommandPasses(t *testing.T) {
	result := Verify(context.Background(), Config{WorkDir: t.TempDir(), Command: "  "})
	assert.True(t, result.OK)
}

func TestVerify_QuotedArguments(t *testing.T) {
	tests := []struct {
		name    string
		command string
		ok      bool
		output  string
	}{
		{"quoted script passes", `sh -c "exit 0"`, true, ""},
		{"quoted script fails", `sh -c 'echo "a b" && exit 3'`, false, "a b\n"},
		{"pipe stays inside quotes", `sh -c "echo 'A|B'"`, true, "A|B\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Verify(context.Background(), Config{WorkDir: t.TempDir(), Command: tt.command})
			assert.Equal(t, tt.ok, result.OK)
			assert.Equal(t, tt.output, result.Output)
		})
	}
}

func TestVerify_UnterminatedQuote(t *testing.T) {
	result := Verify(context.Background(), Config{WorkDir: t.TempDir(), Command: `sh -c "exit 0`})
	assert.False(t, result.OK)
	assert.Contains(t, result.Output, "parsing command")
}

func TestVerify_UnknownCommand(t *testing.T) {
	result := Verify(context.Background(), Config{WorkDir: t.TempDir(), Command: "no-such-command-go-editfiles --flag"})
	assert.False(t, result.OK)
	assert.NotEmpty(t, result.Output)
}

func TestVerify_ContextCancellation(t *testing.T) {
	dir := setupGoModule(t, map[string]string{"main.go": "package main\n\nfunc main() {}\n"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := Verify(ctx, Config{WorkDir: dir, Command: "go build ./..."})
	assert.False(t, result.OK)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		wantLen int
		check   func(t *testing.T, errs []CheckError)
	}{
		{
			name:    "error with column",
			output:  "./main.go:4:5: expected operand, found '}'",
			wantLen: 1,
			check: func(t *testing.T, errs []CheckError) {
				assert.Equal(t, "./main.go", errs[0].FilePath)
				assert.Equal(t, 4, errs[0].Line)
				assert.Equal(t, 5, errs[0].Column)
				assert.Contains(t, errs[0].Message, "expected operand")
			},
		},
		{
			name:    "error without column",
			output:  "main.go:10: undefined: foo",
			wantLen: 1,
			check: func(t *testing.T, errs []CheckError) {
				assert.Equal(t, "main.go", errs[0].FilePath)
				assert.Equal(t, 10, errs[0].Line)
				assert.Equal(t, 0, errs[0].Column)
			},
		},
		{
			name:    "other languages",
			output:  "src/app.ts:3:7: Type 'string' is not assignable\nlib/util.c:12:1: error: expected ';'\n",
			wantLen: 2,
			check: func(t *testing.T, errs []CheckError) {
				assert.Equal(t, "src/app.ts", errs[0].FilePath)
				assert.Equal(t, "lib/util.c", errs[1].FilePath)
				assert.Equal(t, "error: expected ';'", errs[1].Message)
			},
		},
		{
			name:    "non-error lines ignored",
			output:  "# command-line-arguments\n./main.go:4:5: error\nFAIL\ttestmod\t0.01s\n",
			wantLen: 1,
		},
		{
			name:    "empty output",
			output:  "",
			wantLen: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := parseErrors(tt.output)
			assert.Len(t, errs, tt.wantLen)
			if tt.check != nil {
				tt.check(t, errs)
			}
		})
	}
}

func TestCheckError_String(t *testing.T) {
	t.Run("with column", func(t *testing.T) {
		e := CheckError{FilePath: "main.go", Line: 4, Column: 5, Message: "expected operand"}
		assert.Equal(t, "main.go:4:5: expected operand", e.String())
	})

	t.Run("without column", func(t *testing.T) {
		e := CheckError{FilePath: "main.go", Line: 10, Message: "undefined: foo"}
		assert.Equal(t, "main.go:10: undefined: foo", e.String())
	})
}

// setupGoModule creates a temporary Go module with the given files.
func setupGoModule(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()

	goMod := "module testmod\n\ngo 1.25\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte(goMod), 0o644))

	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}
