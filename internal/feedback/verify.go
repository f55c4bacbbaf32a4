// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package feedback checks a project after an edit session by running a
// verification command, formats the failures as follow-up instructions,
// and drives the retry loop.
package feedback

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"
)

const defaultTimeout = 120 * time.Second

// CheckError is one file:line diagnostic from the verification output.
type CheckError struct {
	FilePath string // As printed by the command, usually relative to WorkDir
	Line     int    // 1-based
	Column   int    // 1-based, 0 if not printed
	Message  string
}

func (e CheckError) String() string {
	if e.Column > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.FilePath, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("%s:%d: %s", e.FilePath, e.Line, e.Message)
}

// Result is the outcome of one verification run.
type Result struct {
	Command string
	OK      bool
	Output  string       // Combined stdout and stderr
	Errors  []CheckError // Diagnostics parsed from Output
}

// Config configures the verifier.
type Config struct {
	WorkDir string        // Directory the command runs in
	Command string        // Command line with shell quoting, e.g. `go test -run "A|B" ./...`
	Timeout time.Duration // Default 120s
}

// Verify runs the verification command. A command that cannot be parsed
// or started is reported as a failed run with the error as output.
func Verify(ctx context.Context, cfg Config) *Result {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	result := &Result{Command: cfg.Command}

	parts, err := shlex.Split(cfg.Command)
	if err != nil {
		result.Output = fmt.Sprintf("parsing command %q: %v", cfg.Command, err)
		return result
	}
	if len(parts) == 0 {
		result.OK = true
		return result
	}

	out, err := runCommand(ctx, cfg.WorkDir, timeout, parts[0], parts[1:]...)
	result.Output = out
	result.OK = err == nil
	if !result.OK {
		if out == "" {
			result.Output = err.Error()
		}
		result.Errors = parseErrors(result.Output)
	}
	return result
}

// runCommand executes a command with a timeout and captures combined output.
func runCommand(ctx context.Context, dir string, timeout time.Duration, name string, args ...string) (string, error) {
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, name, args...)
	cmd.Dir = dir

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	return buf.String(), err
}

// diagnosticRegex matches compiler style diagnostics:
// pkg/file.go:10:5: message
// src/main.rs:10: message
var diagnosticRegex = regexp.MustCompile(`^(\S+?\.[A-Za-z0-9]+):(\d+)(?::(\d+))?:\s*(.+)$`)

func parseErrors(output string) []CheckError {
	var errs []CheckError
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		m := diagnosticRegex.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		lineNum, _ := strconv.Atoi(m[2])
		col := 0
		if m[3] != "" {
			col, _ = strconv.Atoi(m[3])
		}
		errs = append(errs, CheckError{
			FilePath: m[1],
			Line:     lineNum,
			Column:   col,
			Message:  m[4],
		})
	}
	return errs
}
