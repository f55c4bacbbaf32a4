// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package feedback

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultContextLines = 5
	defaultMaxOutput    = 4096
	maxListedErrors     = 20
)

// FormatConfig configures error formatting.
type FormatConfig struct {
	WorkDir      string // Base for relative diagnostic paths
	ContextLines int    // Lines of context above and below each error (default 5)
	MaxOutput    int    // Maximum bytes of raw output to include (default 4096)
}

// FormatErrors turns a failed verification into follow-up edit
// instructions: the files edited so far, each diagnostic with the code
// around it, and the raw output when nothing could be parsed.
func FormatErrors(result *Result, editedFiles []string, cfg FormatConfig) string {
	contextLines := cfg.ContextLines
	if contextLines == 0 {
		contextLines = defaultContextLines
	}
	maxOutput := cfg.MaxOutput
	if maxOutput == 0 {
		maxOutput = defaultMaxOutput
	}

	var buf strings.Builder
	fmt.Fprintf(&buf, "The previous edits left `%s` failing. Fix the errors below.\n\n", result.Command)

	if len(editedFiles) > 0 {
		buf.WriteString("## Edited Files\n\n")
		for _, f := range editedFiles {
			fmt.Fprintf(&buf, "- %s\n", f)
		}
		buf.WriteString("\n")
	}

	if len(result.Errors) > 0 {
		buf.WriteString("## Errors\n\n")
		errs := result.Errors
		if len(errs) > maxListedErrors {
			errs = errs[:maxListedErrors]
		}
		for _, e := range errs {
			fmt.Fprintf(&buf, "### %s\n\n", e)
			path := e.FilePath
			if !filepath.IsAbs(path) && cfg.WorkDir != "" {
				path = filepath.Join(cfg.WorkDir, path)
			}
			if snippet := codeContext(path, e.Line, contextLines); snippet != "" {
				buf.WriteString("```\n")
				buf.WriteString(snippet)
				buf.WriteString("```\n\n")
			}
		}
		if n := len(result.Errors) - len(errs); n > 0 {
			fmt.Fprintf(&buf, "(%d more errors not shown)\n\n", n)
		}
		return buf.String()
	}

	out := result.Output
	if len(out) > maxOutput {
		out = "... (truncated)\n" + out[len(out)-maxOutput:]
	}
	buf.WriteString("## Output\n\n```\n")
	buf.WriteString(out)
	if !strings.HasSuffix(out, "\n") {
		buf.WriteString("\n")
	}
	buf.WriteString("```\n")
	return buf.String()
}

// codeContext returns numbered lines around errorLine, marking the line
// itself.
func codeContext(path string, errorLine, contextLines int) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}

	lines := strings.Split(string(data), "\n")
	start := max(errorLine-contextLines-1, 0)
	end := min(errorLine+contextLines, len(lines))

	var buf strings.Builder
	for i := start; i < end; i++ {
		lineNum := i + 1
		marker := "  "
		if lineNum == errorLine {
			marker = "> "
		}
		fmt.Fprintf(&buf, "%s%4d │ %s\n", marker, lineNum, lines[i])
	}
	return buf.String()
}
