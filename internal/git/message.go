// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package git

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	maxSubjectLength = 72
	defaultSummary   = "apply edit instructions"
)

// commitTypes maps instruction keywords to conventional commit types.
// The first matching entry wins; feat is also the default.
var commitTypes = []struct {
	keywords []string
	prefix   string
}{
	{[]string{"fix", "bug", "repair", "patch", "resolve", "correct"}, "fix"},
	{[]string{"refactor", "rename", "restructure", "reorganize", "clean up", "simplify", "extract", "move"}, "refactor"},
	{[]string{"test", "tests", "coverage"}, "test"},
	{[]string{"doc", "docs", "comment", "comments", "readme", "documentation"}, "docs"},
	{[]string{"style", "format", "lint", "whitespace", "indent", "indentation"}, "style"},
	{[]string{"perf", "performance", "optimize", "speed"}, "perf"},
	{[]string{"ci", "pipeline", "workflow", "github action"}, "ci"},
	{[]string{"build", "dependency", "dependencies", "deps", "module"}, "build"},
	{[]string{"chore", "cleanup", "remove", "delete", "bump"}, "chore"},
	{[]string{"add", "create", "implement", "new", "feature", "introduce"}, "feat"},
}

// GenerateMessage creates a conventional commit message from the edit
// instructions and the list of edited files.
func GenerateMessage(instructions string, files []string) string {
	msg := buildSubject(inferCommitType(instructions), instructions)
	if body := buildBody(files); body != "" {
		msg += "\n\n" + body
	}
	return msg + "\n\n" + toolTrailer
}

// inferCommitType determines the conventional commit type from keywords.
func inferCommitType(instructions string) string {
	lower := strings.ToLower(instructions)
	for _, ct := range commitTypes {
		for _, kw := range ct.keywords {
			if containsWord(lower, kw) {
				return ct.prefix
			}
		}
	}
	return "feat"
}

// containsWord checks whether text contains keyword as a whole word
// (bounded by non-letter characters or string edges). Multi-word keywords
// like "clean up" match as substrings.
func containsWord(text, keyword string) bool {
	if strings.Contains(keyword, " ") {
		return strings.Contains(text, keyword)
	}
	idx := 0
	for {
		i := strings.Index(text[idx:], keyword)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(keyword)
		leftOK := start == 0 || !unicode.IsLetter(rune(text[start-1]))
		rightOK := end == len(text) || !unicode.IsLetter(rune(text[end]))
		if leftOK && rightOK {
			return true
		}
		idx = start + 1
	}
}

// buildSubject creates the first line: "type: summary", at most
// maxSubjectLength bytes. Only the first line of the instructions is used.
func buildSubject(commitType, instructions string) string {
	summary, _, _ := strings.Cut(strings.TrimSpace(instructions), "\n")
	summary = strings.TrimRight(strings.TrimSpace(summary), ".")
	if summary == "" {
		summary = defaultSummary
	}
	summary = strings.ToLower(summary[:1]) + summary[1:]

	subject := fmt.Sprintf("%s: %s", commitType, summary)
	if len(subject) > maxSubjectLength {
		cut := maxSubjectLength - 3
		for cut > 0 && !utf8.RuneStart(subject[cut]) {
			cut--
		}
		subject = subject[:cut] + "..."
	}
	return subject
}

// buildBody lists the edited files.
func buildBody(files []string) string {
	if len(files) == 0 {
		return ""
	}

	var buf strings.Builder
	buf.WriteString("Edited files:\n")
	for _, f := range files {
		fmt.Fprintf(&buf, "- %s\n", f)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
