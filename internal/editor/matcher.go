// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package editor

import (
	"strings"

	"github.com/petar-djukic/go-editfiles/pkg/types"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// matchResult holds the outcome of a single match attempt: the byte range
// of the snapshot to replace and the text to put there.
type matchResult struct {
	start       int              // Byte offset of the match start in the snapshot
	end         int              // Byte offset of the match end in the snapshot
	replacement string           // Text replacing [start, end)
	stage       types.MatchStage // Which stage found the match
}

// findMatch runs the matching stages in order against snapshot, returning
// the first successful match. Returns nil if no stage matches.
func findMatch(snapshot, old, new string) *matchResult {
	if old == "" {
		return nil
	}
	if m := exactMatch(snapshot, old, new); m != nil {
		return m
	}
	return flexibleIndentMatch(snapshot, old, new)
}

// exactMatch attempts a byte-for-byte substring match. The first
// occurrence wins.
func exactMatch(snapshot, old, new string) *matchResult {
	idx := strings.Index(snapshot, old)
	if idx < 0 {
		return nil
	}
	return &matchResult{
		start:       idx,
		end:         idx + len(old),
		replacement: new,
		stage:       types.StageExact,
	}
}

// flexibleIndentMatch finds the first window of snapshot lines equal to
// the old lines after leading whitespace is ignored, provided every
// non-blank window line is shifted by the same amount. A positive shift
// is a common extra prefix that is added to the new lines; a negative
// shift is removed from their leading whitespace.
func flexibleIndentMatch(snapshot, old, new string) *matchResult {
	oldLines, oldIndent := linesWithMinIndent(old)
	newLines, newIndent := linesWithMinIndent(new)
	if len(oldLines) == 0 {
		return nil
	}
	indent := min(oldIndent, newIndent)
	oldLines = dropPrefix(oldLines, indent)
	newLines = dropPrefix(newLines, indent)

	doc := splitDocument(snapshot)

windows:
	for first := 0; first+len(oldLines) <= len(doc.lines); first++ {
		var leading string
		shift := 0
		found := false

		for j, oldLine := range oldLines {
			line := doc.lines[first+j]
			trimmed := trimIndent(line)
			if trimmed != trimIndent(oldLine) {
				continue windows
			}
			if trimmed == "" {
				continue
			}
			lineShift := len(line) - len(oldLine)
			var lineLeading string
			if lineShift > 0 {
				lineLeading = line[:lineShift]
			}
			if !found {
				leading, shift, found = lineLeading, lineShift, true
			} else if lineShift != shift || lineLeading != leading {
				continue windows
			}
		}
		if !found {
			continue
		}

		parts := make([]string, len(newLines))
		for i, l := range newLines {
			switch {
			case strings.TrimSpace(l) == "":
				parts[i] = l
			case shift < 0:
				parts[i] = l[min(-shift, len(l)-len(trimIndent(l))):]
			default:
				parts[i] = leading + l
			}
		}

		last := first + len(oldLines) - 1
		start := doc.starts[first]
		end := doc.starts[last] + len(doc.lines[last])
		if new == "" && strings.HasSuffix(old, "\n") && last+1 < len(doc.lines) {
			end = doc.starts[last+1]
		}
		return &matchResult{
			start:       start,
			end:         end,
			replacement: strings.Join(parts, doc.lineEnding),
			stage:       types.StageFlexibleIndent,
		}
	}
	return nil
}

// document is a snapshot split into lines. Line text excludes the line
// terminator; starts holds the byte offset of each line.
type document struct {
	lines      []string
	starts     []int
	lineEnding string
}

func splitDocument(s string) document {
	d := document{lineEnding: "\n"}
	if strings.Contains(s, "\r\n") {
		d.lineEnding = "\r\n"
	}
	offset := 0
	for _, raw := range strings.Split(s, "\n") {
		d.starts = append(d.starts, offset)
		d.lines = append(d.lines, strings.TrimSuffix(raw, "\r"))
		offset += len(raw) + 1
	}
	return d
}

// linesWithMinIndent splits text into lines, ignoring a trailing newline,
// and returns the smallest indentation among the non-blank lines.
func linesWithMinIndent(s string) ([]string, int) {
	if s == "" {
		return nil, 0
	}
	lines := strings.Split(strings.TrimSuffix(s, "\n"), "\n")
	minIndent := -1
	for i, l := range lines {
		l = strings.TrimSuffix(l, "\r")
		lines[i] = l
		if strings.TrimSpace(l) == "" {
			continue
		}
		indent := len(l) - len(trimIndent(l))
		if minIndent < 0 || indent < minIndent {
			minIndent = indent
		}
	}
	if minIndent < 0 {
		minIndent = 0
	}
	return lines, minIndent
}

func dropPrefix(lines []string, n int) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		if len(l) >= n {
			out[i] = l[n:]
		}
	}
	return out
}

func trimIndent(s string) string {
	return strings.TrimLeft(s, " \t")
}

// ClosestMatch finds the snapshot region most similar to search, for
// diagnostics when matching fails. Line numbers are 1-based.
func ClosestMatch(snapshot, search string) (closest string, sim float64, lineStart, lineEnd int) {
	if search == "" || snapshot == "" {
		return "", 0, 0, 0
	}

	snapshotLines := strings.Split(snapshot, "\n")
	searchLines := strings.Split(strings.TrimSuffix(search, "\n"), "\n")
	n := min(len(searchLines), len(snapshotLines))
	search = strings.Join(searchLines, "\n")

	var bestSim float64
	var bestStart int
	for i := 0; i+n <= len(snapshotLines); i++ {
		candidate := strings.Join(snapshotLines[i:i+n], "\n")
		if s := similarity(candidate, search); s > bestSim {
			bestSim = s
			bestStart = i
		}
	}

	if bestSim > 0 {
		closest = strings.Join(snapshotLines[bestStart:bestStart+n], "\n")
		return closest, bestSim, bestStart + 1, bestStart + n
	}
	return "", 0, 0, 0
}

// similarity computes the Levenshtein-based similarity ratio between two
// strings. Returns a value between 0.0 and 1.0.
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(a, b, false)
	distance := dmp.DiffLevenshtein(diffs)
	return 1.0 - float64(distance)/float64(max(len(a), len(b)))
}
