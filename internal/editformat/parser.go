// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package editformat parses streamed model output into edit actions.
//
// The parser is a line-oriented state machine. Chunks may split the stream
// at arbitrary byte positions; only complete lines are interpreted, so the
// units and errors produced depend on the cumulative text alone and never
// on where the chunk boundaries fell.
package editformat

import (
	"fmt"
	"strings"

	"github.com/petar-djukic/go-editfiles/pkg/types"
)

// Block sentinels. A sentinel is recognized when the line equals it
// exactly after trailing whitespace is removed. An indented sentinel is
// content, so a search section may hold indented "=======" lines.
const (
	MarkerSearch     = "<<<<<<< SEARCH"
	MarkerDivider    = "======="
	MarkerReplace    = ">>>>>>> REPLACE"
	MarkerWriteOpen  = "<<<<<<< WRITE"
	MarkerWriteClose = ">>>>>>> WRITE"
)

// ParseError describes a malformed edit block in the model output.
type ParseError struct {
	Line    int    // Stream line of the block header, or of the opening marker when there is none (1-based)
	RawText string // The raw text of the malformed block
	Message string // What went wrong
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

type state int

const (
	stateProse state = iota
	stateSearch
	stateReplace
	stateWrite
)

// expects names what closes the current section of an open block.
func (s state) expects() string {
	switch s {
	case stateSearch:
		return MarkerDivider + " divider"
	case stateReplace:
		return MarkerReplace + " marker"
	case stateWrite:
		return MarkerWriteClose + " marker"
	default:
		return ""
	}
}

// block accumulates the lines of the edit block being parsed.
type block struct {
	opener  string   // Marker that opened the block
	path    string   // Cleaned header path, empty when missing
	line    int      // Line reported in errors
	source  []string // Raw lines from the header through the last consumed line
	search  []string
	replace []string
}

// Parser incrementally turns model output into parsed units. A Parser is
// not safe for concurrent use.
type Parser struct {
	partial string    // Unterminated tail of the stream
	lineNo  int       // Complete lines consumed so far
	recent  [2]string // Last two complete lines, most recent last
	state   state
	block   *block
	errors  []*ParseError
	done    bool
}

// NewParser returns a parser positioned at the start of a stream.
func NewParser() *Parser {
	return &Parser{}
}

// ParseChunk appends chunk to the stream and returns the units completed
// by it, in stream order.
func (p *Parser) ParseChunk(chunk string) []types.ParsedUnit {
	if p.done {
		return nil
	}
	p.partial += chunk

	var units []types.ParsedUnit
	for {
		i := strings.IndexByte(p.partial, '\n')
		if i < 0 {
			break
		}
		line := p.partial[:i]
		p.partial = p.partial[i+1:]
		if u, ok := p.consume(line); ok {
			units = append(units, u)
		}
	}
	return units
}

// Finish interprets the final unterminated line, closes the stream and
// returns any units completed by it. A block still open is reported as a
// parse error. Calls after the first return nil.
func (p *Parser) Finish() []types.ParsedUnit {
	if p.done {
		return nil
	}
	p.done = true

	var units []types.ParsedUnit
	if p.partial != "" {
		line := p.partial
		p.partial = ""
		if u, ok := p.consume(line); ok {
			units = append(units, u)
		}
	}

	if p.block != nil {
		p.fail("unclosed block: missing " + p.state.expects())
		p.reset()
	}
	return units
}

// Errors returns the parse errors observed so far, in stream order.
func (p *Parser) Errors() []*ParseError {
	return p.errors
}

// consume interprets one complete line, returning a unit when the line
// closes a well-formed block.
func (p *Parser) consume(raw string) (types.ParsedUnit, bool) {
	p.lineNo++
	marker := markerText(raw)

	var (
		unit types.ParsedUnit
		ok   bool
	)

	switch p.state {
	case stateProse:
		if marker == MarkerSearch || marker == MarkerWriteOpen {
			p.open(marker, raw)
		}

	case stateSearch:
		switch marker {
		case MarkerSearch, MarkerWriteOpen:
			p.reopen(marker, raw)
		case MarkerDivider:
			p.block.source = append(p.block.source, raw)
			p.state = stateReplace
		case MarkerReplace:
			p.block.source = append(p.block.source, raw)
			p.fail(MarkerReplace + " marker before " + MarkerDivider + " divider")
			p.reset()
			return unit, false
		default:
			p.block.source = append(p.block.source, raw)
			p.block.search = append(p.block.search, raw)
		}

	case stateReplace:
		switch marker {
		case MarkerSearch, MarkerWriteOpen:
			p.reopen(marker, raw)
		case MarkerReplace:
			p.block.source = append(p.block.source, raw)
			unit, ok = p.close()
			return unit, ok
		default:
			p.block.source = append(p.block.source, raw)
			p.block.replace = append(p.block.replace, raw)
		}

	case stateWrite:
		switch marker {
		case MarkerSearch, MarkerWriteOpen:
			p.reopen(marker, raw)
		case MarkerWriteClose:
			p.block.source = append(p.block.source, raw)
			unit, ok = p.close()
			return unit, ok
		default:
			p.block.source = append(p.block.source, raw)
			p.block.replace = append(p.block.replace, raw)
		}
	}

	p.remember(raw)
	return unit, ok
}

// open starts a block at the current line. The header is the previous
// line, or the line before it when the previous line is a code fence.
func (p *Parser) open(marker, raw string) {
	b := &block{opener: marker, line: p.lineNo}
	prev, before := p.recent[1], p.recent[0]
	switch {
	case isPath(prev):
		b.path = cleanPath(prev)
		b.line = p.lineNo - 1
		b.source = []string{prev}
	case isFence(prev) && isPath(before):
		b.path = cleanPath(before)
		b.line = p.lineNo - 2
		b.source = []string{before, prev}
	}
	b.source = append(b.source, raw)

	p.block = b
	if marker == MarkerWriteOpen {
		p.state = stateWrite
	} else {
		p.state = stateSearch
	}
}

// reopen reports the open block as malformed and starts a new block at
// the opening marker found inside it.
func (p *Parser) reopen(marker, raw string) {
	p.fail(fmt.Sprintf("unexpected %s marker: previous block is missing its %s", marker, p.state.expects()))
	p.open(marker, raw)
}

// close turns the completed block into a unit and returns to prose.
func (p *Parser) close() (types.ParsedUnit, bool) {
	b := p.block
	if b.path == "" {
		p.fail(fmt.Sprintf("missing file path before %s marker", b.opener))
		p.reset()
		return types.ParsedUnit{}, false
	}

	var action types.EditAction
	switch {
	case b.opener == MarkerWriteOpen:
		action = types.Write(b.path, joinLines(b.replace))
	case len(b.search) == 0:
		// An empty search section creates or overwrites the file.
		action = types.Write(b.path, joinLines(b.replace))
	default:
		action = types.Replace(b.path, joinLines(b.search), joinLines(b.replace))
	}

	unit := types.ParsedUnit{
		Action: action,
		Source: strings.Join(b.source, "\n"),
	}
	p.reset()
	return unit, true
}

// fail records a parse error for the open block.
func (p *Parser) fail(msg string) {
	p.errors = append(p.errors, &ParseError{
		Line:    p.block.line,
		RawText: strings.Join(p.block.source, "\n"),
		Message: msg,
	})
}

// reset discards the open block and the line history.
func (p *Parser) reset() {
	p.block = nil
	p.state = stateProse
	p.recent = [2]string{}
}

func (p *Parser) remember(raw string) {
	p.recent[0], p.recent[1] = p.recent[1], raw
}

// joinLines rebuilds section text. Non-empty text ends with a newline.
func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

// cleanPath strips whitespace and inline backticks from a header line.
func cleanPath(line string) string {
	s := strings.TrimSpace(line)
	s = strings.Trim(s, "`")
	return strings.TrimSpace(s)
}

// isPath reports whether a line can serve as a block header. Fences,
// markers and empty lines cannot. Neither can prose: an unquoted line with
// inner whitespace or a trailing colon. A path wrapped in backticks is
// taken as written, spaces included.
func isPath(line string) bool {
	if isFence(line) || isMarker(strings.TrimSpace(line)) {
		return false
	}
	s := cleanPath(line)
	if s == "" {
		return false
	}
	t := strings.TrimSpace(line)
	quoted := len(t) > 1 && strings.HasPrefix(t, "`") && strings.HasSuffix(t, "`")
	if !quoted && (strings.ContainsAny(s, " \t") || strings.HasSuffix(s, ":")) {
		return false
	}
	return true
}

// markerText returns line without trailing whitespace or a CR.
func markerText(line string) string {
	return strings.TrimRight(line, " \t\r")
}

func isMarker(line string) bool {
	switch markerText(line) {
	case MarkerSearch, MarkerDivider, MarkerReplace, MarkerWriteOpen, MarkerWriteClose:
		return true
	}
	return false
}

// isFence checks if a line is a markdown fence (``` with optional language).
func isFence(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "```")
}
