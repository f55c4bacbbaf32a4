// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package editfiles is the public interface of go-editfiles: it turns
// natural language edit instructions into SEARCH/REPLACE blocks with a
// model and applies them to files under a working directory.
package editfiles

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/petar-djukic/go-editfiles/internal/feedback"
	"github.com/petar-djukic/go-editfiles/internal/llm"
	"github.com/petar-djukic/go-editfiles/internal/session"
	"github.com/petar-djukic/go-editfiles/pkg/types"
)

// Errors returned by the Tool API.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLLMFailure    = llm.ErrLLMFailure
	ErrPathNotFound  = session.ErrPathNotFound
	ErrNoChanges     = session.ErrNoChanges
	ErrVerifyFailed  = feedback.ErrVerifyFailed
)

// EditError is returned when a session finished but some blocks did not
// apply. Report is the text to show the caller.
type EditError = session.EditError

// Inference providers.
const (
	ProviderBedrock = "bedrock"
	ProviderOpenAI  = "openai"
	ProviderReplay  = "replay" // Streams Config.ReplayResponse instead of calling a model
)

// Config configures a Tool.
type Config struct {
	WorkDir string   // Project directory (required)
	Roots   []string // Lookup directories for edited paths; relative to WorkDir, default WorkDir

	Provider  string        // bedrock (default), openai or replay
	Model     string        // Model ID (required unless replaying)
	Region    string        // AWS region (required for bedrock)
	Profile   string        // AWS credential profile
	APIKey    string        // OpenAI API key
	BaseURL   string        // OpenAI-compatible endpoint override
	MaxTokens int           // Maximum tokens for the model response (default 8192)
	Timeout   time.Duration // Model request timeout (default 5m)

	ReplayResponse  string // Recorded response streamed by the replay provider
	ReplayChunkSize int    // Replay chunk size in bytes (default 64)

	GitStage       bool // Stage edited files
	GitCommit      bool // Commit edited files after each run
	GitDirtyCommit bool // Commit pre-existing changes before a committing run

	VerifyCmd     string        // Command run in WorkDir after a successful run, e.g. "go build ./..."
	VerifyTimeout time.Duration // Verification timeout (default 120s)
	MaxRetries    int           // Follow-up runs while verification fails (default 2, negative for none)

	DryRun     bool                  // Keep edits in memory; Result.Diff shows them. Skips verification
	AuditDB    string                // SQLite audit database path; empty disables it
	Registerer prometheus.Registerer // Metrics registerer; nil disables metrics
	Logger     logrus.FieldLogger    // Defaults to the standard logger
}

// Request is one edit invocation.
type Request struct {
	Instructions string          // What to change (required)
	Conversation []types.Message // Prior conversation sent as context
}

// Result describes a finished run. It is returned alongside an error when
// the session got far enough to save files.
type Result struct {
	Report string   // Text for the caller; empty on failure, see EditError
	Files  []string // Root-relative paths of the edited files
	Diff   string   // Unified diff of the edits; only filled in dry-run mode

	Verification *Verification // Nil unless Config.VerifyCmd is set
}

// Verification is the outcome of the post-edit check.
type Verification struct {
	Command string
	OK      bool
	Output  string // Output of the last check
	Retries int    // Follow-up runs made to fix failures
}
