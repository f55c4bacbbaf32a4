// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package editfiles

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/petar-djukic/go-editfiles/internal/audit"
	"github.com/petar-djukic/go-editfiles/internal/document"
	"github.com/petar-djukic/go-editfiles/internal/feedback"
	"github.com/petar-djukic/go-editfiles/internal/git"
	"github.com/petar-djukic/go-editfiles/internal/llm"
	"github.com/petar-djukic/go-editfiles/internal/metrics"
	"github.com/petar-djukic/go-editfiles/internal/session"
	"github.com/petar-djukic/go-editfiles/pkg/types"
)

const (
	defaultMaxTokens = 8192
	defaultTimeout   = 5 * time.Minute
)

// Tool runs edit sessions against a project. Runs are independent: each
// reads the files fresh from disk.
type Tool struct {
	cfg     Config
	roots   []string
	client  llm.Client
	repo    *git.Repo // nil without git integration
	audit   session.AuditLog
	store   *audit.SQLiteStore // nil without an audit database
	metrics *metrics.Metrics
	log     logrus.FieldLogger
}

// New validates the config, creates the inference client and opens the
// optional git repository and audit database.
func New(cfg Config) (*Tool, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	applyDefaults(&cfg)

	t := &Tool{cfg: cfg, log: cfg.Logger}
	for _, r := range cfg.Roots {
		if !filepath.IsAbs(r) {
			r = filepath.Join(cfg.WorkDir, r)
		}
		t.roots = append(t.roots, r)
	}

	client, err := newClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLLMFailure, err)
	}
	t.client = client

	if cfg.GitStage || cfg.GitCommit {
		repo, err := git.Open(git.Config{
			WorkDir:     cfg.WorkDir,
			Stage:       cfg.GitStage,
			AutoCommit:  cfg.GitCommit,
			DirtyCommit: cfg.GitDirtyCommit,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		t.repo = repo
	}

	sinks := audit.Multi{audit.NewLogger(cfg.Logger)}
	if cfg.AuditDB != "" {
		store, err := audit.OpenSQLite(cfg.AuditDB, cfg.Logger)
		if err != nil {
			return nil, fmt.Errorf("opening audit database: %w", err)
		}
		t.store = store
		sinks = append(sinks, store)
	}
	t.audit = sinks

	if cfg.Registerer != nil {
		t.metrics = metrics.New(cfg.Registerer)
	}
	return t, nil
}

func newClient(cfg Config) (llm.Client, error) {
	switch cfg.Provider {
	case ProviderReplay:
		return &llm.ReplayClient{Response: cfg.ReplayResponse, ChunkSize: cfg.ReplayChunkSize}, nil
	case ProviderOpenAI:
		return llm.NewOpenAIClient(llm.OpenAIConfig{
			Model:     cfg.Model,
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			MaxTokens: cfg.MaxTokens,
		})
	default:
		return llm.NewBedrockClient(context.Background(), llm.BedrockConfig{
			ModelID:   cfg.Model,
			Region:    cfg.Region,
			Profile:   cfg.Profile,
			Timeout:   cfg.Timeout,
			MaxTokens: cfg.MaxTokens,
			Logger:    cfg.Logger,
		})
	}
}

// Run executes one edit session. On an *EditError the returned Result
// still lists the files that were saved. With a verification command,
// failures after the session lead to follow-up sessions carrying the
// errors as instructions.
func (t *Tool) Run(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Instructions) == "" {
		return nil, fmt.Errorf("%w: instructions are required", ErrInvalidConfig)
	}

	res, err := t.runSession(ctx, req)
	if err != nil || t.cfg.VerifyCmd == "" || t.cfg.DryRun {
		return res, err
	}

	conversation := slices.Clone(req.Conversation)
	prev := req.Instructions
	loop, err := feedback.Run(ctx, feedback.LoopConfig{
		Verify: feedback.Config{
			WorkDir: t.cfg.WorkDir,
			Command: t.cfg.VerifyCmd,
			Timeout: t.cfg.VerifyTimeout,
		},
		Format:     feedback.FormatConfig{WorkDir: t.cfg.WorkDir},
		MaxRetries: t.cfg.MaxRetries,
		Logger:     t.log,
	}, res.Files, func(ctx context.Context, instructions string) ([]string, error) {
		conversation = append(conversation,
			types.Message{Role: types.RoleUser, Parts: []types.Part{types.TextPart(prev)}},
			types.Message{Role: types.RoleAssistant, Parts: []types.Part{types.TextPart(res.Report)}},
		)
		prev = instructions

		next, err := t.runSession(ctx, Request{Instructions: instructions, Conversation: conversation})
		if err != nil {
			return nil, err
		}
		res.Report = next.Report
		return next.Files, nil
	})

	res.Files = loop.EditedFiles
	res.Verification = &Verification{
		Command: t.cfg.VerifyCmd,
		OK:      loop.Success,
		Output:  loop.Final.Output,
		Retries: loop.Retries,
	}
	return res, err
}

// runSession runs one session against a fresh view of the files.
func (t *Tool) runSession(ctx context.Context, req Request) (*Result, error) {
	store, err := document.NewFSStore(document.FSConfig{
		Roots:  t.roots,
		DryRun: t.cfg.DryRun,
		Logger: t.log,
	})
	if err != nil {
		return nil, err
	}

	tracker := &recordingTracker{}
	if t.repo != nil {
		if t.cfg.GitCommit {
			if err := t.repo.HandleDirty(); err != nil {
				return nil, err
			}
		}
		tracker.next = git.NewTracker(t.repo, store.Paths, req.Instructions, t.log)
	}

	runner := session.NewRunner(session.Deps{
		Store:   store,
		Tracker: tracker,
		Audit:   t.audit,
		Metrics: t.metrics,
		Logger:  t.log,
	}, t.client, t.cfg.MaxTokens)

	report, runErr := runner.Run(ctx, session.Request{
		Instructions: req.Instructions,
		Conversation: req.Conversation,
	})

	if runErr != nil && !isFinished(runErr) {
		return nil, runErr
	}

	handles := tracker.edited()
	res := &Result{Report: report}
	for _, h := range handles {
		res.Files = append(res.Files, store.RelPath(h))
	}
	if t.cfg.DryRun {
		var b strings.Builder
		for _, h := range handles {
			d, err := store.UnifiedDiff(h)
			if err != nil {
				return nil, err
			}
			b.WriteString(d)
		}
		res.Diff = b.String()
	}
	return res, runErr
}

// isFinished reports whether err ends a session that was finalized.
func isFinished(err error) bool {
	var editErr *EditError
	return errors.Is(err, ErrNoChanges) || errors.As(err, &editErr)
}

// Undo reverts the last commit made by a previous run.
func (t *Tool) Undo() error {
	repo := t.repo
	if repo == nil {
		var err error
		repo, err = git.Open(git.Config{WorkDir: t.cfg.WorkDir})
		if err != nil {
			return err
		}
	}
	return repo.Undo()
}

// History returns the most recent audited requests, newest first.
func (t *Tool) History(ctx context.Context, limit int) ([]audit.Request, error) {
	if t.store == nil {
		return nil, fmt.Errorf("%w: no audit database configured", ErrInvalidConfig)
	}
	return t.store.Requests(ctx, limit)
}

// Request returns one audited request with its recorded response.
func (t *Tool) Request(ctx context.Context, id string) (*audit.Request, error) {
	if t.store == nil {
		return nil, fmt.Errorf("%w: no audit database configured", ErrInvalidConfig)
	}
	return t.store.Request(ctx, id)
}

// Close releases the audit database.
func (t *Tool) Close() error {
	if t.store == nil {
		return nil
	}
	return t.store.Close()
}

// recordingTracker remembers the documents a session saved and forwards
// them to the next tracker, if any.
type recordingTracker struct {
	next session.ChangeTracker

	mu      sync.Mutex
	handles []types.DocumentHandle
}

func (r *recordingTracker) NotifyEdited(ctx context.Context, handles []types.DocumentHandle) error {
	r.mu.Lock()
	r.handles = append([]types.DocumentHandle{}, handles...)
	r.mu.Unlock()

	if r.next == nil {
		return nil
	}
	return r.next.NotifyEdited(ctx, handles)
}

func (r *recordingTracker) edited() []types.DocumentHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handles
}

// validateConfig checks that required fields are present.
func validateConfig(cfg Config) error {
	if cfg.WorkDir == "" {
		return fmt.Errorf("WorkDir is required")
	}
	if info, err := os.Stat(cfg.WorkDir); err != nil || !info.IsDir() {
		return fmt.Errorf("WorkDir %q does not exist or is not a directory", cfg.WorkDir)
	}
	switch cfg.Provider {
	case "", ProviderBedrock:
		if cfg.Model == "" {
			return fmt.Errorf("Model is required")
		}
		if cfg.Region == "" {
			return fmt.Errorf("Region is required for bedrock")
		}
	case ProviderOpenAI:
		if cfg.Model == "" {
			return fmt.Errorf("Model is required")
		}
	case ProviderReplay:
	default:
		return fmt.Errorf("unknown provider %q", cfg.Provider)
	}
	if cfg.DryRun && (cfg.GitStage || cfg.GitCommit) {
		return fmt.Errorf("DryRun cannot be combined with git staging or commits")
	}
	if cfg.GitDirtyCommit && !cfg.GitCommit {
		return fmt.Errorf("GitDirtyCommit requires GitCommit")
	}
	return nil
}

// applyDefaults fills in zero-value fields with their defaults.
func applyDefaults(cfg *Config) {
	if cfg.Provider == "" {
		cfg.Provider = ProviderBedrock
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if len(cfg.Roots) == 0 {
		cfg.Roots = []string{"."}
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
}
