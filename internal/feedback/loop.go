// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package feedback

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

const defaultMaxRetries = 2

// ErrVerifyFailed is returned when verification still fails after the
// last retry.
var ErrVerifyFailed = errors.New("verification failed")

// RetryFunc runs one follow-up edit session with the formatted errors as
// instructions and returns the files it edited.
type RetryFunc func(ctx context.Context, instructions string) (editedFiles []string, err error)

// LoopConfig configures the retry loop.
type LoopConfig struct {
	Verify     Config
	Format     FormatConfig
	MaxRetries int                // Follow-up sessions after the first check (default 2, negative for none)
	Logger     logrus.FieldLogger // Defaults to the standard logger
}

// LoopResult holds the outcome of the retry loop.
type LoopResult struct {
	Success     bool
	Retries     int      // Follow-up sessions run
	Final       *Result  // Last verification
	EditedFiles []string // Files edited across all sessions, deduplicated
}

// Run verifies the project and, while verification fails, runs retryFn
// with the formatted errors and verifies again, up to MaxRetries times.
func Run(ctx context.Context, cfg LoopConfig, editedFiles []string, retryFn RetryFunc) (*LoopResult, error) {
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = defaultMaxRetries
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("command", cfg.Verify.Command)

	result := &LoopResult{EditedFiles: mergeFiles(nil, editedFiles)}

	vr := Verify(ctx, cfg.Verify)
	result.Final = vr
	if vr.OK {
		result.Success = true
		return result, nil
	}

	for i := 0; i < maxRetries; i++ {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("context canceled after %d retries: %w", result.Retries, err)
		}
		result.Retries++
		log.WithFields(logrus.Fields{"retry": result.Retries, "errors": len(vr.Errors)}).Info("verification failed, retrying")

		instructions := FormatErrors(vr, result.EditedFiles, cfg.Format)
		files, err := retryFn(ctx, instructions)
		if err != nil {
			return result, fmt.Errorf("retry %d failed: %w", result.Retries, err)
		}
		result.EditedFiles = mergeFiles(result.EditedFiles, files)

		vr = Verify(ctx, cfg.Verify)
		result.Final = vr
		if vr.OK {
			result.Success = true
			return result, nil
		}
	}

	return result, fmt.Errorf("%w: %s after %d retries", ErrVerifyFailed, cfg.Verify.Command, result.Retries)
}

// mergeFiles combines two file lists, deduplicating entries.
func mergeFiles(existing, additional []string) []string {
	seen := make(map[string]bool, len(existing))
	merged := make([]string, 0, len(existing)+len(additional))
	for _, f := range append(existing[:len(existing):len(existing)], additional...) {
		if !seen[f] {
			merged = append(merged, f)
			seen[f] = true
		}
	}
	return merged
}
