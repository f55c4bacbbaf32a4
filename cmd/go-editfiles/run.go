// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/petar-djukic/go-editfiles/internal/metrics"
	"github.com/petar-djukic/go-editfiles/pkg/editfiles"
	"github.com/petar-djukic/go-editfiles/pkg/types"
)

// newRunCmd creates the "run" command.
func newRunCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Edit files by instructions",
		Long:  "Run sends the instructions to the model and applies the edits it streams back.",
		RunE: func(cmd *cobra.Command, args []string) error {
			instructions, _ := cmd.Flags().GetString("instructions")
			conversationFile, _ := cmd.Flags().GetString("conversation")

			conversation, err := loadConversation(conversationFile)
			if err != nil {
				return err
			}
			env, err := newRunEnv(cmd, v)
			if err != nil {
				return err
			}
			return env.execute(cmd, editfiles.Request{Instructions: instructions, Conversation: conversation})
		},
	}

	cmd.Flags().StringP("instructions", "i", "", "Edit instructions (required)")
	cmd.Flags().String("conversation", "", "JSON file with prior conversation messages")
	cmd.MarkFlagRequired("instructions")
	return cmd
}

// newApplyCmd creates the "apply" command.
func newApplyCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply [file|-]",
		Short: "Apply a recorded model response",
		Long: "Apply streams a saved model response through an edit session without calling a model. " +
			"The response is read from the file, or from stdin when the file is - or missing.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			instructions, _ := cmd.Flags().GetString("instructions")
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			chunkSize, _ := cmd.Flags().GetInt("chunk-size")

			response, err := readResponse(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			env, err := newRunEnv(cmd, v)
			if err != nil {
				return err
			}
			env.cfg.Provider = editfiles.ProviderReplay
			env.cfg.ReplayResponse = response
			env.cfg.ReplayChunkSize = chunkSize
			env.cfg.DryRun = dryRun
			// A recording cannot react to verification errors.
			env.cfg.MaxRetries = -1
			if dryRun {
				env.cfg.GitStage, env.cfg.GitCommit, env.cfg.GitDirtyCommit = false, false, false
			}
			return env.execute(cmd, editfiles.Request{Instructions: instructions})
		},
	}

	cmd.Flags().StringP("instructions", "i", "apply recorded edits", "Instructions recorded with the run")
	cmd.Flags().Bool("dry-run", false, "Print unified diffs instead of saving")
	cmd.Flags().Int("chunk-size", 64, "Replay chunk size in bytes")
	return cmd
}

// runEnv holds what a command needs to build and run a Tool.
type runEnv struct {
	cfg         editfiles.Config
	log         *logrus.Logger
	reg         *prometheus.Registry
	metricsFile string
}

func newRunEnv(cmd *cobra.Command, v *viper.Viper) (*runEnv, error) {
	log, err := newLogger(v, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	reg := prometheus.NewRegistry()
	return &runEnv{
		cfg:         toolConfig(v, log, reg),
		log:         log,
		reg:         reg,
		metricsFile: v.GetString("metrics-file"),
	}, nil
}

// toolConfig maps configuration keys to a Tool config.
func toolConfig(v *viper.Viper, log logrus.FieldLogger, reg prometheus.Registerer) editfiles.Config {
	apiKey := v.GetString("openai-api-key")
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	return editfiles.Config{
		WorkDir:        v.GetString("workdir"),
		Roots:          v.GetStringSlice("roots"),
		Provider:       v.GetString("provider"),
		Model:          v.GetString("model"),
		Region:         v.GetString("region"),
		Profile:        v.GetString("profile"),
		APIKey:         apiKey,
		BaseURL:        v.GetString("openai-base-url"),
		MaxTokens:      v.GetInt("max-tokens"),
		Timeout:        v.GetDuration("timeout"),
		GitStage:       v.GetBool("git-stage"),
		GitCommit:      v.GetBool("git-commit"),
		GitDirtyCommit: v.GetBool("git-dirty-commit"),
		VerifyCmd:      v.GetString("verify-cmd"),
		MaxRetries:     v.GetInt("max-retries"),
		AuditDB:        v.GetString("audit-db"),
		Registerer:     reg,
		Logger:         log,
	}
}

// execute runs one request and prints the result. A dry run prints the
// diff before the report.
func (e *runEnv) execute(cmd *cobra.Command, req editfiles.Request) error {
	tool, err := editfiles.New(e.cfg)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	defer tool.Close()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	res, err := tool.Run(ctx, req)
	e.writeMetrics()

	out := cmd.OutOrStdout()
	if res != nil && res.Diff != "" {
		fmt.Fprint(out, res.Diff)
	}
	if err != nil {
		if res != nil && res.Verification != nil && !res.Verification.OK {
			fmt.Fprint(cmd.ErrOrStderr(), res.Verification.Output)
		}
		return err
	}
	fmt.Fprintln(out, res.Report)
	if vr := res.Verification; vr != nil {
		fmt.Fprintf(out, "\n`%s` passed after %d follow-up runs.\n", vr.Command, vr.Retries)
	}
	return nil
}

// run executes one request for a long-lived Tool, as the MCP server does.
func (e *runEnv) run(ctx context.Context, tool *editfiles.Tool, instructions string) (string, error) {
	res, err := tool.Run(ctx, editfiles.Request{Instructions: instructions})
	e.writeMetrics()
	if err != nil {
		return "", err
	}
	return res.Report, nil
}

func (e *runEnv) writeMetrics() {
	if e.metricsFile == "" {
		return
	}
	if err := metrics.WriteTextfile(e.metricsFile, e.reg); err != nil {
		e.log.WithError(err).Warn("writing metrics")
	}
}

// loadConversation reads prior conversation messages from a JSON file.
// An empty path means no conversation.
func loadConversation(path string) ([]types.Message, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading conversation: %w", err)
	}
	var msgs []types.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, fmt.Errorf("parsing conversation %s: %w", path, err)
	}
	return msgs, nil
}

func readResponse(stdin io.Reader, args []string) (string, error) {
	var (
		data []byte
		err  error
	)
	if len(args) == 0 || args[0] == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	return string(data), nil
}
