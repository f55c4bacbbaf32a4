// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Command go-editfiles applies natural language edit instructions to a
// project through a model that answers in SEARCH/REPLACE blocks.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const version = "0.1.0"

func main() {
	// .env is optional.
	_ = godotenv.Load()

	root := newRootCmd(viper.New(), os.Stdout, os.Stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Output goes to stdout, reports of
// failed runs and logs to stderr.
func newRootCmd(v *viper.Viper, stdout, stderr io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "go-editfiles",
		Short:         "Apply natural language edits to files",
		Long:          "go-editfiles sends edit instructions to a model, parses the SEARCH/REPLACE blocks it streams back and applies them to your files.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	flags := rootCmd.PersistentFlags()
	flags.String("workdir", ".", "Project directory")
	flags.StringSlice("roots", nil, "Lookup directories for edited paths, relative to workdir")
	flags.String("provider", "bedrock", "Inference provider: bedrock or openai")
	flags.String("model", "", "Model ID")
	flags.String("region", "", "AWS region for Bedrock")
	flags.String("profile", "", "AWS credential profile for Bedrock")
	flags.String("openai-api-key", "", "API key for OpenAI-compatible endpoints (default $OPENAI_API_KEY)")
	flags.String("openai-base-url", "", "OpenAI-compatible endpoint override")
	flags.Int("max-tokens", 8192, "Maximum tokens for the model response")
	flags.Duration("timeout", 0, "Model request timeout (default 5m)")
	flags.Bool("git-stage", false, "Stage edited files")
	flags.Bool("git-commit", false, "Commit edited files after each run")
	flags.Bool("git-dirty-commit", false, "Commit uncommitted changes before a committing run")
	flags.String("verify-cmd", "", "Command run after each edit, e.g. \"go build ./...\"; failures are sent back to the model")
	flags.Int("max-retries", 2, "Follow-up runs while verification fails")
	flags.String("audit-db", "", "SQLite database recording every request")
	flags.String("metrics-file", "", "Write Prometheus metrics to this file after each run")
	flags.String("log-level", "warn", "Log level: debug, info, warn, error")
	flags.String("log-format", "text", "Log format: text or json")

	flags.VisitAll(func(f *pflag.Flag) {
		v.BindPFlag(f.Name, f)
	})

	// Env vars: GO_EDITFILES_MODEL, GO_EDITFILES_GIT_COMMIT, etc.
	v.SetEnvPrefix("GO_EDITFILES")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName(".go-editfiles")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return fmt.Errorf("reading config: %w", err)
			}
		}
		return nil
	}

	rootCmd.AddCommand(newRunCmd(v))
	rootCmd.AddCommand(newApplyCmd(v))
	rootCmd.AddCommand(newServeCmd(v))
	rootCmd.AddCommand(newUndoCmd(v))
	rootCmd.AddCommand(newHistoryCmd(v))
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// newLogger creates the logger every component receives. Logs go to
// stderr so stdout stays free for reports and the MCP protocol.
func newLogger(v *viper.Viper, out io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(v.GetString("log-level"))
	if err != nil {
		return nil, err
	}

	log := logrus.New()
	log.SetOutput(out)
	log.SetLevel(level)
	switch format := v.GetString("log-format"); format {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	return log, nil
}

// newVersionCmd creates the "version" command.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print go-editfiles version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "go-editfiles %s\n", version)
		},
	}
}
