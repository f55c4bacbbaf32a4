// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/petar-djukic/go-editfiles/internal/audit"
	gitpkg "github.com/petar-djukic/go-editfiles/internal/git"
)

// newUndoCmd creates the "undo" command.
func newUndoCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "undo",
		Short: "Revert the last go-editfiles commit",
		Long:  "Undo performs a soft reset of the last commit if it was made by go-editfiles.",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := gitpkg.Open(gitpkg.Config{WorkDir: v.GetString("workdir")})
			if err != nil {
				return fmt.Errorf("opening repository: %w", err)
			}
			if err := repo.Undo(); err != nil {
				return fmt.Errorf("undo failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Successfully reverted last go-editfiles commit.")
			return nil
		},
	}
}

// newHistoryCmd creates the "history" command.
func newHistoryCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [id]",
		Short: "List audited requests or show one",
		Long:  "History reads the audit database. Without an id it lists recent requests; with one it prints the instructions, the model response and the result.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := v.GetString("audit-db")
			if path == "" {
				return fmt.Errorf("no audit database configured, set --audit-db")
			}
			log, err := newLogger(v, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			store, err := audit.OpenSQLite(path, log)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				r, err := store.Request(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "# Instructions\n\n%s\n\n# Response\n\n%s\n\n# Result\n\n%s\n",
					r.Instructions, r.Response(), resultOf(r))
				return nil
			}

			limit, _ := cmd.Flags().GetInt("limit")
			reqs, err := store.Requests(cmd.Context(), limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTARTED\tSTATUS\tINSTRUCTIONS")
			for _, r := range reqs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), statusOf(&r), firstLine(r.Instructions))
			}
			return w.Flush()
		},
	}
	cmd.Flags().Int("limit", 20, "Number of requests to list")
	return cmd
}

func statusOf(r *audit.Request) string {
	switch {
	case r.CompletedAt.IsZero():
		return "running"
	case r.Error != "":
		return "failed"
	default:
		return "ok"
	}
}

func resultOf(r *audit.Request) string {
	if r.Error != "" {
		return r.Error
	}
	return r.Output
}

func firstLine(s string) string {
	s, _, _ = strings.Cut(strings.TrimSpace(s), "\n")
	if r := []rune(s); len(r) > 60 {
		return string(r[:57]) + "..."
	}
	return s
}
