// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/petar-djukic/go-editfiles/internal/mcpserver"
	"github.com/petar-djukic/go-editfiles/pkg/editfiles"
)

// newServeCmd creates the "serve" command.
func newServeCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the edit-files tool over MCP stdio",
		Long:  "Serve exposes the edit-files tool to MCP hosts on stdin and stdout. Logs go to stderr.",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newRunEnv(cmd, v)
			if err != nil {
				return err
			}
			tool, err := editfiles.New(env.cfg)
			if err != nil {
				return fmt.Errorf("initialization failed: %w", err)
			}
			defer tool.Close()

			srv := mcpserver.New(version, func(ctx context.Context, instructions string) (string, error) {
				return env.run(ctx, tool, instructions)
			}, env.log)
			env.log.WithField("workdir", env.cfg.WorkDir).Info("serving edit-files over stdio")
			return srv.ServeStdio()
		},
	}
}
