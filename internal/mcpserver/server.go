// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package mcpserver exposes edit sessions as an MCP tool over stdio.
package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"
)

// ToolName is the name the edit tool is registered under.
const ToolName = "edit-files"

const toolDescription = `Edit files in the project by describing the changes in natural language.
A separate model turns the instructions into SEARCH/REPLACE blocks and applies them.
The result lists every applied block; failures list the blocks that did not match or parse.`

const instructionsDescription = `High-level edit instructions. They are interpreted by a separate model,
so explain the changes you want and which file paths need changing, concisely.
Start each file path with one of the project's root directories.
Never include code blocks or snippets; describe the changes in natural language.
Example: "Add a new quit function to root-1/src/main.go that exits the process".`

const displayDescription = `A very short, user-facing description of the change, for example
"Fix auth bug in login flow".`

// RunFunc runs one edit session for the given instructions.
type RunFunc func(ctx context.Context, instructions string) (string, error)

// Server serves the edit tool.
type Server struct {
	mcp *server.MCPServer
	run RunFunc
	log logrus.FieldLogger
}

// New creates a server that runs sessions through run.
func New(version string, run RunFunc, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Server{
		mcp: server.NewMCPServer("go-editfiles", version),
		run: run,
		log: log,
	}
	s.mcp.AddTool(Tool(), s.handleEdit)
	return s
}

// Tool returns the MCP definition of the edit tool.
func Tool() mcp.Tool {
	return mcp.NewTool(ToolName,
		mcp.WithDescription(toolDescription),
		mcp.WithString("edit_instructions",
			mcp.Required(),
			mcp.Description(instructionsDescription),
		),
		mcp.WithString("display_description",
			mcp.Description(displayDescription),
		),
	)
}

// ServeStdio serves requests on stdin and stdout until the client
// disconnects.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) handleEdit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("invalid arguments type: expected object, got %T", req.Params.Arguments)
	}
	instructions, _ := args["edit_instructions"].(string)
	if strings.TrimSpace(instructions) == "" {
		return mcp.NewToolResultError("edit_instructions is required"), nil
	}
	description, _ := args["display_description"].(string)

	log := s.log.WithField("description", description)
	log.Info("edit tool called")

	out, err := s.run(ctx, instructions)
	if err != nil {
		log.WithError(err).Warn("edit tool failed")
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(out), nil
}
