// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/petar-djukic/go-editfiles/pkg/types"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures a client for OpenAI-compatible endpoints.
type OpenAIConfig struct {
	Model     string // Model name (required)
	APIKey    string // Bearer token; may be empty for local servers
	BaseURL   string // Optional endpoint override, e.g. http://localhost:11434/v1
	MaxTokens int    // Max tokens for the response (default 8192)
}

// OpenAIClient streams chat completions through the OpenAI API.
type OpenAIClient struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// NewOpenAIClient creates an OpenAI client.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model is required", ErrLLMFailure)
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	return &OpenAIClient{
		client:    openai.NewClientWithConfig(oc),
		model:     cfg.Model,
		maxTokens: maxTokens,
	}, nil
}

// Stream starts a streaming chat completion.
func (c *OpenAIClient) Stream(ctx context.Context, req Request) (*Stream, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	// A zero temperature is dropped by omitempty; the smallest float keeps
	// the request deterministic.
	temperature := float32(req.Temperature)
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}

	stream, err := c.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:         c.model,
		Messages:      toOpenAIMessages(req.Messages),
		MaxTokens:     maxTokens,
		Temperature:   temperature,
		Stream:        true,
		StreamOptions: &openai.StreamOptions{IncludeUsage: true},
	})
	if err != nil {
		return nil, classifyOpenAIError(err)
	}

	s := newStream()
	go func() {
		defer stream.Close()
		var usage types.TokenUsage
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				s.close(usage, nil)
				return
			}
			if err != nil {
				s.close(usage, fmt.Errorf("%w: stream error: %v", ErrLLMFailure, err))
				return
			}
			if resp.Usage != nil {
				usage.InputTokens = resp.Usage.PromptTokens
				usage.OutputTokens = resp.Usage.CompletionTokens
			}
			for _, choice := range resp.Choices {
				if choice.Delta.Content == "" {
					continue
				}
				if !s.send(ctx, choice.Delta.Content) {
					s.close(usage, fmt.Errorf("%w: stream interrupted: %v", ErrLLMFailure, ctx.Err()))
					return
				}
			}
		}
	}()
	return s, nil
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 401, 403:
			return fmt.Errorf("%w: credential or permission issue: %s", ErrLLMFailure, apiErr.Message)
		case 404:
			return fmt.Errorf("%w: model not found: %s", ErrLLMFailure, apiErr.Message)
		case 429:
			return fmt.Errorf("%w: rate limited: %s", ErrLLMFailure, apiErr.Message)
		}
	}
	return fmt.Errorf("%w: %v", ErrLLMFailure, err)
}

// toOpenAIMessages converts a conversation into chat messages. Tool
// results become tool-role messages following the assistant turn that
// requested them.
func toOpenAIMessages(msgs []types.Message) []openai.ChatCompletionMessage {
	var out []openai.ChatCompletionMessage
	for _, m := range msgs {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case types.RoleSystem:
			role = openai.ChatMessageRoleSystem
		case types.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}

		msg := openai.ChatCompletionMessage{Role: role}
		var (
			texts    []string
			parts    []openai.ChatMessagePart
			hasImage bool
			results  []openai.ChatCompletionMessage
		)

		for _, p := range m.Parts {
			switch p.Kind {
			case types.PartText:
				texts = append(texts, p.Text)
				parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: p.Text})
			case types.PartImage:
				hasImage = true
				url := fmt.Sprintf("data:image/%s;base64,%s", strings.ToLower(p.ImageFormat), base64.StdEncoding.EncodeToString(p.ImageData))
				parts = append(parts, openai.ChatMessagePart{
					Type:     openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{URL: url},
				})
			case types.PartToolUse:
				args, err := json.Marshal(p.ToolInput)
				if err != nil {
					args = []byte("{}")
				}
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:       p.ToolUseID,
					Type:     openai.ToolTypeFunction,
					Function: openai.FunctionCall{Name: p.ToolName, Arguments: string(args)},
				})
			case types.PartToolResult:
				results = append(results, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					ToolCallID: p.ToolUseID,
					Content:    p.Text,
				})
			}
		}

		// Tool results answer the preceding assistant turn, so they go
		// before any text the user added alongside them.
		out = append(out, results...)

		if hasImage {
			msg.MultiContent = parts
		} else {
			msg.Content = strings.Join(texts, "\n\n")
		}
		if msg.Content != "" || len(msg.MultiContent) > 0 || len(msg.ToolCalls) > 0 {
			out = append(out, msg)
		}
	}
	return out
}
