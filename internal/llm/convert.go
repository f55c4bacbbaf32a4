// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package llm

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/petar-djukic/go-editfiles/pkg/types"
)

// toBedrockMessages converts a conversation into Converse API input.
// System messages become system blocks. Consecutive messages of the same
// role are merged because the API requires alternating roles. When the
// history carries tool use, a tool configuration declaring those tools is
// returned; the API rejects tool use blocks without one.
func toBedrockMessages(msgs []types.Message) ([]brtypes.SystemContentBlock, []brtypes.Message, *brtypes.ToolConfiguration) {
	var (
		system   []brtypes.SystemContentBlock
		messages []brtypes.Message
		tools    []string
		seen     = make(map[string]bool)
	)

	for _, m := range msgs {
		if m.Role == types.RoleSystem {
			if text := m.Text(); text != "" {
				system = append(system, &brtypes.SystemContentBlockMemberText{Value: text})
			}
			continue
		}

		var content []brtypes.ContentBlock
		for _, p := range m.Parts {
			block := toBedrockBlock(p)
			if block == nil {
				continue
			}
			if p.Kind == types.PartToolUse && !seen[p.ToolName] {
				seen[p.ToolName] = true
				tools = append(tools, p.ToolName)
			}
			content = append(content, block)
		}
		if len(content) == 0 {
			continue
		}

		role := brtypes.ConversationRoleUser
		if m.Role == types.RoleAssistant {
			role = brtypes.ConversationRoleAssistant
		}

		if n := len(messages); n > 0 && messages[n-1].Role == role {
			messages[n-1].Content = append(messages[n-1].Content, content...)
			continue
		}
		messages = append(messages, brtypes.Message{Role: role, Content: content})
	}

	return system, messages, toolConfig(tools)
}

func toBedrockBlock(p types.Part) brtypes.ContentBlock {
	switch p.Kind {
	case types.PartText:
		if p.Text == "" {
			return nil
		}
		return &brtypes.ContentBlockMemberText{Value: p.Text}

	case types.PartImage:
		return &brtypes.ContentBlockMemberImage{Value: brtypes.ImageBlock{
			Format: brtypes.ImageFormat(strings.ToLower(p.ImageFormat)),
			Source: &brtypes.ImageSourceMemberBytes{Value: p.ImageData},
		}}

	case types.PartToolUse:
		input := p.ToolInput
		if input == nil {
			input = map[string]any{}
		}
		return &brtypes.ContentBlockMemberToolUse{Value: brtypes.ToolUseBlock{
			ToolUseId: aws.String(p.ToolUseID),
			Name:      aws.String(p.ToolName),
			Input:     document.NewLazyDocument(input),
		}}

	case types.PartToolResult:
		status := brtypes.ToolResultStatusSuccess
		if p.IsError {
			status = brtypes.ToolResultStatusError
		}
		return &brtypes.ContentBlockMemberToolResult{Value: brtypes.ToolResultBlock{
			ToolUseId: aws.String(p.ToolUseID),
			Content: []brtypes.ToolResultContentBlock{
				&brtypes.ToolResultContentBlockMemberText{Value: p.Text},
			},
			Status: status,
		}}
	}
	return nil
}

func toolConfig(names []string) *brtypes.ToolConfiguration {
	if len(names) == 0 {
		return nil
	}
	cfg := &brtypes.ToolConfiguration{}
	for _, name := range names {
		cfg.Tools = append(cfg.Tools, &brtypes.ToolMemberToolSpec{Value: brtypes.ToolSpecification{
			Name: aws.String(name),
			InputSchema: &brtypes.ToolInputSchemaMemberJson{
				Value: document.NewLazyDocument(map[string]any{"type": "object"}),
			},
		}})
	}
	return cfg
}
