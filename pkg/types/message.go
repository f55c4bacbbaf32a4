// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package types

// MessageRole identifies the sender of a message in the LLM conversation.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// PartKind identifies the content carried by a message part.
type PartKind int

const (
	PartText PartKind = iota
	PartImage
	PartToolUse
	PartToolResult
)

// Part is one content block of a message. Only the fields relevant to
// Kind are set.
type Part struct {
	Kind PartKind `json:"kind"`

	Text string `json:"text,omitempty"` // PartText

	ImageFormat string `json:"image_format,omitempty"` // PartImage: png, jpeg, gif, webp
	ImageData   []byte `json:"image_data,omitempty"`   // PartImage

	ToolUseID string         `json:"tool_use_id,omitempty"` // PartToolUse, PartToolResult
	ToolName  string         `json:"tool_name,omitempty"`   // PartToolUse
	ToolInput map[string]any `json:"tool_input,omitempty"`  // PartToolUse
	IsError   bool           `json:"is_error,omitempty"`    // PartToolResult
}

// TextPart returns a text content part.
func TextPart(text string) Part {
	return Part{Kind: PartText, Text: text}
}

// Message represents a single message in the LLM conversation.
type Message struct {
	Role  MessageRole `json:"role"`
	Parts []Part      `json:"parts"`
}

// Text concatenates the text parts of the message.
func (m Message) Text() string {
	var s string
	for _, p := range m.Parts {
		if p.Kind == PartText {
			s += p.Text
		}
	}
	return s
}

// Clone returns a deep enough copy of the message that its part slice can
// be modified without affecting the original.
func (m Message) Clone() Message {
	parts := make([]Part, len(m.Parts))
	copy(parts, m.Parts)
	return Message{Role: m.Role, Parts: parts}
}

// TokenUsage tracks token consumption for a single LLM call.
type TokenUsage struct {
	InputTokens  int // Tokens in the prompt
	OutputTokens int // Tokens in the response
}

// Total returns the sum of input and output tokens.
func (u TokenUsage) Total() int {
	return u.InputTokens + u.OutputTokens
}
