// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package session

import "github.com/petar-djukic/go-editfiles/pkg/types"

// BuildMessages returns the conversation to send to the editing model: a
// copy of conversation without the tool call that started this edit,
// followed by a user message carrying the edit prompt and the
// instructions.
//
// The last tool use part is removed unless a tool result appears after it,
// in which case the conversation is already well formed.
func BuildMessages(conversation []types.Message, instructions, editPrompt string) []types.Message {
	msgs := make([]types.Message, 0, len(conversation)+1)
	for _, m := range conversation {
		msgs = append(msgs, m.Clone())
	}

outer:
	for i := len(msgs) - 1; i >= 0; i-- {
		parts := msgs[i].Parts
		for j := len(parts) - 1; j >= 0; j-- {
			switch parts[j].Kind {
			case types.PartToolUse:
				msgs[i].Parts = append(parts[:j], parts[j+1:]...)
				break outer
			case types.PartToolResult:
				break outer
			}
		}
	}

	return append(msgs, types.Message{
		Role:  types.RoleUser,
		Parts: []types.Part{types.TextPart(editPrompt), types.TextPart(instructions)},
	})
}
