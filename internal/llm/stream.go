// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package llm

import (
	"context"
	"fmt"

	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/petar-djukic/go-editfiles/pkg/types"
)

// EventStream abstracts the Bedrock ConverseStream event stream for testing.
type EventStream interface {
	Events() <-chan brtypes.ConverseStreamOutput
	Close() error
	Err() error
}

// consumeStream reads events from a Bedrock ConverseStream and forwards
// text deltas to out. It returns the reported usage and an error when the
// stream broke off or ctx was cancelled before the final event.
func consumeStream(ctx context.Context, stream EventStream, out *Stream) (types.TokenUsage, error) {
	var usage types.TokenUsage

	events := stream.Events()
	for {
		select {
		case <-ctx.Done():
			stream.Close()
			return usage, fmt.Errorf("%w: stream interrupted: %v", ErrLLMFailure, ctx.Err())

		case event, ok := <-events:
			if !ok {
				if err := stream.Err(); err != nil {
					return usage, fmt.Errorf("%w: stream error: %v", ErrLLMFailure, err)
				}
				return usage, nil
			}

			switch v := event.(type) {
			case *brtypes.ConverseStreamOutputMemberContentBlockDelta:
				if delta, ok := v.Value.Delta.(*brtypes.ContentBlockDeltaMemberText); ok {
					if !out.send(ctx, delta.Value) {
						stream.Close()
						return usage, fmt.Errorf("%w: stream interrupted: %v", ErrLLMFailure, ctx.Err())
					}
				}

			case *brtypes.ConverseStreamOutputMemberMetadata:
				if v.Value.Usage != nil {
					if v.Value.Usage.InputTokens != nil {
						usage.InputTokens = int(*v.Value.Usage.InputTokens)
					}
					if v.Value.Usage.OutputTokens != nil {
						usage.OutputTokens = int(*v.Value.Usage.OutputTokens)
					}
				}
			}
		}
	}
}
