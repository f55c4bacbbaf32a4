// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/petar-djukic/go-editfiles/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockEventStream implements EventStream for testing.
type mockEventStream struct {
	ch     chan brtypes.ConverseStreamOutput
	err    error
	closed bool
}

func (m *mockEventStream) Events() <-chan brtypes.ConverseStreamOutput {
	return m.ch
}

func (m *mockEventStream) Close() error {
	m.closed = true
	return nil
}

func (m *mockEventStream) Err() error {
	return m.err
}

func textEvent(text string) brtypes.ConverseStreamOutput {
	return &brtypes.ConverseStreamOutputMemberContentBlockDelta{
		Value: brtypes.ContentBlockDeltaEvent{
			ContentBlockIndex: aws.Int32(0),
			Delta:             &brtypes.ContentBlockDeltaMemberText{Value: text},
		},
	}
}

func usageEvent(in, out int) brtypes.ConverseStreamOutput {
	return &brtypes.ConverseStreamOutputMemberMetadata{
		Value: brtypes.ConverseStreamMetadataEvent{
			Usage: &brtypes.TokenUsage{
				InputTokens:  aws.Int32(int32(in)),
				OutputTokens: aws.Int32(int32(out)),
				TotalTokens:  aws.Int32(int32(in + out)),
			},
			Metrics: &brtypes.ConverseStreamMetrics{LatencyMs: aws.Int64(100)},
		},
	}
}

func newMockStream(tokens []string, in, out int) *mockEventStream {
	ch := make(chan brtypes.ConverseStreamOutput, len(tokens)+1)
	for _, token := range tokens {
		ch <- textEvent(token)
	}
	ch <- usageEvent(in, out)
	close(ch)
	return &mockEventStream{ch: ch}
}

// mockBedrockAPI implements BedrockAPI for testing.
type mockBedrockAPI struct {
	throttleN   int   // Number of times to return ThrottlingException before success
	failWithErr error // Return this error on every call
	callCount   int
	lastInput   *bedrockruntime.ConverseStreamInput
}

func (m *mockBedrockAPI) ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error) {
	m.callCount++
	m.lastInput = params

	if m.failWithErr != nil {
		return nil, m.failWithErr
	}
	if m.callCount <= m.throttleN {
		return nil, &brtypes.ThrottlingException{Message: aws.String("Rate exceeded")}
	}
	return &bedrockruntime.ConverseStreamOutput{}, nil
}

// newTestClient wires a mock API and event stream into a client.
func newTestClient(api *mockBedrockAPI, stream *mockEventStream) *BedrockClient {
	c := NewBedrockClientWithAPI(api, BedrockConfig{ModelID: "test-model", Region: "us-east-1"})
	c.streamOf = func(*bedrockruntime.ConverseStreamOutput) EventStream { return stream }
	return c
}

func collect(s *Stream) string {
	var b strings.Builder
	for chunk := range s.Chunks() {
		b.WriteString(chunk)
	}
	return b.String()
}

func TestBedrockClient_Stream(t *testing.T) {
	api := &mockBedrockAPI{}
	client := newTestClient(api, newMockStream([]string{"Here", " is", " the", " code"}, 150, 42))

	s, err := client.Stream(context.Background(), Request{
		Messages: []types.Message{
			{Role: types.RoleSystem, Parts: []types.Part{types.TextPart("be brief")}},
			{Role: types.RoleUser, Parts: []types.Part{types.TextPart("edit it")}},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Here is the code", collect(s))
	require.NoError(t, s.Err())
	assert.Equal(t, types.TokenUsage{InputTokens: 150, OutputTokens: 42}, s.Usage())
	assert.Equal(t, 192, client.CumulativeUsage().Total())

	in := api.lastInput
	require.NotNil(t, in)
	assert.Equal(t, "test-model", aws.ToString(in.ModelId))
	assert.Equal(t, float32(0), aws.ToFloat32(in.InferenceConfig.Temperature))
	assert.Equal(t, int32(defaultMaxTokens), aws.ToInt32(in.InferenceConfig.MaxTokens))
	require.Len(t, in.System, 1)
	require.Len(t, in.Messages, 1)
	assert.Nil(t, in.ToolConfig)
}

func TestBedrockClient_StreamError(t *testing.T) {
	stream := newMockStream([]string{"partial"}, 1, 1)
	stream.err = errors.New("connection reset")
	client := newTestClient(&mockBedrockAPI{}, stream)

	s, err := client.Stream(context.Background(), Request{})
	require.NoError(t, err)

	assert.Equal(t, "partial", collect(s))
	require.Error(t, s.Err())
	assert.ErrorIs(t, s.Err(), ErrLLMFailure)
	assert.Contains(t, s.Err().Error(), "connection reset")
}

func TestBedrockClient_RetriesThrottling(t *testing.T) {
	api := &mockBedrockAPI{throttleN: 1}
	client := newTestClient(api, newMockStream([]string{"ok"}, 1, 1))

	s, err := client.Stream(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "ok", collect(s))
	assert.Equal(t, 2, api.callCount)
}

func TestBedrockClient_RetryRespectsCancellation(t *testing.T) {
	api := &mockBedrockAPI{throttleN: 10}
	client := newTestClient(api, newMockStream(nil, 0, 0))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Stream(ctx, Request{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLLMFailure)
	assert.Equal(t, 1, api.callCount)
}

func TestBedrockClient_CallFailure(t *testing.T) {
	api := &mockBedrockAPI{failWithErr: &brtypes.AccessDeniedException{Message: aws.String("no")}}
	client := newTestClient(api, nil)

	_, err := client.Stream(context.Background(), Request{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLLMFailure)
	assert.Contains(t, err.Error(), "credential")
}

func TestConsumeStream_ContextCancellation(t *testing.T) {
	ch := make(chan brtypes.ConverseStreamOutput, 4)
	for _, token := range []string{"partial", " content"} {
		ch <- textEvent(token)
	}
	// ch stays open; cancellation ends the stream.
	stream := &mockEventStream{ch: ch}
	out := newStream()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := consumeStream(ctx, stream, out)
		done <- err
	}()

	assert.Equal(t, "partial", <-out.Chunks())
	cancel()

	err := <-done
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLLMFailure)
	assert.True(t, stream.closed)
}

func TestNewBedrockClientWithAPI_Defaults(t *testing.T) {
	client := NewBedrockClientWithAPI(&mockBedrockAPI{}, BedrockConfig{
		ModelID: "test-model",
		Region:  "us-west-2",
	})

	assert.Equal(t, defaultMaxTokens, client.maxTokens)
	assert.Equal(t, defaultTimeout, client.timeout)
}

func TestNewBedrockClient_Validation(t *testing.T) {
	_, err := NewBedrockClient(context.Background(), BedrockConfig{Region: "us-east-1"})
	assert.ErrorIs(t, err, ErrLLMFailure)

	_, err = NewBedrockClient(context.Background(), BedrockConfig{ModelID: "m"})
	assert.ErrorIs(t, err, ErrLLMFailure)
}

func TestBedrockClient_ClassifyError(t *testing.T) {
	client := &BedrockClient{modelID: "nonexistent-model", timeout: 30 * time.Second}

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"access denied", &brtypes.AccessDeniedException{Message: aws.String("not authorized")}, "credential"},
		{"not found", &brtypes.ResourceNotFoundException{Message: aws.String("missing")}, "nonexistent-model"},
		{"validation", &brtypes.ValidationException{Message: aws.String("bad")}, "invalid request"},
		{"timeout", context.DeadlineExceeded, "timed out"},
		{"other", errors.New("boom"), "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.classifyError(tt.err)
			assert.ErrorIs(t, err, ErrLLMFailure)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNewStaticStream(t *testing.T) {
	boom := errors.New("boom")
	s := NewStaticStream([]string{"a", "b"}, boom)

	assert.Equal(t, "ab", collect(s))
	assert.Equal(t, boom, s.Err())
}
