// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/petar-djukic/go-editfiles/pkg/types"
	"github.com/sirupsen/logrus"
)

const (
	defaultTimeout   = 300 * time.Second
	defaultMaxTokens = 8192
	maxRetryAttempts = 3
	baseRetryDelay   = 1 * time.Second
)

// BedrockConfig configures the Bedrock LLM client.
type BedrockConfig struct {
	ModelID   string             // Bedrock model ID (required)
	Region    string             // AWS region (required)
	Profile   string             // AWS credential profile (optional, uses default chain if empty)
	Timeout   time.Duration      // Request timeout (default 300s)
	MaxTokens int                // Max tokens for the response (default 8192)
	Logger    logrus.FieldLogger // Defaults to the standard logger
}

// BedrockAPI abstracts the Bedrock ConverseStream call for testing.
type BedrockAPI interface {
	ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error)
}

// BedrockClient streams completions through the AWS Bedrock Converse API.
type BedrockClient struct {
	api       BedrockAPI
	modelID   string
	timeout   time.Duration
	maxTokens int
	logger    logrus.FieldLogger

	// streamOf extracts the event stream from an SDK output. Replaced in
	// tests because the SDK output cannot be constructed directly.
	streamOf func(*bedrockruntime.ConverseStreamOutput) EventStream

	mu    sync.Mutex
	usage types.TokenUsage // Cumulative usage across calls
}

// NewBedrockClient creates a Bedrock client using the standard AWS
// credential chain.
func NewBedrockClient(ctx context.Context, cfg BedrockConfig) (*BedrockClient, error) {
	if cfg.ModelID == "" {
		return nil, fmt.Errorf("%w: model ID is required", ErrLLMFailure)
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("%w: region is required", ErrLLMFailure)
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: loading AWS config: %v", ErrLLMFailure, err)
	}

	return NewBedrockClientWithAPI(bedrockruntime.NewFromConfig(awsCfg), cfg), nil
}

// NewBedrockClientWithAPI creates a client with a pre-configured API
// implementation. Used for testing with mock clients.
func NewBedrockClientWithAPI(api BedrockAPI, cfg BedrockConfig) *BedrockClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &BedrockClient{
		api:       api,
		modelID:   cfg.ModelID,
		timeout:   timeout,
		maxTokens: maxTokens,
		logger:    logger,
		streamOf: func(out *bedrockruntime.ConverseStreamOutput) EventStream {
			return out.GetStream()
		},
	}
}

// Stream starts a ConverseStream call and returns the stream of text
// deltas. Throttled calls are retried with exponential backoff before the
// stream starts; failures after that end the stream with an error.
func (c *BedrockClient) Stream(ctx context.Context, req Request) (*Stream, error) {
	system, messages, tools := toBedrockMessages(req.Messages)

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	input := &bedrockruntime.ConverseStreamInput{
		ModelId:  aws.String(c.modelID),
		System:   system,
		Messages: messages,
		InferenceConfig: &brtypes.InferenceConfiguration{
			MaxTokens:   aws.Int32(int32(maxTokens)),
			Temperature: aws.Float32(float32(req.Temperature)),
		},
		ToolConfig: tools,
	}

	output, callCtx, cancel, err := c.sendWithRetry(ctx, input)
	if err != nil {
		return nil, err
	}

	s := newStream()
	go func() {
		defer cancel()
		usage, err := consumeStream(callCtx, c.streamOf(output), s)
		c.mu.Lock()
		c.usage.InputTokens += usage.InputTokens
		c.usage.OutputTokens += usage.OutputTokens
		c.mu.Unlock()
		s.close(usage, err)
	}()
	return s, nil
}

// CumulativeUsage returns the total token usage across all calls.
func (c *BedrockClient) CumulativeUsage() types.TokenUsage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usage
}

// sendWithRetry calls ConverseStream with exponential backoff retry for
// rate limit errors. On success the returned context bounds the stream and
// cancel must be called once it is consumed.
func (c *BedrockClient) sendWithRetry(ctx context.Context, input *bedrockruntime.ConverseStreamInput) (*bedrockruntime.ConverseStreamOutput, context.Context, context.CancelFunc, error) {
	var lastErr error

	for attempt := 0; attempt <= maxRetryAttempts; attempt++ {
		if attempt > 0 {
			delay := baseRetryDelay * time.Duration(math.Pow(2, float64(attempt-1)))
			c.logger.WithFields(logrus.Fields{"attempt": attempt, "delay": delay}).Warn("bedrock throttled, retrying")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, nil, nil, fmt.Errorf("%w: context cancelled during retry: %v", ErrLLMFailure, ctx.Err())
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		output, err := c.api.ConverseStream(callCtx, input)
		if err != nil {
			cancel()

			var throttle *brtypes.ThrottlingException
			if errors.As(err, &throttle) {
				lastErr = err
				continue
			}
			return nil, nil, nil, c.classifyError(err)
		}
		return output, callCtx, cancel, nil
	}

	return nil, nil, nil, fmt.Errorf("%w: rate limited after %d retries: %v", ErrLLMFailure, maxRetryAttempts, lastErr)
}

// classifyError wraps Bedrock errors into ErrLLMFailure with descriptive messages.
func (c *BedrockClient) classifyError(err error) error {
	var accessDenied *brtypes.AccessDeniedException
	if errors.As(err, &accessDenied) {
		return fmt.Errorf("%w: credential or permission issue: %v", ErrLLMFailure, err)
	}

	var notFound *brtypes.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return fmt.Errorf("%w: model not found: %s", ErrLLMFailure, c.modelID)
	}

	var validation *brtypes.ValidationException
	if errors.As(err, &validation) {
		return fmt.Errorf("%w: invalid request: %v", ErrLLMFailure, err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: request timed out after %s", ErrLLMFailure, c.timeout)
	}

	return fmt.Errorf("%w: %v", ErrLLMFailure, err)
}
