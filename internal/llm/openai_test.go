// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/petar-djukic/go-editfiles/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sseServer serves a chat completion stream made of the given deltas.
func sseServer(t *testing.T, deltas []string, captured *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, d := range deltas {
			chunk := map[string]any{
				"id":      "c1",
				"object":  "chat.completion.chunk",
				"choices": []any{map[string]any{"index": 0, "delta": map[string]any{"content": d}}},
			}
			data, _ := json.Marshal(chunk)
			fmt.Fprintf(w, "data: %s\n\n", data)
		}
		fmt.Fprint(w, `data: {"id":"c1","object":"chat.completion.chunk","choices":[],"usage":{"prompt_tokens":12,"completion_tokens":3,"total_tokens":15}}`+"\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func TestOpenAIClient_Stream(t *testing.T) {
	var body map[string]any
	srv := sseServer(t, []string{"a.go\n", "<<<<<<< WRITE\n", "x\n>>>>>>> WRITE\n"}, &body)
	defer srv.Close()

	client, err := NewOpenAIClient(OpenAIConfig{Model: "gpt-test", APIKey: "k", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	s, err := client.Stream(context.Background(), Request{
		Messages: []types.Message{{Role: types.RoleUser, Parts: []types.Part{types.TextPart("go")}}},
	})
	require.NoError(t, err)

	assert.Equal(t, "a.go\n<<<<<<< WRITE\nx\n>>>>>>> WRITE\n", collect(s))
	require.NoError(t, s.Err())
	assert.Equal(t, types.TokenUsage{InputTokens: 12, OutputTokens: 3}, s.Usage())

	assert.Equal(t, "gpt-test", body["model"])
	assert.Equal(t, true, body["stream"])
	temp, ok := body["temperature"].(float64)
	require.True(t, ok, "temperature must be sent")
	assert.InDelta(t, 0, temp, 1e-6)
}

func TestOpenAIClient_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(OpenAIConfig{Model: "gpt-test", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	_, err = client.Stream(context.Background(), Request{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLLMFailure)
	assert.Contains(t, err.Error(), "credential")
}

func TestNewOpenAIClient_RequiresModel(t *testing.T) {
	_, err := NewOpenAIClient(OpenAIConfig{})
	assert.ErrorIs(t, err, ErrLLMFailure)
}
