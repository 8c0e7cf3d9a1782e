package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mikey/email-triage/internal/core"
	"github.com/mikey/email-triage/internal/prompt"
	"github.com/mikey/email-triage/internal/taxonomy"
	"github.com/mikey/email-triage/internal/utils"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/api/v1"

	logger := zap.NewNop()
	return NewOpenAIClient(
		openai.NewClientWithConfig(cfg),
		"openrouter",
		"deepseek/deepseek-r1:free",
		100,
		0.1,
		0.9,
		4096,
		logger,
		prompt.NewBuilder(taxonomy.Default(), utils.NewTextProcessor(logger)),
	)
}

func TestOpenAIClient_Classify(t *testing.T) {
	var got openai.ChatCompletionRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "gen-1",
			"object": "chat.completion",
			"choices": [{
				"index": 0,
				"message": {"role": "assistant", "content": "Fee Payment\nOngoing Fee\nConfidence: 0.87"},
				"finish_reason": "stop"
			}]
		}`))
	})

	raw, err := client.Classify(context.Background(), "Deal: Falcon fee", []string{"Adjustment", "Fee Payment"})
	require.NoError(t, err)
	assert.Equal(t, "Fee Payment\nOngoing Fee\nConfidence: 0.87", raw)

	assert.Equal(t, "deepseek/deepseek-r1:free", got.Model)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, openai.ChatMessageRoleUser, got.Messages[0].Role)
	assert.Contains(t, got.Messages[0].Content, "predefined categories: Adjustment, Fee Payment.")
	assert.Contains(t, got.Messages[0].Content, "Email text: Deal: Falcon fee")
}

func TestOpenAIClient_ClassifyNoChoices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "gen-2", "choices": []}`))
	})

	raw, err := client.Classify(context.Background(), "text", []string{"Adjustment"})
	require.NoError(t, err)
	assert.Empty(t, raw)
}

func TestOpenAIClient_ClassifyNonSuccessStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "Rate limit exceeded", "type": "rate_limit", "code": 429}}`))
	})

	_, err := client.Classify(context.Background(), "text", []string{"Adjustment"})

	var be *core.BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "openrouter", be.Provider)
	assert.Equal(t, http.StatusTooManyRequests, be.StatusCode)
	assert.Equal(t, "Rate limit exceeded", be.Message)
}

func TestOpenAIClient_ClassifyDeadline(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Classify(ctx, "text", []string{"Adjustment"})

	var be *core.BackendError
	require.ErrorAs(t, err, &be)
	assert.Zero(t, be.StatusCode)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
