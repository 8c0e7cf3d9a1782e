package openai

import (
	"context"
	"errors"

	"github.com/mikey/email-triage/internal/core"
	"github.com/mikey/email-triage/internal/prompt"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIClient is an implementation of the Classifier interface for OpenAI
// compatible chat completion endpoints (OpenAI, OpenRouter)
type OpenAIClient struct {
	client      *openai.Client
	provider    string
	modelName   string
	maxTokens   int
	temperature float32
	topP        float32
	maxBodySize int
	logger      *zap.Logger
	prompts     *prompt.Builder
}

// NewOpenAIClient creates a new OpenAI compatible client
func NewOpenAIClient(
	client *openai.Client,
	provider string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	prompts *prompt.Builder,
) *OpenAIClient {
	return &OpenAIClient{
		client:      client,
		provider:    provider,
		modelName:   modelName,
		maxTokens:   maxTokens,
		temperature: temperature,
		topP:        topP,
		maxBodySize: maxBodySize,
		logger:      logger,
		prompts:     prompts,
	}
}

// Classify sends the classification prompt and returns the raw answer
func (c *OpenAIClient) Classify(ctx context.Context, text string, allowedCategories []string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: c.prompts.Build(text, allowedCategories, c.maxBodySize),
			},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		TopP:        c.topP,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", c.backendError(err)
	}

	if len(resp.Choices) == 0 {
		c.logger.Warn("Empty response from classifier",
			zap.String("provider", c.provider),
			zap.String("response_id", resp.ID))
		return "", nil
	}

	c.logger.Debug("Classifier responded",
		zap.String("provider", c.provider),
		zap.String("model", c.modelName),
		zap.String("response_id", resp.ID),
		zap.Int("total_tokens", resp.Usage.TotalTokens))

	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) backendError(err error) *core.BackendError {
	be := &core.BackendError{
		Provider: c.provider,
		Message:  err.Error(),
		Err:      err,
	}

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		be.StatusCode = apiErr.HTTPStatusCode
		be.Message = apiErr.Message
	case errors.As(err, &reqErr):
		be.StatusCode = reqErr.HTTPStatusCode
		if reqErr.Err != nil {
			be.Message = reqErr.Err.Error()
		}
	}

	return be
}
