package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/mikey/email-triage/internal/core"
	"github.com/mikey/email-triage/internal/prompt"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const providerName = "gemini"

// GeminiClient is an implementation of the Classifier interface using Google Gemini
type GeminiClient struct {
	client      *genai.Client
	model       *genai.GenerativeModel
	modelName   string
	maxBodySize int
	logger      *zap.Logger
	prompts     *prompt.Builder
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	prompts *prompt.Builder,
) (*GeminiClient, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)
	model.SetTopP(topP)
	model.SetMaxOutputTokens(int32(maxTokens))

	return &GeminiClient{
		client:      client,
		model:       model,
		modelName:   modelName,
		maxBodySize: maxBodySize,
		logger:      logger,
		prompts:     prompts,
	}, nil
}

// Close closes the Gemini client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Classify sends the classification prompt and returns the raw answer
func (c *GeminiClient) Classify(ctx context.Context, text string, allowedCategories []string) (string, error) {
	resp, err := c.model.GenerateContent(ctx, genai.Text(c.prompts.Build(text, allowedCategories, c.maxBodySize)))
	if err != nil {
		return "", backendError(err)
	}

	answer := responseText(resp)
	if answer == "" {
		c.logger.Warn("Empty response from classifier", zap.String("provider", providerName))
	}
	return answer, nil
}

// responseText joins the text parts of the first candidate
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return sb.String()
}

func backendError(err error) *core.BackendError {
	be := &core.BackendError{
		Provider: providerName,
		Message:  err.Error(),
		Err:      err,
	}

	var httpErr interface{ HTTPCode() int }
	if errors.As(err, &httpErr) && httpErr.HTTPCode() > 0 {
		be.StatusCode = httpErr.HTTPCode()
	}

	return be
}
