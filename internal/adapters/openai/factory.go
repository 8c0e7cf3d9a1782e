package openai

import (
	"fmt"

	"github.com/mikey/email-triage/internal/config"
	"github.com/mikey/email-triage/internal/prompt"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Factory creates new instances of OpenAIClient for the "openai" and
// "openrouter" config sections
type Factory struct {
	cfg     *config.Config
	logger  *zap.Logger
	prompts *prompt.Builder
}

// NewFactory creates a new factory for OpenAIClient instances
func NewFactory(cfg *config.Config, logger *zap.Logger, prompts *prompt.Builder) *Factory {
	return &Factory{
		cfg:     cfg,
		logger:  logger,
		prompts: prompts,
	}
}

// CreateClient creates a new OpenAIClient from the given config section
func (f *Factory) CreateClient(section string) (*OpenAIClient, error) {
	chatCfg := f.cfg.GetChat(section)
	if chatCfg.APIKey == "" {
		return nil, fmt.Errorf("%s API key is required", section)
	}

	clientCfg := openai.DefaultConfig(chatCfg.APIKey)
	if chatCfg.BaseURL != "" {
		clientCfg.BaseURL = chatCfg.BaseURL
	}

	f.logger.Info("Using OpenAI compatible classifier",
		zap.String("provider", section),
		zap.String("base_url", clientCfg.BaseURL),
		zap.String("model", chatCfg.ModelName))

	return NewOpenAIClient(
		openai.NewClientWithConfig(clientCfg),
		section,
		chatCfg.ModelName,
		chatCfg.MaxTokens,
		chatCfg.Temperature,
		chatCfg.TopP,
		chatCfg.MaxBodySize,
		f.logger,
		f.prompts,
	), nil
}
