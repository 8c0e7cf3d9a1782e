package gemini

import (
	"fmt"

	"github.com/mikey/email-triage/internal/config"
	"github.com/mikey/email-triage/internal/prompt"
	"go.uber.org/zap"
)

// Factory creates new instances of GeminiClient
type Factory struct {
	cfg     *config.Config
	logger  *zap.Logger
	prompts *prompt.Builder
}

// NewFactory creates a new factory for GeminiClient instances
func NewFactory(cfg *config.Config, logger *zap.Logger, prompts *prompt.Builder) *Factory {
	return &Factory{
		cfg:     cfg,
		logger:  logger,
		prompts: prompts,
	}
}

// CreateClient creates a new GeminiClient
func (f *Factory) CreateClient() (*GeminiClient, error) {
	geminiCfg := f.cfg.GetGemini()
	if geminiCfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	return NewGeminiClient(
		geminiCfg.APIKey,
		geminiCfg.ModelName,
		geminiCfg.MaxTokens,
		geminiCfg.Temperature,
		geminiCfg.TopP,
		geminiCfg.MaxBodySize,
		f.logger,
		f.prompts,
	)
}
