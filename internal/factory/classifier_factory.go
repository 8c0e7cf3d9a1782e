package factory

import (
	"fmt"

	"github.com/mikey/email-triage/internal/adapters/bedrock"
	"github.com/mikey/email-triage/internal/adapters/gemini"
	"github.com/mikey/email-triage/internal/adapters/openai"
	"github.com/mikey/email-triage/internal/config"
	"github.com/mikey/email-triage/internal/core"
	"github.com/mikey/email-triage/internal/prompt"
	"go.uber.org/zap"
)

// ClassifierFactory creates classifiers
type ClassifierFactory struct {
	cfg     *config.Config
	logger  *zap.Logger
	prompts *prompt.Builder
}

// NewClassifierFactory creates a new classifier factory
func NewClassifierFactory(cfg *config.Config, logger *zap.Logger, prompts *prompt.Builder) *ClassifierFactory {
	return &ClassifierFactory{
		cfg:     cfg,
		logger:  logger,
		prompts: prompts,
	}
}

// CreateClassifier creates a classifier for the configured provider
func (f *ClassifierFactory) CreateClassifier() (core.Classifier, error) {
	classifierCfg, err := f.cfg.GetClassifier()
	if err != nil {
		return nil, err
	}

	switch classifierCfg.Provider {
	case "openrouter", "openai":
		return openai.NewFactory(f.cfg, f.logger, f.prompts).CreateClient(classifierCfg.Provider)
	case "gemini":
		return gemini.NewFactory(f.cfg, f.logger, f.prompts).CreateClient()
	case "bedrock":
		return bedrock.NewFactory(f.cfg, f.logger, f.prompts).CreateClient()
	default:
		return nil, fmt.Errorf("unsupported classifier provider: %s", classifierCfg.Provider)
	}
}
