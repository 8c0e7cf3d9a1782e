package di

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/email-triage/internal/adapters/intake"
	"github.com/mikey/email-triage/internal/config"
	"github.com/mikey/email-triage/internal/core"
	"github.com/mikey/email-triage/internal/logging"
)

// stringList is a repeatable string flag
type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

// CLIFlags contains all command line flags for the CLI application
type CLIFlags struct {
	// Classifier flags
	Provider    string
	Timeout     string
	MaxTokens   int
	Temperature float64
	TopP        float64
	MaxBodySize int

	// OpenRouter flags
	OpenRouterAPIKey    string
	OpenRouterModelName string

	// OpenAI flags
	OpenAIAPIKey    string
	OpenAIModelName string
	OpenAIBaseURL   string

	// Gemini flags
	GeminiAPIKey    string
	GeminiModelName string

	// Bedrock flags
	BedrockRegion  string
	BedrockModelID string

	// Input flags
	InputFile   string
	Attachments []string
	Verbose     bool
	JSONLog     bool
	ConfigFile  string
}

// ParseFlags parses command line flags and returns a CLIFlags struct
func ParseFlags() *CLIFlags {
	return parseFlags(flag.CommandLine, os.Args[1:])
}

func parseFlags(fs *flag.FlagSet, args []string) *CLIFlags {
	flags := &CLIFlags{}
	var attachments stringList

	// Classifier flags
	fs.StringVar(&flags.Provider, "provider", "openrouter", "Classifier provider (openrouter, openai, gemini, bedrock)")
	fs.StringVar(&flags.Timeout, "timeout", "60s", "Deadline for the classifier call")
	fs.IntVar(&flags.MaxTokens, "max-tokens", 1000, "Maximum tokens for the classifier response")
	fs.Float64Var(&flags.Temperature, "temperature", 0.1, "Temperature for generation")
	fs.Float64Var(&flags.TopP, "top-p", 0.9, "Top-p for generation")
	fs.IntVar(&flags.MaxBodySize, "max-body-size", 8192, "Maximum email text size sent to the classifier")

	// OpenRouter flags
	fs.StringVar(&flags.OpenRouterAPIKey, "openrouter-api-key", os.Getenv("OPENROUTER_API_KEY"), "API key for OpenRouter")
	fs.StringVar(&flags.OpenRouterModelName, "openrouter-model", "deepseek/deepseek-r1:free", "OpenRouter model name")

	// OpenAI flags
	fs.StringVar(&flags.OpenAIAPIKey, "openai-api-key", os.Getenv("OPENAI_API_KEY"), "API key for OpenAI")
	fs.StringVar(&flags.OpenAIModelName, "openai-model", "gpt-4o-mini", "OpenAI model name")
	fs.StringVar(&flags.OpenAIBaseURL, "openai-base-url", "", "Base URL of an OpenAI compatible endpoint")

	// Gemini flags
	fs.StringVar(&flags.GeminiAPIKey, "gemini-api-key", os.Getenv("GEMINI_API_KEY"), "API key for Google Gemini")
	fs.StringVar(&flags.GeminiModelName, "gemini-model", "gemini-1.5-flash", "Gemini model name")

	// Bedrock flags
	fs.StringVar(&flags.BedrockRegion, "bedrock-region", "us-east-1", "AWS region for Bedrock")
	fs.StringVar(&flags.BedrockModelID, "bedrock-model", "anthropic.claude-v2", "Bedrock model ID")

	// Input flags
	fs.StringVar(&flags.InputFile, "file", "", "Email file to triage (.eml or .msg)")
	fs.Var(&attachments, "attachment", "Plain text attachment file, may be repeated")
	fs.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	fs.StringVar(&flags.ConfigFile, "config", "", "Path to config file (overrides command line flags)")

	fs.Parse(args)
	flags.Attachments = attachments
	return flags
}

// BuildCLIContainer creates and configures a dependency injection container for the CLI application
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		if flags.ConfigFile != "" {
			cfg, err := config.NewFromFile(flags.ConfigFile)
			if err != nil {
				return nil, err
			}
			logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
			return cfg, nil
		}

		return createConfigFromFlags(flags), nil
	}); err != nil {
		return nil, err
	}

	if err := provideCommon(container); err != nil {
		return nil, err
	}

	// Register triage service without archive or metrics
	if err := container.Provide(func(
		classifier core.Classifier,
		fingerprints core.FingerprintStore,
		tax core.Taxonomy,
		extractor core.TextExtractor,
		cfg *config.Config,
		logger *zap.Logger,
	) (*core.TriageService, error) {
		classifierCfg, err := cfg.GetClassifier()
		if err != nil {
			return nil, err
		}
		return core.NewTriageService(
			classifier,
			fingerprints,
			tax,
			extractor,
			nil, // No archive for CLI
			nil, // No metrics for CLI
			logger,
			core.ServiceOptions{ClassifyTimeout: classifierCfg.Timeout},
		), nil
	}); err != nil {
		return nil, err
	}

	// Register CLI intake
	if err := container.Provide(func(service *core.TriageService, logger *zap.Logger) *intake.CliIntake {
		return intake.NewCliIntake(service, logger, os.Stdout)
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// ReadAttachments loads the plain text attachment files named on the command line
func ReadAttachments(paths []string) ([]string, error) {
	texts := make([]string, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read attachment: %w", err)
		}
		texts = append(texts, string(data))
	}
	return texts, nil
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags(flags *CLIFlags) *config.Config {
	v := config.NewEmptyViper()

	v.Set("server.intake_type", "cli")
	v.Set("archive.enabled", false)

	v.Set("classifier.provider", flags.Provider)
	v.Set("classifier.timeout", flags.Timeout)

	switch flags.Provider {
	case "openrouter":
		v.Set("openrouter.api_key", flags.OpenRouterAPIKey)
		v.Set("openrouter.model_name", flags.OpenRouterModelName)
		setGeneration(v.Set, "openrouter", flags)
	case "openai":
		v.Set("openai.api_key", flags.OpenAIAPIKey)
		v.Set("openai.model_name", flags.OpenAIModelName)
		v.Set("openai.base_url", flags.OpenAIBaseURL)
		setGeneration(v.Set, "openai", flags)
	case "gemini":
		v.Set("gemini.api_key", flags.GeminiAPIKey)
		v.Set("gemini.model_name", flags.GeminiModelName)
		setGeneration(v.Set, "gemini", flags)
	case "bedrock":
		v.Set("bedrock.region", flags.BedrockRegion)
		v.Set("bedrock.model_id", flags.BedrockModelID)
		setGeneration(v.Set, "bedrock", flags)
	}

	return config.NewFromViper(v)
}

func setGeneration(set func(string, interface{}), section string, flags *CLIFlags) {
	set(section+".max_tokens", flags.MaxTokens)
	set(section+".temperature", flags.Temperature)
	set(section+".top_p", flags.TopP)
	set(section+".max_body_size", flags.MaxBodySize)
}
