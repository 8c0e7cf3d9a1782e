package config

import (
	"fmt"
	"time"
)

// ClassifierConfig selects the classification backend
type ClassifierConfig struct {
	Provider string
	Timeout  time.Duration
}

// ChatConfig represents the configuration for an OpenAI compatible endpoint
type ChatConfig struct {
	APIKey      string
	BaseURL     string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// ArchiveConfig represents the configuration of the result archive
type ArchiveConfig struct {
	Enabled          bool
	Type             string
	TTL              time.Duration
	CleanupFrequency time.Duration
	SQLitePath       string
	MySQLDSN         string
}

// TaxonomyConfig holds taxonomy overrides; empty means built-in
type TaxonomyConfig struct {
	RequestTypes    []string
	SubRequestTypes map[string][]string
}

// subRequestTypeEntry is one item of taxonomy.sub_request_types. A list is
// used instead of a map because viper lowercases map keys.
type subRequestTypeEntry struct {
	RequestType string   `mapstructure:"request_type"`
	SubTypes    []string `mapstructure:"sub_types"`
}

// HeaderConfig names the headers added to relayed messages
type HeaderConfig struct {
	Primary    string
	Sub        string
	Confidence string
	Duplicate  string
}

// RelayConfig is the next hop for messages accepted over SMTP
type RelayConfig struct {
	Enabled bool
	Address string
	Port    int
}

// GetClassifier returns the classifier configuration
func (c *Config) GetClassifier() (ClassifierConfig, error) {
	timeout, err := c.GetDuration("classifier.timeout")
	if err != nil {
		return ClassifierConfig{}, fmt.Errorf("invalid classifier timeout: %w", err)
	}
	return ClassifierConfig{
		Provider: c.GetString("classifier.provider"),
		Timeout:  timeout,
	}, nil
}

// GetChat returns the configuration of an OpenAI compatible section,
// "openai" or "openrouter"
func (c *Config) GetChat(section string) ChatConfig {
	return ChatConfig{
		APIKey:      c.GetString(section + ".api_key"),
		BaseURL:     c.GetString(section + ".base_url"),
		ModelName:   c.GetString(section + ".model_name"),
		MaxTokens:   c.GetInt(section + ".max_tokens"),
		Temperature: float32(c.GetFloat64(section + ".temperature")),
		TopP:        float32(c.GetFloat64(section + ".top_p")),
		MaxBodySize: c.GetInt(section + ".max_body_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
		MaxBodySize: c.GetInt("gemini.max_body_size"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
		MaxBodySize: c.GetInt("bedrock.max_body_size"),
	}
}

// GetArchive returns the archive configuration
func (c *Config) GetArchive() (ArchiveConfig, error) {
	ttl, err := c.GetDuration("archive.ttl")
	if err != nil {
		return ArchiveConfig{}, fmt.Errorf("invalid archive ttl: %w", err)
	}
	cleanup, err := c.GetDuration("archive.cleanup_frequency")
	if err != nil {
		return ArchiveConfig{}, fmt.Errorf("invalid archive cleanup frequency: %w", err)
	}
	return ArchiveConfig{
		Enabled:          c.GetBool("archive.enabled"),
		Type:             c.GetString("archive.type"),
		TTL:              ttl,
		CleanupFrequency: cleanup,
		SQLitePath:       c.GetString("archive.sqlite_path"),
		MySQLDSN:         c.GetString("archive.mysql_dsn"),
	}, nil
}

// GetTaxonomy returns the taxonomy overrides
func (c *Config) GetTaxonomy() (TaxonomyConfig, error) {
	var entries []subRequestTypeEntry
	if err := c.v.UnmarshalKey("taxonomy.sub_request_types", &entries); err != nil {
		return TaxonomyConfig{}, fmt.Errorf("invalid taxonomy sub request types: %w", err)
	}

	subs := make(map[string][]string, len(entries))
	for _, e := range entries {
		subs[e.RequestType] = append(subs[e.RequestType], e.SubTypes...)
	}

	return TaxonomyConfig{
		RequestTypes:    c.GetStringSlice("taxonomy.request_types"),
		SubRequestTypes: subs,
	}, nil
}

// GetHeaders returns the names of the triage headers
func (c *Config) GetHeaders() HeaderConfig {
	return HeaderConfig{
		Primary:    c.GetString("server.headers.primary"),
		Sub:        c.GetString("server.headers.sub"),
		Confidence: c.GetString("server.headers.confidence"),
		Duplicate:  c.GetString("server.headers.duplicate"),
	}
}

// GetRelay returns the relay configuration
func (c *Config) GetRelay() RelayConfig {
	return RelayConfig{
		Enabled: c.GetBool("server.relay.enabled"),
		Address: c.GetString("server.relay.address"),
		Port:    c.GetInt("server.relay.port"),
	}
}
