package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// LLM configuration (natural language query parsing)
	LLM LLMConfig

	// Catalog configuration
	Catalog CatalogConfig

	// Resolver configuration
	Resolver ResolverConfig

	// HTTP configuration
	HTTP HTTPConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL string
}

// LLMConfig holds the language-model provider configuration
type LLMConfig struct {
	Provider       string // openai or bedrock
	APIKey         string
	BaseURL        string
	Model          string
	MaxTokens      int
	AWSRegion      string
	BedrockModelID string
}

// CatalogConfig holds metric/company catalog configuration
type CatalogConfig struct {
	TTLSeconds int // catalog cache lifetime (default: 600)
}

// ResolverConfig holds query resolution configuration
type ResolverConfig struct {
	MaxDepth       int // maximum nested formula depth (default: 3)
	TimeoutSeconds int
	Timezone       string // IANA zone used for relative-time resolution
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Port               int
	CORSAllowedOrigins string
	TimeoutSeconds     int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		LLM: LLMConfig{
			Provider:       getEnvString("LLM_PROVIDER", "openai"),
			APIKey:         os.Getenv("OPENAI_API_KEY"),
			BaseURL:        os.Getenv("OPENAI_BASE_URL"),
			Model:          getEnvString("OPENAI_MODEL", "gpt-4o-mini"),
			MaxTokens:      getEnvInt("LLM_MAX_TOKENS", 1024),
			AWSRegion:      getEnvString("AWS_REGION", "us-east-1"),
			BedrockModelID: getEnvString("BEDROCK_MODEL_ID", "anthropic.claude-3-5-sonnet-20241022-v2:0"),
		},
		Catalog: CatalogConfig{
			TTLSeconds: getEnvInt("CATALOG_TTL_SECONDS", 600),
		},
		Resolver: ResolverConfig{
			MaxDepth:       getEnvInt("RESOLVER_MAX_DEPTH", 3),
			TimeoutSeconds: getEnvInt("RESOLVER_TIMEOUT_SECONDS", 30),
			Timezone:       getEnvString("RESOLVER_TIMEZONE", "Asia/Singapore"),
		},
		HTTP: HTTPConfig{
			Port:               getEnvInt("PORT", 8080),
			CORSAllowedOrigins: getEnvString("CORS_ALLOWED_ORIGINS", "*"),
			TimeoutSeconds:     getEnvInt("HTTP_TIMEOUT_SECONDS", 60),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.LLM.Provider != "openai" && c.LLM.Provider != "bedrock" {
		return fmt.Errorf("LLM_PROVIDER must be openai or bedrock, got %q", c.LLM.Provider)
	}
	if c.Catalog.TTLSeconds <= 0 {
		return fmt.Errorf("CATALOG_TTL_SECONDS must be positive, got %d", c.Catalog.TTLSeconds)
	}
	if c.Resolver.MaxDepth <= 0 {
		return fmt.Errorf("RESOLVER_MAX_DEPTH must be positive, got %d", c.Resolver.MaxDepth)
	}
	if c.Resolver.TimeoutSeconds <= 0 {
		return fmt.Errorf("RESOLVER_TIMEOUT_SECONDS must be positive, got %d", c.Resolver.TimeoutSeconds)
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	return nil
}

// HasDatabase returns true if database configuration is available
func (c *Config) HasDatabase() bool {
	return c.Database.URL != ""
}

// HasLLM returns true if a language-model provider is usable
func (c *Config) HasLLM() bool {
	if c.LLM.Provider == "bedrock" {
		return true
	}
	return c.LLM.APIKey != ""
}

func getEnvString(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

// NewTestConfig creates a Config with default values for testing
func NewTestConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			URL: "",
		},
		LLM: LLMConfig{
			Provider:       "openai",
			APIKey:         "",
			Model:          "gpt-4o-mini",
			MaxTokens:      1024,
			AWSRegion:      "us-east-1",
			BedrockModelID: "anthropic.claude-3-5-sonnet-20241022-v2:0",
		},
		Catalog: CatalogConfig{
			TTLSeconds: 600,
		},
		Resolver: ResolverConfig{
			MaxDepth:       3,
			TimeoutSeconds: 30,
			Timezone:       "Asia/Singapore",
		},
		HTTP: HTTPConfig{
			Port:               8080,
			CORSAllowedOrigins: "*",
			TimeoutSeconds:     60,
		},
	}
}
