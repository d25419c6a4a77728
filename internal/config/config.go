package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	PromptsFile string  `env:"GEN_PROMPTS_FILE"`
	Provider    string  `env:"GEN_PROVIDER" envDefault:"cohere"`
	Model       string  `env:"GEN_MODEL" envDefault:"command-a-03-2025"`
	MaxTokens   int     `env:"GEN_MAX_TOKENS" envDefault:"4000"`
	Temperature float64 `env:"GEN_TEMPERATURE" envDefault:"0.7"`
	OutputDir   string  `env:"GEN_OUTPUT_DIR" envDefault:"results"`
	Concurrency int     `env:"GEN_CONCURRENCY" envDefault:"20"`

	// Routing selects the backend table: "native" or "openrouter".
	Routing       string `env:"GEN_ROUTING" envDefault:"native"`
	GoogleBackend string `env:"GEN_GOOGLE_BACKEND"`
	FormalArticle bool   `env:"GEN_FORMAL_ARTICLE" envDefault:"false"`

	LedgerPath string `env:"GEN_LEDGER_PATH"`
	ReportPath string `env:"GEN_REPORT_PATH"`

	LogLevel  string `env:"GEN_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"GEN_LOG_FORMAT" envDefault:"console"`

	// Zero means no client-side timeout.
	HTTPTimeout time.Duration `env:"GEN_HTTP_TIMEOUT" envDefault:"0s"`

	CohereAPIKey      string `env:"COHERE_API_KEY"`
	CohereBaseURL     string `env:"COHERE_BASE_URL" envDefault:"https://api.cohere.com"`
	MistralAPIKey     string `env:"MISTRAL_API_KEY"`
	MistralBaseURL    string `env:"MISTRAL_BASE_URL" envDefault:"https://api.mistral.ai/v1"`
	OpenRouterAPIKey  string `env:"OPENROUTER_API_KEY"`
	OpenRouterBaseURL string `env:"OPENROUTER_BASE_URL" envDefault:"https://openrouter.ai/api/v1"`
	GeminiAPIKey      string `env:"GEMINI_API_KEY"`
	OllamaHost        string `env:"OLLAMA_HOST" envDefault:"http://localhost:11434"`
}

// Validate checks run settings. The provider name is deliberately not checked
// here; the LLM client rejects unknown providers when it is constructed.
func (c *Config) Validate() error {
	if c.PromptsFile == "" {
		return fmt.Errorf("prompts file is required (--prompts or GEN_PROMPTS_FILE)")
	}

	if c.Model == "" {
		return fmt.Errorf("model must not be empty")
	}

	if c.MaxTokens < 1 {
		return fmt.Errorf("max tokens must be at least 1")
	}
	if c.MaxTokens > math.MaxInt32 {
		return fmt.Errorf("max tokens must not exceed %d", math.MaxInt32)
	}

	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}

	if c.OutputDir == "" {
		return fmt.Errorf("output directory must not be empty")
	}

	if c.Concurrency < 1 {
		return fmt.Errorf("GEN_CONCURRENCY must be at least 1")
	}

	switch strings.ToLower(c.Routing) {
	case "native", "openrouter":
	default:
		return fmt.Errorf("GEN_ROUTING must be native or openrouter, got %q", c.Routing)
	}

	switch strings.ToLower(c.LogFormat) {
	case "console", "json":
	default:
		return fmt.Errorf("GEN_LOG_FORMAT must be console or json, got %q", c.LogFormat)
	}

	if c.HTTPTimeout < 0 {
		return fmt.Errorf("GEN_HTTP_TIMEOUT cannot be negative")
	}

	return nil
}

// Load reads a .env file if present, then the process environment.
// Validation is left to the caller so command-line flags can be applied first.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
