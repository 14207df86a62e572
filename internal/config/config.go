package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the PartScout server.
type Config struct {
	Server     ServerConfig
	Store      StoreConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	AI         AIConfig
	Enrichment EnrichmentConfig
	Pipeline   PipelineConfig
	Operator   OperatorConfig
}

type ServerConfig struct {
	Port           int    `envconfig:"PARTSCOUT_PORT" default:"8080"`
	Env            string `envconfig:"PARTSCOUT_ENV" default:"development"`
	LogLevel       string `envconfig:"PARTSCOUT_LOG_LEVEL" default:"info"`
	MaxUploadBytes int64  `envconfig:"PARTSCOUT_MAX_UPLOAD_BYTES" default:"10485760"`
	RateLimitRPM   int    `envconfig:"PARTSCOUT_RATE_LIMIT_RPM" default:"60"`
}

// StoreConfig selects the job store backend.
type StoreConfig struct {
	Backend string `envconfig:"STORE_BACKEND" default:"file"`
	Dir     string `envconfig:"STORE_DIR" default:"data/jobs"`
}

type DatabaseConfig struct {
	URL             string        `envconfig:"DATABASE_URL"`
	MaxOpenConns    int           `envconfig:"DATABASE_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"DATABASE_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"DATABASE_CONN_MAX_LIFETIME" default:"5m"`
}

// RedisConfig is optional. Without a URL the status cache and rate limiter are disabled.
type RedisConfig struct {
	URL string `envconfig:"REDIS_URL"`
}

type AIConfig struct {
	Provider         string        `envconfig:"AI_PROVIDER" default:"gemini"`
	InferenceTimeout time.Duration `envconfig:"AI_INFERENCE_TIMEOUT" default:"60s"`
	Gemini           GeminiConfig
	OpenAI           OpenAIConfig
	Anthropic        AnthropicConfig
	Ollama           OllamaConfig
	VLLM             VLLMConfig
}

type GeminiConfig struct {
	APIKey string `envconfig:"GEMINI_API_KEY"`
	Model  string `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash"`
}

type OpenAIConfig struct {
	APIKey  string `envconfig:"OPENAI_API_KEY"`
	Model   string `envconfig:"OPENAI_MODEL" default:"gpt-4o"`
	BaseURL string `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com"`
}

type AnthropicConfig struct {
	APIKey  string `envconfig:"ANTHROPIC_API_KEY"`
	Model   string `envconfig:"ANTHROPIC_MODEL" default:"claude-sonnet-4-5-20250929"`
	BaseURL string `envconfig:"ANTHROPIC_BASE_URL" default:"https://api.anthropic.com"`
}

type OllamaConfig struct {
	BaseURL string `envconfig:"OLLAMA_BASE_URL" default:"http://localhost:11434"`
	Model   string `envconfig:"OLLAMA_MODEL" default:"llava"`
}

type VLLMConfig struct {
	BaseURL string `envconfig:"VLLM_BASE_URL" default:"http://localhost:8000"`
	Model   string `envconfig:"VLLM_MODEL"`
}

// EnrichmentConfig bounds supplier page scraping.
type EnrichmentConfig struct {
	Concurrency int           `envconfig:"ENRICH_CONCURRENCY" default:"4"`
	Timeout     time.Duration `envconfig:"ENRICH_TIMEOUT" default:"10s"`
	UserAgent   string        `envconfig:"ENRICH_USER_AGENT"`
}

type PipelineConfig struct {
	MaxJobDuration time.Duration `envconfig:"PIPELINE_MAX_JOB_DURATION" default:"3m"`
	MinConfidence  int           `envconfig:"PIPELINE_MIN_CONFIDENCE" default:"20"`
	WriteTimeout   time.Duration `envconfig:"PIPELINE_WRITE_TIMEOUT" default:"10s"`
}

// OperatorConfig holds the bcrypt hash of the token that authorises job deletion.
// An empty hash disables DELETE.
type OperatorConfig struct {
	TokenHash string `envconfig:"OPERATOR_TOKEN_HASH"`
}

var validProviders = map[string]bool{
	"gemini":    true,
	"openai":    true,
	"anthropic": true,
	"ollama":    true,
	"vllm":      true,
	"mock":      true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.Store.Backend = strings.ToLower(strings.TrimSpace(cfg.Store.Backend))
	cfg.AI.Provider = strings.ToLower(strings.TrimSpace(cfg.AI.Provider))

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case "file":
		if c.Store.Dir == "" {
			return fmt.Errorf("STORE_DIR is required when STORE_BACKEND is file")
		}
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND is postgres")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be one of file, postgres; got %q", c.Store.Backend)
	}

	if c.Redis.URL != "" && !strings.HasPrefix(c.Redis.URL, "redis://") && !strings.HasPrefix(c.Redis.URL, "rediss://") {
		return fmt.Errorf("REDIS_URL must start with redis:// or rediss://, got %q", c.Redis.URL)
	}

	if c.AI.Provider == "" {
		return fmt.Errorf("AI_PROVIDER is required")
	}
	if !validProviders[c.AI.Provider] {
		return fmt.Errorf("AI_PROVIDER must be one of gemini, openai, anthropic, ollama, vllm, mock; got %q", c.AI.Provider)
	}
	if c.AI.Provider == "gemini" && c.AI.Gemini.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required when AI_PROVIDER is gemini")
	}
	if c.AI.Provider == "openai" && c.AI.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when AI_PROVIDER is openai")
	}
	if c.AI.Provider == "anthropic" && c.AI.Anthropic.APIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required when AI_PROVIDER is anthropic")
	}
	if c.AI.Provider == "vllm" && c.AI.VLLM.Model == "" {
		return fmt.Errorf("VLLM_MODEL is required when AI_PROVIDER is vllm")
	}
	if c.AI.InferenceTimeout <= 0 {
		return fmt.Errorf("AI_INFERENCE_TIMEOUT must be positive, got %s", c.AI.InferenceTimeout)
	}

	if c.Enrichment.Concurrency < 1 {
		return fmt.Errorf("ENRICH_CONCURRENCY must be at least 1, got %d", c.Enrichment.Concurrency)
	}
	if c.Enrichment.Timeout <= 0 {
		return fmt.Errorf("ENRICH_TIMEOUT must be positive, got %s", c.Enrichment.Timeout)
	}

	if c.Pipeline.MaxJobDuration < c.AI.InferenceTimeout {
		return fmt.Errorf("PIPELINE_MAX_JOB_DURATION (%s) must be at least AI_INFERENCE_TIMEOUT (%s)",
			c.Pipeline.MaxJobDuration, c.AI.InferenceTimeout)
	}
	if c.Pipeline.MinConfidence < 0 || c.Pipeline.MinConfidence > 100 {
		return fmt.Errorf("PIPELINE_MIN_CONFIDENCE must be between 0 and 100, got %d", c.Pipeline.MinConfidence)
	}
	return nil
}
