// Package config provides application configuration.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Auth providers.
const (
	AuthSupabase = "supabase"
	AuthDev      = "dev"
)

// Reasoning providers.
const (
	ReasoningOpenAI = "openai"
	ReasoningGRPC   = "grpc"
	ReasoningMock   = "mock"
)

// Config holds all application configuration.
type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	FrontendURL string `env:"FRONTEND_URL"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// TrustProxy makes X-Forwarded-For and X-Real-IP authoritative for the
	// client address. Enable only behind a proxy that overwrites them.
	TrustProxy bool `env:"TRUST_PROXY" envDefault:"false"`

	DBDriver    string `env:"DB_DRIVER" envDefault:"sqlite"`
	DBPath      string `env:"DB_PATH" envDefault:"./data/learnhub.db"`
	DatabaseURL string `env:"DATABASE_URL"`

	HealthTimeout time.Duration `env:"HEALTH_TIMEOUT" envDefault:"2s"`

	Auth      AuthConfig      `envPrefix:"AUTH_"`
	Supabase  SupabaseConfig  `envPrefix:"SUPABASE_"`
	Reasoning ReasoningConfig `envPrefix:"REASONING_"`
	OpenAI    OpenAIConfig    `envPrefix:"OPENAI_"`
	RateLimit RateLimitConfig `envPrefix:"RATE_LIMIT_"`
	Tutor     TutorConfig     `envPrefix:"TUTOR_"`

	ConversationLog ConversationLogConfig `envPrefix:"CONVERSATION_LOG_"`
}

// AuthConfig selects the token verifier.
type AuthConfig struct {
	Provider string        `env:"PROVIDER" envDefault:"supabase"`
	Timeout  time.Duration `env:"TIMEOUT" envDefault:"5s"`
}

// SupabaseConfig points at the Supabase auth API.
type SupabaseConfig struct {
	URL     string `env:"URL"`
	AnonKey string `env:"ANON_KEY"`
}

// ReasoningConfig selects the reasoning backend.
type ReasoningConfig struct {
	Provider string        `env:"PROVIDER" envDefault:"openai"`
	GRPCAddr string        `env:"GRPC_ADDR"`
	Timeout  time.Duration `env:"TIMEOUT" envDefault:"30s"`
}

// OpenAIConfig configures the OpenAI-compatible HTTP client.
type OpenAIConfig struct {
	APIKey  string `env:"API_KEY"`
	BaseURL string `env:"BASE_URL" envDefault:"https://api.openai.com/v1"`
	Model   string `env:"MODEL" envDefault:"gpt-4o"`
}

// RateLimitConfig holds the two limiter tiers.
type RateLimitConfig struct {
	GeneralRequests int           `env:"GENERAL_REQUESTS" envDefault:"100"`
	AIRequests      int           `env:"AI_REQUESTS" envDefault:"10"`
	Window          time.Duration `env:"WINDOW" envDefault:"15m"`
}

// TutorConfig tunes the session manager.
type TutorConfig struct {
	MaxContextTurns int  `env:"MAX_CONTEXT_TURNS" envDefault:"20"`
	StrictSessions  bool `env:"STRICT_SESSIONS" envDefault:"false"`
	AppendRetries   int  `env:"APPEND_RETRIES" envDefault:"3"`
}

// ConversationLogConfig controls JSON conversation logging.
type ConversationLogConfig struct {
	Enabled       bool   `env:"ENABLED" envDefault:"true"`
	Dir           string `env:"DIR" envDefault:"./data/logs/conversations"`
	GlobalEnabled bool   `env:"GLOBAL_ENABLED" envDefault:"false"`
	GlobalPath    string `env:"GLOBAL_PATH" envDefault:"./data/logs/conversations/all.ndjson"`
	QueueSize     int    `env:"QUEUE_SIZE" envDefault:"1000"`
}

// Load reads configuration from environment variables, after loading an
// optional .env file from the working directory.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return Parse()
}

// Parse reads configuration from the current environment only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}

	switch c.DBDriver {
	case DriverSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when DB_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}

	switch c.Auth.Provider {
	case AuthSupabase:
		if c.Supabase.URL == "" || c.Supabase.AnonKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_ANON_KEY are required when AUTH_PROVIDER=supabase")
		}
	case AuthDev:
	default:
		return fmt.Errorf("unknown AUTH_PROVIDER %q", c.Auth.Provider)
	}

	switch c.Reasoning.Provider {
	case ReasoningOpenAI:
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when REASONING_PROVIDER=openai")
		}
	case ReasoningGRPC:
		if c.Reasoning.GRPCAddr == "" {
			return fmt.Errorf("REASONING_GRPC_ADDR is required when REASONING_PROVIDER=grpc")
		}
	case ReasoningMock:
	default:
		return fmt.Errorf("unknown REASONING_PROVIDER %q", c.Reasoning.Provider)
	}

	if c.Reasoning.Timeout <= 0 {
		return fmt.Errorf("REASONING_TIMEOUT must be > 0")
	}
	if c.RateLimit.GeneralRequests <= 0 || c.RateLimit.AIRequests <= 0 {
		return fmt.Errorf("RATE_LIMIT_*_REQUESTS must be > 0")
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be > 0")
	}
	if c.Tutor.MaxContextTurns <= 0 {
		return fmt.Errorf("TUTOR_MAX_CONTEXT_TURNS must be > 0")
	}
	if c.Tutor.AppendRetries <= 0 {
		return fmt.Errorf("TUTOR_APPEND_RETRIES must be > 0")
	}
	if c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.GlobalPath == "" {
		return fmt.Errorf("CONVERSATION_LOG_GLOBAL_PATH cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}
