package config

import (
	"strings"
	"testing"
	"time"
)

func setMinimalEnv(t *testing.T) {
	t.Helper()
	t.Setenv("AUTH_PROVIDER", "dev")
	t.Setenv("REASONING_PROVIDER", "mock")
}

func TestParseDefaults(t *testing.T) {
	setMinimalEnv(t)

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.DBDriver != DriverSQLite {
		t.Errorf("DBDriver = %q, want sqlite", cfg.DBDriver)
	}
	if cfg.RateLimit.GeneralRequests != 100 || cfg.RateLimit.AIRequests != 10 {
		t.Errorf("rate limits = %d/%d, want 100/10", cfg.RateLimit.GeneralRequests, cfg.RateLimit.AIRequests)
	}
	if cfg.RateLimit.Window != 15*time.Minute {
		t.Errorf("Window = %v, want 15m", cfg.RateLimit.Window)
	}
	if cfg.Tutor.MaxContextTurns != 20 || cfg.Tutor.AppendRetries != 3 || cfg.Tutor.StrictSessions {
		t.Errorf("unexpected tutor config %+v", cfg.Tutor)
	}
	if cfg.Reasoning.Timeout != 30*time.Second {
		t.Errorf("Reasoning.Timeout = %v, want 30s", cfg.Reasoning.Timeout)
	}
	if cfg.OpenAI.Model != "gpt-4o" {
		t.Errorf("OpenAI.Model = %q, want gpt-4o", cfg.OpenAI.Model)
	}
	if !cfg.ConversationLog.Enabled || cfg.ConversationLog.QueueSize != 1000 {
		t.Errorf("unexpected conversation log config %+v", cfg.ConversationLog)
	}
	if cfg.TrustProxy {
		t.Error("TrustProxy should default to false")
	}
}

func TestParseOverrides(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv("TUTOR_STRICT_SESSIONS", "true")
	t.Setenv("TUTOR_MAX_CONTEXT_TURNS", "6")
	t.Setenv("RATE_LIMIT_WINDOW", "1m")
	t.Setenv("CONVERSATION_LOG_ENABLED", "false")
	t.Setenv("TRUST_PROXY", "true")

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !cfg.Tutor.StrictSessions || cfg.Tutor.MaxContextTurns != 6 {
		t.Errorf("unexpected tutor config %+v", cfg.Tutor)
	}
	if cfg.RateLimit.Window != time.Minute {
		t.Errorf("Window = %v, want 1m", cfg.RateLimit.Window)
	}
	if cfg.ConversationLog.Enabled {
		t.Error("ConversationLog.Enabled = true, want false")
	}
	if !cfg.TrustProxy {
		t.Error("TrustProxy = false, want true")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Port:      "8080",
			DBDriver:  DriverSQLite,
			DBPath:    "x.db",
			Auth:      AuthConfig{Provider: AuthDev},
			Reasoning: ReasoningConfig{Provider: ReasoningMock, Timeout: time.Second},
			RateLimit: RateLimitConfig{GeneralRequests: 100, AIRequests: 10, Window: time.Minute},
			Tutor:     TutorConfig{MaxContextTurns: 20, AppendRetries: 3},
			ConversationLog: ConversationLogConfig{
				Dir: "logs", GlobalPath: "logs/all.ndjson", QueueSize: 10,
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"postgres without url", func(c *Config) { c.DBDriver = DriverPostgres }, "DATABASE_URL"},
		{"unknown driver", func(c *Config) { c.DBDriver = "mysql" }, "DB_DRIVER"},
		{"supabase without key", func(c *Config) {
			c.Auth.Provider = AuthSupabase
			c.Supabase.URL = "https://x.supabase.co"
		}, "SUPABASE_ANON_KEY"},
		{"openai without key", func(c *Config) { c.Reasoning.Provider = ReasoningOpenAI }, "OPENAI_API_KEY"},
		{"grpc without addr", func(c *Config) { c.Reasoning.Provider = ReasoningGRPC }, "REASONING_GRPC_ADDR"},
		{"zero retries", func(c *Config) { c.Tutor.AppendRetries = 0 }, "TUTOR_APPEND_RETRIES"},
		{"zero queue", func(c *Config) { c.ConversationLog.QueueSize = 0 }, "QUEUE_SIZE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
