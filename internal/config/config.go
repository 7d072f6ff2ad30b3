package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration for incidentd.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
	LLM        LLMConfig        `koanf:"llm"`
	Runbooks   RunbooksConfig   `koanf:"runbooks"`
	Kubernetes KubernetesConfig `koanf:"kubernetes"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`

	// CORSOrigins is a comma-separated list of allowed origins.
	// Restrict in production.
	CORSOrigins string `koanf:"cors_origins"`

	// RateLimit is requests per second per client; Burst is the
	// allowed burst above it.
	RateLimit float64 `koanf:"rate_limit"`
	Burst     int     `koanf:"burst"`

	// ShutdownTimeout bounds graceful shutdown of in-flight requests.
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// Origins returns the parsed CORS origin list.
func (s ServerConfig) Origins() []string {
	parts := strings.Split(s.CORSOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig holds OTEL exporter settings.
type TelemetryConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	Insecure    bool    `koanf:"insecure"`
	ServiceName string  `koanf:"service_name"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// LLMConfig holds reasoning engine settings. An unset APIKey enables
// mock mode.
type LLMConfig struct {
	APIKey          Secret  `koanf:"api_key"`
	Model           string  `koanf:"model"`
	Temperature     float64 `koanf:"temperature"`
	MaxOutputTokens int     `koanf:"max_output_tokens"`
}

// RunbooksConfig holds document store settings.
type RunbooksConfig struct {
	Dir  string `koanf:"dir"`
	TopK int    `koanf:"top_k"`
}

// KubernetesConfig holds cluster collector settings.
type KubernetesConfig struct {
	Enabled      bool  `koanf:"enabled"`
	LogTailLines int64 `koanf:"log_tail_lines"`
	EventLimit   int64 `koanf:"event_limit"`
}

// Default returns the configuration defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			CORSOrigins:     "*",
			RateLimit:       1,
			Burst:           10,
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			Endpoint:    "localhost:4317",
			Insecure:    true,
			ServiceName: "incidentd",
			SampleRate:  1.0,
		},
		LLM: LLMConfig{
			Model:           "gemini-2.0-flash",
			Temperature:     0.0,
			MaxOutputTokens: 4096,
		},
		Runbooks: RunbooksConfig{
			Dir:  "./runbooks",
			TopK: 3,
		},
		Kubernetes: KubernetesConfig{
			Enabled:      true,
			LogTailLines: 200,
			EventLimit:   50,
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Server.RateLimit <= 0 {
		return fmt.Errorf("rate limit must be > 0, got %v", c.Server.RateLimit)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging format must be 'json' or 'console', got %q", c.Logging.Format)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm temperature must be in [0, 2], got %v", c.LLM.Temperature)
	}
	if c.LLM.MaxOutputTokens < 1 {
		return fmt.Errorf("llm max_output_tokens must be >= 1, got %d", c.LLM.MaxOutputTokens)
	}
	if c.Runbooks.TopK < 1 {
		return fmt.Errorf("runbooks top_k must be >= 1, got %d", c.Runbooks.TopK)
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return fmt.Errorf("telemetry sample_rate must be in [0, 1], got %v", c.Telemetry.SampleRate)
	}
	return nil
}
