// Package config loads service configuration from an optional YAML
// file with environment variable overrides.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "CARELOOP_"

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Groq     GroqConfig     `koanf:"groq"`
	Models   ModelsConfig   `koanf:"models"`
	Pipeline PipelineConfig `koanf:"pipeline"`
	Company  CompanyConfig  `koanf:"company"`
	Log      LogConfig      `koanf:"log"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

type GroqConfig struct {
	APIKey            string  `koanf:"api_key"`
	BaseURL           string  `koanf:"base_url"`
	RequestTimeoutSec int     `koanf:"request_timeout"`
	MaxRetries        int     `koanf:"max_retries"`
	RetryDelaySec     float64 `koanf:"retry_delay"`
}

// RequestTimeout bounds each model API attempt.
func (g GroqConfig) RequestTimeout() time.Duration {
	return time.Duration(g.RequestTimeoutSec) * time.Second
}

// RetryDelay is the exponential backoff base unit.
func (g GroqConfig) RetryDelay() time.Duration {
	return time.Duration(g.RetryDelaySec * float64(time.Second))
}

type ModelsConfig struct {
	Guard    string `koanf:"guard"`
	Response string `koanf:"response"`
	Tone     string `koanf:"tone"`
	Rewrite  string `koanf:"rewrite"`
}

type PipelineConfig struct {
	MaxTokensGuard    int `koanf:"max_tokens_guard"`
	MaxTokensResponse int `koanf:"max_tokens_response"`
	MaxTokensTone     int `koanf:"max_tokens_tone"`
	MaxTokensRewrite  int `koanf:"max_tokens_rewrite"`
	// HumanReviewTimeoutSec of zero disables the human review stage.
	HumanReviewTimeoutSec int `koanf:"human_review_timeout"`
}

// HumanReviewTimeout bounds the review rendezvous wait.
func (p PipelineConfig) HumanReviewTimeout() time.Duration {
	return time.Duration(p.HumanReviewTimeoutSec) * time.Second
}

type CompanyConfig struct {
	Name       string `koanf:"name"`
	Domain     string `koanf:"domain"`
	BrandVoice string `koanf:"brand_voice"`
}

type LogConfig struct {
	Level string `koanf:"level"`
}

func defaults() Config {
	return Config{
		Server: ServerConfig{Port: 5001},
		Groq: GroqConfig{
			RequestTimeoutSec: 30,
			MaxRetries:        3,
			RetryDelaySec:     1.0,
		},
		Models: ModelsConfig{
			Guard:    "meta-llama/Llama-Guard-4-12B",
			Response: "meta-llama/llama-4-maverick-17b-128e-instruct",
			Tone:     "meta-llama/llama-4-scout-17b-16e-instruct",
			Rewrite:  "meta-llama/llama-4-maverick-17b-128e-instruct",
		},
		Pipeline: PipelineConfig{
			MaxTokensGuard:        128,
			MaxTokensResponse:     400,
			MaxTokensTone:         150,
			MaxTokensRewrite:      300,
			HumanReviewTimeoutSec: 300,
		},
		Company: CompanyConfig{
			Name:       "Your Company",
			Domain:     "customer service",
			BrandVoice: "professional and empathetic",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads configuration from the given YAML file (skipped when the
// path is empty or missing) and applies CARELOOP_* environment
// overrides; CARELOOP_GROQ__API_KEY maps to groq.api_key.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := defaults()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if _, err := c.slogLevel(); err != nil {
		return err
	}
	if c.Groq.MaxRetries < 1 {
		return fmt.Errorf("groq.max_retries must be at least 1, got %d", c.Groq.MaxRetries)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	return nil
}

func (c *Config) slogLevel() (slog.Level, error) {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level %q", c.Log.Level)
	}
}

// LogLevel converts the configured level to a slog level. Validation
// at load time guarantees the conversion succeeds.
func (c *Config) LogLevel() slog.Level {
	lvl, _ := c.slogLevel()
	return lvl
}
