// Package config handles application configuration using Viper.
// Viper supports YAML files, environment variables, and defaults — merged in priority order.
// Go convention: configuration is loaded into structs, not accessed as raw key-value pairs.
//
// The Config value is constructed once in main and passed explicitly into
// each collaborator — no ambient globals. This is what lets tests point the
// LLM and OpenFDA clients at httptest servers via the base_url fields.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration struct. Nested structs organize related settings.
// `mapstructure` tags tell Viper how to map YAML/env keys to struct fields.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Auth      AuthConfig      `mapstructure:"auth"`
	CORS      CORSConfig      `mapstructure:"cors"`
	LLM       LLMConfig       `mapstructure:"llm"`
	OpenFDA   OpenFDAConfig   `mapstructure:"openfda"`
	Upload    UploadConfig    `mapstructure:"upload"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type StorageConfig struct {
	DatabasePath string `mapstructure:"database_path"`
}

type AuthConfig struct {
	// AdminKeys protect the /api/v1/admin endpoints. The analyze endpoint
	// itself is public, matching the original deployment.
	AdminKeys []string `mapstructure:"admin_keys"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LLMConfig struct {
	// ProviderOrder controls which LLM providers are used and in what order.
	// First provider is primary, rest are fallbacks. Example: ["groq", "anthropic"]
	ProviderOrder    []string        `mapstructure:"provider_order"`
	Groq             GroqConfig      `mapstructure:"groq"`
	Anthropic        AnthropicConfig `mapstructure:"anthropic"`
	MaxTokens        int             `mapstructure:"max_tokens"`
	VisionTimeout    time.Duration   `mapstructure:"vision_timeout"`
	RecommendTimeout time.Duration   `mapstructure:"recommend_timeout"`
}

type GroqConfig struct {
	APIKey string `mapstructure:"api_key"`
	// BaseURL points at Groq's OpenAI-compatible endpoint by default.
	// Tests override it with an httptest server URL.
	BaseURL     string `mapstructure:"base_url"`
	Model       string `mapstructure:"model"`
	VisionModel string `mapstructure:"vision_model"`
}

type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type OpenFDAConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type UploadConfig struct {
	// MaxBytes caps the accepted upload size; larger uploads are rejected with 400.
	MaxBytes int64 `mapstructure:"max_bytes"`
	// MaxDimension bounds the image sent upstream: larger images are
	// downscaled before base64 encoding to keep request payloads small.
	MaxDimension int `mapstructure:"max_dimension"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from a YAML file and environment variables.
// In Go, functions return errors as the last return value — callers must check them.
// This pattern replaces try/catch: if err != nil { handle it }.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults — these apply when neither file nor env provides a value
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("storage.database_path", "./storage/medscan.db")
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("llm.provider_order", []string{"groq", "anthropic"})
	v.SetDefault("llm.groq.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("llm.groq.model", "llama-3-70b-8192")
	v.SetDefault("llm.groq.vision_model", "llama-3.2-11b-vision-preview")
	v.SetDefault("llm.anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("llm.max_tokens", 500)
	v.SetDefault("llm.vision_timeout", 30*time.Second)
	v.SetDefault("llm.recommend_timeout", 20*time.Second)
	v.SetDefault("openfda.base_url", "https://api.fda.gov/drug/label.json")
	v.SetDefault("openfda.timeout", 10*time.Second)
	v.SetDefault("upload.max_bytes", 10<<20)
	v.SetDefault("upload.max_dimension", 1600)
	v.SetDefault("rate_limit.requests_per_second", 2)
	v.SetDefault("rate_limit.burst", 5)
	v.SetDefault("log.level", "info")

	// Read from YAML config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Read config file (ignore "not found" — defaults + env are enough)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// Environment variables override everything.
	// MEDSCAN_ prefix + nested keys: MEDSCAN_SERVER_PORT=9090 → server.port=9090
	v.SetEnvPrefix("MEDSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal into our Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Address returns the listen address string like "0.0.0.0:8080".
// This is a method on ServerConfig — Go attaches methods to types via receiver syntax.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
