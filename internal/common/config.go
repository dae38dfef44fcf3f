// Package common provides shared utilities for Borsa
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for Borsa
type Config struct {
	Environment     string         `toml:"environment"`
	DefaultLanguage string         `toml:"default_language"` // "en" or "ar"; mixed-script input routes here
	Server          ServerConfig   `toml:"server"`
	Storage         StorageConfig  `toml:"storage"`
	Chat            ChatConfig     `toml:"chat"`
	Resolver        ResolverConfig `toml:"resolver"`
	LLM             LLMConfig      `toml:"llm"`
	Auth            AuthConfig     `toml:"auth"`
	Logging         LoggingConfig  `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig holds market store and counter store configuration.
// Driver "surreal" connects to SurrealDB; "memory" loads the seed JSON
// files from SeedPath and keeps everything in-process.
type StorageConfig struct {
	Driver    string `toml:"driver"`
	Address   string `toml:"address"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
	Namespace string `toml:"namespace"`
	Database  string `toml:"database"`
	DataPath  string `toml:"data_path"` // BadgerHold directory (usage counters, analytics)
	SeedPath  string `toml:"seed_path"` // seed universe JSON file, loaded by the memory driver
}

// ChatConfig holds conversation pipeline configuration.
type ChatConfig struct {
	GuestMessageCeiling int      `toml:"guest_message_ceiling"`
	ContextTTLMinutes   int      `toml:"context_ttl_minutes"`
	MessageDeadlineMS   int      `toml:"message_deadline_ms"`
	MarketFilter        []string `toml:"market_filter"` // allowed market codes, e.g. ["EGX"]
	AnalyticsSink       string   `toml:"analytics_sink"` // "log" (default) or "store"
}

// ContextTTL returns the session context TTL.
func (c *ChatConfig) ContextTTL() time.Duration {
	if c.ContextTTLMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.ContextTTLMinutes) * time.Minute
}

// MessageDeadline returns the overall per-message deadline.
func (c *ChatConfig) MessageDeadline() time.Duration {
	if c.MessageDeadlineMS <= 0 {
		return 8 * time.Second
	}
	return time.Duration(c.MessageDeadlineMS) * time.Millisecond
}

// ResolverConfig holds symbol resolution configuration.
type ResolverConfig struct {
	MinConfidence  float64 `toml:"min_confidence"`
	MaxSuggestions int     `toml:"max_suggestions"`
}

// LLMConfig holds narration configuration.
type LLMConfig struct {
	NarrationEnabled bool         `toml:"narration_enabled"`
	ProviderOrder    []string     `toml:"provider_order"` // tried in order, e.g. ["gemini", "claude"]
	Timeout          string       `toml:"timeout"`
	Gemini           GeminiConfig `toml:"gemini"`
	Claude           ClaudeConfig `toml:"claude"`
}

// GetTimeout parses and returns the narration timeout duration.
func (c *LLMConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 3 * time.Second
	}
	return d
}

// GeminiConfig holds Gemini API configuration
type GeminiConfig struct {
	APIKey    string `toml:"api_key"`
	Model     string `toml:"model"`
	RateLimit int    `toml:"rate_limit"` // requests per second
}

// ClaudeConfig holds Anthropic API configuration
type ClaudeConfig struct {
	APIKey    string `toml:"api_key"`
	Model     string `toml:"model"`
	MaxTokens int    `toml:"max_tokens"`
	RateLimit int    `toml:"rate_limit"`
}

// AuthConfig holds token verification configuration. Borsa never issues
// tokens; it only reads the subject claim to exempt authenticated users
// from guest metering.
type AuthConfig struct {
	JWTSecret string `toml:"jwt_secret"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `toml:"level"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment:     "development",
		DefaultLanguage: "en",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8090,
		},
		Storage: StorageConfig{
			Driver:    "surreal",
			Address:   "ws://localhost:8000/rpc",
			Username:  "root",
			Password:  "root",
			Namespace: "borsa",
			Database:  "market",
			DataPath:  "data/internal",
			SeedPath:  "data/seed/egx.json",
		},
		Chat: ChatConfig{
			GuestMessageCeiling: 5,
			ContextTTLMinutes:   30,
			MessageDeadlineMS:   8000,
			MarketFilter:        []string{"EGX"},
			AnalyticsSink:       "log",
		},
		Resolver: ResolverConfig{
			MinConfidence:  0.55,
			MaxSuggestions: 5,
		},
		LLM: LLMConfig{
			NarrationEnabled: true,
			ProviderOrder:    []string{"gemini", "claude"},
			Timeout:          "3s",
			Gemini: GeminiConfig{
				Model:     "gemini-2.0-flash",
				RateLimit: 2,
			},
			Claude: ClaudeConfig{
				Model:     "claude-sonnet-4-20250514",
				MaxTokens: 1024,
				RateLimit: 2,
			},
		},
		Auth: AuthConfig{
			JWTSecret: "dev-jwt-secret-change-in-production",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)
	validateDefaultLanguage(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("BORSA_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("BORSA_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("BORSA_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("BORSA_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if driver := os.Getenv("BORSA_STORAGE_DRIVER"); driver != "" {
		config.Storage.Driver = driver
	}
	if addr := os.Getenv("BORSA_STORAGE_ADDRESS"); addr != "" {
		config.Storage.Address = addr
	}
	if path := os.Getenv("BORSA_DATA_PATH"); path != "" {
		config.Storage.DataPath = path
	}

	if lang := os.Getenv("BORSA_DEFAULT_LANGUAGE"); lang != "" {
		config.DefaultLanguage = strings.ToLower(lang)
	}

	if v := os.Getenv("BORSA_JWT_SECRET"); v != "" {
		config.Auth.JWTSecret = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		config.LLM.Gemini.APIKey = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		config.LLM.Claude.APIKey = v
	}
	if v := os.Getenv("BORSA_NARRATION"); v != "" {
		config.LLM.NarrationEnabled = v == "1" || strings.EqualFold(v, "true")
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// MarketAllowed reports whether a market code passes the deployment filter.
// An empty filter allows everything.
func (c *Config) MarketAllowed(market string) bool {
	if len(c.Chat.MarketFilter) == 0 {
		return true
	}
	for _, m := range c.Chat.MarketFilter {
		if strings.EqualFold(m, market) {
			return true
		}
	}
	return false
}

// validateDefaultLanguage ensures DefaultLanguage is "en" or "ar", defaulting to "en".
func validateDefaultLanguage(config *Config) {
	lang := strings.ToLower(config.DefaultLanguage)
	if lang != "en" && lang != "ar" {
		lang = "en"
	}
	config.DefaultLanguage = lang
}
