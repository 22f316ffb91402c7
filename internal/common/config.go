package common

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/ternarybob/marketdesk/internal/interfaces"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	EnvFile     string          `toml:"env_file"`    // Optional dotenv file loaded before MARKETDESK_* overrides
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Breeze      BreezeConfig    `toml:"breeze"`
	Watchlist   WatchlistConfig `toml:"watchlist"`
	Reg30       Reg30Config     `toml:"reg30"`
	Symbols     SymbolsConfig   `toml:"symbols"`
	Telemetry   TelemetryConfig `toml:"telemetry"`
	Gemini      GeminiConfig    `toml:"gemini"`
	Claude      ClaudeConfig    `toml:"claude"`
	LLM         LLMConfig       `toml:"llm"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// BreezeConfig points at the brokerage proxy that fronts market data
type BreezeConfig struct {
	BaseURL   string `toml:"base_url"`
	StreamURL string `toml:"stream_url"` // WebSocket push endpoint; empty disables streaming
	ProxyKey  string `toml:"proxy_key"`
	AdminKey  string `toml:"admin_key"`
	Timeout   string `toml:"timeout"`    // HTTP timeout per call (default: "10s")
	RateLimit string `toml:"rate_limit"` // Minimum spacing between calls (default: "80ms")
}

// WatchlistConfig controls polling of bookmarked symbols
type WatchlistConfig struct {
	Stagger     string `toml:"stagger"`      // Delay between symbols in a batch refresh
	PollOpen    string `toml:"poll_open"`    // Refresh cadence while the market is open
	PollClosed  string `toml:"poll_closed"`  // Refresh cadence while the market is closed
	HistoryDays int    `toml:"history_days"` // Calendar days of bars fetched for the volume baseline
	AvgWindow   int    `toml:"avg_window"`   // Number of most recent bars averaged
}

// Reg30Config controls disclosure analysis
type Reg30Config struct {
	ImpactThreshold  int `toml:"impact_threshold"`   // Minimum impact for tactical analysis and narrative
	MaxDocumentChars int `toml:"max_document_chars"` // Attachment text truncation
}

type SymbolsConfig struct {
	MappingFile string `toml:"mapping_file"` // Optional YAML file of exchange symbol -> broker code
}

// TelemetryConfig controls the index status probe
type TelemetryConfig struct {
	MinInterval string `toml:"min_interval"` // Calls inside this window return the cached status
	LogInterval string `toml:"log_interval"` // Minimum spacing between persisted market logs
	MaxFailures int    `toml:"max_failures"` // Consecutive failures before falling back to the last value
	IndexSymbol string `toml:"index_symbol"`
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`      // default: "gemini-3-flash-preview"
	Timeout     string  `toml:"timeout"`    // default: "2m"
	RateLimit   string  `toml:"rate_limit"` // default: "4s" for 15 RPM
	Temperature float32 `toml:"temperature"`
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Timeout     string  `toml:"timeout"`
	RateLimit   string  `toml:"rate_limit"`
	Temperature float32 `toml:"temperature"`
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	LLMProviderGemini LLMProvider = "gemini"
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig selects the default AI provider
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider"`
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		EnvFile:     ".env",
		Server: ServerConfig{
			Port: 8085,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		Breeze: BreezeConfig{
			BaseURL:   "http://localhost:8081",
			Timeout:   "10s",
			RateLimit: "80ms",
		},
		Watchlist: WatchlistConfig{
			Stagger:     "80ms",
			PollOpen:    "12s",
			PollClosed:  "30s",
			HistoryDays: 40,
			AvgWindow:   20,
		},
		Reg30: Reg30Config{
			ImpactThreshold:  50,
			MaxDocumentChars: 30000,
		},
		Telemetry: TelemetryConfig{
			MinInterval: "2s",
			LogInterval: "30s",
			MaxFailures: 5,
			IndexSymbol: "NIFTY",
		},
		Gemini: GeminiConfig{
			Model:       "gemini-3-flash-preview",
			Timeout:     "2m",
			RateLimit:   "4s",
			Temperature: 0.1,
		},
		Claude: ClaudeConfig{
			Model:       "claude-haiku-4-5",
			MaxTokens:   4096,
			Timeout:     "2m",
			RateLimit:   "1s",
			Temperature: 0.1,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderGemini,
		},
	}
}

// LoadFromFiles loads configuration with priority: defaults -> file1 -> file2 -> ... -> .env -> env -> CLI.
// Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	// godotenv never overrides variables already present in the environment
	if config.EnvFile != "" {
		if err := godotenv.Load(config.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", config.EnvFile, err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies MARKETDESK_* environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("MARKETDESK_ENV"); env != "" {
		config.Environment = env
	}

	// Server
	if port := os.Getenv("MARKETDESK_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("MARKETDESK_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage
	if badgerPath := os.Getenv("MARKETDESK_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if reset := os.Getenv("MARKETDESK_BADGER_RESET_ON_STARTUP"); reset != "" {
		if r, err := strconv.ParseBool(reset); err == nil {
			config.Storage.Badger.ResetOnStartup = r
		}
	}

	// Logging
	if level := os.Getenv("MARKETDESK_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("MARKETDESK_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Breeze proxy
	if baseURL := os.Getenv("MARKETDESK_BREEZE_BASE_URL"); baseURL != "" {
		config.Breeze.BaseURL = baseURL
	}
	if streamURL := os.Getenv("MARKETDESK_BREEZE_STREAM_URL"); streamURL != "" {
		config.Breeze.StreamURL = streamURL
	}
	if proxyKey := os.Getenv("MARKETDESK_BREEZE_PROXY_KEY"); proxyKey != "" {
		config.Breeze.ProxyKey = proxyKey
	}
	if adminKey := os.Getenv("MARKETDESK_BREEZE_ADMIN_KEY"); adminKey != "" {
		config.Breeze.AdminKey = adminKey
	}

	// Symbols
	if mappingFile := os.Getenv("MARKETDESK_SYMBOLS_MAPPING_FILE"); mappingFile != "" {
		config.Symbols.MappingFile = mappingFile
	}

	// AI providers
	if model := os.Getenv("MARKETDESK_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}
	if model := os.Getenv("MARKETDESK_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}
	if provider := os.Getenv("MARKETDESK_LLM_DEFAULT_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(strings.ToLower(provider))
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// ResolveAPIKey resolves an API key by name.
// Resolution order: environment variables → KV store → config fallback → error
func ResolveAPIKey(ctx context.Context, kvStorage interfaces.KeyValueStorage, name string, configFallback string) (string, error) {
	keyToEnvMapping := map[string][]string{
		"gemini_api_key":    {"MARKETDESK_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"},
		"anthropic_api_key": {"MARKETDESK_CLAUDE_API_KEY", "ANTHROPIC_API_KEY"},
		"breeze_proxy_key":  {"MARKETDESK_BREEZE_PROXY_KEY"},
	}

	if envVarNames, ok := keyToEnvMapping[name]; ok {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue, nil
			}
		}
	}

	if kvStorage != nil {
		value, err := kvStorage.Get(ctx, name)
		if err == nil && value != "" {
			return value, nil
		}
	}

	if configFallback != "" {
		return configFallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment, KV store, or config", name)
}

// ParseDuration parses a config duration string, returning fallback when the
// value is empty or malformed
func ParseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
