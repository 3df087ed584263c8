package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	internal "github.com/taskatlas/taskatlas/atlas"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Database     DatabaseConfig     `mapstructure:"database"`
	LLM          LLMConfig          `mapstructure:"llm"`
	Classifier   ClassifierConfig   `mapstructure:"classifier"`
	BusinessCase BusinessCaseConfig `mapstructure:"businesscase"`
	Catalog      CatalogConfig      `mapstructure:"catalog"`
	Search       SearchConfig       `mapstructure:"search"`
	Toggles      TogglesConfig      `mapstructure:"toggles"`
	Telemetry    TelemetryConfig    `mapstructure:"telemetry"`
}

// DatabaseConfig stores database connection details.
type DatabaseConfig struct {
	DSN       string `mapstructure:"dsn"`        // file: path or hosted libsql URL
	AuthToken string `mapstructure:"auth_token"` // hosted database auth token
	Type      string `mapstructure:"type"`
	DataDir   string `mapstructure:"data_dir"` // directory for embedded database files
}

// LLMConfig stores the external completion API configuration.
type LLMConfig struct {
	Endpoint     string        `mapstructure:"endpoint"`       // chat-completions URL
	APIKey       string        `mapstructure:"api_key"`        // bearer token
	Model        string        `mapstructure:"model"`          // model identifier
	MaxNewTokens int           `mapstructure:"max_new_tokens"` // max tokens to generate
	Temperature  float32       `mapstructure:"temperature"`    // sampling temperature
	TopP         float32       `mapstructure:"top_p"`          // nucleus sampling
	Timeout      time.Duration `mapstructure:"timeout"`        // per-request HTTP timeout
}

// ClassifierConfig stores task classification settings.
type ClassifierConfig struct {
	Languages   []string `mapstructure:"languages"`   // supported locales, e.g. de, en
	Concurrency int      `mapstructure:"concurrency"` // batch classification workers
}

// BusinessCaseConfig stores single-flight generation cache settings.
type BusinessCaseConfig struct {
	WaitTimeout time.Duration `mapstructure:"wait_timeout"` // max wait for a coalesced caller
	KeyPrefix   int           `mapstructure:"key_prefix"`   // normalized key truncation length
}

// CatalogConfig stores term-catalog generator settings.
type CatalogConfig struct {
	Concurrency int    `mapstructure:"concurrency"`  // batch generation workers
	TemplateDir string `mapstructure:"template_dir"` // prompt template directory
	WatchDir    bool   `mapstructure:"watch_dir"`    // hot-reload templates via fsnotify
}

// SearchConfig stores workflow search/index settings.
type SearchConfig struct {
	K             int           `mapstructure:"k"`               // top-k results
	CacheEnabled  bool          `mapstructure:"cache_enabled"`   // memoize search results
	CacheCapacity int           `mapstructure:"cache_capacity"`  // LRU capacity
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`       // result cache TTL
	EnableMetrics bool          `mapstructure:"enable_metrics"`  // collect query metrics
	RateLimit     int           `mapstructure:"rate_limit"`      // token bucket capacity
	RateRefill    time.Duration `mapstructure:"rate_refill"`     // token refill interval
	RateLimitOn   bool          `mapstructure:"rate_limit_on"`   // enable rate limiting
	EnableTracing bool          `mapstructure:"enable_tracing"`  // structured tracing
	MaxOutputSize int           `mapstructure:"max_output_size"` // guardrail on LLM output bytes
}

// TogglesConfig stores feature toggle settings.
type TogglesConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"` // toggle lookup TTL
}

// TelemetryConfig stores logging and tracing settings.
type TelemetryConfig struct {
	Level         string `mapstructure:"level"`          // zerolog level
	EnableTracing bool   `mapstructure:"enable_tracing"` // span tracing
}

var AppConfig Config

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	// An explicit config file set by an earlier call must not leak into
	// this load; a stale path would turn the defaults-only case into a
	// read error.
	viper.Reset()

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("..")
		viper.AddConfigPath(filepath.Join("etc", internal.DefaultAppName))
		viper.AddConfigPath(internal.DefaultConfigPath)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// Database defaults (embedded libsql unless a hosted URL is configured)
	viper.SetDefault("database.dsn", internal.DefaultDatabaseDSN)
	viper.SetDefault("database.type", internal.DefaultDatabaseType)
	viper.SetDefault("database.data_dir", internal.DefaultDatabaseDir)

	// LLM defaults
	viper.SetDefault("llm.endpoint", "https://api.openai.com/v1/chat/completions")
	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.max_new_tokens", 1024)
	viper.SetDefault("llm.temperature", 0.3)
	viper.SetDefault("llm.top_p", 0.9)
	viper.SetDefault("llm.timeout", "60s")

	// Classifier defaults
	viper.SetDefault("classifier.languages", []string{"de", "en"})
	viper.SetDefault("classifier.concurrency", 4)

	// Business-case cache defaults
	viper.SetDefault("businesscase.wait_timeout", "30s")
	viper.SetDefault("businesscase.key_prefix", 100)

	// Catalog defaults
	viper.SetDefault("catalog.concurrency", 3)
	viper.SetDefault("catalog.template_dir", "templates")
	viper.SetDefault("catalog.watch_dir", true)

	// Search defaults
	viper.SetDefault("search.k", 10)
	viper.SetDefault("search.cache_enabled", true)
	viper.SetDefault("search.cache_capacity", 1000)
	viper.SetDefault("search.cache_ttl", "5m")
	viper.SetDefault("search.enable_metrics", true)
	viper.SetDefault("search.rate_limit", 10)
	viper.SetDefault("search.rate_refill", "1s")
	viper.SetDefault("search.rate_limit_on", true)
	viper.SetDefault("search.enable_tracing", true)
	viper.SetDefault("search.max_output_size", 10000)

	// Toggle defaults
	viper.SetDefault("toggles.cache_ttl", "30s")

	// Telemetry defaults
	viper.SetDefault("telemetry.level", "info")
	viper.SetDefault("telemetry.enable_tracing", true)

	viper.AutomaticEnv()
	// Replace dots with underscores in env var names e.g. llm.api_key becomes LLM_API_KEY
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; defaults will be used. Not an error to halt on.
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	err := viper.Unmarshal(&AppConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	return &AppConfig, nil
}
