// Package config provides unified configuration loading for the parts assistant.
// Supports YAML files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the parts assistant.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Cache         CacheConfig         `yaml:"cache"`
	Catalog       CatalogConfig       `yaml:"catalog"`
	Routing       RoutingConfig       `yaml:"routing"`
	LLM           LLMConfig           `yaml:"llm"`
	Search        SearchConfig        `yaml:"search"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	AllowedOrigins   []string      `yaml:"allowed_origins"`
}

// DatabaseConfig holds catalog database settings. An empty driver keeps the
// catalog in memory, loaded from the CSV files.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver"` // "", sqlite or postgres
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path         string `yaml:"path"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// PostgresConfig holds Postgres-specific settings.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// CacheConfig holds response cache and conversation store settings.
type CacheConfig struct {
	Driver          string        `yaml:"driver"` // memory or redis
	ResponseEntries int           `yaml:"response_entries"`
	ConversationTTL time.Duration `yaml:"conversation_ttl"`
	Redis           RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	Prefix   string `yaml:"prefix"`
}

// CatalogConfig points at the CSV datasets.
type CatalogConfig struct {
	PartsPath   string `yaml:"parts_path"`
	RepairsPath string `yaml:"repairs_path"`
	BlogsPath   string `yaml:"blogs_path"`
}

// RoutingConfig holds the confidence thresholds used by the query router.
type RoutingConfig struct {
	FastLookupMinConfidence  float64  `yaml:"fast_lookup_min_confidence"`
	PatternAcceptConfidence  float64  `yaml:"pattern_accept_confidence"`
	PatternGenericConfidence float64  `yaml:"pattern_generic_confidence"`
	PatternPartConfidence    float64  `yaml:"pattern_part_confidence"`
	PatternCompatConfidence  float64  `yaml:"pattern_compat_confidence"`
	PipelineCacheConfidence  float64  `yaml:"pipeline_cache_confidence"`
	MaxValidationAttempts    int      `yaml:"max_validation_attempts"`
	ModelPartsLimit          int      `yaml:"model_parts_limit"`
	PartsSearchLimit         int      `yaml:"parts_search_limit"`
	RepairsSearchLimit       int      `yaml:"repairs_search_limit"`
	ArticlesSearchLimit      int      `yaml:"articles_search_limit"`
	SpecificTokens           []string `yaml:"specific_tokens"`
}

// LLMConfig holds language model settings. Any OpenAI-compatible endpoint works.
type LLMConfig struct {
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

// SearchConfig selects the catalog search strategy.
type SearchConfig struct {
	Semantic         bool   `yaml:"semantic"`
	EmbeddingBaseURL string `yaml:"embedding_base_url"`
	EmbeddingAPIKey  string `yaml:"embedding_api_key"`
	EmbeddingModel   string `yaml:"embedding_model"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	ServiceName string `yaml:"service_name"`
}

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}

		cfg.Catalog.PartsPath = ResolveRelativePath(path, cfg.Catalog.PartsPath)
		cfg.Catalog.RepairsPath = ResolveRelativePath(path, cfg.Catalog.RepairsPath)
		cfg.Catalog.BlogsPath = ResolveRelativePath(path, cfg.Catalog.BlogsPath)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8000,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     60 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 10 * time.Second,
			AllowedOrigins:   []string{"http://localhost:3000"},
		},
		Database: DatabaseConfig{
			SQLite: SQLiteConfig{
				Path:         "/tmp/parts-assistant.db",
				MaxOpenConns: 1,
			},
			Postgres: PostgresConfig{
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Cache: CacheConfig{
			Driver:          "memory",
			ResponseEntries: 5000,
			ConversationTTL: 24 * time.Hour,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				PoolSize: 10,
				Prefix:   "pa:",
			},
		},
		Catalog: CatalogConfig{
			PartsPath:   "data/parts_dataset.csv",
			RepairsPath: "data/repairs_dataset.csv",
			BlogsPath:   "data/blogs_dataset.csv",
		},
		Routing: DefaultRoutingConfig(),
		LLM: LLMConfig{
			BaseURL:     "https://api.deepseek.com/v1",
			Model:       "deepseek-chat",
			Temperature: 0.3,
			MaxTokens:   1024,
			Timeout:     30 * time.Second,
			MaxRetries:  2,
			BaseDelay:   500 * time.Millisecond,
			MaxDelay:    5 * time.Second,
		},
		Search: SearchConfig{
			Semantic:         false,
			EmbeddingBaseURL: "https://api.openai.com/v1",
			EmbeddingModel:   "text-embedding-3-small",
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			ServiceName: "parts-assistant",
		},
	}
}

// DefaultRoutingConfig returns the router thresholds tuned for the parts catalog.
func DefaultRoutingConfig() RoutingConfig {
	return RoutingConfig{
		FastLookupMinConfidence:  0.7,
		PatternAcceptConfidence:  0.9,
		PatternGenericConfidence: 0.6,
		PatternPartConfidence:    0.8,
		PatternCompatConfidence:  0.3,
		PipelineCacheConfidence:  0.9,
		MaxValidationAttempts:    3,
		ModelPartsLimit:          5,
		PartsSearchLimit:         5,
		RepairsSearchLimit:       3,
		ArticlesSearchLimit:      2,
		SpecificTokens:           []string{"part", "ps", "model", "whirlpool", "ge", "bosch"},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Database.Driver {
	case "", "sqlite", "postgres":
	default:
		return fmt.Errorf("invalid database driver: %s", c.Database.Driver)
	}

	if c.Cache.Driver != "memory" && c.Cache.Driver != "redis" {
		return fmt.Errorf("invalid cache driver: %s", c.Cache.Driver)
	}

	if c.Cache.ResponseEntries < 1 {
		return fmt.Errorf("response_entries must be positive")
	}

	r := c.Routing
	for name, v := range map[string]float64{
		"fast_lookup_min_confidence": r.FastLookupMinConfidence,
		"pattern_accept_confidence":  r.PatternAcceptConfidence,
		"pattern_generic_confidence": r.PatternGenericConfidence,
		"pattern_part_confidence":    r.PatternPartConfidence,
		"pattern_compat_confidence":  r.PatternCompatConfidence,
		"pipeline_cache_confidence":  r.PipelineCacheConfidence,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be between 0 and 1, got %v", name, v)
		}
	}

	if r.MaxValidationAttempts < 1 || r.MaxValidationAttempts > 10 {
		return fmt.Errorf("max_validation_attempts must be between 1 and 10")
	}

	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("llm timeout must be positive")
	}

	if c.Search.Semantic && c.Search.EmbeddingAPIKey == "" {
		return fmt.Errorf("semantic search requires an embedding api key")
	}

	return nil
}

// DatabaseDSN returns the appropriate database connection string.
func (c *Config) DatabaseDSN() string {
	if c.Database.Driver == "postgres" {
		return c.Database.Postgres.DSN
	}
	return c.Database.SQLite.Path
}

// LLMEnabled reports whether a remote model is configured.
func (c *Config) LLMEnabled() bool {
	return c.LLM.APIKey != ""
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = strings.Split(v, ",")
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		if strings.HasPrefix(v, "sqlite:") {
			cfg.Database.Driver = "sqlite"
			cfg.Database.SQLite.Path = strings.TrimPrefix(v, "sqlite:")
		} else if strings.HasPrefix(v, "postgres") {
			cfg.Database.Driver = "postgres"
			cfg.Database.Postgres.DSN = v
		}
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.Driver = "redis"
		cfg.Cache.Redis.Addr = strings.TrimPrefix(v, "redis://")
	}

	if v := os.Getenv("PARTS_DATA_PATH"); v != "" {
		cfg.Catalog.PartsPath = v
	}

	if v := os.Getenv("REPAIRS_DATA_PATH"); v != "" {
		cfg.Catalog.RepairsPath = v
	}

	if v := os.Getenv("BLOGS_DATA_PATH"); v != "" {
		cfg.Catalog.BlogsPath = v
	}

	if v := os.Getenv("DEEPSEEK_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}

	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}

	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}

	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}

	if v := os.Getenv("LLM_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.LLM.Timeout = d
		}
	}

	if v := os.Getenv("SEMANTIC_SEARCH"); v == "true" {
		cfg.Search.Semantic = true
	}

	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Search.EmbeddingAPIKey = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}

// ResolveRelativePath resolves a path relative to the config file location.
func ResolveRelativePath(configPath, targetPath string) string {
	if targetPath == "" || filepath.IsAbs(targetPath) {
		return targetPath
	}
	configDir := filepath.Dir(configPath)
	return filepath.Join(configDir, targetPath)
}
