package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the skurag service configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
	Catalog    CatalogConfig    `yaml:"catalog"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Completion CompletionConfig `yaml:"completion"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Cache      CacheConfig      `yaml:"cache"`
	Agent      AgentConfig      `yaml:"agent"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"` // covers the whole streamed response
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// CatalogConfig selects and configures the catalog source.
type CatalogConfig struct {
	Source           string       `yaml:"source"` // file, mongo, sqlite
	DescriptionField string       `yaml:"description_field"`
	File             FileConfig   `yaml:"file"`
	Mongo            MongoConfig  `yaml:"mongo"`
	SQLite           SQLiteConfig `yaml:"sqlite"`
}

// FileConfig holds the file source settings.
type FileConfig struct {
	Path string `yaml:"path"` // .json, .yaml or .yml
}

// MongoConfig holds the MongoDB source settings.
type MongoConfig struct {
	URI               string `yaml:"uri"`
	Database          string `yaml:"database"`
	Collection        string `yaml:"collection"`
	SortField         string `yaml:"sort_field"`
	ConnectTimeoutSec int    `yaml:"connect_timeout_sec"`
}

// SQLiteConfig holds the SQLite source settings.
type SQLiteConfig struct {
	DSN   string `yaml:"dsn"`
	Query string `yaml:"query"`
}

// EmbeddingConfig holds embedder settings.
type EmbeddingConfig struct {
	Provider     string `yaml:"provider"` // local, openai
	Model        string `yaml:"model"`
	Dimensions   int    `yaml:"dimensions"`
	MaxTokens    int    `yaml:"max_tokens"` // local only
	Seed         uint64 `yaml:"seed"`       // local only
	Instruction  string `yaml:"instruction"`
	MaxBatchSize int    `yaml:"max_batch_size"`
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	Organization string `yaml:"organization"`
}

// CompletionConfig holds chat completion settings.
// An empty APIKey disables the conversation endpoints.
type CompletionConfig struct {
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	Organization string `yaml:"organization"`
	Model        string `yaml:"model"`
}

// Enabled reports whether a completion provider is configured.
func (c CompletionConfig) Enabled() bool { return c.APIKey != "" }

// RetrievalConfig holds similarity search settings.
type RetrievalConfig struct {
	TopK      int    `yaml:"top_k"`
	Metric    string `yaml:"metric"`     // l2, cosine
	TimeoutMS int    `yaml:"timeout_ms"` // 0 = no per-turn deadline
}

// Timeout returns the per-turn retrieval deadline.
func (c RetrievalConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// CacheConfig holds the Valkey embedding cache settings.
type CacheConfig struct {
	Enabled          bool     `yaml:"enabled"`
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	TTLSec           int      `yaml:"ttl_sec"` // 0 = no expiry
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// AgentConfig holds the conversational agent texts.
type AgentConfig struct {
	Greeting   string `yaml:"greeting"`
	Prompt     string `yaml:"prompt"`
	Guardrails string `yaml:"guardrails"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands env variables, decodes, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadDotEnv loads variables from the given .env files (default ".env") without
// overriding the process environment. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Catalog.Source == "" {
		c.Catalog.Source = "file"
	}
	if c.Catalog.DescriptionField == "" {
		c.Catalog.DescriptionField = "description"
	}
	if c.Catalog.Mongo.SortField == "" {
		c.Catalog.Mongo.SortField = "_id"
	}
	if c.Catalog.Mongo.ConnectTimeoutSec <= 0 {
		c.Catalog.Mongo.ConnectTimeoutSec = 10
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "local"
	}
	if c.Embedding.Model == "" {
		switch c.Embedding.Provider {
		case "openai":
			c.Embedding.Model = "text-embedding-3-small"
		default:
			c.Embedding.Model = "local-hash"
		}
	}
	if c.Embedding.MaxBatchSize <= 0 {
		c.Embedding.MaxBatchSize = 256
	}
	if c.Completion.Model == "" {
		c.Completion.Model = "gpt-4-turbo-preview"
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = 5
	}
	if c.Retrieval.Metric == "" {
		c.Retrieval.Metric = "l2"
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.Catalog.Source {
	case "file":
		if c.Catalog.File.Path == "" {
			return fmt.Errorf("catalog.file.path is required")
		}
	case "mongo":
		if c.Catalog.Mongo.URI == "" || c.Catalog.Mongo.Database == "" || c.Catalog.Mongo.Collection == "" {
			return fmt.Errorf("catalog.mongo.uri, database and collection are required")
		}
	case "sqlite":
		if c.Catalog.SQLite.DSN == "" {
			return fmt.Errorf("catalog.sqlite.dsn is required")
		}
	default:
		return fmt.Errorf("catalog.source must be \"file\", \"mongo\" or \"sqlite\", got %q", c.Catalog.Source)
	}

	switch c.Embedding.Provider {
	case "local":
	case "openai":
		if c.Embedding.APIKey == "" {
			return fmt.Errorf("embedding.api_key is required for provider openai")
		}
	default:
		return fmt.Errorf("embedding.provider must be \"local\" or \"openai\", got %q", c.Embedding.Provider)
	}
	if c.Embedding.Dimensions < 0 {
		return fmt.Errorf("embedding.dimensions must not be negative, got %d", c.Embedding.Dimensions)
	}

	switch strings.ToLower(c.Retrieval.Metric) {
	case "l2", "euclidean", "cosine":
	default:
		return fmt.Errorf("retrieval.metric must be \"l2\" or \"cosine\", got %q", c.Retrieval.Metric)
	}
	if c.Retrieval.TimeoutMS < 0 {
		return fmt.Errorf("retrieval.timeout_ms must not be negative, got %d", c.Retrieval.TimeoutMS)
	}

	if c.Cache.Enabled && len(c.Cache.Addrs) == 0 {
		return fmt.Errorf("cache.addrs is required when cache is enabled")
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
