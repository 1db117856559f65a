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

// Config holds the hybridex configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Logging   LoggingConfig   `yaml:"logging"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Index     IndexConfig     `yaml:"index"`
	Search    SearchConfig    `yaml:"search"`
	Cache     CacheConfig     `yaml:"cache"`
	Database  DatabaseConfig  `yaml:"database"`
	Storage   StorageConfig   `yaml:"storage"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// EmbeddingConfig selects and tunes the embedding provider.
type EmbeddingConfig struct {
	Provider       string                    `yaml:"provider"` // openai, ollama, local
	Providers      map[string]ProviderConfig `yaml:"providers"`
	Model          string                    `yaml:"model"`
	Dimensions     int                       `yaml:"dimensions"`
	TimeoutMs      int                       `yaml:"timeout_ms"`
	RateLimitRPS   float64                   `yaml:"rate_limit_rps"` // 0 = unlimited
	RateLimitBurst int                       `yaml:"rate_limit_burst"`
	BatchSize      int                       `yaml:"batch_size"`
	Workers        int                       `yaml:"workers"`
	QueryPrefix    string                    `yaml:"query_instruction"`
	DocumentPrefix string                    `yaml:"document_instruction"`
}

// ProviderConfig holds embedding provider connection settings.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// IndexConfig tunes the lexical and semantic indices.
type IndexConfig struct {
	NGramMin        int     `yaml:"ngram_min"`
	NGramMax        int     `yaml:"ngram_max"`
	MaxFeatures     int     `yaml:"max_features"`
	MinDF           int     `yaml:"min_df"`
	MaxDF           float64 `yaml:"max_df"`
	StopWords       *bool   `yaml:"stop_words"`
	SemanticType    string  `yaml:"semantic_type"` // flat, ivf
	IVFNList        int     `yaml:"ivf_nlist"`
	IVFNProbe       int     `yaml:"ivf_nprobe"`
	IVFMinTrainSize int     `yaml:"ivf_min_train_size"`
	IVFIterations   int     `yaml:"ivf_train_iterations"`
	CompactionRatio float64 `yaml:"compaction_ratio"`
	WarmupOnStartup *bool   `yaml:"warmup_on_startup"`
}

// SearchConfig holds ranking defaults and request limits.
type SearchConfig struct {
	DefaultAlpha        float64 `yaml:"default_alpha"`
	DefaultLimit        int     `yaml:"default_limit"`
	MaxLimit            int     `yaml:"max_limit"`
	OverfetchFactor     int     `yaml:"overfetch_factor"`
	MaxQueryLength      int     `yaml:"max_query_length"`
	FallbackToKeyword   *bool   `yaml:"fallback_to_keyword"`
	SuggestionsCapacity int     `yaml:"suggestions_capacity"`
}

// CacheConfig selects the result and embedding cache backend.
type CacheConfig struct {
	Driver          string `yaml:"driver"` // memory, redis
	ResultTTLSec    int    `yaml:"result_ttl_sec"`
	EmbeddingTTLSec int    `yaml:"embedding_ttl_sec"`
	MemoryBudgetMB  int    `yaml:"memory_budget_mb"`
	MaxEntries      int    `yaml:"max_entries"`
}

// DatabaseConfig holds the Redis-compatible cache store connection.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis (default: redis)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	KeyPrefix        string   `yaml:"key_prefix"`
}

// StorageConfig selects the document store.
type StorageConfig struct {
	Driver string `yaml:"driver"` // memory, sqlite
	Path   string `yaml:"path"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
// A .env file in the working directory, if present, is loaded first.
func Load(env string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}
	return LoadFile(findConfigPath(env))
}

// LoadFile reads, expands and validates a single YAML file.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse expands ${VAR} references in data and decodes it.
func Parse(data []byte) (Config, error) {
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

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

func boolPtr(b bool) *bool { return &b }

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "local"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 384
	}
	if c.Embedding.TimeoutMs <= 0 {
		c.Embedding.TimeoutMs = 5000
	}
	if c.Embedding.RateLimitBurst <= 0 {
		c.Embedding.RateLimitBurst = 1
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 64
	}
	if c.Embedding.Workers <= 0 {
		c.Embedding.Workers = 4
	}

	if c.Index.NGramMin <= 0 {
		c.Index.NGramMin = 1
	}
	if c.Index.NGramMax <= 0 {
		c.Index.NGramMax = 2
	}
	if c.Index.MaxFeatures <= 0 {
		c.Index.MaxFeatures = 10000
	}
	if c.Index.MinDF <= 0 {
		c.Index.MinDF = 1
	}
	if c.Index.MaxDF <= 0 {
		c.Index.MaxDF = 1.0
	}
	if c.Index.StopWords == nil {
		c.Index.StopWords = boolPtr(true)
	}
	if c.Index.SemanticType == "" {
		c.Index.SemanticType = "flat"
	}
	if c.Index.IVFNList <= 0 {
		c.Index.IVFNList = 64
	}
	if c.Index.IVFNProbe <= 0 {
		c.Index.IVFNProbe = 8
	}
	if c.Index.IVFMinTrainSize <= 0 {
		c.Index.IVFMinTrainSize = 1024
	}
	if c.Index.IVFIterations <= 0 {
		c.Index.IVFIterations = 10
	}
	if c.Index.CompactionRatio <= 0 {
		c.Index.CompactionRatio = 0.25
	}
	if c.Index.WarmupOnStartup == nil {
		c.Index.WarmupOnStartup = boolPtr(true)
	}

	if c.Search.DefaultAlpha == 0 {
		c.Search.DefaultAlpha = 0.7
	}
	if c.Search.DefaultLimit <= 0 {
		c.Search.DefaultLimit = 10
	}
	if c.Search.MaxLimit <= 0 {
		c.Search.MaxLimit = 100
	}
	if c.Search.OverfetchFactor <= 0 {
		c.Search.OverfetchFactor = 2
	}
	if c.Search.MaxQueryLength <= 0 {
		c.Search.MaxQueryLength = 4096
	}
	if c.Search.FallbackToKeyword == nil {
		c.Search.FallbackToKeyword = boolPtr(true)
	}
	if c.Search.SuggestionsCapacity <= 0 {
		c.Search.SuggestionsCapacity = 1000
	}

	if c.Cache.Driver == "" {
		c.Cache.Driver = "memory"
	}
	if c.Cache.ResultTTLSec <= 0 {
		c.Cache.ResultTTLSec = 1800
	}
	if c.Cache.EmbeddingTTLSec <= 0 {
		c.Cache.EmbeddingTTLSec = 86400
	}
	if c.Cache.MemoryBudgetMB <= 0 {
		c.Cache.MemoryBudgetMB = 64
	}
	if c.Cache.MaxEntries <= 0 {
		c.Cache.MaxEntries = 10000
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "redis"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Database.KeyPrefix == "" {
		c.Database.KeyPrefix = "hybridex:"
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Storage.Driver == "sqlite" && c.Storage.Path == "" {
		c.Storage.Path = "hybridex.db"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.Embedding.Provider {
	case "local", "ollama":
	case "openai":
		if p := c.Embedding.Providers["openai"]; p.APIKey == "" && p.BaseURL == "" {
			return fmt.Errorf("embedding.providers.openai needs api_key or base_url")
		}
	default:
		return fmt.Errorf("embedding.provider must be \"openai\", \"ollama\" or \"local\", got %q", c.Embedding.Provider)
	}
	if c.Embedding.Provider != "local" && c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required for provider %q", c.Embedding.Provider)
	}
	if c.Embedding.RateLimitRPS < 0 {
		return fmt.Errorf("embedding.rate_limit_rps must not be negative, got %v", c.Embedding.RateLimitRPS)
	}

	if c.Index.NGramMin > c.Index.NGramMax {
		return fmt.Errorf("index.ngram_min (%d) must not exceed index.ngram_max (%d)", c.Index.NGramMin, c.Index.NGramMax)
	}
	if c.Index.MaxDF > 1 {
		return fmt.Errorf("index.max_df must be in (0, 1], got %v", c.Index.MaxDF)
	}
	if c.Index.SemanticType != "flat" && c.Index.SemanticType != "ivf" {
		return fmt.Errorf("index.semantic_type must be \"flat\" or \"ivf\", got %q", c.Index.SemanticType)
	}
	if c.Index.CompactionRatio > 1 {
		return fmt.Errorf("index.compaction_ratio must be in (0, 1], got %v", c.Index.CompactionRatio)
	}

	if c.Search.DefaultAlpha < 0 || c.Search.DefaultAlpha > 1 {
		return fmt.Errorf("search.default_alpha must be between 0 and 1, got %v", c.Search.DefaultAlpha)
	}
	if c.Search.DefaultLimit > c.Search.MaxLimit {
		return fmt.Errorf("search.default_limit (%d) must not exceed search.max_limit (%d)",
			c.Search.DefaultLimit, c.Search.MaxLimit)
	}

	switch c.Cache.Driver {
	case "memory":
	case "redis":
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required when cache.driver is redis")
		}
	default:
		return fmt.Errorf("cache.driver must be \"memory\" or \"redis\", got %q", c.Cache.Driver)
	}
	if c.Database.Driver != "redis" && c.Database.Driver != "valkey" {
		return fmt.Errorf("database.driver must be \"redis\" or \"valkey\", got %q", c.Database.Driver)
	}

	if c.Storage.Driver != "memory" && c.Storage.Driver != "sqlite" {
		return fmt.Errorf("storage.driver must be \"memory\" or \"sqlite\", got %q", c.Storage.Driver)
	}
	return nil
}

// Timeout returns the per-call provider deadline.
func (c EmbeddingConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
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
