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

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/docvec/internal/domain"
	"github.com/kailas-cloud/docvec/internal/domain/search/strategy"
)

// EnvFileVar names the variable that points at the optional env file.
const EnvFileVar = "DOCVEC_ENV_FILE"

// DefaultEnvFile is read when EnvFileVar is unset.
const DefaultEnvFile = "localsettings.env"

// Embedding providers.
const (
	ProviderOpenAI = "openai"
	ProviderAzure  = "azure"
)

// Store drivers.
const (
	DriverCosmos   = "cosmos"
	DriverRedis    = "redis"
	DriverValkey   = "valkey"
	DriverPostgres = "postgres"
)

// Config holds the docvec configuration.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	HTTP      HTTPConfig      `yaml:"http"`
	Auth      AuthConfig      `yaml:"auth"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Store     StoreConfig     `yaml:"store"`
	Batch     BatchConfig     `yaml:"batch"`
	Search    SearchConfig    `yaml:"search"`
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
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// EmbeddingConfig holds the embedding provider and its throttling.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // openai, azure
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	APIVersion string `yaml:"api_version"` // azure only
	Model      string `yaml:"model"`
	// Deployment is the Azure deployment serving Model. Defaults to Model.
	Deployment string `yaml:"deployment"`
	Dimensions int    `yaml:"dimensions"`
	// QueryInstruction and DocumentInstruction prefix search text and batch text
	// for instruction-tuned models. Both empty by default.
	QueryInstruction    string      `yaml:"query_instruction"`
	DocumentInstruction string      `yaml:"document_instruction"`
	Rate                RateConfig  `yaml:"rate"`
	Retry               RetryConfig `yaml:"retry"`
	Cache               CacheConfig `yaml:"cache"`
}

// RateConfig is the shared token bucket in front of the provider.
type RateConfig struct {
	RPS   float64 `yaml:"rps"` // 0 = unlimited
	Burst int     `yaml:"burst"`
	// MinIntervalMS is the minimum time a successful call occupies its caller. Default 500, 0 disables.
	MinIntervalMS *int `yaml:"min_interval_ms"`
}

// RetryConfig controls retries of rate-limited embedding calls.
type RetryConfig struct {
	MaxAttempts       int `yaml:"max_attempts"` // 1 = no retry
	InitialIntervalMS int `yaml:"initial_interval_ms"`
	MaxIntervalMS     int `yaml:"max_interval_ms"`
}

// CacheConfig enables the embedding cache. Requires a redis or valkey store.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	TTLSec  int  `yaml:"ttl_sec"` // 0 = no expiry
}

// StoreConfig selects and configures the document store.
type StoreConfig struct {
	Driver           string         `yaml:"driver"` // cosmos, redis, valkey, postgres
	ReadinessTimeout int            `yaml:"readiness_timeout_sec"`
	Cosmos           CosmosConfig   `yaml:"cosmos"`
	Redis            RedisConfig    `yaml:"redis"`
	Postgres         PostgresConfig `yaml:"postgres"`
}

// CosmosConfig holds Azure Cosmos DB for NoSQL settings.
type CosmosConfig struct {
	Endpoint       string `yaml:"endpoint"`
	Key            string `yaml:"key"`
	Database       string `yaml:"database"`
	Container      string `yaml:"container"`
	PartitionField string `yaml:"partition_field"` // container partition key path without "/"
}

// RedisConfig holds Redis and Valkey settings.
type RedisConfig struct {
	Addrs     []string `yaml:"addrs"`
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
	DB        int      `yaml:"db"`
	Index     string   `yaml:"index"`
	KeyPrefix string   `yaml:"key_prefix"`
	// ServerSort uses FT.SEARCH SORTBY. Defaults to true for redis, false for valkey.
	ServerSort *bool `yaml:"server_sort"`
}

// PostgresConfig holds pgvector settings.
type PostgresConfig struct {
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
}

// BatchConfig holds batch embedding defaults.
type BatchConfig struct {
	InputDir  string `yaml:"input_dir"`
	OutputDir string `yaml:"output_dir"`
	Pattern   string `yaml:"pattern"`
	Workers   int    `yaml:"workers"`
	// TextField is a dotted path to embed instead of the whole document.
	TextField string `yaml:"text_field"`
}

// SearchConfig holds search defaults.
type SearchConfig struct {
	DefaultStrategy string `yaml:"default_strategy"`
	DefaultLimit    int    `yaml:"default_limit"`
	MaxLimit        int    `yaml:"max_limit"`
	PartitionField  string `yaml:"partition_field"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads the env file, then the YAML file at path with ${VAR} expansion.
func LoadFile(configPath string) (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

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

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// loadEnvFile exports variables from the env file without overriding the process environment.
// A missing default file is not an error; a missing explicitly named one is.
func loadEnvFile() error {
	path, explicit := os.LookupEnv(EnvFileVar)
	if !explicit || path == "" {
		path, explicit = DefaultEnvFile, false
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}

	c.applyEmbeddingDefaults()
	c.applyStoreDefaults()

	if c.Batch.Pattern == "" {
		c.Batch.Pattern = "*.json"
	}
	if c.Batch.Workers <= 0 {
		c.Batch.Workers = 1
	}
	if c.Search.DefaultStrategy == "" {
		c.Search.DefaultStrategy = string(strategy.Ordered)
	}
	if c.Search.DefaultLimit <= 0 {
		c.Search.DefaultLimit = 10
	}
	if c.Search.MaxLimit <= 0 {
		c.Search.MaxLimit = 1000
	}
	if c.Search.PartitionField == "" {
		c.Search.PartitionField = domain.DefaultPartitionField
	}
}

func (c *Config) applyEmbeddingDefaults() {
	e := &c.Embedding
	if e.Provider == "" {
		e.Provider = ProviderOpenAI
	}
	if e.Model == "" {
		e.Model = "text-embedding-ada-002"
	}
	if e.Provider == ProviderAzure {
		if e.Deployment == "" {
			e.Deployment = e.Model
		}
		if e.APIVersion == "" {
			e.APIVersion = "2024-02-01"
		}
	}
	if e.Rate.Burst <= 0 {
		e.Rate.Burst = 1
	}
	if e.Rate.MinIntervalMS == nil {
		ms := 500
		e.Rate.MinIntervalMS = &ms
	}
	if e.Retry.MaxAttempts <= 0 {
		e.Retry.MaxAttempts = 1
	}
	if e.Retry.InitialIntervalMS <= 0 {
		e.Retry.InitialIntervalMS = 1000
	}
	if e.Retry.MaxIntervalMS <= 0 {
		e.Retry.MaxIntervalMS = 30000
	}
}

func (c *Config) applyStoreDefaults() {
	s := &c.Store
	if s.Driver == "" {
		s.Driver = DriverCosmos
	}
	if s.ReadinessTimeout <= 0 {
		s.ReadinessTimeout = 10
	}
	if s.Cosmos.PartitionField == "" {
		s.Cosmos.PartitionField = domain.DefaultPartitionField
	}
	if s.Redis.ServerSort == nil {
		sort := s.Driver == DriverRedis
		s.Redis.ServerSort = &sort
	}
	if s.Postgres.Table == "" {
		s.Postgres.Table = "documents"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if err := c.Embedding.validate(); err != nil {
		return err
	}
	if err := c.Store.validate(); err != nil {
		return err
	}
	if c.Batch.Workers < 1 {
		return fmt.Errorf("batch.workers must be at least 1, got %d", c.Batch.Workers)
	}
	if _, err := strategy.Parse(c.Search.DefaultStrategy); err != nil {
		return fmt.Errorf("search.default_strategy: %w", err)
	}
	if c.Search.DefaultLimit > c.Search.MaxLimit {
		return fmt.Errorf("search.default_limit %d exceeds search.max_limit %d",
			c.Search.DefaultLimit, c.Search.MaxLimit)
	}
	return nil
}

func (e *EmbeddingConfig) validate() error {
	switch e.Provider {
	case ProviderOpenAI:
	case ProviderAzure:
		if e.BaseURL == "" {
			return fmt.Errorf("embedding.base_url is required for the azure provider")
		}
	default:
		return fmt.Errorf("embedding.provider must be %q or %q, got %q", ProviderOpenAI, ProviderAzure, e.Provider)
	}
	if e.APIKey == "" {
		return fmt.Errorf("embedding.api_key is required")
	}
	if e.Dimensions < 0 {
		return fmt.Errorf("embedding.dimensions must not be negative, got %d", e.Dimensions)
	}
	if e.Rate.RPS < 0 {
		return fmt.Errorf("embedding.rate.rps must not be negative, got %v", e.Rate.RPS)
	}
	if e.Rate.MinIntervalMS != nil && *e.Rate.MinIntervalMS < 0 {
		return fmt.Errorf("embedding.rate.min_interval_ms must not be negative, got %d", *e.Rate.MinIntervalMS)
	}
	return nil
}

func (s *StoreConfig) validate() error {
	switch s.Driver {
	case DriverCosmos:
		if s.Cosmos.Endpoint == "" || s.Cosmos.Key == "" {
			return fmt.Errorf("store.cosmos.endpoint and store.cosmos.key are required")
		}
		if s.Cosmos.Database == "" || s.Cosmos.Container == "" {
			return fmt.Errorf("store.cosmos.database and store.cosmos.container are required")
		}
	case DriverRedis, DriverValkey:
		if len(s.Redis.Addrs) == 0 {
			return fmt.Errorf("store.redis.addrs is required")
		}
	case DriverPostgres:
		if s.Postgres.DSN == "" {
			return fmt.Errorf("store.postgres.dsn is required")
		}
	default:
		return fmt.Errorf("store.driver must be one of cosmos, redis, valkey, postgres, got %q", s.Driver)
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
