package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the cinesim server configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Catalog    CatalogConfig    `yaml:"catalog"`
	Similarity SimilarityConfig `yaml:"similarity"`
	Search     SearchConfig     `yaml:"search"`
	Analysis   AnalysisConfig   `yaml:"analysis"`
	Remote     RemoteConfig     `yaml:"remote"`
	Session    SessionConfig    `yaml:"session"`
	Tracing    TracingConfig    `yaml:"tracing"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
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
	Port           int `yaml:"port"`
	ReadTimeoutSec int `yaml:"read_timeout_sec"`
	ShutdownSec    int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds Redis connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// EmbeddingConfig holds query embedding settings. An empty APIKey disables semantic search.
type EmbeddingConfig struct {
	Provider         string  `yaml:"provider"`
	APIKey           string  `yaml:"api_key"`
	BaseURL          string  `yaml:"base_url"`
	Model            string  `yaml:"model"`
	Dimensions       int     `yaml:"dimensions"`
	QueryInstruction string  `yaml:"query_instruction"`
	Cache            *bool   `yaml:"cache_enabled"`
	TimeoutSec       int     `yaml:"timeout_sec"`
	RatePerSec       float64 `yaml:"rate_per_sec"` // 0 disables local throttling
	Burst            int     `yaml:"burst"`
}

// CatalogConfig points at the item metadata file (.json, .csv or .parquet).
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// SimilarityConfig tunes backend similarity scoring.
type SimilarityConfig struct {
	TopN                 int      `yaml:"top_n"`
	RecommendLimit       int      `yaml:"recommend_limit"`
	MissingModalityScore *float64 `yaml:"missing_modality_score"`
	CacheSize            int      `yaml:"cache_size"`
	LoadConcurrency      int      `yaml:"load_concurrency"`
	LoadChunkSize        int      `yaml:"load_chunk_size"`
}

// DefaultMissingModalityScore is the neutral score of an axis without vectors.
const DefaultMissingModalityScore = 0.5

// MissingScore returns the configured missing-axis score, or the neutral default when unset.
// An explicit 0 is kept.
func (s SimilarityConfig) MissingScore() float64 {
	if s.MissingModalityScore == nil {
		return DefaultMissingModalityScore
	}
	return *s.MissingModalityScore
}

// SearchConfig tunes search-as-you-type.
type SearchConfig struct {
	MinQueryLength    int     `yaml:"min_query_length"`
	MaxResults        int     `yaml:"max_results"`
	PageSize          int     `yaml:"page_size"`
	FuzzyThreshold    float64 `yaml:"fuzzy_threshold"`
	TitleWeight       float64 `yaml:"title_weight"`
	DescriptionWeight float64 `yaml:"description_weight"`
}

// AnalysisConfig holds analysis endpoint settings.
type AnalysisConfig struct {
	CacheTTLSec int `yaml:"cache_ttl_sec"`
}

// RemoteConfig points session controllers at an external cinesim backend.
// An empty BaseURL makes sessions call the in-process services.
type RemoteConfig struct {
	BaseURL    string  `yaml:"base_url"`
	APIKey     string  `yaml:"api_key"`
	TimeoutSec int     `yaml:"timeout_sec"`
	RatePerSec float64 `yaml:"rate_per_sec"`
	Burst      int     `yaml:"burst"`
}

// SessionConfig holds websocket session settings.
type SessionConfig struct {
	WriteTimeoutSec int      `yaml:"write_timeout_sec"`
	PingIntervalSec int      `yaml:"ping_interval_sec"`
	MaxMessageBytes int64    `yaml:"max_message_bytes"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ServiceName  string  `yaml:"service_name"`
	Endpoint     string  `yaml:"endpoint"`
	Insecure     bool    `yaml:"insecure"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
// A .env file in the working directory, if present, is loaded first.
func Load(env string) (Config, error) {
	_ = godotenv.Load() // optional; real environment wins

	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands env variables, decodes YAML, applies defaults and validates.
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

// CacheEnabled reports whether query embeddings are cached in the store (default true).
func (e EmbeddingConfig) CacheEnabled() bool {
	return e.Cache == nil || *e.Cache
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 10
	}
	if c.Embedding.Burst <= 0 {
		c.Embedding.Burst = 5
	}
	if c.Similarity.TopN <= 0 {
		c.Similarity.TopN = 20
	}
	if c.Similarity.RecommendLimit <= 0 {
		c.Similarity.RecommendLimit = 8
	}
	if c.Similarity.MissingModalityScore == nil {
		score := DefaultMissingModalityScore
		c.Similarity.MissingModalityScore = &score
	}
	if c.Similarity.CacheSize <= 0 {
		c.Similarity.CacheSize = 256
	}
	if c.Similarity.LoadConcurrency <= 0 {
		c.Similarity.LoadConcurrency = 4
	}
	if c.Similarity.LoadChunkSize <= 0 {
		c.Similarity.LoadChunkSize = 100
	}
	if c.Search.MinQueryLength <= 0 {
		c.Search.MinQueryLength = 2
	}
	if c.Search.MaxResults <= 0 {
		c.Search.MaxResults = 10
	}
	if c.Search.PageSize <= 0 {
		c.Search.PageSize = 12
	}
	if c.Search.FuzzyThreshold <= 0 {
		c.Search.FuzzyThreshold = 0.4
	}
	if c.Search.TitleWeight <= 0 && c.Search.DescriptionWeight <= 0 {
		c.Search.TitleWeight = 0.8
		c.Search.DescriptionWeight = 0.2
	}
	if c.Analysis.CacheTTLSec <= 0 {
		c.Analysis.CacheTTLSec = 600
	}
	if c.Remote.TimeoutSec <= 0 {
		c.Remote.TimeoutSec = 5
	}
	if c.Remote.RatePerSec <= 0 {
		c.Remote.RatePerSec = 20
	}
	if c.Remote.Burst <= 0 {
		c.Remote.Burst = 10
	}
	if c.Session.WriteTimeoutSec <= 0 {
		c.Session.WriteTimeoutSec = 10
	}
	if c.Session.PingIntervalSec <= 0 {
		c.Session.PingIntervalSec = 30
	}
	if c.Session.MaxMessageBytes <= 0 {
		c.Session.MaxMessageBytes = 4096
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "cinesim"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if s := c.Similarity.MissingScore(); s < 0 || s > 1 {
		return fmt.Errorf("similarity.missing_modality_score must be in [0,1], got %g", s)
	}
	if t := c.Search.FuzzyThreshold; t > 1 {
		return fmt.Errorf("search.fuzzy_threshold must be in (0,1], got %g", t)
	}
	if c.Search.TitleWeight < 0 || c.Search.DescriptionWeight < 0 {
		return fmt.Errorf("search field weights must not be negative")
	}
	if c.Search.MinQueryLength > 64 {
		return fmt.Errorf("search.min_query_length must be at most 64, got %d", c.Search.MinQueryLength)
	}
	if c.Embedding.RatePerSec < 0 {
		return fmt.Errorf("embedding.rate_per_sec must not be negative")
	}
	if r := c.Tracing.SamplingRate; r < 0 || r > 1 {
		return fmt.Errorf("tracing.sampling_rate must be in [0,1], got %g", r)
	}
	if c.Remote.BaseURL != "" &&
		!strings.HasPrefix(c.Remote.BaseURL, "http://") && !strings.HasPrefix(c.Remote.BaseURL, "https://") {
		return fmt.Errorf("remote.base_url must be an http(s) URL, got %q", c.Remote.BaseURL)
	}
	switch c.Embedding.Provider {
	case "", "openai", "nebius", "ollama":
		// ok
	default:
		return fmt.Errorf(
			"embedding.provider must be one of openai, nebius, ollama, got %q", c.Embedding.Provider,
		)
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
