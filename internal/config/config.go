package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the xignal configuration shared by the API server and the calibration CLI.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Database    DatabaseConfig    `yaml:"database"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Catalog     CatalogConfig     `yaml:"catalog"`
	Mention     MentionConfig     `yaml:"mention"`
	Ranking     RankingConfig     `yaml:"ranking"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Weights     WeightsConfig     `yaml:"weights"`
	Logging     LoggingConfig     `yaml:"logging"`
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
	// AdminTokens guard POST /v1/weights/reload. Empty disables the guard.
	AdminTokens []string `yaml:"admin_tokens"`
}

// DatabaseConfig holds vector index / embedding store settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, postgres (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	DSN              string   `yaml:"dsn"` // postgres only
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	KeyPrefix        string   `yaml:"key_prefix"`
	HNSWM            int      `yaml:"hnsw_m"`
	HNSWEFConstruct  int      `yaml:"hnsw_ef_construction"`
}

// EmbeddingConfig holds encoder settings for both embedding spaces.
type EmbeddingConfig struct {
	Providers map[string]ProviderConfig `yaml:"providers"`
	Spaces    SpacesConfig              `yaml:"spaces"`
	Cache     CacheConfig               `yaml:"cache"`
}

// ProviderConfig holds embedding provider settings.
type ProviderConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// SpacesConfig holds one encoder per embedding space.
type SpacesConfig struct {
	EmbedA SpaceConfig `yaml:"embed_a"`
	EmbedB SpaceConfig `yaml:"embed_b"`
}

// SpaceConfig describes the encoder of one embedding space.
type SpaceConfig struct {
	Provider         string `yaml:"provider"`
	Model            string `yaml:"model"`
	Dimensions       int    `yaml:"dimensions"`
	QueryInstruction string `yaml:"query_instruction"`
}

// CacheConfig selects the query embedding cache.
type CacheConfig struct {
	Backend string `yaml:"backend"` // valkey, memory, none (default: memory)
	Size    int    `yaml:"size"`    // memory backend entries
	TTLSec  int    `yaml:"ttl_sec"` // valkey backend, 0 = no expiry
}

// CatalogConfig points at the entity catalog sources.
type CatalogConfig struct {
	CSVPath     string `yaml:"csv_path"`
	KeywordDir  string `yaml:"keyword_dir"`
	IndustryDir string `yaml:"industry_dir"`
	AliasesPath string `yaml:"aliases_path"`
}

// MentionConfig tunes the mention detector. Unset fields keep the detector defaults.
type MentionConfig struct {
	AmbiguousSymbols     []string `yaml:"ambiguous_symbols"`
	ShortWhitelist       []string `yaml:"short_whitelist"`
	MinTermLength        int      `yaml:"min_term_length"`
	CaseSensitiveSymbols *bool    `yaml:"case_sensitive_symbols"`
}

// RankingConfig tunes the online ranking pipeline.
type RankingConfig struct {
	DefaultTopK         int    `yaml:"default_top_k"`
	MaxTopK             int    `yaml:"max_top_k"`
	CandidateMultiplier int    `yaml:"candidate_multiplier"`
	RetrievalTimeoutMs  int    `yaml:"retrieval_timeout_ms"`
	EncodeTimeoutMs     int    `yaml:"encode_timeout_ms"`
	KeywordLimit        int    `yaml:"keyword_limit"`
	DefaultOrder        string `yaml:"default_order"` // score, mention_first
	FallbackToMentions  bool   `yaml:"fallback_to_mentions"`
}

// CalibrationConfig tunes the offline weight search.
type CalibrationConfig struct {
	ValidationPaths []string `yaml:"validation_paths"`
	Split           string   `yaml:"split"`
	MaxPerSource    int      `yaml:"max_per_source"`
	Trials          int      `yaml:"trials"`
	StartupTrials   int      `yaml:"startup_trials"`
	Candidates      int      `yaml:"candidates"`
	Gamma           float64  `yaml:"gamma"`
	TopK            int      `yaml:"top_k"`
	Seed            uint64   `yaml:"seed"`
	Workers         int      `yaml:"workers"`
	MinImprovement  float64  `yaml:"min_improvement"`
	TimeoutSec      int      `yaml:"timeout_sec"`
}

// WeightsConfig locates the calibrated weight artifact.
type WeightsConfig struct {
	Path string `yaml:"path"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads, expands, defaults and validates a configuration file.
func LoadFile(configPath string) (Config, error) {
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

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "valkey"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Database.KeyPrefix == "" {
		c.Database.KeyPrefix = "xignal:"
	}
	if c.Database.HNSWM <= 0 {
		c.Database.HNSWM = 16
	}
	if c.Database.HNSWEFConstruct <= 0 {
		c.Database.HNSWEFConstruct = 200
	}
	if c.Embedding.Cache.Backend == "" {
		c.Embedding.Cache.Backend = "memory"
	}
	if c.Embedding.Cache.Size <= 0 {
		c.Embedding.Cache.Size = 4096
	}
	c.applyRankingDefaults()
	c.applyCalibrationDefaults()
	if c.Weights.Path == "" {
		c.Weights.Path = "data/weights.json"
	}
}

func (c *Config) applyRankingDefaults() {
	if c.Ranking.DefaultTopK <= 0 {
		c.Ranking.DefaultTopK = 5
	}
	if c.Ranking.MaxTopK <= 0 {
		c.Ranking.MaxTopK = 50
	}
	if c.Ranking.CandidateMultiplier <= 0 {
		c.Ranking.CandidateMultiplier = 3
	}
	if c.Ranking.RetrievalTimeoutMs <= 0 {
		c.Ranking.RetrievalTimeoutMs = 500
	}
	if c.Ranking.EncodeTimeoutMs <= 0 {
		c.Ranking.EncodeTimeoutMs = 5000
	}
	if c.Ranking.KeywordLimit <= 0 {
		c.Ranking.KeywordLimit = 10
	}
	if c.Ranking.DefaultOrder == "" {
		c.Ranking.DefaultOrder = "score"
	}
}

func (c *Config) applyCalibrationDefaults() {
	if c.Calibration.Split == "" {
		c.Calibration.Split = "valid"
	}
	if c.Calibration.Trials <= 0 {
		c.Calibration.Trials = 50
	}
	if c.Calibration.StartupTrials <= 0 {
		c.Calibration.StartupTrials = 10
	}
	if c.Calibration.Candidates <= 0 {
		c.Calibration.Candidates = 24
	}
	if c.Calibration.Gamma <= 0 {
		c.Calibration.Gamma = 0.25
	}
	if c.Calibration.TopK <= 0 {
		c.Calibration.TopK = 5
	}
	if c.Calibration.Workers <= 0 {
		c.Calibration.Workers = 4
	}
	if c.Calibration.MinImprovement <= 0 {
		c.Calibration.MinImprovement = 1e-6
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case "valkey":
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for the valkey driver")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("database.driver must be \"valkey\" or \"postgres\", got %q", c.Database.Driver)
	}
	for name, sp := range map[string]SpaceConfig{"embed_a": c.Embedding.Spaces.EmbedA, "embed_b": c.Embedding.Spaces.EmbedB} {
		if sp.Model == "" {
			return fmt.Errorf("embedding.spaces.%s.model is required", name)
		}
		if _, ok := c.Embedding.Providers[sp.Provider]; !ok {
			return fmt.Errorf("embedding.spaces.%s.provider %q is not configured", name, sp.Provider)
		}
	}
	switch c.Embedding.Cache.Backend {
	case "valkey", "memory", "none":
	default:
		return fmt.Errorf("embedding.cache.backend must be valkey, memory or none, got %q", c.Embedding.Cache.Backend)
	}
	if c.Embedding.Cache.Backend == "valkey" && c.Database.Driver != "valkey" {
		return fmt.Errorf("embedding.cache.backend \"valkey\" requires database.driver \"valkey\"")
	}
	if c.Ranking.CandidateMultiplier < 3 {
		return fmt.Errorf("ranking.candidate_multiplier must be >= 3, got %d", c.Ranking.CandidateMultiplier)
	}
	if c.Ranking.DefaultTopK > c.Ranking.MaxTopK {
		return fmt.Errorf("ranking.default_top_k (%d) exceeds ranking.max_top_k (%d)",
			c.Ranking.DefaultTopK, c.Ranking.MaxTopK)
	}
	switch c.Ranking.DefaultOrder {
	case "score", "mention_first":
	default:
		return fmt.Errorf("ranking.default_order must be score or mention_first, got %q", c.Ranking.DefaultOrder)
	}
	if c.Calibration.StartupTrials > c.Calibration.Trials {
		return fmt.Errorf("calibration.startup_trials (%d) exceeds calibration.trials (%d)",
			c.Calibration.StartupTrials, c.Calibration.Trials)
	}
	if c.Calibration.Gamma >= 1 {
		return fmt.Errorf("calibration.gamma must be in (0, 1), got %g", c.Calibration.Gamma)
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
