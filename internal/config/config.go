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

// Config holds the bbs API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Board     BoardConfig     `yaml:"board"`
	Logging   LoggingConfig   `yaml:"logging"`
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

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path"` // file path or ":memory:"
}

// RateLimitConfig holds write-throttling settings.
type RateLimitConfig struct {
	Driver    string   `yaml:"driver"` // memory, redis (default: memory)
	Addrs     []string `yaml:"addrs"`
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
	KeyPrefix string   `yaml:"key_prefix"`
	WindowSec int      `yaml:"window_sec"`
	Limit     int      `yaml:"limit"`
}

// BoardConfig holds posting and search settings.
type BoardConfig struct {
	VectorDim           int     `yaml:"vector_dim"`
	MaxContentLen       int     `yaml:"max_content_len"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	RecentWindow        int     `yaml:"recent_window"`
	ScanCap             int     `yaml:"scan_cap"`
	CandidatePool       int     `yaml:"candidate_pool"`
	DefaultPageSize     int     `yaml:"default_page_size"`
	MaxPageSize         int     `yaml:"max_page_size"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

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
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Path == "" {
		c.Database.Path = "bbs.db"
	}
	if c.RateLimit.Driver == "" {
		c.RateLimit.Driver = "memory"
	}
	if c.RateLimit.KeyPrefix == "" {
		c.RateLimit.KeyPrefix = "bbs:rate:"
	}
	if c.RateLimit.WindowSec <= 0 {
		c.RateLimit.WindowSec = 60
	}
	if c.RateLimit.Limit <= 0 {
		c.RateLimit.Limit = 60
	}
	if c.Board.VectorDim <= 0 {
		c.Board.VectorDim = 384
	}
	if c.Board.MaxContentLen <= 0 {
		c.Board.MaxContentLen = 10000
	}
	if c.Board.SimilarityThreshold <= 0 {
		c.Board.SimilarityThreshold = 0.85
	}
	if c.Board.RecentWindow <= 0 {
		c.Board.RecentWindow = 1000
	}
	if c.Board.ScanCap <= 0 {
		c.Board.ScanCap = 10000
	}
	if c.Board.CandidatePool <= 0 {
		c.Board.CandidatePool = 200
	}
	if c.Board.DefaultPageSize <= 0 {
		c.Board.DefaultPageSize = 20
	}
	if c.Board.MaxPageSize <= 0 {
		c.Board.MaxPageSize = 100
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.RateLimit.Driver {
	case "memory":
		// ok
	case "redis":
		if len(c.RateLimit.Addrs) == 0 {
			return fmt.Errorf("ratelimit.addrs is required for the redis driver")
		}
	default:
		return fmt.Errorf(
			"ratelimit.driver must be \"memory\" or \"redis\", got %q",
			c.RateLimit.Driver,
		)
	}
	if c.Board.SimilarityThreshold > 1 {
		return fmt.Errorf(
			"board.similarity_threshold must not exceed 1, got %g",
			c.Board.SimilarityThreshold,
		)
	}
	if c.Board.RecentWindow > c.Board.ScanCap {
		return fmt.Errorf(
			"board.recent_window (%d) must not exceed board.scan_cap (%d)",
			c.Board.RecentWindow, c.Board.ScanCap,
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
