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

// Config holds the cortex core configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Logging   LoggingConfig   `yaml:"logging"`
	Auth      AuthConfig      `yaml:"auth"`
	Storage   StorageConfig   `yaml:"storage"`
	Backends  []BackendConfig `yaml:"backends"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Templates TemplatesConfig `yaml:"templates"`
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

// StorageConfig holds vector index storage settings.
type StorageConfig struct {
	Driver           string   `yaml:"driver"` // file, redis (default: file)
	DataDir          string   `yaml:"data_dir"`
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	KeyPrefix        string   `yaml:"key_prefix"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	HNSWM            int      `yaml:"hnsw_m"`
	HNSWEFConstruct  int      `yaml:"hnsw_ef_construction"`
}

// BackendConfig holds settings for one inference backend. Backends are tried
// in declaration order; the first to succeed serves the request.
type BackendConfig struct {
	Kind           string `yaml:"kind"` // local, cloud
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	EmbeddingModel string `yaml:"embedding_model"`
	TimeoutSec     int    `yaml:"timeout_sec"`
}

// EmbeddingConfig holds embedding settings.
type EmbeddingConfig struct {
	Dimensions     int    `yaml:"dimensions"`
	MaxInputTokens int    `yaml:"max_input_tokens"`
	Cache          bool   `yaml:"cache"`
	Source         string `yaml:"source"` // what to embed on store_result: output, note
}

// TemplatesConfig holds prompt template settings.
type TemplatesConfig struct {
	Path string `yaml:"path"`
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
		// Backend calls ride on the response writer; give them headroom.
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "file"
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = "data"
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "cortex:"
	}
	if c.Storage.ReadinessTimeout <= 0 {
		c.Storage.ReadinessTimeout = 10
	}
	if c.Storage.HNSWM <= 0 {
		c.Storage.HNSWM = 32
	}
	if c.Storage.HNSWEFConstruct <= 0 {
		c.Storage.HNSWEFConstruct = 400
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 768
	}
	if c.Embedding.MaxInputTokens <= 0 {
		c.Embedding.MaxInputTokens = 8192
	}
	if c.Embedding.Source == "" {
		c.Embedding.Source = "output"
	}
	if c.Templates.Path == "" {
		c.Templates.Path = "templates.yaml"
	}
	for i := range c.Backends {
		if c.Backends[i].TimeoutSec <= 0 {
			c.Backends[i].TimeoutSec = 30
		}
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Backends) == 0 {
		return fmt.Errorf("at least one backend is required")
	}
	for i, b := range c.Backends {
		switch b.Kind {
		case "local":
			if b.Host == "" && b.BaseURL == "" {
				return fmt.Errorf("backends[%d]: local backend requires host or base_url", i)
			}
		case "cloud":
			if b.APIKey == "" {
				return fmt.Errorf("backends[%d]: cloud backend requires api_key", i)
			}
		default:
			return fmt.Errorf("backends[%d]: kind must be \"local\" or \"cloud\", got %q", i, b.Kind)
		}
	}
	switch c.Storage.Driver {
	case "file":
		if c.Storage.DataDir == "" {
			return fmt.Errorf("storage.data_dir is required for the file driver")
		}
	case "redis":
		if len(c.Storage.Addrs) == 0 {
			return fmt.Errorf("storage.addrs is required for the redis driver")
		}
	default:
		return fmt.Errorf("storage.driver must be \"file\" or \"redis\", got %q", c.Storage.Driver)
	}
	switch c.Embedding.Source {
	case "output", "note":
		// ok
	default:
		return fmt.Errorf("embedding.source must be \"output\" or \"note\", got %q", c.Embedding.Source)
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
