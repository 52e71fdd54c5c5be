package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/apiharness/packages/core/env"
	"github.com/abdul-hamid-achik/apiharness/packages/logging"
)

// Config is built once at startup and passed to the components that need it.
type Config struct {
	BaseURL      string            `json:"baseUrl,omitempty"`
	APIKey       string            `json:"apiKey,omitempty"`
	APIKeyHeader string            `json:"apiKeyHeader,omitempty"`
	Timeout      int               `json:"timeout,omitempty"` // milliseconds
	LogLevel     string            `json:"logLevel,omitempty"`
	LogDir       string            `json:"logDir,omitempty"`
	TestDataDir  string            `json:"testDataDir,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`   // Default headers for all requests
	Variables    map[string]any    `json:"variables,omitempty"` // Values for {{name}} placeholders
	Proxy        string            `json:"proxy,omitempty"`
	ValidateSSL  *bool             `json:"validateSSL,omitempty"`
	Reporters    []string          `json:"reporters,omitempty"`
	RateLimit    float64           `json:"rateLimit,omitempty"` // requests per second, 0 for no limit
	Parallel     *bool             `json:"parallel,omitempty"`
	Concurrency  int               `json:"concurrency,omitempty"`
	Bail         *bool             `json:"bail,omitempty"`
	NoColor      *bool             `json:"noColor,omitempty"`
}

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool {
	return &b
}

func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetValidateSSL returns the validate SSL setting, defaulting to true
func (c *Config) GetValidateSSL() bool {
	return getBool(c.ValidateSSL, true)
}

func (c *Config) GetParallel() bool {
	return getBool(c.Parallel, false)
}

func (c *Config) GetBail() bool {
	return getBool(c.Bail, false)
}

func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// TimeoutDuration returns Timeout as a duration.
func (c *Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}

// Secrets lists the values the logger must redact.
func (c *Config) Secrets() []string {
	if c.APIKey == "" {
		return nil
	}
	return []string{c.APIKey}
}

// ConfigFilenames contains the possible config file names
var ConfigFilenames = []string{
	".apiharness.json",
	"apiharness.json",
}

// Environment variables read by ApplyEnv.
const (
	EnvBaseURL      = "BASE_URL"
	EnvAPIKey       = "API_KEY"
	EnvLegacyAPIKey = "REQRES_API_KEY"
	EnvTimeout      = "TIMEOUT"
	EnvLogLevel     = "LOG_LEVEL"
	EnvLogDir       = "LOG_DIR"
	EnvTestDataDir  = "TEST_DATA_DIR"
	DefaultEnvFile  = ".env"
	// EnvVarPrefix marks environment variables that become {{name}} values,
	// e.g. APIHARNESS_VAR_userId sets {{userId}}.
	EnvVarPrefix = "APIHARNESS_VAR_"
)

// LoadOptions controls Load.
type LoadOptions struct {
	// ConfigPath is an explicit config file. When empty, Dir is searched.
	ConfigPath string
	// EnvFile is an explicit .env file. When empty, Dir/.env is used if present.
	EnvFile string
	// Dir is searched for config and .env files. Defaults to ".".
	Dir string
	// LookupEnv reads the environment. Defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// Load applies defaults, the config file, the .env file and the environment,
// then validates the result.
func Load(opts LoadOptions) (*Config, error) {
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if opts.LookupEnv == nil {
		opts.LookupEnv = os.LookupEnv
	}

	var (
		cfg *Config
		err error
	)
	if opts.ConfigPath != "" {
		cfg, err = loadConfigFromFile(opts.ConfigPath)
	} else {
		cfg, err = FindAndLoadConfig(opts.Dir)
	}
	if err != nil {
		return nil, err
	}

	envFile := opts.EnvFile
	if envFile == "" {
		candidate := filepath.Join(opts.Dir, DefaultEnvFile)
		if _, statErr := os.Stat(candidate); statErr == nil {
			envFile = candidate
		}
	}
	if envFile != "" {
		if _, err := env.LoadAndExportDotEnv(envFile); err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(opts.LookupEnv); err != nil {
		return nil, err
	}
	if vars := env.LoadSystemEnv(EnvVarPrefix); len(vars) > 0 {
		cfg.Variables = env.MergeVariables(cfg.Variables, vars)
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return loadConfigFromFile(configPath)
		}
	}
	return DefaultConfig(), nil
}

func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	return config, nil
}

// ApplyEnv overrides fields from environment variables. API_KEY takes
// precedence over REQRES_API_KEY.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvBaseURL); ok && v != "" {
		c.BaseURL = v
	}
	if v, ok := lookup(EnvLegacyAPIKey); ok && v != "" {
		c.APIKey = v
	}
	if v, ok := lookup(EnvAPIKey); ok && v != "" {
		c.APIKey = v
	}
	if v, ok := lookup(EnvTimeout); ok && v != "" {
		ms, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s must be a number of milliseconds, got %q", EnvTimeout, v)
		}
		c.Timeout = ms
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := lookup(EnvLogDir); ok && v != "" {
		c.LogDir = v
	}
	if v, ok := lookup(EnvTestDataDir); ok && v != "" {
		c.TestDataDir = v
	}
	return nil
}

// Normalize ensures BaseURL ends with a slash so relative endpoints resolve
// beneath it.
func (c *Config) Normalize() {
	c.BaseURL = strings.TrimSpace(c.BaseURL)
	if c.BaseURL != "" && !strings.HasSuffix(c.BaseURL, "/") {
		c.BaseURL += "/"
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("base URL %q must be an absolute http or https URL", c.BaseURL))
		}
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %dms", c.Timeout))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("rate limit must not be negative, got %g", c.RateLimit))
	}
	if c.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("concurrency must not be negative, got %d", c.Concurrency))
	}

	return errors.Join(errs...)
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c

	if other.BaseURL != "" {
		result.BaseURL = other.BaseURL
	}
	if other.APIKey != "" {
		result.APIKey = other.APIKey
	}
	if other.APIKeyHeader != "" {
		result.APIKeyHeader = other.APIKeyHeader
	}
	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.LogLevel != "" {
		result.LogLevel = other.LogLevel
	}
	if other.LogDir != "" {
		result.LogDir = other.LogDir
	}
	if other.TestDataDir != "" {
		result.TestDataDir = other.TestDataDir
	}
	if other.Proxy != "" {
		result.Proxy = other.Proxy
	}
	if other.RateLimit > 0 {
		result.RateLimit = other.RateLimit
	}
	if other.Concurrency > 0 {
		result.Concurrency = other.Concurrency
	}

	// Boolean flags - only override if explicitly set in other config
	if other.ValidateSSL != nil {
		result.ValidateSSL = other.ValidateSSL
	}
	if other.Parallel != nil {
		result.Parallel = other.Parallel
	}
	if other.Bail != nil {
		result.Bail = other.Bail
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}

	if len(other.Headers) > 0 {
		headers := make(map[string]string, len(c.Headers)+len(other.Headers))
		for k, v := range c.Headers {
			headers[k] = v
		}
		for k, v := range other.Headers {
			headers[k] = v
		}
		result.Headers = headers
	}
	if len(other.Variables) > 0 {
		result.Variables = env.MergeVariables(c.Variables, other.Variables)
	}
	if len(other.Reporters) > 0 {
		result.Reporters = other.Reporters
	}

	return &result
}

// SaveConfig saves the configuration to a file
func (c *Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
