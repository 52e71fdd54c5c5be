package config

const (
	DefaultBaseURL      = "https://reqres.in/api/test-suite/collections/users/"
	DefaultAPIKeyHeader = "x-api-key"
	DefaultTimeoutMs    = 30000
	DefaultLogLevel     = "info"
	DefaultLogDir       = "logs"
	DefaultTestDataDir  = "test-data"
	DefaultConcurrency  = 5
)

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		BaseURL:      DefaultBaseURL,
		APIKeyHeader: DefaultAPIKeyHeader,
		Timeout:      DefaultTimeoutMs,
		LogLevel:     DefaultLogLevel,
		LogDir:       DefaultLogDir,
		TestDataDir:  DefaultTestDataDir,
		ValidateSSL:  BoolPtr(true),
		Reporters:    []string{"console"},
		Parallel:     BoolPtr(false),
		Concurrency:  DefaultConcurrency,
		Bail:         BoolPtr(false),
		NoColor:      BoolPtr(false),
	}
}
