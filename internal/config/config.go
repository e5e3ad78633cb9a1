package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Paths    PathsConfig    `yaml:"paths" envconfig:"PATHS"`
	Sync     SyncConfig     `yaml:"sync" envconfig:"SYNC"`
	Store    StoreConfig    `yaml:"store" envconfig:"STORE"`
	Security SecurityConfig `yaml:"security" envconfig:"SECURITY"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Output   string `yaml:"output" envconfig:"OUTPUT"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	DataDir          string `yaml:"data_dir" envconfig:"DATA_DIR"`
	TransactionsFile string `yaml:"transactions_file" envconfig:"TRANSACTIONS_FILE"`
	InfoFile         string `yaml:"info_file" envconfig:"INFO_FILE"`
}

// SyncConfig controls the movement-sync batch job.
type SyncConfig struct {
	RegistryURL        string        `yaml:"registry_url" envconfig:"REGISTRY_URL"`
	PageSize           int           `yaml:"page_size" envconfig:"PAGE_SIZE" validate:"min=1"`
	UpsertBatchSize    int           `yaml:"upsert_batch_size" envconfig:"UPSERT_BATCH_SIZE" validate:"min=1"`
	MovementSampleSize int           `yaml:"movement_sample_size" envconfig:"MOVEMENT_SAMPLE_SIZE" validate:"min=0"`
	FetchTimeout       time.Duration `yaml:"fetch_timeout" envconfig:"FETCH_TIMEOUT"`
	RequestsPerSecond  float64       `yaml:"requests_per_second" envconfig:"REQUESTS_PER_SECOND"`
}

// StoreConfig holds connection settings for the hosted relational store.
// URL and ServiceKey may be empty in the file-based deployment variant;
// the sync entry point treats their absence as a configuration failure,
// which is distinct from an authentication failure.
type StoreConfig struct {
	URL        string        `yaml:"url" envconfig:"URL"`
	ServiceKey string        `yaml:"service_key" envconfig:"SERVICE_KEY"`
	Timeout    time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	SyncAPIKey string          `yaml:"sync_api_key" envconfig:"SYNC_API_KEY"`
	RateLimit  RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "console",
			FilePath: "logs/app.log",
		},
		Paths: PathsConfig{
			DataDir:          "data",
			TransactionsFile: "CEASalespersonsPropertyTransactionRecordsresidential.csv",
			InfoFile:         "CEASalespersonInformation.csv",
		},
		Sync: SyncConfig{
			RegistryURL:        "https://data.gov.sg/api/action/datastore_search?resource_id=d_07c63be0f37e6e59c07a4ddc2fd87fcb",
			PageSize:           5000,
			UpsertBatchSize:    1000,
			MovementSampleSize: 10,
			FetchTimeout:       60 * time.Second,
			RequestsPerSecond:  4,
		},
		Store: StoreConfig{
			Timeout: 30 * time.Second,
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     100,
				Burst:   50,
			},
		},
	}
}

// Load builds the configuration in three layers: built-in defaults, then
// an optional YAML config file, then CEA_-prefixed environment
// variables. Later layers win.
func Load() (*Config, error) {
	cfg := Default()

	configFile := configFilePath()
	if _, err := os.Stat(configFile); err == nil {
		if err := loadFromFile(configFile, &cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process("CEA", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// HasStoreCredentials reports whether the hosted-store connection is
// configured. The file-based variant runs without it.
func (c *Config) HasStoreCredentials() bool {
	return c.Store.URL != "" && c.Store.ServiceKey != ""
}

// Validate checks the configuration invariants.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

// configFilePath returns the config file location, overridable by env.
func configFilePath() string {
	if path := os.Getenv("CEA_CONFIG_FILE"); path != "" {
		return path
	}
	return "config.yaml"
}

// loadFromFile overlays YAML file values onto cfg. Fields the file does
// not mention keep their current values.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}
