package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	applypg "github.com/marmos91/dirmigrate/pkg/applyset/postgres"
	"github.com/marmos91/dirmigrate/pkg/privacy"
	"github.com/marmos91/dirmigrate/pkg/roles"
	"github.com/marmos91/dirmigrate/pkg/userservice/store"
)

// EnvPrefix prefixes every environment variable override.
const EnvPrefix = "DIRMIGRATE"

// EnvFiles are loaded into the process environment before configuration
// is read, in order. Variables already set are never overwritten, so
// .env.local only fills what .env left unset.
var EnvFiles = []string{".env", ".env.local"}

// Config represents the dirmigrate configuration.
//
// It is loaded once at startup and treated as immutable afterwards.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (DIRMIGRATE_*), including .env files
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Metrics controls Prometheus metrics and the Pushgateway upload
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Directory locates the Cognito user pool to migrate from
	Directory DirectoryConfig `mapstructure:"directory" yaml:"directory"`

	// Apply selects the legacy apply dataset joined by stable id
	Apply ApplyConfig `mapstructure:"apply" yaml:"apply"`

	// Database configures the user service database written to
	Database store.Config `mapstructure:"database" yaml:"database"`

	// Privacy configures contact protection (envelope encryption + lookup hash)
	Privacy privacy.Config `mapstructure:"privacy" yaml:"privacy"`

	// Migration tunes the run itself
	Migration MigrationConfig `mapstructure:"migration" yaml:"migration"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
// When enabled, spans are exported to an OTLP-compatible collector.
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled
	// Default: false (opt-in for telemetry)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	// Default: "localhost:4317" (standard OTLP gRPC port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use insecure (non-TLS) connection
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server endpoint (URL)
	// Default: "http://localhost:4040"
	Endpoint string `mapstructure:"endpoint" validate:"omitempty,url" yaml:"endpoint"`

	// ProfileTypes specifies which profile types to collect
	ProfileTypes []string `mapstructure:"profile_types" validate:"dive,oneof=cpu alloc_objects alloc_space inuse_objects inuse_space goroutines mutex_count mutex_duration block_count block_duration" yaml:"profile_types"`
}

// MetricsConfig configures Prometheus metrics.
// When Enabled is false, no metrics are collected (zero overhead).
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// PushURL is the Pushgateway the run pushes to when it ends.
	PushURL string `mapstructure:"push_url" validate:"omitempty,url" yaml:"push_url,omitempty"`

	// Job is the Pushgateway job name
	// Default: "dirmigrate"
	Job string `mapstructure:"job" yaml:"job"`
}

// DirectoryConfig locates the Cognito user pool.
type DirectoryConfig struct {
	// PoolID is the Cognito user pool id (e.g., "eu-west-2_AbCdEf123")
	PoolID string `mapstructure:"pool_id" yaml:"pool_id"`

	Region          string `mapstructure:"region" yaml:"region"`
	Endpoint        string `mapstructure:"endpoint" validate:"omitempty,url" yaml:"endpoint,omitempty"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key,omitempty"`

	// PageSize is the ListUsers page size
	// Default: 60 (the Cognito maximum)
	PageSize int32 `mapstructure:"page_size" validate:"omitempty,min=1,max=60" yaml:"page_size"`

	// FeaturesAttribute names the attribute carrying dept/user tokens
	// Default: "custom:features"
	FeaturesAttribute string `mapstructure:"features_attribute" yaml:"features_attribute"`

	// PickAttributes lists additional attributes logged with each identity
	PickAttributes []string `mapstructure:"pick_attributes" yaml:"pick_attributes,omitempty"`
}

// Apply dataset source types.
const (
	ApplyNone     = "none"
	ApplyPostgres = "postgres"
	ApplyS3       = "s3"
)

// ApplyConfig selects the legacy apply dataset.
type ApplyConfig struct {
	// Type is one of none, postgres, s3
	// Default: "none"
	Type string `mapstructure:"type" validate:"required,oneof=none postgres s3" yaml:"type"`

	// Postgres reads the dataset straight from the apply database
	Postgres applypg.Config `mapstructure:"postgres" yaml:"postgres"`

	// S3 reads a CSV export of the dataset
	S3 ApplyS3Config `mapstructure:"s3" yaml:"s3"`
}

// ApplyS3Config locates the CSV export object.
type ApplyS3Config struct {
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	Key             string `mapstructure:"key" yaml:"key"`
	Region          string `mapstructure:"region" yaml:"region"`
	Endpoint        string `mapstructure:"endpoint" validate:"omitempty,url" yaml:"endpoint,omitempty"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key,omitempty"`
	ForcePathStyle  bool   `mapstructure:"force_path_style" yaml:"force_path_style"`
}

// MigrationConfig tunes a run.
type MigrationConfig struct {
	// DryRun journals statements instead of executing them
	DryRun bool `mapstructure:"dry_run" yaml:"dry_run"`

	// Workers bounds concurrent store writes
	// Default: 8
	Workers int `mapstructure:"workers" validate:"omitempty,min=1,max=256" yaml:"workers"`

	// PageTimeout bounds each directory page fetch
	// Default: 30s
	PageTimeout time.Duration `mapstructure:"page_timeout" validate:"gte=0" yaml:"page_timeout"`

	// RoleMappings extend or override the built-in role table
	RoleMappings []roles.Mapping `mapstructure:"role_mappings" validate:"dive" yaml:"role_mappings,omitempty"`
}

// Load loads configuration from .env files, the config file, the
// environment and defaults, then validates it.
//
// A missing config file is not an error: defaults and environment
// variables are enough to run.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	setupViper(v, configPath)

	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration, failing with instructions when an
// explicitly named config file does not exist.
func MustLoad(configPath string) (*Config, error) {
	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Please create the configuration file:\n"+
				"  dirmigrate config init --config %s",
				configPath, configPath)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks struct tags and the component-level rules.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return err
	}
	if err := cfg.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := cfg.Privacy.Validate(); err != nil {
		return fmt.Errorf("privacy: %w", err)
	}
	switch cfg.Apply.Type {
	case ApplyPostgres:
		if err := cfg.Apply.Postgres.Validate(); err != nil {
			return fmt.Errorf("apply.postgres: %w", err)
		}
	case ApplyS3:
		if cfg.Apply.S3.Bucket == "" || cfg.Apply.S3.Key == "" {
			return fmt.Errorf("apply.s3: bucket and key are required")
		}
	}
	if cfg.Metrics.PushURL != "" && !cfg.Metrics.Enabled {
		return fmt.Errorf("metrics: push_url requires metrics.enabled")
	}
	return nil
}

// SaveConfig saves the configuration to the specified file path in YAML.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// 0600: the file may carry the privacy secret and database passwords.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func loadEnvFiles() {
	for _, f := range EnvFiles {
		_ = godotenv.Load(f)
	}
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Example: DIRMIGRATE_DIRECTORY_POOL_ID=eu-west-2_abc
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, reflect.TypeOf(Config{}), "")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// bindEnvs registers every scalar key of t so that environment variables
// apply even when the config file does not mention the key.
func bindEnvs(v *viper.Viper, t reflect.Type, prefix string) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "-" {
			continue
		}
		if tag == "" {
			// Embedded structs without a tag squash into the parent.
			if f.Anonymous && f.Type.Kind() == reflect.Struct {
				bindEnvs(v, f.Type, prefix)
			}
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		switch {
		case f.Type.Kind() == reflect.Struct && f.Type != reflect.TypeOf(time.Duration(0)):
			bindEnvs(v, f.Type, key)
		case f.Type.Kind() == reflect.Map:
			// maps come from the config file only
		case f.Type.Kind() == reflect.Slice && f.Type.Elem().Kind() == reflect.Struct:
			// so do lists of structs
		default:
			_ = v.BindEnv(key)
		}
	}
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error) where fileFound indicates if a config file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks returns a combined decode hook for all custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// durationDecodeHook returns a mapstructure decode hook that converts strings
// to time.Duration. This enables config files to use human-readable durations
// like "30s", "5m", "1h".
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			// Assume nanoseconds for raw integers
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dirmigrate")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "dirmigrate")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
