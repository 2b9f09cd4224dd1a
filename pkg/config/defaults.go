package config

import (
	"strings"
	"time"

	"github.com/marmos91/dirmigrate/internal/awsutil"
	"github.com/marmos91/dirmigrate/pkg/directory/cognito"
	"github.com/marmos91/dirmigrate/pkg/identity"
	"github.com/marmos91/dirmigrate/pkg/reconcile"
	"github.com/marmos91/dirmigrate/pkg/userservice/store"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values (0, "", false, nil) are replaced with defaults; explicit
// values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
	applyDirectoryDefaults(&cfg.Directory)
	applyApplyDefaults(&cfg.Apply)
	applyDatabaseDefaults(&cfg.Database)
	cfg.Privacy.ApplyDefaults()
	applyMigrationDefaults(&cfg.Migration)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	// stdout carries the run summary
	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	applyProfilingDefaults(&cfg.Profiling)
}

// applyProfilingDefaults sets Pyroscope profiling defaults.
func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{"cpu", "alloc_space", "inuse_space", "goroutines"}
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Job == "" {
		cfg.Job = "dirmigrate"
	}
}

func applyDirectoryDefaults(cfg *DirectoryConfig) {
	if cfg.Region == "" {
		cfg.Region = awsutil.DefaultRegion
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = cognito.MaxPageSize
	}
	if cfg.FeaturesAttribute == "" {
		cfg.FeaturesAttribute = identity.DefaultFeaturesAttribute
	}
}

func applyApplyDefaults(cfg *ApplyConfig) {
	if cfg.Type == "" {
		cfg.Type = ApplyNone
	}
	cfg.Type = strings.ToLower(cfg.Type)
	if cfg.Type == ApplyPostgres {
		cfg.Postgres.ApplyDefaults()
	}
	if cfg.S3.Region == "" {
		cfg.S3.Region = awsutil.DefaultRegion
	}
}

// applyDatabaseDefaults defaults to a local SQLite rehearsal database;
// production runs point database.type at the user service Postgres.
func applyDatabaseDefaults(cfg *store.Config) {
	if cfg.Type == "" {
		cfg.Type = store.DatabaseTypeSQLite
	}
	cfg.ApplyDefaults()
}

func applyMigrationDefaults(cfg *MigrationConfig) {
	if cfg.Workers == 0 {
		cfg.Workers = reconcile.DefaultWorkers
	}
	if cfg.PageTimeout == 0 {
		cfg.PageTimeout = 30 * time.Second
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
