package config

import (
	"context"
	"fmt"

	"github.com/marmos91/dirmigrate/internal/awsutil"
	"github.com/marmos91/dirmigrate/internal/logger"
	"github.com/marmos91/dirmigrate/internal/telemetry"
	"github.com/marmos91/dirmigrate/pkg/applyset"
	applypg "github.com/marmos91/dirmigrate/pkg/applyset/postgres"
	applys3 "github.com/marmos91/dirmigrate/pkg/applyset/s3"
	"github.com/marmos91/dirmigrate/pkg/directory/cognito"
	"github.com/marmos91/dirmigrate/pkg/identity"
	"github.com/marmos91/dirmigrate/pkg/roles"
)

// LoggerConfig converts the logging section.
func (c *LoggingConfig) LoggerConfig() logger.Config {
	return logger.Config{Level: c.Level, Format: c.Format, Output: c.Output}
}

// TracingConfig converts the telemetry section.
func (c *TelemetryConfig) TracingConfig(version string) telemetry.Config {
	cfg := telemetry.DefaultConfig()
	cfg.Enabled = c.Enabled
	cfg.Endpoint = c.Endpoint
	cfg.Insecure = c.Insecure
	cfg.SampleRate = c.SampleRate
	cfg.ServiceVersion = version
	return cfg
}

// ProfilingConfig converts the profiling subsection.
func (c *TelemetryConfig) ProfilingConfig(version string) telemetry.ProfilingConfig {
	return telemetry.ProfilingConfig{
		Enabled:        c.Profiling.Enabled,
		ServiceName:    telemetry.DefaultConfig().ServiceName,
		ServiceVersion: version,
		Endpoint:       c.Profiling.Endpoint,
		ProfileTypes:   c.Profiling.ProfileTypes,
	}
}

// CognitoConfig converts the directory section.
func (c *DirectoryConfig) CognitoConfig() cognito.Config {
	return cognito.Config{
		Config: awsutil.Config{
			Region:          c.Region,
			Endpoint:        c.Endpoint,
			AccessKeyID:     c.AccessKeyID,
			SecretAccessKey: c.SecretAccessKey,
		},
		PageSize: c.PageSize,
	}
}

// Parser builds the attribute parser for the directory section.
func (c *DirectoryConfig) Parser() *identity.Parser {
	return identity.NewParser(c.FeaturesAttribute, c.PickAttributes...)
}

// Mapper builds the role mapper: the built-in table plus RoleMappings.
func (c *MigrationConfig) Mapper() *roles.Mapper {
	return roles.Default().With(c.RoleMappings...)
}

// NewLoader builds the apply dataset loader for the configured type.
func (c *ApplyConfig) NewLoader(ctx context.Context) (applyset.Loader, error) {
	switch c.Type {
	case ApplyNone, "":
		return applyset.Empty{}, nil
	case ApplyPostgres:
		return applypg.New(c.Postgres)
	case ApplyS3:
		return applys3.NewFromConfig(ctx, applys3.Config{
			Config: awsutil.Config{
				Region:          c.S3.Region,
				Endpoint:        c.S3.Endpoint,
				AccessKeyID:     c.S3.AccessKeyID,
				SecretAccessKey: c.S3.SecretAccessKey,
			},
			Bucket:         c.S3.Bucket,
			Key:            c.S3.Key,
			ForcePathStyle: c.S3.ForcePathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown apply dataset type: %q", c.Type)
	}
}
