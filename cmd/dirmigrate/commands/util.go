package commands

import (
	"context"
	"fmt"

	"github.com/marmos91/dirmigrate/internal/cli/output"
	"github.com/marmos91/dirmigrate/internal/logger"
	"github.com/marmos91/dirmigrate/internal/telemetry"
	"github.com/marmos91/dirmigrate/pkg/config"
	"github.com/spf13/cobra"
)

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	if err := logger.Init(cfg.Logging.LoggerConfig()); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// InitTelemetry starts tracing and profiling. The returned function stops
// both and must be called before exit so buffered spans are flushed.
func InitTelemetry(ctx context.Context, cfg *config.Config) (func(), error) {
	tracingShutdown, err := telemetry.Init(ctx, cfg.Telemetry.TracingConfig(Version))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	profilingShutdown, err := telemetry.InitProfiling(cfg.Telemetry.ProfilingConfig(Version))
	if err != nil {
		_ = tracingShutdown(ctx)
		return nil, fmt.Errorf("failed to initialize profiling: %w", err)
	}

	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint, "profile_types", cfg.Telemetry.Profiling.ProfileTypes)
	}

	return func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
		// ctx may already be cancelled by a signal; Init bounds the flush itself.
		if err := tracingShutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}, nil
}

// newPrinter builds a printer for the --output and --no-color flags.
func newPrinter(cmd *cobra.Command) (*output.Printer, error) {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return nil, err
	}
	out := cmd.OutOrStdout()
	return output.NewPrinter(out, format, !noColor && output.IsTerminal(out)), nil
}
