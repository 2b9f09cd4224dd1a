package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marmos91/dirmigrate/internal/cli/output"
	"github.com/marmos91/dirmigrate/internal/cli/prompt"
	"github.com/marmos91/dirmigrate/internal/logger"
	"github.com/marmos91/dirmigrate/pkg/config"
	"github.com/marmos91/dirmigrate/pkg/directory"
	"github.com/marmos91/dirmigrate/pkg/directory/cognito"
	"github.com/marmos91/dirmigrate/pkg/metrics"
	"github.com/marmos91/dirmigrate/pkg/privacy"
	"github.com/marmos91/dirmigrate/pkg/reconcile"
	"github.com/marmos91/dirmigrate/pkg/userservice/store"
	"github.com/spf13/cobra"

	// Import prometheus metrics to register init() functions
	_ "github.com/marmos91/dirmigrate/pkg/metrics/prometheus"
)

const pushTimeout = 10 * time.Second

var (
	runDryRun     bool
	runYes        bool
	runPoolID     string
	runWorkers    int
	runStatements bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Migrate the user pool into the user service database",
	Long: `Run one migration.

Every identity in the Cognito user pool is parsed, its roles are mapped to
the user service vocabulary, and any missing departments and roles are
created before the users themselves. Existing users are left untouched, so
a run can be repeated safely.

With --dry-run nothing is written: the statements that would have been
executed are logged and counted instead.

Examples:
  # Rehearse against the configured database
  dirmigrate run --dry-run

  # Commit without the confirmation prompt
  dirmigrate run --yes

  # Override the pool and write concurrency
  dirmigrate run --pool-id eu-west-2_AbCdEf123 --workers 16

  # Environment overrides
  DIRMIGRATE_LOGGING_LEVEL=DEBUG dirmigrate run --dry-run`,
	RunE: runMigrate,
}

func init() {
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Journal statements instead of executing them")
	runCmd.Flags().BoolVarP(&runYes, "yes", "y", false, "Skip the confirmation prompt in commit mode")
	runCmd.Flags().StringVar(&runPoolID, "pool-id", "", "Cognito user pool id (overrides directory.pool_id)")
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "Concurrent store writes (overrides migration.workers)")
	runCmd.Flags().BoolVar(&runStatements, "statements", false, "With --dry-run, print the journaled statements")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if err := applyRunFlags(cmd, cfg); err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	printer, err := newPrinter(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := InitTelemetry(ctx, cfg)
	if err != nil {
		return err
	}
	defer shutdown()

	if !cfg.Migration.DryRun {
		ok, err := prompt.ConfirmWithForce(
			fmt.Sprintf("Migrate pool %s into the %s user service database?", cfg.Directory.PoolID, cfg.Database.Type),
			runYes,
		)
		if err != nil {
			return err
		}
		if !ok {
			printer.Warning("Aborted.")
			return nil
		}
	}

	src, err := cognito.NewFromConfig(ctx, cfg.Directory.CognitoConfig())
	if err != nil {
		return fmt.Errorf("%w: %w", reconcile.ErrDirectoryUnavailable, err)
	}

	_, err = executeRun(ctx, cfg, src, printer)
	return err
}

// applyRunFlags layers explicitly set flags over the loaded configuration.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("dry-run") {
		cfg.Migration.DryRun = runDryRun
	}
	if flags.Changed("pool-id") {
		cfg.Directory.PoolID = runPoolID
	}
	if flags.Changed("workers") {
		if runWorkers < 1 {
			return fmt.Errorf("--workers must be at least 1")
		}
		cfg.Migration.Workers = runWorkers
	}
	if cfg.Directory.PoolID == "" {
		return fmt.Errorf("no user pool configured: set directory.pool_id or pass --pool-id")
	}
	return nil
}

// executeRun opens the store and apply dataset, runs the migration against
// src and prints the summary. The summary is printed even when the run
// fails part way.
func executeRun(ctx context.Context, cfg *config.Config, src directory.Source, printer *output.Printer) (*reconcile.Summary, error) {
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}

	var opts []store.Option
	var journal *store.Journal
	if cfg.Migration.DryRun {
		journal = store.NewJournal()
		opts = append(opts, store.WithDryRun(journal))
	}

	st, err := store.New(&cfg.Database, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", reconcile.ErrStoreUnavailable, err)
	}
	defer func() { _ = st.Close() }()

	if err := st.Healthcheck(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", reconcile.ErrStoreUnavailable, err)
	}

	loader, err := cfg.Apply.NewLoader(ctx)
	if err != nil {
		return nil, err
	}
	dataset, err := loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s apply dataset: %w", loader.Name(), err)
	}
	rows, skipped, duplicates := dataset.Stats()
	logger.Info("Apply dataset loaded", "source", loader.Name(), "rows", rows, "skipped", skipped, "duplicates", duplicates)

	var transformer *privacy.Transformer
	if cfg.Privacy.Enabled {
		transformer, err = privacy.New(cfg.Privacy)
		if err != nil {
			return nil, err
		}
	}

	m := &reconcile.Migration{
		Source:  src,
		Parser:  cfg.Directory.Parser(),
		Mapper:  cfg.Migration.Mapper(),
		Privacy: transformer,
		Dataset: dataset,
		Store:   st,
		Metrics: metrics.NewMigrationMetrics(),
		Options: reconcile.Options{
			PoolID:      cfg.Directory.PoolID,
			DryRun:      cfg.Migration.DryRun,
			Workers:     cfg.Migration.Workers,
			PageTimeout: cfg.Migration.PageTimeout,
		},
	}

	summary, runErr := m.Run(ctx)
	if summary != nil {
		if err := printer.Print(output.SummaryTable{Summary: *summary}); err != nil {
			return summary, err
		}
	}

	if journal != nil {
		if runStatements {
			if err := printer.Print(journalTable(journal)); err != nil {
				return summary, err
			}
		}
		printer.Warning(fmt.Sprintf("Dry run: %d statements journaled, nothing written.", journal.Len()))
	} else if runErr == nil {
		printer.Success("Migration committed.")
	}
	if summary != nil && summary.UsersRejected > 0 {
		printer.Warning(fmt.Sprintf("%d users rejected on a unique conflict, see the log for details.", summary.UsersRejected))
	}

	if err := pushMetrics(ctx, cfg); err != nil {
		logger.Warn("Metrics push failed", logger.Err(err))
	}

	if runErr != nil && errors.Is(runErr, context.Canceled) {
		return summary, fmt.Errorf("migration interrupted: %w", runErr)
	}
	return summary, runErr
}

func pushMetrics(ctx context.Context, cfg *config.Config) error {
	if cfg.Metrics.PushURL == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pushTimeout)
	defer cancel()
	return metrics.Push(ctx, cfg.Metrics.PushURL, cfg.Metrics.Job, map[string]string{"pool": cfg.Directory.PoolID})
}

func journalTable(j *store.Journal) *output.TableData {
	table := output.NewTableData("Table", "Statement")
	for _, st := range j.Statements() {
		table.AddRow(st.Table, st.SQL)
	}
	return table
}
