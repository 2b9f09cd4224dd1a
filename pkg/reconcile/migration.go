// Package reconcile migrates directory identities into the user service
// store.
//
// A run has three phases:
//  1. walk the directory, parsing, mapping and protecting every record
//  2. reconcile the department and role lookup relations (barrier)
//  3. reconcile user rows and role associations with bounded parallelism
//
// Every write is idempotent, so an interrupted run is resumed by running it
// again.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/marmos91/dirmigrate/internal/logger"
	"github.com/marmos91/dirmigrate/internal/telemetry"
	"github.com/marmos91/dirmigrate/pkg/applyset"
	"github.com/marmos91/dirmigrate/pkg/directory"
	"github.com/marmos91/dirmigrate/pkg/identity"
	"github.com/marmos91/dirmigrate/pkg/privacy"
	"github.com/marmos91/dirmigrate/pkg/roles"
	"github.com/marmos91/dirmigrate/pkg/userservice/store"
)

// Options tune a migration run.
type Options struct {
	// PoolID is the directory pool to list.
	PoolID string

	// RunID tags logs and spans; generated when empty.
	RunID string

	// DryRun marks the run as not writing. The store decides what that
	// means; this only labels logs and the summary.
	DryRun bool

	// Workers bounds concurrent store writes.
	Workers int

	// PageTimeout bounds each directory page fetch. Zero means no bound.
	PageTimeout time.Duration
}

// Summary is the outcome of a run.
type Summary struct {
	RunID  string `json:"run_id" yaml:"run_id"`
	DryRun bool   `json:"dry_run" yaml:"dry_run"`

	Pages           int `json:"pages" yaml:"pages"`
	Seen            int `json:"seen" yaml:"seen"`
	Parsed          int `json:"parsed" yaml:"parsed"`
	Malformed       int `json:"malformed" yaml:"malformed"`
	Duplicates      int `json:"duplicates" yaml:"duplicates"`
	PrivacyFailures int `json:"privacy_failures" yaml:"privacy_failures"`

	DepartmentsCreated int `json:"departments_created" yaml:"departments_created"`
	RolesCreated       int `json:"roles_created" yaml:"roles_created"`

	UsersCreated  int `json:"users_created" yaml:"users_created"`
	UsersExisting int `json:"users_existing" yaml:"users_existing"`
	UsersRejected int `json:"users_rejected" yaml:"users_rejected"`
	Associations  int `json:"associations" yaml:"associations"`
	Unmatched     int `json:"unmatched" yaml:"unmatched"`
	LookupMisses  int `json:"lookup_misses" yaml:"lookup_misses"`

	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Processed is the number of identities reconciled.
func (s *Summary) Processed() int {
	return s.UsersCreated + s.UsersExisting + s.UsersRejected
}

// Migration wires the components of a run. Privacy and Metrics are
// optional; a nil Parser or Mapper selects the defaults.
type Migration struct {
	Source  directory.Source
	Parser  *identity.Parser
	Mapper  *roles.Mapper
	Privacy *privacy.Transformer
	Dataset *applyset.Dataset
	Store   store.Store
	Metrics Metrics
	Options Options
}

// Run performs one migration. It fails with ErrDirectoryUnavailable or
// ErrStoreUnavailable; per-record problems are counted in the summary.
// On failure the partial summary is returned alongside the error.
func (m *Migration) Run(ctx context.Context) (*Summary, error) {
	if m.Source == nil || m.Store == nil {
		return nil, errors.New("migration requires a directory source and a store")
	}

	opts := m.Options
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	parser := m.Parser
	if parser == nil {
		parser = identity.NewParser("")
	}
	mapper := m.Mapper
	if mapper == nil {
		mapper = roles.Default()
	}
	metrics := orNoop(m.Metrics)

	start := time.Now()
	summary := &Summary{RunID: opts.RunID, DryRun: opts.DryRun}
	defer func() { summary.Duration = time.Since(start) }()

	ctx = logger.WithContext(ctx, logger.NewLogContext(opts.RunID, opts.PoolID, opts.DryRun))
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanRun)
	defer span.End()
	telemetry.SetAttributes(ctx,
		telemetry.RunID(opts.RunID),
		telemetry.PoolID(opts.PoolID),
		telemetry.DryRun(opts.DryRun))
	ctx = logger.Scoped(ctx, func(lc *logger.LogContext) *logger.LogContext {
		return lc.WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx))
	})

	logger.InfoCtx(ctx, "migration started",
		logger.KeyWorkers, opts.Workers,
		logger.KeyRows, m.Dataset.Len())

	identities, err := m.collect(ctx, parser, mapper, metrics, opts, summary)
	if err != nil {
		return summary, m.fail(ctx, err)
	}

	lookups, err := NewLookupReconciler(m.Store, opts.Workers, metrics).ReconcileAll(ctx, identities)
	if err != nil {
		return summary, m.fail(ctx, err)
	}
	summary.DepartmentsCreated = lookups.DepartmentsCreated
	summary.RolesCreated = lookups.RolesCreated

	records := NewRecordReconciler(m.Store, lookups.Index, metrics)
	err = reconcileRecords(ctx, records, identities, m.Dataset, opts.Workers)

	stats := records.Stats()
	summary.UsersCreated = stats.Created
	summary.UsersExisting = stats.Existing
	summary.UsersRejected = stats.Rejected
	summary.Associations = stats.Associations
	summary.Unmatched = stats.Unmatched
	summary.LookupMisses = stats.LookupMisses
	if err != nil {
		return summary, m.fail(ctx, err)
	}

	logger.InfoCtx(ctx, "migration complete",
		logger.KeyRecords, summary.Processed(),
		logger.KeyCreated, summary.UsersCreated,
		logger.DurationMs(start))
	return summary, nil
}

// collect walks the directory and returns the identities ready for
// reconciliation, in directory order. Only the first record of each stable
// id is kept.
func (m *Migration) collect(ctx context.Context, parser *identity.Parser, mapper *roles.Mapper, metrics Metrics, opts Options, summary *Summary) ([]*identity.Parsed, error) {
	var identities []*identity.Parsed
	seen := make(map[string]struct{})

	mark := time.Now()
	pages, err := directory.Walk(ctx, m.Source, opts.PoolID, opts.PageTimeout, func(ctx context.Context, n int, page *directory.Page) error {
		metrics.ObservePage(len(page.Records), time.Since(mark))

		ctx, span := telemetry.StartPageSpan(ctx, opts.PoolID, n)
		defer span.End()
		telemetry.SetAttributes(ctx, telemetry.Records(len(page.Records)))
		ctx = logger.Scoped(ctx, func(lc *logger.LogContext) *logger.LogContext { return lc.WithPage(n) })

		for i := range page.Records {
			if p := m.prepare(ctx, parser, mapper, metrics, &page.Records[i], seen, summary); p != nil {
				identities = append(identities, p)
			}
		}
		logger.DebugCtx(ctx, "directory page processed", logger.KeyRecords, len(page.Records))

		mark = time.Now()
		return ctx.Err()
	})
	summary.Pages = pages
	if err != nil {
		if errors.Is(err, directory.ErrUnavailable) {
			return nil, fmt.Errorf("%w: %w", ErrDirectoryUnavailable, err)
		}
		return nil, err
	}

	logger.InfoCtx(ctx, "directory listed",
		"pages", pages,
		logger.KeyRecords, summary.Seen,
		"parsed", summary.Parsed,
		"malformed", summary.Malformed,
		"duplicates", summary.Duplicates)
	return identities, nil
}

// prepare turns one directory record into a reconcilable identity, or
// returns nil when the record is skipped.
func (m *Migration) prepare(ctx context.Context, parser *identity.Parser, mapper *roles.Mapper, metrics Metrics, rec *directory.Record, seen map[string]struct{}, summary *Summary) *identity.Parsed {
	summary.Seen++

	p, ok := parser.Parse(*rec)
	if !ok {
		summary.Malformed++
		metrics.RecordSkipped(SkipMalformed)
		logger.WarnCtx(ctx, "directory record skipped",
			logger.KeyStage, StageParse,
			logger.KeyUsername, rec.Username,
			logger.KeyReason, parser.Reason(*rec))
		return nil
	}
	if _, dup := seen[p.StableID]; dup {
		summary.Duplicates++
		metrics.RecordSkipped(SkipDuplicate)
		logger.WarnCtx(ctx, "duplicate directory record skipped",
			logger.KeyStage, StageParse,
			logger.KeyStableID, p.StableID,
			logger.KeyUsername, rec.Username)
		return nil
	}
	seen[p.StableID] = struct{}{}
	if !rec.Enabled {
		logger.DebugCtx(ctx, "migrating disabled directory user",
			logger.KeyStableID, p.StableID,
			logger.KeyStatus, rec.Status)
	}

	p.MappedRoles = mapper.ExpandAll(p.Roles)

	if m.Privacy != nil {
		protected, err := m.Privacy.Protect(p.Contact)
		if err != nil {
			summary.PrivacyFailures++
			metrics.RecordSkipped(SkipPrivacy)
			logger.WarnCtx(ctx, "contact protection failed",
				logger.KeyError, &RecordError{StableID: p.StableID, Stage: StageProtect, Err: err})
			return nil
		}
		p.Protected = protected
	}

	summary.Parsed++
	return p
}

func reconcileRecords(ctx context.Context, r *RecordReconciler, identities []*identity.Parsed, dataset *applyset.Dataset, workers int) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, p := range identities {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			_, err := r.Reconcile(gctx, p, dataset)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (m *Migration) fail(ctx context.Context, err error) error {
	telemetry.RecordError(ctx, err)
	logger.ErrorCtx(ctx, "migration aborted", logger.KeyError, err)
	return err
}
