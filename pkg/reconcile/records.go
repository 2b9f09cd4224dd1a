package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/marmos91/dirmigrate/internal/logger"
	"github.com/marmos91/dirmigrate/internal/telemetry"
	"github.com/marmos91/dirmigrate/pkg/applyset"
	"github.com/marmos91/dirmigrate/pkg/identity"
	"github.com/marmos91/dirmigrate/pkg/userservice/models"
	"github.com/marmos91/dirmigrate/pkg/userservice/store"
)

// RecordStats are the running totals of a RecordReconciler.
type RecordStats struct {
	Created      int
	Existing     int
	Rejected     int
	Associations int
	Unmatched    int
	LookupMisses int
}

// RecordReconciler creates user rows and role associations for parsed
// identities, at most once per stable id. It is safe for concurrent use.
type RecordReconciler struct {
	store   store.Store
	index   *Index
	metrics Metrics

	created      atomic.Int64
	existing     atomic.Int64
	rejected     atomic.Int64
	associations atomic.Int64
	unmatched    atomic.Int64
	lookupMisses atomic.Int64
}

// NewRecordReconciler creates a reconciler. index, when non-nil, resolves
// lookup names before falling back to the store; it carries the rows
// planned by a dry run, which the store never sees.
func NewRecordReconciler(s store.Store, index *Index, m Metrics) *RecordReconciler {
	return &RecordReconciler{store: s, index: index, metrics: orNoop(m)}
}

// Stats returns the totals so far.
func (r *RecordReconciler) Stats() RecordStats {
	return RecordStats{
		Created:      int(r.created.Load()),
		Existing:     int(r.existing.Load()),
		Rejected:     int(r.rejected.Load()),
		Associations: int(r.associations.Load()),
		Unmatched:    int(r.unmatched.Load()),
		LookupMisses: int(r.lookupMisses.Load()),
	}
}

// Reconcile joins p against dataset and writes it to the store.
//
// A user already present yields OutcomeExisting and nothing is written. A
// user that collides with another row on a unique column yields
// OutcomeRejected. A department or role without a lookup row is logged and
// left out. Every returned error wraps ErrStoreUnavailable.
func (r *RecordReconciler) Reconcile(ctx context.Context, p *identity.Parsed, dataset *applyset.Dataset) (Outcome, error) {
	ctx = logger.Scoped(ctx, func(lc *logger.LogContext) *logger.LogContext { return lc.WithStableID(p.StableID) })
	ctx, span := telemetry.StartRecordSpan(ctx, p.StableID)
	defer span.End()

	outcome, err := r.reconcile(ctx, p, dataset)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return "", err
	}
	telemetry.SetAttributes(ctx, telemetry.Outcome(string(outcome)))

	switch outcome {
	case OutcomeCreated:
		r.created.Add(1)
	case OutcomeExisting:
		r.existing.Add(1)
	case OutcomeRejected:
		r.rejected.Add(1)
	}
	r.metrics.RecordOutcome(outcome)
	return outcome, nil
}

func (r *RecordReconciler) reconcile(ctx context.Context, p *identity.Parsed, dataset *applyset.Dataset) (Outcome, error) {
	_, err := r.store.GetUserByStableID(ctx, p.StableID)
	switch {
	case err == nil:
		logger.DebugCtx(ctx, "user already migrated", logger.KeyOutcome, OutcomeExisting)
		return OutcomeExisting, nil
	case !errors.Is(err, models.ErrUserNotFound):
		return "", storeError("get user", err)
	}

	var legacyKey *string
	if row, ok := dataset.Lookup(p.StableID); ok && row.LegacyForeignKey != "" {
		legacyKey = &row.LegacyForeignKey
	} else {
		r.unmatched.Add(1)
		r.metrics.RecordUnmatched()
		logger.DebugCtx(ctx, "no apply dataset row", logger.KeyStage, StageJoin)
	}

	deptID, err := r.resolveDepartment(ctx, p.Department)
	if err != nil {
		return "", err
	}
	roleIDs, err := r.resolveRoles(ctx, p.MappedRoles)
	if err != nil {
		return "", err
	}

	user := &models.User{
		StableID:         p.StableID,
		Contact:          p.Contact,
		DepartmentID:     deptID,
		LegacyForeignKey: legacyKey,
	}
	if p.Protected != nil {
		user.Contact = p.Protected.LookupHash
		ciphertext := p.Protected.Ciphertext
		user.EncryptedContact = &ciphertext
	}

	inserted, err := r.store.CreateUserWithRoles(ctx, user, roleIDs)
	switch {
	case errors.Is(err, models.ErrDuplicateUser):
		logger.WarnCtx(ctx, "user rejected",
			logger.KeyOutcome, OutcomeRejected,
			logger.KeyError, &RecordError{StableID: p.StableID, Stage: StageInsert, Err: err})
		return OutcomeRejected, nil
	case err != nil:
		return "", storeError("create user", err)
	case !inserted:
		logger.DebugCtx(ctx, "user created concurrently", logger.KeyOutcome, OutcomeExisting)
		return OutcomeExisting, nil
	}
	r.associations.Add(int64(len(roleIDs)))
	r.metrics.RecordRowsCreated(models.TableUsers, 1)
	r.metrics.RecordRowsCreated(models.TableUserRoles, len(roleIDs))

	logger.DebugCtx(ctx, "user migrated",
		logger.KeyOutcome, OutcomeCreated,
		logger.KeyDepartment, p.Department,
		logger.KeyCreated, len(roleIDs))
	return OutcomeCreated, nil
}

func (r *RecordReconciler) resolveDepartment(ctx context.Context, name string) (*string, error) {
	if name == "" {
		return nil, nil
	}
	if id, ok := r.index.Department(name); ok {
		return &id, nil
	}
	dept, err := r.store.GetDepartmentByName(ctx, name)
	switch {
	case err == nil:
		return &dept.ID, nil
	case errors.Is(err, models.ErrDepartmentNotFound):
		r.miss(ctx, models.KindDepartment, name)
		return nil, nil
	default:
		return nil, storeError("get department", err)
	}
}

func (r *RecordReconciler) resolveRoles(ctx context.Context, names []string) ([]string, error) {
	ids := make([]string, 0, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}
		if id, ok := r.index.Role(name); ok {
			ids = append(ids, id)
			continue
		}
		role, err := r.store.GetRoleByName(ctx, name)
		switch {
		case err == nil:
			ids = append(ids, role.ID)
		case errors.Is(err, models.ErrRoleNotFound):
			r.miss(ctx, models.KindRole, name)
		default:
			return nil, storeError("get role", err)
		}
	}
	return ids, nil
}

func (r *RecordReconciler) miss(ctx context.Context, kind models.LookupKind, name string) {
	r.lookupMisses.Add(1)
	r.metrics.RecordLookupMiss(string(kind))
	logger.WarnCtx(ctx, "lookup reference left unset",
		logger.KeyStage, StageResolve,
		logger.KeyKind, kind,
		logger.KeyName, name,
		logger.KeyError, fmt.Errorf("%w: %s %q", ErrLookupMiss, kind, name))
}
