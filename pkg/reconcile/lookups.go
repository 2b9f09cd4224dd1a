package reconcile

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/marmos91/dirmigrate/internal/logger"
	"github.com/marmos91/dirmigrate/internal/telemetry"
	"github.com/marmos91/dirmigrate/pkg/identity"
	"github.com/marmos91/dirmigrate/pkg/roles"
	"github.com/marmos91/dirmigrate/pkg/userservice/models"
	"github.com/marmos91/dirmigrate/pkg/userservice/store"
)

// DefaultWorkers bounds concurrent store writes when no limit is configured.
const DefaultWorkers = 8

// Index maps lookup names to row ids. It is built once by ReconcileAll from
// the pre-run snapshot plus the rows inserted by the run, and is read-only
// afterwards.
type Index struct {
	departments map[string]string
	roles       map[string]string
}

// Department returns the id of the named department.
func (x *Index) Department(name string) (string, bool) {
	if x == nil {
		return "", false
	}
	id, ok := x.departments[name]
	return id, ok
}

// Role returns the id of the named role.
func (x *Index) Role(name string) (string, bool) {
	if x == nil {
		return "", false
	}
	id, ok := x.roles[name]
	return id, ok
}

// LookupResult is the outcome of ReconcileAll.
type LookupResult struct {
	DepartmentsCreated int
	RolesCreated       int
	Index              *Index
}

// LookupReconciler makes the department and role relations contain every
// name referenced by the run without ever inserting a name twice.
type LookupReconciler struct {
	store   store.LookupStore
	workers int
	metrics Metrics
}

// NewLookupReconciler creates a reconciler issuing at most workers
// concurrent inserts.
func NewLookupReconciler(s store.LookupStore, workers int, m Metrics) *LookupReconciler {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &LookupReconciler{store: s, workers: workers, metrics: orNoop(m)}
}

// Reconcile inserts the names missing from existing and returns how many
// rows were actually inserted. Empty and duplicate candidates are dropped.
// It returns only after every insert has finished.
func (r *LookupReconciler) Reconcile(ctx context.Context, kind models.LookupKind, names, existing []string) (int, error) {
	created, err := r.reconcile(ctx, kind, names, existing)
	return len(created), err
}

// ReconcileAll snapshots both lookup relations once, reconciles departments
// and roles referenced by identities, and returns after both are committed.
func (r *LookupReconciler) ReconcileAll(ctx context.Context, identities []*identity.Parsed) (*LookupResult, error) {
	depts, err := r.store.ListDepartments(ctx)
	if err != nil {
		return nil, storeError("list departments", err)
	}
	rls, err := r.store.ListRoles(ctx)
	if err != nil {
		return nil, storeError("list roles", err)
	}

	deptNames := make([]string, 0, len(identities))
	roleLists := make([][]string, 0, len(identities))
	for _, p := range identities {
		deptNames = append(deptNames, p.Department)
		roleLists = append(roleLists, p.MappedRoles)
	}

	index := &Index{
		departments: make(map[string]string, len(depts)),
		roles:       make(map[string]string, len(rls)),
	}
	for _, d := range depts {
		index.departments[d.Name] = d.ID
	}
	for _, rl := range rls {
		index.roles[rl.Name] = rl.ID
	}

	createdDepts, err := r.reconcile(ctx, models.KindDepartment, roles.Vocabulary(deptNames), models.DepartmentNames(depts))
	if err != nil {
		return nil, err
	}
	createdRoles, err := r.reconcile(ctx, models.KindRole, roles.Vocabulary(roleLists...), models.RoleNames(rls))
	if err != nil {
		return nil, err
	}

	for name, id := range createdDepts {
		index.departments[name] = id
	}
	for name, id := range createdRoles {
		index.roles[name] = id
	}

	return &LookupResult{
		DepartmentsCreated: len(createdDepts),
		RolesCreated:       len(createdRoles),
		Index:              index,
	}, nil
}

// reconcile returns the name to id map of the rows it inserted.
func (r *LookupReconciler) reconcile(ctx context.Context, kind models.LookupKind, names, existing []string) (map[string]string, error) {
	have := make(map[string]struct{}, len(existing))
	for _, n := range existing {
		have[n] = struct{}{}
	}
	candidates := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		if _, ok := have[n]; ok {
			continue
		}
		have[n] = struct{}{}
		candidates = append(candidates, n)
	}

	ctx, span := telemetry.StartLookupsSpan(ctx, string(kind), len(candidates))
	defer span.End()

	var (
		mu      sync.Mutex
		created = make(map[string]string, len(candidates))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for _, name := range candidates {
		g.Go(func() error {
			id := uuid.NewString()
			inserted, err := r.insert(gctx, kind, id, name)
			if err != nil {
				return storeError(fmt.Sprintf("create %s %q", kind, name), err)
			}
			if !inserted {
				logger.DebugCtx(gctx, "lookup row created concurrently",
					logger.KeyKind, kind, logger.KeyName, name)
				return nil
			}
			mu.Lock()
			created[name] = id
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		telemetry.RecordError(ctx, err)
		return nil, err
	}

	telemetry.SetAttributes(ctx, telemetry.Created(len(created)))
	r.metrics.RecordRowsCreated(tableFor(kind), len(created))
	logger.InfoCtx(ctx, "lookup rows reconciled",
		logger.KeyKind, kind,
		logger.KeyCandidates, len(candidates),
		logger.KeyCreated, len(created))

	return created, nil
}

func (r *LookupReconciler) insert(ctx context.Context, kind models.LookupKind, id, name string) (bool, error) {
	switch kind {
	case models.KindDepartment:
		return r.store.CreateDepartment(ctx, &models.Department{ID: id, Name: name})
	case models.KindRole:
		return r.store.CreateRole(ctx, &models.Role{ID: id, Name: name})
	default:
		return false, fmt.Errorf("unknown lookup kind %q", kind)
	}
}

func tableFor(kind models.LookupKind) string {
	if kind == models.KindDepartment {
		return models.TableDepartments
	}
	return models.TableRoles
}
