package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/marmos91/dirmigrate/internal/logger"
)

// ============================================================================
// Generic GORM Helpers
// ============================================================================

// getByField retrieves a single record of type T by matching field=value and
// converts gorm.ErrRecordNotFound to notFoundErr.
func getByField[T any](db *gorm.DB, ctx context.Context, field string, value any, notFoundErr error) (*T, error) {
	var result T
	if err := db.WithContext(ctx).Where(field+" = ?", value).First(&result).Error; err != nil {
		return nil, convertNotFoundError(err, notFoundErr)
	}
	return &result, nil
}

// listAll retrieves all records of type T ordered by the given column.
// Returns an empty slice (not nil) on success with no records.
func listAll[T any](db *gorm.DB, ctx context.Context, order string) ([]*T, error) {
	results := make([]*T, 0)
	q := db.WithContext(ctx)
	if order != "" {
		q = q.Order(order)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// insertIfAbsent inserts entity with ON CONFLICT (conflictColumns) DO NOTHING.
// It reports whether a row was inserted. A unique violation on any other
// constraint is returned as dupErr. In dry-run mode the statement is built,
// logged and journaled, and reported as inserted.
func (s *GORMStore) insertIfAbsent(ctx context.Context, table string, entity any, dupErr error, conflictColumns ...string) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if s.journal != nil {
		st, err := s.buildInsert(ctx, table, entity, conflictColumns...)
		if err != nil {
			return false, err
		}
		s.journalStatements(ctx, st)
		return true, nil
	}
	return insertOnConflict(s.db.WithContext(ctx), entity, dupErr, conflictColumns...)
}

// insertOnConflict runs the insert on db, which may be a transaction.
func insertOnConflict(db *gorm.DB, entity any, dupErr error, conflictColumns ...string) (bool, error) {
	res := db.Clauses(onConflictDoNothing(conflictColumns...)).Create(entity)
	if res.Error != nil {
		if dupErr != nil && isUniqueConstraintError(res.Error) {
			return false, fmt.Errorf("%w: %v", dupErr, res.Error)
		}
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func onConflictDoNothing(columns ...string) clause.OnConflict {
	cols := make([]clause.Column, len(columns))
	for i, c := range columns {
		cols[i] = clause.Column{Name: c}
	}
	return clause.OnConflict{Columns: cols, DoNothing: true}
}

// buildInsert renders the insert without executing it.
func (s *GORMStore) buildInsert(ctx context.Context, table string, entity any, conflictColumns ...string) (Statement, error) {
	tx := s.db.Session(&gorm.Session{DryRun: true}).
		WithContext(ctx).
		Clauses(onConflictDoNothing(conflictColumns...)).
		Create(entity)
	if tx.Error != nil {
		return Statement{}, tx.Error
	}
	return Statement{
		Table: table,
		SQL:   tx.Statement.SQL.String(),
		Vars:  tx.Statement.Vars,
		At:    time.Now(),
	}, nil
}

func (s *GORMStore) journalStatements(ctx context.Context, statements ...Statement) {
	for _, st := range statements {
		logger.InfoCtx(ctx, "dry-run: statement not executed",
			logger.KeyTable, st.Table,
			logger.KeySQL, s.db.Dialector.Explain(st.SQL, st.Vars...))
	}
	s.journal.record(statements...)
}
