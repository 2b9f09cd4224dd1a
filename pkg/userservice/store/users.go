package store

import (
	"context"
	"sort"

	"gorm.io/gorm"

	"github.com/marmos91/dirmigrate/pkg/userservice/models"
)

// ============================================
// USER OPERATIONS
// ============================================

func (s *GORMStore) GetUserByStableID(ctx context.Context, stableID string) (*models.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return getByField[models.User](s.db, ctx, "sub", stableID, models.ErrUserNotFound)
}

func (s *GORMStore) CreateUser(ctx context.Context, user *models.User) (bool, error) {
	if err := user.Validate(); err != nil {
		return false, err
	}
	return s.insertIfAbsent(ctx, models.TableUsers, user, models.ErrDuplicateUser, "sub")
}

// CreateUserWithRoles inserts the user and its role associations in one
// transaction. When a user with the same stable id exists nothing is written
// and false is returned. In dry-run mode the whole batch is journaled.
func (s *GORMStore) CreateUserWithRoles(ctx context.Context, user *models.User, roleIDs []string) (bool, error) {
	if err := user.Validate(); err != nil {
		return false, err
	}
	assocs := make([]*models.UserRole, len(roleIDs))
	for i, id := range roleIDs {
		assocs[i] = &models.UserRole{UserStableID: user.StableID, RoleID: id}
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if s.journal != nil {
		batch := make([]Statement, 0, len(assocs)+1)
		st, err := s.buildInsert(ctx, models.TableUsers, user, "sub")
		if err != nil {
			return false, err
		}
		batch = append(batch, st)
		for _, assoc := range assocs {
			st, err := s.buildInsert(ctx, models.TableUserRoles, assoc, "user_sub", "roles_id")
			if err != nil {
				return false, err
			}
			batch = append(batch, st)
		}
		s.journalStatements(ctx, batch...)
		return true, nil
	}

	var inserted bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := insertOnConflict(tx, user, models.ErrDuplicateUser, "sub")
		if err != nil || !ok {
			return err
		}
		for _, assoc := range assocs {
			if _, err := insertOnConflict(tx, assoc, nil, "user_sub", "roles_id"); err != nil {
				return err
			}
		}
		inserted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}

// CountUsers returns the number of user rows.
func (s *GORMStore) CountUsers(ctx context.Context) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var n int64
	err := s.db.WithContext(ctx).Model(&models.User{}).Count(&n).Error
	return n, err
}

// ============================================
// USER ROLE OPERATIONS
// ============================================

func (s *GORMStore) CreateUserRole(ctx context.Context, assoc *models.UserRole) error {
	_, err := s.insertIfAbsent(ctx, models.TableUserRoles, assoc, nil, "user_sub", "roles_id")
	return err
}

func (s *GORMStore) ListUserRoleNames(ctx context.Context, stableID string) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var names []string
	err := s.db.WithContext(ctx).
		Table(models.TableRoles).
		Joins("JOIN roles_users ON roles_users.roles_id = roles.id").
		Where("roles_users.user_sub = ?", stableID).
		Pluck("roles.name", &names).Error
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// CountUserRoles returns the number of user/role association rows.
func (s *GORMStore) CountUserRoles(ctx context.Context) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var n int64
	err := s.db.WithContext(ctx).Model(&models.UserRole{}).Count(&n).Error
	return n, err
}
