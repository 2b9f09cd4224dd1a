package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/marmos91/dirmigrate/pkg/userservice/models"
)

// ============================================
// DEPARTMENT OPERATIONS
// ============================================

func (s *GORMStore) ListDepartments(ctx context.Context) ([]*models.Department, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return listAll[models.Department](s.db, ctx, "name")
}

func (s *GORMStore) GetDepartmentByName(ctx context.Context, name string) (*models.Department, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return getByField[models.Department](s.db, ctx, "name", name, models.ErrDepartmentNotFound)
}

func (s *GORMStore) CreateDepartment(ctx context.Context, dept *models.Department) (bool, error) {
	if err := dept.Validate(); err != nil {
		return false, err
	}
	if dept.ID == "" {
		dept.ID = uuid.New().String()
	}
	return s.insertIfAbsent(ctx, models.TableDepartments, dept, nil, "name")
}

// ============================================
// ROLE OPERATIONS
// ============================================

func (s *GORMStore) ListRoles(ctx context.Context) ([]*models.Role, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return listAll[models.Role](s.db, ctx, "name")
}

func (s *GORMStore) GetRoleByName(ctx context.Context, name string) (*models.Role, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return getByField[models.Role](s.db, ctx, "name", name, models.ErrRoleNotFound)
}

func (s *GORMStore) CreateRole(ctx context.Context, role *models.Role) (bool, error) {
	if err := role.Validate(); err != nil {
		return false, err
	}
	if role.ID == "" {
		role.ID = uuid.New().String()
	}
	return s.insertIfAbsent(ctx, models.TableRoles, role, nil, "name")
}
