// Package store provides the user service persistence layer.
//
// The migration writes four relations owned by the user service:
// departments, roles, users and the roles_users join table. Two backends
// are supported through GORM:
//   - PostgreSQL (the user service database)
//   - SQLite (local rehearsals and tests)
//
// Every mutating operation is an insert-if-absent so that overlapping or
// repeated runs never create duplicate rows. In dry-run mode mutating
// statements are journaled instead of executed.
package store

import (
	"context"

	"github.com/marmos91/dirmigrate/pkg/userservice/models"
)

// LookupStore covers the department and role lookup relations.
type LookupStore interface {
	// ListDepartments returns every department row.
	ListDepartments(ctx context.Context) ([]*models.Department, error)

	// ListRoles returns every role row.
	ListRoles(ctx context.Context) ([]*models.Role, error)

	// GetDepartmentByName returns the department with the exact name.
	// Returns models.ErrDepartmentNotFound if none exists.
	GetDepartmentByName(ctx context.Context, name string) (*models.Department, error)

	// GetRoleByName returns the role with the exact name.
	// Returns models.ErrRoleNotFound if none exists.
	GetRoleByName(ctx context.Context, name string) (*models.Role, error)

	// CreateDepartment inserts the department unless one with the same name
	// already exists. The ID is generated if empty. Reports whether a row
	// was inserted (or, in dry-run mode, would have been).
	CreateDepartment(ctx context.Context, dept *models.Department) (bool, error)

	// CreateRole inserts the role unless one with the same name already
	// exists. Same semantics as CreateDepartment.
	CreateRole(ctx context.Context, role *models.Role) (bool, error)
}

// UserStore covers the users relation and role associations.
type UserStore interface {
	// GetUserByStableID returns the user with the directory stable id.
	// Returns models.ErrUserNotFound if none exists.
	GetUserByStableID(ctx context.Context, stableID string) (*models.User, error)

	// CreateUser inserts the user unless one with the same stable id exists.
	// Reports whether a row was inserted. A unique violation on any other
	// column returns models.ErrDuplicateUser.
	CreateUser(ctx context.Context, user *models.User) (bool, error)

	// CreateUserWithRoles inserts the user and its role associations
	// atomically, with the same conflict semantics as CreateUser. Either
	// every row is written or none is.
	CreateUserWithRoles(ctx context.Context, user *models.User, roleIDs []string) (bool, error)

	// CreateUserRole inserts one user/role association.
	CreateUserRole(ctx context.Context, assoc *models.UserRole) error

	// ListUserRoleNames returns the role names associated with a user, sorted.
	ListUserRoleNames(ctx context.Context, stableID string) ([]string, error)
}

// Store is the full user service persistence interface.
//
// Thread Safety: Implementations must be safe for concurrent use from
// multiple goroutines.
type Store interface {
	LookupStore
	UserStore

	// Healthcheck verifies the database is reachable.
	Healthcheck(ctx context.Context) error

	// Close releases the database connection.
	Close() error
}
