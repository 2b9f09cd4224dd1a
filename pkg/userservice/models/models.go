// Package models defines the user service relations written by the migration.
//
// The schema (departments, roles, users, roles_users) is owned by the user
// service. The GORM tags here describe the columns the migration reads and
// writes; they are only used to create tables when bootstrapping a throwaway
// database.
package models

// AllModels returns all GORM models for schema bootstrap.
func AllModels() []any {
	return []any{
		&Department{},
		&Role{},
		&User{},
		&UserRole{},
	}
}

// Table names, shared with dry-run statement journals.
const (
	TableDepartments = "departments"
	TableRoles       = "roles"
	TableUsers       = "users"
	TableUserRoles   = "roles_users"
)
