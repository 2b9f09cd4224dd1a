package models

import "fmt"

// Department is a normalized department lookup row referenced by users.
type Department struct {
	ID          string  `gorm:"primaryKey;size:36" json:"id"`
	Name        string  `gorm:"uniqueIndex;not null;size:255" json:"name"`
	ExternalRef *string `gorm:"column:ggis_id;size:255" json:"external_ref,omitempty"`
}

// TableName returns the table name for Department.
func (Department) TableName() string {
	return TableDepartments
}

// Validate checks that the department can be persisted.
func (d *Department) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("department: %w", ErrEmptyName)
	}
	return nil
}

// Role is a target-vocabulary role lookup row.
type Role struct {
	ID   string `gorm:"primaryKey;size:36" json:"id"`
	Name string `gorm:"uniqueIndex;not null;size:255" json:"name"`
}

// TableName returns the table name for Role.
func (Role) TableName() string {
	return TableRoles
}

// Validate checks that the role can be persisted.
func (r *Role) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("role: %w", ErrEmptyName)
	}
	return nil
}

// LookupKind distinguishes the two lookup relations.
type LookupKind string

const (
	KindDepartment LookupKind = "department"
	KindRole       LookupKind = "role"
)

// DepartmentNames returns the names of the given departments.
func DepartmentNames(ds []*Department) []string {
	names := make([]string, len(ds))
	for i, d := range ds {
		names[i] = d.Name
	}
	return names
}

// RoleNames returns the names of the given roles.
func RoleNames(rs []*Role) []string {
	names := make([]string, len(rs))
	for i, r := range rs {
		names[i] = r.Name
	}
	return names
}
