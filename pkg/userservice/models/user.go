package models

import (
	"fmt"
	"time"
)

// User is a migrated directory identity.
//
// StableID is the directory-assigned immutable identifier and doubles as the
// idempotency key: a user row is created at most once per StableID. Contact
// holds either the plain contact field or, when privacy protection is on, its
// deterministic lookup hash; EncryptedContact then carries the envelope
// ciphertext.
type User struct {
	StableID         string    `gorm:"column:sub;primaryKey;size:255" json:"stable_id"`
	Contact          string    `gorm:"column:email;not null;size:512" json:"contact"`
	EncryptedContact *string   `gorm:"column:encrypted_email" json:"-"`
	DepartmentID     *string   `gorm:"column:dept_id;size:36;index" json:"department_id,omitempty"`
	LegacyForeignKey *string   `gorm:"column:gap_user_id;size:255" json:"legacy_foreign_key,omitempty"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for User.
func (User) TableName() string {
	return TableUsers
}

// Validate checks that the user can be persisted.
func (u *User) Validate() error {
	if u.StableID == "" {
		return fmt.Errorf("user stable id is required")
	}
	if u.Contact == "" {
		return fmt.Errorf("user contact is required")
	}
	return nil
}

// UserRole associates a user with a role.
type UserRole struct {
	UserStableID string `gorm:"column:user_sub;primaryKey;size:255" json:"user_stable_id"`
	RoleID       string `gorm:"column:roles_id;primaryKey;size:36" json:"role_id"`
}

// TableName returns the table name for UserRole.
func (UserRole) TableName() string {
	return TableUserRoles
}
