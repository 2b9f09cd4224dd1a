package models

import "errors"

// Common errors for user service store operations.
var (
	// Department errors
	ErrDepartmentNotFound = errors.New("department not found")

	// Role errors
	ErrRoleNotFound = errors.New("role not found")

	// User errors
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("user conflicts with an existing row")

	// Lookup rows
	ErrEmptyName = errors.New("lookup name is empty")
)
