// Package repository holds the hand-written SQL data access for the booking
// API.  The sentinel values below let handlers and services distinguish
// failure scenarios without inspecting driver errors.
package repository

import (
	"errors"
	"strings"
)

// ErrNotFound is returned when a lookup or an update matches no row.
// Handlers should translate this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an insert or update violates a unique key
// (duplicate buy order, duplicate site content key).  Handlers should
// translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrUsernameTaken is returned when a profile update picks a username that
// already belongs to another account.
var ErrUsernameTaken = errors.New("username already taken")

// isDuplicate reports a MySQL 1062 duplicate-entry error.
func isDuplicate(err error) bool {
	return err != nil && strings.Contains(err.Error(), "1062")
}

// isForeignKeyViolation reports MySQL 1451 (row is referenced).
func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "1451")
}
