// Package models defines the persisted entities of the control plane:
// super-admin credentials and the organization registry.
package models

import "time"

// SuperAdmin represents a platform-level administrator credential. Rows
// are created by the startup seed (or the seed-superadmin subcommand)
// and are never updated or deleted by the API.
type SuperAdmin struct {
	ID           string
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
