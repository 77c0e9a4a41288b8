// organization.go defines the Organization model representing one tenant:
// its registered name, the connection descriptor of its isolated database,
// and its embedded admin credential.
package models

import "time"

// Organization represents a tenant. The admin credential is embedded in
// the record itself — one admin per organization. Name uniqueness is
// case-insensitive and enforced by a unique index on lower(name).
type Organization struct {
	ID                string    `db:"id"`
	Name              string    `db:"name"`
	DBURL             string    `db:"db_url"`
	AdminEmail        string    `db:"admin_email"`
	AdminPasswordHash string    `db:"admin_password_hash"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}
