// Package repositories implements the data access layer (repository pattern)
// for the control plane. Each repository type encapsulates all database
// queries for one entity. Handlers and services never issue SQL directly —
// all database access goes through this layer, which keeps query logic
// testable in isolation.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/org-manager/org-manager/internal/db/models"
)

// ErrDuplicate is returned when an insert violates a unique constraint.
// The constraint in the database is the source of truth for uniqueness;
// callers translate this into their own duplicate-entity error.
var ErrDuplicate = errors.New("duplicate record")

// SuperAdminRepository handles super-admin credential rows
type SuperAdminRepository struct {
	db *sql.DB
}

// NewSuperAdminRepository creates a new SuperAdminRepository
func NewSuperAdminRepository(db *sql.DB) *SuperAdminRepository {
	return &SuperAdminRepository{db: db}
}

// GetByEmail retrieves a super admin by exact email match.
// Returns (nil, nil) when no row exists.
func (r *SuperAdminRepository) GetByEmail(ctx context.Context, email string) (*models.SuperAdmin, error) {
	query := `
		SELECT id, email, password_hash, is_active, created_at, updated_at
		FROM super_admins
		WHERE email = $1
	`

	admin := &models.SuperAdmin{}
	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&admin.ID,
		&admin.Email,
		&admin.PasswordHash,
		&admin.IsActive,
		&admin.CreatedAt,
		&admin.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return admin, nil
}

// Create inserts a new super admin credential
func (r *SuperAdminRepository) Create(ctx context.Context, admin *models.SuperAdmin) error {
	admin.ID = uuid.New().String()
	admin.CreatedAt = time.Now()
	admin.UpdatedAt = time.Now()

	query := `
		INSERT INTO super_admins (id, email, password_hash, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		admin.ID,
		admin.Email,
		admin.PasswordHash,
		admin.IsActive,
		admin.CreatedAt,
		admin.UpdatedAt,
	)

	return mapUniqueViolation(err)
}

// CountActive returns the number of active super admins. Used by the
// startup seed to decide whether the bootstrap credential is needed.
func (r *SuperAdminRepository) CountActive(ctx context.Context) (int, error) {
	var total int
	query := `SELECT COUNT(*) FROM super_admins WHERE is_active = TRUE`
	err := r.db.QueryRowContext(ctx, query).Scan(&total)
	return total, err
}
