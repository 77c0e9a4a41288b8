// organization_repository.go implements the organization registry queries.
// Lookups by name are case-insensitive: "Acme" and "acme" refer to the same
// tenant. The unique index on lower(name) enforces this at the storage
// layer; the racy application-level existence check in the service is only
// a fast path.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/org-manager/org-manager/internal/db/models"
)

// OrganizationRepository handles organization rows
type OrganizationRepository struct {
	db *sqlx.DB
}

// NewOrganizationRepository creates a new OrganizationRepository
func NewOrganizationRepository(db *sqlx.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

// mapUniqueViolation converts a lib/pq unique-constraint violation
// (SQLSTATE 23505) into ErrDuplicate and passes every other error through.
func mapUniqueViolation(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}

// Create inserts a new organization record. A unique-constraint violation
// on lower(name) or admin_email is surfaced as ErrDuplicate — this is the
// loser's path of the check-then-create race.
func (r *OrganizationRepository) Create(ctx context.Context, org *models.Organization) error {
	org.ID = uuid.New().String()
	org.CreatedAt = time.Now()
	org.UpdatedAt = time.Now()

	query := `
		INSERT INTO organizations (id, name, db_url, admin_email, admin_password_hash, created_at, updated_at)
		VALUES (:id, :name, :db_url, :admin_email, :admin_password_hash, :created_at, :updated_at)
	`

	_, err := r.db.NamedExecContext(ctx, query, org)
	return mapUniqueViolation(err)
}

// GetByName retrieves an organization by name, case-insensitively.
// Returns (nil, nil) when no row exists.
func (r *OrganizationRepository) GetByName(ctx context.Context, name string) (*models.Organization, error) {
	query := `
		SELECT id, name, db_url, admin_email, admin_password_hash, created_at, updated_at
		FROM organizations
		WHERE lower(name) = lower($1)
	`

	org := &models.Organization{}
	err := r.db.GetContext(ctx, org, query, name)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return org, nil
}

// GetByAdminEmail retrieves an organization by its admin's email (exact match).
// Returns (nil, nil) when no row exists.
func (r *OrganizationRepository) GetByAdminEmail(ctx context.Context, email string) (*models.Organization, error) {
	query := `
		SELECT id, name, db_url, admin_email, admin_password_hash, created_at, updated_at
		FROM organizations
		WHERE admin_email = $1
	`

	org := &models.Organization{}
	err := r.db.GetContext(ctx, org, query, email)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return org, nil
}

// ExistsByName reports whether an organization with the given name exists,
// case-insensitively.
func (r *OrganizationRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM organizations WHERE lower(name) = lower($1))`
	err := r.db.GetContext(ctx, &exists, query, name)
	return exists, err
}

// List retrieves a paginated list of organizations, newest first
func (r *OrganizationRepository) List(ctx context.Context, limit, offset int) ([]*models.Organization, error) {
	query := `
		SELECT id, name, db_url, admin_email, admin_password_hash, created_at, updated_at
		FROM organizations
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	orgs := make([]*models.Organization, 0)
	if err := r.db.SelectContext(ctx, &orgs, query, limit, offset); err != nil {
		return nil, err
	}
	return orgs, nil
}

// Count returns the total number of organizations
func (r *OrganizationRepository) Count(ctx context.Context) (int, error) {
	var total int
	query := `SELECT COUNT(*) FROM organizations`
	err := r.db.GetContext(ctx, &total, query)
	return total, err
}
