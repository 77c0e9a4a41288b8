// organization_service.go orchestrates the tenant-creation saga:
// existence check, database provisioning, record insert, and — when the
// insert fails after the database was created — compensation by dropping
// the database again.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/org-manager/org-manager/internal/auth"
	"github.com/org-manager/org-manager/internal/db/models"
	"github.com/org-manager/org-manager/internal/db/repositories"
	"github.com/org-manager/org-manager/internal/telemetry"
	"github.com/org-manager/org-manager/internal/tenant"
)

// TenantProvisioner is the slice of internal/tenant.Provisioner the
// organization service needs. Narrowed to an interface so tests can
// observe provisioning side effects without a database server.
type TenantProvisioner interface {
	Provision(ctx context.Context, orgName string) (*tenant.Descriptor, error)
	Deprovision(ctx context.Context, orgName string) error
	AcquireSagaLock(ctx context.Context) (release func(), err error)
}

// OrganizationService implements organization creation and lookup
type OrganizationService struct {
	orgRepo     *repositories.OrganizationRepository
	provisioner TenantProvisioner
}

// NewOrganizationService creates a new OrganizationService
func NewOrganizationService(orgRepo *repositories.OrganizationRepository, provisioner TenantProvisioner) *OrganizationService {
	return &OrganizationService{
		orgRepo:     orgRepo,
		provisioner: provisioner,
	}
}

// CreateOrganization provisions an isolated database for the organization
// and records it in the registry. The name must be unused
// (case-insensitive); when two concurrent requests race past the
// existence check, the unique index on lower(name) decides the winner and
// the loser's database is dropped again before ErrDuplicateOrganization
// is returned.
func (s *OrganizationService) CreateOrganization(ctx context.Context, name, adminEmail, adminPassword string) (*models.Organization, error) {
	// Fast path: reject names that are already registered before touching
	// the tenancy server. The unique index remains the source of truth.
	exists, err := s.orgRepo.ExistsByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateOrganization
	}

	// The saga runs under the shared advisory lock so the orphan sweeper
	// never observes the window between CREATE DATABASE and the record
	// insert.
	release, err := s.provisioner.AcquireSagaLock(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}
	defer release()

	start := time.Now()
	desc, err := s.provisioner.Provision(ctx, name)
	if err != nil {
		telemetry.TenantProvisionsTotal.WithLabelValues("failure").Inc()
		if errors.Is(err, tenant.ErrAlreadyProvisioned) {
			// The registry has no record for this name but the database
			// exists — either an earlier run failed between provisioning
			// and insert, or an unrelated database occupies the name.
			// Surfaced as a duplicate so the operator investigates rather
			// than silently adopting a database of unknown provenance.
			return nil, ErrDuplicateOrganization
		}
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}

	passwordHash, err := auth.HashPassword(adminPassword)
	if err != nil {
		return nil, s.compensate(ctx, name, err)
	}

	org := &models.Organization{
		Name:              name,
		DBURL:             desc.DSN,
		AdminEmail:        adminEmail,
		AdminPasswordHash: passwordHash,
	}

	if err := s.orgRepo.Create(ctx, org); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			// Lost the check-then-create race: another request registered
			// the name between our existence check and insert.
			return nil, s.compensate(ctx, name, ErrDuplicateOrganization)
		}
		return nil, s.compensate(ctx, name, err)
	}

	telemetry.TenantProvisionsTotal.WithLabelValues("success").Inc()
	telemetry.TenantProvisionDuration.Observe(time.Since(start).Seconds())
	slog.Info("organization created", "name", org.Name, "db", desc.DBName)

	return org, nil
}

// compensate rolls back the tenant database after a failure later in the
// saga, then returns cause. A failed rollback is logged and reported
// alongside the original failure; the orphaned database then needs
// manual cleanup.
func (s *OrganizationService) compensate(ctx context.Context, name string, cause error) error {
	// Counts as a failed saga: the database may have transiently existed,
	// but no organization row does.
	telemetry.TenantProvisionsTotal.WithLabelValues("failure").Inc()
	if err := s.provisioner.Deprovision(ctx, name); err != nil {
		slog.Error("tenant rollback failed, database orphaned", "org", name, "error", err)
		return errors.Join(cause, fmt.Errorf("tenant rollback failed: %w", err))
	}
	return cause
}

// GetOrganization looks an organization up by name, case-insensitively
func (s *OrganizationService) GetOrganization(ctx context.Context, name string) (*models.Organization, error) {
	org, err := s.orgRepo.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, ErrOrgNotFound
	}
	return org, nil
}

// ListOrganizations returns a page of organizations plus the total count
func (s *OrganizationService) ListOrganizations(ctx context.Context, limit, offset int) ([]*models.Organization, int, error) {
	orgs, err := s.orgRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.orgRepo.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	return orgs, total, nil
}
