// auth_service.go implements the two login flows. Both share one shape:
// look the credential up, verify the password against the stored bcrypt
// digest, and issue a signed token. Every failure collapses into
// ErrInvalidCredentials and leaves no side effects.
package services

import (
	"context"
	"time"

	"github.com/org-manager/org-manager/internal/auth"
	"github.com/org-manager/org-manager/internal/db/repositories"
	"github.com/org-manager/org-manager/internal/telemetry"
)

// AuthService authenticates super admins and organization admins
type AuthService struct {
	superAdminRepo *repositories.SuperAdminRepository
	orgRepo        *repositories.OrganizationRepository
	tokenTTL       time.Duration
}

// NewAuthService creates a new AuthService
func NewAuthService(superAdminRepo *repositories.SuperAdminRepository, orgRepo *repositories.OrganizationRepository, tokenTTL time.Duration) *AuthService {
	return &AuthService{
		superAdminRepo: superAdminRepo,
		orgRepo:        orgRepo,
		tokenTTL:       tokenTTL,
	}
}

// AuthenticateSuperAdmin verifies a super-admin credential and returns a
// token carrying is_super_admin=true. Unknown email, inactive account,
// and wrong password all return ErrInvalidCredentials.
func (s *AuthService) AuthenticateSuperAdmin(ctx context.Context, email, password string) (string, error) {
	admin, err := s.superAdminRepo.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}

	if admin == nil || !admin.IsActive || !auth.VerifyPassword(password, admin.PasswordHash) {
		telemetry.LoginAttemptsTotal.WithLabelValues("super_admin", "failure").Inc()
		return "", ErrInvalidCredentials
	}

	token, err := auth.GenerateSuperAdminJWT(admin.Email, s.tokenTTL)
	if err != nil {
		return "", err
	}

	telemetry.LoginAttemptsTotal.WithLabelValues("super_admin", "success").Inc()
	return token, nil
}

// AuthenticateOrgAdmin verifies an organization admin's credential against
// the credential embedded in the organization record and returns a token
// carrying the organization's registered name in the org claim.
func (s *AuthService) AuthenticateOrgAdmin(ctx context.Context, email, password string) (string, error) {
	org, err := s.orgRepo.GetByAdminEmail(ctx, email)
	if err != nil {
		return "", err
	}

	if org == nil || !auth.VerifyPassword(password, org.AdminPasswordHash) {
		telemetry.LoginAttemptsTotal.WithLabelValues("org_admin", "failure").Inc()
		return "", ErrInvalidCredentials
	}

	token, err := auth.GenerateOrgAdminJWT(email, org.Name, s.tokenTTL)
	if err != nil {
		return "", err
	}

	telemetry.LoginAttemptsTotal.WithLabelValues("org_admin", "success").Inc()
	return token, nil
}
