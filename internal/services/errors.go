// Package services implements the business logic that coordinates across
// repositories and the tenant provisioner: credential verification with
// token issuance, and the organization-creation saga.
package services

import "errors"

// Sentinel errors returned by the service layer. Handlers map these to
// HTTP status codes; everything else is an internal error.
var (
	// ErrInvalidCredentials covers every login failure — unknown email,
	// inactive account, or wrong password. One value for all causes so
	// responses cannot be used to enumerate accounts.
	ErrInvalidCredentials = errors.New("incorrect email or password")

	// ErrDuplicateOrganization is returned when the requested organization
	// name is already registered (case-insensitive). Organization names
	// are not secret, so unlike login failures this error is specific.
	ErrDuplicateOrganization = errors.New("organization already exists")

	// ErrOrgNotFound is returned by lookups for unregistered names.
	ErrOrgNotFound = errors.New("organization not found")
)
