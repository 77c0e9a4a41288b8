// Package auth provides the authentication primitives for org-manager:
// bcrypt password hashing/verification and JWT creation/verification.
// Two kinds of tokens are issued: super-admin tokens (is_super_admin=true)
// and organization-admin tokens (org=<organization name>). See
// internal/middleware/auth.go for the request-time logic that uses these.
package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the cost factor for bcrypt hashing
const BcryptCost = 12

// HashPassword hashes a plaintext password with bcrypt. Each call produces
// a different digest for the same input because bcrypt embeds a random salt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword checks a plaintext password against a stored bcrypt digest
func VerifyPassword(password, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}
