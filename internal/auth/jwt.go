// jwt.go handles JWT token creation, signing, and verification using a
// shared secret, including lazy secret initialization and claims parsing.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// jwtSecret holds the validated JWT secret
	jwtSecret     string
	jwtSecretOnce sync.Once
	jwtSecretErr  error
)

// ErrInvalidToken is returned for every verification failure — bad
// signature, malformed token, or expiry. Callers cannot distinguish the
// cases, so a response built from this error leaks nothing about which
// check failed.
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims represents the JWT claims carried by org-manager tokens.
// Exactly one of IsSuperAdmin / Org is meaningful per token: super-admin
// tokens set IsSuperAdmin, organization-admin tokens set Org.
type Claims struct {
	Email        string `json:"email"`
	IsSuperAdmin bool   `json:"is_super_admin,omitempty"`
	Org          string `json:"org,omitempty"`
	jwt.RegisteredClaims
}

// isDevMode checks if we're in development mode (duplicated here to avoid import cycle)
func isDevMode() bool {
	devMode := os.Getenv("DEV_MODE")
	ginMode := os.Getenv("GIN_MODE")

	return devMode == "true" || devMode == "1" || ginMode == "debug"
}

// generateRandomSecret creates a cryptographically secure random secret
func generateRandomSecret() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to a less secure but functional secret
		return fmt.Sprintf("dev-fallback-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}

// ValidateJWTSecret checks that the JWT secret is properly configured.
// In production, this will fail if ORG_JWT_SECRET is not set.
// In dev mode, it will generate a random secret and log a warning.
// Call this at application startup.
func ValidateJWTSecret() error {
	jwtSecretOnce.Do(func() {
		secret := os.Getenv("ORG_JWT_SECRET")

		if secret == "" {
			if isDevMode() {
				// In dev mode, generate a random secret and warn
				jwtSecret = generateRandomSecret()
				log.Printf("WARNING: ORG_JWT_SECRET not set. Using auto-generated secret for development.")
				log.Printf("WARNING: Tokens will not survive restarts. Set ORG_JWT_SECRET for persistent sessions.")
			} else {
				// In production, fail fast
				jwtSecretErr = errors.New("SECURITY ERROR: ORG_JWT_SECRET environment variable is required in production. " +
					"Generate a secure secret with: openssl rand -hex 32")
			}
			return
		}

		// Validate secret length (minimum 32 characters recommended)
		if len(secret) < 32 {
			log.Printf("WARNING: ORG_JWT_SECRET is shorter than recommended 32 characters. Consider using a longer secret.")
		}

		jwtSecret = secret
	})

	return jwtSecretErr
}

// GetJWTSecret retrieves the validated JWT secret.
// Panics if ValidateJWTSecret() hasn't been called or failed.
func GetJWTSecret() string {
	if jwtSecret == "" {
		// If ValidateJWTSecret wasn't called, try to validate now
		if err := ValidateJWTSecret(); err != nil {
			panic(err)
		}
	}
	return jwtSecret
}

// GenerateSuperAdminJWT creates a token asserting super-admin rights
func GenerateSuperAdminJWT(email string, expiresIn time.Duration) (string, error) {
	return generateJWT(&Claims{Email: email, IsSuperAdmin: true}, email, expiresIn)
}

// GenerateOrgAdminJWT creates a token scoped to a single organization.
// The org claim carries the organization's registered name (original
// casing), never a normalized form, so callers can echo it back verbatim.
func GenerateOrgAdminJWT(email, org string, expiresIn time.Duration) (string, error) {
	return generateJWT(&Claims{Email: email, Org: org}, email, expiresIn)
}

func generateJWT(claims *Claims, subject string, expiresIn time.Duration) (string, error) {
	if expiresIn == 0 {
		expiresIn = 30 * time.Minute // Default to 30 minutes
	}

	claims.RegisteredClaims = jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		Issuer:    "org-manager",
		Subject:   subject,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	secret := GetJWTSecret()

	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ValidateJWT parses and validates a JWT token. All failures collapse
// into ErrInvalidToken.
func ValidateJWT(tokenString string) (*Claims, error) {
	secret := GetJWTSecret()

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})

	if err != nil {
		return nil, ErrInvalidToken
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
