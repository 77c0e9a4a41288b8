// Package middleware provides Gin HTTP middleware for authentication,
// authorization, rate limiting, security headers, and metrics.
//
// Middleware ordering matters and is enforced in router.go:
//
//	Security → RateLimit → Auth → RequireSuperAdmin → Handler
//
// Security headers run first so they appear on all responses including
// errors. Rate limiting runs before auth to block brute-force attacks
// before any signature verification. Auth populates the caller identity;
// RequireSuperAdmin reads from that context.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/org-manager/org-manager/internal/auth"
)

const (
	// ClaimsKey is the gin.Context key under which the verified token
	// claims are stored by AuthMiddleware.
	ClaimsKey = "claims"

	// EmailKey holds the authenticated caller's email address.
	EmailKey = "email"
)

// AuthMiddleware validates the Bearer token on the request and stores the
// verified claims in the gin context. Tokens are fully stateless: a request
// is authenticated by signature and expiry alone, with no database lookup.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing authorization header",
			})
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header must start with 'Bearer '",
			})
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization token is empty",
			})
			return
		}

		claims, err := auth.ValidateJWT(token)
		if err != nil {
			// Every verification failure (bad signature, expired, malformed)
			// collapses to the same response.
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			return
		}

		c.Set(ClaimsKey, claims)
		c.Set(EmailKey, claims.Email)

		c.Next()
	}
}

// RequireSuperAdmin rejects requests whose token does not carry the
// super-admin flag. Must run after AuthMiddleware.
func RequireSuperAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := GetClaims(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
			})
			return
		}

		if !claims.IsSuperAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Super admin privileges required",
			})
			return
		}

		c.Next()
	}
}

// GetClaims retrieves the verified token claims set by AuthMiddleware.
func GetClaims(c *gin.Context) (*auth.Claims, bool) {
	val, exists := c.Get(ClaimsKey)
	if !exists {
		return nil, false
	}
	claims, ok := val.(*auth.Claims)
	return claims, ok
}
