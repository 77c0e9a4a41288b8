package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/org-manager/org-manager/internal/auth"
)

// newAuthRouter builds a router with AuthMiddleware only; the handler reports
// what identity the middleware placed in the context.
func newAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AuthMiddleware())
	r.GET("/", func(c *gin.Context) {
		claims, ok := GetClaims(c)
		if !ok {
			c.String(http.StatusInternalServerError, "no claims in context")
			return
		}
		c.String(http.StatusOK, claims.Email)
	})
	return r
}

// newGatedRouter adds RequireSuperAdmin after AuthMiddleware.
func newGatedRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AuthMiddleware(), RequireSuperAdmin())
	r.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func doAuthRequest(r *gin.Engine, method, authHeader string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	r.ServeHTTP(w, req)
	return w
}

// ---------------------------------------------------------------------------
// AuthMiddleware — early-exit paths (no token verification needed)
// ---------------------------------------------------------------------------

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	if w := doAuthRequest(newAuthRouter(), http.MethodGet, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_NonBearerPrefix(t *testing.T) {
	if w := doAuthRequest(newAuthRouter(), http.MethodGet, "Basic dXNlcjpwYXNz"); w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_EmptyToken(t *testing.T) {
	// "Bearer " with only whitespace → trimmed to empty → 401
	if w := doAuthRequest(newAuthRouter(), http.MethodGet, "Bearer   "); w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

// ---------------------------------------------------------------------------
// AuthMiddleware — token verification
// ---------------------------------------------------------------------------

func TestAuthMiddleware_ValidToken(t *testing.T) {
	token, err := auth.GenerateSuperAdminJWT("root@example.com", time.Hour)
	if err != nil {
		t.Fatalf("GenerateSuperAdminJWT: %v", err)
	}

	w := doAuthRequest(newAuthRouter(), http.MethodGet, "Bearer "+token)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", w.Code, w.Body.String())
	}
	if w.Body.String() != "root@example.com" {
		t.Errorf("context email = %q, want root@example.com", w.Body.String())
	}
}

func TestAuthMiddleware_GarbageToken(t *testing.T) {
	if w := doAuthRequest(newAuthRouter(), http.MethodGet, "Bearer not.a.jwt"); w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_ExpiredToken(t *testing.T) {
	token, err := auth.GenerateSuperAdminJWT("root@example.com", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateSuperAdminJWT: %v", err)
	}

	if w := doAuthRequest(newAuthRouter(), http.MethodGet, "Bearer "+token); w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

// ---------------------------------------------------------------------------
// RequireSuperAdmin
// ---------------------------------------------------------------------------

func TestRequireSuperAdmin_SuperAdminToken(t *testing.T) {
	token, err := auth.GenerateSuperAdminJWT("root@example.com", time.Hour)
	if err != nil {
		t.Fatalf("GenerateSuperAdminJWT: %v", err)
	}

	if w := doAuthRequest(newGatedRouter(), http.MethodPost, "Bearer "+token); w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestRequireSuperAdmin_OrgAdminToken(t *testing.T) {
	token, err := auth.GenerateOrgAdminJWT("admin@acme.test", "Acme", time.Hour)
	if err != nil {
		t.Fatalf("GenerateOrgAdminJWT: %v", err)
	}

	if w := doAuthRequest(newGatedRouter(), http.MethodPost, "Bearer "+token); w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestRequireSuperAdmin_NoToken(t *testing.T) {
	if w := doAuthRequest(newGatedRouter(), http.MethodPost, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

// RequireSuperAdmin registered without AuthMiddleware must fail closed.
func TestRequireSuperAdmin_WithoutAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequireSuperAdmin())
	r.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	if w := doAuthRequest(r, http.MethodPost, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}
