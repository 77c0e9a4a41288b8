// Package api wires together all HTTP routes for the organization manager.
//
// Route grouping philosophy:
//   - The two login routes (/api/v1/auth/login, /api/v1/admin/login) are
//     unauthenticated but carry a strict per-IP rate limit, since they are
//     the brute-force surface of the service.
//   - /api/v1/org/create requires a super-admin bearer token.
//   - /api/v1/org/get is public: organizations hand the returned connection
//     descriptor to their own tooling during onboarding.
package api

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/org-manager/org-manager/internal/api/authapi"
	"github.com/org-manager/org-manager/internal/api/orgs"
	"github.com/org-manager/org-manager/internal/config"
	"github.com/org-manager/org-manager/internal/db/repositories"
	"github.com/org-manager/org-manager/internal/middleware"
	"github.com/org-manager/org-manager/internal/services"
	"github.com/org-manager/org-manager/internal/tenant"
)

// BackgroundServices holds resources that must be stopped during graceful
// shutdown. The caller (cmd/server) is responsible for calling Shutdown()
// when the process receives a termination signal.
type BackgroundServices struct {
	rateLimiters []*middleware.RateLimiter
}

// Shutdown stops all background goroutines. It should be called after the
// HTTP server has been shut down so that in-flight requests are drained first.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, db *sql.DB) (*gin.Engine, *BackgroundServices) {
	router := gin.New()

	// Initialize repositories
	superAdminRepo := repositories.NewSuperAdminRepository(db)
	orgRepo := repositories.NewOrganizationRepository(sqlx.NewDb(db, "postgres"))

	// Initialize the tenant provisioner and services
	provisioner := tenant.NewProvisioner(db, cfg.Tenancy)
	authService := services.NewAuthService(superAdminRepo, orgRepo, cfg.Auth.TokenTTL)
	orgService := services.NewOrganizationService(orgRepo, provisioner)

	// Initialize handlers
	authHandlers := authapi.NewHandlers(authService)
	orgHandlers := orgs.NewHandlers(orgService, authService)

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware(cfg))
	router.Use(CORSMiddleware(cfg))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig()))

	// API version
	router.GET("/version", versionHandler())

	// Initialize rate limiters
	authRateLimiter := middleware.NewRateLimiter(middleware.AuthRateLimitConfig())
	generalRateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimitConfig())
	provisionRateLimiter := middleware.NewRateLimiter(middleware.ProvisionRateLimitConfig())

	apiV1 := router.Group("/api/v1")
	{
		// Health endpoints (public, not rate limited so orchestrator probes
		// are never rejected)
		apiV1.GET("/health", healthCheckHandler())
		apiV1.GET("/health/ready", readinessHandler(db))

		// Login endpoints (no auth required, but strictly rate limited)
		loginGroup := apiV1.Group("")
		loginGroup.Use(middleware.RateLimitMiddleware(authRateLimiter))
		{
			loginGroup.POST("/auth/login", authHandlers.LoginHandler())
			loginGroup.POST("/admin/login", orgHandlers.AdminLoginHandler())
		}

		// Public organization lookup
		publicGroup := apiV1.Group("")
		publicGroup.Use(middleware.RateLimitMiddleware(generalRateLimiter))
		{
			publicGroup.GET("/org/get", orgHandlers.GetOrganizationHandler())
		}

		// Super-admin-only endpoints
		adminGroup := apiV1.Group("")
		adminGroup.Use(middleware.AuthMiddleware())
		adminGroup.Use(middleware.RequireSuperAdmin())
		adminGroup.Use(middleware.RateLimitMiddleware(provisionRateLimiter))
		{
			adminGroup.POST("/org/create", orgHandlers.CreateOrganizationHandler())
		}
	}

	bg := &BackgroundServices{
		rateLimiters: []*middleware.RateLimiter{authRateLimiter, generalRateLimiter, provisionRateLimiter},
	}

	return router, bg
}

// @Summary      Health check
// @Description  Returns the liveness status of the service.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status: healthy, time: RFC3339 timestamp"
// @Router       /api/v1/health [get]
// healthCheckHandler returns the liveness status of the service
func healthCheckHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      Readiness check
// @Description  Returns whether the service is ready to accept traffic. Checks control-plane database connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "ready: true, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "ready: false, error: database not ready"
// @Router       /api/v1/health/ready [get]
// readinessHandler returns the readiness status of the service. Unlike the
// liveness probe it pings the control-plane database, so a readiness gate
// fails when logins and provisioning would error.
func readinessHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready": false,
				"error": "database not ready",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"ready": true,
			"time":  time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      API version
// @Description  Returns the current API version.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "version, api_version"
// @Router       /version [get]
// versionHandler returns the API version
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     "0.1.0",
			"api_version": "v1",
		})
	}
}

// LoggerMiddleware provides structured logging
func LoggerMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		requestID, _ := c.Get(middleware.RequestIDKey)
		slog.LogAttrs(
			c.Request.Context(),
			slog.LevelInfo,
			"http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.Int("status", c.Writer.Status()),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", latency),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", fmt.Sprintf("%v", requestID)),
			slog.String("user_agent", c.Request.UserAgent()),
		)
	}
}

// CORSMiddleware handles CORS
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// Check if origin is allowed
		allowed := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
			}
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
