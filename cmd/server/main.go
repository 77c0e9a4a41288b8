// @title           Organization Manager API
// @version         1.0.0
// @description     Multi-tenant organization management: a super admin provisions organizations, each organization receives an isolated Postgres database, and organization admins authenticate against their own organization.
// @basePath        /
// @schemes         http https
// @securityDefinitions.apiKey  Bearer
// @in                          header
// @name                        Authorization
// @description                 "JWT bearer token: 'Bearer {token}'"
//
// @tag.name         System
// @tag.description  Health, readiness, and version endpoints.
//
// @tag.name         Observability
// @tag.description  Prometheus metrics are served on a dedicated side-channel port (default: 9090) that is separate from the main API server. This keeps the scrape path off the public ingress and avoids rate-limiting middleware. Configure the port with ORG_TELEMETRY_METRICS_PROMETHEUS_PORT. The endpoint path is always GET /metrics.

// Package main is the entry point for the organization manager server binary.
// It dispatches four subcommands (serve, migrate, seed-superadmin, version)
// via a simple switch on os.Args so the binary's full CLI surface is readable
// in one place without requiring a cobra dependency. The serve command runs
// auto-migration and super-admin seeding on startup so freshly deployed
// containers never need a separate bootstrap step.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/org-manager/org-manager/internal/api"
	"github.com/org-manager/org-manager/internal/auth"
	"github.com/org-manager/org-manager/internal/config"
	"github.com/org-manager/org-manager/internal/db"
	"github.com/org-manager/org-manager/internal/db/models"
	"github.com/org-manager/org-manager/internal/db/repositories"
	"github.com/org-manager/org-manager/internal/jobs"
	"github.com/org-manager/org-manager/internal/safego"
	"github.com/org-manager/org-manager/internal/telemetry"
	"github.com/org-manager/org-manager/internal/tenant"
)

const (
	version = "0.1.0"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run() error {
	// Parse command from args
	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Execute command
	switch command {
	case "serve":
		return serve(cfg)
	case "migrate":
		if len(os.Args) < 3 {
			return fmt.Errorf("usage: %s migrate <up|down>", os.Args[0])
		}
		return runMigrations(cfg, os.Args[2])
	case "seed-superadmin":
		return runSeedSuperAdmin(cfg)
	case "version":
		fmt.Printf("Organization Manager v%s\n", version)
		return nil
	default:
		return fmt.Errorf("unknown command: %s\nAvailable commands: serve, migrate, seed-superadmin, version", command)
	}
}

func serve(cfg *config.Config) error {
	// Initialise structured logger as early as possible so all subsequent log
	// output uses the configured format (json / text) and level.
	telemetry.SetupLogger(cfg.Logging.Format, cfg.Logging.Level)

	// Set Gin mode
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Validate JWT secret configuration (fails in production if not set)
	if err := auth.ValidateJWTSecret(); err != nil {
		return fmt.Errorf("security configuration error: %w", err)
	}
	slog.Info("JWT secret validated")

	slog.Info("control-plane database config",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"user", cfg.Database.User,
		"dbname", cfg.Database.Name,
		"sslmode", cfg.Database.SSLMode)

	// Connect to the control-plane database
	database, err := db.Connect(cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	slog.Info("connected to database")

	// Begin exporting DB pool statistics to Prometheus.
	telemetry.StartDBStatsCollector(database)

	// Run migrations automatically on startup
	slog.Info("running database migrations")
	if err := db.RunMigrations(database, "up"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	schemaVersion, dirty, err := db.GetMigrationVersion(database)
	if err != nil {
		slog.Warn("failed to get migration version", "error", err)
	} else {
		slog.Info("database schema", "version", schemaVersion, "dirty", dirty)
	}

	// Seed the first super admin from config when the table is empty, so a
	// fresh deployment is immediately operable.
	if err := seedSuperAdmin(context.Background(), cfg, database); err != nil {
		return fmt.Errorf("failed to seed super admin: %w", err)
	}

	// Start the orphan-tenant sweeper: it reconciles tenant databases on the
	// tenancy server against the organizations table, catching leftovers
	// from provisioning runs that crashed before compensation.
	orgRepo := repositories.NewOrganizationRepository(sqlx.NewDb(database, "postgres"))
	provisioner := tenant.NewProvisioner(database, cfg.Tenancy)
	sweeper := jobs.NewOrphanSweeper(database, orgRepo, provisioner, cfg.Tenancy)
	sweepCtx, cancelSweep := context.WithCancel(context.Background())
	defer cancelSweep()
	safego.Go(func() { sweeper.Start(sweepCtx) })

	// Start Prometheus metrics endpoint on a dedicated port so it is not
	// reachable through the public API ingress path.
	if cfg.Telemetry.Metrics.Enabled {
		metricsAddr := fmt.Sprintf(":%d", cfg.Telemetry.Metrics.PrometheusPort)
		safego.Go(func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			slog.Info("starting Prometheus metrics server", "addr", metricsAddr)
			srv := &http.Server{
				Addr:         metricsAddr,
				Handler:      mux,
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 10 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics server error", "error", err)
			}
		})
	}

	// Create router
	router, bgServices := api.NewRouter(cfg, database)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.GetAddress(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("starting server", "addr", cfg.Server.GetAddress(), "base_url", cfg.Server.BaseURL)

		var err error
		if cfg.Security.TLS.Enabled {
			slog.Info("TLS enabled", "cert", cfg.Security.TLS.CertFile, "key", cfg.Security.TLS.KeyFile)
			err = server.ListenAndServeTLS(cfg.Security.TLS.CertFile, cfg.Security.TLS.KeyFile)
		} else {
			err = server.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	// Stop rate limiter and sweeper goroutines
	sweeper.Stop()
	bgServices.Shutdown()

	slog.Info("server stopped gracefully")
	return nil
}

// seedSuperAdmin creates the bootstrap super-admin account from configuration
// when no active super admin exists yet. The configured password is hashed
// before anything is stored; if credentials are not configured the step is
// skipped so the operator can seed manually via the seed-superadmin command.
func seedSuperAdmin(ctx context.Context, cfg *config.Config, database *sql.DB) error {
	repo := repositories.NewSuperAdminRepository(database)

	count, err := repo.CountActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to count super admins: %w", err)
	}
	if count > 0 {
		return nil
	}

	if cfg.Auth.SuperAdmin.Email == "" || cfg.Auth.SuperAdmin.Password == "" {
		slog.Warn("no super admin exists and auth.super_admin is not configured; seed one with the seed-superadmin command")
		return nil
	}

	hash, err := auth.HashPassword(cfg.Auth.SuperAdmin.Password)
	if err != nil {
		return fmt.Errorf("failed to hash super admin password: %w", err)
	}

	admin := &models.SuperAdmin{
		Email:        cfg.Auth.SuperAdmin.Email,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := repo.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create super admin: %w", err)
	}

	slog.Info("seeded bootstrap super admin", "email", admin.Email)
	return nil
}

func runSeedSuperAdmin(cfg *config.Config) error {
	if cfg.Auth.SuperAdmin.Email == "" || cfg.Auth.SuperAdmin.Password == "" {
		return fmt.Errorf("auth.super_admin.email and auth.super_admin.password must be configured (ORG_AUTH_SUPER_ADMIN_EMAIL / ORG_AUTH_SUPER_ADMIN_PASSWORD)")
	}

	database, err := db.Connect(cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	return seedSuperAdmin(context.Background(), cfg, database)
}

func runMigrations(cfg *config.Config, direction string) error {
	// Connect to database
	database, err := db.Connect(cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	log.Printf("Running migrations: %s", direction)

	// Run migrations
	if err := db.RunMigrations(database, direction); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	// Get current version
	schemaVersion, dirty, err := db.GetMigrationVersion(database)
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	log.Printf("Migration completed successfully. Current version: %d (dirty: %v)", schemaVersion, dirty)
	return nil
}
