// orphan_sweeper.go implements the OrphanSweeper background job, which
// periodically scans the tenancy server for tenant databases that have no
// matching organization record. Such orphans appear when the process crashes
// between provisioning a tenant database and inserting the organization row,
// before the compensation step could run. By default the sweeper only reports
// orphans; when tenancy.drop_orphans is enabled it drops the database and its
// role the same way the synchronous compensation path does. Every sweep runs
// under the provisioning saga lock, so a creation still in flight is never
// mistaken for an orphan.
package jobs

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/org-manager/org-manager/internal/config"
	"github.com/org-manager/org-manager/internal/db/repositories"
	"github.com/org-manager/org-manager/internal/tenant"
)

const listPageSize = 500

// OrphanSweeper reconciles the set of tenant databases on the tenancy
// server with the organizations table.
type OrphanSweeper struct {
	db          *sql.DB
	orgRepo     *repositories.OrganizationRepository
	provisioner *tenant.Provisioner
	cfg         config.TenancyConfig
	interval    time.Duration
	stopChan    chan struct{}
}

// NewOrphanSweeper creates a new OrphanSweeper. The *sql.DB must be the
// administrative connection used for provisioning, since dropping orphans
// requires the same privileges.
func NewOrphanSweeper(
	db *sql.DB,
	orgRepo *repositories.OrganizationRepository,
	provisioner *tenant.Provisioner,
	cfg config.TenancyConfig,
) *OrphanSweeper {
	interval := cfg.OrphanSweepInterval
	if interval <= 0 {
		interval = time.Hour
	}
	return &OrphanSweeper{
		db:          db,
		orgRepo:     orgRepo,
		provisioner: provisioner,
		cfg:         cfg,
		interval:    interval,
		stopChan:    make(chan struct{}),
	}
}

// Start begins the background sweep loop. It runs an initial sweep
// immediately, then repeats on the configured interval. The loop exits when
// ctx is cancelled or Stop() is called.
func (s *OrphanSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("orphan sweeper started",
		"interval", s.interval,
		"drop_orphans", s.cfg.DropOrphans)

	s.runSweep(ctx)

	for {
		select {
		case <-ticker.C:
			s.runSweep(ctx)
		case <-s.stopChan:
			slog.Info("orphan sweeper stopped")
			return
		case <-ctx.Done():
			slog.Info("orphan sweeper stopped (context cancelled)")
			return
		}
	}
}

// Stop signals the sweep loop to exit.
func (s *OrphanSweeper) Stop() {
	close(s.stopChan)
}

func (s *OrphanSweeper) runSweep(ctx context.Context) {
	orphans, err := s.Sweep(ctx)
	if err != nil {
		slog.Error("orphan sweep failed", "error", err)
		return
	}
	if len(orphans) > 0 && !s.cfg.DropOrphans {
		slog.Warn("orphaned tenant databases found; enable tenancy.drop_orphans or clean up manually",
			"databases", orphans)
	}
}

// Sweep performs a single reconciliation pass and returns the names of the
// orphaned tenant databases it found. When drops are enabled the returned
// databases have already been dropped.
//
// The pass runs under the provisioning saga lock: a creation in flight
// between CREATE DATABASE and its record insert holds that lock, so once
// Sweep acquires it any tenant database without an organization row is
// genuinely orphaned.
func (s *OrphanSweeper) Sweep(ctx context.Context) ([]string, error) {
	release, err := s.provisioner.AcquireSagaLock(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire saga lock: %w", err)
	}
	defer release()

	expected, err := s.expectedDatabases(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}

	actual, err := s.tenantDatabases(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenant databases: %w", err)
	}

	var orphans []string
	for _, dbName := range actual {
		if _, ok := expected[dbName]; ok {
			continue
		}
		orphans = append(orphans, dbName)
		if s.cfg.DropOrphans {
			if err := s.dropOrphan(ctx, dbName); err != nil {
				return orphans, err
			}
		}
	}
	return orphans, nil
}

// expectedDatabases returns the set of tenant database names derived from
// every organization record, paging through the table.
func (s *OrphanSweeper) expectedDatabases(ctx context.Context) (map[string]struct{}, error) {
	expected := make(map[string]struct{})
	offset := 0
	for {
		page, err := s.orgRepo.List(ctx, listPageSize, offset)
		if err != nil {
			return nil, err
		}
		for _, org := range page {
			dbName, _ := s.provisioner.Identifiers(org.Name)
			expected[dbName] = struct{}{}
		}
		if len(page) < listPageSize {
			return expected, nil
		}
		offset += listPageSize
	}
}

// tenantDatabases lists databases on the tenancy server whose names carry
// the tenant prefix.
func (s *OrphanSweeper) tenantDatabases(ctx context.Context) ([]string, error) {
	// Escape LIKE metacharacters in the prefix; it is validated to
	// [a-z0-9_] at config load, so only underscores need escaping.
	pattern := strings.ReplaceAll(s.cfg.DatabasePrefix, "_", `\_`) + "%"

	rows, err := s.db.QueryContext(ctx,
		`SELECT datname FROM pg_database WHERE datname LIKE $1 ORDER BY datname`, pattern)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// dropOrphan drops an orphaned tenant database and its role, mirroring the
// synchronous compensation path. The role name is derived from the database
// name by swapping prefixes.
func (s *OrphanSweeper) dropOrphan(ctx context.Context, dbName string) error {
	dbUser := s.cfg.UserPrefix + strings.TrimPrefix(dbName, s.cfg.DatabasePrefix)

	statements := []string{
		fmt.Sprintf("DROP DATABASE IF EXISTS %s", pq.QuoteIdentifier(dbName)),
		fmt.Sprintf("DROP USER IF EXISTS %s", pq.QuoteIdentifier(dbUser)),
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to drop orphaned tenant %s: %w", dbName, err)
		}
	}

	slog.Info("dropped orphaned tenant database", "db", dbName, "user", dbUser)
	return nil
}
