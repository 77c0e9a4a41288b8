// Package tenant provisions isolated per-organization databases.
//
// Each organization gets its own physical database and a database role
// scoped to it, created on the tenancy server (by default the same server
// that hosts the control-plane database). The role's password is an
// independent high-entropy secret generated here — it is never derived
// from the organization admin's login password, so compromising one
// secret reveals nothing about the other.
//
// Provisioning is a two-step saga together with the organization record
// insert performed by the caller: when the record insert fails after the
// database was created, the caller invokes Deprovision to drop the
// database and role again rather than leaving an orphaned tenant. Sagas
// and the orphan sweep coordinate through the advisory lock exposed by
// AcquireSagaLock, so a sweep never mistakes an in-flight creation for
// an orphan.
package tenant

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lib/pq"
	"github.com/org-manager/org-manager/internal/config"
)

// ErrAlreadyProvisioned is returned when the tenant database or role
// already exists. Unlike the storage-layer duplicate check this is not
// silently tolerated: a retry after partial failure and a genuine naming
// collision are indistinguishable here, so the caller decides.
var ErrAlreadyProvisioned = errors.New("tenant database already provisioned")

// Descriptor describes a freshly provisioned tenant database
type Descriptor struct {
	DBName string
	DBUser string
	// DSN is the connection descriptor handed to the organization. It
	// embeds the generated role password and is stored on the
	// organization record; it is never logged.
	DSN string
}

// Provisioner creates and drops tenant databases using an administrative
// connection to the tenancy server.
type Provisioner struct {
	db  *sql.DB
	cfg config.TenancyConfig
}

// NewProvisioner creates a Provisioner. The *sql.DB must be connected
// with a role that has CREATEDB and CREATEROLE privileges.
func NewProvisioner(db *sql.DB, cfg config.TenancyConfig) *Provisioner {
	return &Provisioner{db: db, cfg: cfg}
}

// sagaLockKey identifies the advisory lock shared by all provisioning
// sagas and the orphan sweep. Arbitrary but must never change.
const sagaLockKey int64 = 0x6f72675f

// AcquireSagaLock takes the Postgres advisory lock that serializes
// organization-creation sagas against the orphan sweep. The lock is
// session-scoped, so it is held on a dedicated pooled connection and
// released on that same connection by the returned function. Because the
// lock lives in Postgres it also coordinates multiple server instances
// sharing one control plane.
func (p *Provisioner) AcquireSagaLock(ctx context.Context) (release func(), err error) {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire saga lock: %w", err)
	}
	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock($1)", sagaLockKey); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to acquire saga lock: %w", err)
	}
	return func() {
		if _, err := conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", sagaLockKey); err != nil {
			slog.Warn("failed to release saga lock", "error", err)
		}
		conn.Close()
	}, nil
}

// Identifiers derives the tenant database and role names from an
// organization name: lower-cased, with every character outside
// [a-z0-9_] replaced by an underscore, then prefixed per configuration.
// The derivation is deterministic so retries target the same objects.
func (p *Provisioner) Identifiers(orgName string) (dbName, dbUser string) {
	base := sanitizeIdentifier(orgName)
	return p.cfg.DatabasePrefix + base, p.cfg.UserPrefix + base
}

func sanitizeIdentifier(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

// generatePassword returns a high-entropy random secret for the tenant
// database role: 24 random bytes, base64url-encoded.
func generatePassword() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate tenant password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Provision creates the tenant database, a role scoped to it, and grants
// the role full privileges on that database only. It returns a Descriptor
// whose DSN embeds the generated credentials.
//
// If the database or role already exists, Provision returns
// ErrAlreadyProvisioned and performs no further statements.
func (p *Provisioner) Provision(ctx context.Context, orgName string) (*Descriptor, error) {
	dbName, dbUser := p.Identifiers(orgName)

	password, err := generatePassword()
	if err != nil {
		return nil, err
	}

	// CREATE DATABASE cannot run inside a transaction, so the three
	// statements execute independently; Deprovision is the cleanup path
	// for partial failures.
	statements := []string{
		fmt.Sprintf("CREATE DATABASE %s", pq.QuoteIdentifier(dbName)),
		fmt.Sprintf("CREATE USER %s WITH PASSWORD %s", pq.QuoteIdentifier(dbUser), pq.QuoteLiteral(password)),
		fmt.Sprintf("GRANT ALL PRIVILEGES ON DATABASE %s TO %s", pq.QuoteIdentifier(dbName), pq.QuoteIdentifier(dbUser)),
	}

	for i, stmt := range statements {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			p.rollbackPartial(ctx, i, dbName, dbUser)
			if isDuplicateObject(err) {
				return nil, ErrAlreadyProvisioned
			}
			return nil, fmt.Errorf("tenant provisioning failed: %w", err)
		}
	}

	slog.Info("tenant database provisioned", "db", dbName, "user", dbUser)

	return &Descriptor{
		DBName: dbName,
		DBUser: dbUser,
		DSN: fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
			dbUser, password, p.cfg.DatabaseHost, p.cfg.DatabasePort, dbName, p.cfg.SSLMode),
	}, nil
}

// rollbackPartial drops the objects created by the statements before
// failedIdx, in reverse order. Only objects created in this run are
// dropped: the pre-existing role that made CREATE USER fail is left
// alone, but the database created one statement earlier is not kept.
// Failures are logged; the orphan sweep is the backstop.
func (p *Provisioner) rollbackPartial(ctx context.Context, failedIdx int, dbName, dbUser string) {
	var statements []string
	if failedIdx >= 2 {
		statements = append(statements, fmt.Sprintf("DROP USER IF EXISTS %s", pq.QuoteIdentifier(dbUser)))
	}
	if failedIdx >= 1 {
		statements = append(statements, fmt.Sprintf("DROP DATABASE IF EXISTS %s", pq.QuoteIdentifier(dbName)))
	}
	for _, stmt := range statements {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			slog.Warn("failed to roll back partial tenant provisioning", "db", dbName, "error", err)
		}
	}
}

// Deprovision drops the tenant database and role. It is the compensation
// step of the provisioning saga and is idempotent: dropping objects that
// do not exist succeeds.
func (p *Provisioner) Deprovision(ctx context.Context, orgName string) error {
	dbName, dbUser := p.Identifiers(orgName)

	statements := []string{
		fmt.Sprintf("DROP DATABASE IF EXISTS %s", pq.QuoteIdentifier(dbName)),
		fmt.Sprintf("DROP USER IF EXISTS %s", pq.QuoteIdentifier(dbUser)),
	}

	for _, stmt := range statements {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("tenant deprovisioning failed: %w", err)
		}
	}

	slog.Info("tenant database dropped", "db", dbName, "user", dbUser)
	return nil
}

// isDuplicateObject reports whether err is a Postgres duplicate_database
// (42P04) or duplicate_object (42710) error.
func isDuplicateObject(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "42P04" || pqErr.Code == "42710"
}
