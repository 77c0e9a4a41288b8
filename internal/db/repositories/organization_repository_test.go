package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/org-manager/org-manager/internal/db/models"
)

var orgCols = []string{"id", "name", "db_url", "admin_email", "admin_password_hash", "created_at", "updated_at"}

func sampleOrgRow() *sqlmock.Rows {
	return sqlmock.NewRows(orgCols).
		AddRow("org-1", "Acme", "postgres://user_acme:pw@localhost:5432/org_acme",
			"admin@acme.test", "$2a$12$digest", time.Now(), time.Now())
}

func emptyOrgRow() *sqlmock.Rows {
	return sqlmock.NewRows(orgCols)
}

func newOrgRepo(t *testing.T) (*OrganizationRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewOrganizationRepository(sqlx.NewDb(db, "postgres")), mock
}

// ---------------------------------------------------------------------------
// GetByName
// ---------------------------------------------------------------------------

func TestOrgGetByName_Found(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectQuery("SELECT.*FROM organizations.*WHERE lower\\(name\\) = lower").
		WithArgs("acme").
		WillReturnRows(sampleOrgRow())

	org, err := repo.GetByName(context.Background(), "acme")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if org == nil {
		t.Fatal("expected org, got nil")
	}
	if org.Name != "Acme" {
		t.Errorf("Name = %s, want Acme (registered casing preserved)", org.Name)
	}
}

func TestOrgGetByName_NotFound(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectQuery("SELECT.*FROM organizations.*WHERE lower\\(name\\) = lower").
		WithArgs("missing").
		WillReturnRows(emptyOrgRow())

	org, err := repo.GetByName(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if org != nil {
		t.Errorf("expected nil org for not found, got %v", org)
	}
}

func TestOrgGetByName_DBError(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectQuery("SELECT.*FROM organizations.*WHERE lower\\(name\\) = lower").
		WithArgs("acme").
		WillReturnError(errDB)

	_, err := repo.GetByName(context.Background(), "acme")
	if err == nil {
		t.Error("expected error, got nil")
	}
}

// ---------------------------------------------------------------------------
// GetByAdminEmail
// ---------------------------------------------------------------------------

func TestOrgGetByAdminEmail_Found(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectQuery("SELECT.*FROM organizations.*WHERE admin_email").
		WithArgs("admin@acme.test").
		WillReturnRows(sampleOrgRow())

	org, err := repo.GetByAdminEmail(context.Background(), "admin@acme.test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if org == nil {
		t.Fatal("expected org, got nil")
	}
	if org.AdminEmail != "admin@acme.test" {
		t.Errorf("AdminEmail = %s, want admin@acme.test", org.AdminEmail)
	}
}

func TestOrgGetByAdminEmail_NotFound(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectQuery("SELECT.*FROM organizations.*WHERE admin_email").
		WithArgs("nobody@acme.test").
		WillReturnRows(emptyOrgRow())

	org, err := repo.GetByAdminEmail(context.Background(), "nobody@acme.test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if org != nil {
		t.Errorf("expected nil org, got %v", org)
	}
}

// ---------------------------------------------------------------------------
// ExistsByName
// ---------------------------------------------------------------------------

func TestOrgExistsByName(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("Acme").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsByName(context.Background(), "Acme")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !exists {
		t.Error("ExistsByName = false, want true")
	}
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestOrgCreate(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectExec("INSERT INTO organizations").
		WillReturnResult(sqlmock.NewResult(1, 1))

	org := &models.Organization{
		Name:              "Acme",
		DBURL:             "postgres://user_acme:pw@localhost:5432/org_acme",
		AdminEmail:        "admin@acme.test",
		AdminPasswordHash: "$2a$12$digest",
	}
	if err := repo.Create(context.Background(), org); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if org.ID == "" {
		t.Error("expected generated ID")
	}
}

func TestOrgCreate_UniqueViolation(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectExec("INSERT INTO organizations").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "organizations_name_lower_idx"})

	err := repo.Create(context.Background(), &models.Organization{Name: "Acme"})
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("error = %v, want ErrDuplicate", err)
	}
}

func TestOrgCreate_DBError(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectExec("INSERT INTO organizations").
		WillReturnError(errDB)

	err := repo.Create(context.Background(), &models.Organization{Name: "Acme"})
	if err == nil {
		t.Error("expected error, got nil")
	}
	if errors.Is(err, ErrDuplicate) {
		t.Error("plain db error must not map to ErrDuplicate")
	}
}

// ---------------------------------------------------------------------------
// List / Count
// ---------------------------------------------------------------------------

func TestOrgList(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectQuery("SELECT.*FROM organizations.*ORDER BY created_at").
		WithArgs(20, 0).
		WillReturnRows(sampleOrgRow())

	orgs, err := repo.List(context.Background(), 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(orgs) != 1 {
		t.Fatalf("len(orgs) = %d, want 1", len(orgs))
	}
}

func TestOrgCount(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectQuery("SELECT COUNT.*FROM organizations").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	total, err := repo.Count(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 3 {
		t.Errorf("Count = %d, want 3", total)
	}
}
