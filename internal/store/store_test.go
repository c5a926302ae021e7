package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"testing"
	"time"

	"CrmAPI/entities"
	"CrmAPI/internal/domain"
	"CrmAPI/internal/model"
	"CrmAPI/internal/query"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5/pgconn"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

func entity(t *testing.T, name string) *model.Entity {
	t.Helper()
	reg, err := model.NewRegistry(entities.FS)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return reg.MustGet(name)
}

var companyColumns = []string{"id", "name", "industry", "website", "email", "phone", "address", "logo", "created_at", "updated_at"}

func companyRow(rows *sqlmock.Rows, id int64, name string, now time.Time) *sqlmock.Rows {
	return rows.AddRow(id, name, nil, nil, nil, nil, nil, nil, now, now)
}

func TestListReturnsPageAndFilteredTotal(t *testing.T) {
	db, mock := newMockDB(t)
	e := entity(t, "Company")
	d := query.Parse(url.Values{"industry": {"tech"}}, e, query.Options{DefaultPerPage: 15, MaxPerPage: 100})
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM companies AS main WHERE \(main.industry IN \(\$1\)\)`).
		WithArgs("tech").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	rows := sqlmock.NewRows(companyColumns)
	companyRow(rows, 1, "Acme", now)
	companyRow(rows, 2, "Beta", now)
	mock.ExpectQuery(`SELECT main.id, main.name, .+ FROM companies AS main WHERE .+ ORDER BY main.name ASC, main.id ASC LIMIT 15`).
		WithArgs("tech").
		WillReturnRows(rows)

	items, total, err := New(db).List(context.Background(), d)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Fatalf("unexpected result: total=%d items=%d", total, len(items))
	}
	if items[0]["name"] != "Acme" || items[0]["id"] != int64(1) {
		t.Fatalf("unexpected first row: %v", items[0])
	}
}

func TestListSkipsSelectWhenEmpty(t *testing.T) {
	db, mock := newMockDB(t)
	e := entity(t, "Company")
	d := query.Parse(url.Values{}, e, query.Options{})

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM companies AS main`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	items, total, err := New(db).List(context.Background(), d)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 0 || items == nil || len(items) != 0 {
		t.Fatalf("expected empty non-nil list, got %v %d", items, total)
	}
}

func TestFindNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	e := entity(t, "Company")

	mock.ExpectQuery(`SELECT .+ FROM companies AS main WHERE main.id = \$1`).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows(companyColumns))

	_, err := New(db).Find(context.Background(), e, 99)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err.Error() != "Company not found" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestInsertSetsTimestamps(t *testing.T) {
	db, mock := newMockDB(t)
	e := entity(t, "Company")
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	rows := companyRow(sqlmock.NewRows(companyColumns), 7, "Acme", now)
	mock.ExpectQuery(`INSERT INTO companies \(created_at,name,updated_at\) VALUES \(\$1,\$2,\$3\) RETURNING id, name`).
		WithArgs(now, "Acme", now).
		WillReturnRows(rows)

	s := New(db)
	s.SetClock(func() time.Time { return now })
	rec, err := s.Insert(context.Background(), e, model.Record{"name": "Acme"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if rec["id"] != int64(7) {
		t.Fatalf("unexpected id: %v", rec["id"])
	}
	if got, ok := rec["created_at"].(time.Time); !ok || !got.Equal(now) {
		t.Fatalf("unexpected created_at: %v", rec["created_at"])
	}
}

func TestUpdateMissingRow(t *testing.T) {
	db, mock := newMockDB(t)
	e := entity(t, "Company")

	mock.ExpectQuery(`UPDATE companies SET name = \$1, updated_at = \$2 WHERE id = \$3 RETURNING`).
		WithArgs("New", sqlmock.AnyArg(), int64(3)).
		WillReturnRows(sqlmock.NewRows(companyColumns))

	_, err := New(db).Update(context.Background(), e, 3, model.Record{"name": "New"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	db, mock := newMockDB(t)
	e := entity(t, "Company")

	mock.ExpectExec(`DELETE FROM companies WHERE id = \$1`).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM companies WHERE id = \$1`).
		WithArgs(int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	s := New(db)
	if err := s.Delete(context.Background(), e, 1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(context.Background(), e, 2); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestExists(t *testing.T) {
	db, mock := newMockDB(t)
	e := entity(t, "User")

	mock.ExpectQuery(`SELECT EXISTS \( SELECT 1 FROM users WHERE email = \$1 AND id <> \$2 \)`).
		WithArgs("a@example.com", int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := New(db).Exists(context.Background(), e, map[string]any{"email": "a@example.com"}, 4)
	if err != nil || !ok {
		t.Fatalf("Exists = %v, %v", ok, err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("write time_entries: %w", &pgconn.PgError{Code: "23505", ConstraintName: "time_entries_one_running"})
	name, ok := IsUniqueViolation(err)
	if !ok || name != "time_entries_one_running" {
		t.Fatalf("expected unique violation, got %q %v", name, ok)
	}
	if _, ok := IsUniqueViolation(errors.New("other")); ok {
		t.Fatalf("plain error is not a unique violation")
	}
}

func TestIsForeignKeyViolation(t *testing.T) {
	err := fmt.Errorf("delete companies: %w", &pgconn.PgError{Code: "23503", ConstraintName: "contacts_company_id_fkey"})
	name, ok := IsForeignKeyViolation(err)
	if !ok || name != "contacts_company_id_fkey" {
		t.Fatalf("expected foreign key violation, got %q %v", name, ok)
	}
	if _, ok := IsForeignKeyViolation(&pgconn.PgError{Code: "23505"}); ok {
		t.Fatalf("unique violation is not a foreign key violation")
	}
}

func TestStatistics(t *testing.T) {
	db, mock := newMockDB(t)
	e := entity(t, "Deal")
	d := query.Parse(url.Values{}, e, query.Options{})

	mock.ExpectQuery(`SELECT COUNT\(\*\) AS total, COALESCE\(SUM\(main.value\), 0\) AS sum_value`).
		WillReturnRows(sqlmock.NewRows([]string{"total", "sum_value", "avg_value", "avg_probability"}).
			AddRow(int64(3), []byte("300.00"), []byte("100.0"), []byte("50")))
	mock.ExpectQuery(`SELECT main.stage AS stage, COUNT\(\*\) AS count`).
		WillReturnRows(sqlmock.NewRows([]string{"stage", "count", "sum_value", "avg_value", "avg_probability"}).
			AddRow("won", int64(1), []byte("100"), []byte("100"), []byte("90")).
			AddRow("lead", int64(2), []byte("200"), []byte("100"), []byte("30")))

	stats, err := New(db).Statistics(context.Background(), d, e.Statistics)
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	if stats["total"] != int64(3) {
		t.Fatalf("unexpected total: %v (%T)", stats["total"], stats["total"])
	}
	wantSums := map[string]any{"value": float64(300)}
	if diff := cmp.Diff(wantSums, stats["sums"]); diff != "" {
		t.Fatalf("sums mismatch (-want +got):\n%s", diff)
	}
	groups := stats["by_stage"].([]model.Record)
	if len(groups) != 2 || groups[0]["stage"] != "won" || groups[0]["count"] != int64(1) {
		t.Fatalf("unexpected groups: %v", groups)
	}
}
