// Package store runs entity queries against PostgreSQL through database/sql.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"CrmAPI/internal/domain"
	"CrmAPI/internal/logger"
	"CrmAPI/internal/model"
	"CrmAPI/internal/query"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
)

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store executes entity queries.
type Store struct {
	db   *sql.DB
	exec executor
	now  func() time.Time
}

func New(db *sql.DB) *Store {
	return &Store{db: db, exec: db, now: func() time.Time { return time.Now().UTC() }}
}

// SetClock overrides the timestamp source; tests only.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// List returns one page of the filtered set plus the post-filter total.
func (s *Store) List(ctx context.Context, d query.Descriptor) ([]model.Record, int64, error) {
	total, err := s.Count(ctx, d)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []model.Record{}, 0, nil
	}
	items, err := s.Select(ctx, d.Entity, query.BuildIndexQuery(d, nil))
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *Store) Count(ctx context.Context, d query.Descriptor) (int64, error) {
	sqlStr, args, err := query.BuildCountQuery(d).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}
	var total int64
	if err := s.exec.QueryRowContext(ctx, sqlStr, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count %s: %w", d.Entity.Table, err)
	}
	return total, nil
}

// Select runs sb and maps every row through the entity's field types.
func (s *Store) Select(ctx context.Context, e *model.Entity, sb squirrel.SelectBuilder) ([]model.Record, error) {
	sqlStr, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	logger.Debug("sql_query", map[string]any{"table": e.Table, "sql": sqlStr})

	rows, err := s.exec.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", e.Table, err)
	}
	defer rows.Close()
	return scanRecords(rows, e)
}

// Find loads one record with visible columns.
func (s *Store) Find(ctx context.Context, e *model.Entity, id int64) (model.Record, error) {
	return s.find(ctx, e, id, nil)
}

// FindFull loads one record including hidden columns.
func (s *Store) FindFull(ctx context.Context, e *model.Entity, id int64) (model.Record, error) {
	return s.find(ctx, e, id, e.Columns())
}

func (s *Store) find(ctx context.Context, e *model.Entity, id int64, cols []string) (model.Record, error) {
	recs, err := s.Select(ctx, e, query.BuildFindQuery(e, id, cols))
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, domain.NotFound(e.Label)
	}
	return recs[0], nil
}

// FirstBy returns the first record (by id) matching all columns, hidden columns included.
// It returns a NotFoundError when nothing matches.
func (s *Store) FirstBy(ctx context.Context, e *model.Entity, match map[string]any) (model.Record, error) {
	sb := query.BuildFindByQuery(e, match, e.Columns()).Limit(1)
	recs, err := s.Select(ctx, e, sb)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, domain.NotFound(e.Label)
	}
	return recs[0], nil
}

// Exists reports whether a row matches all columns, ignoring exceptID when positive.
func (s *Store) Exists(ctx context.Context, e *model.Entity, match map[string]any, exceptID int64) (bool, error) {
	sb := squirrel.Select("1").
		PlaceholderFormat(squirrel.Dollar).
		From(e.Table).
		Where(squirrel.Eq(match))
	if exceptID > 0 {
		sb = sb.Where(squirrel.NotEq{"id": exceptID})
	}
	sqlStr, args, err := sb.Prefix("SELECT EXISTS (").Suffix(")").ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists: %w", err)
	}
	var ok bool
	if err := s.exec.QueryRowContext(ctx, sqlStr, args...).Scan(&ok); err != nil {
		return false, fmt.Errorf("exists %s: %w", e.Table, err)
	}
	return ok, nil
}

// Insert stores rec and returns the stored row (visible columns).
func (s *Store) Insert(ctx context.Context, e *model.Entity, rec model.Record) (model.Record, error) {
	now := s.now()
	values := make(map[string]any, len(rec)+2)
	for k, v := range rec {
		values[k] = v
	}
	values["created_at"] = now
	values["updated_at"] = now

	ib := squirrel.Insert(e.Table).
		PlaceholderFormat(squirrel.Dollar).
		SetMap(values).
		Suffix("RETURNING " + strings.Join(e.VisibleColumns(), ", "))
	return s.returning(ctx, e, ib)
}

// Update sets the given columns and returns the stored row.
func (s *Store) Update(ctx context.Context, e *model.Entity, id int64, rec model.Record) (model.Record, error) {
	values := make(map[string]any, len(rec)+1)
	for k, v := range rec {
		values[k] = v
	}
	values["updated_at"] = s.now()

	ub := squirrel.Update(e.Table).
		PlaceholderFormat(squirrel.Dollar).
		SetMap(values).
		Where(squirrel.Eq{"id": id}).
		Suffix("RETURNING " + strings.Join(e.VisibleColumns(), ", "))
	return s.returning(ctx, e, ub)
}

func (s *Store) returning(ctx context.Context, e *model.Entity, b squirrel.Sqlizer) (model.Record, error) {
	sqlStr, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build write: %w", err)
	}
	rows, err := s.exec.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("write %s: %w", e.Table, err)
	}
	defer rows.Close()
	recs, err := scanRecords(rows, e)
	if err != nil {
		return nil, fmt.Errorf("write %s: %w", e.Table, err)
	}
	if len(recs) == 0 {
		return nil, domain.NotFound(e.Label)
	}
	return recs[0], nil
}

// Delete removes one row; a missing row is a NotFoundError.
func (s *Store) Delete(ctx context.Context, e *model.Entity, id int64) error {
	sqlStr, args, err := squirrel.Delete(e.Table).
		PlaceholderFormat(squirrel.Dollar).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	res, err := s.exec.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("delete %s: %w", e.Table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s: %w", e.Table, err)
	}
	if n == 0 {
		return domain.NotFound(e.Label)
	}
	return nil
}

// IsUniqueViolation reports a PostgreSQL unique_violation and its constraint name.
func IsUniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// IsForeignKeyViolation reports a PostgreSQL foreign_key_violation and its constraint name.
func IsForeignKeyViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return pgErr.ConstraintName, true
	}
	return "", false
}
