package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"CrmAPI/internal/auth"
	"CrmAPI/internal/authz"
	"CrmAPI/internal/domain"
	"CrmAPI/internal/logger"
	"CrmAPI/internal/model"
	"CrmAPI/internal/query"
	"CrmAPI/internal/store"
	"CrmAPI/internal/validation"
)

// List returns one page of e filtered by the request parameters.
func (s *Service) List(ctx context.Context, ac auth.AuthContext, e *model.Entity, values url.Values, path string) (query.Page, error) {
	if err := s.authz.Authorize(ctx, ac, e.Name, authz.ActionList); err != nil {
		return query.Page{}, err
	}
	return s.page(ctx, query.Parse(values, e, s.opts.Pagination), path)
}

// Mine lists the records owned by the caller.
func (s *Service) Mine(ctx context.Context, ac auth.AuthContext, e *model.Entity, values url.Values, path string) (query.Page, error) {
	if !e.HasOwner() {
		return query.Page{}, domain.NotFoundMessage("Resource not found")
	}
	if err := s.authz.Authorize(ctx, ac, e.Name, authz.ActionList); err != nil {
		return query.Page{}, err
	}
	d := query.Parse(values, e, s.opts.Pagination).WithScope(e.OwnerField, ac.UserID)
	return s.page(ctx, d, path)
}

// PublicList lists the publicly visible subset of e without authentication.
func (s *Service) PublicList(ctx context.Context, e *model.Entity, values url.Values, path string) (query.Page, error) {
	if len(e.Public.ListWhere) == 0 {
		return query.Page{}, domain.NotFoundMessage("Resource not found")
	}
	d := query.Parse(values, e, s.opts.Pagination)
	for col, v := range e.Public.ListWhere {
		d = d.WithScope(col, v)
	}
	return s.page(ctx, d, path)
}

func (s *Service) page(ctx context.Context, d query.Descriptor, path string) (query.Page, error) {
	items, total, err := s.repo.List(ctx, d)
	if err != nil {
		return query.Page{}, fmt.Errorf("list %s: %w", d.Entity.Name, err)
	}
	if err := s.relations.Load(ctx, d.Entity, items, d.With); err != nil {
		return query.Page{}, fmt.Errorf("load relations: %w", err)
	}
	return query.NewPage(items, total, d.Page, d.PerPage, path), nil
}

// Show loads one record with the allow-listed relations named in with.
func (s *Service) Show(ctx context.Context, ac auth.AuthContext, e *model.Entity, id int64, with string) (model.Record, error) {
	if err := s.authz.Authorize(ctx, ac, e.Name, authz.ActionView); err != nil {
		return nil, err
	}
	rec, err := s.repo.Find(ctx, e, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkOwnerOrAdmin(ac, e, rec); err != nil {
		return nil, err
	}
	if err := s.relations.Load(ctx, e, []model.Record{rec}, query.ResolveRelations(with, e.List.With)); err != nil {
		return nil, fmt.Errorf("load relations: %w", err)
	}
	return rec, nil
}

// Create validates payload and stores a new record. The owner column defaults to the caller.
func (s *Service) Create(ctx context.Context, ac auth.AuthContext, e *model.Entity, payload map[string]any) (model.Record, error) {
	if err := s.authz.Authorize(ctx, ac, e.Name, authz.ActionCreate); err != nil {
		return nil, err
	}
	payload = copyPayload(payload)
	if e.HasOwner() {
		if v, ok := payload[e.OwnerField]; !ok || v == nil {
			payload[e.OwnerField] = ac.UserID
		}
	}
	return s.insert(ctx, ac, e, payload)
}

// PublicCreate stores a record submitted without authentication, e.g. a site contact form.
func (s *Service) PublicCreate(ctx context.Context, e *model.Entity, payload map[string]any) (model.Record, error) {
	if !e.Public.Create {
		return nil, domain.ErrUnauthenticated
	}
	return s.insert(ctx, auth.AuthContext{}, e, payload)
}

func (s *Service) insert(ctx context.Context, ac auth.AuthContext, e *model.Entity, payload map[string]any) (model.Record, error) {
	rec, err := s.validator.Validate(ctx, e, payload, 0, validation.Create)
	if err != nil {
		return nil, err
	}
	if err := checkOwnerAssignment(ac, e, rec); err != nil {
		return nil, err
	}
	if err := s.prepare(e, rec, nil); err != nil {
		return nil, err
	}
	stored, err := s.repo.Insert(ctx, e, rec)
	if err != nil {
		return nil, s.writeError(e, err)
	}
	s.created(ctx, ac, e, stored)
	return stored, nil
}

// Update applies the fillable keys present in payload.
func (s *Service) Update(ctx context.Context, ac auth.AuthContext, e *model.Entity, id int64, payload map[string]any) (model.Record, error) {
	if err := s.authz.Authorize(ctx, ac, e.Name, authz.ActionUpdate); err != nil {
		return nil, err
	}
	existing, err := s.repo.FindFull(ctx, e, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkOwnerOrAdmin(ac, e, existing); err != nil {
		return nil, err
	}
	if e.Name == entityUser && !ac.IsAdmin() {
		if role, ok := payload["role"]; ok && role != existing["role"] {
			return nil, domain.Forbidden("")
		}
	}

	rec, err := s.validator.Validate(ctx, e, payload, id, validation.Update)
	if err != nil {
		return nil, err
	}
	if err := checkOwnerAssignment(ac, e, rec); err != nil {
		return nil, err
	}
	if err := s.prepare(e, rec, existing); err != nil {
		return nil, err
	}
	if len(rec) == 0 {
		return s.repo.Find(ctx, e, id)
	}
	stored, err := s.repo.Update(ctx, e, id, rec)
	if err != nil {
		return nil, s.writeError(e, err)
	}
	s.updated(ctx, ac, e, stored, rec)
	return stored, nil
}

// Delete removes a record after its delete guards pass.
func (s *Service) Delete(ctx context.Context, ac auth.AuthContext, e *model.Entity, id int64) error {
	if err := s.authz.Authorize(ctx, ac, e.Name, authz.ActionDelete); err != nil {
		return err
	}
	return s.destroy(ctx, ac, e, id)
}

func (s *Service) destroy(ctx context.Context, ac auth.AuthContext, e *model.Entity, id int64) error {
	existing, err := s.repo.FindFull(ctx, e, id)
	if err != nil {
		return err
	}
	if err := s.checkOwnerOrAdmin(ac, e, existing); err != nil {
		return err
	}
	for _, g := range e.Guards.DeleteBlockedBy {
		rel := e.Relation(g.Relation)
		blocked, err := s.repo.Exists(ctx, rel.Target(), map[string]any{rel.FK: id}, 0)
		if err != nil {
			return fmt.Errorf("delete guard %s: %w", g.Relation, err)
		}
		if blocked {
			return domain.Conflict(g.Message)
		}
	}
	if err := s.repo.Delete(ctx, e, id); err != nil {
		if _, ok := store.IsForeignKeyViolation(err); ok {
			return domain.Conflict(guardMessage(e))
		}
		return err
	}
	s.removeBlobs(ctx, e, existing)
	s.deleted(ctx, ac, e, id)
	return nil
}

// guardMessage is the conflict reported when the database rejects a delete the guards let through.
func guardMessage(e *model.Entity) string {
	if len(e.Guards.DeleteBlockedBy) > 0 {
		return e.Guards.DeleteBlockedBy[0].Message
	}
	return fmt.Sprintf("Cannot delete %s with associated records", e.Label)
}

// Statistics aggregates the filtered set of e.
func (s *Service) Statistics(ctx context.Context, ac auth.AuthContext, e *model.Entity, values url.Values) (map[string]any, error) {
	if e.Statistics == nil {
		return nil, domain.NotFoundMessage("Resource not found")
	}
	if err := s.authz.Authorize(ctx, ac, e.Name, authz.ActionStats); err != nil {
		return nil, err
	}
	d := query.Parse(values, e, s.opts.Pagination)
	stats, err := s.repo.Statistics(ctx, d, e.Statistics)
	if err != nil {
		return nil, fmt.Errorf("statistics %s: %w", e.Name, err)
	}
	return stats, nil
}

// Export returns the visible columns and every matching row up to the configured cap.
func (s *Service) Export(ctx context.Context, ac auth.AuthContext, e *model.Entity, values url.Values) ([]string, []model.Record, error) {
	if err := s.authz.Authorize(ctx, ac, e.Name, authz.ActionExport); err != nil {
		return nil, nil, err
	}
	d := query.Parse(values, e, s.opts.Pagination)
	cols := e.VisibleColumns()
	var limit uint64
	if s.opts.ExportMaxRows > 0 {
		limit = uint64(s.opts.ExportMaxRows)
	}
	items, err := s.repo.Select(ctx, e, query.BuildExportQuery(d, cols, limit))
	if err != nil {
		return nil, nil, fmt.Errorf("export %s: %w", e.Name, err)
	}
	logger.InfoCtx(ctx, "export", map[string]any{"entity": e.Name, "rows": len(items)})
	return cols, items, nil
}

// Transition sets the entity's status-like field and stamps or clears its timestamp.
func (s *Service) Transition(ctx context.Context, ac auth.AuthContext, e *model.Entity, id int64, payload map[string]any) (model.Record, error) {
	t := e.Transition
	if t == nil {
		return nil, domain.NotFoundMessage("Resource not found")
	}
	if err := s.authz.Authorize(ctx, ac, e.Name, authz.ActionUpdate); err != nil {
		return nil, err
	}
	f := e.Field(t.Field)
	value, _ := payload[t.Field].(string)
	if value == "" {
		verr := domain.NewValidationError()
		verr.Add(t.Field, fmt.Sprintf("The %s field is required.", attribute(t.Field)))
		return nil, verr
	}
	if !f.AllowsValue(value) {
		verr := domain.NewValidationError()
		verr.Add(t.Field, fmt.Sprintf("The selected %s is invalid.", attribute(t.Field)))
		return nil, verr
	}
	if _, err := s.repo.Find(ctx, e, id); err != nil {
		return nil, err
	}

	rec := model.Record{t.Field: value}
	if t.TimestampField != "" {
		rec[t.TimestampField] = nil
		for _, on := range t.TimestampOn {
			if on == value {
				rec[t.TimestampField] = s.stamp(e.Field(t.TimestampField))
				break
			}
		}
	}
	stored, err := s.repo.Update(ctx, e, id, rec)
	if err != nil {
		return nil, s.writeError(e, err)
	}
	s.updated(ctx, ac, e, stored, rec)
	return stored, nil
}

// stamp is "now" in the column's resolution.
func (s *Service) stamp(f *model.Field) any {
	now := s.now()
	if f != nil && f.Type == model.TypeDate {
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	return now
}

// checkOwnerOrAdmin limits per-record access on entities where only the record's
// subject or an admin may act: a user's own row, or an owner_only record.
func (s *Service) checkOwnerOrAdmin(ac auth.AuthContext, e *model.Entity, rec model.Record) error {
	if ac.IsAdmin() {
		return nil
	}
	switch {
	case e.Name == entityUser:
		if !ac.Owns(rec["id"]) {
			return domain.Forbidden("")
		}
	case e.OwnerOnly:
		if !ac.Owns(rec[e.OwnerField]) {
			return domain.Forbidden("")
		}
	}
	return nil
}

// checkOwnerAssignment keeps non-admins from creating or moving an owner_only
// record onto another user. rec is the validated payload.
func checkOwnerAssignment(ac auth.AuthContext, e *model.Entity, rec model.Record) error {
	if !e.OwnerOnly || ac.IsAdmin() {
		return nil
	}
	if v, ok := rec[e.OwnerField]; ok && !ac.Owns(v) {
		return domain.Forbidden("")
	}
	return nil
}

// writeError maps storage constraint violations onto domain errors.
func (s *Service) writeError(e *model.Entity, err error) error {
	if constraint, ok := store.IsUniqueViolation(err); ok {
		if constraint == runningTimerConstraint {
			return domain.Conflict(msgActiveTimer)
		}
		verr := domain.NewValidationError()
		for _, f := range e.Fields {
			if f.Unique {
				verr.Add(f.Name, fmt.Sprintf("The %s has already been taken.", attribute(f.Name)))
				break
			}
		}
		if !verr.Empty() {
			return verr
		}
		return domain.Conflict("The record conflicts with an existing one.")
	}
	if _, ok := store.IsForeignKeyViolation(err); ok {
		return domain.Conflict("A referenced record does not exist.")
	}
	return err
}

func attribute(name string) string {
	return strings.ReplaceAll(name, "_", " ")
}
