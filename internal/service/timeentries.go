package service

import (
	"context"
	"errors"
	"time"

	"CrmAPI/internal/auth"
	"CrmAPI/internal/authz"
	"CrmAPI/internal/domain"
	"CrmAPI/internal/model"
	"CrmAPI/internal/validation"
)

const (
	msgActiveTimer  = "You already have an active time tracking session."
	msgTimerStopped = "Time entry is already stopped."

	msgStopViaEndpoint = "A running time entry can only be stopped through the stop action."

	// partial unique index on time_entries(user_id) WHERE end_time IS NULL
	runningTimerConstraint = "time_entries_one_running"
)

// StartTimer opens a running entry for the caller. At most one entry per user may be running.
func (s *Service) StartTimer(ctx context.Context, ac auth.AuthContext, payload map[string]any) (model.Record, error) {
	e := s.entity(entityTimeEntry)
	if err := s.authz.Authorize(ctx, ac, e.Name, authz.ActionCreate); err != nil {
		return nil, err
	}
	running, err := s.repo.Exists(ctx, e, map[string]any{"user_id": ac.UserID, "end_time": nil}, 0)
	if err != nil {
		return nil, err
	}
	if running {
		return nil, domain.Conflict(msgActiveTimer)
	}

	payload = copyPayload(payload)
	payload["user_id"] = ac.UserID
	payload["start_time"] = s.now()
	delete(payload, "end_time")
	delete(payload, "duration")

	rec, err := s.validator.Validate(ctx, e, payload, 0, validation.Create)
	if err != nil {
		return nil, err
	}
	rec["end_time"] = nil
	stored, err := s.repo.Insert(ctx, e, rec)
	if err != nil {
		return nil, s.writeError(e, err)
	}
	s.created(ctx, ac, e, stored)
	return stored, nil
}

// StopTimer closes a running entry owned by the caller (admins may stop any entry).
func (s *Service) StopTimer(ctx context.Context, ac auth.AuthContext, id int64) (model.Record, error) {
	e := s.entity(entityTimeEntry)
	if err := s.authz.Authorize(ctx, ac, e.Name, authz.ActionUpdate); err != nil {
		return nil, err
	}
	entry, err := s.repo.FindFull(ctx, e, id)
	if err != nil {
		return nil, err
	}
	if !ac.Owns(entry["user_id"]) && !ac.IsAdmin() {
		return nil, domain.Forbidden("")
	}
	if entry["end_time"] != nil {
		return nil, domain.Conflict(msgTimerStopped)
	}

	end := s.now()
	rec := model.Record{"end_time": end}
	if start, ok := entry["start_time"].(time.Time); ok {
		dur := int64(end.Sub(start) / time.Second)
		if dur < 0 {
			dur = 0
		}
		rec["duration"] = dur
	}
	stored, err := s.repo.Update(ctx, e, id, rec)
	if err != nil {
		return nil, err
	}
	s.updated(ctx, ac, e, stored, rec)
	return stored, nil
}

// CurrentTimer returns the caller's running entry, or nil when none is running.
func (s *Service) CurrentTimer(ctx context.Context, ac auth.AuthContext) (model.Record, error) {
	e := s.entity(entityTimeEntry)
	if err := s.authz.Authorize(ctx, ac, e.Name, authz.ActionView); err != nil {
		return nil, err
	}
	entry, err := s.repo.FirstBy(ctx, e, map[string]any{"user_id": ac.UserID, "end_time": nil})
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.relations.Load(ctx, e, []model.Record{entry}, []string{"project", "task"}); err != nil {
		return nil, err
	}
	return entry, nil
}
