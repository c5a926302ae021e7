package service

import (
	"context"
	"fmt"
	"time"

	"CrmAPI/internal/auth"
	"CrmAPI/internal/domain"
	"CrmAPI/internal/logger"
	"CrmAPI/internal/model"
)

// prepare applies entity-specific derivations to a validated record before it is
// written. existing is nil on create.
func (s *Service) prepare(e *model.Entity, rec, existing model.Record) error {
	switch e.Name {
	case entityUser:
		if pw, ok := rec["password"].(string); ok {
			hash, err := auth.HashPassword(pw)
			if err != nil {
				return err
			}
			rec["password"] = hash
		}
	case entityTimeEntry:
		if err := checkRunningState(rec, existing); err != nil {
			return err
		}
		return applyDuration(rec, existing)
	}
	return nil
}

// checkRunningState keeps updates from flipping an entry between running and stopped.
// Start and stop are the only transitions.
func checkRunningState(rec, existing model.Record) error {
	if existing == nil {
		return nil
	}
	end, ok := rec["end_time"]
	if !ok {
		return nil
	}
	running := existing["end_time"] == nil
	switch {
	case running && end != nil:
		return domain.Conflict(msgStopViaEndpoint)
	case !running && end == nil:
		verr := domain.NewValidationError()
		verr.Add("end_time", "The end time field is required.")
		return verr
	}
	return nil
}

// applyDuration fills duration (seconds) from start_time and end_time when an end is
// supplied without an explicit duration. An end before the start is a validation error.
func applyDuration(rec, existing model.Record) error {
	end, hasEnd := rec["end_time"].(time.Time)
	if !hasEnd {
		return nil
	}
	start, ok := rec["start_time"].(time.Time)
	if !ok && existing != nil {
		start, ok = existing["start_time"].(time.Time)
	}
	if !ok {
		return nil
	}
	if end.Before(start) {
		verr := domain.NewValidationError()
		verr.Add("end_time", "The end time field must be a date after start time.")
		return verr
	}
	if d, ok := rec["duration"]; !ok || d == nil {
		rec["duration"] = int64(end.Sub(start) / time.Second)
	}
	return nil
}

// removeBlobs deletes files referenced by a removed record. Failures are logged only.
func (s *Service) removeBlobs(ctx context.Context, e *model.Entity, rec model.Record) {
	for _, f := range e.Fields {
		if f.Blob == "" {
			continue
		}
		s.deleteBlob(ctx, rec[f.Name])
	}
}

func (s *Service) deleteBlob(ctx context.Context, v any) {
	path, _ := v.(string)
	if path == "" || s.blobs == nil {
		return
	}
	if err := s.blobs.Delete(ctx, path); err != nil {
		logger.WarnCtx(ctx, "blob_delete_error", map[string]any{
			"path":  path,
			"error": fmt.Sprint(err),
		})
	}
}
