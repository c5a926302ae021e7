package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"CrmAPI/internal/auth"
	"CrmAPI/internal/authz"
	"CrmAPI/internal/domain"
	"CrmAPI/internal/model"
)

// Upload is one file received for a blob column.
type Upload struct {
	Body        io.Reader
	Filename    string
	ContentType string
	Size        int64
}

// MaxUploadSize bounds image uploads.
const MaxUploadSize = 2 << 20

// Attach stores an image for the blob column field of record id and deletes the file it
// replaces. A record write that fails after the file was stored leaves the file behind.
func (s *Service) Attach(ctx context.Context, ac auth.AuthContext, e *model.Entity, id int64, field string, up Upload) (model.Record, error) {
	f := e.Field(field)
	if f == nil || f.Blob == "" {
		return nil, domain.NotFoundMessage("Resource not found")
	}
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
	if err := checkImage(field, up); err != nil {
		return nil, err
	}

	path, err := s.blobs.Put(ctx, f.Blob, up.Filename, up.Body, up.ContentType)
	if err != nil {
		return nil, fmt.Errorf("store %s: %w", field, err)
	}
	rec := model.Record{field: path}
	stored, err := s.repo.Update(ctx, e, id, rec)
	if err != nil {
		return nil, err
	}
	if old, _ := existing[field].(string); old != "" && old != path {
		s.deleteBlob(ctx, old)
	}
	s.updated(ctx, ac, e, stored, rec)
	return stored, nil
}

func checkImage(field string, up Upload) error {
	verr := domain.NewValidationError()
	switch {
	case up.Body == nil:
		verr.Add(field, fmt.Sprintf("The %s field is required.", attribute(field)))
	case !strings.HasPrefix(up.ContentType, "image/"):
		verr.Add(field, fmt.Sprintf("The %s field must be an image.", attribute(field)))
	case up.Size > MaxUploadSize:
		verr.Add(field, fmt.Sprintf("The %s field must not be greater than %d kilobytes.", attribute(field), MaxUploadSize>>10))
	}
	if verr.Empty() {
		return nil
	}
	return verr
}
