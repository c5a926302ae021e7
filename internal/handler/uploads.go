package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"CrmAPI/internal/domain"
	"CrmAPI/internal/model"
	"CrmAPI/internal/response"
	"CrmAPI/internal/service"
)

// uploadBodyLimit caps the whole multipart body; the file itself is checked against
// service.MaxUploadSize.
const uploadBodyLimit = service.MaxUploadSize + 1<<20

// Attach stores the multipart file in form field `field` as the record's blob column.
func (h *Handler) Attach(e *model.Entity, field string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.recordID(w, r, e)
		if !ok {
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, uploadBodyLimit)
		up, closeFn, err := readUpload(r, field)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		defer closeFn()

		rec, err := h.svc.Attach(r.Context(), caller(r), e, id, field, up)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		response.Success(w, rec, e.Label+" updated successfully", http.StatusOK)
	}
}

// readUpload returns an empty Upload when the form has no such file so the service
// reports the missing field. The content type is sniffed, not taken from the client.
func readUpload(r *http.Request, field string) (service.Upload, func(), error) {
	noop := func() {}
	if err := r.ParseMultipartForm(service.MaxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			verr := domain.NewValidationError()
			verr.Add(field, fmt.Sprintf("The %s field must not be greater than %d kilobytes.",
				strings.ReplaceAll(field, "_", " "), service.MaxUploadSize>>10))
			return service.Upload{}, noop, verr
		}
		if errors.Is(err, http.ErrNotMultipart) {
			return service.Upload{}, noop, nil
		}
		return service.Upload{}, noop, fmt.Errorf("parse multipart form: %w", err)
	}
	cleanup := func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}

	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return service.Upload{}, cleanup, nil
	}
	if err != nil {
		return service.Upload{}, cleanup, fmt.Errorf("read %s: %w", field, err)
	}

	sniff := make([]byte, 512)
	n, err := io.ReadFull(file, sniff)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		file.Close()
		return service.Upload{}, cleanup, fmt.Errorf("read %s: %w", field, err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		file.Close()
		return service.Upload{}, cleanup, fmt.Errorf("rewind %s: %w", field, err)
	}

	up := service.Upload{
		Body:        file,
		Filename:    header.Filename,
		ContentType: http.DetectContentType(sniff[:n]),
		Size:        header.Size,
	}
	return up, func() { file.Close(); cleanup() }, nil
}
