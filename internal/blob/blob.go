// Package blob stores uploaded files (logos, avatars, testimonial images).
package blob

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"CrmAPI/internal/config"
	"CrmAPI/internal/idgen"
)

// Store keeps files under folder-relative paths such as "logos/Ab3x.png".
type Store interface {
	Put(ctx context.Context, folder, filename string, body io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
}

// New builds the configured driver.
func New(ctx context.Context, cfg config.BlobConfig) (Store, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocal(cfg.LocalDir), nil
	case "s3":
		return NewS3(ctx, cfg)
	}
	return nil, fmt.Errorf("blob: unknown driver %q", cfg.Driver)
}

// objectPath names a new object in folder, keeping the upload's extension.
func objectPath(folder, filename string) (string, error) {
	id, err := idgen.Generate(24)
	if err != nil {
		return "", err
	}
	ext := strings.ToLower(path.Ext(filename))
	if len(ext) > 10 {
		ext = ""
	}
	return path.Join(cleanFolder(folder), id+ext), nil
}

func cleanFolder(folder string) string {
	folder = strings.Trim(path.Clean("/"+folder), "/")
	if folder == "" {
		return "misc"
	}
	return folder
}

// cleanPath rejects paths escaping the storage root.
func cleanPath(p string) (string, error) {
	c := strings.TrimPrefix(path.Clean("/"+p), "/")
	if c == "" || c != strings.TrimPrefix(p, "/") {
		return "", fmt.Errorf("blob: invalid path %q", p)
	}
	return c, nil
}
