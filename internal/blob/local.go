package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Local keeps blobs on the filesystem below dir.
type Local struct {
	dir string
}

func NewLocal(dir string) *Local {
	if dir == "" {
		dir = "./storage"
	}
	return &Local{dir: dir}
}

func (l *Local) Put(_ context.Context, folder, filename string, body io.Reader, _ string) (string, error) {
	p, err := objectPath(folder, filename)
	if err != nil {
		return "", err
	}
	full := filepath.Join(l.dir, filepath.FromSlash(p))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("blob: create folder: %w", err)
	}
	f, err := os.Create(full)
	if err != nil {
		return "", fmt.Errorf("blob: create %s: %w", p, err)
	}
	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		_ = os.Remove(full)
		return "", fmt.Errorf("blob: write %s: %w", p, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("blob: close %s: %w", p, err)
	}
	return p, nil
}

// Delete removes the file; a missing file is not an error.
func (l *Local) Delete(_ context.Context, p string) error {
	c, err := cleanPath(p)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(l.dir, filepath.FromSlash(c))); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("blob: delete %s: %w", c, err)
	}
	return nil
}

func (l *Local) Exists(_ context.Context, p string) (bool, error) {
	c, err := cleanPath(p)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(filepath.Join(l.dir, filepath.FromSlash(c)))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("blob: stat %s: %w", c, err)
	}
	return true, nil
}
