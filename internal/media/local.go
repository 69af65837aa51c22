package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"merchcheck-backend/internal/models"
)

// URLPrefix is where the HTTP server mounts the local upload directory.
const URLPrefix = "/uploads"

type LocalBackend struct {
	dir string
}

func NewLocalBackend(dir string) (*LocalBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &LocalBackend{dir: dir}, nil
}

func (b *LocalBackend) Name() models.PhotoBackend { return models.PhotoBackendLocal }

func (b *LocalBackend) Dir() string { return b.dir }

func (b *LocalBackend) Put(_ context.Context, r io.Reader, key Key) (Object, error) {
	rel := path.Join(key.Folder, key.Name+key.Ext)
	full, err := b.resolve(rel)
	if err != nil {
		return Object{}, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return Object{}, fmt.Errorf("failed to create folder: %w", err)
	}

	tmp := full + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return Object{}, fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(tmp)
		return Object{}, fmt.Errorf("failed to write file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return Object{}, err
	}
	if err := os.Rename(tmp, full); err != nil {
		os.Remove(tmp)
		return Object{}, err
	}

	return Object{
		URL:      URLPrefix + "/" + rel,
		PublicID: rel,
		Backend:  models.PhotoBackendLocal,
	}, nil
}

func (b *LocalBackend) Delete(_ context.Context, obj Object, _ Resource) error {
	full, err := b.resolve(obj.PublicID)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Open returns the file behind a public id.
func (b *LocalBackend) Open(publicID string) (*os.File, error) {
	full, err := b.resolve(publicID)
	if err != nil {
		return nil, err
	}
	return os.Open(full)
}

// resolve maps a public id to a path, refusing anything outside dir.
func (b *LocalBackend) resolve(publicID string) (string, error) {
	clean := path.Clean("/" + strings.ReplaceAll(publicID, "\\", "/"))
	if clean == "/" {
		return "", fmt.Errorf("invalid file name %q", publicID)
	}
	return filepath.Join(b.dir, filepath.FromSlash(clean)), nil
}
