// Package media stores entry photos and report files on Cloudinary when it is
// configured and on local disk otherwise.
package media

import (
	"context"
	"errors"
	"io"

	"merchcheck-backend/internal/models"
)

// Resource distinguishes photos from other files; Cloudinary stores them apart.
type Resource string

const (
	ResourceImage Resource = "image"
	ResourceRaw   Resource = "raw"
)

// Object is a stored file.
type Object struct {
	URL      string
	PublicID string
	Backend  models.PhotoBackend
}

// Key addresses a file inside a backend.
type Key struct {
	Folder   string
	Name     string // without extension
	Ext      string // with leading dot
	Resource Resource
}

type Backend interface {
	Name() models.PhotoBackend
	Put(ctx context.Context, r io.Reader, key Key) (Object, error)
	Delete(ctx context.Context, obj Object, resource Resource) error
}

var ErrNotConfigured = errors.New("media backend not configured")

// Folders used for stored files.
const (
	FolderPhotos  = "employee_data_images"
	FolderReports = "reports"
)
