package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"merchcheck-backend/internal/config"
	"merchcheck-backend/internal/models"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

const maxFetchBytes = 25 << 20

type Service struct {
	local   *LocalBackend
	remote  Backend // nil without Cloudinary credentials
	timeout time.Duration
	client  *http.Client
	logger  *log.Logger
}

// NewService builds the media service from configuration.
func NewService(cfg *config.Config) (*Service, error) {
	local, err := NewLocalBackend(cfg.UploadDir)
	if err != nil {
		return nil, err
	}
	var remote Backend
	if cfg.MediaConfigured() {
		cld, err := NewCloudinaryBackend(cfg.Cloudinary)
		if err != nil {
			return nil, err
		}
		remote = cld
	}
	return New(local, remote, cfg.MediaTimeout), nil
}

// New wires explicit backends; remote may be nil.
func New(local *LocalBackend, remote Backend, timeout time.Duration) *Service {
	return &Service{
		local:   local,
		remote:  remote,
		timeout: timeout,
		client:  &http.Client{},
		logger:  log.WithPrefix("media"),
	}
}

// Configured reports whether a remote media host is available.
func (s *Service) Configured() bool { return s.remote != nil }

func (s *Service) Local() *LocalBackend { return s.local }

func (s *Service) primary() Backend {
	if s.remote != nil {
		return s.remote
	}
	return s.local
}

// Upload normalizes a photo and stores it.
func (s *Service) Upload(ctx context.Context, r io.Reader, name, folder string) (Object, error) {
	data, err := NormalizePhoto(r)
	if err != nil {
		return Object{}, err
	}
	key := Key{Folder: folder, Name: objectName(name), Ext: ".jpg", Resource: ResourceImage}
	return s.put(ctx, s.primary(), data, key)
}

// UploadDocument stores a file as is, keeping the extension of name.
func (s *Service) UploadDocument(ctx context.Context, r io.Reader, name, folder string) (Object, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Object{}, err
	}
	key := Key{Folder: folder, Name: objectName(name), Ext: strings.ToLower(filepath.Ext(name)), Resource: ResourceRaw}
	return s.put(ctx, s.primary(), data, key)
}

func (s *Service) put(ctx context.Context, b Backend, data []byte, key Key) (Object, error) {
	var obj Object
	err := withRetry(ctx, s.timeout, func(ctx context.Context) error {
		var err error
		obj, err = b.Put(ctx, bytes.NewReader(data), key)
		return err
	})
	if err != nil {
		return Object{}, err
	}
	s.logger.Debug("Stored file", "backend", obj.Backend, "id", obj.PublicID, "size", humanize.Bytes(uint64(len(data))))
	return obj, nil
}

// Delete removes a photo from the backend that stored it.
func (s *Service) Delete(ctx context.Context, obj Object) error {
	b, err := s.backendFor(obj)
	if err != nil {
		return err
	}
	return withRetry(ctx, s.timeout, func(ctx context.Context) error {
		return b.Delete(ctx, obj, ResourceImage)
	})
}

// DeleteAll removes photos best effort and logs what could not be removed.
func (s *Service) DeleteAll(ctx context.Context, objs []Object) {
	for _, obj := range objs {
		if err := s.Delete(ctx, obj); err != nil {
			s.logger.Warn("Failed to delete stored photo", "id", obj.PublicID, "backend", obj.Backend, "err", err)
		}
	}
}

func (s *Service) backendFor(obj Object) (Backend, error) {
	switch obj.Backend {
	case models.PhotoBackendLocal:
		return s.local, nil
	case models.PhotoBackendCloudinary:
		if s.remote == nil {
			return nil, ErrNotConfigured
		}
		return s.remote, nil
	}
	return nil, fmt.Errorf("unknown media backend %q", obj.Backend)
}

// Fetch returns the bytes of a stored photo.
func (s *Service) Fetch(ctx context.Context, obj Object) ([]byte, error) {
	if obj.Backend == models.PhotoBackendLocal {
		f, err := s.local.Open(obj.PublicID)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return readLimited(f)
	}
	return s.Download(ctx, obj.URL)
}

// Download fetches an http(s) URL with the media timeout and one retry.
func (s *Service) Download(ctx context.Context, url string) ([]byte, error) {
	var data []byte
	err := withRetry(ctx, s.timeout, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return backoff.Permanent(err)
			}
			return err
		}
		data, err = readLimited(resp.Body)
		return err
	})
	return data, err
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxFetchBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxFetchBytes {
		return nil, backoff.Permanent(fmt.Errorf("file exceeds %s", humanize.Bytes(maxFetchBytes)))
	}
	return data, nil
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// objectName builds a unique, URL-safe name from an uploaded file name.
func objectName(original string) string {
	base := strings.TrimSuffix(filepath.Base(original), filepath.Ext(original))
	base = strings.Trim(unsafeChars.ReplaceAllString(base, "_"), "_")
	if len(base) > 40 {
		base = base[:40]
	}
	id := time.Now().Format("20060102_150405") + "_" + uuid.NewString()[:8]
	if base == "" {
		return id
	}
	return id + "_" + base
}
