package media

import (
	"context"
	"errors"
	"fmt"
	"io"

	"merchcheck-backend/internal/config"
	"merchcheck-backend/internal/models"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

type CloudinaryBackend struct {
	cld *cloudinary.Cloudinary
}

func NewCloudinaryBackend(cfg config.CloudinaryConfig) (*CloudinaryBackend, error) {
	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to configure cloudinary: %w", err)
	}
	cld.Config.URL.Secure = true
	return &CloudinaryBackend{cld: cld}, nil
}

func (b *CloudinaryBackend) Name() models.PhotoBackend { return models.PhotoBackendCloudinary }

func (b *CloudinaryBackend) Put(ctx context.Context, r io.Reader, key Key) (Object, error) {
	publicID := key.Name
	if key.Resource == ResourceRaw {
		// raw files keep their extension in the public id
		publicID += key.Ext
	}

	resp, err := b.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		PublicID:     publicID,
		Folder:       key.Folder,
		ResourceType: string(key.Resource),
	})
	if err != nil {
		return Object{}, fmt.Errorf("cloudinary upload failed: %w", err)
	}
	if resp.Error.Message != "" {
		return Object{}, fmt.Errorf("cloudinary upload failed: %s", resp.Error.Message)
	}
	if resp.SecureURL == "" {
		return Object{}, errors.New("cloudinary upload returned no URL")
	}

	return Object{
		URL:      resp.SecureURL,
		PublicID: resp.PublicID,
		Backend:  models.PhotoBackendCloudinary,
	}, nil
}

func (b *CloudinaryBackend) Delete(ctx context.Context, obj Object, resource Resource) error {
	resp, err := b.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     obj.PublicID,
		ResourceType: string(resource),
	})
	if err != nil {
		return fmt.Errorf("cloudinary delete failed: %w", err)
	}
	if resp.Error.Message != "" {
		return fmt.Errorf("cloudinary delete failed: %s", resp.Error.Message)
	}
	return nil
}
