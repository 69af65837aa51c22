package media

import (
	"errors"
	"os"
	"path"
	"strings"

	"merchcheck-backend/internal/apperr"

	"github.com/gofiber/fiber/v2"
)

// GET /download_image/:filename
func DownloadImageHandler(local *LocalBackend) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name := c.Params("filename")
		if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
			return apperr.Validation("Invalid file name")
		}

		full, err := local.resolve(path.Join(FolderPhotos, name))
		if err != nil {
			return apperr.Validation("Invalid file name")
		}
		info, err := os.Stat(full)
		if errors.Is(err, os.ErrNotExist) || (err == nil && info.IsDir()) {
			return apperr.NotFound("File not found")
		}
		if err != nil {
			return err
		}
		return c.Download(full, name)
	}
}
