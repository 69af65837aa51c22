package media

import (
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"merchcheck-backend/internal/httpx"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadImageHandler(t *testing.T) {
	dir := t.TempDir()
	local, err := NewLocalBackend(dir)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, FolderPhotos), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, FolderPhotos, "front.jpg"), []byte("jpeg"), 0o644))

	app := fiber.New(fiber.Config{ErrorHandler: httpx.ErrorHandler})
	app.Get("/download_image/:filename", DownloadImageHandler(local))

	resp, err := app.Test(httptest.NewRequest("GET", "/download_image/front.jpg", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "jpeg", string(body))
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "attachment")

	resp, err = app.Test(httptest.NewRequest("GET", "/download_image/missing.jpg", nil))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
