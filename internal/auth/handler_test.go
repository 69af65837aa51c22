package auth_test

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"merchcheck-backend/internal/auth"
	"merchcheck-backend/internal/config"
	"merchcheck-backend/internal/database/dbtest"
	"merchcheck-backend/internal/httpx"
	"merchcheck-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setup(t *testing.T) (*fiber.App, *gorm.DB, *models.User) {
	t.Helper()
	cfg := &config.Config{
		SecretKey:     "0123456789abcdef0123456789abcdef",
		SessionTTL:    time.Hour,
		RememberMeTTL: 48 * time.Hour,
	}
	db := dbtest.New(t)

	hash, err := auth.HashPassword("admin123")
	require.NoError(t, err)
	admin := &models.User{Username: "admin", PasswordHash: hash, EmployeeCode: "ADMIN001", IsAdmin: true}
	require.NoError(t, db.Create(admin).Error)

	app := fiber.New(fiber.Config{ErrorHandler: httpx.ErrorHandler})
	app.Use(auth.Authenticate(cfg, db))
	app.Post("/login", auth.LoginHandler(cfg, db))
	app.Get("/me", auth.RequireUser(auth.JSON), auth.MeHandler())
	app.Post("/change_admin_password", auth.RequireAdmin(auth.JSON), auth.ChangeAdminPasswordHandler(db))
	return app, db, admin
}

func postJSON(t *testing.T, app *fiber.App, path, body, token string) int {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestLogin_RememberMeExtendsCookie(t *testing.T) {
	app, _, _ := setup(t)

	req := httptest.NewRequest("POST", "/login", strings.NewReader("name=admin&company_code=ADMIN001&password=admin123&remember_me=on"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, fiber.StatusFound, resp.StatusCode)
	var found bool
	for _, c := range resp.Cookies() {
		if c.Name == auth.SessionCookie {
			found = true
			assert.True(t, c.Expires.After(time.Now().Add(47*time.Hour)))
		}
	}
	assert.True(t, found)
}

func TestLogin_WrongCodeIsGeneric(t *testing.T) {
	app, _, _ := setup(t)

	req := httptest.NewRequest("POST", "/login", strings.NewReader("name=admin&company_code=WRONG&password=admin123"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "/?error=1", resp.Header.Get("Location"))
}

func TestAuthenticate_DeletedUserIsAnonymous(t *testing.T) {
	app, db, admin := setup(t)

	tok, _, err := auth.GenerateToken("0123456789abcdef0123456789abcdef", admin, time.Hour)
	require.NoError(t, err)
	require.NoError(t, db.Delete(&models.User{}, admin.ID).Error)

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestChangeAdminPassword(t *testing.T) {
	app, db, admin := setup(t)
	tok, _, err := auth.GenerateToken("0123456789abcdef0123456789abcdef", admin, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusBadRequest, postJSON(t, app, "/change_admin_password", `{"current_password":"bad","new_password":"newpass1"}`, tok))
	assert.Equal(t, fiber.StatusBadRequest, postJSON(t, app, "/change_admin_password", `{"current_password":"admin123","new_password":"123"}`, tok))
	assert.Equal(t, fiber.StatusOK, postJSON(t, app, "/change_admin_password", `{"current_password":"admin123","new_password":"newpass1"}`, tok))

	var got models.User
	require.NoError(t, db.First(&got, admin.ID).Error)
	assert.True(t, auth.CheckPassword(got.PasswordHash, "newpass1"))

	var logs int64
	require.NoError(t, db.Model(&models.AuditLog{}).Where("entity_type = ? AND entity_id = ?", "user", admin.ID).Count(&logs).Error)
	assert.Equal(t, int64(1), logs)

	assert.Equal(t, fiber.StatusOK, postJSON(t, app, "/login", `{"name":"admin","company_code":"ADMIN001","password":"newpass1"}`, ""))
	assert.Equal(t, fiber.StatusUnauthorized, postJSON(t, app, "/login", `{"name":"admin","company_code":"ADMIN001","password":"admin123"}`, ""))
}
