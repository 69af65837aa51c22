package auth

import (
	"errors"
	"strings"
	"time"

	"merchcheck-backend/internal/apperr"
	"merchcheck-backend/internal/audit"
	"merchcheck-backend/internal/config"
	"merchcheck-backend/internal/httpx"
	"merchcheck-backend/internal/models"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const invalidCredentials = "Invalid credentials"

type LoginRequest struct {
	Name        string `json:"name" form:"name"`
	CompanyCode string `json:"company_code" form:"company_code"`
	Password    string `json:"password" form:"password"`
	RememberMe  string `json:"remember_me" form:"remember_me"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type UserResponse struct {
	ID           uint   `json:"id"`
	Username     string `json:"username"`
	EmployeeName string `json:"employee_name"`
	EmployeeCode string `json:"employee_code"`
	IsAdmin      bool   `json:"is_admin"`
}

func NewUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:           u.ID,
		Username:     u.Username,
		EmployeeName: u.DisplayName(),
		EmployeeCode: u.EmployeeCode,
		IsAdmin:      u.IsAdmin,
	}
}

// GET /
func LoginPageHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if u := CurrentUser(c); u != nil {
			return c.Redirect(HomePath(u))
		}
		data := fiber.Map{"Title": "Login"}
		if c.Query("error") != "" {
			data["Error"] = invalidCredentials
		}
		return c.Render("login", data, "layouts/main")
	}
}

// POST /login
// Form posts get a redirect; JSON posts get the token in the body.
func LoginHandler(cfg *config.Config, db *gorm.DB) fiber.Handler {
	logger := log.WithPrefix("auth")

	return func(c *fiber.Ctx) error {
		wantsJSON := c.Is("json")

		var body LoginRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		body.Name = strings.TrimSpace(body.Name)
		body.CompanyCode = strings.TrimSpace(body.CompanyCode)

		user, err := authenticate(db.WithContext(c.UserContext()), body.Name, body.CompanyCode, body.Password)
		if err != nil {
			if apperr.Is(err, apperr.KindUnauthorized) {
				logger.Warn("Login failed", "name", body.Name, "ip", c.IP())
				if wantsJSON {
					return err
				}
				return c.Redirect("/?error=1")
			}
			return err
		}

		ttl := cfg.SessionTTL
		if rememberMe(body.RememberMe) {
			ttl = cfg.RememberMeTTL
		}
		token, expires, err := GenerateToken(cfg.SecretKey, user, ttl)
		if err != nil {
			return err
		}

		logger.Info("Login", "user_id", user.ID, "admin", user.IsAdmin)

		if wantsJSON {
			return httpx.OK(c, fiber.Map{
				"token":      token,
				"expires_at": expires.Format(time.RFC3339),
				"user":       NewUserResponse(user),
			})
		}

		setSessionCookie(c, cfg, token, expires)
		return c.Redirect(HomePath(user))
	}
}

func authenticate(db *gorm.DB, name, code, password string) (*models.User, error) {
	if name == "" || code == "" || password == "" {
		return nil, apperr.Unauthorized(invalidCredentials)
	}

	var user models.User
	err := db.Where("username = ? AND employee_code = ?", name, code).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		CheckPassword(dummyHash(), password)
		return nil, apperr.Unauthorized(invalidCredentials)
	}
	if err != nil {
		return nil, err
	}
	if !CheckPassword(user.PasswordHash, password) {
		return nil, apperr.Unauthorized(invalidCredentials)
	}
	return &user, nil
}

func rememberMe(v string) bool {
	switch strings.ToLower(v) {
	case "", "0", "false", "off":
		return false
	}
	return true
}

// GET /logout
func LogoutHandler(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		clearSessionCookie(c, cfg)
		return c.Redirect("/")
	}
}

// GET /me
func MeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return httpx.OK(c, fiber.Map{"user": NewUserResponse(CurrentUser(c))})
	}
}

// POST /change_admin_password
func ChangeAdminPasswordHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ChangePasswordRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		current := CurrentUser(c)
		if !CheckPassword(current.PasswordHash, body.CurrentPassword) {
			return apperr.Validation("Current password is incorrect")
		}
		if err := ValidatePassword(body.NewPassword); err != nil {
			return err
		}

		hash, err := HashPassword(body.NewPassword)
		if err != nil {
			return err
		}

		err = db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&models.User{}).Where("id = ?", current.ID).Update("password_hash", hash).Error; err != nil {
				return err
			}
			return audit.WriteLog(tx, audit.LogOptions{
				User:        current,
				EntityType:  "user",
				EntityID:    current.ID,
				Action:      models.AuditActionUpdate,
				Description: "Changed admin password",
			})
		})
		if err != nil {
			return err
		}
		return httpx.OK(c, fiber.Map{"message": "Password updated"})
	}
}

func setSessionCookie(c *fiber.Ctx, cfg *config.Config, token string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func clearSessionCookie(c *fiber.Ctx, cfg *config.Config) {
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
