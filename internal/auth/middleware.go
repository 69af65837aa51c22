package auth

import (
	"strings"

	"merchcheck-backend/internal/config"
	"merchcheck-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const (
	SessionCookie = "merch_session"
	CtxUserKey    = "user"
)

// OnFailure selects how a guard answers an unauthenticated or unauthorized request.
type OnFailure int

const (
	// Redirect sends browsers back to the login page.
	Redirect OnFailure = iota
	// JSON answers with a 401/403 error body.
	JSON
)

// Authenticate resolves the session token from the cookie or a Bearer header
// and stores the current user in the request locals. It never rejects a
// request; the Require* guards do that.
func Authenticate(cfg *config.Config, db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr := tokenFromRequest(c)
		if tokenStr == "" {
			return c.Next()
		}

		claims, err := ParseToken(cfg.SecretKey, tokenStr)
		if err != nil {
			clearSessionCookie(c, cfg)
			return c.Next()
		}

		var user models.User
		if err := db.WithContext(c.UserContext()).First(&user, claims.UserID).Error; err != nil {
			clearSessionCookie(c, cfg)
			return c.Next()
		}

		c.Locals(CtxUserKey, &user)
		return c.Next()
	}
}

func tokenFromRequest(c *fiber.Ctx) string {
	if header := c.Get(fiber.HeaderAuthorization); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return c.Cookies(SessionCookie)
}

// CurrentUser returns the authenticated user or nil.
func CurrentUser(c *fiber.Ctx) *models.User {
	u, _ := c.Locals(CtxUserKey).(*models.User)
	return u
}

func RequireUser(mode OnFailure) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if CurrentUser(c) == nil {
			if mode == Redirect {
				return c.Redirect("/")
			}
			return fiber.NewError(fiber.StatusUnauthorized, "Authentication required")
		}
		return c.Next()
	}
}

// RequireAdmin lets only admins through; anonymous requests fail like RequireUser.
func RequireAdmin(mode OnFailure) fiber.Handler {
	return func(c *fiber.Ctx) error {
		u := CurrentUser(c)
		if u == nil || !u.IsAdmin {
			if mode == Redirect {
				return c.Redirect("/")
			}
			if u == nil {
				return fiber.NewError(fiber.StatusUnauthorized, "Authentication required")
			}
			return fiber.NewError(fiber.StatusForbidden, "Admin access required")
		}
		return c.Next()
	}
}

// HomePath is where a user lands after login.
func HomePath(u *models.User) string {
	if u.IsAdmin {
		return "/admin_dashboard"
	}
	return "/data_entry"
}
