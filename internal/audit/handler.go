package audit

import (
	"strconv"

	"merchcheck-backend/internal/httpx"
	"merchcheck-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const (
	defaultLimit = 100
	maxLimit     = 500
)

type AuditLogResponse struct {
	ID          uint               `json:"id"`
	CreatedAt   string             `json:"created_at"`
	UserID      uint               `json:"user_id"`
	UserName    string             `json:"user_name"`
	EntityType  string             `json:"entity_type"`
	EntityID    uint               `json:"entity_id"`
	Action      models.AuditAction `json:"action"`
	Description string             `json:"description"`
}

// GET /audit_logs?entity_type=category&limit=50
func ListAuditLogsHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit := defaultLimit
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				return fiber.NewError(fiber.StatusBadRequest, "limit must be a positive number")
			}
			limit = min(n, maxLimit)
		}

		q := db.WithContext(c.UserContext()).Model(&models.AuditLog{})
		if et := c.Query("entity_type"); et != "" {
			q = q.Where("entity_type = ?", et)
		}

		var logs []models.AuditLog
		if err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&logs).Error; err != nil {
			return err
		}

		resp := make([]AuditLogResponse, 0, len(logs))
		for _, l := range logs {
			resp = append(resp, AuditLogResponse{
				ID:          l.ID,
				CreatedAt:   l.CreatedAt.Format("2006-01-02 15:04:05"),
				UserID:      l.UserID,
				UserName:    l.UserName,
				EntityType:  l.EntityType,
				EntityID:    l.EntityID,
				Action:      l.Action,
				Description: l.Description,
			})
		}
		return httpx.OK(c, fiber.Map{"logs": resp})
	}
}
