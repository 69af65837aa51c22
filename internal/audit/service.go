package audit

import (
	"fmt"

	"merchcheck-backend/internal/models"

	"gorm.io/gorm"
)

type LogOptions struct {
	User        *models.User
	EntityType  string
	EntityID    uint
	Action      models.AuditAction
	Description string
}

// WriteLog records an admin action. Pass the transaction that performs the
// change so the log row commits or rolls back with it.
func WriteLog(tx *gorm.DB, opts LogOptions) error {
	entry := models.AuditLog{
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: truncate(opts.Description, 255),
	}
	if opts.User != nil {
		entry.UserID = opts.User.ID
		entry.UserName = opts.User.DisplayName()
	}

	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
