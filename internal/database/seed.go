package database

import (
	"errors"
	"fmt"

	"merchcheck-backend/internal/auth"
	"merchcheck-backend/internal/config"
	"merchcheck-backend/internal/models"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
)

// DefaultCategories are created on first start.
var DefaultCategories = []string{
	"OLED", "Neo QLED", "QLED", "UHD", "LTV",
	"BESPOKE COMBO", "BESPOKE Front", "Front",
	"TL", "SBS", "TMF", "BMF", "Local TMF",
}

// Seed creates the bootstrap admin when no admin exists and inserts missing
// default categories. Running it again changes nothing.
func Seed(db *gorm.DB, cfg *config.Config) error {
	logger := log.WithPrefix("db")

	return db.Transaction(func(tx *gorm.DB) error {
		var admins int64
		if err := tx.Model(&models.User{}).Where("is_admin = ?", true).Count(&admins).Error; err != nil {
			return fmt.Errorf("failed to count admins: %w", err)
		}
		if admins == 0 {
			hash, err := auth.HashPassword(cfg.AdminPassword)
			if err != nil {
				return err
			}
			admin := models.User{
				Username:     cfg.AdminUsername,
				PasswordHash: hash,
				EmployeeName: "Administrator",
				EmployeeCode: cfg.AdminCode,
				IsAdmin:      true,
			}
			if err := tx.Create(&admin).Error; err != nil {
				return fmt.Errorf("failed to create admin user: %w", err)
			}
			logger.Info("Created bootstrap admin", "username", admin.Username, "code", admin.EmployeeCode)
		}

		for _, name := range DefaultCategories {
			var cat models.Category
			err := tx.Where("name = ?", name).First(&cat).Error
			if err == nil {
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("failed to look up category %q: %w", name, err)
			}
			if err := tx.Create(&models.Category{Name: name}).Error; err != nil {
				return fmt.Errorf("failed to create category %q: %w", name, err)
			}
		}
		return nil
	})
}
