package main

import (
	"errors"
	"fmt"

	"merchcheck-backend/internal/auth"
	"merchcheck-backend/internal/database"
	"merchcheck-backend/internal/models"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var resetPasswordFlags struct {
	Password string
}

var resetPasswordCmd = &cobra.Command{
	Use:   "reset-password <username>",
	Short: "Set a new password for a user",
	Args:  cobra.ExactArgs(1),
	RunE:  resetPassword,
}

func init() {
	resetPasswordCmd.Flags().StringVar(&resetPasswordFlags.Password, "password", "", "New password (at least 6 characters)")
	_ = resetPasswordCmd.MarkFlagRequired("password")
	rootCmd.AddCommand(resetPasswordCmd)
}

func resetPassword(cmd *cobra.Command, args []string) error {
	if err := auth.ValidatePassword(resetPasswordFlags.Password); err != nil {
		return err
	}
	hash, err := auth.HashPassword(resetPasswordFlags.Password)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close(db) //nolint:errcheck

	var user models.User
	err = db.WithContext(cmd.Context()).Where("username = ?", args[0]).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("user %q not found", args[0])
	}
	if err != nil {
		return err
	}
	if err := db.Model(&user).Update("password_hash", hash).Error; err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	log.Info("Password updated", "user", user.Username)
	return nil
}
