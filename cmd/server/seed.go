package main

import (
	"merchcheck-backend/internal/database"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the bootstrap admin and the default categories",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close(db) //nolint:errcheck

		if err := database.Seed(db, cfg); err != nil {
			return err
		}
		log.Info("Seed completed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
