package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"merchcheck-backend/internal/database"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
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

		log.Info("Database migrations completed")
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List migrations and when they were applied",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := database.Open(cfg)
		if err != nil {
			return err
		}
		defer database.Close(db) //nolint:errcheck

		statuses, err := database.Status(db)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED")
		for _, s := range statuses {
			applied := "pending"
			if s.AppliedAt != nil {
				applied = s.AppliedAt.Format(time.DateTime)
			}
			fmt.Fprintf(w, "%d\t%s\t%s\n", s.Version, s.Name, applied)
		}
		return w.Flush()
	},
}

func init() {
	migrateCmd.AddCommand(migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)
}
