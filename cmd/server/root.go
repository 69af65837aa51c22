package main

import (
	"fmt"

	"merchcheck-backend/internal/config"
	"merchcheck-backend/internal/database"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var rootFlags struct {
	ConfigFile string
	LogLevel   string
}

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "POP materials checklist server",
	Long:  `Runs the merchandising checklist web application: field staff record POP material presence per display, admins review and export the results.`,
	Example: `server --config config.yaml
  server migrate status
  server reset-password admin --password 'new-secret'`,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
	RunE:         serve,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&rootFlags.ConfigFile, "config", "c", "", "Path to an optional config file (yaml, json, toml)")
	rootCmd.PersistentFlags().StringVar(&rootFlags.LogLevel, "log-level", "", "Log level (debug, info, warn, error), overrides LOG_LEVEL")
}

// loadConfig reads configuration and applies the log level.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(rootFlags.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	level := cfg.LogLevel
	if rootFlags.LogLevel != "" {
		level = rootFlags.LogLevel
	}
	setLogLevel(level)
	return cfg, nil
}

func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		database.Close(db)
		return nil, err
	}
	return db, nil
}

func setLogLevel(level string) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.Warn("unknown log level, defaulting to info", "level", level)
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}
