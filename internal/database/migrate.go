package database

import (
	"fmt"
	"time"

	"merchcheck-backend/internal/models"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
)

type migration struct {
	Version int
	Name    string
	Up      func(tx *gorm.DB) error
}

// migrations are applied in order and never edited once released; schema
// changes go into a new entry at the end.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create_users_and_branches",
		Up: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&models.User{}, &models.UserBranch{}, &models.Branch{})
		},
	},
	{
		Version: 2,
		Name:    "create_taxonomy",
		Up: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&models.Category{}, &models.ProductModel{}, &models.DisplayType{}, &models.POPMaterial{})
		},
	},
	{
		Version: 3,
		Name:    "create_data_entries",
		Up: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&models.DataEntry{}, &models.EntryPhoto{})
		},
	},
	{
		Version: 4,
		Name:    "create_audit_logs",
		Up: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&models.AuditLog{})
		},
	},
	{
		Version: 5,
		Name:    "index_entry_employee_code",
		Up: func(tx *gorm.DB) error {
			return tx.Exec("CREATE INDEX IF NOT EXISTS idx_data_entries_employee_code ON data_entries (employee_code)").Error
		},
	},
}

// Migrate applies every pending migration, each inside its own transaction.
func Migrate(db *gorm.DB) error {
	logger := log.WithPrefix("db")

	if err := db.AutoMigrate(&models.SchemaMigration{}); err != nil {
		return fmt.Errorf("failed to prepare schema_migrations: %w", err)
	}

	applied, err := appliedVersions(db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := m.Up(tx); err != nil {
				return err
			}
			return tx.Create(&models.SchemaMigration{
				Version:   m.Version,
				Name:      m.Name,
				AppliedAt: time.Now(),
			}).Error
		})
		if err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Name, err)
		}
		logger.Info("Applied migration", "version", m.Version, "name", m.Name)
	}
	return nil
}

// MigrationStatus is one known migration and when it was applied, if at all.
type MigrationStatus struct {
	Version   int
	Name      string
	AppliedAt *time.Time
}

func Status(db *gorm.DB) ([]MigrationStatus, error) {
	if !db.Migrator().HasTable(&models.SchemaMigration{}) {
		res := make([]MigrationStatus, 0, len(migrations))
		for _, m := range migrations {
			res = append(res, MigrationStatus{Version: m.Version, Name: m.Name})
		}
		return res, nil
	}

	var rows []models.SchemaMigration
	if err := db.Order("version asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to read schema_migrations: %w", err)
	}
	byVersion := make(map[int]time.Time, len(rows))
	for _, r := range rows {
		byVersion[r.Version] = r.AppliedAt
	}

	res := make([]MigrationStatus, 0, len(migrations))
	for _, m := range migrations {
		st := MigrationStatus{Version: m.Version, Name: m.Name}
		if at, ok := byVersion[m.Version]; ok {
			st.AppliedAt = &at
		}
		res = append(res, st)
	}
	return res, nil
}

func appliedVersions(db *gorm.DB) (map[int]bool, error) {
	var versions []int
	if err := db.Model(&models.SchemaMigration{}).Pluck("version", &versions).Error; err != nil {
		return nil, fmt.Errorf("failed to read schema_migrations: %w", err)
	}
	applied := make(map[int]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}
	return applied, nil
}
