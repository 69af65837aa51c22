// Package dbtest opens migrated in-memory databases for tests.
package dbtest

import (
	"fmt"
	"testing"

	"merchcheck-backend/internal/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// New returns an empty, fully migrated database private to the test.
func New(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&_pragma=foreign_keys(1)", uuid.NewString())
	db, err := database.OpenSQLite(dsn, logger.Default.LogMode(logger.Silent))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() {
		_ = database.Close(db)
	})
	return db
}
