package audit_test

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"merchcheck-backend/internal/audit"
	"merchcheck-backend/internal/database/dbtest"
	"merchcheck-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestWriteLog_RollsBackWithTransaction(t *testing.T) {
	db := dbtest.New(t)
	admin := &models.User{ID: 1, Username: "admin", EmployeeName: "Ayşe"}

	require.NoError(t, audit.WriteLog(db, audit.LogOptions{
		User: admin, EntityType: "category", EntityID: 3,
		Action: models.AuditActionCreate, Description: "Created category OLED",
	}))

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := audit.WriteLog(tx, audit.LogOptions{User: admin, EntityType: "category", Action: models.AuditActionDelete}); err != nil {
			return err
		}
		return assert.AnError
	})
	require.Error(t, err)

	var logs []models.AuditLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, "Ayşe", logs[0].UserName)
	assert.Equal(t, uint(3), logs[0].EntityID)
}

func TestWriteLog_TruncatesDescription(t *testing.T) {
	db := dbtest.New(t)
	require.NoError(t, audit.WriteLog(db, audit.LogOptions{
		EntityType: "user", Action: models.AuditActionUpdate, Description: strings.Repeat("ü", 400),
	}))

	var l models.AuditLog
	require.NoError(t, db.First(&l).Error)
	assert.Len(t, []rune(l.Description), 255)
}

func TestListAuditLogsHandler(t *testing.T) {
	db := dbtest.New(t)
	for _, et := range []string{"category", "user", "category"} {
		require.NoError(t, audit.WriteLog(db, audit.LogOptions{EntityType: et, Action: models.AuditActionCreate}))
	}

	app := fiber.New()
	app.Get("/audit_logs", audit.ListAuditLogsHandler(db))

	tests := []struct {
		query  string
		status int
		count  int
	}{
		{"", fiber.StatusOK, 3},
		{"?entity_type=category", fiber.StatusOK, 2},
		{"?limit=1", fiber.StatusOK, 1},
		{"?limit=abc", fiber.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest("GET", "/audit_logs"+tt.query, nil))
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, tt.status, resp.StatusCode)
			if tt.status != fiber.StatusOK {
				return
			}
			var body struct {
				Logs []audit.AuditLogResponse `json:"logs"`
			}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Len(t, body.Logs, tt.count)
		})
	}
}
