package admin

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"merchcheck-backend/internal/apperr"
	"merchcheck-backend/internal/auth"
	"merchcheck-backend/internal/database/dbtest"
	"merchcheck-backend/internal/httpx"
	"merchcheck-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newAdmin(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	admin := &models.User{Username: "admin", PasswordHash: "x", EmployeeName: "Administrator", EmployeeCode: "ADMIN001", IsAdmin: true}
	require.NoError(t, db.Create(admin).Error)
	return admin
}

func TestCreateUser(t *testing.T) {
	db := dbtest.New(t)
	svc := NewService(db)
	admin := newAdmin(t, db)
	ctx := context.Background()

	u, err := svc.CreateUser(ctx, admin, UserInput{Username: " ali ", EmployeeCode: "E100", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "ali", u.Username)
	assert.Equal(t, "ali", u.EmployeeName)
	assert.True(t, auth.CheckPassword(u.PasswordHash, "secret1"))

	tests := []struct {
		name string
		in   UserInput
		kind apperr.Kind
	}{
		{"short password", UserInput{Username: "veli", EmployeeCode: "E200", Password: "12345"}, apperr.KindValidation},
		{"missing code", UserInput{Username: "veli", Password: "secret1"}, apperr.KindValidation},
		{"duplicate username", UserInput{Username: "ali", EmployeeCode: "E300", Password: "secret1"}, apperr.KindConflict},
		{"duplicate code", UserInput{Username: "veli", EmployeeCode: "E100", Password: "secret1"}, apperr.KindConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateUser(ctx, admin, tt.in)
			assert.True(t, apperr.Is(err, tt.kind), "got %v", err)
		})
	}

	var logs int64
	require.NoError(t, db.Model(&models.AuditLog{}).Where("entity_type = ?", "user").Count(&logs).Error)
	assert.Equal(t, int64(1), logs)
}

func TestUpdateUser(t *testing.T) {
	db := dbtest.New(t)
	svc := NewService(db)
	admin := newAdmin(t, db)
	ctx := context.Background()

	u, err := svc.CreateUser(ctx, admin, UserInput{Username: "ali", EmployeeCode: "E100", Password: "secret1"})
	require.NoError(t, err)
	oldHash := u.PasswordHash

	require.NoError(t, svc.UpdateUser(ctx, admin, u.ID, UserInput{Username: "ali", EmployeeCode: "E101", EmployeeName: "Ali Veli"}))
	var got models.User
	require.NoError(t, db.First(&got, u.ID).Error)
	assert.Equal(t, "E101", got.EmployeeCode)
	assert.Equal(t, "Ali Veli", got.EmployeeName)
	assert.Equal(t, oldHash, got.PasswordHash)

	require.NoError(t, svc.UpdateUser(ctx, admin, u.ID, UserInput{Username: "ali", EmployeeCode: "E101", Password: "another"}))
	require.NoError(t, db.First(&got, u.ID).Error)
	assert.True(t, auth.CheckPassword(got.PasswordHash, "another"))

	err = svc.UpdateUser(ctx, admin, u.ID, UserInput{Username: "admin", EmployeeCode: "E101"})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	err = svc.UpdateUser(ctx, admin, admin.ID, UserInput{Username: "admin", EmployeeCode: "ADMIN001", IsAdmin: false})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	err = svc.UpdateUser(ctx, admin, 999, UserInput{Username: "x", EmployeeCode: "y"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestDeleteUser(t *testing.T) {
	db := dbtest.New(t)
	svc := NewService(db)
	admin := newAdmin(t, db)
	ctx := context.Background()

	t.Run("self", func(t *testing.T) {
		err := svc.DeleteUser(ctx, admin, admin.ID)
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	})

	t.Run("last admin", func(t *testing.T) {
		other, err := svc.CreateUser(ctx, admin, UserInput{Username: "ops", EmployeeCode: "OPS", Password: "secret1"})
		require.NoError(t, err)
		err = svc.DeleteUser(ctx, other, admin.ID)
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	})

	t.Run("second admin cascades branches", func(t *testing.T) {
		second, err := svc.CreateUser(ctx, admin, UserInput{Username: "boss", EmployeeCode: "B1", Password: "secret1", IsAdmin: true})
		require.NoError(t, err)
		require.NoError(t, svc.AssignBranch(ctx, admin, second.ID, "Akasya"))
		entry := models.DataEntry{UserID: &second.ID, EmployeeName: "boss", EmployeeCode: "B1", BranchName: "Akasya",
			Category: "QLED", Model: "Q8F", DisplayType: "Wall", SelectedMaterials: []string{}, MissingMaterials: []string{}}
		require.NoError(t, db.Create(&entry).Error)

		require.NoError(t, svc.DeleteUser(ctx, admin, second.ID))

		var n int64
		require.NoError(t, db.Model(&models.UserBranch{}).Where("user_id = ?", second.ID).Count(&n).Error)
		assert.Zero(t, n)
		var kept models.DataEntry
		require.NoError(t, db.First(&kept, entry.ID).Error)
		assert.Nil(t, kept.UserID)
		assert.Equal(t, "boss", kept.EmployeeName)
	})

	t.Run("missing", func(t *testing.T) {
		err := svc.DeleteUser(ctx, admin, 999)
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
	})
}

func TestAdminsRemovingEachOther(t *testing.T) {
	tests := []struct {
		name   string
		remove func(svc *Service, actor, target *models.User) error
	}{
		{"delete", func(svc *Service, actor, target *models.User) error {
			return svc.DeleteUser(context.Background(), actor, target.ID)
		}},
		{"demote", func(svc *Service, actor, target *models.User) error {
			return svc.UpdateUser(context.Background(), actor, target.ID, UserInput{
				Username: target.Username, EmployeeCode: target.EmployeeCode, IsAdmin: false,
			})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := dbtest.New(t)
			svc := NewService(db)
			first := newAdmin(t, db)
			second, err := svc.CreateUser(context.Background(), first, UserInput{Username: "boss", EmployeeCode: "B1", Password: "secret1", IsAdmin: true})
			require.NoError(t, err)

			errs := make([]error, 2)
			var wg sync.WaitGroup
			wg.Add(2)
			go func() { defer wg.Done(); errs[0] = tt.remove(svc, first, second) }()
			go func() { defer wg.Done(); errs[1] = tt.remove(svc, second, first) }()
			wg.Wait()

			assert.Len(t, lo.Filter(errs, func(err error, _ int) bool { return err == nil }), 1)
			var admins int64
			require.NoError(t, db.Model(&models.User{}).Where("is_admin = ?", true).Count(&admins).Error)
			assert.Equal(t, int64(1), admins)
		})
	}
}

func TestBranchAssignments(t *testing.T) {
	db := dbtest.New(t)
	svc := NewService(db)
	admin := newAdmin(t, db)
	ctx := context.Background()

	u, err := svc.CreateUser(ctx, admin, UserInput{Username: "ali", EmployeeCode: "E100", Password: "secret1"})
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.Branch{Name: "Zorlu", Code: "S-9"}).Error)

	require.NoError(t, svc.AssignBranch(ctx, admin, u.ID, "Akasya"))
	require.NoError(t, svc.AssignBranch(ctx, admin, u.ID, "Akasya"))
	assert.True(t, apperr.Is(svc.AssignBranch(ctx, admin, u.ID, " "), apperr.KindValidation))

	assigned, all, err := svc.UserBranches(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Akasya"}, assigned)
	assert.Equal(t, []string{"Zorlu"}, all)

	require.NoError(t, svc.RemoveBranch(ctx, admin, u.ID, "Akasya"))
	assert.True(t, apperr.Is(svc.RemoveBranch(ctx, admin, u.ID, "Akasya"), apperr.KindNotFound))

	assigned, _, err = svc.UserBranches(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, assigned)
	assert.NotNil(t, assigned)
}

func newTestApp(svc *Service, user *models.User) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: httpx.ErrorHandler})
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(auth.CtxUserKey, user)
		return c.Next()
	})
	app.Get("/get_users", GetUsersHandler(svc))
	app.Post("/manage_user", ManageUserHandler(svc))
	app.Post("/manage_user_branches", ManageUserBranchesHandler(svc))
	app.Get("/get_user_branches/:id", GetUserBranchesHandler(svc))
	return app
}

func post(t *testing.T, app *fiber.App, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestHandlers(t *testing.T) {
	db := dbtest.New(t)
	svc := NewService(db)
	admin := newAdmin(t, db)
	app := newTestApp(svc, admin)

	status, body := post(t, app, "/manage_user", `{"action":"add","name":"ali","company_code":"E100","password":"secret1"}`)
	require.Equal(t, fiber.StatusOK, status, body)
	id := int(body["id"].(float64))

	status, body = post(t, app, "/manage_user", `{"action":"add","name":"ali","company_code":"E200","password":"secret1"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, false, body["success"])

	status, _ = post(t, app, "/manage_user_branches", `{"action":"add","user_id":"`+itoa(id)+`","branch_name":"Akasya"}`)
	assert.Equal(t, fiber.StatusOK, status)

	status, _ = post(t, app, "/manage_user", `{"action":"promote","id":1}`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	resp, err := app.Test(httptest.NewRequest("GET", "/get_users", nil))
	require.NoError(t, err)
	var users struct {
		Users []UserResponse `json:"users"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&users))
	resp.Body.Close()
	require.Len(t, users.Users, 2)
	assert.Equal(t, "admin", users.Users[0].Username)
	assert.Equal(t, []string{"Akasya"}, users.Users[1].Branches)

	resp, err = app.Test(httptest.NewRequest("GET", "/get_user_branches/"+itoa(id), nil))
	require.NoError(t, err)
	var branches struct {
		UserBranches []string `json:"user_branches"`
		AllBranches  []string `json:"all_branches"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&branches))
	resp.Body.Close()
	assert.Equal(t, []string{"Akasya"}, branches.UserBranches)

	status, _ = post(t, app, "/manage_user", `{"action":"delete","id":`+itoa(id)+`}`)
	assert.Equal(t, fiber.StatusOK, status)

	resp, err = app.Test(httptest.NewRequest("GET", "/get_user_branches/"+itoa(id), nil))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
