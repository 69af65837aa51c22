package taxonomy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"merchcheck-backend/internal/auth"
	"merchcheck-backend/internal/httpx"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(svc *Service) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: httpx.ErrorHandler})
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(auth.CtxUserKey, admin)
		return c.Next()
	})
	app.Get("/get_dynamic_data/:type", GetDynamicDataHandler(svc))
	app.Get("/get_management_data/:type", GetManagementDataHandler(svc))
	app.Post("/manage_data", ManageDataHandler(svc))
	return app
}

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	ID      uint            `json:"id"`
}

func do(t *testing.T, app *fiber.App, req *http.Request) (int, apiResponse) {
	t.Helper()
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var body apiResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func manage(t *testing.T, app *fiber.App, payload string) (int, apiResponse) {
	req := httptest.NewRequest("POST", "/manage_data", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return do(t, app, req)
}

func TestManageDataHandler(t *testing.T) {
	f := newFixture(t)
	app := newTestApp(f.svc)

	status, body := manage(t, app, `{"action":"add","type":"categories","name":"OLED"}`)
	require.Equal(t, fiber.StatusOK, status, body.Message)
	assert.True(t, body.Success)
	oled := body.ID

	status, body = manage(t, app, `{"action":"add","type":"categories","name":"OLED"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Category already exists", body.Message)

	status, _ = manage(t, app, `{"action":"add","type":"models","name":"S95F","category_id":"`+jsonID(oled)+`"}`)
	assert.Equal(t, fiber.StatusOK, status)

	status, body = manage(t, app, `{"action":"delete","type":"categories","id":`+jsonID(oled)+`}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Contains(t, body.Message, "Cannot delete category")

	status, _ = manage(t, app, `{"action":"edit","type":"categories","id":`+jsonID(oled)+`,"name":"OLED TV"}`)
	assert.Equal(t, fiber.StatusOK, status)

	status, body = manage(t, app, `{"action":"archive","type":"categories","id":1}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.False(t, body.Success)

	status, _ = manage(t, app, `{"action":"add","type":"brands","name":"x"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = manage(t, app, `{"action":"add","type":"models","name":"x","category_id":"abc"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestGetDynamicDataHandler(t *testing.T) {
	f := newFixture(t)
	app := newTestApp(f.svc)

	tests := []struct {
		path string
		want []string
	}{
		{"/get_dynamic_data/categories", []string{"QLED"}},
		{"/get_dynamic_data/models?category=QLED", []string{"Q8F"}},
		{"/get_dynamic_data/display_types?category=QLED", []string{"Floor stand"}},
		{"/get_dynamic_data/display_types", []string{}},
		{"/get_dynamic_data/pop_materials?model=Q8F", []string{"A", "B", "C"}},
		{"/get_dynamic_data/pop_materials", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			status, body := do(t, app, httptest.NewRequest("GET", tt.path, nil))
			require.Equal(t, fiber.StatusOK, status)
			var names []string
			require.NoError(t, json.Unmarshal(body.Data, &names))
			assert.Equal(t, tt.want, names)
		})
	}

	status, _ := do(t, app, httptest.NewRequest("GET", "/get_dynamic_data/unknown", nil))
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestGetDynamicDataHandler_ModelNameInTwoCategories(t *testing.T) {
	f := newFixture(t)
	app := newTestApp(f.svc)
	ctx := context.Background()

	uhd, err := f.svc.Create(ctx, admin, KindCategory, "UHD", 0)
	require.NoError(t, err)
	model, err := f.svc.Create(ctx, admin, KindModel, "Q8F", uhd)
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, admin, KindPOPMaterial, "Z", model)
	require.NoError(t, err)

	tests := []struct {
		path string
		want []string
	}{
		{"/get_dynamic_data/pop_materials?category=QLED&model=Q8F", []string{"A", "B", "C"}},
		{"/get_dynamic_data/pop_materials?category=UHD&model=Q8F", []string{"Z"}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			status, body := do(t, app, httptest.NewRequest("GET", tt.path, nil))
			require.Equal(t, fiber.StatusOK, status)
			var names []string
			require.NoError(t, json.Unmarshal(body.Data, &names))
			assert.Equal(t, tt.want, names)
		})
	}

	res, err := Resolve(f.svc.db, "QLED", "Q8F", "Floor stand")
	require.NoError(t, err)
	selected, missing, err := res.Split([]string{"A", "B"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, selected)
	assert.Equal(t, []string{"C"}, missing)
}

func TestGetManagementDataHandler(t *testing.T) {
	f := newFixture(t)
	app := newTestApp(f.svc)

	status, body := do(t, app, httptest.NewRequest("GET", "/get_management_data/pop_materials?model=Q8F", nil))
	require.Equal(t, fiber.StatusOK, status)

	var items []Item
	require.NoError(t, json.Unmarshal(body.Data, &items))
	require.Len(t, items, 3)
	assert.Equal(t, "Q8F", items[0].Model)
	assert.Equal(t, f.model, items[0].ModelID)
	assert.NotEqual(t, "N/A", items[0].CreatedAt)
}

func jsonID(id uint) string {
	b, _ := json.Marshal(id)
	return string(b)
}
