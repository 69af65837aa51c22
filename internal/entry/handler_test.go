package entry

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http/httptest"
	"testing"

	"merchcheck-backend/internal/auth"
	"merchcheck-backend/internal/httpx"
	"merchcheck-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(svc *Service, user *models.User) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: httpx.ErrorHandler})
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(auth.CtxUserKey, user)
		return c.Next()
	})
	app.Post("/submit_data", SubmitHandler(svc))
	app.Get("/get_branches", GetBranchesHandler(svc))
	app.Get("/get_branch_by_code", GetBranchByCodeHandler(svc))
	return app
}

type formFile struct {
	field, name string
	data        []byte
}

func multipartBody(t *testing.T, fields map[string][]string, files []formFile) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, vs := range fields {
		for _, v := range vs {
			require.NoError(t, w.WriteField(k, v))
		}
	}
	for _, f := range files {
		fw, err := w.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = fw.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestSubmitHandler(t *testing.T) {
	e := newEnv(t)
	app := newTestApp(e.svc, e.user)

	body, ctype := multipartBody(t, map[string][]string{
		"branch_0":        {"Mall of Istanbul"},
		"shop_code_0":     {"S-001"},
		"category_0":      {"QLED"},
		"model_0":         {"Q8F"},
		"display_type_0":  {"Floor stand"},
		"pop_materials_0": {"A", "B"},
		"branch_1":        {"Akasya"},
		"shop_code_1":     {"S-002"},
		"category_1":      {"UHD"},
		"model_1":         {"U8000"},
		"display_type_1":  {"Wall"},
	}, []formFile{
		{"images_0", "front.jpg", []byte("jpeg")},
		{"images_0", "broken.jpg", []byte("jpeg")},
	})

	req := httptest.NewRequest("POST", "/submit_data", body)
	req.Header.Set("Content-Type", ctype)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out struct {
		Success  bool     `json:"success"`
		Entries  int      `json:"entries"`
		Warnings []string `json:"warnings"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.True(t, out.Success)
	assert.Equal(t, 2, out.Entries)
	assert.Len(t, out.Warnings, 1)

	var entries []models.DataEntry
	require.NoError(t, e.db.Order("id asc").Find(&entries).Error)
	require.Len(t, entries, 2)
	assert.Equal(t, []string{"C"}, []string(entries[0].MissingMaterials))
	assert.Empty(t, entries[1].MissingMaterials)
}

func TestSubmitHandler_InvalidGroupRejectsAll(t *testing.T) {
	e := newEnv(t)
	app := newTestApp(e.svc, e.user)

	body, ctype := multipartBody(t, map[string][]string{
		"branch_0":       {"Mall"},
		"category_0":     {"QLED"},
		"model_0":        {"Q8F"},
		"display_type_0": {"Floor stand"},
		"branch_1":       {"Mall"},
		"category_1":     {"QLED"},
		"model_1":        {"Q9X"},
		"display_type_1": {"Floor stand"},
	}, nil)
	req := httptest.NewRequest("POST", "/submit_data", body)
	req.Header.Set("Content-Type", ctype)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	var count int64
	require.NoError(t, e.db.Model(&models.DataEntry{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestParseGroups(t *testing.T) {
	form := &multipart.Form{
		Value: map[string][]string{
			"category_2":      {"UHD"},
			"category_0":      {"QLED"},
			"model_0":         {"Q8F"},
			"pop_materials_0": {"A", "C"},
			"category_x":      {"ignored"},
		},
		File: map[string][]*multipart.FileHeader{
			"images_0": {{Filename: "a.jpg", Size: 3}, {Filename: "", Size: 0}},
		},
	}

	groups := ParseGroups(form)
	require.Len(t, groups, 2)
	assert.Equal(t, 0, groups[0].Index)
	assert.Equal(t, "Q8F", groups[0].Model)
	assert.Equal(t, []string{"A", "C"}, groups[0].Materials)
	assert.Len(t, groups[0].Photos, 1)
	assert.Equal(t, 2, groups[1].Index)
	assert.Equal(t, "UHD", groups[1].Category)
}

func TestBranchHandlers(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.db.Create(&models.Branch{Name: "Akasya", Code: "S-002"}).Error)
	app := newTestApp(e.svc, &models.User{ID: 50, IsAdmin: true})

	resp, err := app.Test(httptest.NewRequest("GET", "/get_branches?search=aka", nil))
	require.NoError(t, err)
	var list struct {
		Branches []BranchView `json:"branches"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	resp.Body.Close()
	assert.Equal(t, []BranchView{{Name: "Akasya", Code: "S-002"}}, list.Branches)

	resp, err = app.Test(httptest.NewRequest("GET", "/get_branch_by_code?code=S-404", nil))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
