package dashboard

import (
	"strconv"
	"time"

	"merchcheck-backend/internal/apperr"
	"merchcheck-backend/internal/auth"
	"merchcheck-backend/internal/httpx"
	"merchcheck-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

// pageLimit caps the entries rendered server side; get_entries is unbounded.
const pageLimit = 200

type PhotoResponse struct {
	URL     string              `json:"url"`
	Backend models.PhotoBackend `json:"backend"`
}

type EntryResponse struct {
	ID                uint            `json:"id"`
	EmployeeName      string          `json:"employee_name"`
	EmployeeCode      string          `json:"employee_code"`
	BranchName        string          `json:"branch_name"`
	ShopCode          string          `json:"shop_code"`
	Category          string          `json:"category"`
	Model             string          `json:"model"`
	DisplayType       string          `json:"display_type"`
	SelectedMaterials []string        `json:"selected_materials"`
	MissingMaterials  []string        `json:"missing_materials"`
	Photos            []PhotoResponse `json:"photos"`
	PhotoFailures     int             `json:"photo_failures"`
	CreatedAt         string          `json:"created_at"`
}

func NewEntryResponse(e models.DataEntry) EntryResponse {
	photos := make([]PhotoResponse, 0, len(e.Photos))
	for _, p := range e.Photos {
		photos = append(photos, PhotoResponse{URL: p.URL, Backend: p.Backend})
	}
	return EntryResponse{
		ID:                e.ID,
		EmployeeName:      e.EmployeeName,
		EmployeeCode:      e.EmployeeCode,
		BranchName:        e.BranchName,
		ShopCode:          e.ShopCode,
		Category:          e.Category,
		Model:             e.Model,
		DisplayType:       e.DisplayType,
		SelectedMaterials: nonNil(e.SelectedMaterials),
		MissingMaterials:  nonNil(e.MissingMaterials),
		Photos:            photos,
		PhotoFailures:     e.PhotoFailures,
		CreatedAt:         e.CreatedAt.Format(time.DateTime),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// FiltersFromQuery reads employee, branch, model, date_from and date_to.
func FiltersFromQuery(c *fiber.Ctx) (Filters, error) {
	return ParseFilters(c.Query("employee"), c.Query("branch"), c.Query("model"), c.Query("date_from"), c.Query("date_to"))
}

func entryResponses(entries []models.DataEntry) []EntryResponse {
	out := make([]EntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, NewEntryResponse(e))
	}
	return out
}

// GET /admin_dashboard
func AdminDashboardPageHandler(svc *Service, mediaConfigured bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f, err := FiltersFromQuery(c)
		if err != nil {
			return err
		}
		f.Limit = pageLimit

		entries, err := svc.Entries(c.UserContext(), f)
		if err != nil {
			return err
		}
		stats, err := svc.Stats(c.UserContext(), f)
		if err != nil {
			return err
		}
		opts, err := svc.FilterOptions(c.UserContext())
		if err != nil {
			return err
		}

		return c.Render("admin_dashboard", fiber.Map{
			"Title":           "Admin Dashboard",
			"User":            auth.NewUserResponse(auth.CurrentUser(c)),
			"Entries":         entryResponses(entries),
			"Stats":           stats,
			"Options":         opts,
			"Filters":         f,
			"Truncated":       len(entries) == pageLimit,
			"MediaConfigured": mediaConfigured,
		}, "layouts/main")
	}
}

// GET /get_entries?employee=&branch=&model=&date_from=2024-01-01&date_to=2024-01-31
func GetEntriesHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f, err := FiltersFromQuery(c)
		if err != nil {
			return err
		}
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				return apperr.Validation("Invalid limit %q", raw)
			}
			f.Limit = n
		}

		entries, err := svc.Entries(c.UserContext(), f)
		if err != nil {
			return err
		}
		stats, err := svc.Stats(c.UserContext(), f)
		if err != nil {
			return err
		}
		return httpx.OK(c, fiber.Map{
			"entries": entryResponses(entries),
			"stats":   stats,
		})
	}
}

// GET /get_filter_options
func GetFilterOptionsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		opts, err := svc.FilterOptions(c.UserContext())
		if err != nil {
			return err
		}
		return httpx.OK(c, fiber.Map{"options": opts})
	}
}

// DELETE /delete_entry/:id
func DeleteEntryHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return apperr.Validation("Invalid entry id")
		}
		if err := svc.Delete(c.UserContext(), auth.CurrentUser(c), uint(id)); err != nil {
			return err
		}
		return httpx.OK(c, fiber.Map{"message": "Entry deleted successfully"})
	}
}
