package entry

import (
	"io"
	"mime/multipart"
	"sort"
	"strconv"
	"strings"

	"merchcheck-backend/internal/auth"
	"merchcheck-backend/internal/httpx"

	"github.com/gofiber/fiber/v2"
)

// GET /data_entry
func DataEntryPageHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		u := auth.CurrentUser(c)
		if u.IsAdmin {
			return c.Redirect(auth.HomePath(u))
		}
		return c.Render("data_entry", fiber.Map{
			"Title":     "Data Entry",
			"User":      auth.NewUserResponse(u),
			"MaxPhotos": MaxPhotosPerGroup,
		}, "layouts/main")
	}
}

// POST /submit_data
func SubmitHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		form, err := c.MultipartForm()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid form data")
		}

		res, err := svc.Submit(c.UserContext(), auth.CurrentUser(c), ParseGroups(form))
		if err != nil {
			return err
		}

		warnings := res.Warnings
		if warnings == nil {
			warnings = []string{}
		}
		return httpx.OK(c, fiber.Map{
			"message":  "Data saved successfully",
			"entries":  len(res.Entries),
			"warnings": warnings,
		})
	}
}

// ParseGroups reads the indexed fields (category_0, model_0, ...) of a
// submission. Groups are discovered from their category_{i} key and returned
// in index order.
func ParseGroups(form *multipart.Form) []Group {
	var indices []int
	for key := range form.Value {
		if raw, ok := strings.CutPrefix(key, "category_"); ok {
			if i, err := strconv.Atoi(raw); err == nil && i >= 0 {
				indices = append(indices, i)
			}
		}
	}
	sort.Ints(indices)

	value := func(name string, i int) string {
		vs := form.Value[name+"_"+strconv.Itoa(i)]
		if len(vs) == 0 {
			return ""
		}
		return vs[0]
	}

	groups := make([]Group, 0, len(indices))
	for _, i := range indices {
		g := Group{
			Index:       i,
			Branch:      value("branch", i),
			ShopCode:    value("shop_code", i),
			Category:    value("category", i),
			Model:       value("model", i),
			DisplayType: value("display_type", i),
			Materials:   form.Value["pop_materials_"+strconv.Itoa(i)],
		}
		for _, fh := range form.File["images_"+strconv.Itoa(i)] {
			if fh.Filename == "" && fh.Size == 0 {
				continue
			}
			g.Photos = append(g.Photos, Photo{
				Name: fh.Filename,
				Open: func() (io.ReadCloser, error) { return fh.Open() },
			})
		}
		groups = append(groups, g)
	}
	return groups
}

// GET /get_branches?search=
func GetBranchesHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		branches, err := svc.SearchBranches(c.UserContext(), auth.CurrentUser(c), c.Query("search"))
		if err != nil {
			return err
		}
		return httpx.OK(c, fiber.Map{"branches": branches})
	}
}

// GET /get_branch_by_code?code=
func GetBranchByCodeHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		b, err := svc.BranchByCode(c.UserContext(), c.Query("code"))
		if err != nil {
			return err
		}
		return httpx.OK(c, fiber.Map{"branch": b})
	}
}
