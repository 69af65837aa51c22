package taxonomy

import (
	"strings"

	"merchcheck-backend/internal/apperr"
	"merchcheck-backend/internal/auth"
	"merchcheck-backend/internal/httpx"

	"github.com/gofiber/fiber/v2"
)

type ManageDataRequest struct {
	Action     string   `json:"action"`
	Type       string   `json:"type"`
	ID         httpx.ID `json:"id"`
	Name       string   `json:"name"`
	CategoryID httpx.ID `json:"category_id"`
	ModelID    httpx.ID `json:"model_id"`
}

func (r ManageDataRequest) parentID(kind Kind) uint {
	if kind == KindPOPMaterial {
		return uint(r.ModelID)
	}
	return uint(r.CategoryID)
}

func filterFromQuery(c *fiber.Ctx) Filter {
	return Filter{
		Category: strings.TrimSpace(c.Query("category")),
		Model:    strings.TrimSpace(c.Query("model")),
	}
}

// GET /get_dynamic_data/:type?category=OLED&model=Q8F
func GetDynamicDataHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		kind, err := ParseKind(c.Params("type"))
		if err != nil {
			return err
		}
		f := filterFromQuery(c)
		// options that need a parent stay empty until the parent is picked
		if (kind == KindDisplayType && f.Category == "") || (kind == KindPOPMaterial && f.Model == "") {
			return httpx.OK(c, fiber.Map{"data": []string{}})
		}

		names, err := svc.Names(c.UserContext(), kind, f)
		if err != nil {
			return err
		}
		return httpx.OK(c, fiber.Map{"data": names})
	}
}

// GET /get_management_data/:type
func GetManagementDataHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		kind, err := ParseKind(c.Params("type"))
		if err != nil {
			return err
		}
		items, err := svc.Items(c.UserContext(), kind, filterFromQuery(c))
		if err != nil {
			return err
		}
		return httpx.OK(c, fiber.Map{"data": items})
	}
}

// POST /manage_data
func ManageDataHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ManageDataRequest
		if err := c.BodyParser(&body); err != nil {
			if apperr.Is(err, apperr.KindValidation) {
				return err
			}
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		kind, err := ParseKind(body.Type)
		if err != nil {
			return err
		}
		actor := auth.CurrentUser(c)
		ctx := c.UserContext()

		switch body.Action {
		case "add":
			id, err := svc.Create(ctx, actor, kind, body.Name, body.parentID(kind))
			if err != nil {
				return err
			}
			return httpx.OK(c, fiber.Map{"id": id, "message": kind.label() + " added successfully"})
		case "edit":
			if err := svc.Update(ctx, actor, kind, uint(body.ID), body.Name, body.parentID(kind)); err != nil {
				return err
			}
			return httpx.OK(c, fiber.Map{"message": kind.label() + " updated successfully"})
		case "delete":
			if err := svc.Delete(ctx, actor, kind, uint(body.ID)); err != nil {
				return err
			}
			return httpx.OK(c, fiber.Map{"message": kind.label() + " deleted successfully"})
		}
		return apperr.Validation("Invalid action %q", body.Action)
	}
}
