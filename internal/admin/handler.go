package admin

import (
	"time"

	"merchcheck-backend/internal/apperr"
	"merchcheck-backend/internal/auth"
	"merchcheck-backend/internal/httpx"
	"merchcheck-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type UserResponse struct {
	auth.UserResponse
	Branches  []string `json:"branches"`
	CreatedAt string   `json:"created_at"`
}

func NewUserResponse(u *models.User) UserResponse {
	branches := make([]string, 0, len(u.Branches))
	for _, b := range u.Branches {
		branches = append(branches, b.BranchName)
	}
	return UserResponse{
		UserResponse: auth.NewUserResponse(u),
		Branches:     branches,
		CreatedAt:    u.CreatedAt.Format(time.DateTime),
	}
}

type ManageUserRequest struct {
	Action       string   `json:"action"`
	ID           httpx.ID `json:"id"`
	Name         string   `json:"name"`
	CompanyCode  string   `json:"company_code"`
	EmployeeName string   `json:"employee_name"`
	Password     string   `json:"password"`
	IsAdmin      bool     `json:"is_admin"`
}

func (r ManageUserRequest) input() UserInput {
	return UserInput{
		Username:     r.Name,
		EmployeeCode: r.CompanyCode,
		EmployeeName: r.EmployeeName,
		Password:     r.Password,
		IsAdmin:      r.IsAdmin,
	}
}

type ManageUserBranchesRequest struct {
	UserID     httpx.ID `json:"user_id"`
	Action     string   `json:"action"`
	BranchName string   `json:"branch_name"`
}

func bindJSON(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		if apperr.Is(err, apperr.KindValidation) {
			return err
		}
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	return nil
}

// GET /admin_management
func AdminManagementPageHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Render("admin_management", fiber.Map{
			"Title": "Data Management",
			"User":  auth.NewUserResponse(auth.CurrentUser(c)),
		}, "layouts/main")
	}
}

// GET /user_management
func UserManagementPageHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		users, err := svc.Users(c.UserContext())
		if err != nil {
			return err
		}
		res := make([]UserResponse, 0, len(users))
		for i := range users {
			res = append(res, NewUserResponse(&users[i]))
		}
		return c.Render("user_management", fiber.Map{
			"Title": "User Management",
			"User":  auth.NewUserResponse(auth.CurrentUser(c)),
			"Users": res,
		}, "layouts/main")
	}
}

// GET /get_users
func GetUsersHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		users, err := svc.Users(c.UserContext())
		if err != nil {
			return err
		}
		res := make([]UserResponse, 0, len(users))
		for i := range users {
			res = append(res, NewUserResponse(&users[i]))
		}
		return httpx.OK(c, fiber.Map{"users": res})
	}
}

// POST /manage_user
func ManageUserHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ManageUserRequest
		if err := bindJSON(c, &body); err != nil {
			return err
		}
		actor := auth.CurrentUser(c)
		ctx := c.UserContext()

		switch body.Action {
		case "add":
			u, err := svc.CreateUser(ctx, actor, body.input())
			if err != nil {
				return err
			}
			return httpx.OK(c, fiber.Map{"id": u.ID, "message": "User added successfully"})
		case "edit":
			if err := svc.UpdateUser(ctx, actor, uint(body.ID), body.input()); err != nil {
				return err
			}
			return httpx.OK(c, fiber.Map{"message": "User updated successfully"})
		case "delete":
			if err := svc.DeleteUser(ctx, actor, uint(body.ID)); err != nil {
				return err
			}
			return httpx.OK(c, fiber.Map{"message": "User deleted successfully"})
		}
		return apperr.Validation("Invalid action %q", body.Action)
	}
}

// POST /manage_user_branches
func ManageUserBranchesHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ManageUserBranchesRequest
		if err := bindJSON(c, &body); err != nil {
			return err
		}
		actor := auth.CurrentUser(c)
		ctx := c.UserContext()

		switch body.Action {
		case "add":
			if err := svc.AssignBranch(ctx, actor, uint(body.UserID), body.BranchName); err != nil {
				return err
			}
			return httpx.OK(c, fiber.Map{"message": "Branch assigned successfully"})
		case "remove":
			if err := svc.RemoveBranch(ctx, actor, uint(body.UserID), body.BranchName); err != nil {
				return err
			}
			return httpx.OK(c, fiber.Map{"message": "Branch removed successfully"})
		}
		return apperr.Validation("Invalid action %q", body.Action)
	}
}

// GET /get_user_branches/:id
func GetUserBranchesHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return apperr.Validation("Invalid user id")
		}
		assigned, all, err := svc.UserBranches(c.UserContext(), uint(id))
		if err != nil {
			return err
		}
		return httpx.OK(c, fiber.Map{"user_branches": assigned, "all_branches": all})
	}
}
