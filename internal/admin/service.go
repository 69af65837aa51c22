package admin

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"merchcheck-backend/internal/apperr"
	"merchcheck-backend/internal/audit"
	"merchcheck-backend/internal/auth"
	"merchcheck-backend/internal/models"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserInput carries add/edit fields. An empty Password on edit keeps the
// current one.
type UserInput struct {
	Username     string
	EmployeeCode string
	EmployeeName string
	Password     string
	IsAdmin      bool
}

func (in *UserInput) normalize() {
	in.Username = strings.TrimSpace(in.Username)
	in.EmployeeCode = strings.TrimSpace(in.EmployeeCode)
	in.EmployeeName = strings.TrimSpace(in.EmployeeName)
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Users returns every user with their branch assignments, admins first.
func (s *Service) Users(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := s.db.WithContext(ctx).
		Preload("Branches", func(db *gorm.DB) *gorm.DB { return db.Order("branch_name asc") }).
		Order("is_admin desc").Order("username asc").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (s *Service) CreateUser(ctx context.Context, actor *models.User, in UserInput) (*models.User, error) {
	in.normalize()
	if in.Username == "" || in.EmployeeCode == "" {
		return nil, apperr.Validation("Name and company code are required")
	}
	if err := auth.ValidatePassword(in.Password); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Username:     in.Username,
		EmployeeCode: in.EmployeeCode,
		EmployeeName: lo.Ternary(in.EmployeeName != "", in.EmployeeName, in.Username),
		PasswordHash: hash,
		IsAdmin:      in.IsAdmin,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkUnique(tx, in, 0); err != nil {
			return err
		}
		if err := tx.Create(&user).Error; err != nil {
			return translate(err)
		}
		return audit.WriteLog(tx, audit.LogOptions{
			User:        actor,
			EntityType:  "user",
			EntityID:    user.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Created user %s (%s)%s", user.Username, user.EmployeeCode, adminSuffix(user.IsAdmin)),
		})
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Service) UpdateUser(ctx context.Context, actor *models.User, id uint, in UserInput) error {
	in.normalize()
	if in.Username == "" || in.EmployeeCode == "" {
		return apperr.Validation("Name and company code are required")
	}

	var hash string
	if in.Password != "" {
		if err := auth.ValidatePassword(in.Password); err != nil {
			return err
		}
		var err error
		if hash, err = auth.HashPassword(in.Password); err != nil {
			return err
		}
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := findUser(tx, id)
		if err != nil {
			return err
		}
		if user.IsAdmin && !in.IsAdmin {
			if err := ensureOtherAdmin(tx, user.ID, "Cannot remove admin rights from the last admin"); err != nil {
				return err
			}
		}
		if err := checkUnique(tx, in, user.ID); err != nil {
			return err
		}

		updates := map[string]any{
			"username":      in.Username,
			"employee_code": in.EmployeeCode,
			"employee_name": lo.Ternary(in.EmployeeName != "", in.EmployeeName, in.Username),
			"is_admin":      in.IsAdmin,
		}
		if hash != "" {
			updates["password_hash"] = hash
		}
		if err := tx.Model(user).Updates(updates).Error; err != nil {
			return translate(err)
		}
		return audit.WriteLog(tx, audit.LogOptions{
			User:        actor,
			EntityType:  "user",
			EntityID:    user.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Updated user %s (%s)%s", in.Username, in.EmployeeCode, adminSuffix(in.IsAdmin)),
		})
	})
}

// DeleteUser removes a user and their branch assignments. Entries they
// submitted stay, detached from the account.
func (s *Service) DeleteUser(ctx context.Context, actor *models.User, id uint) error {
	if actor != nil && actor.ID == id {
		return apperr.Validation("You cannot delete your own account")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := findUser(tx, id)
		if err != nil {
			return err
		}
		if user.IsAdmin {
			if err := ensureOtherAdmin(tx, user.ID, "Cannot delete the last admin"); err != nil {
				return err
			}
		}

		if err := tx.Where("user_id = ?", user.ID).Delete(&models.UserBranch{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.DataEntry{}).Where("user_id = ?", user.ID).Update("user_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Delete(user).Error; err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			User:        actor,
			EntityType:  "user",
			EntityID:    user.ID,
			Action:      models.AuditActionDelete,
			Description: fmt.Sprintf("Deleted user %s (%s)", user.Username, user.EmployeeCode),
		})
	})
}

// AssignBranch links a branch name to a user; assigning twice is a no-op.
func (s *Service) AssignBranch(ctx context.Context, actor *models.User, userID uint, branch string) error {
	branch = strings.TrimSpace(branch)
	if branch == "" {
		return apperr.Validation("Branch name is required")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := findUser(tx, userID)
		if err != nil {
			return err
		}
		var n int64
		if err := tx.Model(&models.UserBranch{}).Where("user_id = ? AND branch_name = ?", user.ID, branch).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return nil
		}

		link := models.UserBranch{UserID: user.ID, BranchName: branch}
		if err := tx.Create(&link).Error; err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			User:        actor,
			EntityType:  "user_branch",
			EntityID:    link.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Assigned branch %s to %s", branch, user.Username),
		})
	})
}

func (s *Service) RemoveBranch(ctx context.Context, actor *models.User, userID uint, branch string) error {
	branch = strings.TrimSpace(branch)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := findUser(tx, userID)
		if err != nil {
			return err
		}
		var link models.UserBranch
		err = tx.Where("user_id = ? AND branch_name = ?", user.ID, branch).Take(&link).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("Branch %s is not assigned to %s", branch, user.Username)
		}
		if err != nil {
			return err
		}

		if err := tx.Delete(&link).Error; err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			User:        actor,
			EntityType:  "user_branch",
			EntityID:    link.ID,
			Action:      models.AuditActionDelete,
			Description: fmt.Sprintf("Removed branch %s from %s", branch, user.Username),
		})
	})
}

// UserBranches returns the user's assigned branch names and every known
// branch name, from the branch registry and from past entries.
func (s *Service) UserBranches(ctx context.Context, userID uint) (assigned, all []string, err error) {
	db := s.db.WithContext(ctx)
	if _, err := findUser(db, userID); err != nil {
		return nil, nil, err
	}

	assigned = []string{}
	if err := db.Model(&models.UserBranch{}).Where("user_id = ?", userID).Order("branch_name asc").Pluck("branch_name", &assigned).Error; err != nil {
		return nil, nil, err
	}

	var registry, entered []string
	if err := db.Model(&models.Branch{}).Pluck("name", &registry).Error; err != nil {
		return nil, nil, err
	}
	if err := db.Model(&models.DataEntry{}).Distinct("branch_name").Pluck("branch_name", &entered).Error; err != nil {
		return nil, nil, err
	}
	all = lo.Uniq(append(registry, entered...))
	slices.Sort(all)
	return assigned, all, nil
}

func findUser(tx *gorm.DB, id uint) (*models.User, error) {
	var user models.User
	err := tx.Take(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("User not found")
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ensureOtherAdmin locks every admin row, target included, so two admins
// removing each other at once are serialized and the second one is refused.
func ensureOtherAdmin(tx *gorm.DB, exceptID uint, msg string) error {
	var ids []uint
	err := tx.Model(&models.User{}).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("is_admin = ?", true).Pluck("id", &ids).Error
	if err != nil {
		return err
	}
	if !lo.ContainsBy(ids, func(id uint) bool { return id != exceptID }) {
		return apperr.Validation("%s", msg)
	}
	return nil
}

func checkUnique(tx *gorm.DB, in UserInput, exceptID uint) error {
	var n int64
	if err := tx.Model(&models.User{}).Where("username = ? AND id <> ?", in.Username, exceptID).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return apperr.Conflict("Username %s already exists", in.Username)
	}
	if err := tx.Model(&models.User{}).Where("employee_code = ? AND id <> ?", in.EmployeeCode, exceptID).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return apperr.Conflict("Company code %s already exists", in.EmployeeCode)
	}
	return nil
}

// translate turns a unique violation that slipped past checkUnique into a
// conflict.
func translate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.Conflict("Username or company code already exists")
	}
	return err
}

func adminSuffix(isAdmin bool) string {
	if isAdmin {
		return " as admin"
	}
	return ""
}
