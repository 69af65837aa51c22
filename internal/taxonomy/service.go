package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"merchcheck-backend/internal/apperr"
	"merchcheck-backend/internal/audit"
	"merchcheck-backend/internal/models"

	"github.com/samber/lo"
	"gorm.io/gorm"
)

// Kind names one level of the taxonomy as it appears in URLs.
type Kind string

const (
	KindCategory    Kind = "categories"
	KindModel       Kind = "models"
	KindDisplayType Kind = "display_types"
	KindPOPMaterial Kind = "pop_materials"
)

var kinds = []Kind{KindCategory, KindModel, KindDisplayType, KindPOPMaterial}

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.TrimSpace(s))
	if !lo.Contains(kinds, k) {
		return "", apperr.Validation("Invalid data type %q", s)
	}
	return k, nil
}

// label is used in messages ("Model already exists in this category").
func (k Kind) label() string {
	switch k {
	case KindCategory:
		return "Category"
	case KindModel:
		return "Model"
	case KindDisplayType:
		return "Display type"
	default:
		return "POP material"
	}
}

func (k Kind) entityType() string {
	switch k {
	case KindCategory:
		return "category"
	case KindModel:
		return "model"
	case KindDisplayType:
		return "display_type"
	default:
		return "pop_material"
	}
}

// Filter narrows listings by parent name. Category also disambiguates a model
// name shared by several categories.
type Filter struct {
	Category string
	Model    string
}

// Item is one taxonomy row with its parent name resolved.
type Item struct {
	ID         uint   `json:"id"`
	Name       string `json:"name"`
	CategoryID uint   `json:"category_id,omitempty"`
	Category   string `json:"category,omitempty"`
	ModelID    uint   `json:"model_id,omitempty"`
	Model      string `json:"model,omitempty"`
	CreatedAt  string `json:"created_at"`
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Names returns the option list shown in the data entry cascade.
func (s *Service) Names(ctx context.Context, kind Kind, f Filter) ([]string, error) {
	items, err := s.Items(ctx, kind, f)
	if err != nil {
		return nil, err
	}
	names := lo.Uniq(lo.Map(items, func(it Item, _ int) string { return it.Name }))
	return names, nil
}

// Items lists one level ordered by name. An unknown parent yields an empty list.
func (s *Service) Items(ctx context.Context, kind Kind, f Filter) ([]Item, error) {
	db := s.db.WithContext(ctx)

	switch kind {
	case KindCategory:
		var rows []models.Category
		if err := db.Order("name asc").Find(&rows).Error; err != nil {
			return nil, err
		}
		return lo.Map(rows, func(r models.Category, _ int) Item {
			return Item{ID: r.ID, Name: r.Name, CreatedAt: formatTime(r.CreatedAt)}
		}), nil

	case KindModel:
		q := db.Preload("Category").Order("name asc")
		if f.Category != "" {
			q = q.Where("category_id IN (?)", categoryIDs(db, f.Category))
		}
		var rows []models.ProductModel
		if err := q.Find(&rows).Error; err != nil {
			return nil, err
		}
		return lo.Map(rows, func(r models.ProductModel, _ int) Item {
			return Item{ID: r.ID, Name: r.Name, CategoryID: r.CategoryID, Category: r.Category.Name, CreatedAt: formatTime(r.CreatedAt)}
		}), nil

	case KindDisplayType:
		q := db.Preload("Category").Order("name asc")
		if f.Category != "" {
			q = q.Where("category_id IN (?)", categoryIDs(db, f.Category))
		}
		var rows []models.DisplayType
		if err := q.Find(&rows).Error; err != nil {
			return nil, err
		}
		return lo.Map(rows, func(r models.DisplayType, _ int) Item {
			return Item{ID: r.ID, Name: r.Name, CategoryID: r.CategoryID, Category: r.Category.Name, CreatedAt: formatTime(r.CreatedAt)}
		}), nil

	case KindPOPMaterial:
		q := db.Preload("Model").Order("name asc")
		if f.Model != "" || f.Category != "" {
			sub := db.Model(&models.ProductModel{}).Select("id")
			if f.Model != "" {
				sub = sub.Where("name = ?", f.Model)
			}
			if f.Category != "" {
				sub = sub.Where("category_id IN (?)", categoryIDs(db, f.Category))
			}
			q = q.Where("model_id IN (?)", sub)
		}
		var rows []models.POPMaterial
		if err := q.Find(&rows).Error; err != nil {
			return nil, err
		}
		return lo.Map(rows, func(r models.POPMaterial, _ int) Item {
			return Item{ID: r.ID, Name: r.Name, ModelID: r.ModelID, Model: r.Model.Name, CreatedAt: formatTime(r.CreatedAt)}
		}), nil
	}
	return nil, apperr.Validation("Invalid data type %q", kind)
}

func categoryIDs(db *gorm.DB, name string) *gorm.DB {
	return db.Model(&models.Category{}).Select("id").Where("name = ?", name)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	return t.Format("2006-01-02 15:04:05")
}

// Create adds a row. parentID is the category for models and display types and
// the model for POP materials; it is ignored for categories.
func (s *Service) Create(ctx context.Context, actor *models.User, kind Kind, name string, parentID uint) (uint, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, apperr.Validation("%s name is required", kind.label())
	}
	if kind != KindCategory && parentID == 0 {
		return 0, apperr.Validation("%s name and %s are required", kind.label(), parentLabel(kind))
	}

	var id uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkParent(tx, kind, parentID); err != nil {
			return err
		}
		if err := checkUnique(tx, kind, name, parentID, 0); err != nil {
			return err
		}

		var err error
		id, err = insert(tx, kind, name, parentID)
		if err != nil {
			return translate(kind, err)
		}
		return audit.WriteLog(tx, audit.LogOptions{
			User:        actor,
			EntityType:  kind.entityType(),
			EntityID:    id,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Created %s %q", strings.ToLower(kind.label()), name),
		})
	})
	return id, err
}

// Update renames a row and optionally moves it under another parent
// (parentID 0 keeps the current one). Stored entries are not touched.
func (s *Service) Update(ctx context.Context, actor *models.User, kind Kind, id uint, name string, parentID uint) error {
	if id == 0 {
		return apperr.Validation("Item ID is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return apperr.Validation("%s name is required", kind.label())
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		currentParent, err := currentParentID(tx, kind, id)
		if err != nil {
			return err
		}
		if parentID == 0 {
			parentID = currentParent
		} else if err := checkParent(tx, kind, parentID); err != nil {
			return err
		}
		if err := checkUnique(tx, kind, name, parentID, id); err != nil {
			return err
		}

		updates := map[string]any{"name": name}
		switch kind {
		case KindModel, KindDisplayType:
			updates["category_id"] = parentID
		case KindPOPMaterial:
			updates["model_id"] = parentID
		}
		if err := tx.Model(modelFor(kind)).Where("id = ?", id).Updates(updates).Error; err != nil {
			return translate(kind, err)
		}
		return audit.WriteLog(tx, audit.LogOptions{
			User:        actor,
			EntityType:  kind.entityType(),
			EntityID:    id,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Renamed %s to %q", strings.ToLower(kind.label()), name),
		})
	})
}

// Delete removes a row. Categories with models or display types and models
// with POP materials are refused.
func (s *Service) Delete(ctx context.Context, actor *models.User, kind Kind, id uint) error {
	if id == 0 {
		return apperr.Validation("Item ID is required")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		name, err := currentName(tx, kind, id)
		if err != nil {
			return err
		}

		switch kind {
		case KindCategory:
			n, err := countWhere(tx, &models.ProductModel{}, "category_id = ?", id)
			if err != nil {
				return err
			}
			d, err := countWhere(tx, &models.DisplayType{}, "category_id = ?", id)
			if err != nil {
				return err
			}
			if n > 0 || d > 0 {
				return apperr.Integrity("Cannot delete category with existing models or display types")
			}
		case KindModel:
			n, err := countWhere(tx, &models.POPMaterial{}, "model_id = ?", id)
			if err != nil {
				return err
			}
			if n > 0 {
				return apperr.Integrity("Cannot delete model with existing POP materials")
			}
		}

		if err := tx.Delete(modelFor(kind), id).Error; err != nil {
			if errors.Is(err, gorm.ErrForeignKeyViolated) {
				return apperr.Integrity("%s is still in use", kind.label())
			}
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			User:        actor,
			EntityType:  kind.entityType(),
			EntityID:    id,
			Action:      models.AuditActionDelete,
			Description: fmt.Sprintf("Deleted %s %q", strings.ToLower(kind.label()), name),
		})
	})
}

func parentLabel(kind Kind) string {
	if kind == KindPOPMaterial {
		return "model"
	}
	return "category"
}

func modelFor(kind Kind) any {
	switch kind {
	case KindCategory:
		return &models.Category{}
	case KindModel:
		return &models.ProductModel{}
	case KindDisplayType:
		return &models.DisplayType{}
	default:
		return &models.POPMaterial{}
	}
}

func parentColumn(kind Kind) string {
	switch kind {
	case KindModel, KindDisplayType:
		return "category_id"
	case KindPOPMaterial:
		return "model_id"
	}
	return ""
}

func checkParent(tx *gorm.DB, kind Kind, parentID uint) error {
	var parent any
	switch kind {
	case KindModel, KindDisplayType:
		parent = &models.Category{}
	case KindPOPMaterial:
		parent = &models.ProductModel{}
	default:
		return nil
	}
	n, err := countWhere(tx, parent, "id = ?", parentID)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.Validation("Selected %s does not exist", parentLabel(kind))
	}
	return nil
}

func checkUnique(tx *gorm.DB, kind Kind, name string, parentID, exceptID uint) error {
	q := tx.Model(modelFor(kind)).Where("name = ?", name)
	if col := parentColumn(kind); col != "" {
		q = q.Where(col+" = ?", parentID)
	}
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return conflict(kind)
	}
	return nil
}

func conflict(kind Kind) error {
	switch kind {
	case KindCategory:
		return apperr.Conflict("Category already exists")
	case KindPOPMaterial:
		return apperr.Conflict("POP material already exists for this model")
	default:
		return apperr.Conflict("%s already exists in this category", kind.label())
	}
}

func translate(kind Kind, err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return conflict(kind)
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return apperr.Validation("Selected %s does not exist", parentLabel(kind))
	}
	return err
}

func insert(tx *gorm.DB, kind Kind, name string, parentID uint) (uint, error) {
	switch kind {
	case KindCategory:
		row := models.Category{Name: name}
		err := tx.Create(&row).Error
		return row.ID, err
	case KindModel:
		row := models.ProductModel{Name: name, CategoryID: parentID}
		err := tx.Omit("Category").Create(&row).Error
		return row.ID, err
	case KindDisplayType:
		row := models.DisplayType{Name: name, CategoryID: parentID}
		err := tx.Omit("Category").Create(&row).Error
		return row.ID, err
	default:
		row := models.POPMaterial{Name: name, ModelID: parentID}
		err := tx.Omit("Model").Create(&row).Error
		return row.ID, err
	}
}

func currentName(tx *gorm.DB, kind Kind, id uint) (string, error) {
	var names []string
	if err := tx.Model(modelFor(kind)).Where("id = ?", id).Limit(1).Pluck("name", &names).Error; err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", apperr.NotFound("%s not found", kind.label())
	}
	return names[0], nil
}

func currentParentID(tx *gorm.DB, kind Kind, id uint) (uint, error) {
	if _, err := currentName(tx, kind, id); err != nil {
		return 0, err
	}
	col := parentColumn(kind)
	if col == "" {
		return 0, nil
	}
	var ids []uint
	if err := tx.Model(modelFor(kind)).Where("id = ?", id).Limit(1).Pluck(col, &ids).Error; err != nil {
		return 0, err
	}
	return ids[0], nil
}

func countWhere(tx *gorm.DB, model any, query string, args ...any) (int64, error) {
	var n int64
	err := tx.Model(model).Where(query, args...).Count(&n).Error
	return n, err
}
