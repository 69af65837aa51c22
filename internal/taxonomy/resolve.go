package taxonomy

import (
	"errors"
	"strings"

	"merchcheck-backend/internal/apperr"
	"merchcheck-backend/internal/models"

	"github.com/samber/lo"
	"gorm.io/gorm"
)

// Resolution is a category/model/display type triple checked against the
// taxonomy, with the materials configured for the model.
type Resolution struct {
	Category    models.Category
	Model       models.ProductModel
	DisplayType models.DisplayType
	Materials   []string
}

// Resolve looks the names up in db (which may be a transaction). A model or
// display type that exists only under another category is rejected.
func Resolve(db *gorm.DB, category, model, displayType string) (*Resolution, error) {
	var res Resolution

	if err := db.Where("name = ?", category).Take(&res.Category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Validation("Unknown category %q", category)
		}
		return nil, err
	}

	err := db.Where("name = ? AND category_id = ?", model, res.Category.ID).Take(&res.Model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Validation("Model %q does not belong to category %q", model, category)
	}
	if err != nil {
		return nil, err
	}

	err = db.Where("name = ? AND category_id = ?", displayType, res.Category.ID).Take(&res.DisplayType).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Validation("Display type %q does not belong to category %q", displayType, category)
	}
	if err != nil {
		return nil, err
	}

	var materials []string
	if err := db.Model(&models.POPMaterial{}).Where("model_id = ?", res.Model.ID).
		Order("name asc").Pluck("name", &materials).Error; err != nil {
		return nil, err
	}
	res.Materials = lo.Uniq(materials)
	res.Model.Category = res.Category
	res.DisplayType.Category = res.Category
	return &res, nil
}

// Split validates the selected materials against the configured ones and
// returns the selection without duplicates plus the configured materials that
// were not selected, both in a stable order.
func (r *Resolution) Split(selected []string) (chosen, missing []string, err error) {
	chosen = lo.Uniq(lo.FilterMap(selected, func(s string, _ int) (string, bool) {
		s = strings.TrimSpace(s)
		return s, s != ""
	}))

	unknown := lo.Without(chosen, r.Materials...)
	if len(unknown) > 0 {
		return nil, nil, apperr.Validation("POP material %q is not configured for model %q",
			unknown[0], r.Model.Name)
	}

	missing = lo.Without(r.Materials, chosen...)
	if chosen == nil {
		chosen = []string{}
	}
	if missing == nil {
		missing = []string{}
	}
	return chosen, missing, nil
}
