package models

import "time"

type Category struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:100;not null;uniqueIndex"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProductModel is a product model (e.g. "Q8F") that belongs to one category.
type ProductModel struct {
	ID         uint     `gorm:"primaryKey"`
	Name       string   `gorm:"size:100;not null;uniqueIndex:idx_model_category_name"`
	CategoryID uint     `gorm:"not null;index;uniqueIndex:idx_model_category_name"`
	Category   Category `gorm:"constraint:OnDelete:RESTRICT"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (ProductModel) TableName() string { return "models" }

type DisplayType struct {
	ID         uint     `gorm:"primaryKey"`
	Name       string   `gorm:"size:100;not null;uniqueIndex:idx_display_type_category_name"`
	CategoryID uint     `gorm:"not null;index;uniqueIndex:idx_display_type_category_name"`
	Category   Category `gorm:"constraint:OnDelete:RESTRICT"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// POPMaterial is a point-of-purchase material expected next to a model.
type POPMaterial struct {
	ID        uint         `gorm:"primaryKey"`
	Name      string       `gorm:"size:150;not null;uniqueIndex:idx_pop_material_model_name"`
	ModelID   uint         `gorm:"not null;index;uniqueIndex:idx_pop_material_model_name"`
	Model     ProductModel `gorm:"foreignKey:ModelID;constraint:OnDelete:RESTRICT"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (POPMaterial) TableName() string { return "pop_materials" }
