package models

import (
	"time"

	"gorm.io/datatypes"
)

// DataEntry is one submitted checklist row. Taxonomy values are copied as text
// so later taxonomy edits never change what was recorded.
type DataEntry struct {
	ID                uint                        `gorm:"primaryKey"`
	UserID            *uint                       `gorm:"index"`
	User              *User                       `gorm:"constraint:OnDelete:SET NULL"`
	EmployeeName      string                      `gorm:"size:100;not null"`
	EmployeeCode      string                      `gorm:"size:50;not null"`
	BranchName        string                      `gorm:"size:150;not null;index"`
	ShopCode          string                      `gorm:"size:50"`
	Category          string                      `gorm:"size:100;not null"`
	Model             string                      `gorm:"size:100;not null;index"`
	DisplayType       string                      `gorm:"size:100;not null"`
	SelectedMaterials datatypes.JSONSlice[string] `gorm:"not null"`
	MissingMaterials  datatypes.JSONSlice[string] `gorm:"not null"`
	PhotoFailures     int                         `gorm:"not null;default:0"`
	CreatedAt         time.Time                   `gorm:"index"`

	Photos []EntryPhoto `gorm:"foreignKey:EntryID;constraint:OnDelete:CASCADE"`
}

type PhotoBackend string

const (
	PhotoBackendCloudinary PhotoBackend = "cloudinary"
	PhotoBackendLocal      PhotoBackend = "local"
)

type EntryPhoto struct {
	ID       uint         `gorm:"primaryKey"`
	EntryID  uint         `gorm:"not null;index"`
	Position int          `gorm:"not null"`
	URL      string       `gorm:"size:500;not null"`
	PublicID string       `gorm:"size:255"`
	Backend  PhotoBackend `gorm:"size:20;not null"`
}
