package models

import "time"

type User struct {
	ID           uint   `gorm:"primaryKey"`
	Username     string `gorm:"size:100;uniqueIndex;not null"`
	PasswordHash string `gorm:"size:255;not null"`
	EmployeeName string `gorm:"size:100"`
	EmployeeCode string `gorm:"size:50;uniqueIndex;not null"`
	IsAdmin      bool   `gorm:"not null;default:false"`
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Branches []UserBranch `gorm:"constraint:OnDelete:CASCADE"`
}

// DisplayName falls back to the login name when no employee name was recorded.
func (u *User) DisplayName() string {
	if u.EmployeeName != "" {
		return u.EmployeeName
	}
	return u.Username
}
