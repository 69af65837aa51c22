package models

import "time"

// Branch is a store, identified by its shop code.
type Branch struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"size:150;not null"`
	Code        string `gorm:"size:50;not null;uniqueIndex"`
	CreatedByID *uint
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserBranch links a user to a branch name they work at.
type UserBranch struct {
	ID         uint   `gorm:"primaryKey"`
	UserID     uint   `gorm:"not null;uniqueIndex:idx_user_branch"`
	BranchName string `gorm:"size:150;not null;uniqueIndex:idx_user_branch"`
	CreatedAt  time.Time
}
