package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is an account that can upload files and build analyses.
type User struct {
	ID           string `gorm:"primaryKey;size:36"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Email        string `gorm:"size:255;not null;uniqueIndex"`
	Name         string `gorm:"size:255;not null"`
	PasswordHash []byte `gorm:"not null"`
	RoleID       *uint  `gorm:"index"`
	Role         Role   `gorm:"foreignKey:RoleID;references:ID"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// RoleName returns the loaded role name, defaulting to "user".
func (u User) RoleName() string {
	if u.Role.Name == "" {
		return "user"
	}
	return u.Role.Name
}
