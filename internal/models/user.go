package models

import (
	"time"
)

type User struct {
	ID               int64  `gorm:"primaryKey;autoIncrement"`
	Username         string `gorm:"uniqueIndex;not null"`
	Email            string `gorm:"uniqueIndex;not null"`
	PasswordHash     string `gorm:"not null"` // bcrypt
	FirstName        string
	LastName         string
	IsActive         bool `gorm:"not null;default:true"`
	IsEmailConfirmed bool `gorm:"not null;default:false"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Role struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Name      string `gorm:"uniqueIndex;not null"`
	IsActive  bool   `gorm:"not null;default:true"`
	CreatedAt time.Time
}

// UserRole links a user to a role. Inactive links grant nothing.
type UserRole struct {
	ID        int64 `gorm:"primaryKey;autoIncrement"`
	UserID    int64 `gorm:"not null;uniqueIndex:idx_user_role"`
	RoleID    int64 `gorm:"not null;uniqueIndex:idx_user_role"`
	IsActive  bool  `gorm:"not null;default:true"`
	CreatedAt time.Time
}
