package store

import (
	"context"
	"errors"

	"github.com/go-authgate/ssocenter/internal/core"
	"github.com/go-authgate/ssocenter/internal/models"

	"gorm.io/gorm"
)

var _ core.UserDirectory = (*Store)(nil)

func (s *Store) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// CreateUser inserts a user, returning ErrUsernameConflict if the username is taken.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	db := s.db.WithContext(ctx)

	var count int64
	if err := db.Model(&models.User{}).Where("username = ?", user.Username).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrUsernameConflict
	}
	return db.Create(user).Error
}

// GetUserRoles returns the names of the user's active roles, sorted by name.
func (s *Store) GetUserRoles(ctx context.Context, userID int64) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).
		Model(&models.Role{}).
		Joins("JOIN user_roles ON user_roles.role_id = roles.id").
		Where("user_roles.user_id = ? AND user_roles.is_active = ? AND roles.is_active = ?",
			userID, true, true).
		Order("roles.name").
		Pluck("roles.name", &names).Error
	if err != nil {
		return nil, err
	}
	return names, nil
}

// AssignRole grants the named role to the user, creating the role if needed.
func (s *Store) AssignRole(ctx context.Context, userID int64, roleName string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var role models.Role
		err := tx.Where("name = ?", roleName).First(&role).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			role = models.Role{Name: roleName, IsActive: true}
			err = tx.Create(&role).Error
		}
		if err != nil {
			return err
		}
		return tx.Where(models.UserRole{UserID: userID, RoleID: role.ID}).
			Attrs(models.UserRole{IsActive: true}).
			FirstOrCreate(&models.UserRole{}).Error
	})
}
