package store

import (
	"context"

	"github.com/go-authgate/ssocenter/internal/config"
	"github.com/go-authgate/ssocenter/internal/models"
	"github.com/go-authgate/ssocenter/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (s *Store) seedData(ctx context.Context, cfg *config.Config) error {
	db := s.db.WithContext(ctx)

	var userCount int64
	if err := db.Model(&models.User{}).Count(&userCount).Error; err != nil {
		return err
	}
	if userCount == 0 {
		password := cfg.DefaultAdminPassword
		generated := password == ""
		if generated {
			var err error
			if password, err = util.GenerateToken(util.TokenEntropyBytes); err != nil {
				return err
			}
			password = password[:16]
		}
		hash, err := util.HashSecret(password, 0)
		if err != nil {
			return err
		}
		admin := &models.User{
			Username:         "admin",
			Email:            "admin@localhost",
			PasswordHash:     hash,
			FirstName:        "System",
			LastName:         "Administrator",
			IsActive:         true,
			IsEmailConfirmed: true,
		}
		if err := db.Create(admin).Error; err != nil {
			return err
		}
		if err := s.AssignRole(ctx, admin.ID, "admin"); err != nil {
			return err
		}
		if generated {
			s.logger.Info("created default user", zap.String("username", "admin"),
				zap.String("password", password))
		} else {
			s.logger.Info("created default user", zap.String("username", "admin"))
		}
	}

	var clientCount int64
	if err := db.Model(&models.Client{}).Count(&clientCount).Error; err != nil {
		return err
	}
	if clientCount == 0 {
		clientSecret := uuid.New().String()
		secretHash, err := util.HashSecret(clientSecret, 0)
		if err != nil {
			return err
		}
		client := &models.Client{
			ClientID:          uuid.New().String(),
			ClientSecret:      secretHash,
			ClientName:        "Default Application",
			RedirectURI:       cfg.BaseURL + "/callback",
			LogoutRedirectURI: cfg.BaseURL + "/",
			IsActive:          true,
		}
		if err := db.Create(client).Error; err != nil {
			return err
		}
		s.logger.Info("created default OAuth client",
			zap.String("client_id", client.ClientID),
			zap.String("client_secret", clientSecret),
			zap.String("redirect_uri", client.RedirectURI))
	}

	return nil
}
