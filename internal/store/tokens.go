package store

import (
	"context"
	"errors"
	"time"

	"github.com/go-authgate/ssocenter/internal/core"
	"github.com/go-authgate/ssocenter/internal/models"

	"gorm.io/gorm"
)

var _ core.TokenStore = (*Store)(nil)

func (s *Store) CreateToken(ctx context.Context, token *models.Token) error {
	return s.db.WithContext(ctx).Create(token).Error
}

func (s *Store) GetTokenByHash(ctx context.Context, hash string) (*models.Token, error) {
	var token models.Token
	if err := s.db.WithContext(ctx).Where("token_hash = ?", hash).First(&token).Error; err != nil {
		return nil, translate(err)
	}
	return &token, nil
}

// ConsumeAndIssue revokes the active token (hash, kind) and inserts issued
// in one transaction. The revoke is a single conditional UPDATE, so of any
// number of concurrent callers exactly one sees RowsAffected == 1; the rest
// get ErrTokenAlreadyRevoked. A failed insert rolls the revoke back.
func (s *Store) ConsumeAndIssue(
	ctx context.Context,
	hash string,
	kind models.TokenKind,
	now time.Time,
	issued ...*models.Token,
) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := revokeIfActive(tx.Where("kind = ?", kind), hash, now); err != nil {
			return err
		}
		for _, token := range issued {
			if err := tx.Create(token).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// RevokeToken marks the token revoked. Revoking an already revoked token is a
// no-op that still reports found; revoked_at keeps its first value.
func (s *Store) RevokeToken(ctx context.Context, hash string, now time.Time) (bool, error) {
	db := s.db.WithContext(ctx)

	err := revokeIfActive(db, hash, now)
	switch {
	case err == nil:
		return true, nil
	case !errors.Is(err, ErrTokenAlreadyRevoked):
		return false, err
	}

	var count int64
	if err := db.Model(&models.Token{}).Where("token_hash = ?", hash).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func revokeIfActive(db *gorm.DB, hash string, now time.Time) error {
	result := db.Model(&models.Token{}).
		Where("token_hash = ? AND revoked = ?", hash, false).
		Updates(map[string]any{"revoked": true, "revoked_at": now})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTokenAlreadyRevoked
	}
	return nil
}
