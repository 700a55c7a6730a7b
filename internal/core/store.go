package core

import (
	"context"
	"time"

	"github.com/go-authgate/ssocenter/internal/models"
)

// TokenStore is the durable record of every issued token.
type TokenStore interface {
	CreateToken(ctx context.Context, token *models.Token) error
	GetTokenByHash(ctx context.Context, hash string) (*models.Token, error)
	// ConsumeAndIssue revokes the active token identified by hash and kind and
	// inserts issued in the same transaction. It fails with
	// store.ErrTokenAlreadyRevoked when another caller consumed it first.
	ConsumeAndIssue(
		ctx context.Context,
		hash string,
		kind models.TokenKind,
		now time.Time,
		issued ...*models.Token,
	) error
	// RevokeToken marks the token revoked. found is false for unknown tokens.
	RevokeToken(ctx context.Context, hash string, now time.Time) (found bool, err error)
}

// ClientRegistry resolves client_id to the registered client application.
type ClientRegistry interface {
	GetClient(ctx context.Context, clientID string) (*models.Client, error)
}

// UserDirectory resolves users and their active role names.
type UserDirectory interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserRoles(ctx context.Context, userID int64) ([]string, error)
}
