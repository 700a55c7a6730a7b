package models

import (
	"time"
)

// TokenKind distinguishes the three credentials the engine issues.
type TokenKind string

const (
	TokenKindAuthorizationCode TokenKind = "authorization_code"
	TokenKindAccess            TokenKind = "access"
	TokenKindRefresh           TokenKind = "refresh"
)

// Token is the durable record of an issued credential. The plaintext value is
// handed to the client once and only its SHA-256 digest is persisted.
// Rows are never deleted; Revoked only ever moves from false to true.
type Token struct {
	ID            string    `gorm:"primaryKey"`
	TokenHash     string    `gorm:"uniqueIndex;not null"`
	RawToken      string    `gorm:"-"` // In-memory only; never persisted to DB
	Kind          TokenKind `gorm:"not null;index"`
	UserID        int64     `gorm:"not null;index"`
	ClientID      string    `gorm:"not null;index"`
	Scope         string    `gorm:"not null"`
	RedirectURI   string    // authorization codes only
	ParentTokenID string    `gorm:"index"` // code or refresh token this row was minted from
	IssuedAt      time.Time `gorm:"not null"`
	ExpiresAt     time.Time `gorm:"not null;index"`
	Revoked       bool      `gorm:"not null;default:false;index"`
	RevokedAt     *time.Time
}

// ExpiredAt reports whether the token is no longer valid at now.
// A token is valid strictly before ExpiresAt.
func (t *Token) ExpiredAt(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// ActiveAt reports whether the token is unrevoked and unexpired at now.
func (t *Token) ActiveAt(now time.Time) bool {
	return !t.Revoked && !t.ExpiredAt(now)
}

func (t *Token) IsAuthorizationCode() bool {
	return t.Kind == TokenKindAuthorizationCode
}

func (t *Token) IsAccessToken() bool {
	return t.Kind == TokenKindAccess
}

func (t *Token) IsRefreshToken() bool {
	return t.Kind == TokenKindRefresh
}
