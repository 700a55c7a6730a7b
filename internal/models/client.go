package models

import (
	"time"
)

// Client is a registered OAuth client application.
type Client struct {
	ID                int64  `gorm:"primaryKey;autoIncrement"`
	ClientID          string `gorm:"uniqueIndex;not null"`
	ClientSecret      string `gorm:"not null"` // bcrypt hashed secret
	ClientName        string `gorm:"not null"`
	RedirectURI       string `gorm:"not null"`
	LogoutRedirectURI string
	IsActive          bool `gorm:"not null;default:true"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// MatchesRedirectURI reports whether uri is exactly the registered redirect URI.
func (c *Client) MatchesRedirectURI(uri string) bool {
	return uri != "" && c.RedirectURI == uri
}
