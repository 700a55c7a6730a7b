package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-authgate/ssocenter/internal/mocks"
	"github.com/go-authgate/ssocenter/internal/revocation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestSessionTokenID(t *testing.T) {
	assert.Equal(t, "42:abc", SessionTokenID(42, "abc"))
}

func TestSessionValidator_Validate(t *testing.T) {
	ctrl := gomock.NewController(t)
	checker := mocks.NewMockRevocationChecker(ctrl)
	v := NewSessionValidator(checker, time.Hour)
	ctx := context.Background()

	assert.ErrorIs(t, v.Validate(ctx, 0, "s1"), ErrSessionClaimsMissing)
	assert.ErrorIs(t, v.Validate(ctx, 42, ""), ErrSessionClaimsMissing)

	checker.EXPECT().IsRevoked(gomock.Any(), "42:s1").Return(true)
	assert.ErrorIs(t, v.Validate(ctx, 42, "s1"), ErrSessionRevoked)

	checker.EXPECT().IsRevoked(gomock.Any(), "42:s2").Return(false)
	assert.NoError(t, v.Validate(ctx, 42, "s2"))
}

func TestSessionValidator_ValidateClaims(t *testing.T) {
	ctrl := gomock.NewController(t)
	checker := mocks.NewMockRevocationChecker(ctrl)
	clock := newTestClock()
	v := NewSessionValidator(checker, time.Hour, WithValidatorClock(clock.Now))
	ctx := context.Background()
	issued := clock.Now()

	tests := []struct {
		name    string
		claims  SessionClaims
		advance time.Duration
		revoked bool
		wantErr error
	}{
		{"fresh", SessionClaims{42, "s1", issued}, 0, false, nil},
		{"just before max age", SessionClaims{42, "s1", issued}, time.Hour - time.Second, false, nil},
		{"at max age", SessionClaims{42, "s1", issued}, time.Hour, false, ErrSessionExpired},
		{"long expired", SessionClaims{42, "s1", issued}, 30 * 24 * time.Hour, false, ErrSessionExpired},
		{"no issue time", SessionClaims{UserID: 42, SessionID: "s1"}, 0, false, ErrSessionExpired},
		{"missing session id", SessionClaims{UserID: 42, IssuedAt: issued}, 0, false, ErrSessionClaimsMissing},
		{"revoked", SessionClaims{42, "s1", issued}, 0, true, ErrSessionRevoked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock.Set(issued.Add(tt.advance))
			if tt.wantErr == nil || errors.Is(tt.wantErr, ErrSessionRevoked) {
				checker.EXPECT().IsRevoked(gomock.Any(), "42:s1").Return(tt.revoked)
			}

			err := v.ValidateClaims(ctx, tt.claims)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestSessionValidator_NonPositiveMaxAgeRejects(t *testing.T) {
	ctrl := gomock.NewController(t)
	checker := mocks.NewMockRevocationChecker(ctrl)
	v := NewSessionValidator(checker, 0)

	err := v.ValidateClaims(context.Background(), SessionClaims{42, "s1", time.Now()})
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestSessionService_LoginLogout(t *testing.T) {
	s := setupTestStore(t)
	clock := newTestClock()
	cache := revocation.New(context.Background(), nil, revocation.Options{Clock: clock.Now})
	cfg := newTestConfig()
	users := NewUserService(s, cfg, nil)
	sessions := NewSessionService(users, cache, cfg, nil, nil, WithSessionClock(clock.Now))
	validator := NewSessionValidator(cache, cfg.SessionLifetime(), WithValidatorClock(clock.Now))
	ctx := context.Background()
	u := makeTestUser(t, s, "pw")

	_, _, err := sessions.Login(ctx, u.Username, "bad")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	user, claims, err := sessions.Login(ctx, u.Username, "pw")
	require.NoError(t, err)
	assert.Equal(t, u.ID, user.ID)
	assert.Equal(t, u.ID, claims.UserID)
	assert.NotEmpty(t, claims.SessionID)
	assert.Equal(t, clock.Now(), claims.IssuedAt)
	require.NoError(t, validator.Validate(ctx, claims.UserID, claims.SessionID))

	_, other, err := sessions.Login(ctx, u.Username, "pw")
	require.NoError(t, err)
	assert.NotEqual(t, claims.SessionID, other.SessionID)

	sessions.Logout(ctx, claims)
	assert.ErrorIs(t, validator.Validate(ctx, claims.UserID, claims.SessionID), ErrSessionRevoked)
	assert.NoError(t, validator.Validate(ctx, other.UserID, other.SessionID),
		"logging out one session leaves the others valid")

	// The blacklist entry lives until the session itself would have expired.
	clock.Advance(cfg.SessionLifetime() - time.Second)
	assert.ErrorIs(t, validator.Validate(ctx, claims.UserID, claims.SessionID), ErrSessionRevoked)
	clock.Advance(time.Second)
	assert.NoError(t, validator.Validate(ctx, claims.UserID, claims.SessionID))
}

func TestSessionService_LogoutIgnoresIncompleteClaims(t *testing.T) {
	ctrl := gomock.NewController(t)
	revoker := mocks.NewMockRevoker(ctrl)
	// No Add call is expected.
	sessions := NewSessionService(nil, revoker, newTestConfig(), nil, nil)

	sessions.Logout(context.Background(), SessionClaims{UserID: 42})
	sessions.Logout(context.Background(), SessionClaims{SessionID: "s1"})
}

func TestSessionService_LogoutExpiry(t *testing.T) {
	ctrl := gomock.NewController(t)
	revoker := mocks.NewMockRevoker(ctrl)
	cfg := newTestConfig()
	sessions := NewSessionService(nil, revoker, cfg, nil, nil)
	issued := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

	revoker.EXPECT().Add(gomock.Any(), "42:s1", issued.Add(time.Hour))

	sessions.Logout(context.Background(), SessionClaims{UserID: 42, SessionID: "s1", IssuedAt: issued})
}
