package services

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-authgate/ssocenter/internal/config"
	"github.com/go-authgate/ssocenter/internal/core"
	"github.com/go-authgate/ssocenter/internal/metrics"
	"github.com/go-authgate/ssocenter/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrSessionClaimsMissing = errors.New("session claims missing")
	ErrSessionRevoked       = errors.New("session revoked")
	ErrSessionExpired       = errors.New("session expired")
)

// SessionClaims are the values kept in the signed session cookie.
type SessionClaims struct {
	UserID    int64     `json:"user_id"`
	SessionID string    `json:"session_id"`
	IssuedAt  time.Time `json:"issued_at"`
}

// Complete reports whether both identifying claims are present.
func (c SessionClaims) Complete() bool {
	return c.UserID > 0 && c.SessionID != ""
}

// SessionTokenID is the revocation key of a session: "user_id:session_id".
func SessionTokenID(userID int64, sessionID string) string {
	return strconv.FormatInt(userID, 10) + ":" + sessionID
}

// SessionValidator rejects sessions that have been logged out or have
// outlived their lifetime.
type SessionValidator struct {
	checker core.RevocationChecker
	maxAge  time.Duration
	now     func() time.Time
}

// ValidatorOption customizes a SessionValidator.
type ValidatorOption func(*SessionValidator)

func WithValidatorClock(now func() time.Time) ValidatorOption {
	return func(v *SessionValidator) {
		if now != nil {
			v.now = now
		}
	}
}

// NewSessionValidator returns a validator that accepts sessions for maxAge
// after they were issued. A non-positive maxAge rejects every session.
func NewSessionValidator(
	checker core.RevocationChecker,
	maxAge time.Duration,
	opts ...ValidatorOption,
) *SessionValidator {
	v := &SessionValidator{
		checker: checker,
		maxAge:  maxAge,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate checks only the revocation list.
func (v *SessionValidator) Validate(ctx context.Context, userID int64, sessionID string) error {
	if userID <= 0 || sessionID == "" {
		return ErrSessionClaimsMissing
	}
	if v.checker.IsRevoked(ctx, SessionTokenID(userID, sessionID)) {
		return ErrSessionRevoked
	}
	return nil
}

// ValidateClaims checks the session age before the revocation list. The
// cookie's own expiry is not trusted: claims without an issue time, or
// issued maxAge or longer ago, are expired.
func (v *SessionValidator) ValidateClaims(ctx context.Context, claims SessionClaims) error {
	if !claims.Complete() {
		return ErrSessionClaimsMissing
	}
	if claims.IssuedAt.IsZero() || !v.now().Before(claims.IssuedAt.Add(v.maxAge)) {
		return ErrSessionExpired
	}
	return v.Validate(ctx, claims.UserID, claims.SessionID)
}

// SessionOption customizes a SessionService.
type SessionOption func(*SessionService)

func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *SessionService) {
		if now != nil {
			s.now = now
		}
	}
}

// SessionService starts sessions on login and revokes them on logout.
type SessionService struct {
	users   *UserService
	revoker core.Revoker
	config  *config.Config
	logger  *zap.Logger
	metrics core.Recorder
	now     func() time.Time
}

func NewSessionService(
	users *UserService,
	revoker core.Revoker,
	cfg *config.Config,
	log *zap.Logger,
	m core.Recorder,
	opts ...SessionOption,
) *SessionService {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewNoopMetrics()
	}
	s := &SessionService{
		users:   users,
		revoker: revoker,
		config:  cfg,
		logger:  log.Named("session"),
		metrics: m,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login authenticates the user and returns claims for a new session.
func (s *SessionService) Login(
	ctx context.Context,
	username, password string,
) (*models.User, SessionClaims, error) {
	user, err := s.users.Authenticate(ctx, username, password)
	if err != nil {
		s.metrics.RecordLogin(false)
		if errors.Is(err, ErrInvalidCredentials) {
			s.logger.Info("login failed", zap.String("username", username))
		}
		return nil, SessionClaims{}, err
	}

	claims := SessionClaims{
		UserID:    user.ID,
		SessionID: uuid.New().String(),
		IssuedAt:  s.now().Truncate(time.Second),
	}
	s.metrics.RecordLogin(true)
	s.logger.Info("user logged in",
		zap.Int64("user_id", user.ID), zap.String("session_id", claims.SessionID))
	return user, claims, nil
}

// Logout blacklists the session until the moment its cookie would have
// expired anyway. Incomplete claims are ignored.
func (s *SessionService) Logout(ctx context.Context, claims SessionClaims) {
	if !claims.Complete() {
		return
	}

	issuedAt := claims.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = s.now()
	}
	s.revoker.Add(ctx, SessionTokenID(claims.UserID, claims.SessionID),
		issuedAt.Add(s.config.SessionLifetime()))

	s.metrics.RecordLogout()
	s.logger.Info("user logged out",
		zap.Int64("user_id", claims.UserID), zap.String("session_id", claims.SessionID))
}
