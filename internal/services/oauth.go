package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-authgate/ssocenter/internal/config"
	"github.com/go-authgate/ssocenter/internal/core"
	"github.com/go-authgate/ssocenter/internal/metrics"
	"github.com/go-authgate/ssocenter/internal/models"
	"github.com/go-authgate/ssocenter/internal/store"
	"github.com/go-authgate/ssocenter/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	ResponseTypeCode = "code"
	TokenTypeBearer  = "Bearer"

	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeRefreshToken      = "refresh_token"
)

// TokenPair is the result of a successful code exchange or refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// OAuthOption customizes an OAuthService.
type OAuthOption func(*OAuthService)

// WithClock replaces time.Now as the source of issue and expiry times.
func WithClock(now func() time.Time) OAuthOption {
	return func(s *OAuthService) {
		if now != nil {
			s.now = now
		}
	}
}

// OAuthService implements the authorization code grant with rotating refresh
// tokens (RFC 6749 §4.1 and §6). Every code and refresh token is single use:
// consumption is a conditional update that exactly one caller can win.
type OAuthService struct {
	tokens  core.TokenStore
	clients core.ClientRegistry
	config  *config.Config
	logger  *zap.Logger
	metrics core.Recorder
	now     func() time.Time
}

func NewOAuthService(
	tokens core.TokenStore,
	clients core.ClientRegistry,
	cfg *config.Config,
	log *zap.Logger,
	m core.Recorder,
	opts ...OAuthOption,
) *OAuthService {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewNoopMetrics()
	}
	s := &OAuthService{
		tokens:  tokens,
		clients: clients,
		config:  cfg,
		logger:  log.Named("oauth"),
		metrics: m,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *OAuthService) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.DBQueryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.config.DBQueryTimeout)
}

// ValidateAuthorizeRequest checks an authorization request without issuing
// anything. The checks run in order: request shape, client, redirect URI.
func (s *OAuthService) ValidateAuthorizeRequest(
	ctx context.Context,
	clientID, redirectURI, responseType string,
) (*models.Client, error) {
	if responseType != ResponseTypeCode {
		return nil, fmt.Errorf("%w: response_type must be %q", ErrInvalidRequest, ResponseTypeCode)
	}
	if clientID == "" || redirectURI == "" {
		return nil, fmt.Errorf("%w: client_id and redirect_uri are required", ErrInvalidRequest)
	}

	client, err := s.lookupClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if !client.MatchesRedirectURI(redirectURI) {
		return nil, ErrInvalidRedirectURI
	}
	return client, nil
}

// Authorize issues a single-use authorization code for userID bound to the
// client and redirect URI. Nothing is written when validation fails.
func (s *OAuthService) Authorize(
	ctx context.Context,
	clientID, redirectURI, responseType, scope string,
	userID int64,
) (string, error) {
	if _, err := s.ValidateAuthorizeRequest(ctx, clientID, redirectURI, responseType); err != nil {
		return "", err
	}
	if userID <= 0 {
		return "", fmt.Errorf("%w: missing resource owner", ErrInvalidRequest)
	}
	if scope == "" {
		scope = s.config.DefaultScope
	}

	now := s.now()
	code, err := s.newToken(models.TokenKindAuthorizationCode, userID, clientID, scope, "",
		now, s.config.AuthCodeExpiration)
	if err != nil {
		return "", err
	}
	code.RedirectURI = redirectURI

	qctx, cancel := s.queryContext(ctx)
	defer cancel()
	if err := s.tokens.CreateToken(qctx, code); err != nil {
		s.logger.Error("failed to save authorization code",
			zap.String("client_id", clientID), zap.Error(err))
		return "", fmt.Errorf("%w: failed to save authorization code", ErrServerError)
	}

	s.metrics.RecordTokenIssued(string(models.TokenKindAuthorizationCode), GrantTypeAuthorizationCode)
	s.logger.Debug("authorization code issued",
		zap.String("client_id", clientID), zap.Int64("user_id", userID))
	return code.RawToken, nil
}

// ExchangeCode redeems an authorization code for a token pair.
func (s *OAuthService) ExchangeCode(
	ctx context.Context,
	code, clientID, clientSecret, redirectURI string,
) (*TokenPair, error) {
	if code == "" {
		s.metrics.RecordCodeExchange("invalid_request")
		return nil, fmt.Errorf("%w: code is required", ErrInvalidRequest)
	}
	if _, err := s.authenticateClient(ctx, clientID, clientSecret); err != nil {
		s.metrics.RecordCodeExchange("invalid_client")
		return nil, err
	}

	now := s.now()
	hash := util.SHA256Hex(code)
	record, err := s.lookupToken(ctx, hash)
	if err != nil {
		s.metrics.RecordCodeExchange("not_found")
		return nil, err
	}

	var reason string
	switch {
	case !record.IsAuthorizationCode():
		reason = "wrong_kind"
	case record.Revoked:
		reason = "already_used"
	case record.ExpiredAt(now):
		reason = "expired"
	case record.ClientID != clientID:
		reason = "client_mismatch"
	case record.RedirectURI != redirectURI:
		reason = "redirect_mismatch"
	}
	if reason != "" {
		s.metrics.RecordCodeExchange(reason)
		s.logger.Info("authorization code rejected",
			zap.String("client_id", clientID), zap.String("reason", reason))
		return nil, fmt.Errorf("%w: authorization code is invalid", ErrInvalidGrant)
	}

	pair, err := s.consumeAndIssue(ctx, record, hash, now)
	if err != nil {
		if errors.Is(err, ErrInvalidGrant) {
			s.metrics.RecordCodeExchange("already_used")
		} else {
			s.metrics.RecordCodeExchange("error")
		}
		return nil, err
	}

	s.metrics.RecordCodeExchange("success")
	s.metrics.RecordTokenRevoked(string(models.TokenKindAuthorizationCode), "exchanged")
	s.metrics.RecordTokenIssued(string(models.TokenKindAccess), GrantTypeAuthorizationCode)
	s.metrics.RecordTokenIssued(string(models.TokenKindRefresh), GrantTypeAuthorizationCode)
	s.logger.Info("authorization code exchanged",
		zap.String("client_id", clientID), zap.Int64("user_id", record.UserID))
	return pair, nil
}

// RefreshTokens rotates a refresh token: the presented token is consumed and
// a new pair with the same client, user and scope is issued. Presenting a
// consumed refresh token again fails with ErrInvalidGrant.
func (s *OAuthService) RefreshTokens(
	ctx context.Context,
	refreshToken, clientID, clientSecret string,
) (*TokenPair, error) {
	pair, err := s.refresh(ctx, refreshToken, clientID, clientSecret)
	s.metrics.RecordTokenRefresh(err == nil)
	return pair, err
}

func (s *OAuthService) refresh(
	ctx context.Context,
	refreshToken, clientID, clientSecret string,
) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: refresh_token is required", ErrInvalidRequest)
	}
	if _, err := s.authenticateClient(ctx, clientID, clientSecret); err != nil {
		return nil, err
	}

	now := s.now()
	hash := util.SHA256Hex(refreshToken)
	record, err := s.lookupToken(ctx, hash)
	if err != nil {
		return nil, err
	}
	if !record.IsRefreshToken() || !record.ActiveAt(now) || record.ClientID != clientID {
		return nil, fmt.Errorf("%w: refresh token is invalid", ErrInvalidGrant)
	}

	pair, err := s.consumeAndIssue(ctx, record, hash, now)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTokenRevoked(string(models.TokenKindRefresh), "rotated")
	s.metrics.RecordTokenIssued(string(models.TokenKindAccess), GrantTypeRefreshToken)
	s.metrics.RecordTokenIssued(string(models.TokenKindRefresh), GrantTypeRefreshToken)
	s.logger.Debug("refresh token rotated",
		zap.String("client_id", clientID), zap.Int64("user_id", record.UserID))
	return pair, nil
}

// ValidateAccessToken returns the owner of token if it is an unrevoked,
// unexpired access token.
func (s *OAuthService) ValidateAccessToken(ctx context.Context, token string) (int64, bool) {
	if token == "" {
		s.metrics.RecordTokenValidation("missing")
		return 0, false
	}

	record, err := s.lookupToken(ctx, util.SHA256Hex(token))
	if err != nil {
		if errors.Is(err, ErrServerError) {
			s.metrics.RecordTokenValidation("error")
		} else {
			s.metrics.RecordTokenValidation("not_found")
		}
		return 0, false
	}

	switch {
	case !record.IsAccessToken():
		s.metrics.RecordTokenValidation("wrong_kind")
		return 0, false
	case record.Revoked:
		s.metrics.RecordTokenValidation("revoked")
		return 0, false
	case record.ExpiredAt(s.now()):
		s.metrics.RecordTokenValidation("expired")
		return 0, false
	}

	s.metrics.RecordTokenValidation("valid")
	return record.UserID, true
}

// RevokeToken revokes a token of any kind. It reports false for unknown
// tokens. Revoking an already revoked token succeeds and leaves its
// revocation time unchanged.
func (s *OAuthService) RevokeToken(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	qctx, cancel := s.queryContext(ctx)
	defer cancel()
	found, err := s.tokens.RevokeToken(qctx, util.SHA256Hex(token), s.now())
	if err != nil {
		s.logger.Error("failed to revoke token", zap.Error(err))
		return false, fmt.Errorf("%w: failed to revoke token", ErrServerError)
	}
	if found {
		s.metrics.RecordTokenRevoked("any", "explicit")
	}
	return found, nil
}

// authenticateClient verifies client credentials. Every failure is reported
// as ErrInvalidClient so callers cannot probe which part was wrong.
func (s *OAuthService) authenticateClient(
	ctx context.Context,
	clientID, clientSecret string,
) (*models.Client, error) {
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("%w: client authentication failed", ErrInvalidClient)
	}
	client, err := s.lookupClient(ctx, clientID)
	if err != nil {
		return nil, err
	}

	ok, err := util.VerifySecret(client.ClientSecret, clientSecret)
	if err != nil {
		s.logger.Error("failed to verify client secret",
			zap.String("client_id", clientID), zap.Error(err))
		return nil, fmt.Errorf("%w: failed to verify client", ErrServerError)
	}
	if !ok {
		return nil, fmt.Errorf("%w: client authentication failed", ErrInvalidClient)
	}
	return client, nil
}

func (s *OAuthService) lookupClient(ctx context.Context, clientID string) (*models.Client, error) {
	qctx, cancel := s.queryContext(ctx)
	defer cancel()

	client, err := s.clients.GetClient(qctx, clientID)
	switch {
	case errors.Is(err, store.ErrRecordNotFound):
		return nil, fmt.Errorf("%w: unknown client", ErrInvalidClient)
	case err != nil:
		s.logger.Error("failed to load client", zap.String("client_id", clientID), zap.Error(err))
		return nil, fmt.Errorf("%w: failed to load client", ErrServerError)
	case !client.IsActive:
		return nil, fmt.Errorf("%w: client is not active", ErrInvalidClient)
	}
	return client, nil
}

func (s *OAuthService) lookupToken(ctx context.Context, hash string) (*models.Token, error) {
	qctx, cancel := s.queryContext(ctx)
	defer cancel()

	record, err := s.tokens.GetTokenByHash(qctx, hash)
	switch {
	case errors.Is(err, store.ErrRecordNotFound):
		return nil, fmt.Errorf("%w: token not found", ErrInvalidGrant)
	case err != nil:
		s.logger.Error("failed to load token", zap.Error(err))
		return nil, fmt.Errorf("%w: failed to load token", ErrServerError)
	}
	return record, nil
}

// consumeAndIssue revokes parent and stores a fresh pair in one transaction.
func (s *OAuthService) consumeAndIssue(
	ctx context.Context,
	parent *models.Token,
	hash string,
	now time.Time,
) (*TokenPair, error) {
	access, err := s.newToken(models.TokenKindAccess, parent.UserID, parent.ClientID,
		parent.Scope, parent.ID, now, s.config.AccessTokenExpiration)
	if err != nil {
		return nil, err
	}
	refresh, err := s.newToken(models.TokenKindRefresh, parent.UserID, parent.ClientID,
		parent.Scope, parent.ID, now, s.config.RefreshTokenExpiration)
	if err != nil {
		return nil, err
	}

	qctx, cancel := s.queryContext(ctx)
	defer cancel()
	err = s.tokens.ConsumeAndIssue(qctx, hash, parent.Kind, now, access, refresh)
	switch {
	case errors.Is(err, store.ErrTokenAlreadyRevoked):
		s.logger.Info("token already consumed",
			zap.String("kind", string(parent.Kind)), zap.String("client_id", parent.ClientID))
		return nil, fmt.Errorf("%w: token already used", ErrInvalidGrant)
	case err != nil:
		s.logger.Error("failed to issue tokens",
			zap.String("kind", string(parent.Kind)), zap.Error(err))
		return nil, fmt.Errorf("%w: failed to issue tokens", ErrServerError)
	}

	return &TokenPair{
		AccessToken:  access.RawToken,
		RefreshToken: refresh.RawToken,
		TokenType:    TokenTypeBearer,
		ExpiresIn:    int64(s.config.AccessTokenExpiration / time.Second),
	}, nil
}

func (s *OAuthService) newToken(
	kind models.TokenKind,
	userID int64,
	clientID, scope, parentID string,
	now time.Time,
	ttl time.Duration,
) (*models.Token, error) {
	raw, err := util.GenerateToken(util.TokenEntropyBytes)
	if err != nil {
		s.logger.Error("failed to generate token", zap.Error(err))
		return nil, fmt.Errorf("%w: failed to generate token", ErrServerError)
	}
	return &models.Token{
		ID:            uuid.New().String(),
		TokenHash:     util.SHA256Hex(raw),
		RawToken:      raw,
		Kind:          kind,
		UserID:        userID,
		ClientID:      clientID,
		Scope:         scope,
		ParentTokenID: parentID,
		IssuedAt:      now,
		ExpiresAt:     now.Add(ttl),
	}, nil
}
