package handlers

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/go-authgate/ssocenter/internal/middleware"
	"github.com/go-authgate/ssocenter/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// OAuthHandler serves the authorization server endpoints.
type OAuthHandler struct {
	oauth  *services.OAuthService
	users  *services.UserService
	logger *zap.Logger
}

func NewOAuthHandler(oauth *services.OAuthService, users *services.UserService, log *zap.Logger) *OAuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &OAuthHandler{
		oauth:  oauth,
		users:  users,
		logger: log.Named("oauth_handler"),
	}
}

// Authorize handles GET /authorize (RFC 6749 §4.1.1). The request is
// validated before the user is asked to sign in, so a bad client never gets
// a login page.
func (h *OAuthHandler) Authorize(c *gin.Context) {
	clientID := c.Query("client_id")
	redirectURI := c.Query("redirect_uri")
	responseType := c.Query("response_type")
	scope := c.Query("scope")
	state := c.Query("state")
	ctx := c.Request.Context()

	if _, err := h.oauth.ValidateAuthorizeRequest(ctx, clientID, redirectURI, responseType); err != nil {
		respondOAuthError(c, err)
		return
	}

	claims, ok := middleware.GetClaims(c)
	if !ok {
		c.Redirect(http.StatusFound, middleware.LoginRedirectURL(c.Request))
		return
	}

	code, err := h.oauth.Authorize(ctx, clientID, redirectURI, responseType, scope, claims.UserID)
	if err != nil {
		respondOAuthError(c, err)
		return
	}

	target, err := url.Parse(redirectURI)
	if err != nil {
		respondOAuthError(c, services.ErrInvalidRedirectURI)
		return
	}
	q := target.Query()
	q.Set("code", code)
	if state != "" {
		q.Set("state", state)
	}
	target.RawQuery = q.Encode()

	c.Redirect(http.StatusFound, target.String())
}

// Token handles POST /token for the authorization_code and refresh_token
// grants. Client credentials are read from HTTP Basic auth when present,
// otherwise from the form body (RFC 6749 §2.3.1).
func (h *OAuthHandler) Token(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")

	clientID, clientSecret, viaBasic := clientCredentials(c)

	var (
		pair *services.TokenPair
		err  error
	)
	switch grantType := c.PostForm("grant_type"); grantType {
	case services.GrantTypeAuthorizationCode:
		code := c.PostForm("code")
		redirectURI := c.PostForm("redirect_uri")
		if code == "" || redirectURI == "" || clientID == "" || clientSecret == "" {
			respondInvalidRequest(c, "code, redirect_uri, client_id and client_secret are required")
			return
		}
		pair, err = h.oauth.ExchangeCode(c.Request.Context(), code, clientID, clientSecret, redirectURI)

	case services.GrantTypeRefreshToken:
		refreshToken := c.PostForm("refresh_token")
		if refreshToken == "" || clientID == "" || clientSecret == "" {
			respondInvalidRequest(c, "refresh_token, client_id and client_secret are required")
			return
		}
		pair, err = h.oauth.RefreshTokens(c.Request.Context(), refreshToken, clientID, clientSecret)

	case "":
		respondInvalidRequest(c, "grant_type is required")
		return

	default:
		respondOAuthError(c, services.ErrUnsupportedGrantType)
		return
	}

	if err != nil {
		respondTokenError(c, err, viaBasic)
		return
	}
	c.JSON(http.StatusOK, pair)
}

// UserInfo handles GET /userinfo with a Bearer access token.
func (h *OAuthHandler) UserInfo(c *gin.Context) {
	token, ok := middleware.BearerToken(c)
	if !ok {
		respondInvalidToken(c, "access token required")
		return
	}

	userID, valid := h.oauth.ValidateAccessToken(c.Request.Context(), token)
	if !valid {
		respondInvalidToken(c, "access token is invalid or expired")
		return
	}

	info, err := h.users.GetUserInfo(c.Request.Context(), userID)
	switch {
	case errors.Is(err, services.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user_not_found"})
		return
	case err != nil:
		respondOAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, info)
}

// Revoke handles POST /revoke (RFC 7009). Unknown tokens still get 200 so
// the endpoint cannot be used to probe for valid tokens.
func (h *OAuthHandler) Revoke(c *gin.Context) {
	token := c.PostForm("token")
	if token == "" {
		respondInvalidRequest(c, "token parameter is required")
		return
	}

	if _, err := h.oauth.RevokeToken(c.Request.Context(), token); err != nil {
		h.logger.Warn("token revocation failed", zap.Error(err))
	}
	c.Status(http.StatusOK)
}

func respondInvalidToken(c *gin.Context, description string) {
	c.Header("WWW-Authenticate", `Bearer error="invalid_token"`)
	c.JSON(http.StatusUnauthorized, gin.H{
		"error":             "invalid_token",
		"error_description": description,
	})
}

// clientCredentials prefers HTTP Basic auth and reports whether it was used.
// Basic credentials are form-urlencoded before base64 encoding
// (RFC 6749 §2.3.1).
func clientCredentials(c *gin.Context) (string, string, bool) {
	if id, secret, ok := c.Request.BasicAuth(); ok {
		if unescaped, err := url.QueryUnescape(id); err == nil {
			id = unescaped
		}
		if unescaped, err := url.QueryUnescape(secret); err == nil {
			secret = unescaped
		}
		return id, secret, true
	}
	return c.PostForm("client_id"), c.PostForm("client_secret"), false
}
