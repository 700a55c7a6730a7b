package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-authgate/ssocenter/internal/core"
	"github.com/go-authgate/ssocenter/internal/metrics"
	"github.com/go-authgate/ssocenter/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Cookie session keys.
const (
	SessionUserID   = "user_id"
	SessionID       = "session_id"
	SessionIssuedAt = "issued_at"
)

const contextClaimsKey = "session_claims"

// SessionChecker is implemented by services.SessionValidator.
type SessionChecker interface {
	ValidateClaims(ctx context.Context, claims services.SessionClaims) error
}

// SessionPrincipal resolves the signed-in user from the cookie session on
// every request. A session that fails validation is cleared and the request
// continues unauthenticated.
func SessionPrincipal(checker SessionChecker, m core.Recorder, log *zap.Logger) gin.HandlerFunc {
	if m == nil {
		m = metrics.NewNoopMetrics()
	}
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("session")

	return func(c *gin.Context) {
		session := sessions.Default(c)
		claims, present := readClaims(session)
		if !present {
			c.Next()
			return
		}

		if err := checker.ValidateClaims(c.Request.Context(), claims); err != nil {
			reason := "invalid"
			switch {
			case errors.Is(err, services.ErrSessionRevoked):
				reason = "revoked"
			case errors.Is(err, services.ErrSessionExpired):
				reason = "expired"
			case errors.Is(err, services.ErrSessionClaimsMissing):
				reason = "claims_missing"
			}
			m.RecordSessionRejected(reason)
			log.Info("session rejected",
				zap.Int64("user_id", claims.UserID),
				zap.String("session_id", claims.SessionID),
				zap.String("reason", reason))
			if err := ClearSession(session); err != nil {
				log.Warn("failed to clear rejected session", zap.Error(err))
			}
			c.Next()
			return
		}

		c.Set(contextClaimsKey, claims)
		c.Next()
	}
}

// RequireAuth redirects unauthenticated requests to the login page, carrying
// the original request URI as return_url.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := GetClaims(c); !ok {
			c.Redirect(http.StatusFound, LoginRedirectURL(c.Request))
			c.Abort()
			return
		}
		c.Next()
	}
}

// LoginRedirectURL is the login page URL that returns to r afterwards.
func LoginRedirectURL(r *http.Request) string {
	return "/login?return_url=" + url.QueryEscape(r.URL.RequestURI())
}

// GetClaims returns the validated session claims of the current request.
func GetClaims(c *gin.Context) (services.SessionClaims, bool) {
	v, ok := c.Get(contextClaimsKey)
	if !ok {
		return services.SessionClaims{}, false
	}
	claims, ok := v.(services.SessionClaims)
	return claims, ok
}

// SaveClaims starts a new session holding claims.
func SaveClaims(session sessions.Session, claims services.SessionClaims) error {
	session.Clear()
	session.Set(SessionUserID, claims.UserID)
	session.Set(SessionID, claims.SessionID)
	session.Set(SessionIssuedAt, claims.IssuedAt.Unix())
	return session.Save()
}

// ClearSession drops every value. The cookie itself is kept so later
// handlers in the same request can still write to it.
func ClearSession(session sessions.Session) error {
	session.Clear()
	return session.Save()
}

// readClaims reports present when any identifying claim is set, so a
// half-populated session is still passed to validation and rejected.
func readClaims(session sessions.Session) (services.SessionClaims, bool) {
	rawUserID := session.Get(SessionUserID)
	rawSessionID := session.Get(SessionID)
	if rawUserID == nil && rawSessionID == nil {
		return services.SessionClaims{}, false
	}

	var claims services.SessionClaims
	claims.UserID, _ = rawUserID.(int64)
	claims.SessionID, _ = rawSessionID.(string)
	if issuedAt, ok := session.Get(SessionIssuedAt).(int64); ok {
		claims.IssuedAt = time.Unix(issuedAt, 0)
	}
	return claims, true
}
