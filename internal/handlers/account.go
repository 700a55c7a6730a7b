package handlers

import (
	"net/http"

	"github.com/go-authgate/ssocenter/internal/middleware"

	"github.com/gin-gonic/gin"
)

// SessionInfo handles GET /account/session. It must run behind RequireAuth.
// Behind CSRFMiddleware the response also carries the token POST /logout
// expects.
func SessionInfo(c *gin.Context) {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	body := gin.H{
		"user_id":    claims.UserID,
		"session_id": claims.SessionID,
		"issued_at":  claims.IssuedAt.Unix(),
	}
	if token := middleware.GetCSRFToken(c); token != "" {
		body["csrf_token"] = token
	}
	c.JSON(http.StatusOK, body)
}
