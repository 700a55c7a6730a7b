package handlers

import (
	"errors"
	"net/http"

	"github.com/go-authgate/ssocenter/internal/middleware"
	"github.com/go-authgate/ssocenter/internal/services"
	"github.com/go-authgate/ssocenter/internal/templates"
	"github.com/go-authgate/ssocenter/internal/util"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthHandler struct {
	sessions *services.SessionService
	baseURL  string
	logger   *zap.Logger
}

func NewAuthHandler(ss *services.SessionService, baseURL string, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{
		sessions: ss,
		baseURL:  baseURL,
		logger:   log.Named("auth_handler"),
	}
}

// LoginPage renders the login form. Signed-in users go straight to the
// return URL.
func (h *AuthHandler) LoginPage(c *gin.Context) {
	returnURL := util.SafeReturnURL(c.Query("return_url"), h.baseURL, "")

	if _, ok := middleware.GetClaims(c); ok {
		c.Redirect(http.StatusFound, orRoot(returnURL))
		return
	}

	h.renderLogin(c, http.StatusOK, templates.LoginPageProps{ReturnURL: returnURL})
}

// Login handles the login form submission
func (h *AuthHandler) Login(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")
	returnURL := util.SafeReturnURL(c.PostForm("return_url"), h.baseURL, "")

	_, claims, err := h.sessions.Login(c.Request.Context(), username, password)
	if err != nil {
		props := templates.LoginPageProps{ReturnURL: returnURL, Username: username}
		if errors.Is(err, services.ErrInvalidCredentials) {
			props.Error = "Invalid username or password"
			h.renderLogin(c, http.StatusUnauthorized, props)
			return
		}
		props.Error = "Sign-in is temporarily unavailable. Please try again."
		h.renderLogin(c, http.StatusInternalServerError, props)
		return
	}

	if err := middleware.SaveClaims(sessions.Default(c), claims); err != nil {
		h.logger.Error("failed to save session", zap.Error(err))
		h.renderLogin(c, http.StatusInternalServerError, templates.LoginPageProps{
			ReturnURL: returnURL,
			Username:  username,
			Error:     "Failed to create session. Please try again.",
		})
		return
	}

	c.Redirect(http.StatusFound, orRoot(returnURL))
}

// Logout blacklists the current session and clears the cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	if claims, ok := middleware.GetClaims(c); ok {
		h.sessions.Logout(c.Request.Context(), claims)
	}
	if err := middleware.ClearSession(sessions.Default(c)); err != nil {
		h.logger.Warn("failed to clear session", zap.Error(err))
	}
	c.Redirect(http.StatusFound, "/login")
}

func (h *AuthHandler) renderLogin(c *gin.Context, status int, props templates.LoginPageProps) {
	props.CSRFToken = middleware.GetCSRFToken(c)
	c.HTML(status, templates.LoginPage, props)
}

func orRoot(u string) string {
	if u == "" {
		return "/"
	}
	return u
}
