package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/go-authgate/ssocenter/internal/config"
	"github.com/go-authgate/ssocenter/internal/middleware"
	"github.com/go-authgate/ssocenter/internal/models"
	"github.com/go-authgate/ssocenter/internal/revocation"
	"github.com/go-authgate/ssocenter/internal/services"
	"github.com/go-authgate/ssocenter/internal/store"
	"github.com/go-authgate/ssocenter/internal/templates"
	"github.com/go-authgate/ssocenter/internal/util"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testClientID      = "c1"
	testClientSecret  = "c1-secret"
	testRedirectURI   = "https://app/cb"
	testAdminPassword = "admin-password"
)

type testEnv struct {
	store  *store.Store
	cache  *revocation.Cache
	oauth  *services.OAuthService
	router *gin.Engine
	admin  *models.User
}

func newTestConfig() *config.Config {
	return &config.Config{
		BaseURL:                "http://localhost:8080",
		SessionMaxAge:          3600,
		DBQueryTimeout:         5 * time.Second,
		AuthCodeExpiration:     5 * time.Minute,
		AccessTokenExpiration:  time.Hour,
		RefreshTokenExpiration: 720 * time.Hour,
		DefaultScope:           "default",
		DefaultAdminPassword:   testAdminPassword,
	}
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	cfg := newTestConfig()

	s, err := store.New(ctx, "sqlite", ":memory:", cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	hash, err := util.HashSecret(testClientSecret, bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, s.CreateClient(ctx, &models.Client{
		ClientID:     testClientID,
		ClientSecret: hash,
		ClientName:   "Test App",
		RedirectURI:  testRedirectURI,
		IsActive:     true,
	}))

	admin, err := s.GetUserByUsername(ctx, "admin")
	require.NoError(t, err)

	cache := revocation.New(ctx, nil, revocation.Options{})
	oauth := services.NewOAuthService(s, s, cfg, nil, nil)
	users := services.NewUserService(s, cfg, nil)
	sessionService := services.NewSessionService(users, cache, cfg, nil, nil)

	oauthHandler := NewOAuthHandler(oauth, users, nil)
	authHandler := NewAuthHandler(sessionService, cfg.BaseURL, nil)

	r := gin.New()
	r.SetHTMLTemplate(templates.Must())
	r.Use(sessions.Sessions("oauth_session", cookie.NewStore([]byte("test-secret"))))
	r.Use(middleware.SessionPrincipal(services.NewSessionValidator(cache, cfg.SessionLifetime()), nil, nil))

	r.GET("/authorize", oauthHandler.Authorize)
	r.POST("/token", oauthHandler.Token)
	r.GET("/userinfo", oauthHandler.UserInfo)
	r.POST("/revoke", oauthHandler.Revoke)

	forms := r.Group("", middleware.CSRFMiddleware())
	forms.GET("/login", authHandler.LoginPage)
	forms.POST("/login", authHandler.Login)
	forms.POST("/logout", authHandler.Logout)

	r.GET("/account/session", middleware.RequireAuth(), middleware.CSRFMiddleware(), SessionInfo)

	return &testEnv{store: s, cache: cache, oauth: oauth, router: r, admin: admin}
}

func (e *testEnv) do(req *http.Request, cookies []*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) get(target string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	return e.do(httptest.NewRequest(http.MethodGet, target, nil), cookies)
}

func (e *testEnv) postForm(target string, form url.Values, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.do(req, cookies)
}

var csrfPattern = regexp.MustCompile(`name="csrf_token" value="([^"]+)"`)

func extractCSRFToken(t *testing.T, body string) string {
	t.Helper()
	m := csrfPattern.FindStringSubmatch(body)
	require.Len(t, m, 2, "login page must contain a CSRF token")
	return m[1]
}

// mergeCookies overlays updated on base by cookie name.
func mergeCookies(base, updated []*http.Cookie) []*http.Cookie {
	byName := map[string]*http.Cookie{}
	var order []string
	for _, list := range [][]*http.Cookie{base, updated} {
		for _, c := range list {
			if _, seen := byName[c.Name]; !seen {
				order = append(order, c.Name)
			}
			byName[c.Name] = c
		}
	}
	out := make([]*http.Cookie, 0, len(order))
	for _, name := range order {
		out = append(out, byName[name])
	}
	return out
}

// login signs in as admin and returns the session cookies.
func (e *testEnv) login(t *testing.T) []*http.Cookie {
	t.Helper()
	page := e.get("/login", nil)
	require.Equal(t, http.StatusOK, page.Code)
	cookies := page.Result().Cookies()

	w := e.postForm("/login", url.Values{
		"csrf_token": {extractCSRFToken(t, page.Body.String())},
		"username":   {"admin"},
		"password":   {testAdminPassword},
	}, cookies)
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())
	return mergeCookies(cookies, w.Result().Cookies())
}

// accountCSRFToken reads the logout CSRF token from /account/session and
// returns it with the cookies that carry it.
func (e *testEnv) accountCSRFToken(t *testing.T, cookies []*http.Cookie) (string, []*http.Cookie) {
	t.Helper()
	w := e.get("/account/session", cookies)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		CSRFToken string `json:"csrf_token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotEmpty(t, body.CSRFToken)
	return body.CSRFToken, mergeCookies(cookies, w.Result().Cookies())
}

// issueCode runs /authorize as a signed-in user and returns the code.
func (e *testEnv) issueCode(t *testing.T, cookies []*http.Cookie) string {
	t.Helper()
	w := e.get("/authorize?"+url.Values{
		"client_id":     {testClientID},
		"redirect_uri":  {testRedirectURI},
		"response_type": {"code"},
	}.Encode(), cookies)
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())

	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	code := loc.Query().Get("code")
	require.NotEmpty(t, code)
	return code
}
