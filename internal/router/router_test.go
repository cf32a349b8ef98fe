package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/school-admin/internal/config"
	"github.com/iliyamo/school-admin/internal/handler"
	"github.com/iliyamo/school-admin/internal/middleware"
	"github.com/iliyamo/school-admin/internal/utils"
)

type stubAuthorizer struct{ allow bool }

func (s stubAuthorizer) Authorize(context.Context, uint64, string, string) (bool, error) {
	return s.allow, nil
}

var testCfg = config.Config{
	AccessToken:            config.TokenSettings{Secret: "access-secret", TTL: time.Minute},
	RefreshToken:           config.TokenSettings{Secret: "refresh-secret", TTL: time.Hour},
	EmailVerificationToken: config.TokenSettings{Secret: "verify-secret", TTL: time.Hour},
	PasswordSetupToken:     config.TokenSettings{Secret: "setup-secret", TTL: time.Hour},
	CSRFSecret:             "csrf-secret",
	CSRFTTL:                time.Minute,
}

func newServer(t *testing.T, allow bool) *echo.Echo {
	t.Helper()
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log, _ := logtest.NewNullLogger()
	e := echo.New()
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = handler.ErrorHandler(log)

	pass := func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	g := NewGate(testCfg, stubAuthorizer{allow: allow}, pass)
	RegisterRoutes(e, db)
	RegisterAuth(e, handler.NewAuthHandler(testCfg, nil), g)
	RegisterRoles(e, handler.NewRoleHandler(nil), g)
	RegisterAccessControls(e, handler.NewAccessControlHandler(nil), g)
	RegisterAccount(e, handler.NewAccountHandler(testCfg, nil), g)
	return e
}

type session struct {
	access, refresh, csrf string
}

func newSession(t *testing.T, roleID uint64) session {
	t.Helper()
	binder := utils.NewCSRFBinder(testCfg.CSRFSecret)
	csrf := utils.NewCSRFToken()
	access, err := utils.IssueToken(utils.TokenClaims{UserID: 5, Role: "teacher", RoleID: roleID, CSRFHMAC: binder.Digest(csrf)},
		testCfg.AccessToken.Secret, time.Minute)
	require.NoError(t, err)
	refresh, err := utils.IssueToken(utils.TokenClaims{UserID: 5, Role: "teacher", RoleID: roleID},
		testCfg.RefreshToken.Secret, time.Hour)
	require.NoError(t, err)
	return session{access: access.Token, refresh: refresh.Token, csrf: csrf}
}

func call(e *echo.Echo, method, target string, s *session, csrfHeader string) (int, string) {
	req := httptest.NewRequest(method, target, nil)
	if s != nil {
		req.AddCookie(&http.Cookie{Name: middleware.AccessCookie, Value: s.access})
		req.AddCookie(&http.Cookie{Name: middleware.RefreshCookie, Value: s.refresh})
	}
	if csrfHeader != "" {
		req.Header.Set(middleware.CSRFHeader, csrfHeader)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var body map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	msg, _ := body["error"].(string)
	return rec.Code, msg
}

func TestGateOrdering(t *testing.T) {
	e := newServer(t, false)
	s := newSession(t, 2)

	code, msg := call(e, http.MethodGet, "/api/v1/roles", nil, "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Unauthorized. Please provide valid tokens.", msg)

	code, msg = call(e, http.MethodGet, "/api/v1/roles", &s, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid csrf token", msg)

	code, msg = call(e, http.MethodGet, "/api/v1/roles", &s, utils.NewCSRFToken())
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "Forbidden. CSRF token mismatch", msg)

	code, msg = call(e, http.MethodGet, "/api/v1/roles/7", &s, s.csrf)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Contains(t, msg, "You do not have permission to access to this resource - /api/v1/roles/:id")
}

func TestAccessControlAdminOnly(t *testing.T) {
	e := newServer(t, true)
	s := newSession(t, 2)

	code, msg := call(e, http.MethodDelete, "/api/v1/access-controls/3", &s, s.csrf)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "You do not have permission to this resource", msg)
}

func TestEmailVerificationLinkGate(t *testing.T) {
	e := newServer(t, true)

	code, msg := call(e, http.MethodGet, "/api/v1/auth/verify-email/not-a-token", nil, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid token", msg)
}

func TestUnknownRoute(t *testing.T) {
	e := newServer(t, true)
	code, msg := call(e, http.MethodGet, "/nowhere", nil, "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Resource not found", msg)
}

func TestUnknownSubPathIsNotGated(t *testing.T) {
	e := newServer(t, false)
	s := newSession(t, 2)

	for _, target := range []string{"/api/v1/roles/5/nope/x", "/api/v1/access-controls/3/extra", "/api/v1/account/unknown"} {
		code, msg := call(e, http.MethodGet, target, nil, "")
		assert.Equal(t, http.StatusNotFound, code, target)
		assert.Equal(t, "Resource not found", msg, target)

		code, msg = call(e, http.MethodGet, target, &s, s.csrf)
		assert.Equal(t, http.StatusNotFound, code, target)
		assert.Equal(t, "Resource not found", msg, target)
	}
}
