package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/school-admin/internal/apperr"
	"github.com/iliyamo/school-admin/internal/config"
	"github.com/iliyamo/school-admin/internal/middleware"
	"github.com/iliyamo/school-admin/internal/repository"
	"github.com/iliyamo/school-admin/internal/service"
	"github.com/iliyamo/school-admin/internal/utils"
)

func newEcho(t *testing.T) (*echo.Echo, *logtest.Hook) {
	t.Helper()
	log, hook := logtest.NewNullLogger()
	e := echo.New()
	e.Validator = NewValidator()
	e.HTTPErrorHandler = ErrorHandler(log)
	e.RouteNotFound("/*", NotFound)
	return e, hook
}

func do(e *echo.Echo, method, target, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestErrorHandlerMapping(t *testing.T) {
	e, hook := newEcho(t)
	e.GET("/typed", func(echo.Context) error { return apperr.Conflict("Role Name already exists.") })
	e.GET("/wrapped", func(echo.Context) error {
		return apperr.ServerError("Unable to login", errors.New("dial tcp: refused"))
	})
	e.GET("/untyped", func(echo.Context) error { return errors.New("secret internals") })
	e.GET("/method", func(echo.Context) error { return echo.NewHTTPError(http.StatusMethodNotAllowed, "Method Not Allowed") })

	rec := do(e, http.MethodGet, "/typed", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Role Name already exists.", decode(t, rec)["error"])

	rec = do(e, http.MethodGet, "/wrapped", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Unable to login", decode(t, rec)["error"])
	assert.NotContains(t, rec.Body.String(), "refused")

	hook.Reset()
	rec = do(e, http.MethodGet, "/untyped", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", decode(t, rec)["error"])
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "request failed", hook.LastEntry().Message)

	rec = do(e, http.MethodGet, "/method", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = do(e, http.MethodGet, "/no/such/route", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Resource not found", decode(t, rec)["error"])
}

func TestValidationErrorDetail(t *testing.T) {
	e, _ := newEcho(t)
	h := &AuthHandler{}
	e.POST("/login", h.Login)

	rec := do(e, http.MethodPost, "/login", `{"username":"not-an-email"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Validation error", body["error"])

	detail, ok := body["detail"].([]any)
	require.True(t, ok)
	paths := map[string]string{}
	for _, d := range detail {
		m := d.(map[string]any)
		paths[m["path"].(string)] = m["message"].(string)
	}
	assert.Equal(t, "must be a valid email", paths["username"])
	assert.Equal(t, "is required", paths["password"])

	rec = do(e, http.MethodPost, "/login", `{"username":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request body", decode(t, rec)["error"])
}

func TestSetupPasswordTokenGate(t *testing.T) {
	e, _ := newEcho(t)
	h := &AuthHandler{SetupSecret: "setup-secret"}
	e.POST("/setup-password", h.SetupPassword)

	rec := do(e, http.MethodPost, "/setup-password", `{"username":"ann@school.test","password":"longenough"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Invalid token", decode(t, rec)["error"])

	foreign, err := utils.IssueToken(utils.TokenClaims{UserID: 4}, "verify-secret", time.Hour)
	require.NoError(t, err)
	rec = do(e, http.MethodPost, "/setup-password",
		`{"token":"`+foreign.Token+`","username":"ann@school.test","password":"longenough"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid token", decode(t, rec)["error"])

	good, err := utils.IssueToken(utils.TokenClaims{UserID: 4}, "setup-secret", time.Hour)
	require.NoError(t, err)
	rec = do(e, http.MethodPost, "/setup-password",
		`{"token":"`+good.Token+`","username":"ann@school.test","password":"short"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Validation error", decode(t, rec)["error"])
}

func TestLogoutClearsCookies(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	log, _ := logtest.NewNullLogger()
	h := &AuthHandler{
		Auth:    &service.AuthService{Tokens: repository.NewTokenRepo(db), Log: log},
		Cookies: newCookieJar(config.Config{CookieSecure: true, AccessToken: config.TokenSettings{TTL: time.Minute}}),
	}
	e, _ := newEcho(t)
	e.POST("/logout", h.Logout)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM user_refresh_tokens WHERE token_hash = ?")).
		WithArgs(utils.HashRefreshRaw("raw-refresh")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := do(e, http.MethodPost, "/logout", "", &http.Cookie{Name: middleware.RefreshCookie, Value: "raw-refresh"})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	cleared := map[string]bool{}
	for _, ck := range rec.Result().Cookies() {
		cleared[ck.Name] = ck.MaxAge < 0 && ck.Value == ""
	}
	assert.Equal(t, map[string]bool{"accessToken": true, "refreshToken": true, "csrfToken": true}, cleared)
	require.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM user_refresh_tokens WHERE token_hash = ?")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	rec = do(e, http.MethodPost, "/logout", "", &http.Cookie{Name: middleware.RefreshCookie, Value: "raw-refresh"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Unable to logout", decode(t, rec)["error"])
}

func TestCookieAttributes(t *testing.T) {
	jar := newCookieJar(config.Config{
		CookieDomain: "school.test",
		CookieSecure: true,
		AccessToken:  config.TokenSettings{TTL: 15 * time.Minute},
		RefreshToken: config.TokenSettings{TTL: 24 * time.Hour},
		CSRFTTL:      15 * time.Minute,
	})
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)
	jar.setAll(c, "a", "r", "x")

	got := map[string]*http.Cookie{}
	for _, ck := range rec.Result().Cookies() {
		got[ck.Name] = ck
	}
	require.Len(t, got, 3)
	assert.True(t, got["accessToken"].HttpOnly)
	assert.True(t, got["refreshToken"].HttpOnly)
	assert.False(t, got["csrfToken"].HttpOnly)
	assert.Equal(t, 900, got["accessToken"].MaxAge)
	assert.Equal(t, 86400, got["refreshToken"].MaxAge)
	for _, ck := range got {
		assert.True(t, ck.Secure)
		assert.Equal(t, http.SameSiteLaxMode, ck.SameSite)
		assert.Equal(t, "school.test", ck.Domain)
	}
}

func TestParseIDList(t *testing.T) {
	ids, err := parseIDList(" 3, 1,2 ")
	require.NoError(t, err)
	assert.Equal(t, []uint64{3, 1, 2}, ids)

	ids, err = parseIDList("")
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = parseIDList("1,x")
	assert.True(t, apperr.IsKind(err, apperr.KindBadRequest))
}

func TestHealth(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	e, _ := newEcho(t)
	e.GET("/healthz", Health(db))

	mock.ExpectPing()
	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/healthz", "").Code)

	mock.ExpectPing().WillReturnError(errors.New("gone"))
	assert.Equal(t, http.StatusServiceUnavailable, do(e, http.MethodGet, "/healthz", "").Code)
}
