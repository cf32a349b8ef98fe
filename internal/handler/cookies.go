package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/school-admin/internal/config"
	"github.com/iliyamo/school-admin/internal/middleware"
)

// cookieJar writes the session cookies.  The access and refresh tokens are
// http-only; the CSRF token is readable so the web client can echo it in the
// X-CSRF-TOKEN header.
type cookieJar struct {
	Domain     string
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	CSRFTTL    time.Duration
}

func newCookieJar(cfg config.Config) cookieJar {
	return cookieJar{
		Domain:     cfg.CookieDomain,
		Secure:     cfg.CookieSecure,
		AccessTTL:  cfg.AccessToken.TTL,
		RefreshTTL: cfg.RefreshToken.TTL,
		CSRFTTL:    cfg.CSRFTTL,
	}
}

func (j cookieJar) cookie(name, value string, ttl time.Duration, httpOnly bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   j.Domain,
		MaxAge:   int(ttl / time.Second),
		Expires:  time.Now().Add(ttl),
		Secure:   j.Secure,
		HttpOnly: httpOnly,
		SameSite: http.SameSiteLaxMode,
	}
}

func (j cookieJar) setAccess(c echo.Context, token string) {
	c.SetCookie(j.cookie(middleware.AccessCookie, token, j.AccessTTL, true))
}

func (j cookieJar) setRefresh(c echo.Context, token string) {
	c.SetCookie(j.cookie(middleware.RefreshCookie, token, j.RefreshTTL, true))
}

func (j cookieJar) setCSRF(c echo.Context, token string) {
	c.SetCookie(j.cookie(middleware.CSRFCookie, token, j.CSRFTTL, false))
}

func (j cookieJar) setAll(c echo.Context, access, refresh, csrf string) {
	j.setAccess(c, access)
	j.setRefresh(c, refresh)
	j.setCSRF(c, csrf)
}

func (j cookieJar) clearAll(c echo.Context) {
	for _, name := range []string{middleware.AccessCookie, middleware.RefreshCookie, middleware.CSRFCookie} {
		ck := j.cookie(name, "", 0, name != middleware.CSRFCookie)
		ck.MaxAge = -1
		ck.Expires = time.Unix(0, 0)
		c.SetCookie(ck)
	}
}
