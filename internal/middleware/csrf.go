package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/school-admin/internal/apperr"
	"github.com/iliyamo/school-admin/internal/utils"
)

// CSRFHeader carries the readable csrfToken cookie value back to the API.
const CSRFHeader = "X-CSRF-TOKEN"

// CSRFProtection must run after Authenticate.  A missing header or an
// access token without a digest claim is a malformed request (400); a
// header whose digest differs from the claim is a forgery (403).
func CSRFProtection(binder *utils.CSRFBinder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := PrincipalFrom(c.Request().Context())
			token := c.Request().Header.Get(CSRFHeader)
			if p == nil || token == "" || p.CSRFHMAC == "" {
				return apperr.BadRequest("Invalid csrf token")
			}
			if !binder.Matches(token, p.CSRFHMAC) {
				return apperr.Forbidden("Forbidden. CSRF token mismatch")
			}
			return next(c)
		}
	}
}
