package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/school-admin/internal/apperr"
	"github.com/iliyamo/school-admin/internal/utils"
)

const (
	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"
	CSRFCookie    = "csrfToken"
)

const (
	msgMissingTokens  = "Unauthorized. Please provide valid tokens."
	msgInvalidAccess  = "Unauthorized. Please provide valid access token."
	msgInvalidRefresh = "Unauthorized. Please provide valid refresh token."
)

// Authenticate requires both the access and refresh cookies and verifies
// each against its own secret.  The refresh token is checked even though
// only the access claims are used: a session is live only while both are.
// On success the access claims are stored as a *Principal in the request
// context.
func Authenticate(accessSecret, refreshSecret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			access := cookieValue(c.Request(), AccessCookie)
			refresh := cookieValue(c.Request(), RefreshCookie)
			if access == "" || refresh == "" {
				return apperr.Unauthorized(msgMissingTokens)
			}

			claims, err := utils.VerifyToken(access, accessSecret)
			if err != nil {
				return apperr.Unauthorized(msgInvalidAccess)
			}
			if _, err := utils.VerifyToken(refresh, refreshSecret); err != nil {
				return apperr.Unauthorized(msgInvalidRefresh)
			}

			setPrincipal(c, &Principal{
				UserID:   claims.UserID,
				Role:     claims.Role,
				RoleID:   claims.RoleID,
				CSRFHMAC: claims.CSRFHMAC,
			})
			return next(c)
		}
	}
}

// EmailVerificationToken guards GET /verify-email/:token.  A missing path
// token is a 404, an unverifiable one a 400.  The token's user id becomes
// the request principal.
func EmailVerificationToken(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := c.Param("token")
			if raw == "" {
				return apperr.NotFound("Invalid token")
			}
			claims, err := utils.VerifyToken(raw, secret)
			if err != nil || claims.UserID == 0 {
				return apperr.BadRequest("Invalid token")
			}
			setPrincipal(c, &Principal{UserID: claims.UserID})
			return next(c)
		}
	}
}

func cookieValue(r *http.Request, name string) string {
	ck, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return ck.Value
}
