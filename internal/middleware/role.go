package middleware

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/school-admin/internal/apperr"
	"github.com/iliyamo/school-admin/internal/model"
)

// Authorizer answers whether a role may call method on a route template.
type Authorizer interface {
	Authorize(ctx context.Context, roleID uint64, path, method string) (bool, error)
}

// CheckAPIAccess authorizes the matched route template (for example
// /api/v1/roles/:id) and method against the caller's role.  Lookup errors
// surface as 500s through the central error handler.
func CheckAPIAccess(authz Authorizer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := PrincipalFrom(c.Request().Context())
			if p == nil {
				return apperr.Unauthorized(msgMissingTokens)
			}
			path := c.Path()
			ok, err := authz.Authorize(c.Request().Context(), p.RoleID, path, c.Request().Method)
			if err != nil {
				return apperr.ServerError("Unable to verify access", err)
			}
			if !ok {
				return apperr.Forbidden("You do not have permission to access to this resource - " + path)
			}
			return next(c)
		}
	}
}

// RequireAdmin admits only the super-admin role.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := PrincipalFrom(c.Request().Context())
			if p == nil || p.RoleID != model.SuperAdminRoleID {
				return apperr.Forbidden("You do not have permission to this resource")
			}
			return next(c)
		}
	}
}
