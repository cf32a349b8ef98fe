package middleware

// identity.go carries the authenticated caller through the request context.
// Handlers and later middleware read it with PrincipalFrom.

import (
	"context"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Principal is the identity proven by the access token.
type Principal struct {
	UserID   uint64
	Role     string
	RoleID   uint64
	CSRFHMAC string
}

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored by Authenticate, or nil.
func PrincipalFrom(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}

func setPrincipal(c echo.Context, p *Principal) {
	c.SetRequest(c.Request().WithContext(WithPrincipal(c.Request().Context(), p)))
}

// userID returns the caller's id for log fields and rate limit keys, or
// "anon" before authentication.
func userID(c echo.Context) string {
	if p := PrincipalFrom(c.Request().Context()); p != nil && p.UserID != 0 {
		return strconv.FormatUint(p.UserID, 10)
	}
	return "anon"
}
