// Package router registers the HTTP routes and the middleware each group
// runs behind.
package router

import (
	"database/sql"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/school-admin/internal/config"
	"github.com/iliyamo/school-admin/internal/handler"
	"github.com/iliyamo/school-admin/internal/middleware"
	"github.com/iliyamo/school-admin/internal/utils"
)

// Gate bundles the request gate middleware.  Protected routes run
// Authenticate, then CSRF, then either the per-route API access check or
// the super-admin check.
type Gate struct {
	Auth      echo.MiddlewareFunc
	CSRF      echo.MiddlewareFunc
	Access    echo.MiddlewareFunc
	Admin     echo.MiddlewareFunc
	EmailLink echo.MiddlewareFunc
	RateLimit echo.MiddlewareFunc
}

// NewGate builds the gate from configuration.  rateLimit may be a
// pass-through.
func NewGate(cfg config.Config, authz middleware.Authorizer, rateLimit echo.MiddlewareFunc) Gate {
	return Gate{
		Auth:      middleware.Authenticate(cfg.AccessToken.Secret, cfg.RefreshToken.Secret),
		CSRF:      middleware.CSRFProtection(utils.NewCSRFBinder(cfg.CSRFSecret)),
		Access:    middleware.CheckAPIAccess(authz),
		Admin:     middleware.RequireAdmin(),
		EmailLink: middleware.EmailVerificationToken(cfg.EmailVerificationToken.Secret),
		RateLimit: rateLimit,
	}
}

// RegisterRoutes registers the unauthenticated operational endpoints and the
// catch-all 404.
func RegisterRoutes(e *echo.Echo, db *sql.DB) {
	e.GET("/healthz", handler.Health(db))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.RouteNotFound("/*", handler.NotFound)
}

// RegisterAuth registers /api/v1/auth.  Session-creating endpoints are rate
// limited; administrative resends sit behind the full gate.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, g Gate) {
	r := e.Group("/api/v1/auth")
	r.POST("/login", a.Login, g.RateLimit)
	r.GET("/refresh", a.Refresh, g.RateLimit)
	r.POST("/logout", a.Logout, g.Auth, g.CSRF)
	r.GET("/verify-email/:token", a.VerifyEmail, g.EmailLink)
	r.POST("/setup-password", a.SetupPassword, g.RateLimit)
	r.POST("/resend-email-verification", a.ResendEmailVerification, g.Auth, g.CSRF, g.Access)
	r.POST("/resend-pwd-setup-link", a.ResendPasswordSetupLink, g.Auth, g.CSRF, g.Access)
	r.POST("/reset-pwd", a.PasswordReset, g.Auth, g.CSRF, g.Access)
}

// signedIn is Authenticate then CSRF, followed by extra.  It is attached per
// route so unknown sub-paths of a group still reach the 404 handler.
func (g Gate) signedIn(extra ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	return append([]echo.MiddlewareFunc{g.Auth, g.CSRF}, extra...)
}

// RegisterRoles registers /api/v1/roles.  Every route is checked against
// the access control catalogue.
func RegisterRoles(e *echo.Echo, h *handler.RoleHandler, g Gate) {
	r := e.Group("/api/v1/roles")
	gate := g.signedIn(g.Access)
	r.GET("", h.List, gate...)
	r.POST("", h.Create, gate...)
	r.POST("/switch", h.Switch, gate...)
	r.PUT("/:id", h.Update, gate...)
	r.POST("/:id/status", h.SetStatus, gate...)
	r.GET("/:id", h.Get, gate...)
	r.GET("/:id/permissions", h.Permissions, gate...)
	r.POST("/:id/permissions", h.ReplacePermissions, gate...)
	r.GET("/:id/users", h.Users, gate...)
}

// RegisterAccessControls registers /api/v1/access-controls.  Catalogue
// maintenance is reserved to the super-admin; /me serves any signed-in user.
func RegisterAccessControls(e *echo.Echo, h *handler.AccessControlHandler, g Gate) {
	r := e.Group("/api/v1/access-controls")
	admin := g.signedIn(g.Admin)
	r.GET("/me", h.Mine, g.signedIn()...)
	r.GET("", h.List, admin...)
	r.POST("", h.Create, admin...)
	r.PUT("/:id", h.Update, admin...)
	r.DELETE("/:id", h.Delete, admin...)
}

// RegisterAccount registers /api/v1/account for the signed-in user.
func RegisterAccount(e *echo.Echo, h *handler.AccountHandler, g Gate) {
	r := e.Group("/api/v1/account")
	gate := g.signedIn()
	r.POST("/change-password", h.ChangePassword, gate...)
	r.GET("/me", h.Me, gate...)
}
