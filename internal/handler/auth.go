package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/school-admin/internal/apperr"
	"github.com/iliyamo/school-admin/internal/config"
	"github.com/iliyamo/school-admin/internal/middleware"
	"github.com/iliyamo/school-admin/internal/service"
	"github.com/iliyamo/school-admin/internal/utils"
)

// AuthHandler serves /api/v1/auth.
type AuthHandler struct {
	Auth        *service.AuthService
	Cookies     cookieJar
	SetupSecret string
}

func NewAuthHandler(cfg config.Config, auth *service.AuthService) *AuthHandler {
	return &AuthHandler{Auth: auth, Cookies: newCookieJar(cfg), SetupSecret: cfg.PasswordSetupToken.Secret}
}

// ----- DTOs -----

type loginReq struct {
	Username string `json:"username" validate:"required,email,max=191"`
	Password string `json:"password" validate:"required,max=128"`
}

type setupPasswordReq struct {
	Token    string `json:"token"`
	Username string `json:"username" validate:"required,email,max=191"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type userIDReq struct {
	UserID uint64 `json:"userId" validate:"required,gt=0"`
}

// Login: verify credentials, set all three cookies, return the account
// and its permissions.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Auth.Login(ctx, req.Username, req.Password)
	if err != nil {
		return err
	}
	h.Cookies.clearAll(c)
	h.Cookies.setAll(c, res.Access.AccessToken.Token, res.Refresh.Token, res.Access.CSRFToken)
	return c.JSON(http.StatusOK, res.Account)
}

// Logout revokes the refresh token and clears the cookies.
func (h *AuthHandler) Logout(c echo.Context) error {
	ck, err := c.Cookie(middleware.RefreshCookie)
	if err != nil {
		return apperr.Unauthorized("Unauthorized. Please provide valid refresh token.")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if _, err := h.Auth.Logout(ctx, ck.Value); err != nil {
		return err
	}
	h.Cookies.clearAll(c)
	return c.NoContent(http.StatusNoContent)
}

// Refresh reissues the access and CSRF cookies from the refresh cookie.
func (h *AuthHandler) Refresh(c echo.Context) error {
	raw := ""
	if ck, err := c.Cookie(middleware.RefreshCookie); err == nil {
		raw = ck.Value
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Auth.RefreshAccessAndCsrf(ctx, raw)
	if err != nil {
		return err
	}
	h.Cookies.setAccess(c, res.Access.AccessToken.Token)
	h.Cookies.setCSRF(c, res.Access.CSRFToken)
	if res.Refresh != nil {
		h.Cookies.setRefresh(c, res.Refresh.Token)
	}
	return message(c, res.Message)
}

// VerifyEmail runs behind the EmailVerificationToken gate.
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	msg, err := h.Auth.EmailVerify(ctx, p.UserID)
	if err != nil {
		return err
	}
	return message(c, msg)
}

// SetupPassword takes the single purpose token from the body.  A missing
// token is a 404, an unverifiable one a 400.
func (h *AuthHandler) SetupPassword(c echo.Context) error {
	var req setupPasswordReq
	if err := c.Bind(&req); err != nil {
		return apperr.BadRequest(msgInvalidBody)
	}
	if req.Token == "" {
		return apperr.NotFound("Invalid token")
	}
	claims, err := utils.VerifyToken(req.Token, h.SetupSecret)
	if err != nil || claims.UserID == 0 {
		return apperr.BadRequest("Invalid token")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	msg, err := h.Auth.PasswordSetup(ctx, claims.UserID, req.Username, req.Password)
	if err != nil {
		return err
	}
	return message(c, msg)
}

func (h *AuthHandler) ResendEmailVerification(c echo.Context) error {
	return h.byUserID(c, h.Auth.ResendEmailVerification)
}

func (h *AuthHandler) ResendPasswordSetupLink(c echo.Context) error {
	return h.byUserID(c, h.Auth.ResendPasswordSetupLink)
}

func (h *AuthHandler) PasswordReset(c echo.Context) error {
	return h.byUserID(c, h.Auth.PasswordReset)
}

func (h *AuthHandler) byUserID(c echo.Context, op func(ctx context.Context, userID uint64) (string, error)) error {
	var req userIDReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	msg, err := op(ctx, req.UserID)
	if err != nil {
		return err
	}
	return message(c, msg)
}
