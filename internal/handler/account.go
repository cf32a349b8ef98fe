package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/school-admin/internal/config"
	"github.com/iliyamo/school-admin/internal/service"
)

// AccountHandler serves /api/v1/account for the signed-in user.
type AccountHandler struct {
	Account *service.AccountService
	Cookies cookieJar
}

func NewAccountHandler(cfg config.Config, account *service.AccountService) *AccountHandler {
	return &AccountHandler{Account: account, Cookies: newCookieJar(cfg)}
}

type changePasswordReq struct {
	OldPassword string `json:"oldPassword" validate:"required,max=128"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=128,nefield=OldPassword"`
}

// ChangePassword rotates the whole session, so every cookie is replaced.
func (h *AccountHandler) ChangePassword(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req changePasswordReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Account.ChangePassword(ctx, p.UserID, req.OldPassword, req.NewPassword)
	if err != nil {
		return err
	}
	h.Cookies.clearAll(c)
	h.Cookies.setAll(c, res.Access.AccessToken.Token, res.Refresh.Token, res.Access.CSRFToken)
	return message(c, res.Message)
}

func (h *AccountHandler) Me(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	detail, err := h.Account.Me(ctx, p.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, detail)
}
