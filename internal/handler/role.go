package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/school-admin/internal/service"
)

// RoleHandler serves /api/v1/roles.
type RoleHandler struct {
	Roles *service.RoleService
}

func NewRoleHandler(roles *service.RoleService) *RoleHandler {
	return &RoleHandler{Roles: roles}
}

type roleNameReq struct {
	Name string `json:"name" validate:"required,max=100"`
}

type roleStatusReq struct {
	Status *bool `json:"status" validate:"required"`
}

type rolePermissionsReq struct {
	// Comma separated access control ids forming the full grant set; empty
	// clears the role.
	Permissions string `json:"permissions"`
}

type switchRoleReq struct {
	UserID uint64 `json:"userId" validate:"required,gt=0"`
	RoleID uint64 `json:"roleId" validate:"required,gt=0"`
}

func (h *RoleHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	roles, err := h.Roles.List(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"roles": roles})
}

func (h *RoleHandler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	role, err := h.Roles.Get(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, role)
}

func (h *RoleHandler) Create(c echo.Context) error {
	var req roleNameReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if _, err := h.Roles.Create(ctx, req.Name); err != nil {
		return err
	}
	return message(c, "Role added successfully")
}

func (h *RoleHandler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req roleNameReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Roles.Rename(ctx, id, req.Name); err != nil {
		return err
	}
	return message(c, "Role updated successfully")
}

func (h *RoleHandler) SetStatus(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req roleStatusReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	msg, err := h.Roles.SetStatus(ctx, id, *req.Status)
	if err != nil {
		return err
	}
	return message(c, msg)
}

func (h *RoleHandler) Permissions(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	perms, err := h.Roles.Permissions(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"permissions": perms})
}

// ReplacePermissions handles POST /roles/:id/permissions.  The body is the
// role's complete grant list, not a delta: grants missing from it are
// revoked, and an empty list revokes everything.  Clients adding one grant
// must send the current list plus the new id.
func (h *RoleHandler) ReplacePermissions(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req rolePermissionsReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ids, err := parseIDList(req.Permissions)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	msg, err := h.Roles.ReplacePermissions(ctx, id, ids)
	if err != nil {
		return err
	}
	return message(c, msg)
}

func (h *RoleHandler) Users(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	users, err := h.Roles.ListUsers(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"users": users})
}

func (h *RoleHandler) Switch(c echo.Context) error {
	var req switchRoleReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Roles.SwitchRole(ctx, req.UserID, req.RoleID); err != nil {
		return err
	}
	return message(c, "Role switched successfully")
}
