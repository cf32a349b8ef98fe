package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/school-admin/internal/model"
	"github.com/iliyamo/school-admin/internal/service"
)

// AccessControlHandler serves /api/v1/access-controls.
type AccessControlHandler struct {
	Access *service.AccessControlService
}

func NewAccessControlHandler(access *service.AccessControlService) *AccessControlHandler {
	return &AccessControlHandler{Access: access}
}

type accessControlReq struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Path        string  `json:"path" validate:"required,max=255"`
	Icon        *string `json:"icon" validate:"omitempty,max=100"`
	ParentPath  *string `json:"parent_path" validate:"omitempty,max=255"`
	HierarchyID *int    `json:"hierarchy_id" validate:"omitempty,min=0"`
	Type        string  `json:"type" validate:"required,max=20"`
	Method      *string `json:"method" validate:"omitempty,oneof=GET POST PUT PATCH DELETE get post put patch delete"`
}

func (r accessControlReq) model(id uint64) model.AccessControl {
	return model.AccessControl{
		ID:          id,
		Name:        r.Name,
		Path:        r.Path,
		Icon:        r.Icon,
		ParentPath:  r.ParentPath,
		HierarchyID: r.HierarchyID,
		Type:        r.Type,
		Method:      r.Method,
	}
}

func (h *AccessControlHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	tree, err := h.Access.List(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"permissions": tree})
}

// Mine returns the caller's own menus, UI capabilities and APIs.
func (h *AccessControlHandler) Mine(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	set, err := h.Access.Mine(ctx, p.RoleID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"permissions": set})
}

func (h *AccessControlHandler) Create(c echo.Context) error {
	var req accessControlReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if _, err := h.Access.Create(ctx, req.model(0)); err != nil {
		return err
	}
	return message(c, "New access control added successfully")
}

func (h *AccessControlHandler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req accessControlReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Access.Update(ctx, req.model(id)); err != nil {
		return err
	}
	return message(c, "Access control updated successfully")
}

func (h *AccessControlHandler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Access.Delete(ctx, id); err != nil {
		return err
	}
	return message(c, "Access control deleted successfully")
}
