package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/school-admin/internal/apperr"
	"github.com/iliyamo/school-admin/internal/middleware"
)

// requestTimeout bounds the database work of a single request.
const requestTimeout = 5 * time.Second

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// principal returns the authenticated caller.  Routes that call it sit
// behind Authenticate, so a nil principal is a wiring bug.
func principal(c echo.Context) (*middleware.Principal, error) {
	p := middleware.PrincipalFrom(c.Request().Context())
	if p == nil {
		return nil, apperr.Unauthorized("Unauthorized. Please provide valid tokens.")
	}
	return p, nil
}

func parseID(c echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.BadRequest("Invalid id")
	}
	return id, nil
}

// parseIDList reads "1, 2,3" into ids.  An empty string is an empty list.
func parseIDList(s string) ([]uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return []uint64{}, nil
	}
	parts := strings.Split(s, ",")
	ids := make([]uint64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64)
		if err != nil || id == 0 {
			return nil, apperr.BadRequest("Invalid permission id: " + strings.TrimSpace(p))
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func message(c echo.Context, msg string) error {
	return c.JSON(http.StatusOK, echo.Map{"message": msg})
}

// NotFound answers every unmatched route.
func NotFound(c echo.Context) error {
	return apperr.NotFound("Resource not found")
}
