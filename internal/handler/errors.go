package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/school-admin/internal/apperr"
)

const (
	msgInternal    = "Internal server error"
	msgNotFound    = "Resource not found"
	msgValidation  = "Validation error"
	msgInvalidBody = "Invalid request body"
)

// ErrorHandler is echo's HTTPErrorHandler.  Typed errors keep their status
// and message, validation failures list the offending fields and anything
// else becomes a bare 500.  The cause of every 5xx is logged, never sent.
func ErrorHandler(log logrus.FieldLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, body := mapError(err)
		if status >= http.StatusInternalServerError {
			log.WithError(err).WithFields(logrus.Fields{
				"method": c.Request().Method,
				"path":   c.Request().URL.Path,
			}).Error("request failed")
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, body)
		}
		if werr != nil {
			log.WithError(werr).Warn("write error response")
		}
	}
}

func mapError(err error) (int, echo.Map) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest, echo.Map{"error": msgValidation, "detail": verr.Details}
	}
	if ae, ok := apperr.As(err); ok {
		return ae.Kind.HTTPStatus(), echo.Map{"error": ae.Message}
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		switch he.Code {
		case http.StatusNotFound:
			return he.Code, echo.Map{"error": msgNotFound}
		case http.StatusInternalServerError:
			return he.Code, echo.Map{"error": msgInternal}
		}
		if msg, ok := he.Message.(string); ok {
			return he.Code, echo.Map{"error": msg}
		}
		return he.Code, echo.Map{"error": http.StatusText(he.Code)}
	}
	return http.StatusInternalServerError, echo.Map{"error": msgInternal}
}
