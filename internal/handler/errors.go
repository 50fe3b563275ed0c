package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"library-service/internal/apperr"

	"github.com/labstack/echo/v4"
)

var statusByKind = map[apperr.Kind]int{
	apperr.Validation:          http.StatusBadRequest,
	apperr.PaymentNotCompleted: http.StatusBadRequest,
	apperr.Inventory:           http.StatusConflict,
	apperr.Conflict:            http.StatusConflict,
	apperr.NotFound:            http.StatusNotFound,
	apperr.Forbidden:           http.StatusForbidden,
	apperr.AlreadyProcessed:    http.StatusOK,
	apperr.ExternalService:     http.StatusBadGateway,
}

// respondError writes err as {"message", "code"}. Uncoded errors are logged and hidden.
func respondError(c echo.Context, logger *slog.Logger, err error) error {
	kind := apperr.Code(err)
	status, ok := statusByKind[kind]
	if !ok {
		logger.ErrorContext(c.Request().Context(), "request failed",
			"path", c.Path(), "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	if status == http.StatusBadGateway {
		logger.WarnContext(c.Request().Context(), "upstream failure", "path", c.Path(), "err", err)
	}
	return c.JSON(status, echo.Map{"message": err.Error(), "code": kind})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"message": msg})
}

func parseID(c echo.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
