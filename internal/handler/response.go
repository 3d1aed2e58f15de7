package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/healthcare-coordination/internal/service"
)

const msgInternal = "internal server error"

func fail(c echo.Context, status int, msg string) error {
	return c.JSON(status, echo.Map{"success": false, "message": msg})
}

// writeError maps service errors onto HTTP statuses.  Anything unrecognised
// is logged and reported as a generic 500 so storage details never leak.
func writeError(c echo.Context, logger *slog.Logger, err error) error {
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrDuplicateEmail):
		return fail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidRefreshToken),
		errors.Is(err, service.ErrExpiredRefreshToken):
		return fail(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrAccountInactive):
		return fail(c, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrUserNotFound):
		return fail(c, http.StatusNotFound, err.Error())
	}
	logger.Error("request failed",
		"method", c.Request().Method,
		"path", c.Path(),
		"error", err,
	)
	return fail(c, http.StatusInternalServerError, msgInternal)
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}
