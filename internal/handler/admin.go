package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/healthcare-coordination/internal/middleware"
	"github.com/iliyamo/healthcare-coordination/internal/service"
)

// AdminHandler serves /admin/users.  Every route must sit behind JWTAuth
// and RequireRole(admin).
type AdminHandler struct {
	Svc     *service.AuthService
	Timeout time.Duration
	Logger  *slog.Logger
}

func NewAdminHandler(svc *service.AuthService, timeout time.Duration, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AdminHandler{Svc: svc, Timeout: timeout, Logger: logger}
}

type statusReq struct {
	IsActive *bool `json:"is_active"`
}

// ListUsers handles GET /admin/users?role=&limit=&offset=.
func (h *AdminHandler) ListUsers(c echo.Context) error {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return fail(c, http.StatusBadRequest, "limit must be a number")
	}
	offset, ok := queryInt(c, "offset")
	if !ok {
		return fail(c, http.StatusBadRequest, "offset must be a number")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Timeout)
	defer cancel()

	users, err := h.Svc.ListUsers(ctx, c.QueryParam("role"), limit, offset)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "users": users})
}

// SetStatus handles PATCH /admin/users/:id/status with {"is_active": bool}.
func (h *AdminHandler) SetStatus(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "invalid user id")
	}
	var req statusReq
	if err := c.Bind(&req); err != nil || req.IsActive == nil {
		return fail(c, http.StatusBadRequest, "is_active is required")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Timeout)
	defer cancel()

	u, err := h.Svc.SetActive(ctx, middleware.UserIDFrom(c), id, *req.IsActive)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "status updated", "user": u})
}

// DeleteUser handles DELETE /admin/users/:id.
func (h *AdminHandler) DeleteUser(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "invalid user id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Timeout)
	defer cancel()

	if err := h.Svc.DeleteUser(ctx, middleware.UserIDFrom(c), id); err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "user deleted"})
}

// queryInt reads an optional integer query parameter; absent means 0.
func queryInt(c echo.Context, name string) (int, bool) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	return n, err == nil
}
