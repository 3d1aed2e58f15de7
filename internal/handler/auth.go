package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/healthcare-coordination/internal/middleware"
	"github.com/iliyamo/healthcare-coordination/internal/service"
)

// AuthHandler serves the /auth endpoints.
type AuthHandler struct {
	Svc     *service.AuthService
	Timeout time.Duration // bound on storage work per request
	Logger  *slog.Logger
}

func NewAuthHandler(svc *service.AuthService, timeout time.Duration, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AuthHandler{Svc: svc, Timeout: timeout, Logger: logger}
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *AuthHandler) ctx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), h.Timeout)
}

// Register creates an account and returns a token pair with 201.
func (h *AuthHandler) Register(c echo.Context) error {
	var req service.RegisterInput
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	res, err := h.Svc.Register(ctx, req)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"success":      true,
		"message":      "registration successful",
		"accessToken":  res.AccessToken.Token,
		"refreshToken": res.RefreshToken.Token,
		"user":         res.User,
	})
}

// Login verifies credentials and returns a fresh token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	res, err := h.Svc.Login(ctx, req.Email, req.Password)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":      true,
		"message":      "login successful",
		"accessToken":  res.AccessToken.Token,
		"refreshToken": res.RefreshToken.Token,
		"user":         res.User,
	})
}

// Refresh returns a new access token.  The refresh token is not rotated.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	res, err := h.Svc.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":     true,
		"message":     "token refreshed",
		"accessToken": res.AccessToken.Token,
		"user":        res.User,
	})
}

// Logout acknowledges the request.  Issued tokens remain valid until they
// expire, so clients must discard them.
func (h *AuthHandler) Logout(c echo.Context) error {
	if err := h.Svc.Logout(c.Request().Context()); err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "logged out"})
}

// Me returns the caller's profile.  Requires JWTAuth.
func (h *AuthHandler) Me(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()

	u, err := h.Svc.Me(ctx, middleware.UserIDFrom(c))
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "user": u})
}

// UpdateProfile applies a partial update to the caller's profile.
// Requires JWTAuth.
func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	var req service.ProfileInput
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	u, err := h.Svc.UpdateProfile(ctx, middleware.UserIDFrom(c), req)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "profile updated", "user": u})
}
