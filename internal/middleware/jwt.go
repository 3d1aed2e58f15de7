package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/healthcare-coordination/internal/utils"
)

// Context keys set by JWTAuth.
const (
	ContextClaims = "claims"
	ContextUserID = "user_id"
	ContextRole   = "role"
)

const (
	msgTokenRequired = "access token required"
	msgTokenExpired  = "access token expired"
	msgTokenInvalid  = "invalid access token"
	msgAccessDenied  = "access denied"
)

// JWTAuth validates the Bearer access token on every request.  A request
// without one, or with an expired or invalid one, is rejected with 401 and
// never reaches the handler.  On success the decoded claims are stored
// under ContextClaims, the user id (uint64) under ContextUserID and the
// role (string) under ContextRole.
func JWTAuth(issuer *utils.TokenIssuer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return deny(c, http.StatusUnauthorized, msgTokenRequired)
			}
			claims, err := issuer.VerifyAccess(raw)
			if errors.Is(err, utils.ErrTokenExpired) {
				return deny(c, http.StatusUnauthorized, msgTokenExpired)
			}
			if err != nil {
				return deny(c, http.StatusUnauthorized, msgTokenInvalid)
			}
			c.Set(ContextClaims, claims)
			c.Set(ContextUserID, claims.UserID)
			c.Set(ContextRole, claims.Role)
			return next(c)
		}
	}
}

// bearerToken extracts the token from an Authorization header.  The scheme
// is matched case-insensitively.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// ClaimsFrom returns the claims stored by JWTAuth.
func ClaimsFrom(c echo.Context) (*utils.Claims, bool) {
	claims, ok := c.Get(ContextClaims).(*utils.Claims)
	return claims, ok && claims != nil
}

// UserIDFrom returns the authenticated user id, or 0 outside JWTAuth.
func UserIDFrom(c echo.Context) uint64 {
	id, _ := c.Get(ContextUserID).(uint64)
	return id
}

func deny(c echo.Context, status int, msg string) error {
	return c.JSON(status, echo.Map{"success": false, "message": msg})
}
