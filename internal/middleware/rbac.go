package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireRole enforces that the authenticated request carries one of the
// given roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			value, ok := c.Get(ContextKeyUserRole).(string)
			if !ok || value == "" {
				return errorJSON(c, http.StatusForbidden, "missing role")
			}
			if _, ok := allowed[value]; !ok {
				return errorJSON(c, http.StatusForbidden, "insufficient permissions")
			}
			return next(c)
		}
	}
}

// errorJSON mirrors the API error envelope.
func errorJSON(c echo.Context, status int, message string) error {
	return c.JSON(status, map[string]string{"status": "error", "message": message})
}
