package httpapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"docflow/auth"
)

const userIDContextKey = "docflow.user_id"

// OptionalAuth resolves a bearer token into a user id when one is present.
// Requests without a token (or with an invalid one) still pass through;
// handlers that care read the user id from the context and treat its
// absence as an anonymous caller.
func OptionalAuth(authSvc *auth.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if token, ok := strings.CutPrefix(header, "Bearer "); ok {
				if userID, err := authSvc.VerifyToken(token); err == nil {
					c.Set(userIDContextKey, userID)
				}
			}
			return next(c)
		}
	}
}

func userIDFromContext(c echo.Context) *string {
	if id, ok := c.Get(userIDContextKey).(string); ok && id != "" {
		return &id
	}
	return nil
}
