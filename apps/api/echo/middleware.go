package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/edupulse/core/user"
)

// roleMiddleware lets through tokens holding a role of any of the given groups.
func roleMiddleware(groups ...[]string) echo.MiddlewareFunc {
	var roles []string
	for _, g := range groups {
		roles = append(roles, g...)
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if _, err := getContextClaims(ctx); err != nil {
				return err
			}
			if contextHasAnyRole(ctx, roles) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

func adminMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(user.AdminRoles)
}
