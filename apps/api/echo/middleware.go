package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// roleMiddleware lets through callers holding any of roles (all callers when roles is empty).
func roleMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			actor, err := getContextActor(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context actor")
			}
			if len(roles) == 0 {
				return next(ctx)
			}
			for _, role := range roles {
				if actor.Role == role {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}
