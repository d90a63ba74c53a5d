package middleware

import (
	"github.com/labstack/echo/v4"
)

// NoCache marks every response as uncacheable. Assignments are per visitor so
// shared caches must never serve one visitor's config to another.
func NoCache() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "0")
			return next(c)
		}
	}
}
