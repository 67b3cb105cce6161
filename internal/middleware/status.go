// Package middleware provides Echo middleware for logging, security, CORS, metrics and tracing.
package middleware

import (
	"errors"

	"github.com/labstack/echo/v4"
)

// resolveStatus returns the status the client will see. When a handler returns
// an *echo.HTTPError the response has not been written yet; Echo's central
// error handler writes it later, so the code is taken from the error.
func resolveStatus(c echo.Context, err error) int {
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he.Code
		}
	}
	return c.Response().Status
}
