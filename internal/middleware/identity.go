package middleware

// identity.go defines helper functions shared across middleware files.
// currentUserID pulls the subject stored by JWTAuth out of the Echo
// context and normalizes it to a string for use in cache and rate-limit
// keys.  JWT numeric claims decode as float64, so that case matters.

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// currentUserID returns the authenticated user's ID as a string, or
// "anon" when the request carries no identity.
func currentUserID(c echo.Context) string {
	v := c.Get("user_id")
	switch t := v.(type) {
	case string:
		if t != "" {
			return t
		}
	case float64:
		return strconv.FormatUint(uint64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case int64:
		return strconv.FormatInt(t, 10)
	}
	return "anon"
}
