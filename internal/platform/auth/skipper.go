package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths bypass authentication. The reminder trigger carries its own
// shared-secret check.
var publicPaths = map[string]bool{
	"/health":               true,
	"/metrics":              true,
	"/tasks/send_reminders": true,
	"/tasks/send-reminders": true,
	"/api/v1/doctors":       true,
}

// AuthSkipper reports whether the matched route is public.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

func IsPublicPath(path string) bool {
	return publicPaths[path]
}
