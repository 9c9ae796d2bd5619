package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/existflow/taskdeck/internal/model"
)

// authMiddleware checks for valid session token
func (s *Server) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		// Get token from Authorization header
		auth := c.Request().Header.Get("Authorization")
		if auth == "" {
			return jsonError(c, http.StatusUnauthorized, "authorization required")
		}

		token := strings.TrimPrefix(auth, "Bearer ")
		if token == auth || token == "" {
			return jsonError(c, http.StatusUnauthorized, "invalid authorization format")
		}

		// Validate session
		sess := model.Session{Token: token}
		var expires string
		err := s.queryRow(c.Request().Context(),
			`SELECT user_id, expires_at FROM sessions WHERE token = $1`, token,
		).Scan(&sess.UserID, &expires)
		if err != nil {
			return jsonError(c, http.StatusUnauthorized, "invalid token")
		}

		sess.ExpiresAt, err = parseTime(expires)
		if err != nil || sess.IsExpired(s.now()) {
			return jsonError(c, http.StatusUnauthorized, "token expired")
		}

		// Add user ID to context
		c.Set("user_id", sess.UserID)
		c.Set("token", sess.Token)
		return next(c)
	}
}
