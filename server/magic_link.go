package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/existflow/taskdeck/internal/logger"
	"github.com/existflow/taskdeck/internal/model"
)

const magicLinkMessage = "if email exists, a magic link will be sent"

type magicLinkRequest struct {
	Email string `json:"email"`
}

type magicLinkResponse struct {
	Message string `json:"message"`
	Token   string `json:"token,omitempty"`
}

// handleMagicLink creates a magic link for passwordless login
func (s *Server) handleMagicLink(c echo.Context) error {
	var req magicLinkRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "invalid request")
	}
	req.Email = strings.TrimSpace(req.Email)

	if req.Email == "" {
		return jsonError(c, http.StatusBadRequest, "email required")
	}

	ctx := c.Request().Context()

	// Don't reveal if email exists
	if _, err := s.lookupUser(ctx, "email", req.Email); err != nil {
		return c.JSON(http.StatusOK, magicLinkResponse{Message: magicLinkMessage})
	}

	token, err := newToken()
	if err != nil {
		return internalError(c, "generate token", err)
	}

	now := s.now()
	_, err = s.exec(ctx, `
		INSERT INTO magic_links (token, email, expires_at, used, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		token, req.Email, formatTime(now.Add(s.cfg.MagicLinkTTL)), false, formatTime(now),
	)
	if err != nil {
		return internalError(c, "insert magic link", err)
	}

	logger.Info("Magic link created", logger.F("email", req.Email))

	resp := magicLinkResponse{Message: magicLinkMessage}
	if s.cfg.ExposeMagicTokens {
		resp.Token = token
	}
	return c.JSON(http.StatusOK, resp)
}

// handleMagicLinkVerify verifies a magic link and creates a session
func (s *Server) handleMagicLinkVerify(c echo.Context) error {
	token := c.Param("token")
	if token == "" {
		return jsonError(c, http.StatusBadRequest, "token required")
	}

	ctx := c.Request().Context()

	// Find magic link
	link := model.MagicLink{Token: token}
	var expires string
	err := s.queryRow(ctx, `
		SELECT email, expires_at, used FROM magic_links
		WHERE token = $1`,
		token,
	).Scan(&link.Email, &expires, &link.Used)
	if err != nil {
		return jsonError(c, http.StatusUnauthorized, "invalid token")
	}

	if link.Used {
		return jsonError(c, http.StatusUnauthorized, "token already used")
	}

	link.ExpiresAt, err = parseTime(expires)
	if err != nil || link.IsExpired(s.now()) {
		return jsonError(c, http.StatusUnauthorized, "token expired")
	}

	// Mark as used. The used = FALSE guard makes concurrent verifies race safely.
	res, err := s.exec(ctx, `UPDATE magic_links SET used = $1 WHERE token = $2 AND used = $3`, true, token, false)
	if err != nil {
		return internalError(c, "mark magic link used", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return jsonError(c, http.StatusUnauthorized, "token already used")
	}

	user, err := s.lookupUser(ctx, "email", link.Email)
	if err != nil {
		return jsonError(c, http.StatusNotFound, "user not found")
	}

	sessionToken, sessionExpires, err := s.createSession(ctx, user.UserID)
	if err != nil {
		return internalError(c, "create session", err)
	}

	logger.Info("Magic link login", logger.F("user", user.UserID))

	return c.JSON(http.StatusOK, authResponse{
		Token:     sessionToken,
		ExpiresAt: sessionExpires.Format(time.RFC3339),
		UserID:    user.UserID,
		Username:  user.Username,
		Email:     user.Email,
	})
}
