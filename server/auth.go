package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/existflow/taskdeck/internal/logger"
	"github.com/existflow/taskdeck/internal/model"
)

const minPasswordLength = 8

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
}

type userResponse struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// handleRegister handles user registration
func (s *Server) handleRegister(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "invalid request")
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)

	// Validate
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return jsonError(c, http.StatusBadRequest, "username, email, and password required")
	}

	if len(req.Password) < minPasswordLength {
		return jsonError(c, http.StatusBadRequest, "password must be at least 8 characters")
	}

	// Hash password
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return internalError(c, "hash password", err)
	}

	ctx := c.Request().Context()
	userID := uuid.NewString()
	_, err = s.exec(ctx, `
		INSERT INTO users (id, username, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		userID, req.Username, req.Email, string(hash), formatTime(s.now()),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return jsonError(c, http.StatusConflict, "username or email already exists")
		}
		return internalError(c, "insert user", err)
	}

	// Create session
	token, expiresAt, err := s.createSession(ctx, userID)
	if err != nil {
		return internalError(c, "create session", err)
	}

	logger.Info("User registered", logger.F("user", userID), logger.F("username", req.Username))

	return c.JSON(http.StatusCreated, authResponse{
		Token:     token,
		ExpiresAt: expiresAt.Format(time.RFC3339),
		UserID:    userID,
		Username:  req.Username,
		Email:     req.Email,
	})
}

// handleLogin handles user login
func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "invalid request")
	}

	ctx := c.Request().Context()

	// Find user
	u := model.User{Username: strings.TrimSpace(req.Username)}
	err := s.queryRow(ctx, `
		SELECT id, email, password_hash FROM users WHERE username = $1`,
		u.Username,
	).Scan(&u.ID, &u.Email, &u.PasswordHash)
	if err != nil {
		return jsonError(c, http.StatusUnauthorized, "invalid credentials")
	}

	// Check password
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		logger.Warn("Failed login", logger.F("username", u.Username))
		return jsonError(c, http.StatusUnauthorized, "invalid credentials")
	}

	token, expiresAt, err := s.createSession(ctx, u.ID)
	if err != nil {
		return internalError(c, "create session", err)
	}

	logger.Info("User logged in", logger.F("user", u.ID))

	return c.JSON(http.StatusOK, authResponse{
		Token:     token,
		ExpiresAt: expiresAt.Format(time.RFC3339),
		UserID:    u.ID,
		Username:  u.Username,
		Email:     u.Email,
	})
}

// handleMe returns current user info
func (s *Server) handleMe(c echo.Context) error {
	uid := userID(c)

	user, err := s.lookupUser(c.Request().Context(), "id", uid)
	if err != nil {
		return jsonError(c, http.StatusNotFound, "user not found")
	}
	return c.JSON(http.StatusOK, user)
}

// handleLogout ends the session used for the request
func (s *Server) handleLogout(c echo.Context) error {
	token, _ := c.Get("token").(string)
	if _, err := s.exec(c.Request().Context(), `DELETE FROM sessions WHERE token = $1`, token); err != nil {
		return internalError(c, "delete session", err)
	}
	logger.Info("User logged out", logger.F("user", userID(c)))
	return c.NoContent(http.StatusNoContent)
}

// lookupUser finds a user by id or email
func (s *Server) lookupUser(ctx context.Context, column, value string) (userResponse, error) {
	var u userResponse
	q := `SELECT id, username, email FROM users WHERE id = $1`
	if column == "email" {
		q = `SELECT id, username, email FROM users WHERE email = $1`
	}
	err := s.queryRow(ctx, q, value).Scan(&u.UserID, &u.Username, &u.Email)
	return u, err
}

// createSession creates a new session for a user
func (s *Server) createSession(ctx context.Context, userID string) (string, time.Time, error) {
	token, err := newToken()
	if err != nil {
		return "", time.Time{}, err
	}

	now := s.now()
	expiresAt := now.Add(s.cfg.SessionTTL)

	_, err = s.exec(ctx, `
		INSERT INTO sessions (token, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4)`,
		token, userID, formatTime(expiresAt), formatTime(now),
	)

	return token, expiresAt, err
}

// newToken returns 32 random bytes, hex encoded
func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
