// Package server is the taskdeck sync server: accounts, sessions and the
// per-user task and project tables behind a JSON API.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/robfig/cron/v3"

	"github.com/existflow/taskdeck/internal/logger"
)

// Server is the sync server
type Server struct {
	cfg     Config
	db      *sql.DB
	dialect dialect
	echo    *echo.Echo
	cron    *cron.Cron
	now     func() time.Time
}

// New opens the database, runs migrations and sets up routes.
// The janitor is not started; see StartJanitor.
func New(cfg Config) (*Server, error) {
	cfg = cfg.withDefaults()

	db, d, err := openDB(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Server{
		cfg:     cfg,
		db:      db,
		dialect: d,
		now:     time.Now,
	}

	// Run migrations
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	// Setup Echo
	s.setupEcho()

	logger.Info("Server initialized", logger.F("driver", d.String()))
	return s, nil
}

func (s *Server) setupEcho() {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Request logging
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			logger.Debug("HTTP Request",
				logger.F("method", req.Method),
				logger.F("uri", req.RequestURI),
				logger.F("remote", req.RemoteAddr))

			err := next(c)

			res := c.Response()
			logger.Info("HTTP Response",
				logger.F("method", req.Method),
				logger.F("uri", req.RequestURI),
				logger.F("status", res.Status),
				logger.F("size", res.Size),
				logger.F("duration", time.Since(start).String()))

			return err
		}
	})

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORS())

	// Health check
	e.GET("/health", s.handleHealth)

	// API v1
	api := e.Group("/api/v1")

	// Auth endpoints (public)
	api.POST("/register", s.handleRegister)
	api.POST("/login", s.handleLogin)
	api.POST("/magic-link", s.handleMagicLink)
	api.GET("/magic-link/:token", s.handleMagicLinkVerify)

	// Protected endpoints
	protected := api.Group("")
	protected.Use(s.authMiddleware)
	protected.GET("/me", s.handleMe)
	protected.POST("/logout", s.handleLogout)

	protected.GET("/tasks", s.handleListTasks)
	protected.POST("/tasks", s.handleCreateTask)
	protected.PATCH("/tasks/:id", s.handleUpdateTask)
	protected.DELETE("/tasks/:id", s.handleDeleteTask)

	protected.GET("/projects", s.handleListProjects)
	protected.POST("/projects", s.handleCreateProject)
	protected.DELETE("/projects/:id", s.handleDeleteProject)

	s.echo = e
}

// Close stops the janitor and closes the database connection
func (s *Server) Close() error {
	s.StopJanitor()
	return s.db.Close()
}

// Router returns the HTTP handler
func (s *Server) Router() http.Handler {
	return s.echo
}

// Start starts the server
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	if err := s.db.PingContext(c.Request().Context()); err != nil {
		return jsonError(c, http.StatusServiceUnavailable, "database unavailable")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func jsonError(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}

func internalError(c echo.Context, op string, err error) error {
	logger.Error("Request failed",
		logger.F("op", op),
		logger.F("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
		logger.F("error", err))
	return jsonError(c, http.StatusInternalServerError, "internal error")
}

func userID(c echo.Context) string {
	id, _ := c.Get("user_id").(string)
	return id
}
