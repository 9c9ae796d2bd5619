package server

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/existflow/taskdeck/internal/logger"
	"github.com/existflow/taskdeck/internal/model"
)

// handleListProjects returns the user's custom projects in creation order.
// Default projects are not stored.
func (s *Server) handleListProjects(c echo.Context) error {
	rows, err := s.query(c.Request().Context(),
		`SELECT id, name, color FROM projects WHERE user_id = $1 ORDER BY created_at ASC`,
		userID(c),
	)
	if err != nil {
		return internalError(c, "list projects", err)
	}
	defer rows.Close()

	projects := []model.Project{}
	for rows.Next() {
		var p model.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Color); err != nil {
			return internalError(c, "scan project", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return internalError(c, "list projects", err)
	}

	return c.JSON(http.StatusOK, projects)
}

// handleCreateProject stores a custom project
func (s *Server) handleCreateProject(c echo.Context) error {
	var in model.ProjectInput
	if err := c.Bind(&in); err != nil {
		return jsonError(c, http.StatusBadRequest, "invalid request")
	}
	in = in.Normalize()

	if in.Name == "" {
		return jsonError(c, http.StatusBadRequest, "project name cannot be empty")
	}
	if model.IsReservedName(in.Name) {
		return jsonError(c, http.StatusBadRequest, "name is reserved for a default project")
	}

	uid := userID(c)
	p := model.Project{ID: uuid.NewString(), Name: in.Name, Color: in.Color}

	_, err := s.exec(c.Request().Context(), `
		INSERT INTO projects (id, user_id, name, color, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		p.ID, uid, p.Name, p.Color, formatTime(s.now()),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return jsonError(c, http.StatusConflict, "project already exists")
		}
		return internalError(c, "insert project", err)
	}

	logger.Info("Project created", logger.F("user", uid), logger.F("project", p.ID))
	return c.JSON(http.StatusCreated, p)
}

// handleDeleteProject removes a custom project. Its tasks are left in
// place; the client moves them.
func (s *Server) handleDeleteProject(c echo.Context) error {
	id := c.Param("id")
	if model.IsReservedProject(id) {
		return jsonError(c, http.StatusBadRequest, "default projects cannot be deleted")
	}

	res, err := s.exec(c.Request().Context(),
		`DELETE FROM projects WHERE id = $1 AND user_id = $2`,
		id, userID(c),
	)
	if err != nil {
		return internalError(c, "delete project", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return jsonError(c, http.StatusNotFound, "project not found")
	}
	return c.NoContent(http.StatusNoContent)
}
