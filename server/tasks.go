package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/existflow/taskdeck/internal/logger"
	"github.com/existflow/taskdeck/internal/model"
)

const taskColumns = `id, title, description, completed, project, priority, due_date, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (model.Task, error) {
	var (
		t           model.Task
		description sql.NullString
		due         sql.NullString
		created     string
	)
	if err := row.Scan(&t.ID, &t.Title, &description, &t.Completed, &t.Project, &t.Priority, &due, &created); err != nil {
		return model.Task{}, err
	}
	t.Description = description.String

	var err error
	if t.CreatedAt, err = parseTime(created); err != nil {
		return model.Task{}, fmt.Errorf("task %s created_at: %w", t.ID, err)
	}
	if due.Valid {
		d, err := parseTime(due.String)
		if err != nil {
			return model.Task{}, fmt.Errorf("task %s due_date: %w", t.ID, err)
		}
		t.DueDate = &d
	}
	return t, nil
}

// handleListTasks returns the user's tasks, newest first
func (s *Server) handleListTasks(c echo.Context) error {
	rows, err := s.query(c.Request().Context(),
		`SELECT `+taskColumns+` FROM tasks WHERE user_id = $1 ORDER BY created_at DESC`,
		userID(c),
	)
	if err != nil {
		return internalError(c, "list tasks", err)
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return internalError(c, "scan task", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return internalError(c, "list tasks", err)
	}

	return c.JSON(http.StatusOK, tasks)
}

// handleCreateTask stores a new task and returns the full row
func (s *Server) handleCreateTask(c echo.Context) error {
	var in model.TaskInput
	if err := c.Bind(&in); err != nil {
		return jsonError(c, http.StatusBadRequest, "invalid request")
	}
	in = in.Normalize()

	if in.Title == "" {
		return jsonError(c, http.StatusBadRequest, "title cannot be empty")
	}
	if !in.Priority.Valid() {
		return jsonError(c, http.StatusBadRequest, "invalid priority")
	}

	ctx := c.Request().Context()
	uid := userID(c)

	ok, err := s.projectExists(ctx, uid, in.Project)
	if err != nil {
		return internalError(c, "check project", err)
	}
	if !ok {
		return jsonError(c, http.StatusBadRequest, "unknown project")
	}

	task := model.Task{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Description: in.Description,
		Completed:   in.Completed,
		Project:     in.Project,
		Priority:    in.Priority,
		// Round to the stored precision so the response matches later reads
		CreatedAt: s.now().UTC().Truncate(time.Microsecond),
	}
	if in.DueDate != nil {
		due := in.DueDate.UTC().Truncate(time.Microsecond)
		task.DueDate = &due
	}

	_, err = s.exec(ctx, `
		INSERT INTO tasks (id, user_id, title, description, completed, project, priority, due_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		task.ID, uid, task.Title, task.Description, task.Completed, task.Project,
		string(task.Priority), nullTime(task.DueDate), formatTime(task.CreatedAt),
	)
	if err != nil {
		return internalError(c, "insert task", err)
	}

	logger.Info("Task created", logger.F("user", uid), logger.F("task", task.ID))
	return c.JSON(http.StatusCreated, task)
}

// handleUpdateTask applies the fields present in the body
func (s *Server) handleUpdateTask(c echo.Context) error {
	var body map[string]json.RawMessage
	if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil {
		return jsonError(c, http.StatusBadRequest, "invalid request")
	}

	ctx := c.Request().Context()
	uid := userID(c)

	sets, args, msg, err := s.taskUpdates(ctx, uid, body)
	if err != nil {
		return internalError(c, "check project", err)
	}
	if msg != "" {
		return jsonError(c, http.StatusBadRequest, msg)
	}

	args = append(args, c.Param("id"), uid)
	q := fmt.Sprintf(`UPDATE tasks SET %s WHERE id = $%d AND user_id = $%d`,
		strings.Join(sets, ", "), len(args)-1, len(args))

	res, err := s.exec(ctx, q, args...)
	if err != nil {
		return internalError(c, "update task", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return jsonError(c, http.StatusNotFound, "task not found")
	}

	return c.NoContent(http.StatusNoContent)
}

var patchableTaskFields = []string{"title", "description", "completed", "project", "priority", "due_date"}

// taskUpdates turns a patch body into SET clauses. A non-empty msg is a
// client error.
func (s *Server) taskUpdates(ctx context.Context, uid string, body map[string]json.RawMessage) (sets []string, args []any, msg string, err error) {
	for key := range body {
		known := false
		for _, f := range patchableTaskFields {
			if key == f {
				known = true
				break
			}
		}
		if !known {
			return nil, nil, fmt.Sprintf("unknown field %q", key), nil
		}
	}
	if len(body) == 0 {
		return nil, nil, "no fields to update", nil
	}

	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	for _, field := range patchableTaskFields {
		raw, ok := body[field]
		if !ok {
			continue
		}
		switch field {
		case "title":
			var v string
			if json.Unmarshal(raw, &v) != nil || strings.TrimSpace(v) == "" {
				return nil, nil, "title cannot be empty", nil
			}
			add(field, v)
		case "description":
			var v *string
			if json.Unmarshal(raw, &v) != nil {
				return nil, nil, "invalid description", nil
			}
			if v == nil {
				add(field, sql.NullString{})
			} else {
				add(field, *v)
			}
		case "completed":
			var v *bool
			if json.Unmarshal(raw, &v) != nil || v == nil {
				return nil, nil, "invalid completed flag", nil
			}
			add(field, *v)
		case "project":
			var v string
			if json.Unmarshal(raw, &v) != nil {
				return nil, nil, "invalid project", nil
			}
			ok, err := s.projectExists(ctx, uid, v)
			if err != nil {
				return nil, nil, "", err
			}
			if !ok {
				return nil, nil, "unknown project", nil
			}
			add(field, v)
		case "priority":
			var v model.Priority
			if json.Unmarshal(raw, &v) != nil || !v.Valid() {
				return nil, nil, "invalid priority", nil
			}
			add(field, string(v))
		case "due_date":
			var v *time.Time
			if json.Unmarshal(raw, &v) != nil {
				return nil, nil, "invalid due date", nil
			}
			add(field, nullTime(v))
		}
	}
	return sets, args, "", nil
}

// handleDeleteTask removes one of the user's tasks
func (s *Server) handleDeleteTask(c echo.Context) error {
	res, err := s.exec(c.Request().Context(),
		`DELETE FROM tasks WHERE id = $1 AND user_id = $2`,
		c.Param("id"), userID(c),
	)
	if err != nil {
		return internalError(c, "delete task", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return jsonError(c, http.StatusNotFound, "task not found")
	}
	return c.NoContent(http.StatusNoContent)
}

// projectExists reports whether id is a default project or one of the user's
func (s *Server) projectExists(ctx context.Context, uid, id string) (bool, error) {
	if model.IsReservedProject(id) {
		return true, nil
	}
	var n int
	err := s.queryRow(ctx,
		`SELECT COUNT(*) FROM projects WHERE id = $1 AND user_id = $2`, id, uid,
	).Scan(&n)
	return n > 0, err
}
