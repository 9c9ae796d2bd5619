package remote

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/existflow/taskdeck/internal/auth"
	"github.com/existflow/taskdeck/internal/model"
)

// ListTasks returns the user's tasks, newest first
func (c *Client) ListTasks(ctx context.Context) ([]model.Task, error) {
	var tasks []model.Task
	if err := c.authed(ctx, http.MethodGet, "/tasks", nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// InsertTask stores a task and returns it with its server-assigned fields
func (c *Client) InsertTask(ctx context.Context, in model.TaskInput) (model.Task, error) {
	var task model.Task
	if err := c.authed(ctx, http.MethodPost, "/tasks", in, &task); err != nil {
		return model.Task{}, err
	}
	return task, nil
}

// UpdateTask sends only the fields present in the patch
func (c *Client) UpdateTask(ctx context.Context, id string, patch model.TaskPatch) error {
	return c.authed(ctx, http.MethodPatch, "/tasks/"+url.PathEscape(id), patch.Fields(), nil)
}

// DeleteTask removes a task
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.authed(ctx, http.MethodDelete, "/tasks/"+url.PathEscape(id), nil, nil)
}

// ListProjects returns the user's custom projects
func (c *Client) ListProjects(ctx context.Context) ([]model.Project, error) {
	var projects []model.Project
	if err := c.authed(ctx, http.MethodGet, "/projects", nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// InsertProject stores a custom project
func (c *Client) InsertProject(ctx context.Context, in model.ProjectInput) (model.Project, error) {
	var p model.Project
	if err := c.authed(ctx, http.MethodPost, "/projects", in, &p); err != nil {
		return model.Project{}, err
	}
	return p, nil
}

// DeleteProject removes a custom project. Its tasks are not touched.
func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.authed(ctx, http.MethodDelete, "/projects/"+url.PathEscape(id), nil, nil)
}

func isUnauthorized(err error) bool {
	return errors.Is(err, auth.ErrUnauthorized)
}
