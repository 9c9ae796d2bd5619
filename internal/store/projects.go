package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/existflow/taskdeck/internal/logger"
	"github.com/existflow/taskdeck/internal/model"
)

const (
	msgProjectAdded          = "Project added successfully"
	msgProjectDeleted        = "Project deleted successfully"
	msgProjectAddFailed      = "Failed to add project"
	msgProjectDeleteFailed   = "Failed to delete project"
	msgDefaultProjectDeleted = "Can't delete default projects"
)

// AddProject creates a custom project
func (s *Store) AddProject(ctx context.Context, in model.ProjectInput) (model.Project, error) {
	in = in.Normalize()

	sess, err := s.begin()
	if err != nil {
		return model.Project{}, s.reject(msgProjectAddFailed, err)
	}
	switch {
	case in.Name == "":
		return model.Project{}, s.reject(msgProjectAddFailed, ErrEmptyName)
	case model.IsReservedName(in.Name):
		return model.Project{}, s.reject(msgProjectAddFailed, ErrReservedName)
	}

	rctx, done := bind(ctx, sess)
	defer done()

	project, err := s.gw.InsertProject(rctx, in)
	if err != nil {
		return model.Project{}, s.failed(sess, msgProjectAddFailed, err)
	}

	if !s.commit(sess, func() bool {
		if s.hasProjectLocked(project.ID) {
			return false
		}
		s.projects = append(s.projects, project)
		return true
	}) && !s.isCurrent(sess) {
		return model.Project{}, ErrStaleSession
	}

	logger.Info("Project added", logger.F("id", project.ID), logger.F("name", project.Name))
	s.notifier.Success(msgProjectAdded)
	return project, nil
}

// DeleteProject removes a custom project and moves its tasks to the inbox.
// Default projects cannot be deleted. The project is removed once the server
// confirms; a task that cannot be moved is reported and the remaining tasks
// are still moved.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	sess, err := s.begin()
	if err != nil {
		return s.reject(msgProjectDeleteFailed, err)
	}
	if model.IsReservedProject(id) {
		return s.reject(msgDefaultProjectDeleted, ErrReservedProject)
	}
	if _, ok := s.Project(id); !ok {
		return s.reject(msgProjectDeleteFailed, ErrProjectNotFound)
	}

	rctx, done := bind(ctx, sess)
	defer done()

	if err := s.gw.DeleteProject(rctx, id); err != nil {
		return s.failed(sess, msgProjectDeleteFailed, err)
	}

	var orphaned []string
	if !s.commit(sess, func() bool {
		for i := range s.projects {
			if s.projects[i].ID == id {
				s.projects = append(s.projects[:i:i], s.projects[i+1:]...)
				break
			}
		}
		for _, t := range s.tasks {
			if t.Project == id {
				orphaned = append(orphaned, t.ID)
			}
		}
		return true
	}) {
		return ErrStaleSession
	}
	logger.Info("Project deleted", logger.F("id", id), logger.F("tasks", len(orphaned)))

	var errs []error
	for _, taskID := range orphaned {
		err := s.moveToInbox(rctx, sess, taskID)
		if errors.Is(err, ErrStaleSession) {
			return err
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("task %s: %w", taskID, err))
		}
	}

	s.notifier.Success(msgProjectDeleted)
	if len(errs) > 0 {
		return fmt.Errorf("project deleted but %d task(s) were not moved to the inbox: %w",
			len(errs), errors.Join(errs...))
	}
	return nil
}
