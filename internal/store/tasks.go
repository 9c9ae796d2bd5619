package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/existflow/taskdeck/internal/logger"
	"github.com/existflow/taskdeck/internal/model"
)

const (
	msgTaskAdded        = "Task added successfully"
	msgTaskUpdated      = "Task updated successfully"
	msgTaskDeleted      = "Task deleted successfully"
	msgTaskAddFailed    = "Failed to add task"
	msgTaskUpdateFailed = "Failed to update task"
	msgTaskDeleteFailed = "Failed to delete task"
)

// AddTask creates a task on the server and, once it is stored, adds it to
// the front of the local list
func (s *Store) AddTask(ctx context.Context, in model.TaskInput) (model.Task, error) {
	in = in.Normalize()

	sess, err := s.begin()
	if err != nil {
		return model.Task{}, s.reject(msgTaskAddFailed, err)
	}
	if err := s.validateInput(in); err != nil {
		return model.Task{}, s.reject(msgTaskAddFailed, err)
	}

	rctx, done := bind(ctx, sess)
	defer done()

	task, err := s.gw.InsertTask(rctx, in)
	if err != nil {
		return model.Task{}, s.failed(sess, msgTaskAddFailed, err)
	}

	var orphaned bool
	if !s.commit(sess, func() bool {
		s.tasks = append([]model.Task{task}, s.tasks...)
		orphaned = !s.hasProjectLocked(task.Project)
		return true
	}) {
		return model.Task{}, ErrStaleSession
	}

	logger.Info("Task added", logger.F("id", task.ID), logger.F("project", task.Project))
	s.notifier.Success(msgTaskAdded)

	// the project was deleted while the insert was in flight
	if orphaned {
		if err := s.moveToInbox(rctx, sess, task.ID); err != nil {
			if errors.Is(err, ErrStaleSession) {
				return model.Task{}, err
			}
			return task, fmt.Errorf("task added but not moved to the inbox: %w", err)
		}
		task.Project = model.InboxID
	}
	return task, nil
}

// UpdateTask applies a partial update. An empty patch does nothing.
// Updating an id that is not held locally still persists the change.
func (s *Store) UpdateTask(ctx context.Context, id string, patch model.TaskPatch) error {
	if patch.IsEmpty() {
		return nil
	}

	sess, err := s.begin()
	if err != nil {
		return s.reject(msgTaskUpdateFailed, err)
	}

	rctx, done := bind(ctx, sess)
	defer done()

	if err := s.updateTask(rctx, sess, id, patch); err != nil {
		return err
	}
	s.notifier.Success(msgTaskUpdated)
	return nil
}

// ToggleTask flips the completed flag of a locally held task
func (s *Store) ToggleTask(ctx context.Context, id string) error {
	task, ok := s.Task(id)
	if !ok {
		return s.reject(msgTaskUpdateFailed, ErrTaskNotFound)
	}
	return s.UpdateTask(ctx, id, model.TaskPatch{Completed: model.Ptr(!task.Completed)})
}

// updateTask validates, persists and merges a patch without the success
// notification. Failures are reported.
func (s *Store) updateTask(ctx context.Context, sess *session, id string, patch model.TaskPatch) error {
	if err := s.validatePatch(patch); err != nil {
		return s.reject(msgTaskUpdateFailed, err)
	}

	if err := s.gw.UpdateTask(ctx, id, patch); err != nil {
		return s.failed(sess, msgTaskUpdateFailed, err)
	}

	var orphaned bool
	if !s.commit(sess, func() bool {
		for i := range s.tasks {
			if s.tasks[i].ID == id {
				s.tasks[i] = patch.Apply(s.tasks[i])
				orphaned = patch.Project != nil && !s.hasProjectLocked(*patch.Project)
				return true
			}
		}
		logger.Debug("Updated task not held locally", logger.F("id", id))
		return false
	}) && !s.isCurrent(sess) {
		return ErrStaleSession
	}

	logger.Info("Task updated", logger.F("id", id))
	if orphaned {
		return s.moveToInbox(ctx, sess, id)
	}
	return nil
}

// moveToInbox reassigns a task whose project no longer exists
func (s *Store) moveToInbox(ctx context.Context, sess *session, id string) error {
	logger.Debug("Moving task to inbox", logger.F("id", id))
	return s.updateTask(ctx, sess, id, model.TaskPatch{Project: model.Ptr(model.InboxID)})
}

// DeleteTask removes a task on the server and then locally
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	sess, err := s.begin()
	if err != nil {
		return s.reject(msgTaskDeleteFailed, err)
	}

	rctx, done := bind(ctx, sess)
	defer done()

	if err := s.gw.DeleteTask(rctx, id); err != nil {
		return s.failed(sess, msgTaskDeleteFailed, err)
	}

	if !s.commit(sess, func() bool {
		for i := range s.tasks {
			if s.tasks[i].ID == id {
				s.tasks = append(s.tasks[:i:i], s.tasks[i+1:]...)
				return true
			}
		}
		return false
	}) && !s.isCurrent(sess) {
		return ErrStaleSession
	}

	logger.Info("Task deleted", logger.F("id", id))
	s.notifier.Success(msgTaskDeleted)
	return nil
}

func (s *Store) validateInput(in model.TaskInput) error {
	if in.Title == "" {
		return ErrEmptyTitle
	}
	if !in.Priority.Valid() {
		return ErrInvalidPriority
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasProjectLocked(in.Project) {
		return ErrUnknownProject
	}
	return nil
}

func (s *Store) validatePatch(p model.TaskPatch) error {
	if p.Title != nil && isBlank(*p.Title) {
		return ErrEmptyTitle
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return ErrInvalidPriority
	}
	if p.Project != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.hasProjectLocked(*p.Project) {
			return ErrUnknownProject
		}
	}
	return nil
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
