package store

import "errors"

// Domain errors for the task store
var (
	// Session errors
	ErrNotAuthenticated = errors.New("not signed in")
	ErrNotReady         = errors.New("tasks are still loading")
	ErrStaleSession     = errors.New("result discarded: the signed-in user changed")

	// Validation errors
	ErrEmptyTitle      = errors.New("task title cannot be empty")
	ErrEmptyName       = errors.New("project name cannot be empty")
	ErrInvalidPriority = errors.New("invalid priority")
	ErrUnknownProject  = errors.New("project does not exist")
	ErrReservedProject = errors.New("default projects cannot be deleted")
	ErrReservedName    = errors.New("name is reserved for a default project")

	// Lookup errors
	ErrTaskNotFound    = errors.New("task not found")
	ErrProjectNotFound = errors.New("project not found")
)
