package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/existflow/taskdeck/internal/auth"
	"github.com/existflow/taskdeck/internal/config"
	"github.com/existflow/taskdeck/internal/logger"
	"github.com/existflow/taskdeck/internal/model"
	"github.com/existflow/taskdeck/internal/notify"
	"github.com/existflow/taskdeck/internal/remote"
	"github.com/existflow/taskdeck/internal/store"
)

var errNotSignedIn = errors.New("not signed in, run 'taskdeck auth login' first")

// shownError is an error the notifier already printed
type shownError struct{ err error }

func (e shownError) Error() string { return e.err.Error() }
func (e shownError) Unwrap() error { return e.err }

// shown marks err as already reported to the user
func shown(err error) error {
	if err == nil {
		return nil
	}
	return shownError{err}
}

// app wires the remote client, auth provider and task store for a command
type app struct {
	cfg      *config.Config
	client   *remote.Client
	provider *auth.Provider
	store    *store.Store
	detach   func()
}

// openApp builds the command's dependencies. Nothing is fetched until ready.
func openApp(n notify.Notifier) (*app, error) {
	cfg := currentConfig()

	client, err := remote.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	provider := auth.NewProvider(client)
	s := store.New(client, n)

	return &app{
		cfg:      cfg,
		client:   client,
		provider: provider,
		store:    s,
		detach:   s.Attach(provider),
	}, nil
}

func (a *app) close() {
	a.detach()
	a.store.Close()
}

// ready restores the saved session and waits for the initial load
func (a *app) ready(ctx context.Context) error {
	if err := a.provider.Restore(ctx); err != nil {
		return err
	}
	if a.provider.Current() == nil {
		return errNotSignedIn
	}
	return a.store.WaitReady(ctx)
}

// openReadyApp opens the app with console notifications and waits for data
func openReadyApp(ctx context.Context) (*app, error) {
	a, err := openApp(notify.NewConsole())
	if err != nil {
		return nil, err
	}
	if err := a.ready(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

// resolveTask finds a task by full id or unique id prefix
func resolveTask(snap store.Snapshot, ref string) (model.Task, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return model.Task{}, fmt.Errorf("task id required")
	}
	if t, ok := snap.Task(ref); ok {
		return t, nil
	}

	var matches []model.Task
	for _, t := range snap.Tasks {
		if strings.HasPrefix(t.ID, ref) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return model.Task{}, fmt.Errorf("task not found: %s", ref)
	case 1:
		return matches[0], nil
	default:
		return model.Task{}, fmt.Errorf("task id %q is ambiguous (%d matches)", ref, len(matches))
	}
}

// resolveProject finds a project by id, or by name ignoring case
func resolveProject(snap store.Snapshot, ref string) (model.Project, error) {
	ref = strings.TrimSpace(ref)
	if p, ok := snap.Project(ref); ok {
		return p, nil
	}
	for _, p := range snap.Projects {
		if strings.EqualFold(p.Name, ref) {
			return p, nil
		}
	}
	return model.Project{}, fmt.Errorf("project not found: %s", ref)
}

// parseDue understands today, tomorrow, +Nd and YYYY-MM-DD. The result is
// local midnight of that day.
func parseDue(s string, now time.Time) (time.Time, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch {
	case s == "today":
		return today, nil
	case s == "tomorrow":
		return today.AddDate(0, 0, 1), nil
	case strings.HasPrefix(s, "+") && strings.HasSuffix(s, "d"):
		var n int
		if _, err := fmt.Sscanf(s, "+%dd", &n); err != nil || n < 0 {
			return time.Time{}, fmt.Errorf("invalid due date %q", s)
		}
		return today.AddDate(0, 0, n), nil
	}

	d, err := time.ParseInLocation("2006-01-02", s, now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid due date %q (use today, tomorrow, +3d or 2006-01-02)", s)
	}
	return d, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Context file path
func contextFilePath() (string, error) {
	dir, err := config.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "context"), nil
}

// GetCurrentContext returns the current project context (empty means inbox)
func GetCurrentContext() string {
	path, err := contextFilePath()
	if err != nil {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// SetContext saves the current context
func SetContext(projectID string) error {
	path, err := contextFilePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	logger.Debug("Context set", logger.F("project", projectID))
	return os.WriteFile(path, []byte(projectID), 0644)
}

// ClearContext removes the context file
func ClearContext() error {
	path, err := contextFilePath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
