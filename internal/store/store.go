// Package store holds the signed-in user's tasks and projects in memory and
// keeps them consistent with the sync server.
//
// Every mutation is persisted through a Gateway first; local state changes
// only after the server confirms. The store follows the auth provider: a new
// identity discards everything and reloads, signing out returns to the
// default projects. Work started for one identity never lands in another's
// state.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/existflow/taskdeck/internal/auth"
	"github.com/existflow/taskdeck/internal/logger"
	"github.com/existflow/taskdeck/internal/model"
	"github.com/existflow/taskdeck/internal/notify"
)

// Gateway is the remote persistence the store writes through.
// Every call is scoped to the authenticated user by the implementation.
type Gateway interface {
	ListTasks(ctx context.Context) ([]model.Task, error)
	InsertTask(ctx context.Context, in model.TaskInput) (model.Task, error)
	UpdateTask(ctx context.Context, id string, patch model.TaskPatch) error
	DeleteTask(ctx context.Context, id string) error

	ListProjects(ctx context.Context) ([]model.Project, error)
	InsertProject(ctx context.Context, in model.ProjectInput) (model.Project, error)
	DeleteProject(ctx context.Context, id string) error
}

// IdentitySource supplies the current identity and its changes
type IdentitySource interface {
	Current() *auth.Identity
	Subscribe(fn func(*auth.Identity)) func()
}

// State is the store's position in the session lifecycle
type State int

const (
	StateUnauthenticated State = iota
	StateLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable copy of the store state
type Snapshot struct {
	State    State
	UserID   string
	Tasks    []model.Task
	Projects []model.Project
	Version  uint64
}

// Loading reports whether the initial fetch for the session is running
func (s Snapshot) Loading() bool {
	return s.State == StateLoading
}

// Task finds a task by id
func (s Snapshot) Task(id string) (model.Task, bool) {
	for _, t := range s.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return model.Task{}, false
}

// Project finds a project by id
func (s Snapshot) Project(id string) (model.Project, bool) {
	for _, p := range s.Projects {
		if p.ID == id {
			return p, true
		}
	}
	return model.Project{}, false
}

// View returns the tasks of a project or of model.TodayView
func (s Snapshot) View(view string, now time.Time) []model.Task {
	return model.FilterTasks(s.Tasks, view, now)
}

// session is one authenticated identity's lifetime in the store.
// Cancelling ctx aborts every remote call started for it.
type session struct {
	gen    uint64
	userID string
	ctx    context.Context
	cancel context.CancelFunc

	ready     chan struct{}
	readyOnce sync.Once
}

func (s *session) markReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}

// Store is the single source of truth for the current user's tasks and projects
type Store struct {
	gw       Gateway
	notifier notify.Notifier

	mu       sync.Mutex
	state    State
	sess     *session
	gen      uint64
	tasks    []model.Task
	projects []model.Project
	version  uint64
	subs     map[int]func(Snapshot)
	nextSub  int

	// emitMu keeps subscriber calls in commit order
	emitMu sync.Mutex
}

// New creates a store in the unauthenticated state.
// A nil notifier only logs.
func New(gw Gateway, notifier notify.Notifier) *Store {
	if notifier == nil {
		notifier = notify.Log{}
	}
	return &Store{
		gw:       gw,
		notifier: notifier,
		state:    StateUnauthenticated,
		projects: model.DefaultProjects(),
		subs:     make(map[int]func(Snapshot)),
	}
}

// Attach follows the identity of src until the returned function is called
func (s *Store) Attach(src IdentitySource) func() {
	cancel := src.Subscribe(s.SetIdentity)
	s.SetIdentity(src.Current())
	return cancel
}

// SetIdentity handles an identity change. A new user starts a fresh session
// and loads its data in the background; nil signs out. Repeating the
// current user is a no-op.
func (s *Store) SetIdentity(id *auth.Identity) {
	if id == nil {
		s.signOut()
		return
	}

	s.mu.Lock()
	same := s.sess != nil && s.sess.userID == id.UserID
	s.mu.Unlock()
	if same {
		return
	}
	s.startSession(id.UserID)
}

// Reload discards local state and fetches it again for the current user
func (s *Store) Reload() error {
	s.mu.Lock()
	sess := s.sess
	s.mu.Unlock()
	if sess == nil {
		return ErrNotAuthenticated
	}
	s.startSession(sess.userID)
	return nil
}

// Close ends the current session and cancels its in-flight calls
func (s *Store) Close() {
	s.signOut()
}

func (s *Store) startSession(userID string) {
	var sess *session
	s.commit(nil, func() bool {
		s.endSessionLocked()

		s.gen++
		ctx, cancel := context.WithCancel(context.Background())
		sess = &session{
			gen:    s.gen,
			userID: userID,
			ctx:    ctx,
			cancel: cancel,
			ready:  make(chan struct{}),
		}
		s.sess = sess
		s.state = StateLoading
		s.tasks = nil
		s.projects = model.DefaultProjects()
		return true
	})

	logger.Info("Loading tasks", logger.F("user", userID), logger.F("session", sess.gen))
	go s.load(sess)
}

func (s *Store) signOut() {
	s.commit(nil, func() bool {
		if s.state == StateUnauthenticated && s.sess == nil {
			return false
		}
		s.endSessionLocked()
		s.state = StateUnauthenticated
		s.tasks = nil
		s.projects = model.DefaultProjects()
		return true
	})
}

// endSessionLocked cancels the current session; s.mu must be held
func (s *Store) endSessionLocked() {
	if s.sess == nil {
		return
	}
	logger.Debug("Ending session", logger.F("user", s.sess.userID), logger.F("session", s.sess.gen))
	s.sess.cancel()
	s.sess.markReady()
	s.sess = nil
}

// load fetches tasks and custom projects concurrently. A failure falls back
// to an empty Ready state.
func (s *Store) load(sess *session) {
	defer sess.markReady()

	var (
		tasks    []model.Task
		projects []model.Project
	)
	g, ctx := errgroup.WithContext(sess.ctx)
	g.Go(func() error {
		var err error
		if tasks, err = s.gw.ListTasks(ctx); err != nil {
			return fmt.Errorf("list tasks: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if projects, err = s.gw.ListProjects(ctx); err != nil {
			return fmt.Errorf("list projects: %w", err)
		}
		return nil
	})
	err := g.Wait()

	if !s.isCurrent(sess) {
		logger.Debug("Discarding load for previous session", logger.F("session", sess.gen))
		return
	}

	if err != nil {
		logger.Error("Failed to load tasks", logger.F("user", sess.userID), logger.F("error", err))
		tasks, projects = nil, nil
	}

	applied := s.commit(sess, func() bool {
		s.state = StateReady
		s.tasks = append([]model.Task(nil), tasks...)
		model.SortNewestFirst(s.tasks)
		s.projects = mergeProjects(projects)
		return true
	})
	if !applied {
		return
	}

	if err != nil {
		s.notifier.Error("Failed to load your tasks", err)
		return
	}
	logger.Info("Tasks loaded",
		logger.F("user", sess.userID),
		logger.F("tasks", len(tasks)),
		logger.F("projects", len(projects)))
}

// mergeProjects puts the defaults first, followed by custom projects.
// Rows that reuse a reserved or already-seen id are skipped.
func mergeProjects(custom []model.Project) []model.Project {
	out := model.DefaultProjects()
	seen := make(map[string]bool, len(out)+len(custom))
	for _, p := range out {
		seen[p.ID] = true
	}
	for _, p := range custom {
		if seen[p.ID] {
			logger.Warn("Skipping duplicate project", logger.F("id", p.ID))
			continue
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	return out
}

// WaitReady blocks until the store is not loading
func (s *Store) WaitReady(ctx context.Context) error {
	for {
		s.mu.Lock()
		state, sess := s.state, s.sess
		s.mu.Unlock()

		if state != StateLoading || sess == nil {
			return nil
		}
		select {
		case <-sess.ready:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Snapshot returns a copy of the current state
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:    s.state,
		Tasks:    append([]model.Task(nil), s.tasks...),
		Projects: append([]model.Project(nil), s.projects...),
		Version:  s.version,
	}
	if s.sess != nil {
		snap.UserID = s.sess.userID
	}
	return snap
}

// State returns the current lifecycle state
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Task finds a task by id
func (s *Store) Task(id string) (model.Task, bool) {
	return s.Snapshot().Task(id)
}

// Project finds a project by id
func (s *Store) Project(id string) (model.Project, bool) {
	return s.Snapshot().Project(id)
}

// Tasks returns the tasks of a project or of model.TodayView
func (s *Store) Tasks(view string, now time.Time) []model.Task {
	return s.Snapshot().View(view, now)
}

// Subscribe registers fn to receive a snapshot after every state change.
// fn runs synchronously and must not call store mutations.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// commit applies a state change and publishes the result. With a non-nil
// sess the change is applied only while that session is still current.
// It reports whether the change was applied.
func (s *Store) commit(sess *session, apply func() bool) bool {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if sess != nil && s.sess != sess {
		s.mu.Unlock()
		return false
	}
	if !apply() {
		s.mu.Unlock()
		return false
	}
	s.version++
	snap := s.snapshotLocked()

	subs := make([]func(Snapshot), 0, len(s.subs))
	for i := 0; i < s.nextSub; i++ {
		if fn, ok := s.subs[i]; ok {
			subs = append(subs, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
	return true
}

func (s *Store) isCurrent(sess *session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sess == sess
}

// begin returns the session a mutation runs in
func (s *Store) begin() (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateUnauthenticated:
		return nil, ErrNotAuthenticated
	case StateLoading:
		return nil, ErrNotReady
	}
	return s.sess, nil
}

// bind derives a context for a remote call that is cancelled when either
// the caller's context or the session ends
func bind(ctx context.Context, sess *session) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(sess.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// reject reports a request refused before any remote call
func (s *Store) reject(msg string, err error) error {
	logger.Warn(msg, logger.F("reason", err))
	s.notifier.Error(msg, err)
	return err
}

// failed reports a remote failure, unless the session it belonged to is over
func (s *Store) failed(sess *session, msg string, err error) error {
	if !s.isCurrent(sess) {
		logger.Debug("Discarding result for previous session",
			logger.F("op", msg), logger.F("session", sess.gen), logger.F("error", err))
		return ErrStaleSession
	}
	logger.Error(msg, logger.F("user", sess.userID), logger.F("error", err))
	s.notifier.Error(msg, err)
	return fmt.Errorf("%s: %w", msg, err)
}

// hasProjectLocked reports whether id is a known project; s.mu must be held
func (s *Store) hasProjectLocked(id string) bool {
	for _, p := range s.projects {
		if p.ID == id {
			return true
		}
	}
	return false
}
