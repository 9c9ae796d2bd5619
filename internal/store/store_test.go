package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/existflow/taskdeck/internal/auth"
	"github.com/existflow/taskdeck/internal/model"
	"github.com/existflow/taskdeck/internal/notify"
)

var errOffline = errors.New("connection refused")

// fakeGateway is an in-memory Gateway. Hooks, when set, replace the default
// behavior of a call.
type fakeGateway struct {
	mu       sync.Mutex
	tasks    []model.Task
	projects []model.Project
	nextID   int
	calls    map[string]int

	listErr   error
	insertErr error
	updateErr map[string]error // task id -> error
	deleteErr error

	listTasksHook  func(ctx context.Context) ([]model.Task, error)
	insertTaskHook func(ctx context.Context, in model.TaskInput) (model.Task, error)
	updateTaskHook func(ctx context.Context, id string, patch model.TaskPatch) error // runs before the default update
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		calls:     make(map[string]int),
		updateErr: make(map[string]error),
	}
}

func (f *fakeGateway) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeGateway) record(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
}

func (f *fakeGateway) ListTasks(ctx context.Context) ([]model.Task, error) {
	f.record("ListTasks")
	if f.listTasksHook != nil {
		return f.listTasksHook(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]model.Task(nil), f.tasks...), nil
}

func (f *fakeGateway) InsertTask(ctx context.Context, in model.TaskInput) (model.Task, error) {
	f.record("InsertTask")
	if f.insertTaskHook != nil {
		return f.insertTaskHook(ctx, in)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return model.Task{}, f.insertErr
	}
	f.nextID++
	t := model.Task{
		ID:          fmt.Sprintf("t%d", f.nextID),
		Title:       in.Title,
		Description: in.Description,
		Completed:   in.Completed,
		Project:     in.Project,
		Priority:    in.Priority,
		DueDate:     in.DueDate,
		CreatedAt:   time.Now(),
	}
	f.tasks = append(f.tasks, t)
	return t, nil
}

func (f *fakeGateway) UpdateTask(ctx context.Context, id string, patch model.TaskPatch) error {
	f.record("UpdateTask")
	if f.updateTaskHook != nil {
		if err := f.updateTaskHook(ctx, id, patch); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.updateErr[id]; err != nil {
		return err
	}
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			f.tasks[i] = patch.Apply(f.tasks[i])
		}
	}
	return nil
}

func (f *fakeGateway) DeleteTask(_ context.Context, id string) error {
	f.record("DeleteTask")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeGateway) ListProjects(context.Context) ([]model.Project, error) {
	f.record("ListProjects")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]model.Project(nil), f.projects...), nil
}

func (f *fakeGateway) InsertProject(_ context.Context, in model.ProjectInput) (model.Project, error) {
	f.record("InsertProject")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return model.Project{}, f.insertErr
	}
	f.nextID++
	p := model.Project{ID: fmt.Sprintf("p%d", f.nextID), Name: in.Name, Color: in.Color}
	f.projects = append(f.projects, p)
	return p, nil
}

func (f *fakeGateway) DeleteProject(_ context.Context, id string) error {
	f.record("DeleteProject")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for i := range f.projects {
		if f.projects[i].ID == id {
			f.projects = append(f.projects[:i], f.projects[i+1:]...)
			break
		}
	}
	return nil
}

var (
	alice = &auth.Identity{UserID: "u-alice", Username: "alice"}
	bob   = &auth.Identity{UserID: "u-bob", Username: "bob"}
)

// setupStore signs alice in against gw and waits for the initial load
func setupStore(t *testing.T, gw *fakeGateway) (*Store, *notify.Recorder) {
	t.Helper()

	rec := &notify.Recorder{}
	s := New(gw, rec)
	s.SetIdentity(alice)
	waitReady(t, s)
	return s, rec
}

func waitReady(t *testing.T, s *Store) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.WaitReady(ctx); err != nil {
		t.Fatalf("WaitReady() error = %v", err)
	}
}

func seededGateway() *fakeGateway {
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	gw := newFakeGateway()
	gw.tasks = []model.Task{
		{ID: "a", Title: "Old", Project: model.InboxID, Priority: model.PriorityLow, CreatedAt: base},
		{ID: "b", Title: "New", Project: "p-garden", Priority: model.PriorityHigh, CreatedAt: base.Add(time.Hour)},
		{ID: "c", Title: "Also garden", Project: "p-garden", Priority: model.PriorityMedium, CreatedAt: base.Add(30 * time.Minute)},
	}
	gw.projects = []model.Project{{ID: "p-garden", Name: "Garden", Color: "#00ff00"}}
	return gw
}

func TestUnauthenticatedRejectsMutations(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	rec := &notify.Recorder{}
	s := New(gw, rec)

	if _, err := s.AddTask(context.Background(), model.TaskInput{Title: "Buy milk"}); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("Expected ErrNotAuthenticated, got %v", err)
	}
	if err := s.DeleteTask(context.Background(), "a"); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("Expected ErrNotAuthenticated, got %v", err)
	}
	if _, err := s.AddProject(context.Background(), model.ProjectInput{Name: "Garden"}); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("Expected ErrNotAuthenticated, got %v", err)
	}

	if gw.count("InsertTask")+gw.count("DeleteTask")+gw.count("InsertProject") != 0 {
		t.Error("Expected no remote calls without a session")
	}
	if len(rec.Errors()) != 3 {
		t.Errorf("Expected 3 error notifications, got %d", len(rec.Errors()))
	}

	snap := s.Snapshot()
	if snap.State != StateUnauthenticated || len(snap.Projects) != 3 {
		t.Errorf("Expected unauthenticated with default projects, got %s with %d projects", snap.State, len(snap.Projects))
	}
}

func TestInitialLoad(t *testing.T) {
	t.Parallel()

	s, rec := setupStore(t, seededGateway())

	snap := s.Snapshot()
	if snap.State != StateReady || snap.Loading() {
		t.Fatalf("Expected ready, got %s", snap.State)
	}
	if snap.UserID != alice.UserID {
		t.Errorf("Expected user %s, got %s", alice.UserID, snap.UserID)
	}

	wantOrder := []string{"b", "c", "a"}
	if len(snap.Tasks) != len(wantOrder) {
		t.Fatalf("Expected %d tasks, got %d", len(wantOrder), len(snap.Tasks))
	}
	for i, id := range wantOrder {
		if snap.Tasks[i].ID != id {
			t.Errorf("Tasks[%d] = %s, want %s", i, snap.Tasks[i].ID, id)
		}
	}

	wantProjects := []string{model.InboxID, model.PersonalID, model.WorkID, "p-garden"}
	if len(snap.Projects) != len(wantProjects) {
		t.Fatalf("Expected %d projects, got %d", len(wantProjects), len(snap.Projects))
	}
	for i, id := range wantProjects {
		if snap.Projects[i].ID != id {
			t.Errorf("Projects[%d] = %s, want %s", i, snap.Projects[i].ID, id)
		}
	}

	if len(rec.All()) != 0 {
		t.Errorf("Expected no notifications for a clean load, got %v", rec.All())
	}
}

func TestInitialLoadFailureFallsBackToDefaults(t *testing.T) {
	t.Parallel()

	gw := seededGateway()
	gw.listErr = errOffline
	s, rec := setupStore(t, gw)

	snap := s.Snapshot()
	if snap.State != StateReady {
		t.Fatalf("Expected ready after failed load, got %s", snap.State)
	}
	if len(snap.Tasks) != 0 {
		t.Errorf("Expected no tasks, got %d", len(snap.Tasks))
	}
	if len(snap.Projects) != 3 {
		t.Errorf("Expected only default projects, got %d", len(snap.Projects))
	}

	errs := rec.Errors()
	if len(errs) != 1 || !errors.Is(errs[0].Err, errOffline) {
		t.Errorf("Expected one load error notification, got %v", errs)
	}
}

func TestAddTask(t *testing.T) {
	t.Parallel()

	gw := seededGateway()
	s, rec := setupStore(t, gw)

	task, err := s.AddTask(context.Background(), model.TaskInput{Title: "  Water plants  ", Project: "p-garden"})
	if err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}
	if task.Title != "Water plants" || task.Priority != model.PriorityMedium {
		t.Errorf("Expected normalized task, got %+v", task)
	}

	snap := s.Snapshot()
	if len(snap.Tasks) != 4 || snap.Tasks[0].ID != task.ID {
		t.Fatalf("Expected new task first, got %+v", snap.Tasks)
	}
	if last, _ := rec.Last(); last.Kind != notify.KindSuccess || last.Message != msgTaskAdded {
		t.Errorf("Expected success notification, got %+v", last)
	}
}

func TestAddTaskDefaultsToInbox(t *testing.T) {
	t.Parallel()

	s, _ := setupStore(t, newFakeGateway())

	task, err := s.AddTask(context.Background(), model.TaskInput{Title: "Call mom"})
	if err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}
	if task.Project != model.InboxID {
		t.Errorf("Expected inbox, got %s", task.Project)
	}
}

func TestAddTaskFailureLeavesStateUnchanged(t *testing.T) {
	t.Parallel()

	gw := seededGateway()
	s, rec := setupStore(t, gw)
	before := s.Snapshot()

	gw.mu.Lock()
	gw.insertErr = errOffline
	gw.mu.Unlock()

	_, err := s.AddTask(context.Background(), model.TaskInput{Title: "Water plants"})
	if !errors.Is(err, errOffline) {
		t.Fatalf("Expected wrapped remote error, got %v", err)
	}

	after := s.Snapshot()
	if len(after.Tasks) != len(before.Tasks) || after.Version != before.Version {
		t.Errorf("Expected no local change, tasks %d -> %d, version %d -> %d",
			len(before.Tasks), len(after.Tasks), before.Version, after.Version)
	}
	if last, _ := rec.Last(); last.Kind != notify.KindError || last.Message != msgTaskAddFailed {
		t.Errorf("Expected failure notification, got %+v", last)
	}
}

func TestAddTaskValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   model.TaskInput
		want error
	}{
		{"blank title", model.TaskInput{Title: "   "}, ErrEmptyTitle},
		{"unknown project", model.TaskInput{Title: "x", Project: "nope"}, ErrUnknownProject},
		{"bad priority", model.TaskInput{Title: "x", Priority: "urgent"}, ErrInvalidPriority},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := seededGateway()
			s, _ := setupStore(t, gw)

			if _, err := s.AddTask(context.Background(), tt.in); !errors.Is(err, tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, err)
			}
			if gw.count("InsertTask") != 0 {
				t.Error("Expected no remote call for invalid input")
			}
		})
	}
}

func TestUpdateTask(t *testing.T) {
	t.Parallel()

	gw := seededGateway()
	s, rec := setupStore(t, gw)
	ctx := context.Background()

	due := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	err := s.UpdateTask(ctx, "a", model.TaskPatch{Title: model.Ptr("Renamed"), DueDate: &due})
	if err != nil {
		t.Fatalf("UpdateTask() error = %v", err)
	}

	task, ok := s.Task("a")
	if !ok || task.Title != "Renamed" || task.DueDate == nil || !task.DueDate.Equal(due) {
		t.Fatalf("Expected merged task, got %+v", task)
	}
	if task.Priority != model.PriorityLow {
		t.Errorf("Expected untouched priority, got %s", task.Priority)
	}
	if last, _ := rec.Last(); last.Message != msgTaskUpdated {
		t.Errorf("Expected update notification, got %+v", last)
	}

	if err := s.UpdateTask(ctx, "a", model.TaskPatch{ClearDueDate: true}); err != nil {
		t.Fatalf("UpdateTask() error = %v", err)
	}
	if task, _ := s.Task("a"); task.DueDate != nil {
		t.Errorf("Expected due date cleared, got %v", task.DueDate)
	}
}

func TestUpdateTaskEmptyPatchIsNoop(t *testing.T) {
	t.Parallel()

	gw := seededGateway()
	s, rec := setupStore(t, gw)
	before := s.Snapshot().Version

	if err := s.UpdateTask(context.Background(), "a", model.TaskPatch{}); err != nil {
		t.Fatalf("UpdateTask() error = %v", err)
	}
	if gw.count("UpdateTask") != 0 {
		t.Error("Expected no remote call for empty patch")
	}
	if s.Snapshot().Version != before || len(rec.All()) != 0 {
		t.Error("Expected no state change or notification")
	}
}

func TestUpdateUnknownTaskPersistsOnly(t *testing.T) {
	t.Parallel()

	gw := seededGateway()
	s, _ := setupStore(t, gw)
	before := s.Snapshot()

	if err := s.UpdateTask(context.Background(), "ghost", model.TaskPatch{Completed: model.Ptr(true)}); err != nil {
		t.Fatalf("UpdateTask() error = %v", err)
	}
	if gw.count("UpdateTask") != 1 {
		t.Errorf("Expected the update to be persisted, got %d calls", gw.count("UpdateTask"))
	}
	if after := s.Snapshot(); after.Version != before.Version || len(after.Tasks) != len(before.Tasks) {
		t.Error("Expected local state unchanged")
	}
}

func TestToggleTask(t *testing.T) {
	t.Parallel()

	s, _ := setupStore(t, seededGateway())
	ctx := context.Background()

	if err := s.ToggleTask(ctx, "b"); err != nil {
		t.Fatalf("ToggleTask() error = %v", err)
	}
	if task, _ := s.Task("b"); !task.Completed {
		t.Error("Expected task completed")
	}
	if err := s.ToggleTask(ctx, "missing"); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("Expected ErrTaskNotFound, got %v", err)
	}
}

func TestDeleteTask(t *testing.T) {
	t.Parallel()

	gw := seededGateway()
	s, rec := setupStore(t, gw)
	ctx := context.Background()

	if err := s.DeleteTask(ctx, "b"); err != nil {
		t.Fatalf("DeleteTask() error = %v", err)
	}
	if _, ok := s.Task("b"); ok {
		t.Error("Expected task removed")
	}
	if last, _ := rec.Last(); last.Message != msgTaskDeleted {
		t.Errorf("Expected delete notification, got %+v", last)
	}

	gw.mu.Lock()
	gw.deleteErr = errOffline
	gw.mu.Unlock()
	if err := s.DeleteTask(ctx, "a"); !errors.Is(err, errOffline) {
		t.Fatalf("Expected remote error, got %v", err)
	}
	if _, ok := s.Task("a"); !ok {
		t.Error("Expected task kept after failed delete")
	}
}

func TestAddProject(t *testing.T) {
	t.Parallel()

	gw := seededGateway()
	s, rec := setupStore(t, gw)
	ctx := context.Background()

	p, err := s.AddProject(ctx, model.ProjectInput{Name: "Reading"})
	if err != nil {
		t.Fatalf("AddProject() error = %v", err)
	}
	if p.Color != model.DefaultColor {
		t.Errorf("Expected default color, got %s", p.Color)
	}
	if _, ok := s.Project(p.ID); !ok {
		t.Error("Expected project in store")
	}
	if last, _ := rec.Last(); last.Message != msgProjectAdded {
		t.Errorf("Expected project notification, got %+v", last)
	}

	for _, name := range []string{"", "  ", "inbox", "WORK"} {
		_, err := s.AddProject(ctx, model.ProjectInput{Name: name})
		if !errors.Is(err, ErrEmptyName) && !errors.Is(err, ErrReservedName) {
			t.Errorf("AddProject(%q) expected validation error, got %v", name, err)
		}
	}
	if gw.count("InsertProject") != 1 {
		t.Errorf("Expected 1 remote insert, got %d", gw.count("InsertProject"))
	}
}

func TestDeleteProjectMovesTasksToInbox(t *testing.T) {
	t.Parallel()

	gw := seededGateway()
	s, rec := setupStore(t, gw)

	if err := s.DeleteProject(context.Background(), "p-garden"); err != nil {
		t.Fatalf("DeleteProject() error = %v", err)
	}

	snap := s.Snapshot()
	if _, ok := snap.Project("p-garden"); ok {
		t.Error("Expected project removed")
	}
	for _, id := range []string{"b", "c"} {
		if task, _ := snap.Task(id); task.Project != model.InboxID {
			t.Errorf("Expected task %s moved to inbox, got %s", id, task.Project)
		}
	}
	if gw.count("UpdateTask") != 2 {
		t.Errorf("Expected 2 task moves, got %d", gw.count("UpdateTask"))
	}

	success := 0
	for _, n := range rec.All() {
		if n.Kind == notify.KindSuccess {
			success++
			if n.Message != msgProjectDeleted {
				t.Errorf("Unexpected success notification %q", n.Message)
			}
		}
	}
	if success != 1 {
		t.Errorf("Expected exactly one success notification, got %d", success)
	}
}

func TestDeleteProjectPartialMoveFailure(t *testing.T) {
	t.Parallel()

	gw := seededGateway()
	gw.updateErr["b"] = errOffline
	s, rec := setupStore(t, gw)

	err := s.DeleteProject(context.Background(), "p-garden")
	if !errors.Is(err, errOffline) {
		t.Fatalf("Expected joined move error, got %v", err)
	}

	snap := s.Snapshot()
	if _, ok := snap.Project("p-garden"); ok {
		t.Error("Expected project removed despite failed move")
	}
	if task, _ := snap.Task("c"); task.Project != model.InboxID {
		t.Errorf("Expected remaining task moved, got %s", task.Project)
	}
	if task, _ := snap.Task("b"); task.Project != "p-garden" {
		t.Errorf("Expected failed task untouched, got %s", task.Project)
	}
	if len(rec.Errors()) != 1 {
		t.Errorf("Expected one move failure notification, got %d", len(rec.Errors()))
	}
}

func TestDeleteDefaultProjectRejected(t *testing.T) {
	t.Parallel()

	gw := seededGateway()
	s, rec := setupStore(t, gw)

	for _, id := range []string{model.InboxID, model.PersonalID, model.WorkID} {
		if err := s.DeleteProject(context.Background(), id); !errors.Is(err, ErrReservedProject) {
			t.Errorf("DeleteProject(%s) expected ErrReservedProject, got %v", id, err)
		}
	}

	if gw.count("DeleteProject") != 0 {
		t.Error("Expected no remote call")
	}
	if got := len(s.Snapshot().Projects); got != 4 {
		t.Errorf("Expected 4 projects, got %d", got)
	}
	if last, _ := rec.Last(); last.Message != msgDefaultProjectDeleted || !errors.Is(last.Err, ErrReservedProject) {
		t.Errorf("Expected default project notification, got %+v", last)
	}
}

// assertNoOrphans fails if a task references a project that is not held
func assertNoOrphans(t *testing.T, snap Snapshot) {
	t.Helper()

	for _, task := range snap.Tasks {
		if _, ok := snap.Project(task.Project); !ok {
			t.Errorf("Task %s references missing project %q", task.ID, task.Project)
		}
	}
}

func TestAddTaskDuringProjectDeleteLandsInInbox(t *testing.T) {
	t.Parallel()

	gw := seededGateway()
	entered := make(chan struct{})
	release := make(chan struct{})
	gw.insertTaskHook = func(_ context.Context, in model.TaskInput) (model.Task, error) {
		close(entered)
		<-release
		return model.Task{ID: "late", Title: in.Title, Project: in.Project}, nil
	}
	s, _ := setupStore(t, gw)

	type result struct {
		task model.Task
		err  error
	}
	done := make(chan result, 1)
	go func() {
		task, err := s.AddTask(context.Background(), model.TaskInput{Title: "Plant bulbs", Project: "p-garden"})
		done <- result{task, err}
	}()

	<-entered
	if err := s.DeleteProject(context.Background(), "p-garden"); err != nil {
		t.Fatalf("DeleteProject() error = %v", err)
	}
	close(release)

	res := <-done
	if res.err != nil {
		t.Fatalf("AddTask() error = %v", res.err)
	}
	if res.task.Project != model.InboxID {
		t.Errorf("Expected returned task in inbox, got %s", res.task.Project)
	}
	if task, ok := s.Task("late"); !ok || task.Project != model.InboxID {
		t.Errorf("Expected late task moved to inbox, got %+v", task)
	}
	assertNoOrphans(t, s.Snapshot())
}

func TestMoveIntoDeletedProjectLandsInInbox(t *testing.T) {
	t.Parallel()

	gw := seededGateway()
	entered := make(chan struct{})
	release := make(chan struct{})
	gw.updateTaskHook = func(_ context.Context, id string, patch model.TaskPatch) error {
		if id == "a" && patch.Project != nil && *patch.Project == "p-garden" {
			close(entered)
			<-release
		}
		return nil
	}
	s, _ := setupStore(t, gw)

	done := make(chan error, 1)
	go func() {
		done <- s.UpdateTask(context.Background(), "a", model.TaskPatch{Project: model.Ptr("p-garden")})
	}()

	<-entered
	if err := s.DeleteProject(context.Background(), "p-garden"); err != nil {
		t.Fatalf("DeleteProject() error = %v", err)
	}
	close(release)

	if err := <-done; err != nil {
		t.Fatalf("UpdateTask() error = %v", err)
	}
	if task, _ := s.Task("a"); task.Project != model.InboxID {
		t.Errorf("Expected task a back in inbox, got %s", task.Project)
	}
	assertNoOrphans(t, s.Snapshot())
}

func TestDeleteProjectFailureKeepsState(t *testing.T) {
	t.Parallel()

	gw := seededGateway()
	gw.deleteErr = errOffline
	s, _ := setupStore(t, gw)

	if err := s.DeleteProject(context.Background(), "p-garden"); !errors.Is(err, errOffline) {
		t.Fatalf("Expected remote error, got %v", err)
	}
	if _, ok := s.Project("p-garden"); !ok {
		t.Error("Expected project kept")
	}
	if task, _ := s.Task("b"); task.Project != "p-garden" {
		t.Error("Expected tasks untouched")
	}
	if gw.count("UpdateTask") != 0 {
		t.Error("Expected no task moves")
	}
}

func TestMutationWhileLoadingRejected(t *testing.T) {
	t.Parallel()

	gw := seededGateway()
	release := make(chan struct{})
	gw.listTasksHook = func(ctx context.Context) ([]model.Task, error) {
		select {
		case <-release:
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s := New(gw, &notify.Recorder{})
	s.SetIdentity(alice)

	if !s.Snapshot().Loading() {
		t.Fatal("Expected loading")
	}
	if _, err := s.AddTask(context.Background(), model.TaskInput{Title: "x"}); !errors.Is(err, ErrNotReady) {
		t.Errorf("Expected ErrNotReady, got %v", err)
	}

	close(release)
	waitReady(t, s)
	if s.State() != StateReady {
		t.Errorf("Expected ready, got %s", s.State())
	}
}

func TestUserSwitchDiscardsStaleLoad(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	rec := &notify.Recorder{}

	var (
		mu    sync.Mutex
		first = true
	)
	started := make(chan struct{})
	gw.listTasksHook = func(ctx context.Context) ([]model.Task, error) {
		mu.Lock()
		isFirst := first
		first = false
		mu.Unlock()

		if isFirst {
			close(started)
			<-ctx.Done()
			return []model.Task{{ID: "alice-task", Title: "secret", Project: model.InboxID}}, ctx.Err()
		}
		return []model.Task{{ID: "bob-task", Title: "mine", Project: model.InboxID}}, nil
	}

	s := New(gw, rec)
	s.SetIdentity(alice)
	<-started
	s.SetIdentity(bob)
	waitReady(t, s)

	snap := s.Snapshot()
	if snap.UserID != bob.UserID {
		t.Fatalf("Expected bob's session, got %s", snap.UserID)
	}
	if len(snap.Tasks) != 1 || snap.Tasks[0].ID != "bob-task" {
		t.Errorf("Expected only bob's tasks, got %+v", snap.Tasks)
	}
	if len(rec.Errors()) != 0 {
		t.Errorf("Expected cancelled load to stay silent, got %v", rec.Errors())
	}
}

func TestStaleMutationDiscarded(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	rec := &notify.Recorder{}
	entered := make(chan struct{})
	release := make(chan struct{})
	gw.insertTaskHook = func(context.Context, model.TaskInput) (model.Task, error) {
		close(entered)
		<-release
		return model.Task{ID: "late", Title: "late", Project: model.InboxID}, nil
	}

	s := New(gw, rec)
	s.SetIdentity(alice)
	waitReady(t, s)

	result := make(chan error, 1)
	go func() {
		_, err := s.AddTask(context.Background(), model.TaskInput{Title: "late"})
		result <- err
	}()

	<-entered
	s.SetIdentity(bob)
	waitReady(t, s)
	close(release)

	if err := <-result; !errors.Is(err, ErrStaleSession) {
		t.Fatalf("Expected ErrStaleSession, got %v", err)
	}
	if _, ok := s.Task("late"); ok {
		t.Error("Expected stale task not applied to the new session")
	}
	for _, n := range rec.All() {
		if n.Message == msgTaskAdded {
			t.Error("Expected no success notification for a stale result")
		}
	}
}

func TestSignOutResetsState(t *testing.T) {
	t.Parallel()

	s, _ := setupStore(t, seededGateway())
	s.SetIdentity(nil)

	snap := s.Snapshot()
	if snap.State != StateUnauthenticated || snap.UserID != "" {
		t.Fatalf("Expected unauthenticated, got %s for %q", snap.State, snap.UserID)
	}
	if len(snap.Tasks) != 0 || len(snap.Projects) != 3 {
		t.Errorf("Expected defaults only, got %d tasks and %d projects", len(snap.Tasks), len(snap.Projects))
	}
	if err := s.Reload(); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("Expected ErrNotAuthenticated on reload, got %v", err)
	}
}

func TestSameIdentityDoesNotReload(t *testing.T) {
	t.Parallel()

	gw := seededGateway()
	s, _ := setupStore(t, gw)

	s.SetIdentity(&auth.Identity{UserID: alice.UserID, Username: "alice"})
	if gw.count("ListTasks") != 1 {
		t.Errorf("Expected a single load, got %d", gw.count("ListTasks"))
	}

	if err := s.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	waitReady(t, s)
	if gw.count("ListTasks") != 2 {
		t.Errorf("Expected reload to fetch again, got %d", gw.count("ListTasks"))
	}
}

func TestSubscribeSeesOrderedSnapshots(t *testing.T) {
	t.Parallel()

	gw := seededGateway()
	s := New(gw, nil)

	var (
		mu     sync.Mutex
		states []State
		last   uint64
		sorted = true
	)
	cancel := s.Subscribe(func(snap Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		if snap.Version <= last {
			sorted = false
		}
		last = snap.Version
		states = append(states, snap.State)
	})

	s.SetIdentity(alice)
	waitReady(t, s)
	if _, err := s.AddTask(context.Background(), model.TaskInput{Title: "x"}); err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}
	cancel()
	if _, err := s.AddTask(context.Background(), model.TaskInput{Title: "y"}); err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []State{StateLoading, StateReady, StateReady}
	if len(states) != len(want) {
		t.Fatalf("Expected states %v, got %v", want, states)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("state[%d] = %s, want %s", i, states[i], want[i])
		}
	}
	if !sorted {
		t.Error("Expected strictly increasing versions")
	}
}

type staticIdentity struct {
	mu  sync.Mutex
	id  *auth.Identity
	fns []func(*auth.Identity)
}

func (s *staticIdentity) Current() *auth.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

func (s *staticIdentity) Subscribe(fn func(*auth.Identity)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fns = append(s.fns, fn)
	return func() {}
}

func (s *staticIdentity) set(id *auth.Identity) {
	s.mu.Lock()
	s.id = id
	fns := append([]func(*auth.Identity){}, s.fns...)
	s.mu.Unlock()
	for _, fn := range fns {
		fn(id)
	}
}

func TestAttachFollowsIdentity(t *testing.T) {
	t.Parallel()

	src := &staticIdentity{id: alice}
	s := New(seededGateway(), nil)
	defer s.Attach(src)()

	waitReady(t, s)
	if snap := s.Snapshot(); snap.UserID != alice.UserID || snap.State != StateReady {
		t.Fatalf("Expected alice ready, got %s %s", snap.UserID, snap.State)
	}

	src.set(nil)
	if s.State() != StateUnauthenticated {
		t.Errorf("Expected unauthenticated after sign out, got %s", s.State())
	}
}

func TestTodayView(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 2, 15, 0, 0, 0, time.UTC)
	due := time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)
	gw := seededGateway()
	gw.tasks[0].DueDate = &due

	s, _ := setupStore(t, gw)
	today := s.Snapshot().View(model.TodayView, now)
	if len(today) != 1 || today[0].ID != "a" {
		t.Errorf("Expected task a due today, got %+v", today)
	}
	if garden := s.Tasks("p-garden", now); len(garden) != 2 {
		t.Errorf("Expected 2 garden tasks, got %d", len(garden))
	}
}
