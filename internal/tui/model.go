package tui

import (
	"sort"
	"time"

	"github.com/charmbracelet/bubbles/textinput"

	"github.com/existflow/taskdeck/internal/auth"
	"github.com/existflow/taskdeck/internal/logger"
	"github.com/existflow/taskdeck/internal/model"
	"github.com/existflow/taskdeck/internal/notify"
	"github.com/existflow/taskdeck/internal/store"
)

// Pane represents which pane is focused
type Pane int

const (
	PaneSidebar Pane = iota
	PaneTaskList
)

// Mode represents the current UI mode
type Mode int

const (
	ModeNormal Mode = iota
	ModeAddTask
	ModeAddProject
	ModeEditTask
	ModeEditDescription
	ModeFilter
	ModeConfirmDelete
	ModeDetail
	ModeHelp
)

// doneDelay keeps a just-completed task in place before it sinks
const doneDelay = 5 * time.Second

// sidebarItem is a selectable view: Today or a project
type sidebarItem struct {
	id    string
	name  string
	color string
}

// Model is the main TUI model
type Model struct {
	store    *store.Store
	provider *auth.Provider
	notes    *notify.Chan

	// snapshots delivered by the store, latest wins
	snapCh      chan store.Snapshot
	unsubscribe func()

	snap  store.Snapshot
	views []sidebarItem
	tasks []model.Task

	// UI state
	width      int
	height     int
	pane       Pane
	mode       Mode
	viewCursor int
	taskCursor int

	// Input
	input textinput.Model

	// Sorting state
	recentlyDone map[string]time.Time

	// Filter (vim-style)
	filterText   string
	matchIndices []int
	matchCursor  int

	// deleteTarget is the project awaiting confirmation
	deleteTarget *model.Project

	message    string
	messageErr bool
	now        func() time.Time
}

// NewModel creates a TUI model that renders s and reports the
// notifications sent to notes
func NewModel(s *store.Store, p *auth.Provider, notes *notify.Chan) Model {
	logger.Info("Initializing TUI model")

	ti := textinput.New()
	ti.Placeholder = "Enter task..."
	ti.CharLimit = 256
	ti.Width = 50

	m := Model{
		store:        s,
		provider:     p,
		notes:        notes,
		snapCh:       make(chan store.Snapshot, 1),
		pane:         PaneSidebar,
		mode:         ModeNormal,
		input:        ti,
		recentlyDone: make(map[string]time.Time),
		now:          time.Now,
	}

	ch := m.snapCh
	m.unsubscribe = s.Subscribe(func(snap store.Snapshot) {
		for {
			select {
			case ch <- snap:
				return
			default:
				select {
				case <-ch:
				default:
				}
			}
		}
	})

	m.setSnapshot(s.Snapshot())
	logger.Debug("TUI model initialized",
		logger.F("state", m.snap.State.String()),
		logger.F("projects", len(m.snap.Projects)),
		logger.F("tasks", len(m.snap.Tasks)))
	return m
}

// setSnapshot replaces the rendered state and keeps cursors in range
func (m *Model) setSnapshot(snap store.Snapshot) {
	m.snap = snap

	views := make([]sidebarItem, 0, len(snap.Projects)+1)
	views = append(views, sidebarItem{id: model.TodayView, name: "Today", color: string(Highlight)})
	for _, p := range snap.Projects {
		views = append(views, sidebarItem{id: p.ID, name: p.Name, color: p.Color})
	}
	m.views = views
	if m.viewCursor >= len(m.views) {
		m.viewCursor = len(m.views) - 1
	}
	m.loadTasks()
}

// loadTasks rebuilds the visible task list for the selected view
func (m *Model) loadTasks() {
	now := m.now()
	view := m.currentView()
	m.tasks = m.snap.View(view.id, now)

	// Active first, done last, except tasks completed moments ago
	effectiveDone := func(t model.Task) bool {
		if !t.Completed {
			return false
		}
		if at, ok := m.recentlyDone[t.ID]; ok && now.Sub(at) < doneDelay {
			return false
		}
		return true
	}
	sort.SliceStable(m.tasks, func(i, j int) bool {
		d1, d2 := effectiveDone(m.tasks[i]), effectiveDone(m.tasks[j])
		if d1 != d2 {
			return !d1
		}
		return m.tasks[i].CreatedAt.After(m.tasks[j].CreatedAt)
	})

	if m.taskCursor >= len(m.tasks) {
		m.taskCursor = len(m.tasks) - 1
	}
	if m.taskCursor < 0 {
		m.taskCursor = 0
	}
	if m.filterText != "" {
		m.applyFilter()
	}
}

func (m *Model) currentView() sidebarItem {
	if m.viewCursor < len(m.views) {
		return m.views[m.viewCursor]
	}
	return sidebarItem{id: model.InboxID, name: "Inbox"}
}

func (m *Model) currentProject() (model.Project, bool) {
	return m.snap.Project(m.currentView().id)
}

func (m *Model) currentTask() (model.Task, bool) {
	if m.taskCursor < len(m.tasks) {
		return m.tasks[m.taskCursor], true
	}
	return model.Task{}, false
}

// pendingFor counts incomplete tasks shown under a sidebar entry
func (m *Model) pendingFor(id string) int {
	if id != model.TodayView {
		return model.PendingCount(m.snap.Tasks, id)
	}
	n := 0
	for _, t := range m.snap.View(model.TodayView, m.now()) {
		if !t.Completed {
			n++
		}
	}
	return n
}
