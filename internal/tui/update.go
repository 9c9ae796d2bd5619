package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/existflow/taskdeck/internal/logger"
	"github.com/existflow/taskdeck/internal/model"
	"github.com/existflow/taskdeck/internal/notify"
	"github.com/existflow/taskdeck/internal/store"
)

// tickMsg is sent every second for time updates
type tickMsg time.Time

// snapshotMsg carries a new store state
type snapshotMsg store.Snapshot

// noteMsg carries a notification from the store
type noteMsg notify.Notification

// opDoneMsg reports the end of a background store call
type opDoneMsg struct {
	op  string
	err error
}

// signedOutMsg is sent once the session has been ended
type signedOutMsg struct{ err error }

// Init starts the clock and the store listeners
func (m Model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), m.waitForSnapshot(), m.waitForNote())
}

func tickCmd() tea.Cmd {
	return tea.Every(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitForSnapshot delivers the next store snapshot
func (m Model) waitForSnapshot() tea.Cmd {
	ch := m.snapCh
	return func() tea.Msg {
		return snapshotMsg(<-ch)
	}
}

// waitForNote delivers the next notification
func (m Model) waitForNote() tea.Cmd {
	if m.notes == nil {
		return nil
	}
	ch := m.notes.C
	return func() tea.Msg {
		return noteMsg(<-ch)
	}
}

// run executes a store call off the UI goroutine
func (m Model) run(op string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{op: op, err: fn(context.Background())}
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		// Let recently completed tasks sink once the delay passes
		needsRefresh := false
		for id, doneTime := range m.recentlyDone {
			if m.now().Sub(doneTime) >= doneDelay {
				delete(m.recentlyDone, id)
				needsRefresh = true
			}
		}
		if needsRefresh {
			m.loadTasks()
		}
		return m, tickCmd()

	case snapshotMsg:
		m.setSnapshot(store.Snapshot(msg))
		return m, m.waitForSnapshot()

	case noteMsg:
		n := notify.Notification(msg)
		m.message = n.String()
		m.messageErr = n.Kind == notify.KindError
		return m, m.waitForNote()

	case opDoneMsg:
		if msg.err != nil {
			logger.Debug("Store call failed", logger.F("op", msg.op), logger.F("error", msg.err))
		}
		return m, nil

	case signedOutMsg:
		if msg.err != nil {
			m.message = fmt.Sprintf("Logout error: %v", msg.err)
			m.messageErr = true
			return m, nil
		}
		return m, tea.Quit

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case ModeAddTask, ModeAddProject, ModeEditTask, ModeEditDescription:
			return m.updateInput(msg)
		case ModeFilter:
			return m.updateFilter(msg)
		case ModeConfirmDelete:
			return m.updateConfirm(msg)
		case ModeHelp, ModeDetail:
			m.mode = ModeNormal
			return m, nil
		}

		return m.handleNormalKeys(msg)
	}

	return m, nil
}

// handleNormalKeys handles key presses in normal mode
func (m Model) handleNormalKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		if m.unsubscribe != nil {
			m.unsubscribe()
		}
		return m, tea.Quit

	case key.Matches(msg, keys.Tab):
		if m.pane == PaneSidebar {
			m.pane = PaneTaskList
		} else {
			m.pane = PaneSidebar
		}

	case key.Matches(msg, keys.Left):
		m.pane = PaneSidebar

	case key.Matches(msg, keys.Right):
		m.pane = PaneTaskList

	case key.Matches(msg, keys.Up):
		m.handleUp()

	case key.Matches(msg, keys.Down):
		m.handleDown()

	case msg.String() == "G":
		m.handleGoBottom()

	case key.Matches(msg, keys.Priority):
		cmd := m.handlePriority(msg.String())
		return m, cmd

	case key.Matches(msg, keys.Add):
		return m.startAddTask()

	case key.Matches(msg, keys.Project):
		return m.startAddProject()

	case key.Matches(msg, keys.Done), key.Matches(msg, keys.Enter):
		if m.pane == PaneSidebar && key.Matches(msg, keys.Enter) {
			m.pane = PaneTaskList
			return m, nil
		}
		cmd := m.handleToggleDone()
		return m, cmd

	case key.Matches(msg, keys.Delete):
		return m.handleDelete()

	case key.Matches(msg, keys.Edit):
		return m.startEditTask()

	case key.Matches(msg, keys.EditDesc):
		return m.startEditDescription()

	case key.Matches(msg, keys.Detail):
		if _, ok := m.currentTask(); ok && m.pane == PaneTaskList {
			m.mode = ModeDetail
		}

	case msg.String() == "/":
		return m.startFilter()

	case msg.String() == "n":
		m.handleNextMatch()

	case msg.String() == "N":
		m.handlePrevMatch()

	case key.Matches(msg, keys.Escape):
		if m.filterText != "" {
			m.filterText = ""
			m.matchIndices = nil
			m.message = "Filter cleared"
			m.messageErr = false
		}

	case key.Matches(msg, keys.Help):
		m.mode = ModeHelp

	case key.Matches(msg, keys.Logout):
		cmd := m.handleLogout()
		return m, cmd

	case key.Matches(msg, keys.Refresh):
		m.handleRefresh()
	}

	return m, nil
}

func (m *Model) handleUp() {
	if m.pane == PaneSidebar {
		if m.viewCursor > 0 {
			m.viewCursor--
			m.taskCursor = 0
			m.loadTasks()
		}
	} else if m.taskCursor > 0 {
		m.taskCursor--
	}
}

func (m *Model) handleDown() {
	if m.pane == PaneSidebar {
		if m.viewCursor < len(m.views)-1 {
			m.viewCursor++
			m.taskCursor = 0
			m.loadTasks()
		}
	} else if m.taskCursor < len(m.tasks)-1 {
		m.taskCursor++
	}
}

func (m *Model) handleGoBottom() {
	if m.pane == PaneSidebar {
		m.viewCursor = len(m.views) - 1
		m.taskCursor = 0
		m.loadTasks()
	} else if len(m.tasks) > 0 {
		m.taskCursor = len(m.tasks) - 1
	}
}

// priorityKeys maps number keys to levels, 1 being the most urgent
var priorityKeys = map[string]model.Priority{
	"1": model.PriorityHigh,
	"2": model.PriorityMedium,
	"3": model.PriorityLow,
}

func (m *Model) handlePriority(k string) tea.Cmd {
	if m.pane != PaneTaskList {
		return nil
	}
	task, ok := m.currentTask()
	if !ok {
		return nil
	}
	p, ok := priorityKeys[k]
	if !ok || task.Priority == p {
		return nil
	}
	s := m.store
	return m.run("priority", func(ctx context.Context) error {
		return s.UpdateTask(ctx, task.ID, model.TaskPatch{Priority: &p})
	})
}

func (m Model) startAddTask() (tea.Model, tea.Cmd) {
	m.mode = ModeAddTask
	m.input.SetValue("")
	m.input.Placeholder = "Enter task..."
	m.input.Focus()
	return m, textinput.Blink
}

func (m Model) startAddProject() (tea.Model, tea.Cmd) {
	m.mode = ModeAddProject
	m.input.SetValue("")
	m.input.Placeholder = "Enter project name..."
	m.input.Focus()
	return m, textinput.Blink
}

func (m *Model) handleToggleDone() tea.Cmd {
	if m.pane != PaneTaskList {
		return nil
	}
	task, ok := m.currentTask()
	if !ok {
		return nil
	}
	if !task.Completed {
		m.recentlyDone[task.ID] = m.now()
	} else {
		delete(m.recentlyDone, task.ID)
	}
	s := m.store
	return m.run("toggle", func(ctx context.Context) error {
		return s.ToggleTask(ctx, task.ID)
	})
}

func (m Model) handleDelete() (tea.Model, tea.Cmd) {
	if m.pane == PaneSidebar {
		project, ok := m.currentProject()
		if !ok {
			return m, nil
		}
		if model.IsReservedProject(project.ID) {
			// The store refuses and says why
			s := m.store
			return m, m.run("delete project", func(ctx context.Context) error {
				return s.DeleteProject(ctx, project.ID)
			})
		}
		m.deleteTarget = &project
		m.mode = ModeConfirmDelete
		return m, nil
	}

	task, ok := m.currentTask()
	if !ok {
		return m, nil
	}
	s := m.store
	return m, m.run("delete task", func(ctx context.Context) error {
		return s.DeleteTask(ctx, task.ID)
	})
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	target := m.deleteTarget
	m.deleteTarget = nil
	m.mode = ModeNormal

	if target == nil || !key.Matches(msg, keys.Confirm) {
		m.message = "Cancelled"
		m.messageErr = false
		return m, nil
	}

	s := m.store
	id := target.ID
	return m, m.run("delete project", func(ctx context.Context) error {
		return s.DeleteProject(ctx, id)
	})
}

func (m Model) startEditTask() (tea.Model, tea.Cmd) {
	if m.pane != PaneTaskList {
		return m, nil
	}
	task, ok := m.currentTask()
	if !ok {
		return m, nil
	}
	m.mode = ModeEditTask
	m.input.SetValue(task.Title)
	m.input.Placeholder = "Edit task..."
	m.input.Focus()
	m.input.CursorEnd()
	return m, textinput.Blink
}

func (m Model) startEditDescription() (tea.Model, tea.Cmd) {
	if m.pane != PaneTaskList {
		return m, nil
	}
	task, ok := m.currentTask()
	if !ok {
		return m, nil
	}
	m.mode = ModeEditDescription
	m.input.SetValue(task.Description)
	m.input.Placeholder = "Description (markdown)..."
	m.input.Focus()
	m.input.CursorEnd()
	return m, textinput.Blink
}

func (m Model) startFilter() (tea.Model, tea.Cmd) {
	m.mode = ModeFilter
	m.input.SetValue(m.filterText)
	m.input.Placeholder = "/"
	m.input.Focus()
	return m, textinput.Blink
}

func (m *Model) handleNextMatch() {
	if len(m.matchIndices) > 0 {
		m.matchCursor = (m.matchCursor + 1) % len(m.matchIndices)
		m.taskCursor = m.matchIndices[m.matchCursor]
		m.message = fmt.Sprintf("[%d/%d] matches", m.matchCursor+1, len(m.matchIndices))
		m.messageErr = false
	}
}

func (m *Model) handlePrevMatch() {
	if len(m.matchIndices) > 0 {
		m.matchCursor--
		if m.matchCursor < 0 {
			m.matchCursor = len(m.matchIndices) - 1
		}
		m.taskCursor = m.matchIndices[m.matchCursor]
		m.message = fmt.Sprintf("[%d/%d] matches", m.matchCursor+1, len(m.matchIndices))
		m.messageErr = false
	}
}

func (m *Model) handleLogout() tea.Cmd {
	if m.provider == nil || m.provider.Current() == nil {
		m.message = "Not logged in"
		m.messageErr = false
		return nil
	}
	p := m.provider
	return func() tea.Msg {
		return signedOutMsg{err: p.SignOut(context.Background())}
	}
}

func (m *Model) handleRefresh() {
	if err := m.store.Reload(); err != nil {
		m.message = "Not logged in - use 'taskdeck auth login' first"
		m.messageErr = true
		return
	}
	m.recentlyDone = make(map[string]time.Time)
	m.message = "Reloading..."
	m.messageErr = false
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Escape):
		m.mode = ModeNormal
		return m, nil

	case msg.Type == tea.KeyEnter:
		mode := m.mode
		m.mode = ModeNormal
		value := strings.TrimSpace(m.input.Value())
		if value == "" && mode != ModeEditDescription {
			return m, nil
		}
		return m, m.submit(mode, value)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit turns a finished input into a store call
func (m *Model) submit(mode Mode, value string) tea.Cmd {
	s := m.store

	switch mode {
	case ModeAddTask:
		in := model.TaskInput{Title: value, Project: m.currentView().id}
		if in.Project == model.TodayView {
			now := m.now()
			due := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
			in.Project = model.InboxID
			in.DueDate = &due
		}
		return m.run("add task", func(ctx context.Context) error {
			_, err := s.AddTask(ctx, in)
			return err
		})

	case ModeAddProject:
		return m.run("add project", func(ctx context.Context) error {
			_, err := s.AddProject(ctx, model.ProjectInput{Name: value})
			return err
		})

	case ModeEditTask, ModeEditDescription:
		task, ok := m.currentTask()
		if !ok {
			return nil
		}
		patch := model.TaskPatch{Title: &value}
		if mode == ModeEditDescription {
			patch = model.TaskPatch{Description: &value}
		}
		return m.run("edit task", func(ctx context.Context) error {
			return s.UpdateTask(ctx, task.ID, patch)
		})
	}
	return nil
}

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Escape):
		m.mode = ModeNormal
		m.filterText = ""
		m.matchIndices = nil
		return m, nil

	case msg.Type == tea.KeyUp:
		if len(m.matchIndices) > 0 && m.matchCursor > 0 {
			m.matchCursor--
		}
		return m, nil

	case msg.Type == tea.KeyDown:
		if len(m.matchIndices) > 0 && m.matchCursor < len(m.matchIndices)-1 {
			m.matchCursor++
		}
		return m, nil

	case msg.Type == tea.KeyEnter:
		if len(m.matchIndices) > 0 && m.matchCursor < len(m.matchIndices) {
			m.taskCursor = m.matchIndices[m.matchCursor]
			m.pane = PaneTaskList
		}
		m.mode = ModeNormal
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	// Live filter as user types
	m.filterText = m.input.Value()
	m.applyFilter()
	return m, cmd
}

// applyFilter marks the visible tasks whose title or description matches
func (m *Model) applyFilter() {
	m.matchIndices = nil
	m.matchCursor = 0

	if m.filterText == "" {
		return
	}

	filter := strings.ToLower(m.filterText)
	for i, t := range m.tasks {
		if strings.Contains(strings.ToLower(t.Title), filter) ||
			strings.Contains(strings.ToLower(t.Description), filter) {
			m.matchIndices = append(m.matchIndices, i)
		}
	}
}
