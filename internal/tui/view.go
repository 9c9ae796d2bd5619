package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/existflow/taskdeck/internal/model"
	"github.com/existflow/taskdeck/internal/store"
)

const sidebarWidth = 24

// View renders the UI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	sidebar := m.renderSidebar()
	taskList := m.renderTaskList()
	statusBar := m.renderStatusBar()

	mainContent := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, taskList)

	var modal string
	switch m.mode {
	case ModeAddTask, ModeAddProject, ModeEditTask, ModeEditDescription:
		modal = m.renderModal()
	case ModeFilter:
		modal = m.renderFilterModal()
	case ModeConfirmDelete:
		modal = m.renderConfirmModal()
	case ModeDetail:
		modal = m.renderDetail()
	case ModeHelp:
		mainContent = m.renderHelp()
	}
	if modal != "" {
		mainContent = lipgloss.Place(
			m.width, m.height-2,
			lipgloss.Center, lipgloss.Center,
			modal,
			lipgloss.WithWhitespaceChars(" "),
		)
	}

	return lipgloss.JoinVertical(lipgloss.Left, mainContent, statusBar)
}

func (m Model) renderSidebar() string {
	var s strings.Builder

	// Header with time
	s.WriteString(lipgloss.NewStyle().Bold(true).Foreground(Primary).Render("Taskdeck") + "\n")
	s.WriteString(HelpStyle.Render(m.now().Format("Mon Jan 2 15:04")) + "\n")
	s.WriteString(lipgloss.NewStyle().Foreground(Border).Render(strings.Repeat("─", sidebarWidth-5)) + "\n\n")

	for i, v := range m.views {
		cursor := "  "
		style := ProjectItemStyle
		if i == m.viewCursor {
			cursor = "❯ "
			if m.pane == PaneSidebar {
				style = ProjectItemSelectedStyle
			}
		}

		dot := lipgloss.NewStyle().Foreground(lipgloss.Color(v.color)).Render("●")
		line := fmt.Sprintf("%s%s %-12s %3d", cursor, dot, truncate(v.name, 12), m.pendingFor(v.id))
		s.WriteString(style.Render(line) + "\n")

		// Separate the virtual view from the projects
		if v.id == model.TodayView {
			s.WriteString("\n")
		}
	}

	s.WriteString("\n" + lipgloss.NewStyle().Foreground(Border).Render(strings.Repeat("─", sidebarWidth-5)) + "\n")
	s.WriteString(HelpStyle.Render("p new project"))

	return SidebarStyle.Width(sidebarWidth).Height(m.height - 2).Render(s.String())
}

func (m Model) renderTaskList() string {
	width := m.width - sidebarWidth - 2
	var s strings.Builder

	view := m.currentView()

	pending := 0
	for _, t := range m.tasks {
		if !t.Completed {
			pending++
		}
	}
	header := fmt.Sprintf("%s (%d pending)", view.name, pending)
	s.WriteString(lipgloss.NewStyle().Bold(true).Foreground(Primary).Render(header) + "\n")
	s.WriteString(lipgloss.NewStyle().Foreground(Border).Render(strings.Repeat("─", max(width-4, 0))) + "\n\n")

	switch {
	case m.snap.State == store.StateUnauthenticated:
		s.WriteString(HelpStyle.Render("  Signed out. Run 'taskdeck auth login'."))
	case m.snap.Loading():
		s.WriteString(HelpStyle.Render("  Loading your tasks..."))
	case len(m.tasks) == 0:
		s.WriteString(HelpStyle.Render("  No tasks. Press 'a' to add one."))
	}

	if m.snap.State == store.StateReady {
		s.WriteString(m.renderTasks(width))
	}

	return TaskListStyle.Width(width).Height(m.height - 2).Render(s.String())
}

func (m Model) renderTasks(width int) string {
	var s strings.Builder
	now := m.now()
	titleWidth := max(width-34, 10)

	matched := make(map[int]bool, len(m.matchIndices))
	for _, idx := range m.matchIndices {
		matched[idx] = true
	}

	for i, t := range m.tasks {
		cursor := "  "
		style := TaskItemStyle
		if i == m.taskCursor && m.pane == PaneTaskList {
			cursor = "❯ "
			style = TaskItemSelectedStyle
		}
		if matched[i] && i != m.taskCursor {
			style = lipgloss.NewStyle().Foreground(Highlight)
		}

		icon := "[ ]"
		if t.Completed {
			icon = "[x]"
			style = TaskDoneStyle
		}

		check := style.Render(cursor + icon)
		title := style.Render(fmt.Sprintf(" %-*s ", titleWidth, truncate(t.Title, titleWidth)))

		s.WriteString(check + title + FormatPriority(t.Priority) + " " + formatDue(t, now) + "\n")
	}
	return s.String()
}

// formatDue renders the due date column, highlighting overdue tasks
func formatDue(t model.Task, now time.Time) string {
	if t.DueDate == nil {
		return ""
	}
	switch {
	case t.IsOverdue(now):
		return lipgloss.NewStyle().Foreground(Overdue).Render(t.DueDate.Local().Format("Jan 2"))
	case t.IsDueOn(now):
		return lipgloss.NewStyle().Foreground(Completed).Render("today")
	default:
		return DueStyle.Render(t.DueDate.Local().Format("Jan 2"))
	}
}

func (m Model) renderStatusBar() string {
	// When in filter mode, show inline search input (like vim)
	if m.mode == ModeFilter {
		matches := ""
		if len(m.matchIndices) > 0 {
			matches = fmt.Sprintf(" [%d/%d]", m.matchCursor+1, len(m.matchIndices))
		} else if m.filterText != "" {
			matches = " [no match]"
		}
		return StatusBarStyle.Width(m.width).Render("/" + m.input.View() + matches)
	}

	help := "/:search  a:add  e:edit  x:done  1-3:priority  d:del  ?:help  q:quit"
	switch {
	case m.filterText != "":
		if len(m.matchIndices) > 0 {
			help = fmt.Sprintf("/%s  [%d/%d matches]  n:next  N:prev  Esc:clear",
				m.filterText, m.matchCursor+1, len(m.matchIndices))
		} else {
			help = fmt.Sprintf("/%s  [no matches]  Esc:clear", m.filterText)
		}
	case m.message != "" && m.messageErr:
		help = ErrorStyle.Render(m.message)
	case m.message != "":
		help = m.message
	}

	// Session state, right aligned
	state := ""
	switch m.snap.State {
	case store.StateLoading:
		state = "Loading..."
	case store.StateUnauthenticated:
		state = lipgloss.NewStyle().Foreground(Offline).Render("Signed out")
	case store.StateReady:
		if m.provider != nil {
			if id := m.provider.Current(); id != nil {
				state = id.Username
			}
		}
	}

	if state != "" {
		avail := m.width - lipgloss.Width(help) - lipgloss.Width(state) - 2
		if avail > 0 {
			help += strings.Repeat(" ", avail) + state
		} else {
			help += " " + state
		}
	}

	return StatusBarStyle.Width(m.width).Render(help)
}

func (m Model) renderModal() string {
	title := "Add Task"
	switch m.mode {
	case ModeAddProject:
		title = "New Project"
	case ModeEditTask:
		title = "Edit Task"
	case ModeEditDescription:
		title = "Edit Description"
	case ModeAddTask:
		if v := m.currentView(); v.id == model.TodayView {
			title = "Add Task due today"
		} else {
			title = fmt.Sprintf("Add Task to: %s", v.name)
		}
	}

	content := lipgloss.NewStyle().Bold(true).Render(title) + "\n\n"
	content += m.input.View() + "\n\n"
	content += HelpStyle.Render("Enter:save  Esc:cancel")

	return ModalStyle.Render(content)
}

func (m Model) renderFilterModal() string {
	modalWidth := 55
	maxResults := 8

	var content string
	content += lipgloss.NewStyle().Bold(true).Foreground(Primary).Render("Search") + "  "
	content += HelpStyle.Render(m.currentView().name) + "\n\n"
	content += "/" + m.input.View() + "\n\n"
	content += lipgloss.NewStyle().Foreground(Border).Render(strings.Repeat("─", modalWidth-6)) + "\n\n"

	switch {
	case m.filterText == "":
		content += HelpStyle.Render("Type to search...") + "\n"
	case len(m.matchIndices) == 0:
		content += HelpStyle.Render("No matches found") + "\n"
	default:
		content += fmt.Sprintf("%d matches\n\n", len(m.matchIndices))
		for i, idx := range m.matchIndices {
			if i >= maxResults {
				content += HelpStyle.Render(fmt.Sprintf("... +%d more", len(m.matchIndices)-maxResults)) + "\n"
				break
			}
			if idx >= len(m.tasks) {
				continue
			}

			t := m.tasks[idx]
			icon := "[ ]"
			if t.Completed {
				icon = "[x]"
			}

			marker := "  "
			style := lipgloss.NewStyle()
			if i == m.matchCursor {
				marker = "❯ "
				style = lipgloss.NewStyle().Bold(true).Foreground(Primary)
			}
			content += style.Render(fmt.Sprintf("%s%s %s", marker, icon, truncate(t.Title, modalWidth-12))) + "\n"
		}
	}

	content += "\n" + HelpStyle.Render("↑↓:nav  Enter:select  Esc:close")
	return ModalStyle.Width(modalWidth).Render(content)
}

func (m Model) renderConfirmModal() string {
	if m.deleteTarget == nil {
		return ""
	}
	n := len(m.snap.View(m.deleteTarget.ID, m.now()))

	content := ErrorStyle.Render("Delete project?") + "\n\n"
	content += fmt.Sprintf("%s and its %d task(s) move to the Inbox.\n\n", m.deleteTarget.Name, n)
	content += HelpStyle.Render("y:delete  any other key:cancel")
	return ModalStyle.Width(50).Render(content)
}

func (m Model) renderDetail() string {
	task, ok := m.currentTask()
	if !ok {
		return ""
	}
	modalWidth := min(max(m.width-10, 40), 80)

	projectName := task.Project
	if p, ok := m.snap.Project(task.Project); ok {
		projectName = p.Name
	}

	status := "open"
	if task.Completed {
		status = "done"
	}
	due := "none"
	if task.DueDate != nil {
		due = task.DueDate.Local().Format("Mon Jan 2 2006")
	}

	content := lipgloss.NewStyle().Bold(true).Foreground(Primary).Render(task.Title) + "\n\n"
	content += fmt.Sprintf("Project:  %s\n", projectName)
	content += fmt.Sprintf("Priority: %s\n", FormatPriority(task.Priority))
	content += fmt.Sprintf("Status:   %s\n", status)
	content += fmt.Sprintf("Due:      %s\n", due)
	content += fmt.Sprintf("Created:  %s\n\n", task.CreatedAt.Local().Format("Jan 2 2006 15:04"))
	content += RenderDescription(task.Description, modalWidth-8) + "\n\n"
	content += HelpStyle.Render("E:edit description  any key:close")

	return ModalStyle.Width(modalWidth).Render(content)
}

func (m Model) renderHelp() string {
	help := `
╭─── Keyboard Shortcuts ───╮
│                          │
│  Navigation              │
│  ──────────              │
│  j/↓    Move down        │
│  k/↑    Move up          │
│  h/l    Switch pane      │
│  Tab    Switch pane      │
│  G      Go to bottom     │
│  /      Search           │
│                          │
│  Actions                 │
│  ───────                 │
│  a       Add task        │
│  e/E     Edit title/desc │
│  i       Task details    │
│  x/Enter Toggle done     │
│  1-3     High/med/low    │
│  d       Delete          │
│  p       New project     │
│                          │
│  Other                   │
│  ─────                   │
│  R       Reload          │
│  L       Logout          │
│  ?       Toggle help     │
│  q       Quit            │
│                          │
╰──────────────────────────╯

     Press any key to close
`
	return lipgloss.Place(m.width, m.height-2, lipgloss.Center, lipgloss.Center, help)
}
