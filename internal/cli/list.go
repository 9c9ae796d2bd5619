package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/existflow/taskdeck/internal/model"
	"github.com/existflow/taskdeck/internal/store"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tasks",
	Long: `List tasks, optionally filtered by project.

Examples:
  taskdeck list
  taskdeck list --project work
  taskdeck list --today
  taskdeck list --done`,
	RunE: runList,
}

var (
	listProject     string
	listToday       bool
	listIncludeDone bool
)

func init() {
	listCmd.Flags().StringVarP(&listProject, "project", "P", "", "Filter by project id or name")
	listCmd.Flags().BoolVarP(&listToday, "today", "t", false, "Show tasks due today across projects")
	listCmd.Flags().BoolVar(&listIncludeDone, "done", false, "Include completed tasks")
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := openReadyApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	snap := a.store.Snapshot()
	now := time.Now()

	switch {
	case listToday:
		printTasks(os.Stdout, "Today", snap.View(model.TodayView, now), now, listIncludeDone)
	case listProject != "":
		project, err := resolveProject(snap, listProject)
		if err != nil {
			return err
		}
		printTasks(os.Stdout, project.Name, snap.View(project.ID, now), now, listIncludeDone)
	default:
		if len(snap.Tasks) == 0 {
			fmt.Println("No tasks found. Add one with: taskdeck add \"Your task\"")
			return nil
		}
		printTasksByProject(os.Stdout, snap, now, listIncludeDone)
	}

	return nil
}

// printTasksByProject prints non-empty projects in sidebar order
func printTasksByProject(w io.Writer, snap store.Snapshot, now time.Time, includeDone bool) {
	for _, p := range snap.Projects {
		tasks := snap.View(p.ID, now)
		if len(tasks) == 0 || (!includeDone && model.PendingCount(tasks, p.ID) == 0) {
			continue
		}
		printTasks(w, p.Name, tasks, now, includeDone)
	}
}

func printTasks(w io.Writer, title string, tasks []model.Task, now time.Time, includeDone bool) {
	pending := 0
	for _, t := range tasks {
		if !t.Completed {
			pending++
		}
	}

	fmt.Fprintf(w, "\n📁 %s (%d pending)\n", title, pending)
	fmt.Fprintln(w, strings.Repeat("─", 60))

	printed := 0
	for _, t := range tasks {
		if t.Completed && !includeDone {
			continue
		}
		printTask(w, t, now)
		printed++
	}
	if printed == 0 {
		fmt.Fprintln(w, "  Nothing to do 🎉")
	}
	fmt.Fprintln(w)
}

func printTask(w io.Writer, t model.Task, now time.Time) {
	// Status icon
	icon := "[ ]"
	if t.Completed {
		icon = "[x]"
	}

	// Priority indicator
	priority := "  low"
	switch t.Priority {
	case model.PriorityHigh:
		priority = "▲ high"
	case model.PriorityMedium:
		priority = "  medium"
	}

	// Due date
	due := ""
	if t.DueDate != nil {
		due = t.DueDate.In(now.Location()).Format("Jan 2")
		if t.IsOverdue(now) {
			due = "! " + due
		}
	}

	// Truncate title if too long
	title := t.Title
	if r := []rune(title); len(r) > 40 {
		title = string(r[:37]) + "..."
	}

	fmt.Fprintf(w, "  %s  %-8s  %-40s  %-10s  %s\n", icon, shortID(t.ID), title, due, priority)
}
