package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/existflow/taskdeck/internal/model"
)

var addCmd = &cobra.Command{
	Use:   "add [title]",
	Short: "Add a new task",
	Long: `Add a new task to a project.

Examples:
  taskdeck add "Buy groceries"
  taskdeck add "Meeting with team" -p high
  taskdeck add "Feature work" --project work --due tomorrow`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

var (
	addProject     string
	addPriority    string
	addDue         string
	addDescription string
)

func init() {
	addCmd.Flags().StringVarP(&addProject, "project", "P", "", "Project id or name (default: current context)")
	addCmd.Flags().StringVarP(&addPriority, "priority", "p", "medium", "Priority (low, medium, high)")
	addCmd.Flags().StringVarP(&addDue, "due", "d", "", "Due date (today, tomorrow, +3d, 2024-01-15)")
	addCmd.Flags().StringVarP(&addDescription, "desc", "D", "", "Description (markdown)")
}

func runAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openReadyApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	snap := a.store.Snapshot()

	in := model.TaskInput{
		Title:       strings.Join(args, " "),
		Description: addDescription,
	}

	// Use context if no project specified
	projectRef := addProject
	if !cmd.Flags().Changed("project") {
		projectRef = GetCurrentContext()
	}
	if projectRef != "" {
		project, err := resolveProject(snap, projectRef)
		if err != nil {
			return err
		}
		in.Project = project.ID
	}

	if in.Priority, err = model.ParsePriority(addPriority); err != nil {
		return err
	}

	if addDue != "" {
		due, err := parseDue(addDue, time.Now())
		if err != nil {
			return err
		}
		in.DueDate = &due
	}

	task, err := a.store.AddTask(ctx, in)
	if err != nil {
		return shown(err)
	}

	projectName := task.Project
	if p, ok := a.store.Project(task.Project); ok {
		projectName = p.Name
	}
	fmt.Printf("  [%s] \"%s\" (%s, id %s)\n", projectName, task.Title, task.Priority, shortID(task.ID))
	return nil
}
