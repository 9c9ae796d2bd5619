package cli

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/existflow/taskdeck/internal/model"
	"github.com/existflow/taskdeck/internal/store"
)

var editCmd = &cobra.Command{
	Use:   "edit [task-id]",
	Short: "Edit a task",
	Long: `Change fields of a task. Only the flags you pass are updated.

Examples:
  taskdeck edit abc123 --title "Call the bank"
  taskdeck edit abc123 -p high --due +3d
  taskdeck edit abc123 --no-due --project inbox`,
	Args: cobra.ExactArgs(1),
	RunE: runEdit,
}

var (
	editTitle       string
	editDescription string
	editPriority    string
	editProject     string
	editDue         string
	editNoDue       bool
)

func init() {
	editCmd.Flags().StringVar(&editTitle, "title", "", "New title")
	editCmd.Flags().StringVarP(&editDescription, "desc", "D", "", "New description (markdown)")
	editCmd.Flags().StringVarP(&editPriority, "priority", "p", "", "New priority (low, medium, high)")
	editCmd.Flags().StringVarP(&editProject, "project", "P", "", "Move to project (id or name)")
	editCmd.Flags().StringVarP(&editDue, "due", "d", "", "New due date (today, tomorrow, +3d, 2024-01-15)")
	editCmd.Flags().BoolVar(&editNoDue, "no-due", false, "Remove the due date")
}

func runEdit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openReadyApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	snap := a.store.Snapshot()
	task, err := resolveTask(snap, args[0])
	if err != nil {
		return err
	}

	patch, err := buildPatch(cmd, snap)
	if err != nil {
		return err
	}
	if patch.IsEmpty() {
		return errors.New("nothing to change, pass at least one flag")
	}

	if err := a.store.UpdateTask(ctx, task.ID, patch); err != nil {
		return shown(err)
	}
	return nil
}

// buildPatch collects the flags the user set into a patch
func buildPatch(cmd *cobra.Command, snap store.Snapshot) (model.TaskPatch, error) {
	var patch model.TaskPatch
	flags := cmd.Flags()

	if flags.Changed("title") {
		patch.Title = &editTitle
	}
	if flags.Changed("desc") {
		patch.Description = &editDescription
	}
	if flags.Changed("priority") {
		p, err := model.ParsePriority(editPriority)
		if err != nil {
			return patch, err
		}
		patch.Priority = &p
	}
	if flags.Changed("project") {
		p, err := resolveProject(snap, editProject)
		if err != nil {
			return patch, err
		}
		patch.Project = &p.ID
	}
	if flags.Changed("due") {
		due, err := parseDue(editDue, time.Now())
		if err != nil {
			return patch, err
		}
		patch.DueDate = &due
	}
	patch.ClearDueDate = editNoDue

	return patch, nil
}
