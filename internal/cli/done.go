package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/existflow/taskdeck/internal/model"
)

var doneCmd = &cobra.Command{
	Use:   "done [task-id]",
	Short: "Mark a task as done",
	Long: `Mark a task as completed.

Examples:
  taskdeck done abc123
  taskdeck done abc123 --undo`,
	Args: cobra.ExactArgs(1),
	RunE: runDone,
}

var doneUndo bool

func init() {
	doneCmd.Flags().BoolVar(&doneUndo, "undo", false, "Mark task as not done")
}

func runDone(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openReadyApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	task, err := resolveTask(a.store.Snapshot(), args[0])
	if err != nil {
		return err
	}

	done := !doneUndo
	if task.Completed == done {
		state := "open"
		if done {
			state = "done"
		}
		fmt.Printf("Nothing to change: \"%s\" is already %s\n", task.Title, state)
		return nil
	}

	if err := a.store.UpdateTask(ctx, task.ID, model.TaskPatch{Completed: &done}); err != nil {
		return shown(err)
	}

	if done {
		fmt.Printf("  Completed: \"%s\"\n", task.Title)
	} else {
		fmt.Printf("  Reopened: \"%s\"\n", task.Title)
	}

	return nil
}
