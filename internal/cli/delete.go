package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:     "delete [task-id]",
	Aliases: []string{"rm"},
	Short:   "Delete a task",
	Long: `Delete a task by its ID.

Examples:
  taskdeck delete abc123
  taskdeck rm abc123 --yes`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

var deleteYes bool

func init() {
	deleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "Do not ask for confirmation")
}

func runDelete(cmd *cobra.Command, args []string) error {
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

	if a.cfg.ConfirmDelete && !deleteYes {
		if !confirm(fmt.Sprintf("About to delete: \"%s\" (ID: %s)", task.Title, shortID(task.ID))) {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	if err := a.store.DeleteTask(ctx, task.ID); err != nil {
		return shown(err)
	}
	return nil
}

// confirm asks a yes/no question on stdin
func confirm(prompt string) bool {
	fmt.Println(prompt)
	fmt.Print("Are you sure? [y/N]: ")
	var answer string
	fmt.Scanln(&answer)
	return answer == "y" || answer == "Y"
}
