package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/existflow/taskdeck/internal/model"
)

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Manage project context",
	Long: `Set or view the current project context.

When a context is set, new tasks are added to that project by default.

Examples:
  taskdeck context              # Show current context
  taskdeck context ls           # List all projects
  taskdeck context set work     # Set context to the 'work' project
  taskdeck context clear        # Clear context (use Inbox)`,
	RunE: runContextShow,
}

var contextLsCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List all projects",
	RunE:    runContextList,
}

var contextSetCmd = &cobra.Command{
	Use:   "set [project]",
	Short: "Set the current project context",
	Args:  cobra.ExactArgs(1),
	RunE:  runContextSet,
}

var contextClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the current context",
	RunE:  runContextClear,
}

func init() {
	contextCmd.AddCommand(contextLsCmd)
	contextCmd.AddCommand(contextSetCmd)
	contextCmd.AddCommand(contextClearCmd)
}

func runContextShow(cmd *cobra.Command, args []string) error {
	current := GetCurrentContext()
	if current == "" || current == model.InboxID {
		fmt.Println("📥 Current context: Inbox (default)")
		return nil
	}

	a, err := openReadyApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	snap := a.store.Snapshot()
	project, ok := snap.Project(current)
	if !ok {
		fmt.Printf("⚠️  Context set to '%s' but project not found\n", current)
		return nil
	}

	fmt.Printf("📁 Current context: %s (%d pending)\n", project.Name, model.PendingCount(snap.Tasks, project.ID))
	return nil
}

func runContextList(cmd *cobra.Command, args []string) error {
	a, err := openReadyApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	snap := a.store.Snapshot()
	current := GetCurrentContext()
	if current == "" {
		current = model.InboxID
	}

	fmt.Println()
	for _, p := range snap.Projects {
		marker := "  "
		if p.ID == current {
			marker = "❯ "
		}
		fmt.Printf("%s%-38s  %-20s  %d pending\n", marker, p.ID, p.Name, model.PendingCount(snap.Tasks, p.ID))
	}
	fmt.Println()
	fmt.Println("Use 'taskdeck context set <project>' to switch context")

	return nil
}

func runContextSet(cmd *cobra.Command, args []string) error {
	a, err := openReadyApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	project, err := resolveProject(a.store.Snapshot(), args[0])
	if err != nil {
		return err
	}

	if err := SetContext(project.ID); err != nil {
		return fmt.Errorf("failed to set context: %w", err)
	}

	fmt.Printf("📁 Switched to: %s\n", project.Name)
	return nil
}

func runContextClear(cmd *cobra.Command, args []string) error {
	if err := ClearContext(); err != nil {
		return fmt.Errorf("failed to clear context: %w", err)
	}
	fmt.Println("📥 Context cleared, using Inbox")
	return nil
}
