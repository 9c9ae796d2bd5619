package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/existflow/taskdeck/internal/model"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
	Long:  `Create, list, and delete projects for organizing tasks.`,
}

var projectNewCmd = &cobra.Command{
	Use:   "new [name]",
	Short: "Create a new project",
	Long: `Create a new project for organizing tasks.

Examples:
  taskdeck project new "Garden"
  taskdeck project new "Reading" --color "#FF6B6B"`,
	Args: cobra.ExactArgs(1),
	RunE: runProjectNew,
}

var projectListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all projects",
	RunE:    runProjectList,
}

var projectDeleteCmd = &cobra.Command{
	Use:     "delete [project]",
	Aliases: []string{"rm"},
	Short:   "Delete a project and move its tasks to the Inbox",
	Args:    cobra.ExactArgs(1),
	RunE:    runProjectDelete,
}

var (
	projectColor     string
	projectDeleteYes bool
)

func init() {
	projectNewCmd.Flags().StringVarP(&projectColor, "color", "c", model.DefaultColor, "Project color (hex)")
	projectDeleteCmd.Flags().BoolVarP(&projectDeleteYes, "yes", "y", false, "Do not ask for confirmation")

	projectCmd.AddCommand(projectNewCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectDeleteCmd)
}

func runProjectNew(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openReadyApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	p, err := a.store.AddProject(ctx, model.ProjectInput{Name: args[0], Color: projectColor})
	if err != nil {
		return shown(err)
	}

	fmt.Printf("  %s (id: %s)\n", p.Name, p.ID)
	return nil
}

func runProjectList(cmd *cobra.Command, args []string) error {
	a, err := openReadyApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	snap := a.store.Snapshot()

	fmt.Println()
	fmt.Printf("  %-38s  %-20s  %s\n", "ID", "Name", "Tasks")
	fmt.Println(strings.Repeat("─", 70))

	totalPending := 0
	for _, p := range snap.Projects {
		pending := model.PendingCount(snap.Tasks, p.ID)
		total := 0
		for _, t := range snap.Tasks {
			if t.Project == p.ID {
				total++
			}
		}
		totalPending += pending
		fmt.Printf("  %-38s  %-20s  %d/%d\n", p.ID, p.Name, pending, total)
	}

	fmt.Println(strings.Repeat("─", 70))
	fmt.Printf("  %d projects, %d pending tasks\n\n", len(snap.Projects), totalPending)

	return nil
}

func runProjectDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openReadyApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	snap := a.store.Snapshot()
	project, err := resolveProject(snap, args[0])
	if err != nil {
		return err
	}

	if !model.IsReservedProject(project.ID) && a.cfg.ConfirmDelete && !projectDeleteYes {
		n := len(snap.View(project.ID, time.Now()))
		if !confirm(fmt.Sprintf("About to delete project %s; its %d task(s) move to the Inbox.", project.Name, n)) {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	if err := a.store.DeleteProject(ctx, project.ID); err != nil {
		return shown(err)
	}

	if GetCurrentContext() == project.ID {
		_ = ClearContext()
	}
	return nil
}
