package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/existflow/taskdeck/internal/model"
	"github.com/existflow/taskdeck/internal/tui"
)

var showCmd = &cobra.Command{
	Use:   "show [task-id]",
	Short: "Show a task with its description",
	Long: `Show one task. The description is rendered as markdown.

Examples:
  taskdeck show abc123`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

var showWidth int

func init() {
	showCmd.Flags().IntVarP(&showWidth, "width", "w", 80, "Wrap width for the description")
}

func runShow(cmd *cobra.Command, args []string) error {
	a, err := openReadyApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	snap := a.store.Snapshot()
	task, err := resolveTask(snap, args[0])
	if err != nil {
		return err
	}

	projectName := task.Project
	if p, ok := snap.Project(task.Project); ok {
		projectName = p.Name
	}

	writeTaskDetail(os.Stdout, task, projectName, time.Now(), showWidth)
	return nil
}

func writeTaskDetail(w io.Writer, t model.Task, projectName string, now time.Time, width int) {
	status := "open"
	if t.Completed {
		status = "done"
	}

	fmt.Fprintf(w, "\n%s\n\n", t.Title)
	fmt.Fprintf(w, "  ID:        %s\n", t.ID)
	fmt.Fprintf(w, "  Project:   %s\n", projectName)
	fmt.Fprintf(w, "  Priority:  %s\n", t.Priority)
	fmt.Fprintf(w, "  Status:    %s\n", status)
	if t.DueDate != nil {
		due := t.DueDate.In(now.Location()).Format("Mon Jan 2 2006")
		if t.IsOverdue(now) {
			due += " (overdue)"
		}
		fmt.Fprintf(w, "  Due:       %s\n", due)
	}
	fmt.Fprintf(w, "  Created:   %s\n\n", t.CreatedAt.In(now.Location()).Format("Jan 2 2006 15:04"))
	fmt.Fprintln(w, tui.RenderDescription(t.Description, width))
	fmt.Fprintln(w)
}
