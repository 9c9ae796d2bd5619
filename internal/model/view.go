package model

import (
	"sort"
	"time"
)

// TodayView is a virtual view listing tasks due today across all projects
const TodayView = "today"

// FilterTasks returns the tasks shown by a view: a project id or TodayView.
// Incomplete tasks come first, then newest first.
func FilterTasks(tasks []Task, view string, now time.Time) []Task {
	var out []Task
	for _, t := range tasks {
		if view == TodayView {
			if t.IsDueOn(now) {
				out = append(out, t)
			}
			continue
		}
		if t.Project == view {
			out = append(out, t)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Completed != out[j].Completed {
			return !out[i].Completed
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// SortNewestFirst orders tasks by creation time, newest first
func SortNewestFirst(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
}

// PendingCount returns the number of incomplete tasks in a project
func PendingCount(tasks []Task, projectID string) int {
	n := 0
	for _, t := range tasks {
		if t.Project == projectID && !t.Completed {
			n++
		}
	}
	return n
}
