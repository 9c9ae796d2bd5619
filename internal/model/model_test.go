package model

import (
	"testing"
	"time"
)

func TestParsePriority(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Priority
		wantErr bool
	}{
		{"low", PriorityLow, false},
		{"MEDIUM", PriorityMedium, false},
		{" high ", PriorityHigh, false},
		{"h", PriorityHigh, false},
		{"urgent", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParsePriority(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePriority(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePriority(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTaskInputNormalize(t *testing.T) {
	t.Parallel()

	in := TaskInput{Title: "  Buy milk  "}.Normalize()
	if in.Title != "Buy milk" {
		t.Errorf("Expected trimmed title, got %q", in.Title)
	}
	if in.Project != InboxID {
		t.Errorf("Expected default project inbox, got %q", in.Project)
	}
	if in.Priority != PriorityMedium {
		t.Errorf("Expected default priority medium, got %q", in.Priority)
	}
}

func TestTaskPatchApply(t *testing.T) {
	t.Parallel()

	due := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	base := Task{
		ID:        "t1",
		Title:     "Write report",
		Project:   WorkID,
		Priority:  PriorityLow,
		DueDate:   &due,
		CreatedAt: due.Add(-48 * time.Hour),
	}

	got := TaskPatch{Completed: Ptr(true)}.Apply(base)
	if !got.Completed {
		t.Error("Expected completed to be set")
	}
	if got.Title != base.Title || got.Project != base.Project || got.Priority != base.Priority {
		t.Errorf("Expected other fields unchanged, got %+v", got)
	}
	if got.DueDate == nil || !got.DueDate.Equal(due) {
		t.Errorf("Expected due date unchanged, got %v", got.DueDate)
	}

	cleared := TaskPatch{ClearDueDate: true, DueDate: &due}.Apply(base)
	if cleared.DueDate != nil {
		t.Errorf("Expected due date cleared, got %v", cleared.DueDate)
	}
}

func TestTaskPatchFields(t *testing.T) {
	t.Parallel()

	if !(TaskPatch{}).IsEmpty() {
		t.Error("Expected zero patch to be empty")
	}

	fields := TaskPatch{Project: Ptr(InboxID), ClearDueDate: true}.Fields()
	if len(fields) != 2 {
		t.Fatalf("Expected 2 fields, got %d: %v", len(fields), fields)
	}
	if fields["project"] != InboxID {
		t.Errorf("Expected project inbox, got %v", fields["project"])
	}
	if v, ok := fields["due_date"]; !ok || v != nil {
		t.Errorf("Expected explicit null due_date, got %v (present=%v)", v, ok)
	}
}

func TestIsReservedName(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"Work", "work", " INBOX ", "Personal"} {
		if !IsReservedName(name) {
			t.Errorf("Expected %q to be reserved", name)
		}
	}
	for _, name := range []string{"Workshop", "Home", ""} {
		if IsReservedName(name) {
			t.Errorf("Expected %q not to be reserved", name)
		}
	}
	if IsReservedProject("Work") {
		t.Error("Reserved ids are matched exactly")
	}
}

func TestFilterTasks(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 5, 10, 15, 0, 0, 0, time.UTC)
	today := time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)
	tomorrow := today.Add(24 * time.Hour)

	tasks := []Task{
		{ID: "a", Project: InboxID, Completed: true, CreatedAt: now.Add(-1 * time.Hour)},
		{ID: "b", Project: InboxID, CreatedAt: now.Add(-3 * time.Hour), DueDate: &today},
		{ID: "c", Project: InboxID, CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "d", Project: WorkID, CreatedAt: now, DueDate: &today},
		{ID: "e", Project: WorkID, CreatedAt: now, DueDate: &tomorrow},
	}

	inbox := FilterTasks(tasks, InboxID, now)
	want := []string{"c", "b", "a"}
	if len(inbox) != len(want) {
		t.Fatalf("Expected %d inbox tasks, got %d", len(want), len(inbox))
	}
	for i, id := range want {
		if inbox[i].ID != id {
			t.Errorf("inbox[%d] = %s, want %s", i, inbox[i].ID, id)
		}
	}

	todays := FilterTasks(tasks, TodayView, now)
	if len(todays) != 2 || todays[0].ID != "d" || todays[1].ID != "b" {
		t.Errorf("Unexpected today view: %+v", todays)
	}

	if n := PendingCount(tasks, InboxID); n != 2 {
		t.Errorf("Expected 2 pending inbox tasks, got %d", n)
	}
}
