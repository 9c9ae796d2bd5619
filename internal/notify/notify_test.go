package notify

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestConsoleSplitsStreams(t *testing.T) {
	t.Parallel()

	var out, errOut bytes.Buffer
	c := &Console{Out: &out, Err: &errOut}

	c.Success("Task added successfully")
	c.Error("Failed to delete task", errors.New("connection refused"))

	if !strings.Contains(out.String(), "Task added successfully") {
		t.Errorf("Expected success on stdout, got %q", out.String())
	}
	if !strings.Contains(errOut.String(), "Failed to delete task: connection refused") {
		t.Errorf("Expected error with detail on stderr, got %q", errOut.String())
	}
}

func TestChanDropsWhenFull(t *testing.T) {
	t.Parallel()

	c := NewChan(1)
	c.Success("first")
	c.Success("second")

	if got := len(c.C); got != 1 {
		t.Fatalf("Expected 1 buffered notification, got %d", got)
	}
	if n := <-c.C; n.Message != "first" {
		t.Errorf("Expected first notification kept, got %q", n.Message)
	}
}

func TestMultiAndRecorder(t *testing.T) {
	t.Parallel()

	a, b := &Recorder{}, &Recorder{}
	m := Multi{a, b}
	m.Success("ok")
	m.Error("bad", nil)

	for _, r := range []*Recorder{a, b} {
		if len(r.All()) != 2 {
			t.Errorf("Expected 2 notifications, got %d", len(r.All()))
		}
		if len(r.Errors()) != 1 {
			t.Errorf("Expected 1 error, got %d", len(r.Errors()))
		}
		last, ok := r.Last()
		if !ok || last.Kind != KindError || last.String() != "bad" {
			t.Errorf("Unexpected last notification: %+v", last)
		}
	}
}
