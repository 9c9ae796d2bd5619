// Package notify is the fire-and-forget channel the store uses to tell the
// user what happened. Nothing sent here is read back by the store.
package notify

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/existflow/taskdeck/internal/logger"
)

// Kind distinguishes confirmations from failures
type Kind int

const (
	KindSuccess Kind = iota
	KindError
)

// Notification is a single transient message
type Notification struct {
	Kind    Kind
	Message string
	Err     error
}

// String renders the message with the error detail, if any
func (n Notification) String() string {
	if n.Err != nil {
		return fmt.Sprintf("%s: %v", n.Message, n.Err)
	}
	return n.Message
}

// Notifier receives user-facing notifications
type Notifier interface {
	Success(msg string)
	Error(msg string, err error)
}

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#95E1A3")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
)

// Console prints notifications as styled lines, for the CLI
type Console struct {
	Out io.Writer
	Err io.Writer
}

// NewConsole writes successes to stdout and errors to stderr
func NewConsole() *Console {
	return &Console{Out: os.Stdout, Err: os.Stderr}
}

func (c *Console) Success(msg string) {
	fmt.Fprintln(c.Out, successStyle.Render("✓")+" "+msg)
}

func (c *Console) Error(msg string, err error) {
	n := Notification{Kind: KindError, Message: msg, Err: err}
	fmt.Fprintln(c.Err, errorStyle.Render("✗")+" "+n.String())
}

// Chan delivers notifications on a buffered channel without blocking.
// When the buffer is full the notification is dropped and logged.
type Chan struct {
	C chan Notification
}

// NewChan creates a channel notifier with the given buffer size
func NewChan(size int) *Chan {
	return &Chan{C: make(chan Notification, size)}
}

func (c *Chan) Success(msg string) {
	c.send(Notification{Kind: KindSuccess, Message: msg})
}

func (c *Chan) Error(msg string, err error) {
	c.send(Notification{Kind: KindError, Message: msg, Err: err})
}

func (c *Chan) send(n Notification) {
	select {
	case c.C <- n:
	default:
		logger.Warn("Notification dropped", logger.F("message", n.String()))
	}
}

// Log only records notifications in the log file
type Log struct{}

func (Log) Success(msg string) {
	logger.Info(msg)
}

func (Log) Error(msg string, err error) {
	logger.Error(msg, logger.F("error", err))
}

// Multi fans out to several notifiers
type Multi []Notifier

func (m Multi) Success(msg string) {
	for _, n := range m {
		n.Success(msg)
	}
}

func (m Multi) Error(msg string, err error) {
	for _, n := range m {
		n.Error(msg, err)
	}
}

// Recorder keeps every notification in memory
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

func (r *Recorder) Success(msg string) {
	r.record(Notification{Kind: KindSuccess, Message: msg})
}

func (r *Recorder) Error(msg string, err error) {
	r.record(Notification{Kind: KindError, Message: msg, Err: err})
}

func (r *Recorder) record(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

// All returns a copy of the recorded notifications
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}

// Last returns the most recent notification
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		return Notification{}, false
	}
	return r.items[len(r.items)-1], true
}

// Errors returns the recorded failures
func (r *Recorder) Errors() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Notification
	for _, n := range r.items {
		if n.Kind == KindError {
			out = append(out, n)
		}
	}
	return out
}
