// ABOUTME: Success/error notification sink for user-facing outcomes
// ABOUTME: Slog, console, and recording implementations

package notify

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/fatih/color"
)

// Notifier receives the human-readable outcome of a user action.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// Logger writes notifications to a slog logger.
type Logger struct {
	logger *slog.Logger
}

// NewLogger creates a notifier backed by logger. Pass nil for default.
func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger.With("component", "notify")}
}

func (n *Logger) Success(msg string) { n.logger.Info(msg) }

func (n *Logger) Error(msg string) { n.logger.Error(msg) }

// Console prints notifications as colored lines, like a toast in a terminal.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsole creates a console notifier writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{out: w}
}

func (c *Console) Success(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, color.GreenString("✓ %s", msg))
}

func (c *Console) Error(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, color.RedString("✗ %s", msg))
}

// Kind distinguishes recorded notifications.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Notification is one recorded call.
type Notification struct {
	Kind    Kind
	Message string
}

// Recorder keeps every notification in memory. Used by tests.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

func (r *Recorder) Success(msg string) { r.add(KindSuccess, msg) }

func (r *Recorder) Error(msg string) { r.add(KindError, msg) }

func (r *Recorder) add(kind Kind, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, Notification{Kind: kind, Message: msg})
}

// All returns a copy of the recorded notifications in order.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.items))
	copy(out, r.items)
	return out
}

// Errors returns the messages of recorded error notifications.
func (r *Recorder) Errors() []string { return r.messages(KindError) }

// Successes returns the messages of recorded success notifications.
func (r *Recorder) Successes() []string { return r.messages(KindSuccess) }

func (r *Recorder) messages(kind Kind) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.items {
		if n.Kind == kind {
			out = append(out, n.Message)
		}
	}
	return out
}

// Reset drops everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
}

// Discard ignores every notification.
type Discard struct{}

func (Discard) Success(string) {}

func (Discard) Error(string) {}
