// Package notify carries non-fatal, user-visible failure notices out of the
// sync engine.
package notify

import (
	"context"
	"log/slog"
	"sync"
)

// RetryMessage is the text shown for any failed remote mutation.
const RetryMessage = "action failed, please retry"

type Notice struct {
	Action  string
	Message string
	Err     error
}

type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

type Func func(ctx context.Context, n Notice)

func (f Func) Notify(ctx context.Context, n Notice) { f(ctx, n) }

// Failed builds the standard notice for a failed action.
func Failed(action string, err error) Notice {
	return Notice{Action: action, Message: RetryMessage, Err: err}
}

// Logger reports notices through slog at warn level.
type Logger struct {
	log *slog.Logger
}

func NewLogger(log *slog.Logger) *Logger {
	return &Logger{log: log}
}

func (l *Logger) Notify(ctx context.Context, n Notice) {
	l.log.WarnContext(ctx, n.Message, "action", n.Action, "error", n.Err)
}

// Recorder keeps every notice it receives.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) Notify(_ context.Context, n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

// Fanout delivers each notice to every wrapped notifier.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, n Notice) {
	for _, nt := range f {
		nt.Notify(ctx, n)
	}
}
