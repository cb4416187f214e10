package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

type Handler interface {
	Handle(ctx context.Context, e Event) error
}

type HandlerFunc func(ctx context.Context, e Event) error

func (f HandlerFunc) Handle(ctx context.Context, e Event) error { return f(ctx, e) }

// Merger dispatches events to one handler per kind, one event at a time in
// arrival order.
type Merger struct {
	log      *slog.Logger
	handlers map[Kind]Handler
}

func NewMerger(log *slog.Logger) *Merger {
	return &Merger{
		log:      log.With("component", "merge"),
		handlers: make(map[Kind]Handler),
	}
}

// Handle registers h for kind, replacing any previous handler.
func (m *Merger) Handle(kind Kind, h Handler) {
	m.handlers[kind] = h
}

// Apply validates e and hands it to its kind's handler.
func (m *Merger) Apply(ctx context.Context, e Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	h, ok := m.handlers[e.Kind]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnhandledEvent, e.Kind)
	}
	if err := h.Handle(ctx, e); err != nil {
		return fmt.Errorf("merge %s: %w", e, err)
	}
	return nil
}

// Run applies events until the channel closes or ctx is done. Failed
// merges are logged and skipped.
func (m *Merger) Run(ctx context.Context, events <-chan Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-events:
			if !ok {
				return nil
			}
			err := m.Apply(ctx, e)
			switch {
			case err == nil:
			case errors.Is(err, ErrMalformedEvent), errors.Is(err, ErrUnhandledEvent):
				m.log.WarnContext(ctx, "event dropped", "event", e.String(), "error", err)
			default:
				m.log.ErrorContext(ctx, "event merge failed", "event", e.String(), "error", err)
			}
		}
	}
}
