package realtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
)

// DefaultChannel is the notification channel the change triggers publish
// on.
const DefaultChannel = "row_changes"

// Listener subscribes to Postgres NOTIFY payloads. Each subscription holds
// its own connection.
type Listener struct {
	log      *slog.Logger
	connStr  string
	channel  string
	capacity int
}

func NewListener(log *slog.Logger, connStr, channel string) *Listener {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Listener{
		log:      log.With("component", "pgnotify", "channel", channel),
		connStr:  connStr,
		channel:  channel,
		capacity: 256,
	}
}

func (l *Listener) Subscribe(ctx context.Context, f Filter) (<-chan Event, error) {
	conn, err := pgx.Connect(ctx, l.connStr)
	if err != nil {
		return nil, fmt.Errorf("connect listener: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		_ = conn.Close(context.Background())
		return nil, fmt.Errorf("listen %s: %w", l.channel, err)
	}

	out := make(chan Event, l.capacity)
	go func() {
		defer close(out)
		defer func() { _ = conn.Close(context.Background()) }()
		for {
			n, err := conn.WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() == nil {
					l.log.ErrorContext(ctx, "listener stopped", "error", err)
				}
				return
			}
			e, err := Decode([]byte(n.Payload))
			if err != nil {
				l.log.WarnContext(ctx, "notification dropped", "payload", n.Payload, "error", err)
				continue
			}
			if !f.Match(e) {
				continue
			}
			select {
			case out <- e:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
