package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

// Remote subscribes to a Hub over a websocket.
type Remote struct {
	log    *slog.Logger
	url    string
	token  string
	dialer *websocket.Dialer
}

// NewRemote returns a channel reading from the hub at wsURL, authenticating
// with a bearer token when one is given.
func NewRemote(log *slog.Logger, wsURL, token string) *Remote {
	return &Remote{
		log:    log.With("component", "ws-channel"),
		url:    wsURL,
		token:  token,
		dialer: websocket.DefaultDialer,
	}
}

func (c *Remote) Subscribe(ctx context.Context, f Filter) (<-chan Event, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return nil, fmt.Errorf("parse realtime url: %w", err)
	}
	q := u.Query()
	if len(f.Kinds) > 0 {
		q.Set("tables", strings.Join(lo.Map(f.Kinds, func(k Kind, _ int) string { return string(k) }), ","))
	}
	if f.ThreadID != "" {
		q.Set("thread_id", f.ThreadID)
	}
	u.RawQuery = q.Encode()

	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, _, err := c.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return nil, fmt.Errorf("dial realtime: %w", err)
	}

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	out := make(chan Event, 64)
	go func() {
		defer close(out)
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					c.log.WarnContext(ctx, "realtime connection lost", "error", err)
				}
				return
			}
			e, err := Decode(payload)
			if err != nil {
				c.log.WarnContext(ctx, "event dropped", "error", err)
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
