package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var ErrUpstreamClosed = errors.New("upstream subscription closed")

type subscriber struct {
	filter Filter
	ch     chan Event
}

// Hub fans one upstream subscription out to in-process subscribers and
// websocket clients.
type Hub struct {
	log      *slog.Logger
	upgrader websocket.Upgrader
	capacity int
	retry    time.Duration

	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		log: log.With("component", "hub"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		capacity: 256,
		retry:    2 * time.Second,
		subs:     make(map[*subscriber]struct{}),
	}
}

// Run relays upstream events until ctx is done. A failed or closed upstream
// subscription is retried after a delay; events published upstream in the
// gap are lost.
func (h *Hub) Run(ctx context.Context, upstream Channel) error {
	for {
		err := h.relay(ctx, upstream)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		h.log.WarnContext(ctx, "relay interrupted, resubscribing", "error", err, "retry_in", h.retry)
		select {
		case <-time.After(h.retry):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *Hub) relay(ctx context.Context, upstream Channel) error {
	events, err := upstream.Subscribe(ctx, Filter{})
	if err != nil {
		return fmt.Errorf("subscribe upstream: %w", err)
	}
	for e := range events {
		h.Publish(e)
	}
	return ErrUpstreamClosed
}

// Publish delivers e to every matching subscriber. A subscriber whose
// buffer is full misses the event.
func (h *Hub) Publish(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		if !s.filter.Match(e) {
			continue
		}
		select {
		case s.ch <- e:
		default:
			h.log.Warn("slow subscriber missed event", "event", e.String())
		}
	}
}

func (h *Hub) Subscribe(ctx context.Context, f Filter) (<-chan Event, error) {
	s := &subscriber{filter: f, ch: make(chan Event, h.capacity)}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, s)
		close(s.ch)
		h.mu.Unlock()
	}()
	return s.ch, nil
}

// Subscribers reports the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// FilterFromQuery reads "tables" (comma separated) and "thread_id".
func FilterFromQuery(r *http.Request) Filter {
	q := r.URL.Query()
	var f Filter
	if t := q.Get("tables"); t != "" {
		f.Kinds = lo.Map(strings.Split(t, ","), func(s string, _ int) Kind { return Kind(strings.TrimSpace(s)) })
	}
	f.ThreadID = q.Get("thread_id")
	return f
}

// ServeWS upgrades the request and streams matching events as JSON text
// frames until the client goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("failed to upgrade", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, _ := h.Subscribe(ctx, FilterFromQuery(r))

	// The read side only exists to see pongs and the close frame.
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(pongWait)) })
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(e); err != nil {
				h.log.Debug("websocket write failed", "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
