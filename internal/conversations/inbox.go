package conversations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/emilythestrangee/warroom/backend/internal/feed"
	"github.com/emilythestrangee/warroom/backend/internal/models"
	"github.com/emilythestrangee/warroom/backend/internal/notify"
	"github.com/emilythestrangee/warroom/backend/internal/store"
)

var ErrEmptyMessage = errors.New("message is empty")

type Remote interface {
	MessagesInvolving(ctx context.Context, userID string) ([]models.Message, error)
	MessageByID(ctx context.Context, id string) (*models.Message, error)
	InsertMessage(ctx context.Context, msg *models.Message) error
	MarkRead(ctx context.Context, recipientID string, ids []string) error
	Profiles(ctx context.Context, ids []string) ([]models.User, error)
}

// Inbox is the session-scoped message log of one user. Conversations are
// never stored; they are projected from the log whenever they are read.
type Inbox struct {
	log      *slog.Logger
	remote   Remote
	notifier notify.Notifier
	self     string
	now      func() time.Time

	mu       sync.Mutex
	messages *feed.Log[models.Message]
	profiles map[string]models.User
	// marking holds ids flagged read locally whose store update is pending.
	marking  map[string]struct{}
}

func NewInbox(log *slog.Logger, remote Remote, notifier notify.Notifier, self string) *Inbox {
	return &Inbox{
		log:      log.With("component", "inbox", "user_id", self),
		remote:   remote,
		notifier: notifier,
		self:     self,
		now:      func() time.Time { return time.Now().UTC() },
		messages: feed.NewLog[models.Message](),
		profiles: make(map[string]models.User),
		marking:  make(map[string]struct{}),
	}
}

// Load folds the store's view of every message involving self into the
// log. Entries merged from push events while the query ran are kept.
func (in *Inbox) Load(ctx context.Context) error {
	msgs, err := in.remote.MessagesInvolving(ctx, in.self)
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}
	in.mu.Lock()
	for _, m := range msgs {
		in.absorb(m)
	}
	in.mu.Unlock()

	in.loadProfiles(ctx, lo.Map(msgs, func(m models.Message, _ int) string { return m.Peer(in.self) }))
	return nil
}

// Conversations projects the current log. Peers without a loaded profile
// get a placeholder identity.
func (in *Inbox) Conversations() []Conversation {
	in.mu.Lock()
	defer in.mu.Unlock()
	convs := Project(in.self, in.messages.Descending())
	for i := range convs {
		convs[i].Peer = in.profile(convs[i].PeerID)
	}
	return convs
}

// Unread is the total unread count across conversations.
func (in *Inbox) Unread() int {
	return lo.SumBy(in.Conversations(), func(c Conversation) int { return c.UnreadCount })
}

// Open marks every unread message from peer as read, locally first and then
// in the store, and returns the thread with peer oldest first. If the store
// rejects the update the local flags are restored.
func (in *Inbox) Open(ctx context.Context, peer string) ([]models.Message, error) {
	in.mu.Lock()
	unread := lo.FilterMap(in.messages.Ascending(), func(m models.Message, _ int) (string, bool) {
		return m.ID, m.SenderID == peer && m.RecipientID == in.self && !m.Read
	})
	for _, id := range unread {
		in.messages.Update(id, func(m *models.Message) { m.Read = true })
		in.marking[id] = struct{}{}
	}
	in.mu.Unlock()

	var err error
	if len(unread) > 0 {
		err = in.remote.MarkRead(ctx, in.self, unread)
		in.mu.Lock()
		for _, id := range unread {
			// Ids no longer marking were confirmed read by the store meanwhile.
			if _, ok := in.marking[id]; ok && err != nil {
				in.messages.Update(id, func(m *models.Message) { m.Read = false })
			}
			delete(in.marking, id)
		}
		in.mu.Unlock()
		if err != nil {
			in.log.WarnContext(ctx, "mark read rolled back", "peer_id", peer, "count", len(unread), "error", err)
			in.notifier.Notify(ctx, notify.Failed("mark read", err))
			err = fmt.Errorf("mark conversation with %s read: %w", peer, err)
		}
	}

	in.loadProfiles(ctx, []string{peer})
	return in.Thread(peer), err
}

// Thread returns the messages exchanged with peer, oldest first.
func (in *Inbox) Thread(peer string) []models.Message {
	in.mu.Lock()
	defer in.mu.Unlock()
	return Between(in.self, peer, in.messages.Ascending())
}

// Send appends the message locally under a fresh id, then stores it. The
// push echo of the same row is absorbed by id. A failed insert removes the
// local copy again.
func (in *Inbox) Send(ctx context.Context, peer, content string) (models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Message{}, ErrEmptyMessage
	}
	msg := models.Message{
		ID:          uuid.NewString(),
		SenderID:    in.self,
		RecipientID: peer,
		Content:     content,
		CreatedAt:   in.now(),
	}

	in.mu.Lock()
	in.messages.Insert(msg)
	in.mu.Unlock()

	stored := msg
	if err := in.remote.InsertMessage(ctx, &stored); err != nil {
		in.mu.Lock()
		in.messages.Remove(msg.ID)
		in.mu.Unlock()
		in.log.WarnContext(ctx, "send rolled back", "peer_id", peer, "error", err)
		in.notifier.Notify(ctx, notify.Failed("send message", err))
		return models.Message{}, fmt.Errorf("send message to %s: %w", peer, err)
	}

	in.mu.Lock()
	in.absorb(stored)
	in.mu.Unlock()
	in.loadProfiles(ctx, []string{peer})
	return stored, nil
}

// MergeInserted folds a pushed insert into the log. Ids already present,
// including our own optimistic sends, are skipped without a fetch.
func (in *Inbox) MergeInserted(ctx context.Context, id string) error {
	in.mu.Lock()
	known := in.messages.Has(id)
	in.mu.Unlock()
	if known {
		return nil
	}

	msg, err := in.remote.MessageByID(ctx, id)
	if err != nil {
		return fmt.Errorf("fetch inserted message %s: %w", id, err)
	}
	if !msg.Involves(in.self) {
		return nil
	}

	in.mu.Lock()
	added := in.messages.Insert(*msg)
	in.mu.Unlock()
	if added {
		in.loadProfiles(ctx, []string{msg.Peer(in.self)})
	}
	return nil
}

// MergeUpdated refreshes the entry for id, which only ever changes its read
// flag. Unknown ids are treated as inserts.
func (in *Inbox) MergeUpdated(ctx context.Context, id string) error {
	msg, err := in.remote.MessageByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("fetch updated message %s: %w", id, err)
	}
	if !msg.Involves(in.self) {
		return nil
	}

	in.mu.Lock()
	in.absorb(*msg)
	in.mu.Unlock()
	return nil
}

// absorb inserts a fetched row or refreshes the entry with its id. A fetch
// never clears a read flag: reads only move from unread to read, so a row
// without the flag is older than the entry it would replace. Must be
// called with mu held.
func (in *Inbox) absorb(m models.Message) {
	if cur, ok := in.messages.Get(m.ID); ok {
		if m.Read {
			delete(in.marking, m.ID)
		}
		m.Read = m.Read || cur.Read
		in.messages.Replace(m)
		return
	}
	in.messages.Insert(m)
}

func (in *Inbox) profile(id string) models.User {
	if u, ok := in.profiles[id]; ok {
		return u
	}
	return models.Placeholder(id)
}

// loadProfiles fetches the profiles not cached yet. Failures only leave the
// placeholder in place.
func (in *Inbox) loadProfiles(ctx context.Context, ids []string) {
	in.mu.Lock()
	missing := lo.Filter(lo.Uniq(ids), func(id string, _ int) bool {
		_, ok := in.profiles[id]
		return !ok
	})
	in.mu.Unlock()
	if len(missing) == 0 {
		return
	}

	users, err := in.remote.Profiles(ctx, missing)
	if err != nil {
		in.log.WarnContext(ctx, "profiles unavailable", "count", len(missing), "error", err)
		return
	}
	in.mu.Lock()
	for _, u := range users {
		in.profiles[u.ID] = u
	}
	in.mu.Unlock()
}
