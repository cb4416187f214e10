package conversations

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"github.com/emilythestrangee/warroom/backend/internal/models"
	"github.com/emilythestrangee/warroom/backend/internal/notify"
	"github.com/emilythestrangee/warroom/backend/internal/store/memstore"
)

func newInbox(t *testing.T) (*Inbox, *memstore.Store, *notify.Recorder) {
	t.Helper()
	db := memstore.New()
	for _, m := range exampleLog() {
		db.PutMessage(m)
	}
	db.PutUser(models.User{ID: a, Username: "alice"})
	rec := &notify.Recorder{}
	in := NewInbox(slog.New(slog.DiscardHandler), db, rec, me)
	require.NoError(t, in.Load(context.Background()))
	return in, db, rec
}

func TestInbox_ConversationsUsePlaceholderForMissingProfile(t *testing.T) {
	req := require.New(t)
	in, _, _ := newInbox(t)

	convs := in.Conversations()

	req.Len(convs, 2)
	req.Equal("alice", convs[0].Peer.Username)
	req.Equal(models.PlaceholderUsername, convs[1].Peer.Username)
	req.Equal(b, convs[1].Peer.ID)
	req.Equal(2, in.Unread())
}

func TestInbox_OpenMarksPeerMessagesRead(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	in, db, rec := newInbox(t)
	before := in.Conversations()

	thread, err := in.Open(ctx, a)

	req.NoError(err)
	req.Len(thread, 2)
	req.True(thread[1].Read)

	stored, ok := db.Message("m3")
	req.True(ok)
	req.True(stored.Read)

	after := in.Conversations()
	req.Equal(0, after[0].UnreadCount)
	req.Equal(a, after[0].PeerID)
	req.Equal(before[1], after[1])
	req.Empty(rec.Notices())
}

func TestInbox_OpenRestoresFlagsWhenStoreFails(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	in, db, rec := newInbox(t)
	db.FailWith(memstore.OpMarkRead, errors.New("timeout"))

	_, err := in.Open(ctx, a)

	req.Error(err)
	req.Equal(1, in.Conversations()[0].UnreadCount)
	req.Len(rec.Notices(), 1)
}

func TestInbox_OpenWithoutUnreadSkipsStore(t *testing.T) {
	req := require.New(t)
	in, db, _ := newInbox(t)

	_, err := in.Open(context.Background(), "nobody")

	req.NoError(err)
	req.Equal(0, db.Calls(memstore.OpMarkRead))
}

func TestInbox_MergeInsertedIsIdempotent(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	in, db, _ := newInbox(t)
	db.PutMessage(models.Message{ID: "m4", SenderID: b, RecipientID: me, Content: "again", CreatedAt: at(4)})

	req.NoError(in.MergeInserted(ctx, "m4"))
	once := in.Conversations()
	req.NoError(in.MergeInserted(ctx, "m4"))
	twice := in.Conversations()

	req.Equal(once, twice)
	req.Equal(b, twice[0].PeerID)
	req.Equal(2, twice[0].UnreadCount)
	req.Len(in.Thread(b), 2)
	// The second delivery is absorbed without a fetch
	req.Equal(1, db.Calls(memstore.OpMessageByID))
}

func TestInbox_MergeIgnoresForeignMessages(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	in, db, _ := newInbox(t)
	db.PutMessage(models.Message{ID: "x", SenderID: a, RecipientID: b, CreatedAt: at(9)})

	req.NoError(in.MergeInserted(ctx, "x"))
	req.Len(in.Conversations(), 2)
	req.Equal("m3", in.Conversations()[0].LastMessage.ID)
}

func TestInbox_MergeUpdatedAppliesReadFlag(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	in, db, _ := newInbox(t)
	req.NoError(db.MarkRead(ctx, me, []string{"m1"}))

	req.NoError(in.MergeUpdated(ctx, "m1"))

	req.Equal(0, in.Conversations()[1].UnreadCount)
}

func TestInbox_SendIsOptimisticAndAbsorbsEcho(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	in, db, _ := newInbox(t)

	msg, err := in.Send(ctx, b, "  on my way ")
	req.NoError(err)
	req.Equal("on my way", msg.Content)

	req.NoError(in.MergeInserted(ctx, msg.ID))
	convs := in.Conversations()
	req.Equal(b, convs[0].PeerID)
	req.Equal(msg.ID, convs[0].LastMessage.ID)
	req.Len(in.Thread(b), 2)
	req.Equal(0, db.Calls(memstore.OpMessageByID))
}

func TestInbox_SendRollsBackOnFailure(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	in, db, rec := newInbox(t)
	db.FailWith(memstore.OpInsertMessage, errors.New("offline"))

	_, err := in.Send(ctx, b, "lost")

	req.Error(err)
	req.Len(in.Thread(b), 1)
	req.Len(rec.Notices(), 1)

	_, err = in.Send(ctx, b, "   ")
	req.ErrorIs(err, ErrEmptyMessage)
}

// racingRemote runs during while a load or mark-read call is in flight,
// standing in for push events merged concurrently.
type racingRemote struct {
	*memstore.Store
	during      func(ctx context.Context)
	markReadErr error
}

func (r *racingRemote) MessagesInvolving(ctx context.Context, userID string) ([]models.Message, error) {
	msgs, err := r.Store.MessagesInvolving(ctx, userID)
	if r.during != nil {
		r.during(ctx)
	}
	return msgs, err
}

func (r *racingRemote) MarkRead(ctx context.Context, recipientID string, ids []string) error {
	if r.during != nil {
		r.during(ctx)
	}
	if r.markReadErr != nil {
		return r.markReadErr
	}
	return r.Store.MarkRead(ctx, recipientID, ids)
}

func TestInbox_LoadKeepsMessagesMergedDuringQuery(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	db := memstore.New()
	for _, m := range exampleLog() {
		db.PutMessage(m)
	}
	remote := &racingRemote{Store: db}
	in := NewInbox(slog.New(slog.DiscardHandler), remote, &notify.Recorder{}, me)

	// A message committed after the query's snapshot is pushed before the
	// query returns
	remote.during = func(ctx context.Context) {
		db.PutMessage(models.Message{ID: "m4", SenderID: b, RecipientID: me, Content: "late", CreatedAt: at(4)})
		req.NoError(in.MergeInserted(ctx, "m4"))
	}
	req.NoError(in.Load(ctx))

	convs := in.Conversations()
	req.Len(convs, 2)
	req.Equal(b, convs[0].PeerID)
	req.Equal("m4", convs[0].LastMessage.ID)
	req.Equal(2, convs[0].UnreadCount)
	req.Len(in.Thread(b), 2)
}

func TestInbox_LoadNeverClearsReadFlag(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	in, db, _ := newInbox(t)
	req.NoError(db.MarkRead(ctx, me, []string{"m1"}))
	req.NoError(in.MergeUpdated(ctx, "m1"))

	// A reload answered from a replica that has not seen the update yet
	stale := memstore.New()
	for _, m := range exampleLog() {
		stale.PutMessage(m)
	}
	in.remote = stale
	req.NoError(in.Load(ctx))

	req.Equal(0, in.Conversations()[1].UnreadCount)
}

func TestInbox_OpenRollbackKeepsReadsConfirmedMeanwhile(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	db := memstore.New()
	for _, m := range exampleLog() {
		db.PutMessage(m)
	}
	db.PutMessage(models.Message{ID: "m4", SenderID: a, RecipientID: me, Content: "hello?", CreatedAt: at(4)})
	remote := &racingRemote{Store: db}
	rec := &notify.Recorder{}
	in := NewInbox(slog.New(slog.DiscardHandler), remote, rec, me)
	req.NoError(in.Load(ctx))

	// While the mark-read request is in flight another device reads m3,
	// then the request itself fails
	remote.markReadErr = errors.New("timeout")
	remote.during = func(ctx context.Context) {
		req.NoError(db.MarkRead(ctx, me, []string{"m3"}))
		req.NoError(in.MergeUpdated(ctx, "m3"))
	}
	thread, err := in.Open(ctx, a)

	req.Error(err)
	req.Len(rec.Notices(), 1)
	byID := lo.KeyBy(thread, func(m models.Message) string { return m.ID })
	req.True(byID["m3"].Read)
	req.False(byID["m4"].Read)
	req.Equal(1, in.Conversations()[0].UnreadCount)
}
