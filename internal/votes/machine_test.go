package votes

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/emilythestrangee/warroom/backend/internal/mocks"
	"github.com/emilythestrangee/warroom/backend/internal/models"
	"github.com/emilythestrangee/warroom/backend/internal/notify"
	"github.com/emilythestrangee/warroom/backend/internal/store"
	"github.com/emilythestrangee/warroom/backend/internal/store/memstore"
)

const (
	me   = "11111111-1111-1111-1111-111111111111"
	post = "22222222-2222-2222-2222-222222222222"
)

var errTransient = errors.New("connection reset")

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestMachine_RollbackOnFailedInsert(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	remote := mocks.NewMockRemote(ctrl)
	rec := &notify.Recorder{}
	m := NewMachine(discard(), remote, rec, me)
	ctx := context.Background()

	// Given a failing remote insert
	remote.EXPECT().
		InsertVote(gomock.Any(), models.Vote{PostID: post, UserID: me, Kind: models.VoteUp}).
		DoAndReturn(func(context.Context, models.Vote) error {
			// The optimistic state is visible while the write is in flight
			snap := m.Snapshot(post)
			req.Equal(Up, snap.Vote)
			req.Equal(Tally{Up: 1}, snap.Tally)
			return errTransient
		}).
		Times(1)

	// When the viewer upvotes
	got, err := m.Toggle(ctx, post, Up)

	// Then the ledger is exactly as before and one notice is emitted
	req.ErrorIs(err, errTransient)
	req.Equal(None, got.Vote)
	req.Equal(Tally{}, got.Tally)
	req.Len(rec.Notices(), 1)
	req.Equal(notify.RetryMessage, rec.Notices()[0].Message)
}

func TestMachine_ToggleWritesExpectedMutation(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	remote := mocks.NewMockRemote(ctrl)
	m := NewMachine(discard(), remote, &notify.Recorder{}, me)
	ctx := context.Background()

	gomock.InOrder(
		remote.EXPECT().InsertVote(gomock.Any(), models.Vote{PostID: post, UserID: me, Kind: models.VoteUp}).Return(nil),
		remote.EXPECT().UpdateVote(gomock.Any(), models.Vote{PostID: post, UserID: me, Kind: models.VoteDown}).Return(nil),
		remote.EXPECT().DeleteVote(gomock.Any(), post, me).Return(nil),
	)

	l, err := m.Toggle(ctx, post, Up)
	req.NoError(err)
	req.Equal(Tally{Up: 1}, l.Tally)

	l, err = m.Toggle(ctx, post, Down)
	req.NoError(err)
	req.Equal(Down, l.Vote)
	req.Equal(Tally{Down: 1}, l.Tally)

	l, err = m.Toggle(ctx, post, Down)
	req.NoError(err)
	req.Equal(None, l.Vote)
	req.Equal(Tally{}, l.Tally)
}

func TestMachine_DuplicateInsertResyncsFromStore(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	db := memstore.New()
	// Given the store already holds an up vote the ledger never saw
	db.PutVote(models.Vote{PostID: post, UserID: me, Kind: models.VoteUp})
	db.PutVote(models.Vote{PostID: post, UserID: "other", Kind: models.VoteUp})
	rec := &notify.Recorder{}
	m := NewMachine(discard(), db, rec, me)

	// When the viewer upvotes from a stale None
	_, err := m.Toggle(ctx, post, Up)

	// Then the constraint violation is reported and the ledger follows the store
	req.ErrorIs(err, store.ErrDuplicateVote)
	req.Len(rec.Notices(), 1)
	snap := m.Snapshot(post)
	req.Equal(Up, snap.Vote)
	req.Equal(Tally{Up: 2}, snap.Tally)
}

func TestMachine_LoadCountsEachPost(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	db := memstore.New()
	db.PutVote(models.Vote{PostID: "a", UserID: me, Kind: models.VoteDown})
	db.PutVote(models.Vote{PostID: "a", UserID: "u2", Kind: models.VoteUp})
	db.PutVote(models.Vote{PostID: "b", UserID: "u2", Kind: models.VoteUp})
	db.PutVote(models.Vote{PostID: "b", UserID: "u3", Kind: models.VoteUp})
	m := NewMachine(discard(), db, &notify.Recorder{}, me)

	req.NoError(m.Load(ctx, []string{"a", "b", "c"}))

	req.Equal(3, db.Calls(memstore.OpCountVotes))
	req.Equal(Ledger{PostID: "a", Vote: Down, Tally: Tally{Up: 1, Down: 1}}, m.Snapshot("a"))
	req.Equal(Ledger{PostID: "b", Vote: None, Tally: Tally{Up: 2}}, m.Snapshot("b"))
	req.Equal(Ledger{PostID: "c", Vote: None, Tally: Tally{}}, m.Snapshot("c"))
	req.True(m.Tracks("c"))
	req.False(m.Tracks("d"))
}

// Property: after any toggle sequence, with failures sprinkled in, the
// ledger matches the rows actually stored.
func TestMachine_TallyMatchesStoredRows(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	rnd := rand.New(rand.NewSource(42))

	for round := range 20 {
		db := memstore.New()
		for i := range rnd.Intn(6) {
			kind := models.VoteUp
			if rnd.Intn(2) == 0 {
				kind = models.VoteDown
			}
			db.PutVote(models.Vote{PostID: post, UserID: string(rune('a' + i)), Kind: kind})
		}
		m := NewMachine(discard(), db, &notify.Recorder{}, me)
		req.NoError(m.Load(ctx, []string{post}))

		for range 50 {
			ops := []string{memstore.OpInsertVote, memstore.OpUpdateVote, memstore.OpDeleteVote}
			for _, op := range ops {
				db.FailWith(op, nil)
			}
			if rnd.Intn(4) == 0 {
				db.FailWith(ops[rnd.Intn(len(ops))], errTransient)
			}
			requested := Up
			if rnd.Intn(2) == 0 {
				requested = Down
			}
			_, _ = m.Toggle(ctx, post, requested)
		}

		rows := db.Votes(post)
		score, own := 0, None
		for _, v := range rows {
			switch v.Kind {
			case models.VoteUp:
				score++
			case models.VoteDown:
				score--
			}
			if v.UserID == me {
				own = KindOf(v.Kind)
			}
		}
		snap := m.Snapshot(post)
		req.Equal(score, snap.Tally.Score(), "round %d", round)
		req.Equal(own, snap.Vote, "round %d", round)
	}
}

func TestMachine_ConcurrentTogglesAreSerialized(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	db := memstore.New()
	m := NewMachine(discard(), db, &notify.Recorder{}, me)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Toggle(ctx, post, Up)
			req.NoError(err)
		}()
	}
	wg.Wait()

	// Ten toggles of the same kind cancel out pairwise
	req.Equal(Ledger{PostID: post, Vote: None, Tally: Tally{}}, m.Snapshot(post))
	req.Empty(db.Votes(post))
}

// gatedRemote blocks InsertVote until released.
type gatedRemote struct {
	*memstore.Store
	entered chan struct{}
	release chan struct{}
}

func (g *gatedRemote) InsertVote(ctx context.Context, v models.Vote) error {
	close(g.entered)
	<-g.release
	return g.Store.InsertVote(ctx, v)
}

func TestMachine_RecountDuringToggleIsDeferred(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	db := memstore.New()
	db.PutVote(models.Vote{PostID: post, UserID: "other", Kind: models.VoteUp})
	remote := &gatedRemote{Store: db, entered: make(chan struct{}), release: make(chan struct{})}
	m := NewMachine(discard(), remote, &notify.Recorder{}, me)
	req.NoError(m.Load(ctx, []string{post}))

	done := make(chan error, 1)
	go func() {
		_, err := m.Toggle(ctx, post, Up)
		done <- err
	}()
	<-remote.entered

	// A third-party vote lands and its push event triggers a recount
	db.PutVote(models.Vote{PostID: post, UserID: "third", Kind: models.VoteDown})
	req.NoError(m.Recount(ctx, post, false))

	// The optimistic state is untouched while the insert is pending
	snap := m.Snapshot(post)
	req.Equal(Up, snap.Vote)
	req.Equal(Tally{Up: 2}, snap.Tally)

	close(remote.release)
	select {
	case err := <-done:
		req.NoError(err)
	case <-time.After(time.Second):
		req.Fail("toggle did not finish")
	}

	// Once settled the deferred recount reflects every stored row
	snap = m.Snapshot(post)
	req.Equal(Up, snap.Vote)
	req.Equal(Tally{Up: 2, Down: 1}, snap.Tally)
}

// heldCountRemote pauses the first CountVotes after it has read the store,
// so the count is already outdated when it is handed back.
type heldCountRemote struct {
	*memstore.Store
	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func newHeldCountRemote(db *memstore.Store) *heldCountRemote {
	return &heldCountRemote{Store: db, read: make(chan struct{}), release: make(chan struct{})}
}

func (h *heldCountRemote) CountVotes(ctx context.Context, postID string) (store.Counts, error) {
	c, err := h.Store.CountVotes(ctx, postID)
	h.once.Do(func() {
		close(h.read)
		<-h.release
	})
	return c, err
}

func TestMachine_RecountReadBeforeToggleIsRetaken(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	db := memstore.New()
	remote := newHeldCountRemote(db)
	m := NewMachine(discard(), remote, &notify.Recorder{}, me)

	// Given a recount that has read an empty tally but not applied it yet
	done := make(chan error, 1)
	go func() { done <- m.Recount(ctx, post, true) }()
	<-remote.read

	// When the viewer's upvote is confirmed in the meantime
	l, err := m.Toggle(ctx, post, Up)
	req.NoError(err)
	req.Equal(Tally{Up: 1}, l.Tally)
	close(remote.release)
	req.NoError(<-done)

	// Then the outdated read is discarded and counted again
	req.Equal(Ledger{PostID: post, Vote: Up, Tally: Tally{Up: 1}}, m.Snapshot(post))
	req.Equal(2, db.Calls(memstore.OpCountVotes))

	// And the next toggle starts from the stored row
	l, err = m.Toggle(ctx, post, Up)
	req.NoError(err)
	req.Equal(Ledger{PostID: post, Vote: None, Tally: Tally{}}, l)
	req.Empty(db.Votes(post))
}

func TestMachine_LoadOvertakenByToggleRereads(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	db := memstore.New()
	db.PutVote(models.Vote{PostID: post, UserID: "other", Kind: models.VoteDown})
	remote := newHeldCountRemote(db)
	m := NewMachine(discard(), remote, &notify.Recorder{}, me)

	done := make(chan error, 1)
	go func() { done <- m.Load(ctx, []string{post}) }()
	<-remote.read

	_, err := m.Toggle(ctx, post, Up)
	req.NoError(err)
	close(remote.release)
	req.NoError(<-done)

	req.Equal(Ledger{PostID: post, Vote: Up, Tally: Tally{Up: 1, Down: 1}}, m.Snapshot(post))
}

func TestMachine_RollbackRestoresClampedTally(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	remote := mocks.NewMockRemote(ctrl)
	rec := &notify.Recorder{}
	m := NewMachine(discard(), remote, rec, me)
	ctx := context.Background()

	// Given a ledger whose count lags the viewer's own up vote
	remote.EXPECT().OwnVotes(gomock.Any(), me, []string{post}).
		Return([]models.Vote{{PostID: post, UserID: me, Kind: models.VoteUp}}, nil)
	remote.EXPECT().CountVotes(gomock.Any(), post).Return(store.Counts{}, nil)
	req.NoError(m.Load(ctx, []string{post}))

	// When clearing the vote fails
	remote.EXPECT().DeleteVote(gomock.Any(), post, me).Return(errTransient)
	got, err := m.Toggle(ctx, post, Up)

	// Then the ledger is back where it started
	req.ErrorIs(err, errTransient)
	req.Equal(Ledger{PostID: post, Vote: Up, Tally: Tally{}}, got)
	req.Len(rec.Notices(), 1)
}

func TestMachine_ToggleRespectsCancelledWait(t *testing.T) {
	req := require.New(t)
	db := memstore.New()
	remote := &gatedRemote{Store: db, entered: make(chan struct{}), release: make(chan struct{})}
	m := NewMachine(discard(), remote, &notify.Recorder{}, me)

	go func() { _, _ = m.Toggle(context.Background(), post, Up) }()
	<-remote.entered

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Toggle(ctx, post, Down)
	req.ErrorIs(err, context.Canceled)
	close(remote.release)
}
