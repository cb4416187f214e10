//go:generate go run go.uber.org/mock/mockgen -source=machine.go -destination=../mocks/mock_votes.go -package=mocks
package votes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/samber/lo"

	"github.com/emilythestrangee/warroom/backend/internal/models"
	"github.com/emilythestrangee/warroom/backend/internal/notify"
	"github.com/emilythestrangee/warroom/backend/internal/store"
)

// Remote is the slice of the relational store the vote machine writes to
// and recounts from.
type Remote interface {
	InsertVote(ctx context.Context, vote models.Vote) error
	UpdateVote(ctx context.Context, vote models.Vote) error
	DeleteVote(ctx context.Context, postID, userID string) error
	CountVotes(ctx context.Context, postID string) (store.Counts, error)
	OwnVote(ctx context.Context, postID, userID string) (*models.Vote, error)
	OwnVotes(ctx context.Context, userID string, postIDs []string) ([]models.Vote, error)
}

// Machine owns the session's ledgers. Local toggles and push-driven
// recounts both go through it; nothing else writes a ledger.
//
// Toggles on one post are serialized: a toggle waits until the previous one
// on that post is confirmed or rolled back, then computes its transition
// from the ledger as it is at that moment.
type Machine struct {
	log      *slog.Logger
	remote   Remote
	notifier notify.Notifier
	userID   string

	mu       sync.Mutex
	ledgers  map[string]*Ledger
	versions map[string]uint64
	queues   map[string]chan struct{}
}

func NewMachine(log *slog.Logger, remote Remote, notifier notify.Notifier, userID string) *Machine {
	return &Machine{
		log:      log.With("component", "votes", "user_id", userID),
		remote:   remote,
		notifier: notifier,
		userID:   userID,
		ledgers:  make(map[string]*Ledger),
		versions: make(map[string]uint64),
		queues:   make(map[string]chan struct{}),
	}
}

// Snapshot returns a copy of the post's ledger. Unknown posts read as no
// vote and an empty tally.
func (m *Machine) Snapshot(postID string) Ledger {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.ledgers[postID]; ok {
		return *l
	}
	return Ledger{PostID: postID}
}

func (m *Machine) Snapshots() map[string]Ledger {
	m.mu.Lock()
	defer m.mu.Unlock()
	return lo.MapValues(m.ledgers, func(l *Ledger, _ string) Ledger { return *l })
}

// Load seeds ledgers for postIDs: the viewer's votes in one query, then one
// count query per post, sequentially.
func (m *Machine) Load(ctx context.Context, postIDs []string) error {
	m.mu.Lock()
	seen := lo.SliceToMap(postIDs, func(id string) (string, uint64) { return id, m.versions[id] })
	m.mu.Unlock()

	own, err := m.remote.OwnVotes(ctx, m.userID, postIDs)
	if err != nil {
		return fmt.Errorf("load own votes: %w", err)
	}
	byPost := lo.KeyBy(own, func(v models.Vote) string { return v.PostID })

	for _, id := range postIDs {
		c, err := m.remote.CountVotes(ctx, id)
		if err != nil {
			return fmt.Errorf("load tally of post %s: %w", id, err)
		}
		k := None
		if v, ok := byPost[id]; ok {
			k = KindOf(v.Kind)
		}
		if m.settle(id, c, &k, seen[id]) {
			continue
		}
		// A toggle landed after the reads; they no longer describe the post.
		if err := m.refresh(ctx, id, true); err != nil {
			return fmt.Errorf("load tally of post %s: %w", id, err)
		}
	}
	return nil
}

// Toggle applies requested to the post optimistically, writes the vote row
// and rolls the ledger back if the write fails. The returned ledger is the
// state after confirmation or rollback.
func (m *Machine) Toggle(ctx context.Context, postID string, requested Kind) (Ledger, error) {
	if requested != Up && requested != Down {
		return m.Snapshot(postID), ErrInvalidKind
	}
	release, err := m.acquire(ctx, postID)
	if err != nil {
		return m.Snapshot(postID), fmt.Errorf("wait for pending vote: %w", err)
	}
	defer release()

	m.mu.Lock()
	l := m.ledger(postID)
	tr, _ := l.Toggle(requested)
	l.Apply(tr)
	m.versions[postID]++
	l.pending++
	m.mu.Unlock()

	err = m.commit(ctx, tr)

	m.mu.Lock()
	l.pending--
	if err != nil {
		l.Apply(tr.Inverse())
		m.versions[postID]++
	}
	recount := l.stale && l.pending == 0
	m.mu.Unlock()

	if err != nil {
		if errors.Is(err, store.ErrDuplicateVote) || errors.Is(err, store.ErrNotFound) {
			// The stored row disagrees with the ledger; trust the store.
			m.log.ErrorContext(ctx, "vote row out of sync with ledger",
				"post_id", postID, "from", tr.From, "to", tr.To, "mutation", tr.Mutation(), "error", err)
			recount = true
		} else {
			m.log.WarnContext(ctx, "vote rolled back",
				"post_id", postID, "from", tr.From, "to", tr.To, "error", err)
		}
		m.notifier.Notify(ctx, notify.Failed("vote", err))
	}
	if recount {
		if rerr := m.refresh(ctx, postID, true); rerr != nil {
			m.log.WarnContext(ctx, "vote resync failed", "post_id", postID, "error", rerr)
		}
	}
	if err != nil {
		return m.Snapshot(postID), fmt.Errorf("%s vote on post %s: %w", tr.Mutation(), postID, err)
	}
	return m.Snapshot(postID), nil
}

// Recount re-derives the post's tally from the store. With own set the
// viewer's vote is re-read too. While a toggle is in flight the ledger is
// only marked stale and recounted once the toggle settles.
func (m *Machine) Recount(ctx context.Context, postID string, own bool) error {
	return m.refresh(ctx, postID, own)
}

// Tracks reports whether the machine holds a ledger for postID.
func (m *Machine) Tracks(postID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.ledgers[postID]
	return ok
}

func (m *Machine) commit(ctx context.Context, tr Transition) error {
	switch tr.Mutation() {
	case Insert:
		return m.remote.InsertVote(ctx, models.Vote{PostID: tr.PostID, UserID: m.userID, Kind: tr.To.Model()})
	case Update:
		return m.remote.UpdateVote(ctx, models.Vote{PostID: tr.PostID, UserID: m.userID, Kind: tr.To.Model()})
	case Delete:
		return m.remote.DeleteVote(ctx, tr.PostID, m.userID)
	default:
		return fmt.Errorf("unexpected transition %s -> %s", tr.From, tr.To)
	}
}

// refresh reads the tally (and the own vote) and settles it. Reads that a
// toggle overtook are discarded and taken again.
func (m *Machine) refresh(ctx context.Context, postID string, own bool) error {
	for {
		m.mu.Lock()
		seen := m.versions[postID]
		m.mu.Unlock()

		c, k, err := m.read(ctx, postID, own)
		if err != nil {
			return err
		}
		if m.settle(postID, c, k, seen) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("recount post %s: %w", postID, err)
		}
	}
}

func (m *Machine) read(ctx context.Context, postID string, own bool) (store.Counts, *Kind, error) {
	c, err := m.remote.CountVotes(ctx, postID)
	if err != nil {
		return store.Counts{}, nil, fmt.Errorf("recount post %s: %w", postID, err)
	}
	if !own {
		return c, nil, nil
	}
	v, err := m.remote.OwnVote(ctx, postID, m.userID)
	switch {
	case err == nil:
		return c, lo.ToPtr(KindOf(v.Kind)), nil
	case errors.Is(err, store.ErrNotFound):
		return c, lo.ToPtr(None), nil
	default:
		return store.Counts{}, nil, fmt.Errorf("reload own vote on post %s: %w", postID, err)
	}
}

// settle resyncs the ledger from reads taken at version seen. While a toggle
// is pending the ledger is only marked stale. It reports false when the
// ledger moved since seen and the reads must be taken again.
func (m *Machine) settle(postID string, c store.Counts, own *Kind, seen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := m.ledger(postID)
	if l.Pending() {
		l.stale = true
		return true
	}
	if m.versions[postID] != seen {
		return false
	}
	l.Resync(Tally{Up: c.Up, Down: c.Down}, own)
	m.versions[postID]++
	return true
}

// ledger must be called with mu held.
func (m *Machine) ledger(postID string) *Ledger {
	l, ok := m.ledgers[postID]
	if !ok {
		l = &Ledger{PostID: postID}
		m.ledgers[postID] = l
	}
	return l
}

func (m *Machine) acquire(ctx context.Context, postID string) (func(), error) {
	m.mu.Lock()
	q, ok := m.queues[postID]
	if !ok {
		q = make(chan struct{}, 1)
		m.queues[postID] = q
	}
	m.mu.Unlock()

	select {
	case q <- struct{}{}:
		return func() { <-q }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
