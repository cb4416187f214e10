// Package session owns one signed-in user's synchronized view: vote
// ledgers, the direct-message log and the currently open thread. Local
// actions and push events both land here.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/emilythestrangee/warroom/backend/internal/conversations"
	"github.com/emilythestrangee/warroom/backend/internal/models"
	"github.com/emilythestrangee/warroom/backend/internal/notify"
	"github.com/emilythestrangee/warroom/backend/internal/realtime"
	"github.com/emilythestrangee/warroom/backend/internal/threads"
	"github.com/emilythestrangee/warroom/backend/internal/votes"
)

var (
	ErrNotStarted = errors.New("session not started")
	ErrNoThread   = errors.New("no thread open")
)

// Identity resolves the signed-in user.
type Identity interface {
	UserID(ctx context.Context) (string, error)
}

type IdentityFunc func(ctx context.Context) (string, error)

func (f IdentityFunc) UserID(ctx context.Context) (string, error) { return f(ctx) }

// Remote is everything the session reads from and writes to the store.
type Remote interface {
	votes.Remote
	conversations.Remote
	threads.Remote
	threads.BoardRemote
}

type Session struct {
	log      *slog.Logger
	remote   Remote
	channel  realtime.Channel
	identity Identity
	notifier notify.Notifier

	mu           sync.Mutex
	userID       string
	votes        *votes.Machine
	inbox        *conversations.Inbox
	board        *threads.Board
	thread       *threads.Feed
	inbound      chan realtime.Event
	cancel       context.CancelFunc
	threadCancel context.CancelFunc
	runCtx       context.Context
	wg           sync.WaitGroup
}

func New(log *slog.Logger, remote Remote, channel realtime.Channel, identity Identity, notifier notify.Notifier) *Session {
	return &Session{
		log:      log,
		remote:   remote,
		channel:  channel,
		identity: identity,
		notifier: notifier,
	}
}

// Start resolves the user, subscribes to message, vote and thread changes
// and loads the inbox and the thread list. Subscriptions live until Close.
func (s *Session) Start(ctx context.Context) error {
	uid, err := s.identity.UserID(ctx)
	if err != nil {
		return fmt.Errorf("resolve identity: %w", err)
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return errors.New("session already started")
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.userID = uid
	s.votes = votes.NewMachine(s.log, s.remote, s.notifier, uid)
	s.inbox = conversations.NewInbox(s.log, s.remote, s.notifier, uid)
	s.board = threads.NewBoard(s.log, s.remote, s.notifier, uid)
	s.thread = nil
	s.inbound = make(chan realtime.Event, 256)
	s.runCtx = runCtx
	s.cancel = cancel
	s.mu.Unlock()

	kinds := []realtime.Kind{realtime.Messages, realtime.Votes, realtime.Threads}
	if err := s.subscribe(runCtx, realtime.Filter{Kinds: kinds}); err != nil {
		s.Close()
		return err
	}

	merger := s.merger()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_ = merger.Run(runCtx, s.inbound)
	}()

	if err := s.inbox.Load(ctx); err != nil {
		s.Close()
		return err
	}
	if err := s.board.Load(ctx); err != nil {
		s.Close()
		return err
	}
	s.log.InfoContext(ctx, "session started", "user_id", uid)
	return nil
}

// Reload re-reads the identity. A different user gets a fresh session;
// the same user gets the inbox and open thread reloaded.
func (s *Session) Reload(ctx context.Context) error {
	uid, err := s.identity.UserID(ctx)
	if err != nil {
		return fmt.Errorf("resolve identity: %w", err)
	}
	s.mu.Lock()
	same := s.cancel != nil && uid == s.userID
	inbox, board, thread := s.inbox, s.board, s.thread
	s.mu.Unlock()

	if !same {
		s.Close()
		return s.Start(ctx)
	}
	if err := inbox.Load(ctx); err != nil {
		return err
	}
	if err := board.Load(ctx); err != nil {
		return err
	}
	if thread != nil {
		return s.loadThread(ctx, thread)
	}
	return nil
}

// Close cancels every subscription and waits for the merge loop to stop.
func (s *Session) Close() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.threadCancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// OpenThread replaces the open thread: a view is counted, its posts, the
// viewer's votes and per-post tallies are loaded and new posts in it are
// merged as they arrive.
func (s *Session) OpenThread(ctx context.Context, threadID string) error {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return ErrNotStarted
	}
	if s.threadCancel != nil {
		s.threadCancel()
	}
	tctx, tcancel := context.WithCancel(s.runCtx)
	s.threadCancel = tcancel
	f := threads.NewFeed(s.log, s.remote, s.notifier, threadID, s.userID)
	s.thread = f
	board := s.board
	s.mu.Unlock()

	board.Viewed(ctx, threadID)
	if err := s.subscribe(tctx, realtime.Filter{Kinds: []realtime.Kind{realtime.Posts}, ThreadID: threadID}); err != nil {
		return err
	}
	return s.loadThread(ctx, f)
}

func (s *Session) loadThread(ctx context.Context, f *threads.Feed) error {
	ids, err := f.Load(ctx)
	if err != nil {
		return err
	}
	return s.machine().Load(ctx, ids)
}

func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// Threads returns the thread list, pinned first.
func (s *Session) Threads() []models.Thread {
	s.mu.Lock()
	b := s.board
	s.mu.Unlock()
	if b == nil {
		return nil
	}
	return b.Threads()
}

// CreateThread opens a thread with its first post.
func (s *Session) CreateThread(ctx context.Context, title, category, content string, imageURL *string) (models.Thread, error) {
	s.mu.Lock()
	b := s.board
	s.mu.Unlock()
	if b == nil {
		return models.Thread{}, ErrNotStarted
	}
	th, _, err := b.Create(ctx, title, category, content, imageURL)
	return th, err
}

func (s *Session) Conversations() []conversations.Conversation {
	in := s.mailbox()
	if in == nil {
		return nil
	}
	return in.Conversations()
}

func (s *Session) Unread() int {
	in := s.mailbox()
	if in == nil {
		return 0
	}
	return in.Unread()
}

// OpenConversation marks the peer's messages read and returns the thread.
func (s *Session) OpenConversation(ctx context.Context, peer string) ([]models.Message, error) {
	in := s.mailbox()
	if in == nil {
		return nil, ErrNotStarted
	}
	return in.Open(ctx, peer)
}

func (s *Session) Send(ctx context.Context, peer, content string) (models.Message, error) {
	in := s.mailbox()
	if in == nil {
		return models.Message{}, ErrNotStarted
	}
	return in.Send(ctx, peer, content)
}

// Vote toggles the viewer's vote on a post.
func (s *Session) Vote(ctx context.Context, postID string, kind votes.Kind) (votes.Ledger, error) {
	m := s.machine()
	if m == nil {
		return votes.Ledger{PostID: postID}, ErrNotStarted
	}
	return m.Toggle(ctx, postID, kind)
}

func (s *Session) Ledger(postID string) votes.Ledger {
	m := s.machine()
	if m == nil {
		return votes.Ledger{PostID: postID}
	}
	return m.Snapshot(postID)
}

// Posts returns the open thread's posts oldest first.
func (s *Session) Posts() []models.Post {
	s.mu.Lock()
	f := s.thread
	s.mu.Unlock()
	if f == nil {
		return nil
	}
	return f.Posts()
}

// Reply posts to the open thread.
func (s *Session) Reply(ctx context.Context, content string, imageURL *string) (models.Post, error) {
	s.mu.Lock()
	f, m := s.thread, s.votes
	s.mu.Unlock()
	if f == nil {
		return models.Post{}, ErrNoThread
	}
	p, err := f.Post(ctx, content, imageURL)
	if err != nil {
		return p, err
	}
	if err := m.Recount(ctx, p.ID, false); err != nil {
		s.log.WarnContext(ctx, "tally of new post unavailable", "post_id", p.ID, "error", err)
	}
	return p, nil
}

func (s *Session) mailbox() *conversations.Inbox {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inbox
}

func (s *Session) machine() *votes.Machine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.votes
}

// subscribe forwards a subscription into the session's single inbound
// queue until ctx ends.
func (s *Session) subscribe(ctx context.Context, f realtime.Filter) error {
	events, err := s.channel.Subscribe(ctx, f)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	s.mu.Lock()
	inbound := s.inbound
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for e := range events {
			select {
			case inbound <- e:
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}
