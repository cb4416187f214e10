// Package threads keeps the session's copy of one open thread's posts.
package threads

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
)

var ErrEmptyPost = errors.New("post has neither content nor image")

type Remote interface {
	ThreadPosts(ctx context.Context, threadID string) ([]models.Post, error)
	PostByID(ctx context.Context, id string) (*models.Post, error)
	InsertPost(ctx context.Context, post *models.Post) error
}

// Feed is the ordered, id-deduplicated post list of one thread.
type Feed struct {
	log      *slog.Logger
	remote   Remote
	notifier notify.Notifier
	threadID string
	self     string
	now      func() time.Time

	mu    sync.Mutex
	posts *feed.Log[models.Post]
}

func NewFeed(log *slog.Logger, remote Remote, notifier notify.Notifier, threadID, self string) *Feed {
	return &Feed{
		log:      log.With("component", "thread", "thread_id", threadID),
		remote:   remote,
		notifier: notifier,
		threadID: threadID,
		self:     self,
		now:      func() time.Time { return time.Now().UTC() },
		posts:    feed.NewLog[models.Post](),
	}
}

func (f *Feed) ThreadID() string { return f.threadID }

// Load merges the thread's stored posts into the feed and returns the ids
// of every post it now holds, oldest first. Posts merged from push events
// while the query ran are kept.
func (f *Feed) Load(ctx context.Context) ([]string, error) {
	posts, err := f.remote.ThreadPosts(ctx, f.threadID)
	if err != nil {
		return nil, fmt.Errorf("load thread %s: %w", f.threadID, err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range posts {
		if !f.posts.Insert(p) {
			f.posts.Replace(p)
		}
	}
	return lo.Map(f.posts.Ascending(), func(p models.Post, _ int) string { return p.ID }), nil
}

// Posts returns the feed oldest first.
func (f *Feed) Posts() []models.Post {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.posts.Ascending()
}

// MergeInserted fetches a pushed post and appends it unless its id is
// already present or it belongs to another thread. It reports whether the
// feed changed.
func (f *Feed) MergeInserted(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	known := f.posts.Has(id)
	f.mu.Unlock()
	if known {
		return false, nil
	}

	p, err := f.remote.PostByID(ctx, id)
	if err != nil {
		return false, fmt.Errorf("fetch inserted post %s: %w", id, err)
	}
	if p.ThreadID != f.threadID {
		return false, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.posts.Insert(*p), nil
}

// Post appends a reply by self optimistically and stores it. A failed
// insert removes the local copy and is reported once.
func (f *Feed) Post(ctx context.Context, content string, imageURL *string) (models.Post, error) {
	content = strings.TrimSpace(content)
	if content == "" && imageURL == nil {
		return models.Post{}, ErrEmptyPost
	}
	p := models.Post{
		ID:        uuid.NewString(),
		ThreadID:  f.threadID,
		AuthorID:  f.self,
		Content:   content,
		ImageURL:  imageURL,
		CreatedAt: f.now(),
	}

	f.mu.Lock()
	f.posts.Insert(p)
	f.mu.Unlock()

	stored := p
	if err := f.remote.InsertPost(ctx, &stored); err != nil {
		f.mu.Lock()
		f.posts.Remove(p.ID)
		f.mu.Unlock()
		f.log.WarnContext(ctx, "post rolled back", "error", err)
		f.notifier.Notify(ctx, notify.Failed("post reply", err))
		return models.Post{}, fmt.Errorf("post to thread %s: %w", f.threadID, err)
	}

	f.mu.Lock()
	f.posts.Replace(stored)
	f.mu.Unlock()
	return stored, nil
}
