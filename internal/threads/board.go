package threads

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/emilythestrangee/warroom/backend/internal/models"
	"github.com/emilythestrangee/warroom/backend/internal/notify"
)

var ErrEmptyTitle = errors.New("thread title is empty")

type BoardRemote interface {
	Threads(ctx context.Context) ([]models.Thread, error)
	CreateThread(ctx context.Context, thread *models.Thread, first *models.Post) error
	CountThreadView(ctx context.Context, id string) error
}

// Board is the session's copy of the thread list, pinned threads first and
// then newest first. The order depends on pins, so any change to a thread
// refetches the whole list.
type Board struct {
	log      *slog.Logger
	remote   BoardRemote
	notifier notify.Notifier
	self     string

	mu      sync.Mutex
	threads []models.Thread
}

func NewBoard(log *slog.Logger, remote BoardRemote, notifier notify.Notifier, self string) *Board {
	return &Board{
		log:      log.With("component", "board"),
		remote:   remote,
		notifier: notifier,
		self:     self,
	}
}

func (b *Board) Load(ctx context.Context) error {
	list, err := b.remote.Threads(ctx)
	if err != nil {
		return fmt.Errorf("load threads: %w", err)
	}
	b.mu.Lock()
	b.threads = list
	b.mu.Unlock()
	return nil
}

func (b *Board) Threads() []models.Thread {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Thread(nil), b.threads...)
}

// Create opens a thread by self with its first post. Both rows are written
// together; a failure is reported once and leaves the list untouched.
func (b *Board) Create(ctx context.Context, title, category, content string, imageURL *string) (models.Thread, models.Post, error) {
	title, content = strings.TrimSpace(title), strings.TrimSpace(content)
	switch {
	case title == "":
		return models.Thread{}, models.Post{}, ErrEmptyTitle
	case content == "" && imageURL == nil:
		return models.Thread{}, models.Post{}, ErrEmptyPost
	}
	th := models.Thread{Title: title, Category: strings.TrimSpace(category), AuthorID: b.self}
	first := models.Post{AuthorID: b.self, Content: content, ImageURL: imageURL}
	if err := b.remote.CreateThread(ctx, &th, &first); err != nil {
		b.log.WarnContext(ctx, "thread not created", "error", err)
		b.notifier.Notify(ctx, notify.Failed("create thread", err))
		return models.Thread{}, models.Post{}, fmt.Errorf("create thread: %w", err)
	}
	if err := b.Load(ctx); err != nil {
		b.log.WarnContext(ctx, "thread list not refreshed", "thread_id", th.ID, "error", err)
	}
	return th, first, nil
}

// Viewed counts one view of the thread. Failures are only logged.
func (b *Board) Viewed(ctx context.Context, threadID string) {
	if err := b.remote.CountThreadView(ctx, threadID); err != nil {
		b.log.WarnContext(ctx, "thread view not counted", "thread_id", threadID, "error", err)
	}
}
