// Package store is the Postgres-backed implementation of the relational
// collaborator: posts, votes, messages and profiles.
package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/emilythestrangee/warroom/backend/internal/models"
)

// Counts is the per-kind vote count of one post as stored.
type Counts struct {
	Up   int `gorm:"column:up"`
	Down int `gorm:"column:down"`
}

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// InsertVote creates the (post, user) vote row. A second insert for the same
// pair fails with ErrDuplicateVote.
func (s *Store) InsertVote(ctx context.Context, vote models.Vote) error {
	if err := s.db.WithContext(ctx).Create(&vote).Error; err != nil {
		return fmt.Errorf("insert vote: %w", castErr(err, ErrDuplicateVote))
	}
	return nil
}

func (s *Store) UpdateVote(ctx context.Context, vote models.Vote) error {
	res := s.db.WithContext(ctx).
		Model(&models.Vote{}).
		Where("post_id = ? AND user_id = ?", vote.PostID, vote.UserID).
		Update("vote_type", vote.Kind)
	if res.Error != nil {
		return fmt.Errorf("update vote: %w", castErr(res.Error, ErrDuplicateVote))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update vote: %w", ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteVote(ctx context.Context, postID, userID string) error {
	res := s.db.WithContext(ctx).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Delete(&models.Vote{})
	if res.Error != nil {
		return fmt.Errorf("delete vote: %w", castErr(res.Error, ErrDuplicateVote))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete vote: %w", ErrNotFound)
	}
	return nil
}

// CountVotes counts the stored votes of each kind for one post.
func (s *Store) CountVotes(ctx context.Context, postID string) (Counts, error) {
	var c Counts
	err := s.db.WithContext(ctx).Raw(`
		SELECT
			COUNT(*) FILTER (WHERE vote_type = ?) AS up,
			COUNT(*) FILTER (WHERE vote_type = ?) AS down
		FROM votes
		WHERE post_id = ?
	`, models.VoteUp, models.VoteDown, postID).Scan(&c).Error
	if err != nil {
		return Counts{}, fmt.Errorf("count votes: %w", castReadErr(err))
	}
	return c, nil
}

func (s *Store) OwnVote(ctx context.Context, postID, userID string) (*models.Vote, error) {
	var v models.Vote
	err := s.db.WithContext(ctx).
		Where("post_id = ? AND user_id = ?", postID, userID).
		First(&v).Error
	if err != nil {
		return nil, fmt.Errorf("own vote: %w", castReadErr(err))
	}
	return &v, nil
}

// OwnVotes returns the votes userID cast on any of postIDs.
func (s *Store) OwnVotes(ctx context.Context, userID string, postIDs []string) ([]models.Vote, error) {
	if len(postIDs) == 0 {
		return nil, nil
	}
	var votes []models.Vote
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND post_id = ANY(?)", userID, pq.Array(postIDs)).
		Find(&votes).Error
	if err != nil {
		return nil, fmt.Errorf("own votes: %w", castReadErr(err))
	}
	return votes, nil
}

// InsertPost stores a post. A missing ID is generated; a caller-supplied ID
// lets optimistic copies and the stored row share identity.
func (s *Store) InsertPost(ctx context.Context, post *models.Post) error {
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	if err := s.db.WithContext(ctx).Omit("Author").Create(post).Error; err != nil {
		return fmt.Errorf("insert post: %w", castErr(err, ErrDuplicate))
	}
	return nil
}

func (s *Store) PostByID(ctx context.Context, id string) (*models.Post, error) {
	var p models.Post
	if err := s.db.WithContext(ctx).Preload("Author").First(&p, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("post by id: %w", castReadErr(err))
	}
	return &p, nil
}

func (s *Store) Threads(ctx context.Context) ([]models.Thread, error) {
	var threads []models.Thread
	err := s.db.WithContext(ctx).Order("is_pinned desc, created_at desc").Find(&threads).Error
	if err != nil {
		return nil, fmt.Errorf("threads: %w", castReadErr(err))
	}
	return threads, nil
}

func (s *Store) ThreadByID(ctx context.Context, id string) (*models.Thread, error) {
	var th models.Thread
	if err := s.db.WithContext(ctx).First(&th, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("thread by id: %w", castReadErr(err))
	}
	return &th, nil
}

// CreateThread stores a thread and its opening post in one transaction.
// Missing ids are generated; first is attached to thread.
func (s *Store) CreateThread(ctx context.Context, thread *models.Thread, first *models.Post) error {
	if thread.ID == "" {
		thread.ID = uuid.NewString()
	}
	if first.ID == "" {
		first.ID = uuid.NewString()
	}
	first.ThreadID = thread.ID
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(thread).Error; err != nil {
			return err
		}
		return tx.Omit("Author").Create(first).Error
	})
	if err != nil {
		return fmt.Errorf("create thread: %w", castErr(err, ErrDuplicate))
	}
	return nil
}

// CountThreadView increments the thread's view counter.
func (s *Store) CountThreadView(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).
		Model(&models.Thread{}).
		Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + 1"))
	if res.Error != nil {
		return fmt.Errorf("count thread view: %w", castReadErr(res.Error))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("count thread view: %w", ErrNotFound)
	}
	return nil
}

// ThreadPosts lists a thread's posts, oldest first.
func (s *Store) ThreadPosts(ctx context.Context, threadID string) ([]models.Post, error) {
	var posts []models.Post
	err := s.db.WithContext(ctx).
		Preload("Author").
		Where("thread_id = ?", threadID).
		Order("created_at asc, id asc").
		Find(&posts).Error
	if err != nil {
		return nil, fmt.Errorf("thread posts: %w", castReadErr(err))
	}
	return posts, nil
}

func (s *Store) InsertMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("insert message: %w", castErr(err, ErrDuplicate))
	}
	return nil
}

func (s *Store) MessageByID(ctx context.Context, id string) (*models.Message, error) {
	var m models.Message
	if err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("message by id: %w", castReadErr(err))
	}
	return &m, nil
}

// MessagesInvolving returns every message userID sent or received, newest
// first.
func (s *Store) MessagesInvolving(ctx context.Context, userID string) ([]models.Message, error) {
	var msgs []models.Message
	err := s.db.WithContext(ctx).
		Where("sender_id = ? OR recipient_id = ?", userID, userID).
		Order("created_at desc, id desc").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("messages involving: %w", castReadErr(err))
	}
	return msgs, nil
}

// MarkRead flags ids as read. Only rows addressed to recipientID are touched.
func (s *Store) MarkRead(ctx context.Context, recipientID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("recipient_id = ? AND id = ANY(?)", recipientID, pq.Array(ids)).
		Update("read", true).Error
	if err != nil {
		return fmt.Errorf("mark read: %w", castReadErr(err))
	}
	return nil
}

func (s *Store) Profiles(ctx context.Context, ids []string) ([]models.User, error) {
	ids = lo.Uniq(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	var users []models.User
	err := s.db.WithContext(ctx).
		Where("id = ANY(?)", pq.Array(ids)).
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("profiles: %w", castReadErr(err))
	}
	return users, nil
}

// OtherProfiles lists everyone except self, for starting a new conversation.
func (s *Store) OtherProfiles(ctx context.Context, self string) ([]models.User, error) {
	var users []models.User
	err := s.db.WithContext(ctx).
		Where("id <> ?", self).
		Order("username asc").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("other profiles: %w", castReadErr(err))
	}
	return users, nil
}
