// Package memstore is an in-memory stand-in for the Postgres store, used by
// engine tests. It enforces the same uniqueness rules and returns the same
// sentinel errors as store.Store.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/emilythestrangee/warroom/backend/internal/models"
	"github.com/emilythestrangee/warroom/backend/internal/store"
)

// Operation names passed to FailWith hooks.
const (
	OpInsertVote    = "InsertVote"
	OpUpdateVote    = "UpdateVote"
	OpDeleteVote    = "DeleteVote"
	OpCountVotes    = "CountVotes"
	OpOwnVote       = "OwnVote"
	OpOwnVotes      = "OwnVotes"
	OpInsertPost    = "InsertPost"
	OpPostByID      = "PostByID"
	OpThreadPosts   = "ThreadPosts"
	OpInsertMessage = "InsertMessage"
	OpMessageByID   = "MessageByID"
	OpMessages      = "MessagesInvolving"
	OpMarkRead      = "MarkRead"
	OpProfiles      = "Profiles"
	OpThreads       = "Threads"
	OpCreateThread  = "CreateThread"
	OpThreadView    = "CountThreadView"
)

type voteKey struct{ post, user string }

type Store struct {
	mu       sync.Mutex
	votes    map[voteKey]models.Vote
	posts    map[string]models.Post
	messages map[string]models.Message
	users    map[string]models.User
	threads  map[string]models.Thread
	faults   map[string]error
	calls    map[string]int
}

func New() *Store {
	return &Store{
		votes:    make(map[voteKey]models.Vote),
		posts:    make(map[string]models.Post),
		messages: make(map[string]models.Message),
		users:    make(map[string]models.User),
		threads:  make(map[string]models.Thread),
		faults:   make(map[string]error),
		calls:    make(map[string]int),
	}
}

// FailWith makes every subsequent call of op return err. A nil err clears
// the fault.
func (s *Store) FailWith(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, op)
		return
	}
	s.faults[op] = err
}

// Calls reports how many times op was invoked.
func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *Store) enter(op string) error {
	s.calls[op]++
	return s.faults[op]
}

// Seeding helpers, bypassing fault injection.

func (s *Store) PutUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *Store) PutThread(th models.Thread) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[th.ID] = th
}

func (s *Store) PutVote(v models.Vote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.votes[voteKey{v.PostID, v.UserID}] = v
}

func (s *Store) PutPost(p models.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts[p.ID] = p
}

func (s *Store) PutMessage(m models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[m.ID] = m
}

// Votes returns the stored vote rows of a post.
func (s *Store) Votes(postID string) []models.Vote {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.Filter(lo.Values(s.votes), func(v models.Vote, _ int) bool { return v.PostID == postID })
}

func (s *Store) Message(id string) (models.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	return m, ok
}

func (s *Store) InsertVote(_ context.Context, vote models.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpInsertVote); err != nil {
		return err
	}
	k := voteKey{vote.PostID, vote.UserID}
	if _, ok := s.votes[k]; ok {
		return fmt.Errorf("insert vote: %w", store.ErrDuplicateVote)
	}
	vote.CreatedAt = time.Now().UTC()
	s.votes[k] = vote
	return nil
}

func (s *Store) UpdateVote(_ context.Context, vote models.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpUpdateVote); err != nil {
		return err
	}
	k := voteKey{vote.PostID, vote.UserID}
	cur, ok := s.votes[k]
	if !ok {
		return fmt.Errorf("update vote: %w", store.ErrNotFound)
	}
	cur.Kind = vote.Kind
	s.votes[k] = cur
	return nil
}

func (s *Store) DeleteVote(_ context.Context, postID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpDeleteVote); err != nil {
		return err
	}
	k := voteKey{postID, userID}
	if _, ok := s.votes[k]; !ok {
		return fmt.Errorf("delete vote: %w", store.ErrNotFound)
	}
	delete(s.votes, k)
	return nil
}

func (s *Store) CountVotes(_ context.Context, postID string) (store.Counts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpCountVotes); err != nil {
		return store.Counts{}, err
	}
	var c store.Counts
	for _, v := range s.votes {
		if v.PostID != postID {
			continue
		}
		switch v.Kind {
		case models.VoteUp:
			c.Up++
		case models.VoteDown:
			c.Down++
		}
	}
	return c, nil
}

func (s *Store) OwnVote(_ context.Context, postID, userID string) (*models.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpOwnVote); err != nil {
		return nil, err
	}
	v, ok := s.votes[voteKey{postID, userID}]
	if !ok {
		return nil, fmt.Errorf("own vote: %w", store.ErrNotFound)
	}
	return &v, nil
}

func (s *Store) OwnVotes(_ context.Context, userID string, postIDs []string) ([]models.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpOwnVotes); err != nil {
		return nil, err
	}
	var out []models.Vote
	for _, id := range postIDs {
		if v, ok := s.votes[voteKey{id, userID}]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *Store) InsertPost(_ context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpInsertPost); err != nil {
		return err
	}
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	if _, ok := s.posts[post.ID]; ok {
		return fmt.Errorf("insert post: %w", store.ErrDuplicate)
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}
	s.posts[post.ID] = *post
	return nil
}

func (s *Store) PostByID(_ context.Context, id string) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpPostByID); err != nil {
		return nil, err
	}
	p, ok := s.posts[id]
	if !ok {
		return nil, fmt.Errorf("post by id: %w", store.ErrNotFound)
	}
	return &p, nil
}

func (s *Store) ThreadPosts(_ context.Context, threadID string) ([]models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpThreadPosts); err != nil {
		return nil, err
	}
	posts := lo.Filter(lo.Values(s.posts), func(p models.Post, _ int) bool { return p.ThreadID == threadID })
	sort.Slice(posts, func(i, j int) bool {
		if posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].ID < posts[j].ID
		}
		return posts[i].CreatedAt.Before(posts[j].CreatedAt)
	})
	return posts, nil
}

func (s *Store) InsertMessage(_ context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpInsertMessage); err != nil {
		return err
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if _, ok := s.messages[msg.ID]; ok {
		return fmt.Errorf("insert message: %w", store.ErrDuplicate)
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	s.messages[msg.ID] = *msg
	return nil
}

func (s *Store) MessageByID(_ context.Context, id string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpMessageByID); err != nil {
		return nil, err
	}
	m, ok := s.messages[id]
	if !ok {
		return nil, fmt.Errorf("message by id: %w", store.ErrNotFound)
	}
	return &m, nil
}

func (s *Store) MessagesInvolving(_ context.Context, userID string) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpMessages); err != nil {
		return nil, err
	}
	msgs := lo.Filter(lo.Values(s.messages), func(m models.Message, _ int) bool { return m.Involves(userID) })
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].ID > msgs[j].ID
		}
		return msgs[i].CreatedAt.After(msgs[j].CreatedAt)
	})
	return msgs, nil
}

func (s *Store) MarkRead(_ context.Context, recipientID string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpMarkRead); err != nil {
		return err
	}
	for _, id := range ids {
		m, ok := s.messages[id]
		if !ok || m.RecipientID != recipientID {
			continue
		}
		m.Read = true
		s.messages[id] = m
	}
	return nil
}

func (s *Store) Profiles(_ context.Context, ids []string) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpProfiles); err != nil {
		return nil, err
	}
	var out []models.User
	for _, id := range lo.Uniq(ids) {
		if u, ok := s.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *Store) OtherProfiles(_ context.Context, self string) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := lo.Filter(lo.Values(s.users), func(u models.User, _ int) bool { return u.ID != self })
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (s *Store) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	for _, u := range s.users {
		if u.ID == user.ID || u.Email == user.Email || u.Username == user.Username {
			return fmt.Errorf("create user: %w", store.ErrDuplicate)
		}
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	s.users[user.ID] = *user
	return nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := lo.Find(lo.Values(s.users), func(u models.User) bool { return u.Email == email })
	if !ok {
		return nil, fmt.Errorf("user by email: %w", store.ErrNotFound)
	}
	return &u, nil
}

func (s *Store) UserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user by id: %w", store.ErrNotFound)
	}
	return &u, nil
}

func (s *Store) Threads(_ context.Context) ([]models.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpThreads); err != nil {
		return nil, err
	}
	threads := lo.Values(s.threads)
	sort.Slice(threads, func(i, j int) bool {
		if threads[i].IsPinned != threads[j].IsPinned {
			return threads[i].IsPinned
		}
		return threads[i].CreatedAt.After(threads[j].CreatedAt)
	})
	return threads, nil
}

func (s *Store) ThreadByID(_ context.Context, id string) (*models.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	th, ok := s.threads[id]
	if !ok {
		return nil, fmt.Errorf("thread by id: %w", store.ErrNotFound)
	}
	return &th, nil
}

// CreateThread stores both rows or neither.
func (s *Store) CreateThread(_ context.Context, thread *models.Thread, first *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpCreateThread); err != nil {
		return err
	}
	if thread.ID == "" {
		thread.ID = uuid.NewString()
	}
	if first.ID == "" {
		first.ID = uuid.NewString()
	}
	if _, ok := s.threads[thread.ID]; ok {
		return fmt.Errorf("create thread: %w", store.ErrDuplicate)
	}
	if _, ok := s.posts[first.ID]; ok {
		return fmt.Errorf("create thread: %w", store.ErrDuplicate)
	}
	now := time.Now().UTC()
	if thread.CreatedAt.IsZero() {
		thread.CreatedAt = now
	}
	if first.CreatedAt.IsZero() {
		first.CreatedAt = now
	}
	first.ThreadID = thread.ID
	s.threads[thread.ID] = *thread
	s.posts[first.ID] = *first
	return nil
}

func (s *Store) CountThreadView(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpThreadView); err != nil {
		return err
	}
	th, ok := s.threads[id]
	if !ok {
		return fmt.Errorf("count thread view: %w", store.ErrNotFound)
	}
	th.ViewCount++
	s.threads[id] = th
	return nil
}
