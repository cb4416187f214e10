package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/emilythestrangee/warroom/backend/internal/middleware"
	"github.com/emilythestrangee/warroom/backend/internal/models"
	"github.com/emilythestrangee/warroom/backend/internal/notify"
	"github.com/emilythestrangee/warroom/backend/internal/store"
	"github.com/emilythestrangee/warroom/backend/internal/threads"
	"github.com/emilythestrangee/warroom/backend/internal/votes"
)

type PostHandler struct {
	log *slog.Logger
	st  Store
}

func NewPostHandler(log *slog.Logger, st Store) *PostHandler {
	return &PostHandler{log: log, st: st}
}

func (h *PostHandler) machine(userID string) *votes.Machine {
	return votes.NewMachine(h.log, h.st, notify.NewLogger(h.log), userID)
}

func postJSON(p models.Post, l votes.Ledger) gin.H {
	return gin.H{
		"id":         p.ID,
		"thread_id":  p.ThreadID,
		"author_id":  p.AuthorID,
		"author":     p.Author,
		"content":    p.Content,
		"image_url":  p.ImageURL,
		"created_at": p.CreatedAt,
		"upvotes":    l.Tally.Up,
		"downvotes":  l.Tally.Down,
		"score":      l.Tally.Score(),
		"user_vote":  l.Vote.String(),
	}
}

func (h *PostHandler) GetThreads(c *gin.Context) {
	list, err := h.st.Threads(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch threads"})
		return
	}
	if list == nil {
		list = []models.Thread{}
	}
	c.JSON(http.StatusOK, list)
}

// CreateThread opens a thread together with its first post.
func (h *PostHandler) CreateThread(c *gin.Context) {
	var input models.CreateThreadRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	b := threads.NewBoard(h.log, h.st, notify.NewLogger(h.log), userID)
	th, first, err := b.Create(c.Request.Context(), input.Title, input.Category, input.Content, input.ImageURL)
	switch {
	case errors.Is(err, threads.ErrEmptyTitle):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Title is required"})
		return
	case errors.Is(err, threads.ErrEmptyPost):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Content or image is required"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create thread"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"thread": th, "post": postJSON(first, votes.Ledger{PostID: first.ID})})
}

// GetThreadPosts counts a view of the thread and returns its posts oldest
// first, each with its tally and the caller's vote.
func (h *PostHandler) GetThreadPosts(c *gin.Context) {
	ctx := c.Request.Context()
	userID, _ := middleware.UserID(c)
	threadID := c.Param("id")

	if err := h.st.CountThreadView(ctx, threadID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Thread not found"})
			return
		}
		h.log.WarnContext(ctx, "thread view not counted", "thread_id", threadID, "error", err)
	}

	posts, err := h.st.ThreadPosts(ctx, threadID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch posts"})
		return
	}
	m := h.machine(userID)
	if err := m.Load(ctx, lo.Map(posts, func(p models.Post, _ int) string { return p.ID })); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch votes"})
		return
	}

	responses := lo.Map(posts, func(p models.Post, _ int) gin.H { return postJSON(p, m.Snapshot(p.ID)) })
	c.JSON(http.StatusOK, responses)
}

// GetPost returns a single post by ID
func (h *PostHandler) GetPost(c *gin.Context) {
	ctx := c.Request.Context()
	userID, _ := middleware.UserID(c)

	post, err := h.st.PostByID(ctx, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}
	m := h.machine(userID)
	if err := m.Load(ctx, []string{post.ID}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch votes"})
		return
	}
	c.JSON(http.StatusOK, postJSON(*post, m.Snapshot(post.ID)))
}

// CreatePost replies to a thread.
func (h *PostHandler) CreatePost(c *gin.Context) {
	var input models.CreatePostRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	f := threads.NewFeed(h.log, h.st, notify.NewLogger(h.log), c.Param("id"), userID)
	post, err := f.Post(c.Request.Context(), input.Content, input.ImageURL)
	switch {
	case errors.Is(err, threads.ErrEmptyPost):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Content or image is required"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create post"})
		return
	}
	c.JSON(http.StatusCreated, postJSON(post, votes.Ledger{PostID: post.ID}))
}

// VotePost toggles the caller's vote: repeating the current vote removes
// it, the opposite vote replaces it.
func (h *PostHandler) VotePost(c *gin.Context) {
	ctx := c.Request.Context()
	var input models.VoteRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "vote_type must be up or down"})
		return
	}
	kind, err := votes.ParseKind(string(input.VoteType))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	postID := c.Param("id")
	if _, err := h.st.PostByID(ctx, postID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}

	m := h.machine(userID)
	if err := m.Load(ctx, []string{postID}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch votes"})
		return
	}
	ledger, err := m.Toggle(ctx, postID, kind)
	switch {
	case errors.Is(err, store.ErrDuplicateVote), errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusConflict, gin.H{"error": notify.RetryMessage, "post_id": postID, "tally": ledger.Tally, "user_vote": ledger.Vote.String()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": notify.RetryMessage})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"post_id":   postID,
		"upvotes":   ledger.Tally.Up,
		"downvotes": ledger.Tally.Down,
		"score":     ledger.Tally.Score(),
		"user_vote": ledger.Vote.String(),
	})
}
