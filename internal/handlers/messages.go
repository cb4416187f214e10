package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/warroom/backend/internal/conversations"
	"github.com/emilythestrangee/warroom/backend/internal/middleware"
	"github.com/emilythestrangee/warroom/backend/internal/models"
	"github.com/emilythestrangee/warroom/backend/internal/notify"
)

type MessageHandler struct {
	log *slog.Logger
	st  Store
}

func NewMessageHandler(log *slog.Logger, st Store) *MessageHandler {
	return &MessageHandler{log: log, st: st}
}

func (h *MessageHandler) inbox(userID string) *conversations.Inbox {
	return conversations.NewInbox(h.log, h.st, notify.NewLogger(h.log), userID)
}

// GetConversations lists one summary per peer, most recent first.
func (h *MessageHandler) GetConversations(c *gin.Context) {
	userID, _ := middleware.UserID(c)
	in := h.inbox(userID)
	if err := in.Load(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch conversations"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"conversations": in.Conversations(),
		"unread":        in.Unread(),
	})
}

// GetConversation returns the messages exchanged with a peer, oldest first,
// after marking the peer's unread messages read.
func (h *MessageHandler) GetConversation(c *gin.Context) {
	ctx := c.Request.Context()
	userID, _ := middleware.UserID(c)
	in := h.inbox(userID)
	if err := in.Load(ctx); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch messages"})
		return
	}
	thread, err := in.Open(ctx, c.Param("peer"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": notify.RetryMessage})
		return
	}
	if thread == nil {
		thread = []models.Message{}
	}
	c.JSON(http.StatusOK, thread)
}

func (h *MessageHandler) GetMessage(c *gin.Context) {
	userID, _ := middleware.UserID(c)
	msg, err := h.st.MessageByID(c.Request.Context(), c.Param("id"))
	if err != nil || !msg.Involves(userID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Message not found"})
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *MessageHandler) SendMessage(c *gin.Context) {
	ctx := c.Request.Context()
	var input models.SendMessageRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID, _ := middleware.UserID(c)
	if input.RecipientID == userID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot message yourself"})
		return
	}
	if _, err := h.st.UserByID(ctx, input.RecipientID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Recipient not found"})
		return
	}

	msg, err := h.inbox(userID).Send(ctx, input.RecipientID, input.Content)
	switch {
	case errors.Is(err, conversations.ErrEmptyMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message is empty"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": notify.RetryMessage})
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// MarkRead flags the given messages read. Messages not addressed to the
// caller are left untouched.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	var input struct {
		IDs []string `json:"ids" binding:"required,min=1,dive,uuid"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID, _ := middleware.UserID(c)
	if err := h.st.MarkRead(c.Request.Context(), userID, input.IDs); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": notify.RetryMessage})
		return
	}
	c.Status(http.StatusNoContent)
}
