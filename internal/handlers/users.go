package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/warroom/backend/internal/middleware"
	"github.com/emilythestrangee/warroom/backend/internal/models"
)

type UserHandler struct {
	st Store
}

func NewUserHandler(st Store) *UserHandler {
	return &UserHandler{st: st}
}

// GetUsers lists everyone but the caller, for starting a conversation.
func (h *UserHandler) GetUsers(c *gin.Context) {
	userID, _ := middleware.UserID(c)
	users, err := h.st.OtherProfiles(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"})
		return
	}
	if users == nil {
		users = []models.User{}
	}
	c.JSON(http.StatusOK, users)
}

// GetUserProfile returns a user's public profile
func (h *UserHandler) GetUserProfile(c *gin.Context) {
	user, err := h.st.UserByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"bio":        user.Bio,
		"avatar_url": user.AvatarURL,
		"created_at": user.CreatedAt,
	})
}
