package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/emilythestrangee/warroom/backend/internal/models"
	"github.com/emilythestrangee/warroom/backend/internal/realtime"
	"github.com/emilythestrangee/warroom/backend/internal/session"
)

// Store is the persistence the HTTP layer needs.
type Store interface {
	session.Remote
	CreateUser(ctx context.Context, user *models.User) error
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	UserByID(ctx context.Context, id string) (*models.User, error)
	OtherProfiles(ctx context.Context, self string) ([]models.User, error)
}

// Handler combines all handler types
type Handler struct {
	Auth     *AuthHandler
	Post     *PostHandler
	Message  *MessageHandler
	User     *UserHandler
	Realtime *RealtimeHandler
}

// NewHandler creates a unified handler with all sub-handlers
func NewHandler(log *slog.Logger, st Store, hub *realtime.Hub, secret []byte, tokenTTL time.Duration) *Handler {
	return &Handler{
		Auth:     NewAuthHandler(st, secret, tokenTTL),
		Post:     NewPostHandler(log, st),
		Message:  NewMessageHandler(log, st),
		User:     NewUserHandler(st),
		Realtime: NewRealtimeHandler(hub),
	}
}
