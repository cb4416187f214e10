package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/warroom/backend/internal/realtime"
)

type RealtimeHandler struct {
	hub *realtime.Hub
}

func NewRealtimeHandler(hub *realtime.Hub) *RealtimeHandler {
	return &RealtimeHandler{hub: hub}
}

// Stream upgrades to a websocket carrying change notifications. Query
// parameters "tables" and "thread_id" narrow the stream.
func (h *RealtimeHandler) Stream(c *gin.Context) {
	h.hub.ServeWS(c.Writer, c.Request)
}
