package http

import (
	"io"
	"net/http"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/metaschool/rtcrelay/internal/app"
	"github.com/metaschool/rtcrelay/internal/domain"
)

// handleNotifications serves the long-lived event stream for one
// (room, participant) pair. Idle periods emit a comment ping so proxies and
// clients never see a silently starved stream.
func (h *Handlers) handleNotifications(c *gin.Context) {
	token := c.Query("token")
	roomID := c.Query("room_id")
	if roomID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room_id required"})
		return
	}
	user, err := h.Auth.Verify(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	room := domain.RoomID(roomID)
	sub := h.Bus.Subscribe(room, user)
	defer sub.Cancel()

	log.Info().
		Str("module", "adapters.http").
		Str("room", roomID).Str("user", string(user)).
		Msg("notification stream opened")

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		ev, status := sub.Next(c.Request.Context(), h.KeepAlive)
		switch status {
		case app.NextEvent:
			if err := sse.Encode(w, sse.Event{Event: "message", Data: ev}); err != nil {
				return false
			}
			return true
		case app.NextKeepAlive:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return false
			}
			return true
		default:
			return false
		}
	})

	log.Info().
		Str("module", "adapters.http").
		Str("room", roomID).Str("user", string(user)).
		Msg("notification stream closed")
}
