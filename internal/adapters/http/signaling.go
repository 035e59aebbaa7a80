package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/metaschool/rtcrelay/internal/app"
	"github.com/metaschool/rtcrelay/internal/core"
	"github.com/metaschool/rtcrelay/internal/domain"
)

type offerRequest struct {
	RoomID string `json:"room_id"`
	SDP    string `json:"sdp"`
	Type   string `json:"type"`
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	return strings.TrimPrefix(h, "Bearer ")
}

func (h *Handlers) handleSignaling(c *gin.Context) {
	user, err := h.Auth.Verify(bearerToken(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req offerRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RoomID == "" || req.SDP == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid offer"})
		return
	}

	answer, err := h.Signaling.HandleOffer(
		c.Request.Context(),
		domain.RoomID(req.RoomID),
		user,
		core.SessionDescription{SDP: req.SDP, Type: req.Type},
	)
	switch {
	case errors.Is(err, app.ErrSessionClosed):
		// Ordinary peer departure, not a server fault: answer with a
		// normal-looking close so the client stops renegotiating.
		c.JSON(http.StatusOK, gin.H{"type": "closed"})
	case err != nil:
		log.Error().Err(err).
			Str("module", "adapters.http").
			Str("room", req.RoomID).Str("user", string(user)).
			Msg("signaling exchange failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "exchange failed"})
	default:
		c.JSON(http.StatusOK, answer)
	}
}

// handleDebugToken mints a bearer token, generating a participant id when
// none is supplied. Registered in debug mode only.
func (h *Handlers) handleDebugToken(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		userID = uuid.NewString()
	}
	token, err := h.Tokens.Issue(domain.UserID(userID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "token": token})
}
