// Package http exposes the signaling endpoint and the SSE notification
// stream over gin.
package http

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/metaschool/rtcrelay/internal/app"
	"github.com/metaschool/rtcrelay/internal/config"
	"github.com/metaschool/rtcrelay/internal/core"
	"github.com/metaschool/rtcrelay/internal/domain"
)

// SignalingService drives one offer/answer exchange.
type SignalingService interface {
	HandleOffer(ctx context.Context, room domain.RoomID, user domain.UserID, offer core.SessionDescription) (core.SessionDescription, error)
}

// Verifier resolves a bearer token to a participant identity.
type Verifier interface {
	Verify(token string) (domain.UserID, error)
}

// TokenIssuer mints debug tokens.
type TokenIssuer interface {
	Issue(user domain.UserID) (string, error)
}

type Handlers struct {
	Auth      Verifier
	Tokens    TokenIssuer
	Signaling SignalingService
	Bus       *app.EventBus
	KeepAlive time.Duration
}

func SetupRouter(cfg *config.Config, h *Handlers) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	api := r.Group("/api/v1")
	api.POST("/signaling", h.handleSignaling)
	api.GET("/notifications", h.handleNotifications)
	if cfg.Mode == "debug" {
		api.GET("/token", h.handleDebugToken)
	}

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Mode).Msg("router setup")
	return r
}
