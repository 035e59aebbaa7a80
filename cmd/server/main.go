package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/metaschool/rtcrelay/internal/adapters/auth"
	router "github.com/metaschool/rtcrelay/internal/adapters/http"
	"github.com/metaschool/rtcrelay/internal/adapters/rtc"
	"github.com/metaschool/rtcrelay/internal/app"
	"github.com/metaschool/rtcrelay/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	authn := auth.New(cfg.Secret, cfg.TokenTTL)
	engine := rtc.NewEngine(cfg.STUNServers)

	tracks := app.NewTrackRegistry()
	directory := app.NewDirectory(engine.NewSession)
	bus := app.NewEventBus(cfg.EventQueueSize)
	orch := &app.Orchestrator{
		Tracks:             tracks,
		Conns:              directory,
		Bus:                bus,
		NegotiationTimeout: cfg.NegotiationTimeout,
	}

	r := router.SetupRouter(cfg, &router.Handlers{
		Auth:      authn,
		Tokens:    authn,
		Signaling: orch,
		Bus:       bus,
		KeepAlive: cfg.KeepAlive,
	})
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("relay server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	// Every live peer connection must release its transport before exit.
	directory.CloseAll()
	log.Info().Msg("Server exited gracefully")
}
