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

	router "github.com/parlor-chat/parlor/internal/adapters/http"
	"github.com/parlor-chat/parlor/internal/app"
	"github.com/parlor-chat/parlor/internal/app/assist"
	"github.com/parlor-chat/parlor/internal/app/private"
	"github.com/parlor-chat/parlor/internal/config"
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

	// The room table, registry and rate limiter are owned here and die
	// with the process; there is no cross-process state.
	engine := &app.Engine{
		Registry:       app.NewRegistry(),
		Rooms:          app.NewRoomManager(),
		Limiter:        app.NewRateLimiter(cfg.RateInterval),
		Policy:         app.SimplePolicy{},
		Assist:         assist.NewClient(cfg.Assist.URL, cfg.Assist.Model, cfg.Assist.Timeout),
		Private:        private.NewStore(),
		HistoryContext: cfg.HistoryContext,
	}

	r := router.SetupRouter(ctx, cfg, engine)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Parlor server started")
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
	log.Info().Msg("Server exited gracefully")
}
