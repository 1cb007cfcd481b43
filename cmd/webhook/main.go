package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"server/internal/adapter/repo"
	"server/internal/http/handlers"
	"server/internal/http/httpapi"
	"server/internal/infra"
)

// The webhook receiver runs as its own stateless binary so the completion
// callback endpoint can be deployed and scaled independently of the API.
func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("webhook: db connection failed")
	}
	defer pool.Close()

	handler := &handlers.WebhookHandler{
		Log:            logger,
		Jobs:           repo.NewJobRepository(pool),
		FallbackSecret: cfg.RenderWebhookSecret,
	}

	server := infra.NewHTTPServer(cfg, httpapi.NewWebhookRouter(handler, logger))

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("webhook: listening")
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("webhook: server stopped")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("webhook: shutdown failed")
	}
	logger.Info().Msg("webhook: stopped")
}
