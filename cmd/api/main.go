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
	"server/internal/captions"
	"server/internal/domain"
	"server/internal/http/handlers"
	"server/internal/http/httpapi"
	"server/internal/infra"
	"server/internal/middleware"
	"server/internal/pipeline"
	"server/internal/providers/caption"
	"server/internal/providers/render"
)

const retentionSweepInterval = time.Hour

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
		logger.Fatal().Err(err).Msg("api: db connection failed")
	}
	defer pool.Close()

	jobs := repo.NewJobRepository(pool)
	history := repo.NewHistoryRepository(pool)

	renderClient, err := render.NewHTTPClient(render.Options{
		APIKey:  cfg.RenderAPIKey,
		BaseURL: cfg.RenderBaseURL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to configure rendering client")
	}

	model, err := caption.NewOpenAIClient(caption.OpenAIOptions{
		APIKey:       cfg.OpenAIAPIKey,
		Model:        cfg.OpenAIModel,
		BaseURL:      cfg.OpenAIBaseURL,
		Organization: cfg.OpenAIOrg,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to configure text model client")
	}

	app := &handlers.App{
		Log:        logger,
		Jobs:       jobs,
		Submitter:  pipeline.NewSubmitter(jobs, renderClient, cfg.RenderWebhookURL, logger),
		Reconciler: pipeline.NewReconciler(jobs, renderClient, logger),
		Generator:  captions.NewGenerator(model, history, cfg.CaptionHistoryWindow, logger),
	}

	resolver := middleware.StaticSessionResolver(cfg.SessionTokens)
	router := httpapi.NewRouter(app, logger, resolver, cfg.AllowedOrigins)
	server := infra.NewHTTPServer(cfg, router)

	go sweepTerminalRows(ctx, jobs, cfg.JobRetention, logger)

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("api: listening")
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("api: server stopped")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api: shutdown failed")
	}
	logger.Info().Msg("api: stopped")
}

// sweepTerminalRows enforces the retention window on terminal job rows.
// Best-effort: correctness never depends on a purge landing.
func sweepTerminalRows(ctx context.Context, jobs domain.JobRepository, retention time.Duration, logger infra.Logger) {
	ticker := time.NewTicker(retentionSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := jobs.PurgeTerminalBefore(ctx, time.Now().Add(-retention))
			if err != nil {
				logger.Warn().Err(err).Msg("api: retention sweep failed")
				continue
			}
			if purged > 0 {
				logger.Info().Int64("purged", purged).Msg("api: retention sweep removed terminal jobs")
			}
		}
	}
}
