package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/httplog"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/undeadops/snip/internal/api"
	"github.com/undeadops/snip/internal/config"
	"github.com/undeadops/snip/internal/db"
	"github.com/undeadops/snip/internal/ratelimit"
	"github.com/undeadops/snip/internal/service"
	"github.com/undeadops/snip/internal/shortid"
	"github.com/undeadops/snip/internal/web"
)

const (
	appName = "snip"
)

var version string

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := httplog.NewLogger(appName, httplog.Options{
		JSON:    !cfg.IsDevelopment(),
		Concise: true,
		Tags: map[string]string{
			"version": version,
			"app":     appName,
			"env":     cfg.Env,
		},
	})

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Warn().Str("level", cfg.LogLevel).Msg("Unknown log level, using info")
		level = zerolog.InfoLevel
	}
	if cfg.Debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	logger.Info().Str("version", version).Msgf("Starting %s version %s", appName, version)

	if err := run(ctx, cfg, logger); err != nil {
		stop()
		logger.Fatal().Err(err).Msgf("%s exited with error", appName)
	}
	logger.Info().Msgf("Shutting down %s server", appName)
}

// run owns every resource it opens and releases them before returning.
func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger.Info().Str("backend", cfg.StoreBackend).Msg("Setting up database connection...")
	urls, err := db.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer urls.Close()

	rateLimit := &ratelimit.Options{
		Limit:  cfg.RateLimit,
		Window: cfg.RateLimitWindow,
	}
	if cfg.RedisURL != "" {
		counter, err := ratelimit.NewRedisCounter(ctx, cfg.RedisURL, appName+":ratelimit", logger)
		if err != nil {
			return err
		}
		defer counter.Close()
		rateLimit.Counter = counter
	}

	views, err := web.New()
	if err != nil {
		return err
	}

	svc := service.NewShortener(urls, shortid.New(), logger)
	router := api.Router(svc, views, api.Options{
		BaseURL:        cfg.BaseURL,
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimit:      rateLimit,
	}, logger)

	if cfg.IsTest() {
		logger.Info().Msg("Test mode, not listening")
		return nil
	}

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	logger.Info().Str("base_url", cfg.BaseURL).Msgf("Starting %s server on port %s", appName, cfg.Port)
	// Run server in the background
	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Listen for the interrupt signal
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()

	// Trigger graceful shutdown
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
