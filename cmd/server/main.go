package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fenrik/chanvault/internal/archive"
	"github.com/fenrik/chanvault/internal/config"
	"github.com/fenrik/chanvault/internal/database"
	"github.com/fenrik/chanvault/internal/logger"
	"github.com/fenrik/chanvault/internal/nats"
	"github.com/fenrik/chanvault/internal/platform"
	"github.com/fenrik/chanvault/internal/publisher"
	"github.com/fenrik/chanvault/internal/scraper"
	"github.com/fenrik/chanvault/internal/store"
)

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// 2. Initialize logger
	if err := logger.Init(cfg.LogLevel, cfg.LogFile); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	log := logger.Get()
	log.Info().Msg("starting chanvault service")

	// 3. Setup context with graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("received shutdown signal")
		cancel()
	}()

	// 4. Open the local store
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	// 5. Connect to NATS (optional)
	var nc *nats.Client
	if cfg.NatsURL != "" {
		nc, err = nats.New(ctx, cfg.NatsURL)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to nats, publishing disabled")
			nc = nil
		} else {
			defer nc.Close()
		}
	}

	var pub scraper.EventPublisher
	if nc != nil {
		pub = publisher.NewNATSPublisher(nc.Conn)
	}

	// 6. Initialize repositories
	credentialsRepo := store.NewCredentialsRepository(db.GORM)
	channelsRepo := store.NewChannelsRepository(db.GORM)

	// 7. Initialize platform client & scraper service
	client := platform.NewClient(cfg.PlatformBaseURL)
	sessions := scraper.NewSessionCache()
	svc := scraper.NewService(
		client,
		time.Duration(cfg.PageDelayMs)*time.Millisecond,
		sessions,
		pub,
		log,
	)

	// 8. Initialize archive builder & HTTP handler
	builder := archive.NewBuilder(client, log)
	handler := scraper.NewHandler(
		svc,
		sessions,
		builder,
		client,
		credentialsRepo,
		channelsRepo,
		time.Duration(cfg.DatasetTimeoutSeconds)*time.Second,
		log,
	)

	// 9. Start server
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           scraper.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().Int("port", cfg.HTTPPort).Msg("starting http server")
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// 10. Wait for shutdown
	<-ctx.Done()
	log.Info().Msg("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}

	log.Info().Msg("shutdown complete")
}
