package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	broadcastadapter "github.com/ericfisherdev/bountywatch/internal/adapter/driven/broadcast"
	emailadapter "github.com/ericfisherdev/bountywatch/internal/adapter/driven/email"
	githubadapter "github.com/ericfisherdev/bountywatch/internal/adapter/driven/github"
	sqliteadapter "github.com/ericfisherdev/bountywatch/internal/adapter/driven/sqlite"
	telegramadapter "github.com/ericfisherdev/bountywatch/internal/adapter/driven/telegram"
	webhookadapter "github.com/ericfisherdev/bountywatch/internal/adapter/driven/webhook"
	httphandler "github.com/ericfisherdev/bountywatch/internal/adapter/driving/http"
	"github.com/ericfisherdev/bountywatch/internal/application"
	"github.com/ericfisherdev/bountywatch/internal/config"
	"github.com/ericfisherdev/bountywatch/internal/domain/model"
	"github.com/ericfisherdev/bountywatch/internal/domain/port/driven"
	"github.com/ericfisherdev/bountywatch/internal/extract"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on invalid env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"poll_interval", cfg.PollInterval,
		"sync_concurrency", cfg.SyncConcurrency,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire stores.
	repoStore := sqliteadapter.NewRepoRepo(db)
	issueStore := sqliteadapter.NewIssueRepo(db)
	bountyStore := sqliteadapter.NewBountyRepo(db)
	prefStore := sqliteadapter.NewPreferenceRepo(db)
	deliveryLog := sqliteadapter.NewDeliveryRepo(db)

	// 6. Create GitHub client. Without a token it runs unauthenticated
	// against the much lower anonymous rate limit.
	ghClient := githubadapter.NewClient(cfg.GitHubToken, cfg.RequestsPerMinute, cfg.Burst, cfg.APITimeout)
	if cfg.GitHubToken == "" {
		slog.Warn("no github token configured, running unauthenticated")
	}

	// 7. Wire notification channels. In-app broadcast is always on; email
	// falls back to the mock provider when no credentials are configured,
	// telegram is skipped entirely without a bot token.
	hub := broadcastadapter.NewHub(slog.Default())

	var emailProvider emailadapter.Provider
	if cfg.HasEmailCredentials() {
		emailProvider = emailadapter.NewBrevoProvider(
			cfg.EmailAPIURL, cfg.EmailAPIKey, cfg.EmailFrom, cfg.EmailFromName, slog.Default())
		slog.Info("email provider configured", "from", cfg.EmailFrom)
	} else {
		emailProvider = emailadapter.NewMockProvider(slog.Default())
		slog.Info("no email credentials configured, using mock provider")
	}

	adapters := []driven.ChannelAdapter{
		hub,
		emailadapter.NewAdapter(emailProvider, slog.Default()),
		webhookadapter.NewAdapter(slog.Default()),
	}
	if cfg.TelegramBotToken != "" {
		adapters = append(adapters,
			telegramadapter.NewAdapter(cfg.TelegramAPIURL, cfg.TelegramBotToken, slog.Default()))
		slog.Info("telegram channel configured")
	}

	// 8. Create and start the dispatcher.
	criticalKinds := make([]model.EventKind, 0, len(cfg.CriticalEvents))
	for _, k := range cfg.CriticalEvents {
		criticalKinds = append(criticalKinds, model.EventKind(k))
	}
	dispatchSvc := application.NewDispatchService(prefStore, deliveryLog, adapters, criticalKinds)
	go dispatchSvc.Run(ctx)

	// 9. Create the bounty lifecycle service.
	bountySvc := application.NewBountyService(bountyStore, issueStore, dispatchSvc)

	// 10. Create and start the sync service.
	extractor := extract.New(cfg.ConfidenceThreshold, cfg.BountyKeywords)
	syncSvc := application.NewSyncService(
		ghClient, repoStore, issueStore, bountyStore, extractor,
		dispatchSvc, cfg.PollInterval, cfg.SyncConcurrency,
	)
	go syncSvc.Start(ctx)

	// 11. Create HTTP handler and start the server.
	apiHandler := httphandler.NewHandler(
		repoStore, bountyStore, prefStore, syncSvc, bountySvc, dispatchSvc, hub, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.NewServeMux(apiHandler, slog.Default()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("bountywatch started",
		"listen_addr", cfg.ListenAddr,
		"poll_interval", cfg.PollInterval,
	)

	// 12. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
