package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tgrelay/internal/channel"
	"tgrelay/internal/config"
	"tgrelay/internal/metrics"
	"tgrelay/internal/publisher"
	"tgrelay/internal/relay"
	"tgrelay/internal/transport"
	"tgrelay/internal/worker"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook server",
		Long:  "Receives Telegram updates on the webhook path and relays videos to the Facebook Page. Press Ctrl+C to stop.",
		RunE:  runServe,
	}
}

func newTelegram(cfg *config.Config, collector *metrics.Collector) (*channel.Telegram, error) {
	return channel.NewTelegram(channel.TelegramConfig{
		Token:        cfg.Telegram.Token,
		APIEndpoint:  cfg.Telegram.APIEndpoint,
		FileEndpoint: cfg.Telegram.FileEndpoint,
		ParseMode:    cfg.Telegram.ParseMode,
		Client:       transport.SharedHTTPClient(60 * time.Second),
		Metrics:      collector,
		Logger:       logger,
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logClose, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer logClose.Close()

	if err := config.RequireCredentials(cfg, true); err != nil {
		return err
	}
	if cfg.General.TempDir != "" {
		if err := os.MkdirAll(cfg.General.TempDir, 0o700); err != nil {
			return fmt.Errorf("create temp dir: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := metrics.New()

	tg, err := newTelegram(cfg, collector)
	if err != nil {
		return err
	}

	if cfg.Telegram.SetWebhookOnStart {
		// Registration failure leaves the server running; the webhook can be
		// set later with `tgrelay webhook set`.
		if err := tg.SetWebhook(cfg.WebhookURL()); err != nil {
			logger.Error("failed to set webhook", "url", cfg.WebhookURL(), "err", err)
		}
	}

	fb, err := publisher.NewFacebook(publisher.FacebookConfig{
		PageID:          cfg.Facebook.PageID,
		AccessToken:     cfg.Facebook.AccessToken,
		GraphBase:       cfg.Facebook.GraphBase,
		APIVersion:      cfg.Facebook.APIVersion,
		Client:          transport.SharedHTTPClient(time.Duration(cfg.Facebook.TimeoutSeconds) * time.Second),
		BreakerFailures: cfg.Facebook.BreakerFailures,
		BreakerCooldown: time.Duration(cfg.Facebook.BreakerCooldownSeconds) * time.Second,
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	fetcher := relay.NewFetcher(relay.FetcherConfig{
		Resolver: tg,
		Client:   transport.SharedHTTPClient(0),
		Dir:      cfg.General.TempDir,
		MaxBytes: cfg.General.MaxFileBytes,
		Metrics:  collector,
		Logger:   logger,
	})

	pipeline := relay.NewPipeline(relay.PipelineConfig{
		Stager:    fetcher,
		Publisher: fb,
		Notifier:  tg,
		Metrics:   collector,
		Logger:    logger,
	})

	router := relay.NewRouter(relay.RouterConfig{
		Notifier: tg,
		Relayer:  pipeline,
		Metrics:  collector,
		Logger:   logger,
	})

	executor := worker.NewExecutor(worker.Config{
		MaxConcurrent: cfg.General.MaxConcurrentRelays,
		Metrics:       collector,
		Logger:        logger,
	})

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Endpoint
	}

	webhook := channel.NewWebhook(channel.WebhookConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		Path:            cfg.Telegram.WebhookPath,
		MetricsPath:     metricsPath,
		Dispatcher:      router,
		Executor:        executor,
		Metrics:         collector,
		ShutdownTimeout: time.Duration(cfg.General.ShutdownTimeoutSeconds) * time.Second,
		Logger:          logger,
	})

	logger.Info("tgrelay started. Press Ctrl+C to stop.",
		"version", version,
		"bot", tg.Username(),
		"max_concurrent_relays", cfg.General.MaxConcurrentRelays,
	)

	if err := webhook.Start(ctx); err != nil {
		if active := executor.ListActive(); len(active) > 0 {
			logger.Warn("abandoning in-flight relays", "count", len(active))
		}
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
