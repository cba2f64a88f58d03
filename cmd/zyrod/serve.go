package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zyrolabs/zyro/internal/auth"
	"github.com/zyrolabs/zyro/internal/backup"
	"github.com/zyrolabs/zyro/internal/config"
	"github.com/zyrolabs/zyro/internal/dedup"
	"github.com/zyrolabs/zyro/internal/events"
	"github.com/zyrolabs/zyro/internal/notify"
	"github.com/zyrolabs/zyro/internal/realtime"
	"github.com/zyrolabs/zyro/internal/server"
	"github.com/zyrolabs/zyro/internal/store/postgres"
	"github.com/zyrolabs/zyro/internal/webhook"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Zyro server",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.Default()

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		store, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return err
		}

		// Event publisher mirrors committed envelopes onto NATS for
		// sidecar consumers. Without NATS the fan-out stays in-process.
		var publisher events.Publisher
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				store.Close()
				return err
			}
			publisher = pub
			logger.Info("event bus enabled", "nats_url", cfg.NATSURL)
		} else {
			publisher = &events.NoopPublisher{}
			logger.Info("event bus disabled (ZYRO_NATS_URL not set)")
		}

		// Delivery dedup store: Redis when configured, otherwise
		// in-memory with a background janitor.
		var deliveries dedup.Store
		if cfg.RedisURL != "" {
			rd, err := dedup.NewRedis(cmd.Context(), cfg.RedisURL, dedup.DefaultRetention)
			if err != nil {
				publisher.Close()
				store.Close()
				return err
			}
			deliveries = rd
			logger.Info("delivery store using redis", "redis_url", cfg.RedisURL)
		} else {
			mem := dedup.NewMemory(dedup.DefaultRetention)
			mem.StartJanitor(time.Hour)
			deliveries = mem
			logger.Info("delivery store in memory (ZYRO_REDIS_URL not set)")
		}

		var identity *auth.Identity
		if cfg.JWTSecret != "" {
			identity = auth.NewIdentity([]byte(cfg.JWTSecret), store)
			logger.Info("realtime authorization enabled")
		} else {
			logger.Warn("realtime authorization disabled (ZYRO_JWT_SECRET not set)")
		}

		zyroServer := server.NewZyroServer(store, server.Options{
			Publisher: publisher,
			Identity:  identity,
			Secrets: webhook.Secrets{
				GitHub: secretBytes(cfg.GitHubWebhookSecret),
				Slack:  secretBytes(cfg.SlackSigningSecret),
			},
			Deliveries: deliveries,
			SessionCfg: realtime.SessionConfig{
				QueueSize:         cfg.SessionQueueSize,
				HeartbeatInterval: cfg.HeartbeatInterval,
			},
		})

		httpServer := &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: zyroServer.NewHTTPHandler(cfg.AuthToken),
		}
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		// Slack notifier rides the event bus, so it needs NATS.
		var notifyCancel context.CancelFunc
		if cfg.NATSURL != "" && cfg.SlackWebhookURL != "" {
			sub, err := events.NewNATSSubscriber(cfg.NATSURL)
			if err != nil {
				logger.Error("failed to create notifier subscriber", "err", err)
			} else {
				notifier := notify.NewNotifier(sub, cfg.SlackWebhookURL)
				var notifyCtx context.Context
				notifyCtx, notifyCancel = context.WithCancel(context.Background())
				go func() {
					if err := notifier.Run(notifyCtx); err != nil {
						logger.Error("notifier error", "err", err)
					}
					sub.Close()
				}()
				logger.Info("slack notifier started")
			}
		}

		var scheduler *backup.Scheduler
		if cfg.BackupInterval > 0 && cfg.BackupS3Bucket != "" {
			dest, err := backup.NewS3Destination(
				context.Background(),
				cfg.BackupS3Bucket,
				cfg.BackupS3Prefix,
				cfg.BackupS3Region,
				cfg.BackupS3Endpoint,
			)
			if err != nil {
				logger.Error("failed to create S3 backup destination", "err", err)
			} else {
				scheduler = backup.NewScheduler(store, []backup.Destination{dest}, cfg.BackupInterval, logger)
				scheduler.Start()
				logger.Info("backup scheduler started",
					"bucket", cfg.BackupS3Bucket, "interval", cfg.BackupInterval)
			}
		}

		logger.Info("zyro server started", "http_addr", cfg.HTTPAddr)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		if notifyCancel != nil {
			notifyCancel()
			logger.Info("slack notifier stopped")
		}
		if scheduler != nil {
			scheduler.Stop()
			logger.Info("backup scheduler stopped")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		if err := deliveries.Close(); err != nil {
			logger.Error("error closing delivery store", "err", err)
		}
		if err := store.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}

func secretBytes(s string) []byte {
	if s == "" {
		return nil
	}
	return []byte(s)
}
