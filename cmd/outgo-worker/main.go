// Command outgo-worker consumes backup and alert events, writes expense
// backups to Google Sheets and delivers budget notifications.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"outgo/internal/amqp"
	"outgo/internal/config"
	"outgo/internal/log"
	"outgo/internal/notify"
	"outgo/internal/sheets"
	"outgo/internal/sheets/google"
	"outgo/internal/storage"
	"outgo/internal/worker"
)

const amqpConnectAttempts = 5

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Component: log.ComponentWorker,
	})
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", log.FieldError, err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open database", log.FieldError, err)
		os.Exit(1)
	}
	defer repo.Close()

	// Sheets backup is optional. Without credentials the worker still
	// consumes messages and delivers alerts; backups stay pending.
	var backup sheets.BackupWriter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := google.NewFromEnv(ctx)
		if err != nil {
			logger.WithComponent(log.ComponentSheets).
				Warn("Sheets backup disabled", log.FieldError, err)
		} else {
			backup = client
		}
	}

	notifier, err := notify.FromConfig(cfg, logger.Logger)
	if err != nil {
		logger.Error("Failed to configure notifier", log.FieldError, err)
		os.Exit(1)
	}

	client, err := connectAMQP(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to connect to broker", log.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	w := worker.NewBackupWorker(repo, backup, notifier, cfg.BackupBatchSize)

	if err := w.StartupBackupCheck(ctx); err != nil {
		logger.Warn("Startup backup check failed", log.FieldError, err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return client.ConsumeMessages(ctx,
			func(msg *amqp.ExpenseBackupMessage) error {
				return w.HandleBackupMessage(ctx, msg)
			},
			func(msg *amqp.BudgetAlertMessage) error {
				return w.HandleAlertMessage(ctx, msg)
			})
	})

	g.Go(func() error {
		ticker := time.NewTicker(cfg.SyncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := w.ProcessPendingBackups(ctx); err != nil {
					logger.Error("Pending backup sweep failed", log.FieldError, err)
				}
			}
		}
	})

	logger.Info("Worker started", "queue", cfg.AMQPQueue, "sync_interval", cfg.SyncInterval.String())

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker stopped")
}

// connectAMQP retries the broker connection a few times so the worker
// survives starting before the broker is up.
func connectAMQP(ctx context.Context, cfg *config.Config, logger *log.Logger) (*amqp.Client, error) {
	var lastErr error
	for attempt := 0; attempt < amqpConnectAttempts; attempt++ {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err == nil {
			return client, nil
		}
		lastErr = err
		delay := time.Duration(attempt+1) * 2 * time.Second
		logger.WithComponent(log.ComponentAMQP).Warn("Broker connection failed, retrying",
			log.FieldError, err, "attempt", attempt+1, "retry_in", delay.String())
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, lastErr
}
