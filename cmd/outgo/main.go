// Command outgo runs the expense tracking API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"outgo/internal/amqp"
	"outgo/internal/auth"
	"outgo/internal/config"
	outhttp "outgo/internal/http"
	"outgo/internal/log"
	"outgo/internal/services"
	"outgo/internal/storage"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.New(log.DefaultConfig()).Warn("Could not load .env file", log.FieldError, err)
	}

	cfg := config.Load()

	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Component: log.ComponentApp,
	})
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", log.FieldError, err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open database", log.FieldError, err)
		os.Exit(1)
	}
	defer repo.Close()

	sessions, err := auth.NewSessionStore(cfg.SessionsDBPath, cfg.SessionTTL)
	if err != nil {
		logger.Error("Failed to open session store", log.FieldError, err)
		os.Exit(1)
	}
	defer sessions.Close()

	// The AMQP broker is optional. Without it expenses are still stored;
	// backups and alerts are recovered later by the worker's sweep.
	var events services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.WithComponent(log.ComponentAMQP).
				Warn("Broker unavailable, continuing without event publishing", log.FieldError, err)
		} else {
			defer client.Close()
			events = client
		}
	}

	expenses := services.NewExpenseService(repo, events)
	budgets := services.NewBudgetService(repo)
	reports := services.NewReportService(repo)

	server := outhttp.NewServer(":"+cfg.Port, outhttp.Deps{
		Users:    repo,
		Sessions: sessions,
		Expenses: expenses,
		Budgets:  budgets,
		Reports:  reports,
		Ready:    repo.Ping,
	})

	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", log.FieldError, err)
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown failed", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped")
}
