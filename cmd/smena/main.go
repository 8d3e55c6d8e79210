package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sethflower/smena/internal/amqp"
	"github.com/sethflower/smena/internal/cache"
	"github.com/sethflower/smena/internal/cli"
	apphttp "github.com/sethflower/smena/internal/http"
	"github.com/sethflower/smena/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result := cli.InitBackend(ctx, logger, cfg)

	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			// Events are an optional companion channel; the ledger works
			// without a broker.
			logger.Warn("AMQP unavailable, events disabled", "error", err)
		} else {
			publisher = client
			defer client.Close()
		}
	}

	service := services.NewLedgerService(result.Store, publisher)
	if result.Cleanup != nil {
		service = service.WithCloser(result.Cleanup)
	}
	defer func() {
		if err := service.Close(); err != nil {
			logger.Error("Failed to close ledger backend", "error", err)
		}
	}()

	srv := apphttp.NewServer(":"+cfg.Port, service, logger, cfg.CacheTTL)
	manager := cache.NewManager(srv.CacheCleaners()...)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting smena server",
			"port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		err := manager.Run(gctx, cfg.CacheCleanupInterval)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
