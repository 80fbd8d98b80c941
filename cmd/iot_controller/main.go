package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	config "github.com/pochkachaiki/envgen/internal/config/iot_controller"
	"github.com/pochkachaiki/envgen/internal/handler"
	"github.com/pochkachaiki/envgen/internal/logger"
	"github.com/pochkachaiki/envgen/internal/metrics"
	"github.com/pochkachaiki/envgen/internal/queue"
	"github.com/pochkachaiki/envgen/internal/storage"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg := config.MustLoad()
	logger.Setup(cfg.LogLevel)

	slog.Info("starting iot controller", "http_addr", cfg.HTTPAddr, "queue", cfg.QueueName,
		"collection", cfg.Collection, "metrics_addr", cfg.MetricsAddr)

	if err := run(cfg); err != nil {
		slog.Error("iot controller failed", "err", err)
		os.Exit(1)
	}

	slog.Info("iot controller stopped")
}

func run(cfg *config.Config) error {
	mongoClient, err := storage.NewMongoClient(cfg.MongoURI)
	if err != nil {
		return fmt.Errorf("mongo connect: %w", err)
	}
	defer mongoClient.Disconnect(context.Background())

	session, err := queue.Open(cfg.RabbitURI, cfg.QueueName)
	if err != nil {
		return err
	}
	defer session.Close()

	readings := mongoClient.Database(cfg.DBName).Collection(cfg.Collection)
	h := handler.New(readings, session.Channel, session.Queue, metrics.NewController(prometheus.DefaultRegisterer))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := metrics.Serve(cfg.MetricsAddr); err != nil {
			slog.Error("metrics server error", "err", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "err", err)
	}
	return nil
}
