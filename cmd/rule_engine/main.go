package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	config "github.com/pochkachaiki/envgen/internal/config/rule_engine"
	"github.com/pochkachaiki/envgen/internal/engine"
	"github.com/pochkachaiki/envgen/internal/logger"
	"github.com/pochkachaiki/envgen/internal/metrics"
	"github.com/pochkachaiki/envgen/internal/queue"
	"github.com/pochkachaiki/envgen/internal/storage"
)

func main() {
	cfg := config.MustLoad()
	logger.Setup(cfg.LogLevel)

	slog.Info("starting rule engine", "queue", cfg.QueueName, "alert_collection", cfg.AlertCollection,
		"sustained_count", cfg.SustainedCount, "delta_normalized", cfg.DeltaNormalized, "metrics_addr", cfg.MetricsAddr)

	if err := run(cfg); err != nil {
		slog.Error("rule engine failed", "err", err)
		os.Exit(1)
	}

	slog.Info("rule engine stopped")
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

	alerts := mongoClient.Database(cfg.DBName).Collection(cfg.AlertCollection)
	e := engine.New(cfg, alerts, metrics.NewEngine(prometheus.DefaultRegisterer))

	go func() {
		if err := metrics.Serve(cfg.MetricsAddr); err != nil {
			slog.Error("metrics server error", "err", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return e.Run(ctx, session.Channel, session.Queue)
}
