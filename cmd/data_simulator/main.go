package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	config "github.com/pochkachaiki/envgen/internal/config/data_simulator"
	"github.com/pochkachaiki/envgen/internal/logger"
	"github.com/pochkachaiki/envgen/internal/metrics"
	"github.com/pochkachaiki/envgen/internal/queue"
	"github.com/pochkachaiki/envgen/internal/sender"
	"github.com/pochkachaiki/envgen/internal/sensor"
	"github.com/pochkachaiki/envgen/internal/storage"
)

func main() {
	cfg := config.MustLoad()
	logger.Setup(cfg.LogLevel)

	slog.Info("starting simulator",
		"sensor_count", cfg.SensorCount,
		"interval", cfg.Interval.String(),
		"sinks", cfg.Sinks,
		"influx_url", cfg.InfluxURL,
		"bucket", cfg.InfluxBucket)

	if err := run(cfg); err != nil {
		slog.Error("simulator failed", "err", err)
		os.Exit(1)
	}

	slog.Info("simulator stopped")
}

func run(cfg *config.Config) error {
	m := metrics.NewSimulator(prometheus.DefaultRegisterer)

	var sinks sender.Multi
	for _, name := range cfg.Sinks {
		switch name {
		case config.SinkInflux:
			s := sender.NewInflux(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket, cfg.Measurement)
			defer s.Close()
			sinks = append(sinks, sender.Instrument(s, m))

		case config.SinkHTTP:
			sinks = append(sinks, sender.Instrument(sender.NewHTTP(cfg.IotSystemUrl), m))

		case config.SinkAMQP:
			session, err := queue.Open(cfg.RabbitURI, cfg.QueueName)
			if err != nil {
				return err
			}
			defer session.Close()
			sinks = append(sinks, sender.Instrument(sender.NewAMQP(session.Channel, session.Queue), m))

		case config.SinkMongo:
			mongoClient, err := storage.NewMongoClient(cfg.MongoURI)
			if err != nil {
				return fmt.Errorf("mongo connect: %w", err)
			}
			defer mongoClient.Disconnect(context.Background())

			coll := mongoClient.Database(cfg.DBName).Collection(cfg.Collection)
			sinks = append(sinks, sender.Instrument(sender.NewMongo(coll), m))
		}
	}

	go func() {
		if err := metrics.Serve(cfg.MetricsAddr); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "err", err)
		}
	}()

	var sink sender.Sink = sinks
	if len(sinks) == 1 {
		sink = sinks[0]
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return sensor.New(cfg, sink, sensor.WithMetrics(m)).Run(ctx)
}
