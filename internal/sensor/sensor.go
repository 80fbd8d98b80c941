package sensor

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	config "github.com/pochkachaiki/envgen/internal/config/data_simulator"
	"github.com/pochkachaiki/envgen/internal/metrics"
	"github.com/pochkachaiki/envgen/internal/models/reading"
	"github.com/pochkachaiki/envgen/internal/sender"
)

// Generator fabricates one reading per sensor per cycle and hands each one
// to the sink before moving on to the next sensor.
type Generator struct {
	ids      []string
	ranges   reading.Ranges
	interval time.Duration
	sink     sender.Sink
	rng      *rand.Rand
	metrics  *metrics.Simulator
	log      *slog.Logger

	after func(time.Duration) <-chan time.Time
}

type Option func(*Generator)

func WithMetrics(m *metrics.Simulator) Option {
	return func(g *Generator) { g.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) { g.log = l }
}

// WithRand replaces the random source, mostly for reproducible runs.
func WithRand(rng *rand.Rand) Option {
	return func(g *Generator) { g.rng = rng }
}

func New(cfg *config.Config, sink sender.Sink, opts ...Option) *Generator {
	g := &Generator{
		ids:      cfg.SensorIDs(),
		ranges:   cfg.Ranges(),
		interval: cfg.Interval,
		sink:     sink,
		log:      slog.Default(),
		after:    time.After,
	}
	if cfg.Seed != 0 {
		g.rng = rand.New(rand.NewPCG(cfg.Seed, cfg.Seed))
	} else {
		g.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Generator) SensorIDs() []string {
	return append([]string(nil), g.ids...)
}

// RunCycle writes one reading per sensor in enumeration order. The first
// write error aborts the pass and is returned; so is a cancelled context.
func (g *Generator) RunCycle(ctx context.Context) error {
	start := time.Now()

	for _, id := range g.ids {
		if err := ctx.Err(); err != nil {
			return err
		}

		r := reading.Generate(g.rng, id, g.ranges)
		g.metrics.Generated(id, r.Normalized)

		if err := g.sink.Write(ctx, r); err != nil {
			return fmt.Errorf("write reading for %s: %w", id, err)
		}

		g.log.DebugContext(ctx, "reading written", "sensor_id", id,
			"temperature", r.Temperature, "humidity", r.Humidity, "normalized", r.Normalized)
	}

	g.metrics.CycleDone(time.Since(start))
	return nil
}

// Run repeats RunCycle, sleeping for the configured interval after each pass.
// It returns nil once ctx is cancelled and the write error otherwise.
func (g *Generator) Run(ctx context.Context) error {
	g.log.InfoContext(ctx, "generator started", "sensors", len(g.ids), "interval", g.interval.String(), "sink", g.sink.Name())

	for cycle := 1; ; cycle++ {
		if err := g.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				g.log.InfoContext(ctx, "generator stopped", "cycle", cycle)
				return nil
			}
			return fmt.Errorf("cycle %d: %w", cycle, err)
		}
		g.log.InfoContext(ctx, "cycle written", "cycle", cycle, "readings", len(g.ids))

		select {
		case <-ctx.Done():
			g.log.InfoContext(ctx, "generator stopped", "cycle", cycle)
			return nil
		case <-g.after(g.interval):
		}
	}
}
