package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	config "github.com/pochkachaiki/envgen/internal/config/rule_engine"
	"github.com/pochkachaiki/envgen/internal/metrics"
	"github.com/pochkachaiki/envgen/internal/models/reading"
	"github.com/pochkachaiki/envgen/internal/queue"
	"github.com/pochkachaiki/envgen/internal/storage"
)

const (
	lowNormalized  = 0.0
	highNormalized = 100.0

	alertInstant   = "instant"
	alertSustained = "sustained"
)

type Alert struct {
	Type       string   `bson:"type" json:"type"`
	SensorID   string   `bson:"sensor_id" json:"sensor_id"`
	Timestamp  string   `bson:"timestamp" json:"timestamp"`
	Reason     string   `bson:"reason" json:"reason"`
	Normalized *float64 `bson:"normalized,omitempty" json:"normalized,omitempty"`
	Change     *float64 `bson:"change,omitempty" json:"change,omitempty"`
}

type Engine struct {
	cfg         *config.Config
	alertColl   storage.Inserter
	metrics     *metrics.Engine
	mu          sync.RWMutex
	recentCache map[string][]float64
}

func New(cfg *config.Config, alertColl storage.Inserter, m *metrics.Engine) *Engine {
	return &Engine{
		cfg:         cfg,
		alertColl:   alertColl,
		metrics:     m,
		recentCache: make(map[string][]float64),
	}
}

func (e *Engine) updateCache(r reading.Reading) {
	e.mu.Lock()
	defer e.mu.Unlock()

	window := e.recentCache[r.SensorID]
	if len(window) >= e.cfg.SustainedCount {
		window = window[1:]
	}
	window = append(window, r.Normalized)
	e.recentCache[r.SensorID] = window
}

// recentNormalized returns the window for sensorID, or nil while it is not
// yet full.
func (e *Engine) recentNormalized(sensorID string) []float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	window := e.recentCache[sensorID]
	if len(window) < e.cfg.SustainedCount {
		return nil
	}
	return append([]float64(nil), window...)
}

// Run consumes readings until ctx is done or the delivery channel closes.
// Every delivery is acked, including the ones that failed to process.
func (e *Engine) Run(ctx context.Context, ch queue.Consumer, queueName string) error {
	msgs, err := ch.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", queueName, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			err := e.processMessage(ctx, msg.Body)
			e.metrics.Processed(err)
			if err != nil {
				slog.Error("process message error", "err", err)
			}
			if err := msg.Ack(false); err != nil {
				slog.Error("ack error", "err", err)
			}
		}
	}
}

func (e *Engine) processMessage(parentCtx context.Context, body []byte) error {
	var r reading.Reading
	if err := json.Unmarshal(body, &r); err != nil {
		return fmt.Errorf("decode reading: %w", err)
	}
	if r.SensorID == "" {
		return fmt.Errorf("reading without sensor_id")
	}

	e.updateCache(r)

	ctx, cancel := context.WithTimeout(parentCtx, 5*time.Second)
	defer cancel()

	reason := ""
	if r.Normalized < lowNormalized {
		reason = "normalized low"
	} else if r.Normalized > highNormalized {
		reason = "normalized high"
	}
	if reason != "" {
		normalized := r.Normalized
		if err := e.raise(ctx, Alert{
			Type:       alertInstant,
			SensorID:   r.SensorID,
			Timestamp:  r.Timestamp,
			Reason:     reason,
			Normalized: &normalized,
		}); err != nil {
			return err
		}
	}

	window := e.recentNormalized(r.SensorID)
	if window == nil {
		return nil
	}

	change := window[len(window)-1] - window[0]
	if math.Abs(change) >= e.cfg.DeltaNormalized {
		dir := "increase"
		if change < 0 {
			dir = "decrease"
		}
		return e.raise(ctx, Alert{
			Type:      alertSustained,
			SensorID:  r.SensorID,
			Timestamp: r.Timestamp,
			Reason:    "rapid normalized " + dir,
			Change:    &change,
		})
	}

	return nil
}

func (e *Engine) raise(ctx context.Context, a Alert) error {
	if _, err := e.alertColl.InsertOne(ctx, a); err != nil {
		return fmt.Errorf("insert %s alert: %w", a.Type, err)
	}
	e.metrics.Alert(a.Type)
	slog.Info(a.Type+" alert", "sensor_id", a.SensorID, "reason", a.Reason)
	return nil
}
