package engine

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	config "github.com/pochkachaiki/envgen/internal/config/rule_engine"
	"github.com/pochkachaiki/envgen/internal/models/reading"
)

type stubAlerts struct {
	mu     sync.Mutex
	err    error
	alerts []Alert
}

func (s *stubAlerts) InsertOne(_ context.Context, doc interface{}, _ ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.alerts = append(s.alerts, doc.(Alert))
	return &mongo.InsertOneResult{}, nil
}

func (s *stubAlerts) snapshot() []Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Alert(nil), s.alerts...)
}

func newTestEngine(alerts *stubAlerts) *Engine {
	return New(&config.Config{SustainedCount: 3, DeltaNormalized: 50}, alerts, nil)
}

func body(t *testing.T, sensorID string, normalized float64) []byte {
	t.Helper()
	b, err := json.Marshal(reading.Reading{SensorID: sensorID, Normalized: normalized, Timestamp: "2024-05-01T10:00:00Z"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestInstantAlerts(t *testing.T) {
	tests := []struct {
		name       string
		normalized float64
		reason     string
	}{
		{name: "inside range", normalized: 50},
		{name: "lower bound", normalized: 0},
		{name: "upper bound", normalized: 100},
		{name: "below range", normalized: -37.5, reason: "normalized low"},
		{name: "above range", normalized: 137.5, reason: "normalized high"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			alerts := &stubAlerts{}
			e := newTestEngine(alerts)

			if err := e.processMessage(context.Background(), body(t, "sensor_1", tc.normalized)); err != nil {
				t.Fatalf("processMessage: %v", err)
			}
			got := alerts.snapshot()
			if tc.reason == "" {
				if len(got) != 0 {
					t.Fatalf("unexpected alerts %+v", got)
				}
				return
			}
			if len(got) != 1 {
				t.Fatalf("alerts=%d want 1", len(got))
			}
			a := got[0]
			if a.Type != alertInstant || a.Reason != tc.reason || a.SensorID != "sensor_1" {
				t.Fatalf("unexpected alert %+v", a)
			}
			if a.Normalized == nil || *a.Normalized != tc.normalized {
				t.Fatalf("alert normalized=%v want %v", a.Normalized, tc.normalized)
			}
		})
	}
}

func TestSustainedAlertNeedsFullWindow(t *testing.T) {
	alerts := &stubAlerts{}
	e := newTestEngine(alerts)
	ctx := context.Background()

	for _, v := range []float64{10, 40} {
		if err := e.processMessage(ctx, body(t, "sensor_2", v)); err != nil {
			t.Fatalf("processMessage: %v", err)
		}
	}
	if n := len(alerts.snapshot()); n != 0 {
		t.Fatalf("alerts=%d before the window filled", n)
	}

	if err := e.processMessage(ctx, body(t, "sensor_2", 70)); err != nil {
		t.Fatalf("processMessage: %v", err)
	}
	got := alerts.snapshot()
	if len(got) != 1 {
		t.Fatalf("alerts=%d want 1", len(got))
	}
	if got[0].Type != alertSustained || got[0].Reason != "rapid normalized increase" {
		t.Fatalf("unexpected alert %+v", got[0])
	}
	if got[0].Change == nil || *got[0].Change != 60 {
		t.Fatalf("change=%v want 60", got[0].Change)
	}
}

func TestSustainedWindowSlidesPerSensor(t *testing.T) {
	alerts := &stubAlerts{}
	e := newTestEngine(alerts)
	ctx := context.Background()

	// sensor_3 drops by 55 over the window; sensor_4 interleaves and stays flat
	for _, step := range []struct {
		id string
		v  float64
	}{
		{"sensor_3", 90}, {"sensor_4", 50}, {"sensor_3", 60},
		{"sensor_4", 50}, {"sensor_3", 35}, {"sensor_4", 50},
	} {
		if err := e.processMessage(ctx, body(t, step.id, step.v)); err != nil {
			t.Fatalf("processMessage: %v", err)
		}
	}

	got := alerts.snapshot()
	if len(got) != 1 || got[0].SensorID != "sensor_3" || got[0].Reason != "rapid normalized decrease" {
		t.Fatalf("unexpected alerts %+v", got)
	}

	// the oldest value (90) leaves the window: 60 -> 35 -> 40 is a change of -20
	if err := e.processMessage(ctx, body(t, "sensor_3", 40)); err != nil {
		t.Fatalf("processMessage: %v", err)
	}
	if n := len(alerts.snapshot()); n != 1 {
		t.Fatalf("alerts=%d want 1 after the window slid", n)
	}
}

func TestProcessMessageErrors(t *testing.T) {
	e := newTestEngine(&stubAlerts{})
	if err := e.processMessage(context.Background(), []byte("{")); err == nil {
		t.Fatalf("expected decode error")
	}
	if err := e.processMessage(context.Background(), []byte(`{"normalized":5}`)); err == nil {
		t.Fatalf("expected error for missing sensor_id")
	}

	cause := errors.New("write concern error")
	failing := newTestEngine(&stubAlerts{err: cause})
	if err := failing.processMessage(context.Background(), body(t, "sensor_1", -1)); !errors.Is(err, cause) {
		t.Fatalf("err=%v want wrapped %v", err, cause)
	}
}

type stubAcker struct {
	mu   sync.Mutex
	acks []uint64
}

func (a *stubAcker) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acks = append(a.acks, tag)
	return nil
}

func (a *stubAcker) Nack(uint64, bool, bool) error { return nil }
func (a *stubAcker) Reject(uint64, bool) error     { return nil }

func (a *stubAcker) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.acks)
}

type stubConsumer struct {
	ch  chan amqp.Delivery
	err error
}

func (c *stubConsumer) Consume(string, string, bool, bool, bool, bool, amqp.Table) (<-chan amqp.Delivery, error) {
	return c.ch, c.err
}

func TestRunAcksEveryDelivery(t *testing.T) {
	alerts := &stubAlerts{}
	e := newTestEngine(alerts)
	acker := &stubAcker{}
	consumer := &stubConsumer{ch: make(chan amqp.Delivery, 2)}

	consumer.ch <- amqp.Delivery{Acknowledger: acker, DeliveryTag: 1, Body: body(t, "sensor_1", 120)}
	consumer.ch <- amqp.Delivery{Acknowledger: acker, DeliveryTag: 2, Body: []byte("not json")}
	close(consumer.ch)

	err := e.Run(context.Background(), consumer, "readings")
	if err == nil {
		t.Fatalf("expected error once the delivery channel closes")
	}
	if n := acker.count(); n != 2 {
		t.Fatalf("acks=%d want 2", n)
	}
	if n := len(alerts.snapshot()); n != 1 {
		t.Fatalf("alerts=%d want 1", n)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	e := newTestEngine(&stubAlerts{})
	consumer := &stubConsumer{ch: make(chan amqp.Delivery)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx, consumer, "readings") }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run=%v want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop after cancel")
	}
}

func TestRunConsumeError(t *testing.T) {
	e := newTestEngine(&stubAlerts{})
	cause := errors.New("queue not found")
	if err := e.Run(context.Background(), &stubConsumer{err: cause}, "readings"); !errors.Is(err, cause) {
		t.Fatalf("err=%v want wrapped %v", err, cause)
	}
}
