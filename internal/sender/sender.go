package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pochkachaiki/envgen/internal/metrics"
	"github.com/pochkachaiki/envgen/internal/models/reading"
)

const (
	contentType = "application/json"
	timeout     = 5 * time.Second
)

// Sink persists one reading per call and returns only once the backend has
// accepted or rejected it.
type Sink interface {
	Name() string
	Write(ctx context.Context, r reading.Reading) error
}

// HTTPSink posts readings as JSON to the iot controller.
type HTTPSink struct {
	url    string
	client *http.Client
}

func NewHTTP(url string) *HTTPSink {
	return &HTTPSink{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSink) Name() string { return "http" }

func (s *HTTPSink) Write(ctx context.Context, r reading.Reading) error {
	body, err := json.Marshal(r.WithTimestamp(time.Now()))
	if err != nil {
		return fmt.Errorf("marshal reading: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return nil
}

// Multi writes each reading to every sink in order and stops at the first
// failure.
type Multi []Sink

func (m Multi) Name() string {
	names := make([]string, len(m))
	for i, s := range m {
		names[i] = s.Name()
	}
	return strings.Join(names, "+")
}

func (m Multi) Write(ctx context.Context, r reading.Reading) error {
	for _, s := range m {
		if err := s.Write(ctx, r); err != nil {
			return fmt.Errorf("%s sink: %w", s.Name(), err)
		}
	}
	return nil
}

type instrumented struct {
	Sink
	m *metrics.Simulator
}

// Instrument counts successful and failed writes of s under its name.
func Instrument(s Sink, m *metrics.Simulator) Sink {
	return &instrumented{Sink: s, m: m}
}

func (i *instrumented) Write(ctx context.Context, r reading.Reading) error {
	if err := i.Sink.Write(ctx, r); err != nil {
		i.m.WriteFailed(i.Name())
		return err
	}
	i.m.Written(i.Name())
	return nil
}
