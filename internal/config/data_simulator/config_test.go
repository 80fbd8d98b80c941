package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pochkachaiki/envgen/internal/models/reading"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SensorCount != 21 {
		t.Fatalf("sensor_count=%d want 21", cfg.SensorCount)
	}
	if cfg.Interval != 30*time.Second {
		t.Fatalf("interval=%s want 30s", cfg.Interval)
	}
	if cfg.Measurement != "environment" {
		t.Fatalf("measurement=%q", cfg.Measurement)
	}
	if cfg.InfluxOrg != "my_org" || cfg.InfluxBucket != "my_bucket" {
		t.Fatalf("org/bucket=%q/%q", cfg.InfluxOrg, cfg.InfluxBucket)
	}
	if len(cfg.Sinks) != 1 || cfg.Sinks[0] != SinkInflux {
		t.Fatalf("sinks=%v want [influx]", cfg.Sinks)
	}
	if got := cfg.Ranges(); got != reading.DefaultRanges() {
		t.Fatalf("ranges=%+v want %+v", got, reading.DefaultRanges())
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("SENSOR_COUNT", "3")
	t.Setenv("INTERVAL", "2s")
	t.Setenv("SINKS", "influx,amqp")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SensorCount != 3 || cfg.Interval != 2*time.Second {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if !cfg.HasSink(SinkAMQP) || !cfg.HasSink(SinkInflux) || cfg.HasSink(SinkMongo) {
		t.Fatalf("sinks=%v", cfg.Sinks)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "influx_url: http://influx:8086\nsensor_count: 5\nsensor_prefix: room_\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.InfluxURL != "http://influx:8086" {
		t.Fatalf("influx_url=%q", cfg.InfluxURL)
	}
	ids := cfg.SensorIDs()
	if len(ids) != 5 || ids[0] != "room_1" || ids[4] != "room_5" {
		t.Fatalf("ids=%v", ids)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestSensorIDsEnumeration(t *testing.T) {
	cfg := &Config{SensorCount: 21, SensorPrefix: "sensor_"}
	ids := cfg.SensorIDs()
	if len(ids) != 21 {
		t.Fatalf("len=%d want 21", len(ids))
	}
	seen := map[string]bool{}
	for i, id := range ids {
		want := fmt.Sprintf("sensor_%d", i+1)
		if id != want {
			t.Fatalf("ids[%d]=%q want %q", i, id, want)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Measurement:     "environment",
			SensorCount:     21,
			Interval:        time.Second,
			TempMin:         15,
			TempMax:         35,
			HumidityMin:     55,
			HumidityMax:     85,
			TempRefLow:      20,
			TempRefHigh:     30,
			HumidityRefLow:  60,
			HumidityRefHigh: 80,
			Sinks:           []string{SinkInflux},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "zero sensors", mutate: func(c *Config) { c.SensorCount = 0 }, want: "sensor_count"},
		{name: "zero interval", mutate: func(c *Config) { c.Interval = 0 }, want: "interval"},
		{name: "inverted temp", mutate: func(c *Config) { c.TempMin = 40 }, want: "temp_min"},
		{name: "flat humidity ref", mutate: func(c *Config) { c.HumidityRefLow = 80 }, want: "humidity_ref_low"},
		{name: "unknown sink", mutate: func(c *Config) { c.Sinks = []string{"kafka"} }, want: "unknown sink"},
		{name: "no sinks", mutate: func(c *Config) { c.Sinks = nil }, want: "at least one sink"},
	}

	base := valid()
	if err := base.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := valid()
			tc.mutate(&c)
			err := c.Validate()
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}
