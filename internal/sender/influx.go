package sender

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/pochkachaiki/envgen/internal/models/reading"
)

const influxRequestTimeout = 10 // seconds

// InfluxSink writes one point per reading through the blocking write API.
// Points carry no time, so the server stamps them at ingestion.
type InfluxSink struct {
	client      influxdb2.Client
	writeAPI    api.WriteAPIBlocking
	measurement string
}

func NewInflux(url, token, org, bucket, measurement string) *InfluxSink {
	client := influxdb2.NewClientWithOptions(url, token,
		influxdb2.DefaultOptions().SetHTTPRequestTimeout(influxRequestTimeout))

	return &InfluxSink{
		client:      client,
		writeAPI:    client.WriteAPIBlocking(org, bucket),
		measurement: measurement,
	}
}

func (s *InfluxSink) Name() string { return "influx" }

func (s *InfluxSink) Point(r reading.Reading) *write.Point {
	return influxdb2.NewPointWithMeasurement(s.measurement).
		AddTag("sensor_id", r.SensorID).
		AddField("temperature", r.Temperature).
		AddField("humidity", r.Humidity).
		AddField("normalized", r.Normalized)
}

func (s *InfluxSink) Write(ctx context.Context, r reading.Reading) error {
	if err := s.writeAPI.WritePoint(ctx, s.Point(r)); err != nil {
		return fmt.Errorf("influx write: %w", err)
	}
	return nil
}

func (s *InfluxSink) Close() {
	s.client.Close()
}
