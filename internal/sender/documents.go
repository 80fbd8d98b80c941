package sender

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pochkachaiki/envgen/internal/models/reading"
	"github.com/pochkachaiki/envgen/internal/queue"
	"github.com/pochkachaiki/envgen/internal/storage"
)

// AMQPSink publishes readings as JSON to a RabbitMQ queue.
type AMQPSink struct {
	ch    queue.Publisher
	queue string
}

func NewAMQP(ch queue.Publisher, queueName string) *AMQPSink {
	return &AMQPSink{ch: ch, queue: queueName}
}

func (s *AMQPSink) Name() string { return "amqp" }

func (s *AMQPSink) Write(ctx context.Context, r reading.Reading) error {
	body, err := json.Marshal(r.WithTimestamp(time.Now()))
	if err != nil {
		return fmt.Errorf("marshal reading: %w", err)
	}
	if err := queue.PublishJSON(ctx, s.ch, s.queue, body); err != nil {
		return fmt.Errorf("publish to %s: %w", s.queue, err)
	}
	return nil
}

// MongoSink stores each reading as a document.
type MongoSink struct {
	coll storage.Inserter
}

func NewMongo(coll storage.Inserter) *MongoSink {
	return &MongoSink{coll: coll}
}

func (s *MongoSink) Name() string { return "mongo" }

func (s *MongoSink) Write(ctx context.Context, r reading.Reading) error {
	if _, err := s.coll.InsertOne(ctx, r.WithTimestamp(time.Now())); err != nil {
		return fmt.Errorf("mongo insert: %w", err)
	}
	return nil
}
