package queue

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher is the part of *amqp.Channel used to emit readings.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Consumer is the part of *amqp.Channel used by the rule engine.
type Consumer interface {
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

func NewRabbitConnection(uri string) (*amqp.Connection, error) {
	return amqp.Dial(uri)
}

// DeclareQueue declares a durable, non-exclusive queue.
func DeclareQueue(ch *amqp.Channel, name string) error {
	_, err := ch.QueueDeclare(
		name,
		true,
		false,
		false,
		false,
		nil,
	)
	return err
}

// Session is a connection with one channel bound to a declared queue.
type Session struct {
	Conn    *amqp.Connection
	Channel *amqp.Channel
	Queue   string
}

// Open dials uri, opens a channel and declares name on it.
func Open(uri, name string) (*Session, error) {
	conn, err := NewRabbitConnection(uri)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq connect: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if err := DeclareQueue(ch, name); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", name, err)
	}
	return &Session{Conn: conn, Channel: ch, Queue: name}, nil
}

func (s *Session) Close() error {
	return errors.Join(s.Channel.Close(), s.Conn.Close())
}

// PublishJSON sends body to name through the default exchange.
func PublishJSON(ctx context.Context, p Publisher, name string, body []byte) error {
	return p.PublishWithContext(ctx, "", name, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}
