package notification

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// publisher is the part of *amqp.Channel used for delivery.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPSender hands messages to a mail worker through a durable RabbitMQ
// queue. A message counts as delivered once the broker accepts it.
type AMQPSender struct {
	ch    publisher
	queue string
}

func NewAMQPSender(ch publisher, queue string) *AMQPSender {
	return &AMQPSender{ch: ch, queue: queue}
}

// DialAMQP connects to the broker, declares the durable queue and returns a
// sender plus a function that closes the channel and connection.
func DialAMQP(url, queue string) (*AMQPSender, func() error, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	closeFn := func() error {
		ch.Close()
		return conn.Close()
	}
	return NewAMQPSender(ch, queue), closeFn, nil
}

func (s *AMQPSender) Deliver(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode mail message: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Timestamp:    msg.CreatedAt,
		Body:         body,
		Headers: amqp.Table{
			"message_type": "mail",
		},
	}
	if err := s.ch.PublishWithContext(ctx, "", s.queue, false, false, pub); err != nil {
		return fmt.Errorf("publish to %s: %w", s.queue, err)
	}
	return nil
}
