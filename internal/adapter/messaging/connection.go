package messaging

import (
	"context"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ExchangeName = "stock_activity"
	ExchangeType = "topic"

	maxDialAttempts = 5
	redialDelay     = 2 * time.Second
)

// Connect dials the broker, opens a channel and declares the activity
// exchange. The broker may still be starting, so dialing is retried until
// maxDialAttempts or ctx runs out.
func Connect(ctx context.Context, url string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := dialBroker(ctx, url)
	if err != nil {
		return nil, nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareActivityExchange(ch); err != nil {
		conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}

func dialBroker(ctx context.Context, url string) (*amqp.Connection, error) {
	var lastErr error
	for attempt := 1; attempt <= maxDialAttempts; attempt++ {
		conn, err := amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		log.Printf("amqp: dial attempt %d/%d failed: %v", attempt, maxDialAttempts, err)

		if attempt == maxDialAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("dial amqp: %w", ctx.Err())
		case <-time.After(redialDelay):
		}
	}
	return nil, fmt.Errorf("dial amqp after %d attempts: %w", maxDialAttempts, lastErr)
}

// declareActivityExchange is idempotent; consumers bind their own queues.
func declareActivityExchange(ch *amqp.Channel) error {
	const (
		durable    = true
		autoDelete = false
		internal   = false
		noWait     = false
	)
	if err := ch.ExchangeDeclare(ExchangeName, ExchangeType, durable, autoDelete, internal, noWait, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", ExchangeName, err)
	}
	return nil
}
