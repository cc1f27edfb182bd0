package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Randon971205/pokemon-inventory-bot/internal/core/domain"
)

type activityMessage struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Product   string    `json:"product"`
	StockType string    `json:"stock_type"`
	Quantity  int       `json:"quantity"`
	Actor     string    `json:"actor"`
	Note      string    `json:"note,omitempty"`
}

// channel is the subset of *amqp.Channel the publisher needs.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type Publisher struct {
	ch channel
}

func NewPublisher(ch *amqp.Channel) *Publisher {
	return &Publisher{ch: ch}
}

func (p *Publisher) Publish(ctx context.Context, entry domain.LogEntry) error {
	body, err := json.Marshal(activityMessage{
		ID:        entry.ID,
		Timestamp: entry.Timestamp,
		Action:    string(entry.Action),
		Product:   entry.Product,
		StockType: string(entry.StockType),
		Quantity:  entry.Quantity,
		Actor:     entry.Actor,
		Note:      entry.Note,
	})
	if err != nil {
		return fmt.Errorf("could not marshal activity: %w", err)
	}

	return p.ch.PublishWithContext(ctx,
		ExchangeName,      // exchange
		RoutingKey(entry), // routing key
		false,             // mandatory
		false,             // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    entry.ID,
			Timestamp:    entry.Timestamp,
			Body:         body,
		},
	)
}

// RoutingKey is activity.<action>.<stock type>, e.g. activity.open.loose.
func RoutingKey(entry domain.LogEntry) string {
	return fmt.Sprintf("activity.%s.%s",
		strings.ToLower(string(entry.Action)), strings.ToLower(string(entry.StockType)))
}
