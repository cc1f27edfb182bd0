package port

import (
	"context"

	"github.com/Randon971205/pokemon-inventory-bot/internal/core/domain"
)

type ActivityRepository interface {
	AppendActivity(ctx context.Context, entry domain.LogEntry) error

	// ListActivity returns every entry in append order
	ListActivity(ctx context.Context) ([]domain.LogEntry, error)
}

type ActivityPublisher interface {
	// Publish fans a committed entry out to subscribers
	Publish(ctx context.Context, entry domain.LogEntry) error
}
