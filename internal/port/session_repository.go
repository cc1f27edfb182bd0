package port

import (
	"context"

	"github.com/Randon971205/pokemon-inventory-bot/internal/core/domain"
)

type SessionRepository interface {
	// GetSession returns a fresh unauthorized session for unknown users
	GetSession(ctx context.Context, userID string) (domain.Session, error)

	SaveSession(ctx context.Context, session domain.Session) error
}
