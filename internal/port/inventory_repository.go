package port

import (
	"context"
	"errors"

	"github.com/Randon971205/pokemon-inventory-bot/internal/core/domain"
)

var (
	ErrOptimisticLock = errors.New("optimistic lock conflict")
	ErrRecordExists   = errors.New("inventory record already exists")
)

type InventoryRepository interface {
	// GetInventory returns nil, nil when the pair has no record
	GetInventory(ctx context.Context, product string, stockType domain.StockType) (*domain.InventoryRecord, error)

	// CreateInventory appends a record, ErrRecordExists if the pair is taken
	CreateInventory(ctx context.Context, record domain.InventoryRecord) error

	// UpdateInventory writes Quantity with version check for optimistic locking
	UpdateInventory(ctx context.Context, record domain.InventoryRecord) error

	ListInventory(ctx context.Context) ([]domain.InventoryRecord, error)
}
