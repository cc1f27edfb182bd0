package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/Randon971205/pokemon-inventory-bot/internal/core/domain"
	"github.com/Randon971205/pokemon-inventory-bot/internal/port"
)

const (
	maxApplyAttempts = 5
	reportDateLayout = "02/01/2006"
)

// Change is one inventory delta together with the log line describing it.
type Change struct {
	Action    domain.ActionKind
	Product   string
	StockType domain.StockType
	Delta     int
	Actor     string
	Note      string
}

type InventoryService struct {
	inventory port.InventoryRepository
	activity  port.ActivityRepository
	publisher port.ActivityPublisher
	loc       *time.Location
	now       func() time.Time
	listGroup singleflight.Group
}

// NewInventoryService wires the store and log collaborators. publisher may
// be nil when no fan-out is configured.
func NewInventoryService(inventory port.InventoryRepository, activity port.ActivityRepository, publisher port.ActivityPublisher, loc *time.Location) *InventoryService {
	if loc == nil {
		loc = time.Local
	}
	return &InventoryService{
		inventory: inventory,
		activity:  activity,
		publisher: publisher,
		loc:       loc,
		now:       time.Now,
	}
}

// Apply commits one delta and its log entry. If the log append fails the
// delta is reversed so the store and the log stay in step.
func (s *InventoryService) Apply(ctx context.Context, c Change) (domain.InventoryRecord, error) {
	if strings.TrimSpace(c.Product) == "" || !c.StockType.Valid() {
		return domain.InventoryRecord{}, ErrValidation
	}
	if _, ok := domain.ParseActionKind(string(c.Action)); !ok {
		return domain.InventoryRecord{}, ErrValidation
	}

	var record domain.InventoryRecord
	var err error
	if c.Delta == 0 {
		// logged, but the store is left alone
		record, err = s.current(ctx, c.Product, c.StockType)
	} else {
		record, err = s.applyDelta(ctx, c.Product, c.StockType, c.Delta)
	}
	if err != nil {
		return domain.InventoryRecord{}, err
	}

	entry := domain.LogEntry{
		ID:        uuid.NewString(),
		Timestamp: s.now().In(s.loc),
		Action:    c.Action,
		Product:   c.Product,
		StockType: c.StockType,
		Quantity:  abs(c.Delta),
		Actor:     c.Actor,
		Note:      c.Note,
	}

	if err := s.activity.AppendActivity(ctx, entry); err != nil {
		if c.Delta == 0 {
			return domain.InventoryRecord{}, fmt.Errorf("append activity: %w", err)
		}
		// Rollback: reverse the delta
		if _, rollbackErr := s.applyDelta(ctx, c.Product, c.StockType, -c.Delta); rollbackErr != nil {
			log.Printf("CRITICAL rollback failed for %s/%s delta %d: %v", c.Product, c.StockType, c.Delta, rollbackErr)
		} else {
			log.Printf("rolled back %s/%s delta %d after log failure", c.Product, c.StockType, c.Delta)
		}
		return domain.InventoryRecord{}, fmt.Errorf("append activity: %w", err)
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, entry); err != nil {
			log.Printf("publish activity %s: %v", entry.ID, err)
		}
	}

	return record, nil
}

// current returns the stored record, or an empty one for an unknown pair.
func (s *InventoryService) current(ctx context.Context, product string, stockType domain.StockType) (domain.InventoryRecord, error) {
	rec, err := s.inventory.GetInventory(ctx, product, stockType)
	if err != nil {
		return domain.InventoryRecord{}, fmt.Errorf("get inventory: %w", err)
	}
	if rec == nil {
		return domain.InventoryRecord{Product: product, StockType: stockType}, nil
	}
	return *rec, nil
}

func (s *InventoryService) applyDelta(ctx context.Context, product string, stockType domain.StockType, delta int) (domain.InventoryRecord, error) {
	for attempt := 0; attempt < maxApplyAttempts; attempt++ {
		current, err := s.inventory.GetInventory(ctx, product, stockType)
		if err != nil {
			return domain.InventoryRecord{}, fmt.Errorf("get inventory: %w", err)
		}

		now := s.now()
		if current == nil {
			if delta < 0 {
				return domain.InventoryRecord{}, ErrInsufficientStock
			}
			record := domain.InventoryRecord{
				Product:   product,
				StockType: stockType,
				Quantity:  delta,
				CreatedAt: now,
				UpdatedAt: now,
			}
			err := s.inventory.CreateInventory(ctx, record)
			if errors.Is(err, port.ErrRecordExists) {
				continue
			}
			if err != nil {
				return domain.InventoryRecord{}, fmt.Errorf("create inventory: %w", err)
			}
			return record, nil
		}

		if current.Quantity+delta < 0 {
			return domain.InventoryRecord{}, ErrInsufficientStock
		}

		next := *current
		next.Quantity += delta
		next.UpdatedAt = now
		err = s.inventory.UpdateInventory(ctx, next)
		if errors.Is(err, port.ErrOptimisticLock) {
			continue
		}
		if err != nil {
			return domain.InventoryRecord{}, fmt.Errorf("update inventory: %w", err)
		}
		next.Version++
		return next, nil
	}

	return domain.InventoryRecord{}, ErrConflict
}

// ListAll returns every record sorted by product, then stock type.
// Concurrent callers share one store scan.
func (s *InventoryService) ListAll(ctx context.Context) ([]domain.InventoryRecord, error) {
	// the scan is shared, so one caller's cancellation must not fail the others
	scanCtx := context.WithoutCancel(ctx)
	v, err, _ := s.listGroup.Do("inventory", func() (interface{}, error) {
		return s.inventory.ListInventory(scanCtx)
	})
	if err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}

	shared := v.([]domain.InventoryRecord)
	records := make([]domain.InventoryRecord, len(shared))
	copy(records, shared)
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Product != records[j].Product {
			return records[i].Product < records[j].Product
		}
		return stockTypeRank(records[i].StockType) < stockTypeRank(records[j].StockType)
	})
	return records, nil
}

// Stock returns the records of one product (case-insensitive match).
func (s *InventoryService) Stock(ctx context.Context, product string) ([]domain.InventoryRecord, error) {
	all, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	var matched []domain.InventoryRecord
	for _, r := range all {
		if strings.EqualFold(r.Product, product) {
			matched = append(matched, r)
		}
	}
	if len(matched) == 0 {
		return nil, ErrNotFound
	}
	return matched, nil
}

// Products lists distinct known product names, sorted.
func (s *InventoryService) Products(ctx context.Context) ([]string, error) {
	all, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	var names []string
	seen := make(map[string]bool)
	for _, r := range all {
		if !seen[r.Product] {
			seen[r.Product] = true
			names = append(names, r.Product)
		}
	}
	return names, nil
}

// Report returns today's date label and the log entries stamped with it.
func (s *InventoryService) Report(ctx context.Context) (string, []domain.LogEntry, error) {
	entries, err := s.activity.ListActivity(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("list activity: %w", err)
	}

	today := s.now().In(s.loc).Format(reportDateLayout)
	var todays []domain.LogEntry
	for _, e := range entries {
		e.Timestamp = e.Timestamp.In(s.loc)
		if e.Timestamp.Format(reportDateLayout) == today {
			todays = append(todays, e)
		}
	}
	return today, todays, nil
}

func stockTypeRank(t domain.StockType) int {
	for i, st := range domain.StockTypes {
		if st == t {
			return i
		}
	}
	return len(domain.StockTypes)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
