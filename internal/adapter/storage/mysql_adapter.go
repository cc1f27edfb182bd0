package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/Randon971205/pokemon-inventory-bot/internal/core/domain"
	"github.com/Randon971205/pokemon-inventory-bot/internal/port"
)

const mysqlDuplicateEntry = 1062

var schema = []string{
	`CREATE TABLE IF NOT EXISTS inventory (
		product    VARCHAR(191) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NOT NULL,
		stock_type VARCHAR(32) NOT NULL,
		quantity   INT NOT NULL,
		version    INT NOT NULL DEFAULT 0,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		PRIMARY KEY (product, stock_type)
	)`,
	`CREATE TABLE IF NOT EXISTS activity_log (
		seq        BIGINT AUTO_INCREMENT PRIMARY KEY,
		id         CHAR(36) NOT NULL UNIQUE,
		logged_at  DATETIME(6) NOT NULL,
		action     VARCHAR(16) NOT NULL,
		product    VARCHAR(191) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NOT NULL,
		stock_type VARCHAR(32) NOT NULL,
		quantity   INT NOT NULL,
		actor      VARCHAR(191) NOT NULL,
		note       VARCHAR(512) NOT NULL DEFAULT '',
		INDEX idx_activity_logged_at (logged_at)
	)`,
}

// MySQLAdapter is both the inventory store and the activity log.
// Timestamps are written in UTC; the DSN needs parseTime=true.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

func (m *MySQLAdapter) GetInventory(ctx context.Context, product string, stockType domain.StockType) (*domain.InventoryRecord, error) {
	var rec domain.InventoryRecord
	err := m.db.QueryRowContext(ctx, `
		SELECT product, stock_type, quantity, version, created_at, updated_at
		FROM inventory WHERE product = ? AND stock_type = ?`, product, string(stockType),
	).Scan(&rec.Product, &rec.StockType, &rec.Quantity, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query inventory: %w", err)
	}

	return &rec, nil
}

func (m *MySQLAdapter) CreateInventory(ctx context.Context, rec domain.InventoryRecord) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO inventory (product, stock_type, quantity, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Product, string(rec.StockType), rec.Quantity, rec.Version,
		rec.CreatedAt.UTC(), rec.UpdatedAt.UTC(),
	)
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
		return port.ErrRecordExists
	}
	if err != nil {
		return fmt.Errorf("insert inventory: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) UpdateInventory(ctx context.Context, rec domain.InventoryRecord) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE inventory
		SET quantity = ?, version = version + 1, updated_at = ?
		WHERE product = ? AND stock_type = ? AND version = ?`,
		rec.Quantity, rec.UpdatedAt.UTC(), rec.Product, string(rec.StockType), rec.Version,
	)
	if err != nil {
		return fmt.Errorf("update inventory: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return port.ErrOptimisticLock
	}

	return nil
}

func (m *MySQLAdapter) ListInventory(ctx context.Context) ([]domain.InventoryRecord, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT product, stock_type, quantity, version, created_at, updated_at
		FROM inventory ORDER BY product, stock_type`)
	if err != nil {
		return nil, fmt.Errorf("query inventory: %w", err)
	}
	defer rows.Close()

	var records []domain.InventoryRecord
	for rows.Next() {
		var rec domain.InventoryRecord
		if err := rows.Scan(&rec.Product, &rec.StockType, &rec.Quantity, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan inventory: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (m *MySQLAdapter) AppendActivity(ctx context.Context, entry domain.LogEntry) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO activity_log (id, logged_at, action, product, stock_type, quantity, actor, note)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Timestamp.UTC(), string(entry.Action), entry.Product,
		string(entry.StockType), entry.Quantity, entry.Actor, entry.Note,
	)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) ListActivity(ctx context.Context) ([]domain.LogEntry, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, logged_at, action, product, stock_type, quantity, actor, note
		FROM activity_log ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	var entries []domain.LogEntry
	for rows.Next() {
		var e domain.LogEntry
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Action, &e.Product, &e.StockType, &e.Quantity, &e.Actor, &e.Note); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
