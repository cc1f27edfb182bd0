package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Randon971205/pokemon-inventory-bot/internal/core/domain"
	"github.com/Randon971205/pokemon-inventory-bot/internal/port"
)

const (
	inventorySheet  = "Inventory"
	logSheet        = "Logs"
	defaultSheet    = "Sheet1"
	sheetTimeLayout = "02/01/2006 15:04:05"
)

var (
	inventoryHeader = []interface{}{"Product Name", "Stock Type", "Quantity", "Version"}
	logHeader       = []interface{}{"ID", "Timestamp", "Action", "Product", "Stock Type", "Quantity", "User", "Note"}
)

// XLSXAdapter keeps the inventory and the activity log in one workbook,
// one sheet each. Every write is saved to disk before returning.
type XLSXAdapter struct {
	mu   sync.Mutex
	path string
	loc  *time.Location
	file *excelize.File
}

// OpenXLSXAdapter opens path, creating the workbook and its sheets when
// missing. Log timestamps are written and read in loc.
func OpenXLSXAdapter(path string, loc *time.Location) (*XLSXAdapter, error) {
	var f *excelize.File
	_, err := os.Stat(path)
	switch {
	case err == nil:
		f, err = excelize.OpenFile(path)
		if err != nil {
			return nil, fmt.Errorf("open workbook: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		f = excelize.NewFile()
	default:
		return nil, fmt.Errorf("stat workbook: %w", err)
	}

	if loc == nil {
		loc = time.Local
	}
	a := &XLSXAdapter{path: path, loc: loc, file: f}
	if err := a.ensureSheets(); err != nil {
		f.Close()
		return nil, err
	}
	if err := a.file.SaveAs(a.path); err != nil {
		f.Close()
		return nil, fmt.Errorf("save workbook: %w", err)
	}
	return a, nil
}

func (a *XLSXAdapter) ensureSheets() error {
	sheets := []struct {
		name   string
		header []interface{}
	}{
		{inventorySheet, inventoryHeader},
		{logSheet, logHeader},
	}
	for _, s := range sheets {
		idx, err := a.file.GetSheetIndex(s.name)
		if err != nil {
			return fmt.Errorf("sheet %s: %w", s.name, err)
		}
		if idx != -1 {
			continue
		}
		if _, err := a.file.NewSheet(s.name); err != nil {
			return fmt.Errorf("create sheet %s: %w", s.name, err)
		}
		header := s.header
		if err := a.file.SetSheetRow(s.name, "A1", &header); err != nil {
			return fmt.Errorf("write header %s: %w", s.name, err)
		}
	}

	// a fresh workbook starts with an empty default sheet
	if idx, _ := a.file.GetSheetIndex(defaultSheet); idx != -1 {
		if err := a.file.DeleteSheet(defaultSheet); err != nil {
			return fmt.Errorf("delete %s: %w", defaultSheet, err)
		}
	}
	return nil
}

func (a *XLSXAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.file.Close()
}

func (a *XLSXAdapter) GetInventory(ctx context.Context, product string, stockType domain.StockType) (*domain.InventoryRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	_, rec, err := a.findInventory(product, stockType)
	return rec, err
}

func (a *XLSXAdapter) CreateInventory(ctx context.Context, rec domain.InventoryRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	rows, err := a.file.GetRows(inventorySheet)
	if err != nil {
		return fmt.Errorf("read inventory: %w", err)
	}
	for _, row := range dataRows(rows) {
		if cell(row, 0) == rec.Product && cell(row, 1) == string(rec.StockType) {
			return port.ErrRecordExists
		}
	}

	next := len(rows) + 1
	if next < 2 {
		next = 2
	}
	values := []interface{}{rec.Product, string(rec.StockType), rec.Quantity, rec.Version}
	if err := a.writeRow(inventorySheet, next, &values); err != nil {
		return err
	}
	return a.commit(func() error {
		return a.file.RemoveRow(inventorySheet, next)
	})
}

func (a *XLSXAdapter) UpdateInventory(ctx context.Context, rec domain.InventoryRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	rowNum, current, err := a.findInventory(rec.Product, rec.StockType)
	if err != nil {
		return err
	}
	if current == nil || current.Version != rec.Version {
		return port.ErrOptimisticLock
	}

	values := []interface{}{rec.Product, string(rec.StockType), rec.Quantity, rec.Version + 1}
	if err := a.writeRow(inventorySheet, rowNum, &values); err != nil {
		return err
	}
	return a.commit(func() error {
		prev := []interface{}{current.Product, string(current.StockType), current.Quantity, current.Version}
		return a.writeRow(inventorySheet, rowNum, &prev)
	})
}

func (a *XLSXAdapter) ListInventory(ctx context.Context) ([]domain.InventoryRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rows, err := a.file.GetRows(inventorySheet)
	if err != nil {
		return nil, fmt.Errorf("read inventory: %w", err)
	}

	var records []domain.InventoryRecord
	for i, row := range dataRows(rows) {
		rec, err := parseInventoryRow(row)
		if err != nil {
			log.Printf("xlsx: skipping inventory row %d: %v", i+2, err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func (a *XLSXAdapter) AppendActivity(ctx context.Context, entry domain.LogEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	rows, err := a.file.GetRows(logSheet)
	if err != nil {
		return fmt.Errorf("read log: %w", err)
	}

	next := len(rows) + 1
	if next < 2 {
		next = 2
	}
	values := []interface{}{
		entry.ID,
		entry.Timestamp.In(a.loc).Format(sheetTimeLayout),
		string(entry.Action),
		entry.Product,
		string(entry.StockType),
		entry.Quantity,
		entry.Actor,
		entry.Note,
	}
	if err := a.writeRow(logSheet, next, &values); err != nil {
		return err
	}
	return a.commit(func() error {
		return a.file.RemoveRow(logSheet, next)
	})
}

func (a *XLSXAdapter) ListActivity(ctx context.Context) ([]domain.LogEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rows, err := a.file.GetRows(logSheet)
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	var entries []domain.LogEntry
	for i, row := range dataRows(rows) {
		entry, err := a.parseLogRow(row)
		if err != nil {
			log.Printf("xlsx: skipping log row %d: %v", i+2, err)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// findInventory returns the 1-based sheet row of the pair, 0 when absent.
func (a *XLSXAdapter) findInventory(product string, stockType domain.StockType) (int, *domain.InventoryRecord, error) {
	rows, err := a.file.GetRows(inventorySheet)
	if err != nil {
		return 0, nil, fmt.Errorf("read inventory: %w", err)
	}

	for i, row := range dataRows(rows) {
		if cell(row, 0) != product || cell(row, 1) != string(stockType) {
			continue
		}
		rec, err := parseInventoryRow(row)
		if err != nil {
			return 0, nil, fmt.Errorf("inventory row %d: %w", i+2, err)
		}
		return i + 2, &rec, nil
	}
	return 0, nil, nil
}

func (a *XLSXAdapter) writeRow(sheet string, rowNum int, values *[]interface{}) error {
	axis, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	if err := a.file.SetSheetRow(sheet, axis, values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, rowNum, err)
	}
	return nil
}

// commit saves the workbook. When the save fails, undo puts the in-memory
// sheet back so reads and later saves never see the lost change.
func (a *XLSXAdapter) commit(undo func() error) error {
	err := a.save()
	if err == nil {
		return nil
	}
	if undoErr := undo(); undoErr != nil {
		log.Printf("xlsx: CRITICAL could not undo unsaved change: %v", undoErr)
	}
	return err
}

func (a *XLSXAdapter) save() error {
	if err := a.file.SaveAs(a.path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func (a *XLSXAdapter) parseLogRow(row []string) (domain.LogEntry, error) {
	ts, err := time.ParseInLocation(sheetTimeLayout, cell(row, 1), a.loc)
	if err != nil {
		return domain.LogEntry{}, fmt.Errorf("timestamp: %w", err)
	}
	qty, err := strconv.Atoi(cell(row, 5))
	if err != nil {
		return domain.LogEntry{}, fmt.Errorf("quantity: %w", err)
	}
	return domain.LogEntry{
		ID:        cell(row, 0),
		Timestamp: ts,
		Action:    domain.ActionKind(cell(row, 2)),
		Product:   cell(row, 3),
		StockType: domain.StockType(cell(row, 4)),
		Quantity:  qty,
		Actor:     cell(row, 6),
		Note:      cell(row, 7),
	}, nil
}

func parseInventoryRow(row []string) (domain.InventoryRecord, error) {
	qty, err := strconv.Atoi(cell(row, 2))
	if err != nil {
		return domain.InventoryRecord{}, fmt.Errorf("quantity: %w", err)
	}
	// hand-entered rows may leave the version blank
	version := 0
	if v := cell(row, 3); v != "" {
		if version, err = strconv.Atoi(v); err != nil {
			return domain.InventoryRecord{}, fmt.Errorf("version: %w", err)
		}
	}
	return domain.InventoryRecord{
		Product:   cell(row, 0),
		StockType: domain.StockType(cell(row, 1)),
		Quantity:  qty,
		Version:   version,
	}, nil
}

func dataRows(rows [][]string) [][]string {
	if len(rows) <= 1 {
		return nil
	}
	return rows[1:]
}

// GetRows trims trailing empty cells
func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
