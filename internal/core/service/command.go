package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/Randon971205/pokemon-inventory-bot/internal/core/domain"
)

const DefaultOpenNote = "Opened for singles"

// Commands are the one-shot handlers. Every argument is parsed and
// validated before the inventory is touched.
type Commands struct {
	inventory *InventoryService
	openNote  string
}

func NewCommands(inventory *InventoryService, openNote string) *Commands {
	if openNote == "" {
		openNote = DefaultOpenNote
	}
	return &Commands{inventory: inventory, openNote: openNote}
}

// Add: /add product qty [stock_type], stock type defaults to Loose.
func (c *Commands) Add(ctx context.Context, actor string, args []string) (domain.Reply, error) {
	product, qty, stockType, _, err := parseAdjustment(args, usageAdd, false)
	if err != nil {
		return domain.Reply{}, err
	}
	return c.apply(ctx, Change{
		Action:    domain.ActionAdd,
		Product:   product,
		StockType: stockType,
		Delta:     qty,
		Actor:     actor,
	})
}

// Minus: /minus product qty [stock_type], stock type defaults to Loose.
func (c *Commands) Minus(ctx context.Context, actor string, args []string) (domain.Reply, error) {
	product, qty, stockType, _, err := parseAdjustment(args, usageMinus, false)
	if err != nil {
		return domain.Reply{}, err
	}
	return c.apply(ctx, Change{
		Action:    domain.ActionMinus,
		Product:   product,
		StockType: stockType,
		Delta:     -qty,
		Actor:     actor,
	})
}

// Open: /open product qty stock_type [note...].
func (c *Commands) Open(ctx context.Context, actor string, args []string) (domain.Reply, error) {
	product, qty, stockType, rest, err := parseAdjustment(args, usageOpen, true)
	if err != nil {
		return domain.Reply{}, err
	}
	note := strings.Join(rest, " ")
	if note == "" {
		note = c.openNote
	}
	return c.apply(ctx, Change{
		Action:    domain.ActionOpen,
		Product:   product,
		StockType: stockType,
		Delta:     -qty,
		Actor:     actor,
		Note:      note,
	})
}

func (c *Commands) apply(ctx context.Context, change Change) (domain.Reply, error) {
	record, err := c.inventory.Apply(ctx, change)
	if err != nil {
		return domain.Reply{}, err
	}
	return domain.Reply{Text: confirmation(change.Action, abs(change.Delta), record, change.Note)}, nil
}

// Stock: /stock product or /stock all.
func (c *Commands) Stock(ctx context.Context, args []string) (domain.Reply, error) {
	if len(args) != 1 {
		return domain.Reply{}, newUsageError(usageStock)
	}

	if strings.EqualFold(args[0], "all") {
		records, err := c.inventory.ListAll(ctx)
		if err != nil {
			return domain.Reply{}, err
		}
		return domain.Reply{Text: formatStock(records, true)}, nil
	}

	records, err := c.inventory.Stock(ctx, args[0])
	if errors.Is(err, ErrNotFound) {
		return domain.Reply{Text: fmt.Sprintf("No stock data for %s.", args[0])}, nil
	}
	if err != nil {
		return domain.Reply{}, err
	}
	return domain.Reply{Text: formatStock(records, false)}, nil
}

func (c *Commands) Report(ctx context.Context) (domain.Reply, error) {
	day, entries, err := c.inventory.Report(ctx)
	if err != nil {
		return domain.Reply{}, err
	}
	return domain.Reply{Text: formatReport(day, entries)}, nil
}

// parseAdjustment reads product, qty and stock type; the remaining
// arguments are returned untouched. qty must be a positive integer.
func parseAdjustment(args []string, usage string, requireStockType bool) (string, int, domain.StockType, []string, error) {
	if len(args) < 2 {
		return "", 0, "", nil, newUsageError(usage)
	}

	product := strings.TrimSpace(args[0])
	if product == "" {
		return "", 0, "", nil, newUsageError(usage)
	}
	qty, err := strconv.Atoi(args[1])
	if err != nil || qty <= 0 {
		return "", 0, "", nil, newUsageError(usage)
	}

	stockType := domain.StockLoose
	rest := args[2:]
	if len(rest) > 0 {
		st, ok := domain.ParseStockType(rest[0])
		if !ok {
			return "", 0, "", nil, newUsageError(usage)
		}
		stockType = st
		rest = rest[1:]
	} else if requireStockType {
		return "", 0, "", nil, newUsageError(usage)
	}

	if !requireStockType && len(rest) > 0 {
		return "", 0, "", nil, newUsageError(usage)
	}

	return product, qty, stockType, rest, nil
}

// splitArgs splits a command line on whitespace. Double quotes, straight or
// curly, keep a product name with spaces in one argument; an unterminated
// quote runs to the end of the line.
func splitArgs(text string) []string {
	var args []string
	var cur strings.Builder
	inQuote, inArg := false, false

	for _, r := range text {
		switch {
		case r == '"' || r == '\u201c' || r == '\u201d':
			inQuote = !inQuote
			inArg = true
		case unicode.IsSpace(r) && !inQuote:
			if inArg {
				args = append(args, cur.String())
				cur.Reset()
				inArg = false
			}
		default:
			cur.WriteRune(r)
			inArg = true
		}
	}
	if inArg {
		args = append(args, cur.String())
	}
	return args
}
