package domain

import (
	"strings"
	"time"
)

type StockType string

const (
	StockLoose      StockType = "Loose"
	StockKeepSealed StockType = "KeepSealed"
	StockBagOf50    StockType = "BagOf50"
)

// StockTypes lists every stock type in menu order.
var StockTypes = []StockType{StockLoose, StockKeepSealed, StockBagOf50}

func (t StockType) Label() string {
	switch t {
	case StockKeepSealed:
		return "Keep Sealed"
	case StockBagOf50:
		return "Bag of 50"
	default:
		return string(t)
	}
}

func (t StockType) Valid() bool {
	for _, s := range StockTypes {
		if s == t {
			return true
		}
	}
	return false
}

// ParseStockType accepts the stored value or the label in any case,
// ignoring spaces, dashes and underscores ("keep-sealed", "Bag of 50").
func ParseStockType(s string) (StockType, bool) {
	key := normalizeStockType(s)
	if key == "sealed" {
		return StockKeepSealed, true
	}
	for _, t := range StockTypes {
		if key == normalizeStockType(string(t)) {
			return t, true
		}
	}
	return "", false
}

func normalizeStockType(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "", "-", "", "_", "").Replace(s)
}

type InventoryRecord struct {
	Product   string
	StockType StockType
	Quantity  int
	Version   int // optimistic locking
	CreatedAt time.Time
	UpdatedAt time.Time
}
