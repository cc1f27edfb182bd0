package domain

import "time"

type ActionKind string

const (
	ActionAdd   ActionKind = "Add"
	ActionMinus ActionKind = "Minus"
	ActionOpen  ActionKind = "Open"
)

func ParseActionKind(s string) (ActionKind, bool) {
	switch ActionKind(s) {
	case ActionAdd, ActionMinus, ActionOpen:
		return ActionKind(s), true
	}
	return "", false
}

// LogEntry is one immutable line of the activity log. Quantity is always
// the magnitude of the change; the direction follows from Action.
type LogEntry struct {
	ID        string
	Timestamp time.Time
	Action    ActionKind
	Product   string
	StockType StockType
	Quantity  int
	Actor     string
	Note      string
}
