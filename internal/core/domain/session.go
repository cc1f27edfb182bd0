package domain

import "time"

type FlowState string

const (
	FlowIdle               FlowState = "idle"
	FlowSelectingProduct   FlowState = "selecting_product"
	FlowSelectingStockType FlowState = "selecting_stock_type"
	FlowEnteringQuantity   FlowState = "entering_quantity"
)

// PendingUpdate is the draft collected by the guided flow. It is filled in
// order (action, product, stock type) and consumed exactly once.
type PendingUpdate struct {
	State     FlowState
	Action    ActionKind
	Product   string
	StockType StockType
	StartedAt time.Time
	TouchedAt time.Time
}

type Session struct {
	UserID     string
	Authorized bool
	Draft      *PendingUpdate
	UpdatedAt  time.Time
}

// State reports the flow state; a session without a draft is idle.
func (s *Session) State() FlowState {
	if s.Draft == nil {
		return FlowIdle
	}
	return s.Draft.State
}
