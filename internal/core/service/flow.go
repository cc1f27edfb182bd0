package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Randon971205/pokemon-inventory-bot/internal/core/domain"
)

// Flow is the guided update conversation:
// idle -> selecting product -> selecting stock type -> entering quantity -> idle.
// It mutates the session it is given; the caller persists it.
type Flow struct {
	inventory   *InventoryService
	idleTimeout time.Duration
	now         func() time.Time
}

func NewFlow(inventory *InventoryService, idleTimeout time.Duration) *Flow {
	return &Flow{
		inventory:   inventory,
		idleTimeout: idleTimeout,
		now:         time.Now,
	}
}

// Expire drops a draft that has been idle longer than the timeout.
func (f *Flow) Expire(sess *domain.Session) bool {
	if sess.Draft == nil || f.idleTimeout <= 0 {
		return false
	}
	if f.now().Sub(sess.Draft.TouchedAt) <= f.idleTimeout {
		return false
	}
	sess.Draft = nil
	return true
}

// Start opens a draft for Add or Minus, replacing any draft in progress.
func (f *Flow) Start(ctx context.Context, sess *domain.Session, action domain.ActionKind) (domain.Reply, error) {
	if !sess.Authorized {
		return domain.Reply{}, ErrUnauthorized
	}
	if action != domain.ActionAdd && action != domain.ActionMinus {
		return domain.Reply{}, ErrValidation
	}

	products, err := f.inventory.Products(ctx)
	if err != nil {
		return domain.Reply{}, err
	}

	now := f.now()
	sess.Draft = &domain.PendingUpdate{
		State:     domain.FlowSelectingProduct,
		Action:    action,
		StartedAt: now,
		TouchedAt: now,
	}

	text := fmt.Sprintf("%s: pick a product or type a new product name.", action)
	if len(products) == 0 {
		text = fmt.Sprintf("%s: no products yet, type a product name.", action)
	}
	return domain.Reply{Text: text, Options: productOptions(products)}, nil
}

func (f *Flow) SelectProduct(ctx context.Context, sess *domain.Session, product string) (domain.Reply, error) {
	if sess.State() != domain.FlowSelectingProduct {
		return domain.Reply{}, errOutOfStep
	}
	product = strings.TrimSpace(product)
	if product == "" {
		return domain.Reply{}, ErrValidation
	}

	sess.Draft.Product = product
	sess.Draft.State = domain.FlowSelectingStockType
	sess.Draft.TouchedAt = f.now()

	return domain.Reply{
		Text:    fmt.Sprintf("Pick a stock type for %s.", product),
		Options: stockTypeOptions(),
	}, nil
}

func (f *Flow) SelectStockType(ctx context.Context, sess *domain.Session, stockType domain.StockType) (domain.Reply, error) {
	if sess.State() != domain.FlowSelectingStockType {
		return domain.Reply{}, errOutOfStep
	}
	if !stockType.Valid() {
		return domain.Reply{}, ErrValidation
	}

	sess.Draft.StockType = stockType
	sess.Draft.State = domain.FlowEnteringQuantity
	sess.Draft.TouchedAt = f.now()

	return domain.Reply{
		Text: fmt.Sprintf("How many %s (%s)? Enter a whole number.", sess.Draft.Product, stockType.Label()),
	}, nil
}

// EnterQuantity consumes the draft. A non-integer abandons it without
// touching the store; there is no retry, the user starts over. Zero is
// committed as a logged no-op.
func (f *Flow) EnterQuantity(ctx context.Context, sess *domain.Session, text, actor string) (domain.Reply, error) {
	if sess.State() != domain.FlowEnteringQuantity {
		return domain.Reply{}, errOutOfStep
	}

	draft := sess.Draft
	sess.Draft = nil

	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return domain.Reply{Text: msgInvalidQuantity, Options: mainMenu()}, nil
	}

	qty := abs(n)
	delta := qty
	if draft.Action == domain.ActionMinus {
		delta = -qty
	}

	record, err := f.inventory.Apply(ctx, Change{
		Action:    draft.Action,
		Product:   draft.Product,
		StockType: draft.StockType,
		Delta:     delta,
		Actor:     actor,
	})
	if err != nil {
		return domain.Reply{}, err
	}

	return domain.Reply{
		Text:    confirmation(draft.Action, qty, record, ""),
		Options: mainMenu(),
	}, nil
}
