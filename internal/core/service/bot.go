package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Randon971205/pokemon-inventory-bot/internal/core/domain"
	"github.com/Randon971205/pokemon-inventory-bot/internal/port"
)

// Bot dispatches chat events. Events from one user are handled one at a
// time; different users proceed in parallel.
type Bot struct {
	sessions port.SessionRepository
	gate     *Gate
	flow     *Flow
	commands *Commands
	locks    *userLocks
	now      func() time.Time
}

func NewBot(sessions port.SessionRepository, gate *Gate, flow *Flow, commands *Commands) *Bot {
	return &Bot{
		sessions: sessions,
		gate:     gate,
		flow:     flow,
		commands: commands,
		locks:    newUserLocks(),
		now:      time.Now,
	}
}

// Handle never fails: every error becomes a user-facing reply.
func (b *Bot) Handle(ctx context.Context, ev domain.Event) domain.Reply {
	unlock := b.locks.Lock(ev.UserID)
	defer unlock()

	reply, err := b.handle(ctx, ev)
	if err != nil {
		return b.errorReply(ev, err)
	}
	return reply
}

func (b *Bot) handle(ctx context.Context, ev domain.Event) (domain.Reply, error) {
	sess, err := b.sessions.GetSession(ctx, ev.UserID)
	if err != nil {
		return domain.Reply{}, fmt.Errorf("get session: %w", err)
	}

	if !sess.Authorized {
		return b.handleUnauthorized(ctx, ev)
	}

	b.flow.Expire(&sess)

	reply, err := b.route(ctx, &sess, ev)

	sess.UpdatedAt = b.now()
	if saveErr := b.sessions.SaveSession(ctx, sess); saveErr != nil {
		return domain.Reply{}, fmt.Errorf("save session: %w", saveErr)
	}
	return reply, err
}

// handleUnauthorized treats free text as a passcode attempt; anything else
// only gets the prompt.
func (b *Bot) handleUnauthorized(ctx context.Context, ev domain.Event) (domain.Reply, error) {
	text := strings.TrimSpace(ev.Text)
	if ev.Option != "" || text == "" || strings.HasPrefix(text, "/") {
		return domain.Reply{}, ErrUnauthorized
	}

	granted, err := b.gate.Attempt(ctx, ev.UserID, ev.Text)
	if err != nil {
		return domain.Reply{}, err
	}
	if !granted {
		log.Printf("passcode denied for user %s", ev.UserID)
		return domain.Reply{Text: msgPasscodeDenied}, nil
	}

	log.Printf("passcode granted for user %s", ev.UserID)
	return menuReply(msgPasscodeGranted), nil
}

func (b *Bot) route(ctx context.Context, sess *domain.Session, ev domain.Event) (domain.Reply, error) {
	if ev.Option != "" {
		return b.handleOption(ctx, sess, ev)
	}

	text := strings.TrimSpace(ev.Text)
	if strings.HasPrefix(text, "/") {
		return b.handleCommand(ctx, sess, ev, text)
	}

	switch sess.State() {
	case domain.FlowSelectingProduct:
		return b.flow.SelectProduct(ctx, sess, text)
	case domain.FlowSelectingStockType:
		stockType, ok := domain.ParseStockType(text)
		if !ok {
			return domain.Reply{Text: msgPickOption, Options: stockTypeOptions()}, nil
		}
		return b.flow.SelectStockType(ctx, sess, stockType)
	case domain.FlowEnteringQuantity:
		return b.flow.EnterQuantity(ctx, sess, text, actorName(ev))
	default:
		return domain.Reply{Text: msgUnknownCommand}, nil
	}
}

func (b *Bot) handleOption(ctx context.Context, sess *domain.Session, ev domain.Event) (domain.Reply, error) {
	data := ev.Option
	switch {
	case strings.HasPrefix(data, optionMenuPrefix):
		switch strings.TrimPrefix(data, optionMenuPrefix) {
		case "add":
			return b.flow.Start(ctx, sess, domain.ActionAdd)
		case "minus":
			return b.flow.Start(ctx, sess, domain.ActionMinus)
		case "open":
			return domain.Reply{Text: usageText(usageOpen)}, nil
		case "stock":
			return b.commands.Stock(ctx, []string{"all"})
		case "report":
			return b.commands.Report(ctx)
		}
	case strings.HasPrefix(data, optionProductPrefix):
		return b.flow.SelectProduct(ctx, sess, strings.TrimPrefix(data, optionProductPrefix))
	case strings.HasPrefix(data, optionStockPrefix):
		stockType, ok := domain.ParseStockType(strings.TrimPrefix(data, optionStockPrefix))
		if !ok {
			return domain.Reply{}, ErrValidation
		}
		return b.flow.SelectStockType(ctx, sess, stockType)
	}
	return domain.Reply{}, ErrValidation
}

func (b *Bot) handleCommand(ctx context.Context, sess *domain.Session, ev domain.Event, text string) (domain.Reply, error) {
	fields := splitArgs(text)
	name := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	// "/add@SomeBot" in group chats
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	args := fields[1:]

	switch name {
	case "start":
		return menuReply(""), nil
	case "help":
		return domain.Reply{Text: helpText()}, nil
	case "cancel":
		if sess.Draft == nil {
			return domain.Reply{Text: msgNothingToCancel}, nil
		}
		sess.Draft = nil
		return menuReply(msgCancelled), nil
	case "add":
		return b.commands.Add(ctx, actorName(ev), args)
	case "minus":
		return b.commands.Minus(ctx, actorName(ev), args)
	case "open":
		return b.commands.Open(ctx, actorName(ev), args)
	case "stock":
		return b.commands.Stock(ctx, args)
	case "report":
		return b.commands.Report(ctx)
	default:
		return domain.Reply{Text: msgUnknownCommand}, nil
	}
}

func (b *Bot) errorReply(ev domain.Event, err error) domain.Reply {
	var usage *usageError
	switch {
	case errors.As(err, &usage):
		return domain.Reply{Text: usageText(usage.usage)}
	case errors.Is(err, ErrUnauthorized):
		return domain.Reply{Text: msgPasscodePrompt}
	case errors.Is(err, ErrInsufficientStock):
		return domain.Reply{Text: msgInsufficient, Options: mainMenu()}
	case errors.Is(err, ErrNotFound):
		return domain.Reply{Text: "No data found."}
	case errors.Is(err, errOutOfStep):
		return menuReply("That menu has expired.")
	case errors.Is(err, ErrValidation):
		return domain.Reply{Text: msgPickOption}
	default:
		log.Printf("user %s: %v", ev.UserID, err)
		return domain.Reply{Text: msgFailure}
	}
}

func actorName(ev domain.Event) string {
	handle := strings.TrimPrefix(ev.Handle, "@")
	if handle == "" {
		handle = ev.UserID
	}
	return "@" + handle
}
