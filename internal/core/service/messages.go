package service

import (
	"fmt"
	"strings"

	"github.com/Randon971205/pokemon-inventory-bot/internal/core/domain"
)

const (
	optionMenuPrefix    = "menu:"
	optionProductPrefix = "product:"
	optionStockPrefix   = "stock:"

	timestampLayout = "02/01/2006 15:04:05"
)

const (
	usageAdd    = "/add product_name quantity [stock_type]"
	usageMinus  = "/minus product_name quantity [stock_type]"
	usageOpen   = "/open product_name quantity stock_type [note]"
	usageStock  = "/stock product_name OR /stock all"
	usageReport = "/report"
)

const (
	msgWelcome         = "Welcome to the Pokemon Inventory Bot!\nChoose a command:"
	msgPasscodePrompt  = "This bot is private. Please enter the passcode."
	msgPasscodeDenied  = "Wrong passcode, please try again."
	msgPasscodeGranted = "Access granted."
	msgFailure         = "Something went wrong, please try again later."
	msgInsufficient    = "Not enough stock for that change."
	msgInvalidQuantity = "Invalid quantity, it must be a whole number. Start again from the menu."
	msgPickOption      = "Please pick one of the options above, or /cancel."
	msgCancelled       = "Cancelled."
	msgNothingToCancel = "Nothing to cancel."
	msgUnknownCommand  = "Unknown command. Send /start for the menu or /help for usage."
	msgNoActivity      = "No activity logged today."
	msgNoStock         = "No stock recorded yet."
	msgStockTypes      = "stock_type is one of Loose, KeepSealed, BagOf50"
)

func mainMenu() []domain.Option {
	return []domain.Option{
		{Label: "Add", Data: optionMenuPrefix + "add"},
		{Label: "Minus", Data: optionMenuPrefix + "minus"},
		{Label: "Open", Data: optionMenuPrefix + "open"},
		{Label: "Stock", Data: optionMenuPrefix + "stock"},
		{Label: "Report", Data: optionMenuPrefix + "report"},
	}
}

func menuReply(prefix string) domain.Reply {
	text := msgWelcome
	if prefix != "" {
		text = prefix + "\n" + msgWelcome
	}
	return domain.Reply{Text: text, Options: mainMenu()}
}

func helpText() string {
	return strings.Join([]string{
		"Commands:",
		usageAdd,
		usageMinus,
		usageOpen,
		usageStock,
		usageReport,
		"/cancel",
		msgStockTypes,
		`Quote names with spaces: /add "Charizard ex" 2`,
	}, "\n")
}

func usageText(usage string) string {
	return "Usage: " + usage + "\n" + msgStockTypes
}

func productOptions(products []string) []domain.Option {
	opts := make([]domain.Option, 0, len(products))
	for _, p := range products {
		opts = append(opts, domain.Option{Label: p, Data: optionProductPrefix + p})
	}
	return opts
}

func stockTypeOptions() []domain.Option {
	opts := make([]domain.Option, 0, len(domain.StockTypes))
	for _, st := range domain.StockTypes {
		opts = append(opts, domain.Option{Label: st.Label(), Data: optionStockPrefix + string(st)})
	}
	return opts
}

func confirmation(action domain.ActionKind, qty int, record domain.InventoryRecord, note string) string {
	var verb string
	switch action {
	case domain.ActionAdd:
		verb = "Added"
	case domain.ActionMinus:
		verb = "Subtracted"
	default:
		verb = "Opened"
	}
	msg := fmt.Sprintf("%s %d of %s (%s).", verb, qty, record.Product, record.StockType.Label())
	if note != "" {
		msg = fmt.Sprintf("%s %d of %s (%s) - %s.", verb, qty, record.Product, record.StockType.Label(), note)
	}
	return fmt.Sprintf("%s Now %d.", msg, record.Quantity)
}

func formatStock(records []domain.InventoryRecord, all bool) string {
	if len(records) == 0 {
		return msgNoStock
	}

	var b strings.Builder
	if all {
		b.WriteString("Current Stock:")
		for _, r := range records {
			fmt.Fprintf(&b, "\n- %s (%s): %d", r.Product, r.StockType.Label(), r.Quantity)
		}
		return b.String()
	}

	b.WriteString(records[0].Product + ":")
	for _, r := range records {
		fmt.Fprintf(&b, "\n- %s: %d", r.StockType.Label(), r.Quantity)
	}
	return b.String()
}

func formatReport(day string, entries []domain.LogEntry) string {
	if len(entries) == 0 {
		return msgNoActivity
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Daily Report for %s:", day)
	for _, e := range entries {
		b.WriteString("\n" + formatLogLine(e))
	}
	return b.String()
}

func formatLogLine(e domain.LogEntry) string {
	line := fmt.Sprintf("%s - %s %dx %s (%s) by %s",
		e.Timestamp.Format(timestampLayout), e.Action, e.Quantity, e.Product, e.StockType.Label(), e.Actor)
	if e.Note != "" {
		line += " (" + e.Note + ")"
	}
	return line
}
