package domain

// Event is one inbound interaction from the chat platform. Exactly one of
// Text or Option is expected to be set.
type Event struct {
	UserID string
	Handle string
	Text   string
	Option string
}

type Option struct {
	Label string
	Data  string
}

type Reply struct {
	Text    string
	Options []Option
}
