// Package bus defines the inbound event types shared between the Lark
// ingress, the dispatcher, and the classifier, plus the small concurrent
// structures (dedupe cache, bounded queue) that sit on the ingress path.
package bus

import "time"

// EventKind is the normalized content kind of an inbound message.
type EventKind string

const (
	KindText     EventKind = "text"
	KindImage    EventKind = "image"
	KindRichPost EventKind = "rich_post"
)

// ChatType distinguishes 1:1 chats from group chats.
type ChatType string

const (
	ChatDirect ChatType = "direct"
	ChatGroup  ChatType = "group"
)

// Mention is a structured @-marker inside a message payload.
// Key is the placeholder token embedded in the text (e.g. "@_user_1"),
// TargetID the open_id of the mentioned participant.
type Mention struct {
	Key      string
	TargetID string
	Name     string
}

// InboundEvent is the single tagged variant constructed once at the
// ingress boundary. Everything downstream operates on this shape and
// never on raw platform payloads. Immutable after construction.
type InboundEvent struct {
	MessageID  string
	ChatID     string
	ChatType   ChatType
	SenderID   string
	CreateTime time.Time
	Kind       EventKind
	Text       string
	ImageKey   string
	Mentions   []Mention
}

// Valid reports whether the event carries the identifiers required for
// any processing at all. Events failing this are dropped silently.
func (e *InboundEvent) Valid() bool {
	return e.MessageID != "" && e.ChatID != ""
}

// Reply is an outbound message addressed to a chat. AddresseeID, when
// set, asks the sink to @-address a sender in a group chat.
type Reply struct {
	ChatID      string
	Text        string
	AddresseeID string
}
