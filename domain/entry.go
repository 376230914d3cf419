package domain

import "time"

// Role identifies the author of a transcript entry. Besides the three
// well-known roles, a raw identity string is a valid Role for entries
// authored directly by a party.
type Role string

const (
	RoleSystem Role = "system"
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

// EntryKind discriminates transcript entries. Control messages used to be
// encoded as bracket-delimited text inside chat messages; the explicit kind
// removes the string-parsing edge cases.
type EntryKind string

const (
	EntryChat    EntryKind = "chat"
	EntryControl EntryKind = "control"
	EntrySystem  EntryKind = "system"
)

// ControlKind enumerates the protocol actions a control entry can carry.
type ControlKind string

const (
	ControlProductSent     ControlKind = "product_sent"
	ControlProductReceived ControlKind = "product_received"
)

// Text returns the bracket-delimited rendering of the control action,
// as it appears in a displayed transcript.
func (c ControlKind) Text() string {
	switch c {
	case ControlProductSent:
		return "[product sent]"
	case ControlProductReceived:
		return "[product received]"
	default:
		return "[" + string(c) + "]"
	}
}

// Entry is one immutable line of a trade's append-only transcript.
// Append order is authoritative and equals display order.
type Entry struct {
	Sender  Role
	Kind    EntryKind
	Text    string
	Control ControlKind // set only when Kind == EntryControl
	At      time.Time
}

func ChatEntry(sender Role, text string, at time.Time) Entry {
	return Entry{Sender: sender, Kind: EntryChat, Text: text, At: at}
}

func ControlEntry(sender Role, kind ControlKind, at time.Time) Entry {
	return Entry{Sender: sender, Kind: EntryControl, Text: kind.Text(), Control: kind, At: at}
}

func SystemEntry(text string, at time.Time) Entry {
	return Entry{Sender: RoleSystem, Kind: EntrySystem, Text: text, At: at}
}

// IsControl reports whether the entry represents a protocol action
// rather than free text. Control entries never merge with neighbours.
func (e Entry) IsControl() bool {
	return e.Kind == EntryControl
}
