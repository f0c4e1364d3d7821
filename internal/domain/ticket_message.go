package domain

import "time"

// SenderRole indicates which side of the conversation authored a message.
type SenderRole string

const (
	SenderAdmin    SenderRole = "admin"
	SenderCustomer SenderRole = "customer"
)

// Other returns the opposite party.
func (r SenderRole) Other() SenderRole {
	if r == SenderAdmin {
		return SenderCustomer
	}
	return SenderAdmin
}

// IsAdmin mirrors the is_admin flag carried by broadcast signals.
func (r SenderRole) IsAdmin() bool {
	return r == SenderAdmin
}

// RoleFromAdminFlag maps an is_admin flag back to a role.
func RoleFromAdminFlag(isAdmin bool) SenderRole {
	if isAdmin {
		return SenderAdmin
	}
	return SenderCustomer
}

type messageIDKind uint8

const (
	messageIDDurable messageIDKind = iota + 1
	messageIDProvisional
)

// MessageID identifies a message either by the store-assigned id or by a
// locally generated id used until the store acknowledges the insert.
type MessageID struct {
	kind  messageIDKind
	value string
}

// DurableID wraps a store-assigned id.
func DurableID(id string) MessageID {
	return MessageID{kind: messageIDDurable, value: id}
}

// ProvisionalID wraps a locally generated id.
func ProvisionalID(localID string) MessageID {
	return MessageID{kind: messageIDProvisional, value: localID}
}

func (id MessageID) IsDurable() bool     { return id.kind == messageIDDurable }
func (id MessageID) IsProvisional() bool { return id.kind == messageIDProvisional }
func (id MessageID) IsZero() bool        { return id.kind == 0 }

// Value returns the raw id without its kind.
func (id MessageID) Value() string { return id.value }

func (id MessageID) String() string {
	switch id.kind {
	case messageIDDurable:
		return id.value
	case messageIDProvisional:
		return "provisional:" + id.value
	default:
		return ""
	}
}

// Message is one entry of a ticket conversation.
type Message struct {
	ID        MessageID
	TicketID  string
	Body      string
	Sender    SenderRole
	SenderID  *string
	CreatedAt time.Time
}

// SameContent compares everything but the id.
func (m Message) SameContent(other Message) bool {
	return m.TicketID == other.TicketID &&
		m.Body == other.Body &&
		m.Sender == other.Sender &&
		equalStringPtr(m.SenderID, other.SenderID) &&
		m.CreatedAt.Equal(other.CreatedAt)
}

// NewMessage is the insert payload for the transcript store.
type NewMessage struct {
	TicketID string
	Sender   SenderRole
	Body     string
	SenderID *string
}
