package domain

import (
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen            TicketStatus = "open"
	TicketStatusInProgress      TicketStatus = "in_progress"
	TicketStatusWaitingCustomer TicketStatus = "waiting_customer"
	TicketStatusResolved        TicketStatus = "resolved"
	TicketStatusClosed          TicketStatus = "closed"
)

// TicketPriority enumerates urgency levels.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "low"
	TicketPriorityMedium   TicketPriority = "medium"
	TicketPriorityHigh     TicketPriority = "high"
	TicketPriorityUrgent   TicketPriority = "urgent"
	TicketPriorityCritical TicketPriority = "critical"
)

var knownStatuses = []TicketStatus{
	TicketStatusOpen,
	TicketStatusInProgress,
	TicketStatusWaitingCustomer,
	TicketStatusResolved,
	TicketStatusClosed,
}

var knownPriorities = []TicketPriority{
	TicketPriorityLow,
	TicketPriorityMedium,
	TicketPriorityHigh,
	TicketPriorityUrgent,
	TicketPriorityCritical,
}

// ParseStatus normalizes user input into a known status.
func ParseStatus(raw string) (TicketStatus, error) {
	candidate := TicketStatus(strings.ToLower(strings.TrimSpace(raw)))
	for _, s := range knownStatuses {
		if s == candidate {
			return s, nil
		}
	}
	return "", ErrInvalidStatus
}

// ParsePriority normalizes user input into a known priority.
func ParsePriority(raw string) (TicketPriority, error) {
	candidate := TicketPriority(strings.ToLower(strings.TrimSpace(raw)))
	for _, p := range knownPriorities {
		if p == candidate {
			return p, nil
		}
	}
	return "", ErrInvalidPriority
}

// AcceptsReplies reports whether the normal reply path is available.
// A closed ticket has to be reopened first.
func (s TicketStatus) AcceptsReplies() bool {
	return s != TicketStatusClosed
}

// AfterAdminReply returns the status a ticket moves to once an admin reply
// has been sent: the ball is in the customer's court.
func (s TicketStatus) AfterAdminReply() TicketStatus {
	if s == TicketStatusClosed {
		return s
	}
	return TicketStatusWaitingCustomer
}

// GuestIdentity identifies a requester without an account.
type GuestIdentity struct {
	Name  string
	Email string
	Phone string
}

func (g *GuestIdentity) present() bool {
	return g != nil && (strings.TrimSpace(g.Name) != "" || strings.TrimSpace(g.Email) != "" || strings.TrimSpace(g.Phone) != "")
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID              string
	Number          string
	Subject         string
	Description     *string
	Status          TicketStatus
	Priority        TicketPriority
	Category        string
	RequesterUserID *string
	Guest           *GuestIdentity
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ValidateRequester enforces that exactly one of user id or guest identity is set.
func (t *Ticket) ValidateRequester() error {
	hasUser := t.RequesterUserID != nil && strings.TrimSpace(*t.RequesterUserID) != ""
	if hasUser == t.Guest.present() {
		return ErrInvalidRequester
	}
	return nil
}

// RequesterName is a display label for the requester.
func (t *Ticket) RequesterName() string {
	if t.Guest.present() {
		if t.Guest.Name != "" {
			return t.Guest.Name
		}
		return t.Guest.Email
	}
	if t.RequesterUserID != nil {
		return *t.RequesterUserID
	}
	return ""
}

// Equal compares the fields a ticket view renders.
func (t *Ticket) Equal(other *Ticket) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.ID == other.ID &&
		t.Number == other.Number &&
		t.Subject == other.Subject &&
		equalStringPtr(t.Description, other.Description) &&
		t.Status == other.Status &&
		t.Priority == other.Priority &&
		t.Category == other.Category &&
		t.UpdatedAt.Equal(other.UpdatedAt)
}

// TicketUpdate carries a partial ticket mutation.
type TicketUpdate struct {
	Status    *TicketStatus
	Priority  *TicketPriority
	UpdatedAt time.Time
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
