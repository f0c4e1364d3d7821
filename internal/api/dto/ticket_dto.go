package dto

import (
	"time"

	"github.com/spec-kit/support-chat/internal/domain"
)

// TicketListQuery captures admin inbox query filters.
type TicketListQuery struct {
	Statuses    []domain.TicketStatus
	Priorities  []domain.TicketPriority
	Category    *string
	SearchTerm  *string
	UpdatedFrom *time.Time
	UpdatedTo   *time.Time
	Page        int
	PageSize    int
}

// GuestResponse identifies a requester without an account.
type GuestResponse struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// TicketSummary response.
type TicketSummary struct {
	ID              string                `json:"id"`
	Number          string                `json:"ticket_number"`
	Subject         string                `json:"subject"`
	Description     *string               `json:"description,omitempty"`
	Status          domain.TicketStatus   `json:"status"`
	Priority        domain.TicketPriority `json:"priority"`
	Category        string                `json:"category"`
	RequesterUserID *string               `json:"user_id,omitempty"`
	Guest           *GuestResponse        `json:"guest,omitempty"`
	RequesterName   string                `json:"requester_name"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// TicketDetailResponse provides a ticket with its transcript.
type TicketDetailResponse struct {
	TicketSummary
	Messages []MessageResponse `json:"messages"`
}

// MessageResponse represents a transcript message.
type MessageResponse struct {
	ID        string            `json:"id"`
	LocalID   string            `json:"local_id,omitempty"`
	Sender    domain.SenderRole `json:"sender_role"`
	SenderID  *string           `json:"sender_id,omitempty"`
	Body      string            `json:"body"`
	CreatedAt time.Time         `json:"created_at"`
	Pending   bool              `json:"pending,omitempty"`
	Seen      bool              `json:"seen,omitempty"`
	Own       bool              `json:"own,omitempty"`
}

// HistoryResponse is one audit trail entry.
type HistoryResponse struct {
	ID            string                  `json:"id"`
	ChangedByRole domain.SenderRole       `json:"changed_by_role"`
	ChangedByID   *string                 `json:"changed_by_id,omitempty"`
	ChangeType    domain.TicketChangeType `json:"change_type"`
	OldValue      string                  `json:"old_value"`
	NewValue      string                  `json:"new_value"`
	CreatedAt     time.Time               `json:"created_at"`
}

// NewTicketSummary maps a ticket.
func NewTicketSummary(t *domain.Ticket) TicketSummary {
	summary := TicketSummary{
		ID:              t.ID,
		Number:          t.Number,
		Subject:         t.Subject,
		Description:     t.Description,
		Status:          t.Status,
		Priority:        t.Priority,
		Category:        t.Category,
		RequesterUserID: t.RequesterUserID,
		RequesterName:   t.RequesterName(),
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
	if t.Guest != nil {
		summary.Guest = &GuestResponse{Name: t.Guest.Name, Email: t.Guest.Email, Phone: t.Guest.Phone}
	}
	return summary
}

// NewMessageResponse maps a stored or provisional message.
func NewMessageResponse(m domain.Message) MessageResponse {
	resp := MessageResponse{
		Sender:    m.Sender,
		SenderID:  m.SenderID,
		Body:      m.Body,
		CreatedAt: m.CreatedAt,
	}
	if m.ID.IsProvisional() {
		resp.LocalID = m.ID.Value()
	} else {
		resp.ID = m.ID.Value()
	}
	return resp
}

// NewHistoryResponse maps an audit entry.
func NewHistoryResponse(h domain.TicketHistory) HistoryResponse {
	return HistoryResponse{
		ID:            h.ID,
		ChangedByRole: h.ChangedByRole,
		ChangedByID:   h.ChangedByID,
		ChangeType:    h.ChangeType,
		OldValue:      h.OldValue,
		NewValue:      h.NewValue,
		CreatedAt:     h.CreatedAt,
	}
}
