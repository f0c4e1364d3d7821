package dto

import (
	"time"

	"github.com/spec-kit/support-chat/internal/chat"
	"github.com/spec-kit/support-chat/internal/domain"
)

// OpenSessionRequest opens a ticket view.
type OpenSessionRequest struct {
	TicketNumber string `json:"ticket_number"`
	Visible      bool   `json:"visible"`
	Focused      bool   `json:"focused"`
}

// SendMessageRequest payload.
type SendMessageRequest struct {
	Body string `json:"body"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// UpdatePriorityRequest payload.
type UpdatePriorityRequest struct {
	Priority string `json:"priority"`
}

// PresenceRequest reports page visibility and window focus. Omitted
// fields are left unchanged.
type PresenceRequest struct {
	Visible *bool `json:"visible"`
	Focused *bool `json:"focused"`
}

// TypingResponse reports whether a typing signal went out.
type TypingResponse struct {
	Broadcast bool `json:"broadcast"`
}

// ViewResponse is the rendered state of a ticket view.
type ViewResponse struct {
	Ticket       TicketSummary     `json:"ticket"`
	Messages     []MessageResponse `json:"messages"`
	OtherTyping  bool              `json:"other_typing"`
	PendingSends int               `json:"pending_sends"`
	CanReply     bool              `json:"can_reply"`
	OtherReadAt  *time.Time        `json:"other_read_at,omitempty"`
}

// NoticeResponse is a user-visible failure.
type NoticeResponse struct {
	Kind    chat.NoticeKind `json:"kind"`
	Message string          `json:"message"`
	At      time.Time       `json:"at"`
}

// SessionResponse describes an open ticket view.
type SessionResponse struct {
	SessionID    string        `json:"session_id"`
	TicketNumber string        `json:"ticket_number"`
	Version      uint64        `json:"version"`
	View         *ViewResponse `json:"view,omitempty"`
}

// UpdatesResponse is returned by the long-poll endpoint.
type UpdatesResponse struct {
	Version        uint64           `json:"version"`
	View           *ViewResponse    `json:"view,omitempty"`
	ScrollToBottom bool             `json:"scroll_to_bottom"`
	Notices        []NoticeResponse `json:"notices"`
}

// NewViewResponse maps a view.
func NewViewResponse(v chat.View) ViewResponse {
	messages := make([]MessageResponse, 0, len(v.Messages))
	for _, m := range v.Messages {
		resp := NewMessageResponse(m.Message)
		resp.Pending = m.Pending
		resp.Seen = m.Seen
		resp.Own = m.Own
		messages = append(messages, resp)
	}
	return ViewResponse{
		Ticket:       NewTicketSummary(&v.Ticket),
		Messages:     messages,
		OtherTyping:  v.OtherTyping,
		PendingSends: v.PendingSends,
		CanReply:     v.CanReply,
		OtherReadAt:  v.OtherReadAt,
	}
}

// NewNoticeResponses maps notices.
func NewNoticeResponses(notices []chat.Notice) []NoticeResponse {
	out := make([]NoticeResponse, 0, len(notices))
	for _, n := range notices {
		out = append(out, NoticeResponse{Kind: n.Kind, Message: n.Message, At: n.At})
	}
	return out
}

// MessageSentResponse wraps the stored message.
type MessageSentResponse struct {
	Message MessageResponse `json:"message"`
}

// TicketStateResponse is returned after a status or priority change.
type TicketStateResponse struct {
	Status   domain.TicketStatus   `json:"status"`
	Priority domain.TicketPriority `json:"priority"`
}
