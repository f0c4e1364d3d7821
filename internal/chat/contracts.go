package chat

import (
	"context"
	"errors"
	"time"

	"github.com/spec-kit/support-chat/internal/domain"
	"github.com/spec-kit/support-chat/internal/realtime"
)

var (
	// ErrFetchFailed wraps failures of the initial ticket/message load.
	ErrFetchFailed = errors.New("failed to load ticket")
	// ErrSendFailed wraps a rejected message insert.
	ErrSendFailed = errors.New("failed to send message")
	// ErrMutationFailed wraps a rejected status or priority update.
	ErrMutationFailed = errors.New("failed to update ticket")
	// ErrSessionClosed is returned by operations on a torn down session.
	ErrSessionClosed = errors.New("session closed")
)

// Store is the durable record of tickets and messages.
type Store interface {
	GetTicket(ctx context.Context, number string) (*domain.Ticket, error)
	ListMessages(ctx context.Context, ticketID string) ([]domain.Message, error)
	InsertMessage(ctx context.Context, msg domain.NewMessage) (*domain.Message, error)
	UpdateTicket(ctx context.Context, ticketID string, update domain.TicketUpdate) error
}

// ChangeFeed delivers row changes for one ticket. Delivery is not
// guaranteed.
type ChangeFeed interface {
	SubscribeMessages(ctx context.Context, ticketID string, fn func(domain.Message)) (realtime.Subscription, error)
	SubscribeTicket(ctx context.Context, ticketID string, fn func(domain.Ticket)) (realtime.Subscription, error)
}

// SignalChannel is the per-ticket broadcast topic for typing, read and
// message_sent signals.
type SignalChannel interface {
	Join(ctx context.Context, ticketID string, fn func(realtime.Signal)) (realtime.Topic, error)
}

// Listener receives view updates and user-visible notices. Calls are made
// from the session's event loop and never after Close returns.
type Listener interface {
	OnUpdate(ViewUpdate)
	OnNotice(Notice)
}

// NoticeKind classifies a user-visible failure.
type NoticeKind string

const (
	NoticeFetchFailed    NoticeKind = "fetch_failed"
	NoticeSendFailed     NoticeKind = "send_failed"
	NoticeMutationFailed NoticeKind = "mutation_failed"
)

// Notice is an error toast.
type Notice struct {
	Kind    NoticeKind
	Message string
	Err     error
	At      time.Time
}

// MessageView is a message as rendered.
type MessageView struct {
	domain.Message
	Pending bool
	Seen    bool
	Own     bool
}

// View is the full render state of a ticket view.
type View struct {
	Ticket       domain.Ticket
	Messages     []MessageView
	OtherTyping  bool
	PendingSends int
	CanReply     bool
	// OtherReadAt is the other party's read marker, when known.
	OtherReadAt *time.Time
}

// ViewUpdate is emitted after every visible state change.
type ViewUpdate struct {
	View           View
	ScrollToBottom bool
}
