package service

import (
	"context"
	"time"

	"github.com/spec-kit/support-chat/internal/domain"
	"github.com/spec-kit/support-chat/internal/repository"
)

// TicketService serves the read-only admin inbox: listing, a ticket with
// its transcript, and the audit trail.
type TicketService struct {
	tickets  repository.TicketRepository
	messages repository.TicketMessageRepository
	history  repository.TicketHistoryRepository
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	MessageRepo repository.TicketMessageRepository
	HistoryRepo repository.TicketHistoryRepository
}

// TicketListFilter describes admin inbox filters.
type TicketListFilter struct {
	Statuses    []domain.TicketStatus
	Priorities  []domain.TicketPriority
	Category    *string
	SearchTerm  *string
	UpdatedFrom *time.Time
	UpdatedTo   *time.Time
	Limit       int
	Offset      int
}

// NewTicketService constructs the service. A nil ticket repository means
// no database is configured.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:  deps.TicketRepo,
		messages: deps.MessageRepo,
		history:  deps.HistoryRepo,
	}
}

// ListTickets searches tickets, most recently updated first.
func (s *TicketService) ListTickets(ctx context.Context, filter TicketListFilter) ([]domain.Ticket, error) {
	if s.tickets == nil {
		return nil, ErrStoreUnavailable
	}
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	return s.tickets.ListWithFilter(ctx, repository.TicketFilter{
		Statuses:    filter.Statuses,
		Priorities:  filter.Priorities,
		Category:    filter.Category,
		SearchTerm:  filter.SearchTerm,
		UpdatedFrom: filter.UpdatedFrom,
		UpdatedTo:   filter.UpdatedTo,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	})
}

// GetTicket loads a ticket by number together with its messages.
func (s *TicketService) GetTicket(ctx context.Context, number string) (*domain.Ticket, []domain.Message, error) {
	if s.tickets == nil || s.messages == nil {
		return nil, nil, ErrStoreUnavailable
	}
	ticket, err := s.tickets.GetByNumber(ctx, number)
	if err != nil {
		return nil, nil, err
	}
	messages, err := s.messages.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, nil, err
	}
	return ticket, messages, nil
}

// History lists status and priority changes of a ticket, oldest first.
func (s *TicketService) History(ctx context.Context, number string) ([]domain.TicketHistory, error) {
	if s.tickets == nil || s.history == nil {
		return nil, ErrStoreUnavailable
	}
	ticket, err := s.tickets.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	return s.history.ListByTicket(ctx, ticket.ID)
}
