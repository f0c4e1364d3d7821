package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-chat/internal/domain"
	"github.com/spec-kit/support-chat/internal/repository"
)

type stubTicketRepo struct {
	repository.TicketRepository
	tickets    map[string]domain.Ticket
	lastFilter repository.TicketFilter
}

func (r *stubTicketRepo) GetByNumber(_ context.Context, number string) (*domain.Ticket, error) {
	t, ok := r.tickets[number]
	if !ok {
		return nil, domain.ErrTicketNotFound
	}
	return &t, nil
}

func (r *stubTicketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.lastFilter = filter
	var out []domain.Ticket
	for _, t := range r.tickets {
		out = append(out, t)
	}
	return out, nil
}

type stubHistoryRepo struct {
	repository.TicketHistoryRepository
	entries map[string][]domain.TicketHistory
}

func (r *stubHistoryRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketHistory, error) {
	return r.entries[ticketID], nil
}

type stubMessageRepo struct {
	repository.TicketMessageRepository
	messages map[string][]domain.Message
}

func (r *stubMessageRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Message, error) {
	return r.messages[ticketID], nil
}

func newTicketFixture() *TicketService {
	return NewTicketService(TicketDependencies{
		TicketRepo: &stubTicketRepo{tickets: map[string]domain.Ticket{
			"TCK-1": {ID: "t-1", Number: "TCK-1", Status: domain.TicketStatusOpen},
		}},
		MessageRepo: &stubMessageRepo{messages: map[string][]domain.Message{
			"t-1": {{ID: domain.DurableID("m1"), TicketID: "t-1", Body: "hi", Sender: domain.SenderCustomer}},
		}},
		HistoryRepo: &stubHistoryRepo{entries: map[string][]domain.TicketHistory{
			"t-1": {{TicketID: "t-1", ChangeType: domain.ChangeTypeStatus, OldValue: "open", NewValue: "closed"}},
		}},
	})
}

func TestListTicketsClampsLimit(t *testing.T) {
	svc := newTicketFixture()
	tickets, err := svc.ListTickets(context.Background(), TicketListFilter{Limit: 1000})
	require.NoError(t, err)
	assert.Len(t, tickets, 1)
	assert.Equal(t, 20, svc.tickets.(*stubTicketRepo).lastFilter.Limit)
}

func TestGetTicketWithMessages(t *testing.T) {
	svc := newTicketFixture()
	ticket, messages, err := svc.GetTicket(context.Background(), "TCK-1")
	require.NoError(t, err)
	assert.Equal(t, "t-1", ticket.ID)
	require.Len(t, messages, 1)
	assert.Equal(t, "hi", messages[0].Body)

	_, _, err = svc.GetTicket(context.Background(), "TCK-404")
	assert.ErrorIs(t, err, domain.ErrTicketNotFound)
}

func TestHistoryByNumber(t *testing.T) {
	svc := newTicketFixture()
	entries, err := svc.History(context.Background(), "TCK-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "closed", entries[0].NewValue)
}

func TestTicketServiceWithoutDatabase(t *testing.T) {
	svc := NewTicketService(TicketDependencies{})
	_, err := svc.ListTickets(context.Background(), TicketListFilter{})
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	_, err = svc.History(context.Background(), "TCK-1")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}
