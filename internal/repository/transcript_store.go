package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-chat/internal/domain"
)

// TranscriptStore is the Postgres-backed store behind a ticket view. Ticket
// updates run in a transaction that also writes the audit trail, attributed
// to the actor the store was created for.
type TranscriptStore struct {
	pool     *pgxpool.Pool
	tickets  TicketRepository
	messages TicketMessageRepository
	role     domain.SenderRole
	actorID  *string
}

// NewTranscriptStore builds a store acting on behalf of role/actorID.
func NewTranscriptStore(pool *pgxpool.Pool, role domain.SenderRole, actorID *string) *TranscriptStore {
	return &TranscriptStore{
		pool:     pool,
		tickets:  NewTicketRepository(pool),
		messages: NewTicketMessageRepository(pool),
		role:     role,
		actorID:  actorID,
	}
}

func (s *TranscriptStore) GetTicket(ctx context.Context, number string) (*domain.Ticket, error) {
	return s.tickets.GetByNumber(ctx, number)
}

func (s *TranscriptStore) ListMessages(ctx context.Context, ticketID string) ([]domain.Message, error) {
	return s.messages.ListByTicket(ctx, ticketID)
}

func (s *TranscriptStore) InsertMessage(ctx context.Context, msg domain.NewMessage) (*domain.Message, error) {
	return s.messages.Create(ctx, msg)
}

func (s *TranscriptStore) UpdateTicket(ctx context.Context, ticketID string, update domain.TicketUpdate) error {
	if update.Status == nil && update.Priority == nil {
		return errors.New("empty ticket update")
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tickets := NewTicketRepository(tx)
		history := NewTicketHistoryRepository(tx)

		before, err := tickets.GetForUpdate(ctx, ticketID)
		if err != nil {
			return err
		}
		if err := tickets.Update(ctx, ticketID, update); err != nil {
			return err
		}
		for _, entry := range domain.HistoryFor(*before, update, s.role, s.actorID) {
			entry := entry
			if err := history.Create(ctx, &entry); err != nil {
				return err
			}
		}
		return nil
	})
}
