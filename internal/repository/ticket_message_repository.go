package repository

import (
	"context"

	"github.com/spec-kit/support-chat/internal/domain"
)

// TicketMessageRepository manages ticket conversation messages.
type TicketMessageRepository interface {
	Create(ctx context.Context, msg domain.NewMessage) (*domain.Message, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Message, error)
}

type ticketMessageRepository struct {
	db DBTX
}

// NewTicketMessageRepository builds repository.
func NewTicketMessageRepository(db DBTX) TicketMessageRepository {
	return &ticketMessageRepository{db: db}
}

func (r *ticketMessageRepository) Create(ctx context.Context, msg domain.NewMessage) (*domain.Message, error) {
	const query = `
        INSERT INTO ticket_messages (ticket_id, sender_role, sender_id, body)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	stored := domain.Message{
		TicketID: msg.TicketID,
		Body:     msg.Body,
		Sender:   msg.Sender,
		SenderID: msg.SenderID,
	}
	var id string
	if err := r.db.QueryRow(ctx, query,
		msg.TicketID,
		string(msg.Sender),
		msg.SenderID,
		msg.Body,
	).Scan(&id, &stored.CreatedAt); err != nil {
		return nil, err
	}
	stored.ID = domain.DurableID(id)
	return &stored, nil
}

func (r *ticketMessageRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Message, error) {
	const query = `
        SELECT id, ticket_id, sender_role, sender_id, body, created_at
        FROM ticket_messages WHERE ticket_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Message
	for rows.Next() {
		var (
			msg domain.Message
			id  string
		)
		if err := rows.Scan(
			&id,
			&msg.TicketID,
			&msg.Sender,
			&msg.SenderID,
			&msg.Body,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		msg.ID = domain.DurableID(id)
		result = append(result, msg)
	}
	return result, rows.Err()
}
