// Package chattest provides an in-memory transcript store for tests of
// code built on top of chat sessions.
package chattest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spec-kit/support-chat/internal/domain"
)

// Publisher receives stored rows, typically a realtime.Hub.
type Publisher interface {
	PublishMessage(domain.Message)
	PublishTicket(domain.Ticket)
}

// Store keeps tickets and messages in memory and publishes every write.
type Store struct {
	pub Publisher

	mu       sync.Mutex
	tickets  map[string]*domain.Ticket
	messages map[string][]domain.Message
	nextID   int
	fetches  int

	// InsertErr and UpdateErr, when set, fail the matching writes.
	InsertErr error
	UpdateErr error
}

// NewStore creates an empty store. pub may be nil.
func NewStore(pub Publisher) *Store {
	return &Store{
		pub:      pub,
		tickets:  make(map[string]*domain.Ticket),
		messages: make(map[string][]domain.Message),
	}
}

// AddTicket seeds a ticket.
func (s *Store) AddTicket(t domain.Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets[t.Number] = &t
}

// Ticket returns the stored copy of the ticket with number.
func (s *Store) Ticket(number string) (domain.Ticket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[number]
	if !ok {
		return domain.Ticket{}, false
	}
	return *t, true
}

// AddMessage stores msg without publishing it, as if the feed had lost
// the notification.
func (s *Store) AddMessage(msg domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[msg.TicketID] = append(s.messages[msg.TicketID], msg)
}

// Fetches counts GetTicket calls.
func (s *Store) Fetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

// Messages returns the stored messages of ticketID.
func (s *Store) Messages(ticketID string) []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Message(nil), s.messages[ticketID]...)
}

func (s *Store) GetTicket(_ context.Context, number string) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	t, ok := s.tickets[number]
	if !ok {
		return nil, domain.ErrTicketNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *Store) ListMessages(_ context.Context, ticketID string) ([]domain.Message, error) {
	return s.Messages(ticketID), nil
}

func (s *Store) InsertMessage(_ context.Context, msg domain.NewMessage) (*domain.Message, error) {
	s.mu.Lock()
	if s.InsertErr != nil {
		s.mu.Unlock()
		return nil, s.InsertErr
	}
	s.nextID++
	stored := domain.Message{
		ID:        domain.DurableID(fmt.Sprintf("msg-%d", s.nextID)),
		TicketID:  msg.TicketID,
		Body:      msg.Body,
		Sender:    msg.Sender,
		SenderID:  msg.SenderID,
		CreatedAt: time.Now().UTC(),
	}
	s.messages[msg.TicketID] = append(s.messages[msg.TicketID], stored)
	s.mu.Unlock()

	if s.pub != nil {
		s.pub.PublishMessage(stored)
	}
	return &stored, nil
}

func (s *Store) UpdateTicket(_ context.Context, ticketID string, update domain.TicketUpdate) error {
	s.mu.Lock()
	if s.UpdateErr != nil {
		s.mu.Unlock()
		return s.UpdateErr
	}
	var target *domain.Ticket
	for _, t := range s.tickets {
		if t.ID == ticketID {
			target = t
			break
		}
	}
	if target == nil {
		s.mu.Unlock()
		return domain.ErrTicketNotFound
	}
	if update.Status != nil {
		target.Status = *update.Status
	}
	if update.Priority != nil {
		target.Priority = *update.Priority
	}
	if !update.UpdatedAt.IsZero() {
		target.UpdatedAt = update.UpdatedAt
	}
	updated := *target
	s.mu.Unlock()

	if s.pub != nil {
		s.pub.PublishTicket(updated)
	}
	return nil
}
