package realtime

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/spec-kit/support-chat/internal/domain"
)

// ErrTopicClosed is returned when sending on a closed topic.
var ErrTopicClosed = errors.New("topic closed")

// Hub is an in-process change feed and signal channel. It backs local
// development without Redis and the session tests.
type Hub struct {
	mu          sync.RWMutex
	nextID      uint64
	messageSubs map[string]map[uint64]func(domain.Message)
	ticketSubs  map[string]map[uint64]func(domain.Ticket)
	topics      map[string]map[uint64]*hubTopic
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		messageSubs: make(map[string]map[uint64]func(domain.Message)),
		ticketSubs:  make(map[string]map[uint64]func(domain.Ticket)),
		topics:      make(map[string]map[uint64]*hubTopic),
	}
}

// SubscribeMessages registers fn for message inserts on ticketID.
func (h *Hub) SubscribeMessages(_ context.Context, ticketID string, fn func(domain.Message)) (Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.allocID()
	if h.messageSubs[ticketID] == nil {
		h.messageSubs[ticketID] = make(map[uint64]func(domain.Message))
	}
	h.messageSubs[ticketID][id] = fn
	return &hubSubscription{release: func() {
		h.mu.Lock()
		delete(h.messageSubs[ticketID], id)
		h.mu.Unlock()
	}}, nil
}

// SubscribeTicket registers fn for updates of the ticket record.
func (h *Hub) SubscribeTicket(_ context.Context, ticketID string, fn func(domain.Ticket)) (Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.allocID()
	if h.ticketSubs[ticketID] == nil {
		h.ticketSubs[ticketID] = make(map[uint64]func(domain.Ticket))
	}
	h.ticketSubs[ticketID][id] = fn
	return &hubSubscription{release: func() {
		h.mu.Lock()
		delete(h.ticketSubs[ticketID], id)
		h.mu.Unlock()
	}}, nil
}

// PublishMessage delivers an inserted message to subscribers of its ticket.
func (h *Hub) PublishMessage(msg domain.Message) {
	h.mu.RLock()
	handlers := make([]func(domain.Message), 0, len(h.messageSubs[msg.TicketID]))
	for _, fn := range h.messageSubs[msg.TicketID] {
		handlers = append(handlers, fn)
	}
	h.mu.RUnlock()

	for _, fn := range handlers {
		fn(msg)
	}
}

// PublishTicket delivers an updated ticket record to its subscribers.
func (h *Hub) PublishTicket(ticket domain.Ticket) {
	h.mu.RLock()
	handlers := make([]func(domain.Ticket), 0, len(h.ticketSubs[ticket.ID]))
	for _, fn := range h.ticketSubs[ticket.ID] {
		handlers = append(handlers, fn)
	}
	h.mu.RUnlock()

	for _, fn := range handlers {
		fn(ticket)
	}
}

// Join attaches to the signal topic of ticketID. Broadcasts are not echoed
// back to the sending handle.
func (h *Hub) Join(_ context.Context, ticketID string, fn func(Signal)) (Topic, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.allocID()
	topic := &hubTopic{
		hub:      h,
		ticketID: ticketID,
		id:       id,
		origin:   uuid.NewString(),
		deliver:  fn,
	}
	if h.topics[ticketID] == nil {
		h.topics[ticketID] = make(map[uint64]*hubTopic)
	}
	h.topics[ticketID][id] = topic
	return topic, nil
}

// Subscribers reports the number of live handles for a ticket, feed and
// signal combined.
func (h *Hub) Subscribers(ticketID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.messageSubs[ticketID]) + len(h.ticketSubs[ticketID]) + len(h.topics[ticketID])
}

func (h *Hub) allocID() uint64 {
	h.nextID++
	return h.nextID
}

func (h *Hub) broadcast(from *hubTopic, sig Signal) {
	h.mu.RLock()
	targets := make([]*hubTopic, 0, len(h.topics[from.ticketID]))
	for id, topic := range h.topics[from.ticketID] {
		if id == from.id {
			continue
		}
		targets = append(targets, topic)
	}
	h.mu.RUnlock()

	for _, topic := range targets {
		topic.deliver(sig)
	}
}

type hubSubscription struct {
	once    sync.Once
	release func()
}

func (s *hubSubscription) Close() error {
	s.once.Do(s.release)
	return nil
}

type hubTopic struct {
	hub      *Hub
	ticketID string
	id       uint64
	origin   string
	deliver  func(Signal)

	mu     sync.Mutex
	closed bool
}

func (t *hubTopic) Send(_ context.Context, sig Signal) error {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return ErrTopicClosed
	}
	sig.Origin = t.origin
	t.hub.broadcast(t, sig)
	return nil
}

func (t *hubTopic) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	t.hub.mu.Lock()
	delete(t.hub.topics[t.ticketID], t.id)
	t.hub.mu.Unlock()
	return nil
}
