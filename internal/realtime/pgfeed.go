package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spec-kit/support-chat/internal/domain"
)

// Channel names fired by the triggers in migrations/002_change_feed.sql.
const (
	MessageInsertChannel = "ticket_messages_inserted"
	TicketUpdateChannel  = "tickets_updated"
)

const listenRetryDelay = 2 * time.Second

// PGFeed delivers row changes through Postgres LISTEN/NOTIFY. One
// dedicated connection per channel is taken out of the pool and shared by
// every subscriber; it is released when the last subscriber leaves.
// Delivery is best effort: notifications sent while a listener is
// reconnecting are lost.
type PGFeed struct {
	pool   *pgxpool.Pool
	logger *zap.Logger

	mu        sync.Mutex
	nextID    uint64
	listeners map[string]*pgListener
}

type pgListener struct {
	cancel   context.CancelFunc
	done     chan struct{}
	handlers map[uint64]func(string)
}

// NewPGFeed builds a feed on top of the pool.
func NewPGFeed(pool *pgxpool.Pool, logger *zap.Logger) *PGFeed {
	return &PGFeed{pool: pool, logger: logger, listeners: make(map[string]*pgListener)}
}

// SubscribeMessages listens for message inserts on ticketID.
func (f *PGFeed) SubscribeMessages(ctx context.Context, ticketID string, fn func(domain.Message)) (Subscription, error) {
	return f.subscribe(ctx, MessageInsertChannel, func(payload string) {
		var row MessageRow
		if err := json.Unmarshal([]byte(payload), &row); err != nil {
			f.logger.Debug("discarding malformed message notification", zap.Error(err))
			return
		}
		if row.TicketID != ticketID {
			return
		}
		fn(row.ToDomain())
	})
}

// SubscribeTicket listens for updates of the ticket record.
func (f *PGFeed) SubscribeTicket(ctx context.Context, ticketID string, fn func(domain.Ticket)) (Subscription, error) {
	return f.subscribe(ctx, TicketUpdateChannel, func(payload string) {
		var row TicketRow
		if err := json.Unmarshal([]byte(payload), &row); err != nil {
			f.logger.Debug("discarding malformed ticket notification", zap.Error(err))
			return
		}
		if row.ID != ticketID {
			return
		}
		fn(row.ToDomain())
	})
}

// Listeners reports the number of channels with a live connection.
func (f *PGFeed) Listeners() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

func (f *PGFeed) subscribe(ctx context.Context, channel string, handle func(string)) (Subscription, error) {
	if f.pool == nil {
		return nil, errors.New("postgres pool not configured")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.listeners[channel]
	if !ok {
		conn, err := f.connect(ctx, channel)
		if err != nil {
			return nil, err
		}
		listenCtx, cancel := context.WithCancel(context.Background())
		l = &pgListener{cancel: cancel, done: make(chan struct{}), handlers: make(map[uint64]func(string))}
		f.listeners[channel] = l
		go f.run(listenCtx, channel, conn, l)
	}
	f.nextID++
	id := f.nextID
	l.handlers[id] = handle

	return &pgSubscription{release: func() {
		f.mu.Lock()
		delete(l.handlers, id)
		last := len(l.handlers) == 0 && f.listeners[channel] == l
		if last {
			delete(f.listeners, channel)
		}
		f.mu.Unlock()
		if last {
			l.cancel()
			<-l.done
		}
	}}, nil
}

func (f *PGFeed) connect(ctx context.Context, channel string) (*pgx.Conn, error) {
	pooled, err := f.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	conn := pooled.Hijack()
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		_ = conn.Close(context.Background())
		return nil, err
	}
	return conn, nil
}

func (f *PGFeed) run(ctx context.Context, channel string, conn *pgx.Conn, l *pgListener) {
	defer close(l.done)
	defer func() {
		if conn != nil {
			closeCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			_ = conn.Close(closeCtx)
			cancel()
		}
	}()

	for {
		if conn == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(listenRetryDelay):
			}
			next, err := f.connect(ctx, channel)
			if err != nil {
				f.logger.Debug("change feed reconnect failed", zap.String("channel", channel), zap.Error(err))
				continue
			}
			conn = next
		}

		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			f.logger.Warn("change feed listener lost", zap.String("channel", channel), zap.Error(err))
			_ = conn.Close(context.Background())
			conn = nil
			continue
		}
		f.dispatch(l, notification.Payload)
	}
}

func (f *PGFeed) dispatch(l *pgListener, payload string) {
	f.mu.Lock()
	handlers := make([]func(string), 0, len(l.handlers))
	for _, h := range l.handlers {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()

	for _, h := range handlers {
		h(payload)
	}
}

type pgSubscription struct {
	once    sync.Once
	release func()
}

func (s *pgSubscription) Close() error {
	s.once.Do(s.release)
	return nil
}

// MessageRow mirrors row_to_json output of ticket_messages.
type MessageRow struct {
	ID         string    `json:"id"`
	TicketID   string    `json:"ticket_id"`
	Body       string    `json:"body"`
	SenderRole string    `json:"sender_role"`
	SenderID   *string   `json:"sender_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// ToDomain converts the row into a durable message.
func (r MessageRow) ToDomain() domain.Message {
	return domain.Message{
		ID:        domain.DurableID(r.ID),
		TicketID:  r.TicketID,
		Body:      r.Body,
		Sender:    domain.SenderRole(r.SenderRole),
		SenderID:  r.SenderID,
		CreatedAt: r.CreatedAt,
	}
}

// TicketRow mirrors row_to_json output of tickets.
type TicketRow struct {
	ID           string    `json:"id"`
	TicketNumber string    `json:"ticket_number"`
	Subject      string    `json:"subject"`
	Description  *string   `json:"description"`
	Status       string    `json:"status"`
	Priority     string    `json:"priority"`
	Category     string    `json:"category"`
	UserID       *string   `json:"user_id"`
	GuestName    *string   `json:"guest_name"`
	GuestEmail   *string   `json:"guest_email"`
	GuestPhone   *string   `json:"guest_phone"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ToDomain converts the row into a ticket.
func (r TicketRow) ToDomain() domain.Ticket {
	ticket := domain.Ticket{
		ID:              r.ID,
		Number:          r.TicketNumber,
		Subject:         r.Subject,
		Description:     r.Description,
		Status:          domain.TicketStatus(r.Status),
		Priority:        domain.TicketPriority(r.Priority),
		Category:        r.Category,
		RequesterUserID: r.UserID,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if r.GuestName != nil || r.GuestEmail != nil || r.GuestPhone != nil {
		ticket.Guest = &domain.GuestIdentity{
			Name:  deref(r.GuestName),
			Email: deref(r.GuestEmail),
			Phone: deref(r.GuestPhone),
		}
	}
	return ticket
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
