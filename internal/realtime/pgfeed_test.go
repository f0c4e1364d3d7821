package realtime

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-chat/internal/domain"
)

func TestMessageRowFromNotification(t *testing.T) {
	payload := `{"id":"6f1c","ticket_id":"t-1","sender_role":"customer","sender_id":null,
		"body":"hello","created_at":"2024-05-01T10:00:00.123456+00:00"}`
	var row MessageRow
	require.NoError(t, json.Unmarshal([]byte(payload), &row))

	msg := row.ToDomain()
	assert.True(t, msg.ID.IsDurable())
	assert.Equal(t, "6f1c", msg.ID.Value())
	assert.Equal(t, domain.SenderCustomer, msg.Sender)
	assert.Nil(t, msg.SenderID)
	assert.Equal(t, 2024, msg.CreatedAt.Year())
}

func TestTicketRowFromNotification(t *testing.T) {
	payload := `{"id":"t-1","ticket_number":"TCK-1","subject":"Refund","description":null,
		"status":"waiting_customer","priority":"high","category":"billing","user_id":null,
		"guest_name":"Dana","guest_email":"dana@example.com","guest_phone":null,
		"created_at":"2024-05-01T10:00:00+00:00","updated_at":"2024-05-01T11:00:00+00:00"}`
	var row TicketRow
	require.NoError(t, json.Unmarshal([]byte(payload), &row))

	ticket := row.ToDomain()
	assert.Equal(t, domain.TicketStatusWaitingCustomer, ticket.Status)
	assert.Equal(t, domain.TicketPriorityHigh, ticket.Priority)
	require.NotNil(t, ticket.Guest)
	assert.Equal(t, "Dana", ticket.Guest.Name)
	assert.NoError(t, ticket.ValidateRequester())
}

func TestPGFeedWithoutPool(t *testing.T) {
	feed := NewPGFeed(nil, zap.NewNop())
	_, err := feed.SubscribeMessages(context.Background(), "t-1", func(domain.Message) {})
	assert.Error(t, err)
	assert.Zero(t, feed.Listeners())
}
