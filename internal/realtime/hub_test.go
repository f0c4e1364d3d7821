package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-chat/internal/domain"
)

func TestHubDeliversMessagesPerTicket(t *testing.T) {
	hub := NewHub()
	var got []domain.Message
	sub, err := hub.SubscribeMessages(context.Background(), "t-1", func(m domain.Message) {
		got = append(got, m)
	})
	require.NoError(t, err)

	hub.PublishMessage(domain.Message{ID: domain.DurableID("m1"), TicketID: "t-1"})
	hub.PublishMessage(domain.Message{ID: domain.DurableID("m2"), TicketID: "t-2"})
	require.Len(t, got, 1)
	assert.Equal(t, "m1", got[0].ID.Value())

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	hub.PublishMessage(domain.Message{ID: domain.DurableID("m3"), TicketID: "t-1"})
	assert.Len(t, got, 1)
	assert.Zero(t, hub.Subscribers("t-1"))
}

func TestHubTicketUpdates(t *testing.T) {
	hub := NewHub()
	var got []domain.Ticket
	sub, err := hub.SubscribeTicket(context.Background(), "t-1", func(tk domain.Ticket) {
		got = append(got, tk)
	})
	require.NoError(t, err)
	defer sub.Close()

	hub.PublishTicket(domain.Ticket{ID: "t-1", Status: domain.TicketStatusResolved})
	hub.PublishTicket(domain.Ticket{ID: "t-9"})
	require.Len(t, got, 1)
	assert.Equal(t, domain.TicketStatusResolved, got[0].Status)
}

func TestHubSignalsSkipSender(t *testing.T) {
	hub := NewHub()
	var adminGot, customerGot []Signal
	admin, err := hub.Join(context.Background(), "t-1", func(s Signal) { adminGot = append(adminGot, s) })
	require.NoError(t, err)
	customer, err := hub.Join(context.Background(), "t-1", func(s Signal) { customerGot = append(customerGot, s) })
	require.NoError(t, err)

	require.NoError(t, admin.Send(context.Background(), Signal{Kind: SignalTyping, IsAdmin: true}))
	assert.Empty(t, adminGot)
	require.Len(t, customerGot, 1)
	assert.True(t, customerGot[0].IsAdmin)
	assert.NotEmpty(t, customerGot[0].Origin)

	require.NoError(t, customer.Close())
	require.NoError(t, customer.Close())
	assert.ErrorIs(t, customer.Send(context.Background(), Signal{Kind: SignalTyping}), ErrTopicClosed)
	require.NoError(t, admin.Send(context.Background(), Signal{Kind: SignalMessageSent, IsAdmin: true}))
	assert.Len(t, customerGot, 1)
	assert.Equal(t, 1, hub.Subscribers("t-1"))
}

func TestSignalWireFormat(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	payload, err := EncodeSignal(Signal{Kind: SignalRead, IsAdmin: false, Timestamp: ts})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"read","is_admin":false,"timestamp":"2024-05-01T10:00:00Z"}`, string(payload))

	sig, err := DecodeSignal(payload)
	require.NoError(t, err)
	assert.Equal(t, SignalRead, sig.Kind)
	assert.True(t, sig.Timestamp.Equal(ts))
}

func TestDecodeSignalRejectsBadPayloads(t *testing.T) {
	cases := map[string]string{
		"unknown kind":      `{"event":"wave","is_admin":true}`,
		"read without time": `{"event":"read","is_admin":true}`,
		"not json":          `typing`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeSignal([]byte(payload))
			assert.Error(t, err)
		})
	}
	_, err := EncodeSignal(Signal{Kind: "wave"})
	assert.Error(t, err)
}

func TestRedisChannelName(t *testing.T) {
	assert.Equal(t, "ticket:abc:signals", NewRedisSignals(nil, "", nil).ChannelName("abc"))
	assert.Equal(t, "chat:abc:signals", NewRedisSignals(nil, "chat", nil).ChannelName("abc"))

	_, err := NewRedisSignals(nil, "", nil).Join(context.Background(), "abc", func(Signal) {})
	assert.Error(t, err)
}
