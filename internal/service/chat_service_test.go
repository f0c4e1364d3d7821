package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-chat/internal/chat"
	"github.com/spec-kit/support-chat/internal/chat/chattest"
	"github.com/spec-kit/support-chat/internal/config"
	"github.com/spec-kit/support-chat/internal/domain"
	"github.com/spec-kit/support-chat/internal/realtime"
)

var (
	admin    = Viewer{Role: domain.SenderAdmin, ID: "admin-1"}
	intruder = Viewer{Role: domain.SenderAdmin, ID: "admin-2"}
)

func testChatConfig() config.ChatConfig {
	return config.ChatConfig{
		PollIntervalMS:        3600000,
		TypingTimeoutMS:       2000,
		TypingThrottleMS:      1500,
		ReadReceiptThrottleMS: 1000,
		ReadReceiptDelayMS:    500,
		ScrollThresholdPX:     100,
		SessionIdleMinutes:    30,
	}
}

func newChatFixture(t *testing.T) (*ChatService, *chattest.Store, *realtime.Hub) {
	t.Helper()
	hub := realtime.NewHub()
	store := chattest.NewStore(hub)
	store.AddTicket(domain.Ticket{
		ID:        "t-1",
		Number:    "TCK-1001",
		Subject:   "Refund",
		Status:    domain.TicketStatusOpen,
		Priority:  domain.TicketPriorityMedium,
		CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	})
	svc := NewChatService(testChatConfig(), ChatDependencies{
		Stores:  func(Viewer) chat.Store { return store },
		Feed:    hub,
		Signals: hub,
	})
	t.Cleanup(func() { _ = svc.Shutdown() })
	return svc, store, hub
}

func TestChatServiceOpenAndGet(t *testing.T) {
	svc, _, _ := newChatFixture(t)

	cs, err := svc.Open(context.Background(), "TCK-1001", admin, ViewState{})
	require.NoError(t, err)
	assert.Equal(t, 1, svc.Count())

	got, err := svc.Get(cs.ID(), admin)
	require.NoError(t, err)
	assert.Same(t, cs, got)

	_, err = svc.Get(cs.ID(), intruder)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = svc.Get("missing", admin)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestChatServiceOpenUnknownTicket(t *testing.T) {
	svc, _, _ := newChatFixture(t)

	_, err := svc.Open(context.Background(), "TCK-404", admin, ViewState{})
	assert.ErrorIs(t, err, domain.ErrTicketNotFound)
	assert.Zero(t, svc.Count())
}

func TestChatServiceWithoutStore(t *testing.T) {
	svc := NewChatService(testChatConfig(), ChatDependencies{})
	_, err := svc.Open(context.Background(), "TCK-1001", admin, ViewState{})
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestChatServiceUpdatesReachOutbox(t *testing.T) {
	svc, store, _ := newChatFixture(t)
	cs, err := svc.Open(context.Background(), "TCK-1001", admin, ViewState{})
	require.NoError(t, err)

	first := cs.Updates(context.Background(), 0, time.Second)
	require.NotNil(t, first.View)
	assert.True(t, first.ScrollToBottom)
	assert.Empty(t, first.View.Messages)

	_, err = cs.Send(context.Background(), "We are on it")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		snap := cs.Updates(context.Background(), first.Version, 0)
		return snap.View != nil && len(snap.View.Messages) == 1 && !snap.View.Messages[0].Pending
	}, 2*time.Second, 5*time.Millisecond)

	stored, ok := store.Ticket("TCK-1001")
	require.True(t, ok)
	assert.Equal(t, domain.TicketStatusWaitingCustomer, stored.Status)
}

func TestChatServiceLongPollTimesOut(t *testing.T) {
	svc, _, _ := newChatFixture(t)
	cs, err := svc.Open(context.Background(), "TCK-1001", admin, ViewState{})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return cs.Outbox.Version() > 0 }, time.Second, 5*time.Millisecond)
	current := cs.Outbox.Version()

	start := time.Now()
	snap := cs.Updates(context.Background(), current, 30*time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
	assert.Equal(t, current, snap.Version)
}

func TestChatServiceClose(t *testing.T) {
	svc, _, hub := newChatFixture(t)
	cs, err := svc.Open(context.Background(), "TCK-1001", admin, ViewState{})
	require.NoError(t, err)
	assert.Equal(t, 3, hub.Subscribers("t-1"))

	assert.ErrorIs(t, svc.Close(cs.ID(), intruder), ErrSessionNotFound)
	require.NoError(t, svc.Close(cs.ID(), admin))
	assert.Zero(t, svc.Count())
	assert.Zero(t, hub.Subscribers("t-1"))

	_, err = cs.Send(context.Background(), "late")
	assert.ErrorIs(t, err, chat.ErrSessionClosed)
}

func TestChatServiceReapIdle(t *testing.T) {
	svc, _, hub := newChatFixture(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	stale, err := svc.Open(context.Background(), "TCK-1001", admin, ViewState{})
	require.NoError(t, err)
	now = now.Add(20 * time.Minute)
	fresh, err := svc.Open(context.Background(), "TCK-1001", admin, ViewState{})
	require.NoError(t, err)

	assert.Equal(t, 1, svc.ReapIdle(now.Add(15*time.Minute)))
	assert.Equal(t, 1, svc.Count())

	_, err = svc.Get(stale.ID(), admin)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = svc.Get(fresh.ID(), admin)
	assert.NoError(t, err)
	assert.Equal(t, 3, hub.Subscribers("t-1"))
}

func TestChatServiceShutdownRefusesNewSessions(t *testing.T) {
	svc, _, hub := newChatFixture(t)
	_, err := svc.Open(context.Background(), "TCK-1001", admin, ViewState{})
	require.NoError(t, err)

	require.NoError(t, svc.Shutdown())
	assert.Zero(t, svc.Count())
	assert.Zero(t, hub.Subscribers("t-1"))

	_, err = svc.Open(context.Background(), "TCK-1001", admin, ViewState{})
	assert.ErrorIs(t, err, chat.ErrSessionClosed)
}

func TestChatServiceOpenForwardsViewState(t *testing.T) {
	svc, _, hub := newChatFixture(t)

	reads := make(chan realtime.Signal, 4)
	customer, err := hub.Join(context.Background(), "t-1", func(sig realtime.Signal) {
		if sig.Kind == realtime.SignalRead {
			reads <- sig
		}
	})
	require.NoError(t, err)
	defer customer.Close()

	_, err = svc.Open(context.Background(), "TCK-1001", admin, ViewState{Visible: true, Focused: true})
	require.NoError(t, err)

	select {
	case sig := <-reads:
		assert.True(t, sig.IsAdmin)
	case <-time.After(2 * time.Second):
		t.Fatal("expected read receipt for a view opened in the foreground")
	}
}
