package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-chat/internal/chat"
	"github.com/spec-kit/support-chat/internal/domain"
)

func TestOutboxKeepsLatestViewAndAccumulatesScroll(t *testing.T) {
	o := NewOutbox()
	o.OnUpdate(chat.ViewUpdate{View: chat.View{Ticket: domain.Ticket{Number: "A"}}, ScrollToBottom: true})
	o.OnUpdate(chat.ViewUpdate{View: chat.View{Ticket: domain.Ticket{Number: "B"}}})

	snap := o.Drain()
	assert.Equal(t, uint64(2), snap.Version)
	require.NotNil(t, snap.View)
	assert.Equal(t, "B", snap.View.Ticket.Number)
	assert.True(t, snap.ScrollToBottom)

	again := o.Drain()
	assert.False(t, again.ScrollToBottom)
	assert.NotNil(t, again.View)
}

func TestOutboxNoticesDrainOnce(t *testing.T) {
	o := NewOutbox()
	for i := 0; i < maxPendingNotices+5; i++ {
		o.OnNotice(chat.Notice{Kind: chat.NoticeSendFailed, Err: errors.New("boom")})
	}
	snap := o.Drain()
	assert.Len(t, snap.Notices, maxPendingNotices)
	assert.Nil(t, snap.View)
	assert.Empty(t, o.Drain().Notices)
}

func TestOutboxWaitWakesOnUpdate(t *testing.T) {
	o := NewOutbox()
	got := make(chan OutboxSnapshot, 1)
	go func() { got <- o.Wait(context.Background(), 0, nil) }()

	time.Sleep(10 * time.Millisecond)
	o.OnUpdate(chat.ViewUpdate{View: chat.View{CanReply: true}})

	select {
	case snap := <-got:
		assert.Equal(t, uint64(1), snap.Version)
		require.NotNil(t, snap.View)
		assert.True(t, snap.View.CanReply)
	case <-time.After(time.Second):
		t.Fatal("wait did not wake")
	}
}

func TestOutboxWaitReturnsImmediatelyWhenBehind(t *testing.T) {
	o := NewOutbox()
	o.OnUpdate(chat.ViewUpdate{})
	snap := o.Wait(context.Background(), 0, nil)
	assert.Equal(t, uint64(1), snap.Version)
}

func TestOutboxWaitStops(t *testing.T) {
	o := NewOutbox()
	stop := make(chan struct{})
	close(stop)
	snap := o.Wait(context.Background(), 0, stop)
	assert.Zero(t, snap.Version)
}
