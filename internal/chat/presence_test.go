package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-chat/internal/domain"
	"github.com/spec-kit/support-chat/internal/realtime"
)

func TestTypingExpiresAfterTimeout(t *testing.T) {
	p := NewPresence(domain.SenderAdmin, 2*time.Second)

	require.True(t, p.Apply(realtime.Signal{Kind: realtime.SignalTyping, IsAdmin: false}, base))
	assert.True(t, p.OtherTyping(base.Add(1900*time.Millisecond)))
	assert.False(t, p.OtherTyping(base.Add(2*time.Second)))
}

func TestTypingRefreshRestartsWindow(t *testing.T) {
	p := NewPresence(domain.SenderAdmin, 2*time.Second)
	p.Apply(realtime.Signal{Kind: realtime.SignalTyping}, base)

	changed := p.Apply(realtime.Signal{Kind: realtime.SignalTyping}, base.Add(1500*time.Millisecond))
	assert.False(t, changed)
	assert.True(t, p.OtherTyping(base.Add(3*time.Second)))
	assert.Equal(t, base.Add(3500*time.Millisecond), p.TypingDeadline())
}

func TestMessageSentClearsTyping(t *testing.T) {
	p := NewPresence(domain.SenderAdmin, 2*time.Second)
	p.Apply(realtime.Signal{Kind: realtime.SignalTyping}, base)

	changed := p.Apply(realtime.Signal{Kind: realtime.SignalMessageSent}, base.Add(100*time.Millisecond))
	assert.True(t, changed)
	assert.False(t, p.OtherTyping(base.Add(100*time.Millisecond)))
}

func TestOwnSideSignalsIgnored(t *testing.T) {
	p := NewPresence(domain.SenderAdmin, 2*time.Second)
	assert.False(t, p.Apply(realtime.Signal{Kind: realtime.SignalTyping, IsAdmin: true}, base))
	assert.False(t, p.OtherTyping(base))

	assert.False(t, p.Apply(realtime.Signal{Kind: realtime.SignalRead, IsAdmin: true, Timestamp: base}, base))
	_, ok := p.ReadMarker(domain.SenderAdmin)
	assert.False(t, ok)
}

func TestReadMarkerOnlyMovesForward(t *testing.T) {
	p := NewPresence(domain.SenderAdmin, 0)
	require.True(t, p.Apply(realtime.Signal{Kind: realtime.SignalRead, Timestamp: base.Add(time.Minute)}, base))
	assert.False(t, p.Apply(realtime.Signal{Kind: realtime.SignalRead, Timestamp: base}, base))

	marker, ok := p.ReadMarker(domain.SenderCustomer)
	require.True(t, ok)
	assert.Equal(t, base.Add(time.Minute), marker)
}

func TestSeenFromReadMarker(t *testing.T) {
	msgs := []domain.Message{durable("m1", domain.SenderAdmin, "answer", 0)}

	after := NewPresence(domain.SenderAdmin, 0)
	after.Apply(realtime.Signal{Kind: realtime.SignalRead, Timestamp: base.Add(time.Second)}, base)
	assert.Equal(t, []bool{true}, after.SeenFlags(msgs))

	before := NewPresence(domain.SenderAdmin, 0)
	before.Apply(realtime.Signal{Kind: realtime.SignalRead, Timestamp: base.Add(-time.Second)}, base)
	assert.Equal(t, []bool{false}, before.SeenFlags(msgs))
}

func TestSeenFromLaterReply(t *testing.T) {
	p := NewPresence(domain.SenderAdmin, 0)
	msgs := []domain.Message{
		durable("m1", domain.SenderAdmin, "question?", 0),
		durable("m2", domain.SenderCustomer, "answer", time.Second),
		durable("m3", domain.SenderAdmin, "thanks", 2*time.Second),
		provisional("local", "pending", 3*time.Second),
	}
	assert.Equal(t, []bool{true, true, false, false}, p.SeenFlags(msgs))
}

func TestTypingThrottle(t *testing.T) {
	throttle := NewTypingThrottle(1500 * time.Millisecond)
	assert.True(t, throttle.Allow(base))
	assert.False(t, throttle.Allow(base.Add(200*time.Millisecond)))
	assert.False(t, throttle.Allow(base.Add(time.Second)))
	assert.True(t, throttle.Allow(base.Add(2*time.Second)))
}

func TestReadReceiptRequiresVisibleAndFocused(t *testing.T) {
	e := NewReadReceiptEmitter(time.Second)
	assert.False(t, e.Loaded(base))
	assert.False(t, e.SetVisible(true, base))
	assert.True(t, e.SetFocused(true, base))

	// Throttled.
	assert.False(t, e.MessageArrived(base.Add(300*time.Millisecond)))
	assert.True(t, e.MessageArrived(base.Add(2*time.Second)))

	e.SetVisible(false, base.Add(3*time.Second))
	assert.False(t, e.MessageArrived(base.Add(5*time.Second)))
	assert.True(t, e.SetVisible(true, base.Add(6*time.Second)))
}

func TestScrollStaysPutWhenReadingHistory(t *testing.T) {
	c := NewScrollController(100)
	c.Observe(Viewport{ScrollTop: 0, ScrollHeight: 2000, ClientHeight: 600})
	assert.False(t, c.Decide(false))
	assert.True(t, c.Decide(true))

	c.Observe(Viewport{ScrollTop: 1350, ScrollHeight: 2000, ClientHeight: 600})
	assert.True(t, c.AtBottom())
	assert.True(t, c.Decide(false))
}

func TestForcedScrollIsConsumed(t *testing.T) {
	c := NewScrollController(100)
	c.Observe(Viewport{ScrollTop: 0, ScrollHeight: 2000, ClientHeight: 600})
	c.RequestScroll()
	assert.True(t, c.Decide(false))
	assert.False(t, c.Decide(false))
}
