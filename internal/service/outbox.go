package service

import (
	"context"
	"sync"

	"github.com/spec-kit/support-chat/internal/chat"
)

const maxPendingNotices = 20

// Outbox buffers what a session emitted for a client that polls over HTTP.
// Only the latest view is kept; scroll requests and notices accumulate
// until the next Drain.
type Outbox struct {
	mu      sync.Mutex
	version uint64
	latest  chat.ViewUpdate
	hasView bool
	scroll  bool
	notices []chat.Notice
	changed chan struct{}
}

// OutboxSnapshot is what a client receives on each poll.
type OutboxSnapshot struct {
	Version        uint64
	View           *chat.View
	ScrollToBottom bool
	Notices        []chat.Notice
}

// NewOutbox creates an empty outbox.
func NewOutbox() *Outbox {
	return &Outbox{changed: make(chan struct{})}
}

// OnUpdate implements chat.Listener.
func (o *Outbox) OnUpdate(u chat.ViewUpdate) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.latest = u
	o.hasView = true
	if u.ScrollToBottom {
		o.scroll = true
	}
	o.bumpLocked()
}

// OnNotice implements chat.Listener.
func (o *Outbox) OnNotice(n chat.Notice) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.notices = append(o.notices, n)
	if len(o.notices) > maxPendingNotices {
		o.notices = o.notices[len(o.notices)-maxPendingNotices:]
	}
	o.bumpLocked()
}

func (o *Outbox) bumpLocked() {
	o.version++
	close(o.changed)
	o.changed = make(chan struct{})
}

// Version is the number of emissions so far.
func (o *Outbox) Version() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.version
}

// Wait blocks until the outbox moves past version after, ctx is done or
// stop closes, then drains it. An interrupted wait still returns the
// current snapshot.
func (o *Outbox) Wait(ctx context.Context, after uint64, stop <-chan struct{}) OutboxSnapshot {
	o.mu.Lock()
	if o.version > after {
		defer o.mu.Unlock()
		return o.drainLocked()
	}
	changed := o.changed
	o.mu.Unlock()

	select {
	case <-changed:
	case <-ctx.Done():
	case <-stop:
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	return o.drainLocked()
}

// Drain returns the current snapshot without waiting.
func (o *Outbox) Drain() OutboxSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.drainLocked()
}

func (o *Outbox) drainLocked() OutboxSnapshot {
	snap := OutboxSnapshot{
		Version:        o.version,
		ScrollToBottom: o.scroll,
		Notices:        o.notices,
	}
	if o.hasView {
		view := o.latest.View
		snap.View = &view
	}
	o.scroll = false
	o.notices = nil
	return snap
}
