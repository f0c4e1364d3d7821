package chat

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/spec-kit/support-chat/internal/domain"
	"github.com/spec-kit/support-chat/internal/realtime"
)

// Presence tracks the transient signals of the other party: whether they
// are typing and how far they have read. None of it outlives the session.
type Presence struct {
	viewer        domain.SenderRole
	typingTimeout time.Duration
	typingUntil   time.Time
	readMarkers   map[domain.SenderRole]time.Time
}

// NewPresence creates presence state for viewer. A zero timeout falls back
// to two seconds.
func NewPresence(viewer domain.SenderRole, typingTimeout time.Duration) *Presence {
	if typingTimeout <= 0 {
		typingTimeout = 2 * time.Second
	}
	return &Presence{
		viewer:        viewer,
		typingTimeout: typingTimeout,
		readMarkers:   make(map[domain.SenderRole]time.Time),
	}
}

// Apply interprets one incoming signal and reports whether the visible
// state changed. Signals from the viewer's own side are ignored.
func (p *Presence) Apply(sig realtime.Signal, now time.Time) bool {
	sender := domain.RoleFromAdminFlag(sig.IsAdmin)
	if sender == p.viewer {
		return false
	}
	switch sig.Kind {
	case realtime.SignalTyping:
		wasTyping := p.OtherTyping(now)
		p.typingUntil = now.Add(p.typingTimeout)
		return !wasTyping
	case realtime.SignalMessageSent:
		wasTyping := p.OtherTyping(now)
		p.typingUntil = time.Time{}
		return wasTyping
	case realtime.SignalRead:
		prev, ok := p.readMarkers[sender]
		if ok && !sig.Timestamp.After(prev) {
			return false
		}
		p.readMarkers[sender] = sig.Timestamp
		return true
	default:
		return false
	}
}

// OtherTyping reports whether the other party's typing window is open.
func (p *Presence) OtherTyping(now time.Time) bool {
	return !p.typingUntil.IsZero() && now.Before(p.typingUntil)
}

// TypingDeadline is when the current typing window closes.
func (p *Presence) TypingDeadline() time.Time {
	return p.typingUntil
}

// ReadMarker returns the read marker of role, if one was received.
func (p *Presence) ReadMarker(role domain.SenderRole) (time.Time, bool) {
	ts, ok := p.readMarkers[role]
	return ts, ok
}

// SeenFlags computes, for each message, whether the opposite party has
// seen it: they replied after it, or their read marker is at or past its
// timestamp. Provisional messages are never seen.
func (p *Presence) SeenFlags(messages []domain.Message) []bool {
	flags := make([]bool, len(messages))
	laterFrom := map[domain.SenderRole]bool{}
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if msg.ID.IsDurable() {
			reader := msg.Sender.Other()
			if laterFrom[reader] {
				flags[i] = true
			} else if marker, ok := p.readMarkers[reader]; ok && !marker.Before(msg.CreatedAt) {
				flags[i] = true
			}
			laterFrom[msg.Sender] = true
		}
	}
	return flags
}

// TypingThrottle limits how often the viewer's own typing is broadcast.
type TypingThrottle struct {
	limiter *rate.Limiter
}

// NewTypingThrottle allows one emission per interval.
func NewTypingThrottle(interval time.Duration) *TypingThrottle {
	if interval <= 0 {
		interval = 1500 * time.Millisecond
	}
	return &TypingThrottle{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Allow reports whether a typing signal may be sent at now.
func (t *TypingThrottle) Allow(now time.Time) bool {
	return t.limiter.AllowN(now, 1)
}
