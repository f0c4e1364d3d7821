package chat

import (
	"time"

	"golang.org/x/time/rate"
)

// ReadReceiptEmitter gates read signals on the viewport being both
// visible and focused, so a backgrounded tab never marks messages read.
type ReadReceiptEmitter struct {
	visible bool
	focused bool
	limiter *rate.Limiter
}

// NewReadReceiptEmitter allows at most one receipt per interval.
func NewReadReceiptEmitter(interval time.Duration) *ReadReceiptEmitter {
	if interval <= 0 {
		interval = time.Second
	}
	return &ReadReceiptEmitter{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Active reports whether the viewport is visible and focused.
func (e *ReadReceiptEmitter) Active() bool {
	return e.visible && e.focused
}

// Restore seeds the page state reported at load without emitting.
func (e *ReadReceiptEmitter) Restore(visible, focused bool) {
	e.visible = visible
	e.focused = focused
}

// SetVisible records document visibility. It returns true when a receipt
// should be emitted: the page just became visible while focused.
func (e *ReadReceiptEmitter) SetVisible(visible bool, now time.Time) bool {
	became := visible && !e.visible
	e.visible = visible
	return became && e.tryEmit(now)
}

// SetFocused records window focus; gaining focus while visible emits.
func (e *ReadReceiptEmitter) SetFocused(focused bool, now time.Time) bool {
	gained := focused && !e.focused
	e.focused = focused
	return gained && e.tryEmit(now)
}

// Loaded is called shortly after the initial render.
func (e *ReadReceiptEmitter) Loaded(now time.Time) bool {
	return e.tryEmit(now)
}

// MessageArrived is called when the other party's message lands while the
// view may be on screen.
func (e *ReadReceiptEmitter) MessageArrived(now time.Time) bool {
	return e.tryEmit(now)
}

func (e *ReadReceiptEmitter) tryEmit(now time.Time) bool {
	if !e.Active() {
		return false
	}
	return e.limiter.AllowN(now, 1)
}
