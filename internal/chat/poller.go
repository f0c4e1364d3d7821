package chat

import (
	"time"

	"go.uber.org/zap"
)

// runPoller re-fetches the ticket and its messages on a fixed interval so
// that missed change-feed events are eventually repaired.
func (s *Session) runPoller() {
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.pollOnce()
		}
	}
}

func (s *Session) pollOnce() {
	var base uint64
	if err := s.call(func() error {
		base = s.transcript.Revision()
		return nil
	}); err != nil {
		return
	}

	ticket, err := s.deps.Store.GetTicket(s.ctx, s.number)
	if err != nil {
		s.logger.Debug("poll ticket failed", zap.Error(err))
		return
	}
	messages, err := s.deps.Store.ListMessages(s.ctx, s.ticketID)
	if err != nil {
		s.logger.Debug("poll messages failed", zap.Error(err))
		return
	}

	s.post(func() {
		s.applyPollerSnapshot(messages, base)
		s.mergeTicket(*ticket)
	})
}
