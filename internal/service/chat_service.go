package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-chat/internal/chat"
	"github.com/spec-kit/support-chat/internal/config"
	"github.com/spec-kit/support-chat/internal/domain"
	"github.com/spec-kit/support-chat/internal/events"
	"github.com/spec-kit/support-chat/internal/observability"
)

var (
	// ErrSessionNotFound is returned for unknown or foreign session ids.
	ErrSessionNotFound = errors.New("ticket view not found")
	// ErrStoreUnavailable is returned when no database is configured.
	ErrStoreUnavailable = errors.New("ticket store unavailable")
)

// Viewer identifies who a ticket view is opened for.
type Viewer struct {
	Role domain.SenderRole
	ID   string
}

// ViewState is the page state a client reports when it opens a view.
type ViewState struct {
	Visible bool
	Focused bool
}

// StoreFactory builds a store acting on behalf of viewer.
type StoreFactory func(viewer Viewer) chat.Store

// ChatDependencies bundles the collaborators of ChatService.
type ChatDependencies struct {
	Stores  StoreFactory
	Feed    chat.ChangeFeed
	Signals chat.SignalChannel
	Events  events.Dispatcher
	Metrics *observability.Metrics
	Logger  *zap.Logger
}

// ChatSession is a live ticket view plus the outbox its HTTP client
// polls.
type ChatSession struct {
	*chat.Session
	Outbox *Outbox
	Viewer Viewer

	lastUsed atomic.Int64
}

func (cs *ChatSession) touch(now time.Time) {
	cs.lastUsed.Store(now.UnixNano())
}

func (cs *ChatSession) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, cs.lastUsed.Load()))
}

// Updates long-polls the outbox for changes after version, giving up
// after wait.
func (cs *ChatSession) Updates(ctx context.Context, after uint64, wait time.Duration) OutboxSnapshot {
	if wait <= 0 {
		return cs.Outbox.Drain()
	}
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	return cs.Outbox.Wait(ctx, after, cs.Done())
}

// ChatService owns the ticket views opened through the API.
type ChatService struct {
	deps   ChatDependencies
	cfg    config.ChatConfig
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*ChatSession
	closed   bool
}

// NewChatService builds the service.
func NewChatService(cfg config.ChatConfig, deps ChatDependencies) *ChatService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{
		deps:     deps,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*ChatSession),
	}
}

func (s *ChatService) options(viewer Viewer, state ViewState) chat.Options {
	viewerID := viewer.ID
	return chat.Options{
		Viewer:              viewer.Role,
		ViewerID:            &viewerID,
		PollInterval:        s.cfg.PollInterval(),
		TypingTimeout:       s.cfg.TypingTimeout(),
		TypingThrottle:      s.cfg.TypingThrottle(),
		ReadReceiptThrottle: s.cfg.ReadReceiptThrottle(),
		ReadReceiptDelay:    s.cfg.ReadReceiptDelay(),
		ScrollThreshold:     float64(s.cfg.ScrollThresholdPX),
		InitiallyVisible:    state.Visible,
		InitiallyFocused:    state.Focused,
	}
}

// Open starts a ticket view for viewer.
func (s *ChatService) Open(ctx context.Context, number string, viewer Viewer, state ViewState) (*ChatSession, error) {
	if s.deps.Stores == nil {
		return nil, ErrStoreUnavailable
	}
	if s.isClosed() {
		return nil, chat.ErrSessionClosed
	}

	outbox := NewOutbox()
	session, err := chat.Open(ctx, number, chat.Deps{
		Store:    s.deps.Stores(viewer),
		Feed:     s.deps.Feed,
		Signals:  s.deps.Signals,
		Events:   s.deps.Events,
		Metrics:  s.deps.Metrics,
		Logger:   s.logger,
		Listener: outbox,
	}, s.options(viewer, state))
	if err != nil {
		return nil, err
	}

	cs := &ChatSession{Session: session, Outbox: outbox, Viewer: viewer}
	cs.touch(s.now())

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = session.Close()
		return nil, chat.ErrSessionClosed
	}
	s.sessions[session.ID()] = cs
	s.mu.Unlock()
	return cs, nil
}

// Get returns the viewer's session with id and marks it used.
func (s *ChatService) Get(id string, viewer Viewer) (*ChatSession, error) {
	s.mu.Lock()
	cs, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok || cs.Viewer != viewer {
		return nil, ErrSessionNotFound
	}
	cs.touch(s.now())
	return cs, nil
}

// Close tears down the viewer's session with id.
func (s *ChatService) Close(id string, viewer Viewer) error {
	s.mu.Lock()
	cs, ok := s.sessions[id]
	if !ok || cs.Viewer != viewer {
		s.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(s.sessions, id)
	s.mu.Unlock()
	return cs.Close()
}

// ReapIdle closes sessions untouched for longer than the configured idle
// window and reports how many went.
func (s *ChatService) ReapIdle(now time.Time) int {
	idle := s.cfg.SessionIdle()
	if idle <= 0 {
		return 0
	}

	var stale []*ChatSession
	s.mu.Lock()
	for id, cs := range s.sessions {
		if cs.idleSince(now) > idle {
			stale = append(stale, cs)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, cs := range stale {
		if err := cs.Close(); err != nil {
			s.logger.Warn("closing idle ticket view", zap.String("session_id", cs.ID()), zap.Error(err))
		}
	}
	return len(stale)
}

// Count reports open sessions.
func (s *ChatService) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Shutdown closes every session and refuses new ones.
func (s *ChatService) Shutdown() error {
	s.mu.Lock()
	s.closed = true
	all := make([]*ChatSession, 0, len(s.sessions))
	for id, cs := range s.sessions {
		all = append(all, cs)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	var errs []error
	for _, cs := range all {
		errs = append(errs, cs.Close())
	}
	return errors.Join(errs...)
}

func (s *ChatService) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
