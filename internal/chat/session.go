package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-chat/internal/domain"
	"github.com/spec-kit/support-chat/internal/events"
	"github.com/spec-kit/support-chat/internal/observability"
	"github.com/spec-kit/support-chat/internal/realtime"
)

const (
	inboxSize     = 64
	signalTimeout = 3 * time.Second
)

// Options tune a session. Zero values fall back to defaults.
type Options struct {
	Viewer   domain.SenderRole
	ViewerID *string

	PollInterval        time.Duration
	TypingTimeout       time.Duration
	TypingThrottle      time.Duration
	ReadReceiptThrottle time.Duration
	ReadReceiptDelay    time.Duration
	ScrollThreshold     float64

	// InitiallyVisible and InitiallyFocused carry the page state the client
	// reported when it opened the view.
	InitiallyVisible bool
	InitiallyFocused bool

	Now        func() time.Time
	NewLocalID func() string
}

func (o Options) withDefaults() Options {
	if o.Viewer == "" {
		o.Viewer = domain.SenderAdmin
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 5 * time.Second
	}
	if o.TypingTimeout <= 0 {
		o.TypingTimeout = 2 * time.Second
	}
	if o.TypingThrottle <= 0 {
		o.TypingThrottle = 1500 * time.Millisecond
	}
	if o.ReadReceiptThrottle <= 0 {
		o.ReadReceiptThrottle = time.Second
	}
	if o.ReadReceiptDelay <= 0 {
		o.ReadReceiptDelay = 500 * time.Millisecond
	}
	if o.ScrollThreshold <= 0 {
		o.ScrollThreshold = 100
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewLocalID == nil {
		o.NewLocalID = uuid.NewString
	}
	return o
}

// Deps are the collaborators of a session. Feed, Signals, Events and
// Metrics are optional.
type Deps struct {
	Store    Store
	Feed     ChangeFeed
	Signals  SignalChannel
	Events   events.Dispatcher
	Metrics  *observability.Metrics
	Logger   *zap.Logger
	Listener Listener
}

// Session is one open ticket view. A single event-loop goroutine owns the
// transcript, ticket and presence state; change feed callbacks, signals,
// poll results, timers and user commands are all posted into it.
type Session struct {
	id       string
	number   string
	ticketID string
	deps     Deps
	opts     Options
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	inbox  chan func()
	done   chan struct{}

	mu        sync.Mutex
	closed    bool
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error

	msgSub    realtime.Subscription
	ticketSub realtime.Subscription
	topic     realtime.Topic

	// Owned by the event loop.
	ticket      domain.Ticket
	transcript  Transcript
	presence    *Presence
	scroll      *ScrollController
	receipts    *ReadReceiptEmitter
	typing      *TypingThrottle
	typingTimer *time.Timer
	loadTimer   *time.Timer
	mutations   int
}

// Open loads the ticket and its messages, subscribes to the change feed
// and signal topic, and starts polling. A missing ticket yields
// domain.ErrTicketNotFound; other load failures wrap ErrFetchFailed.
// Subscription failures are logged and left to the poller.
func Open(ctx context.Context, number string, deps Deps, opts Options) (*Session, error) {
	opts = opts.withDefaults()
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Listener == nil {
		deps.Listener = nopListener{}
	}

	ticket, err := deps.Store.GetTicket(ctx, number)
	if err != nil {
		return nil, fetchFailure(deps, opts, err)
	}
	messages, err := deps.Store.ListMessages(ctx, ticket.ID)
	if err != nil {
		return nil, fetchFailure(deps, opts, err)
	}

	sessionCtx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:         uuid.NewString(),
		number:     ticket.Number,
		ticketID:   ticket.ID,
		deps:       deps,
		opts:       opts,
		ctx:        sessionCtx,
		cancel:     cancel,
		inbox:      make(chan func(), inboxSize),
		done:       make(chan struct{}),
		ticket:     *ticket,
		transcript: NewTranscript(opts.Viewer, messages),
		presence:   NewPresence(opts.Viewer, opts.TypingTimeout),
		scroll:     NewScrollController(opts.ScrollThreshold),
		receipts:   NewReadReceiptEmitter(opts.ReadReceiptThrottle),
		typing:     NewTypingThrottle(opts.TypingThrottle),
	}
	s.receipts.Restore(opts.InitiallyVisible, opts.InitiallyFocused)
	s.logger = deps.Logger.With(zap.String("session_id", s.id), zap.String("ticket_number", s.number))

	s.subscribe(ctx)
	go s.loop()
	s.goAsync(s.runPoller)

	s.post(func() {
		s.scroll.RequestScroll()
		s.emit(s.scroll.Decide(false))
		s.loadTimer = time.AfterFunc(s.opts.ReadReceiptDelay, func() { s.post(s.onLoaded) })
	})

	deps.Metrics.SessionOpened()
	s.logger.Info("ticket view opened", zap.Int("messages", len(messages)))
	return s, nil
}

func fetchFailure(deps Deps, opts Options, err error) error {
	deps.Metrics.RecordFailure("fetch")
	deps.Logger.Warn("ticket load failed", zap.Error(err))
	deps.Listener.OnNotice(Notice{Kind: NoticeFetchFailed, Message: "Could not load ticket", Err: err, At: opts.Now()})
	if errors.Is(err, domain.ErrTicketNotFound) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrFetchFailed, err)
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// TicketNumber returns the human-facing ticket number.
func (s *Session) TicketNumber() string { return s.number }

// TicketID returns the store id of the ticket.
func (s *Session) TicketID() string { return s.ticketID }

func (s *Session) subscribe(ctx context.Context) {
	if s.deps.Feed != nil {
		sub, err := s.deps.Feed.SubscribeMessages(ctx, s.ticketID, func(msg domain.Message) {
			s.post(func() { s.applyRemoteInsert(msg) })
		})
		if err != nil {
			s.logger.Warn("message feed unavailable; relying on polling", zap.Error(err))
		} else {
			s.msgSub = sub
		}

		sub, err = s.deps.Feed.SubscribeTicket(ctx, s.ticketID, func(ticket domain.Ticket) {
			s.post(func() { s.mergeTicket(ticket) })
		})
		if err != nil {
			s.logger.Warn("ticket feed unavailable; relying on polling", zap.Error(err))
		} else {
			s.ticketSub = sub
		}
	}
	if s.deps.Signals != nil {
		topic, err := s.deps.Signals.Join(ctx, s.ticketID, func(sig realtime.Signal) {
			s.post(func() { s.onSignal(sig) })
		})
		if err != nil {
			s.logger.Warn("signal channel unavailable", zap.Error(err))
		} else {
			s.topic = topic
		}
	}
}

func (s *Session) loop() {
	defer close(s.done)
	defer s.stopTimers()
	for {
		select {
		case <-s.ctx.Done():
			return
		case fn := <-s.inbox:
			if s.ctx.Err() != nil {
				return
			}
			fn()
		}
	}
}

func (s *Session) stopTimers() {
	if s.typingTimer != nil {
		s.typingTimer.Stop()
	}
	if s.loadTimer != nil {
		s.loadTimer.Stop()
	}
}

// post queues fn on the event loop. It reports false once the session is
// closing.
func (s *Session) post(fn func()) bool {
	if s.ctx.Err() != nil {
		return false
	}
	select {
	case s.inbox <- fn:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// call runs fn on the event loop and waits for its result. It must not be
// used from inside the loop.
func (s *Session) call(fn func() error) error {
	result := make(chan error, 1)
	if !s.post(func() { result <- fn() }) {
		return ErrSessionClosed
	}
	select {
	case err := <-result:
		return err
	case <-s.done:
		return ErrSessionClosed
	}
}

// goAsync runs fn on a goroutine that Close waits for.
func (s *Session) goAsync(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

func (s *Session) emit(scroll bool) {
	if s.ctx.Err() != nil {
		return
	}
	s.deps.Listener.OnUpdate(ViewUpdate{View: s.view(), ScrollToBottom: scroll})
}

func (s *Session) notify(kind NoticeKind, message string, err error) {
	if s.ctx.Err() != nil {
		return
	}
	s.deps.Listener.OnNotice(Notice{Kind: kind, Message: message, Err: err, At: s.opts.Now()})
}

func (s *Session) view() View {
	msgs := s.transcript.Messages()
	seen := s.presence.SeenFlags(msgs)
	views := make([]MessageView, len(msgs))
	for i, msg := range msgs {
		views[i] = MessageView{
			Message: msg,
			Pending: msg.ID.IsProvisional(),
			Seen:    seen[i],
			Own:     msg.Sender == s.opts.Viewer,
		}
	}
	v := View{
		Ticket:       s.ticket,
		Messages:     views,
		OtherTyping:  s.presence.OtherTyping(s.opts.Now()),
		PendingSends: s.transcript.PendingSendCount(),
		CanReply:     s.ticket.Status.AcceptsReplies(),
	}
	if ts, ok := s.presence.ReadMarker(s.opts.Viewer.Other()); ok {
		v.OtherReadAt = &ts
	}
	return v
}

func (s *Session) apply(ev Event) Outcome {
	next, out := Reduce(s.transcript, ev)
	s.deps.Metrics.RecordTranscriptEvent(eventKind(ev), out.Changed)
	s.transcript = next
	if !out.Changed {
		return out
	}
	s.emit(s.scroll.Decide(out.OwnAction))
	return out
}

func (s *Session) applyRemoteInsert(msg domain.Message) {
	s.noteArrival(s.apply(RemoteInsert{Message: msg}))
}

// noteArrival acknowledges a message from the other party that landed
// while the view is on screen.
func (s *Session) noteArrival(out Outcome) {
	if out.Appended != nil && !out.OwnAction && s.receipts.MessageArrived(s.opts.Now()) {
		s.sendRead()
	}
}

func (s *Session) applyOptimisticSend(body, localID string) domain.Message {
	msg := domain.Message{
		ID:        domain.ProvisionalID(localID),
		TicketID:  s.ticketID,
		Body:      body,
		Sender:    s.opts.Viewer,
		SenderID:  s.opts.ViewerID,
		CreatedAt: s.opts.Now(),
	}
	s.apply(OptimisticSend{Message: msg})
	return msg
}

func (s *Session) reconcileOptimistic(provisionalID domain.MessageID, durable *domain.Message, err error) {
	s.apply(ReconcileResult{ProvisionalID: provisionalID, Durable: durable, Err: err})
}

func (s *Session) applyPollerSnapshot(messages []domain.Message, base uint64) {
	s.noteArrival(s.apply(PollerSnapshot{Messages: messages, Base: base}))
}

// mergeTicket takes a ticket record from the feed or the poller. While a
// local mutation is in flight the optimistic value wins.
func (s *Session) mergeTicket(ticket domain.Ticket) {
	if ticket.ID != s.ticketID || s.mutations > 0 || s.ticket.Equal(&ticket) {
		return
	}
	s.ticket = ticket
	s.emit(false)
}

func (s *Session) onSignal(sig realtime.Signal) {
	now := s.opts.Now()
	s.deps.Metrics.RecordSignal("in", string(sig.Kind))
	changed := s.presence.Apply(sig, now)
	if domain.RoleFromAdminFlag(sig.IsAdmin) != s.opts.Viewer {
		switch sig.Kind {
		case realtime.SignalTyping:
			s.armTypingTimer(now)
		case realtime.SignalMessageSent:
			if s.typingTimer != nil {
				s.typingTimer.Stop()
			}
		}
	}
	if changed {
		s.emit(false)
	}
}

func (s *Session) armTypingTimer(now time.Time) {
	if s.typingTimer != nil {
		s.typingTimer.Stop()
	}
	wait := s.presence.TypingDeadline().Sub(now)
	s.typingTimer = time.AfterFunc(wait, func() {
		s.post(s.onTypingExpired)
	})
}

func (s *Session) onTypingExpired() {
	if s.presence.OtherTyping(s.opts.Now()) {
		return
	}
	s.emit(false)
}

func (s *Session) onLoaded() {
	if s.receipts.Loaded(s.opts.Now()) {
		s.sendRead()
	}
}

func (s *Session) sendRead() {
	s.broadcast(realtime.Signal{Kind: realtime.SignalRead, IsAdmin: s.opts.Viewer.IsAdmin(), Timestamp: s.opts.Now()})
}

func (s *Session) broadcast(sig realtime.Signal) {
	if s.topic == nil {
		return
	}
	s.goAsync(func() {
		ctx, cancel := context.WithTimeout(s.ctx, signalTimeout)
		defer cancel()
		if err := s.topic.Send(ctx, sig); err != nil {
			s.logger.Debug("signal not sent", zap.String("kind", string(sig.Kind)), zap.Error(err))
			return
		}
		s.deps.Metrics.RecordSignal("out", string(sig.Kind))
	})
}

func (s *Session) publish(ctx context.Context, eventType events.EventType, payload interface{}) {
	if s.deps.Events == nil {
		return
	}
	err := s.deps.Events.Publish(ctx, events.Event{
		Type:         eventType,
		TicketID:     s.ticketID,
		TicketNumber: s.number,
		Actor:        events.Actor{Role: s.opts.Viewer, ID: s.opts.ViewerID},
		Timestamp:    s.opts.Now(),
		Payload:      payload,
	})
	if err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(eventType)), zap.Error(err))
	}
}

// View returns the current render state.
func (s *Session) View() (View, error) {
	var v View
	err := s.call(func() error {
		v = s.view()
		return nil
	})
	return v, err
}

// Send submits a reply. The message shows up immediately as pending; on
// store failure it is removed again, a notice is emitted and the error is
// returned so the caller can keep the typed text. An admin reply moves
// the ticket to waiting_customer.
func (s *Session) Send(ctx context.Context, body string) (domain.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return domain.Message{}, domain.ErrEmptyMessage
	}

	var provisional domain.Message
	err := s.call(func() error {
		if !s.ticket.Status.AcceptsReplies() {
			return domain.ErrReplyNotAllowed
		}
		provisional = s.applyOptimisticSend(body, s.opts.NewLocalID())
		return nil
	})
	if err != nil {
		return domain.Message{}, err
	}

	durable, insertErr := s.deps.Store.InsertMessage(ctx, domain.NewMessage{
		TicketID: s.ticketID,
		Sender:   s.opts.Viewer,
		Body:     body,
		SenderID: s.opts.ViewerID,
	})
	if insertErr == nil && durable == nil {
		insertErr = errors.New("store returned no message")
	}
	_ = s.call(func() error {
		s.reconcileOptimistic(provisional.ID, durable, insertErr)
		if insertErr != nil {
			s.notify(NoticeSendFailed, "Message could not be sent", insertErr)
		}
		return nil
	})
	if insertErr != nil {
		s.deps.Metrics.RecordFailure("send")
		s.logger.Warn("message send failed", zap.Error(insertErr))
		return domain.Message{}, fmt.Errorf("%w: %w", ErrSendFailed, insertErr)
	}

	s.broadcast(realtime.Signal{Kind: realtime.SignalMessageSent, IsAdmin: s.opts.Viewer.IsAdmin()})
	s.publish(ctx, events.EventTicketMessageAdded, events.TicketMessageAddedPayload{
		MessageID:   durable.ID.Value(),
		Sender:      durable.Sender,
		BodyPreview: stringPreview(durable.Body, 120),
	})

	if s.opts.Viewer == domain.SenderAdmin {
		_ = s.mutateTicket(ctx, true, func(t *domain.Ticket) (domain.TicketUpdate, bool) {
			next := t.Status.AfterAdminReply()
			if next == t.Status {
				return domain.TicketUpdate{}, false
			}
			t.Status = next
			return domain.TicketUpdate{Status: &next}, true
		})
	}
	return *durable, nil
}

// UpdateStatus sets the ticket status. Any status may follow any other.
func (s *Session) UpdateStatus(ctx context.Context, status domain.TicketStatus) error {
	return s.mutateTicket(ctx, false, func(t *domain.Ticket) (domain.TicketUpdate, bool) {
		if t.Status == status {
			return domain.TicketUpdate{}, false
		}
		t.Status = status
		return domain.TicketUpdate{Status: &status}, true
	})
}

// UpdatePriority sets the ticket priority.
func (s *Session) UpdatePriority(ctx context.Context, priority domain.TicketPriority) error {
	return s.mutateTicket(ctx, false, func(t *domain.Ticket) (domain.TicketUpdate, bool) {
		if t.Priority == priority {
			return domain.TicketUpdate{}, false
		}
		t.Priority = priority
		return domain.TicketUpdate{Priority: &priority}, true
	})
}

// Reopen moves a closed ticket back to open so replies are possible again.
func (s *Session) Reopen(ctx context.Context) error {
	return s.mutateTicket(ctx, false, func(t *domain.Ticket) (domain.TicketUpdate, bool) {
		if t.Status != domain.TicketStatusClosed {
			return domain.TicketUpdate{}, false
		}
		open := domain.TicketStatusOpen
		t.Status = open
		return domain.TicketUpdate{Status: &open}, true
	})
}

// mutateTicket applies change optimistically, writes it through, and on
// failure restores the previous values and emits a notice.
func (s *Session) mutateTicket(ctx context.Context, automatic bool, change func(*domain.Ticket) (domain.TicketUpdate, bool)) error {
	var (
		prev    domain.Ticket
		update  domain.TicketUpdate
		changed bool
	)
	err := s.call(func() error {
		prev = s.ticket
		next := s.ticket
		update, changed = change(&next)
		if !changed {
			return nil
		}
		update.UpdatedAt = s.opts.Now()
		next.UpdatedAt = update.UpdatedAt
		s.ticket = next
		s.mutations++
		s.emit(false)
		return nil
	})
	if err != nil || !changed {
		return err
	}

	writeErr := s.deps.Store.UpdateTicket(ctx, s.ticketID, update)
	_ = s.call(func() error {
		s.mutations--
		if writeErr == nil {
			return nil
		}
		if update.Status != nil && s.ticket.Status == *update.Status {
			s.ticket.Status = prev.Status
		}
		if update.Priority != nil && s.ticket.Priority == *update.Priority {
			s.ticket.Priority = prev.Priority
		}
		if s.ticket.UpdatedAt.Equal(update.UpdatedAt) {
			s.ticket.UpdatedAt = prev.UpdatedAt
		}
		s.notify(NoticeMutationFailed, "Ticket update failed", writeErr)
		s.emit(false)
		return nil
	})
	if writeErr != nil {
		s.deps.Metrics.RecordFailure("mutation")
		s.logger.Warn("ticket update failed", zap.Bool("automatic", automatic), zap.Error(writeErr))
		return fmt.Errorf("%w: %w", ErrMutationFailed, writeErr)
	}

	if update.Status != nil {
		s.publish(ctx, events.EventTicketStatusChanged, events.TicketStatusChangedPayload{
			OldStatus: prev.Status,
			NewStatus: *update.Status,
			Automatic: automatic,
		})
	}
	if update.Priority != nil {
		s.publish(ctx, events.EventTicketPriorityChanged, events.TicketPriorityChangedPayload{
			OldPriority: prev.Priority,
			NewPriority: *update.Priority,
		})
	}
	return nil
}

// Typing is called on viewer keystrokes; it broadcasts at most once per
// throttle interval and reports whether a signal went out.
func (s *Session) Typing() (bool, error) {
	var allowed bool
	err := s.call(func() error {
		allowed = s.typing.Allow(s.opts.Now())
		return nil
	})
	if err != nil || !allowed {
		return false, err
	}
	s.broadcast(realtime.Signal{Kind: realtime.SignalTyping, IsAdmin: s.opts.Viewer.IsAdmin()})
	return true, nil
}

// UpdateViewport records the client's scroll geometry.
func (s *Session) UpdateViewport(v Viewport) error {
	return s.call(func() error {
		s.scroll.Observe(v)
		return nil
	})
}

// RequestScroll forces a scroll to the newest message.
func (s *Session) RequestScroll() error {
	return s.call(func() error {
		s.scroll.RequestScroll()
		s.emit(s.scroll.Decide(false))
		return nil
	})
}

// SetVisible records document visibility.
func (s *Session) SetVisible(visible bool) error {
	return s.call(func() error {
		if s.receipts.SetVisible(visible, s.opts.Now()) {
			s.sendRead()
		}
		return nil
	})
}

// SetFocused records window focus.
func (s *Session) SetFocused(focused bool) error {
	return s.call(func() error {
		if s.receipts.SetFocused(focused, s.opts.Now()) {
			s.sendRead()
		}
		return nil
	})
}

// Close tears the session down: the poller and timers stop, both feed
// subscriptions and the signal topic are closed once, and no listener
// call happens after Close returns. Further calls are no-ops.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		s.cancel()
		<-s.done

		var errs []error
		for _, sub := range []realtime.Subscription{s.msgSub, s.ticketSub} {
			if sub != nil {
				errs = append(errs, sub.Close())
			}
		}
		if s.topic != nil {
			errs = append(errs, s.topic.Close())
		}
		s.wg.Wait()
		s.closeErr = errors.Join(errs...)

		s.deps.Metrics.SessionClosed()
		s.logger.Info("ticket view closed")
	})
	return s.closeErr
}

// Done is closed once the event loop has stopped.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func eventKind(ev Event) string {
	switch ev.(type) {
	case RemoteInsert:
		return "remote_insert"
	case OptimisticSend:
		return "optimistic_send"
	case ReconcileResult:
		return "reconcile"
	case PollerSnapshot:
		return "poller_snapshot"
	default:
		return "unknown"
	}
}

func stringPreview(body string, max int) string {
	runes := []rune(strings.TrimSpace(body))
	if len(runes) <= max {
		return string(runes)
	}
	return string(runes[:max]) + "…"
}

type nopListener struct{}

func (nopListener) OnUpdate(ViewUpdate) {}
func (nopListener) OnNotice(Notice)     {}
