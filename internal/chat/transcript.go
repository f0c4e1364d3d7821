package chat

import (
	"sort"

	"github.com/spec-kit/support-chat/internal/domain"
)

// Event is an input to Reduce. The set of events is closed.
type Event interface {
	transcriptEvent()
}

// RemoteInsert is a durable message seen on the change feed.
type RemoteInsert struct {
	Message domain.Message
}

// OptimisticSend is a locally composed message awaiting the store.
type OptimisticSend struct {
	Message domain.Message
}

// ReconcileResult settles an optimistic send: Durable on success, Err on
// failure.
type ReconcileResult struct {
	ProvisionalID domain.MessageID
	Durable       *domain.Message
	Err           error
}

// PollerSnapshot is a full re-fetch of the message list. Base is the
// transcript revision observed when the fetch started.
type PollerSnapshot struct {
	Messages []domain.Message
	Base     uint64
}

func (RemoteInsert) transcriptEvent()    {}
func (OptimisticSend) transcriptEvent()  {}
func (ReconcileResult) transcriptEvent() {}
func (PollerSnapshot) transcriptEvent()  {}

// Outcome describes what a reduction did.
type Outcome struct {
	Changed bool
	// Appended is the newest message the event introduced, if any.
	Appended *domain.Message
	// OwnAction is set when the change was authored by the viewer.
	OwnAction bool
	// Dropped is the provisional entry removed by a failed send.
	Dropped *domain.Message
}

type entry struct {
	msg domain.Message
	// order breaks CreatedAt ties by arrival.
	order uint64
	// rev is the revision at which the entry was last written.
	rev uint64
}

// Transcript is the ordered message list of one ticket. Values are
// immutable; Reduce returns a new Transcript when something changes.
type Transcript struct {
	viewer  domain.SenderRole
	entries []entry
	rev     uint64
	// held are durable rows from the viewer's side that arrived while a
	// send was pending. They stay out of the entries until a reconcile
	// claims one or the last pending send settles.
	held []domain.Message
}

// NewTranscript seeds a transcript from the initial fetch.
func NewTranscript(viewer domain.SenderRole, initial []domain.Message) Transcript {
	t := Transcript{viewer: viewer}
	for _, msg := range initial {
		if !msg.ID.IsDurable() || t.indexOf(msg.ID) >= 0 {
			continue
		}
		t.rev++
		t.entries = insertOrdered(t.entries, entry{msg: msg, order: t.rev, rev: t.rev})
	}
	return t
}

// Revision increases with every applied change.
func (t Transcript) Revision() uint64 { return t.rev }

// Viewer is the party the transcript is rendered for.
func (t Transcript) Viewer() domain.SenderRole { return t.viewer }

// Len returns the number of entries.
func (t Transcript) Len() int { return len(t.entries) }

// Messages returns a copy of the ordered messages.
func (t Transcript) Messages() []domain.Message {
	out := make([]domain.Message, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.msg
	}
	return out
}

// PendingSendCount counts provisional entries.
func (t Transcript) PendingSendCount() int {
	n := 0
	for _, e := range t.entries {
		if e.msg.ID.IsProvisional() {
			n++
		}
	}
	return n
}

// Find looks an entry up by id.
func (t Transcript) Find(id domain.MessageID) (domain.Message, bool) {
	if i := t.indexOf(id); i >= 0 {
		return t.entries[i].msg, true
	}
	return domain.Message{}, false
}

// Last returns the newest entry.
func (t Transcript) Last() (domain.Message, bool) {
	if len(t.entries) == 0 {
		return domain.Message{}, false
	}
	return t.entries[len(t.entries)-1].msg, true
}

func (t Transcript) heldIndex(id domain.MessageID) int {
	for i, msg := range t.held {
		if msg.ID == id {
			return i
		}
	}
	return -1
}

// holds reports whether msg must wait for a pending send to settle.
func (t Transcript) holds(msg domain.Message) bool {
	return msg.Sender == t.viewer && t.PendingSendCount() > 0
}

func (t Transcript) indexOf(id domain.MessageID) int {
	for i, e := range t.entries {
		if e.msg.ID == id {
			return i
		}
	}
	return -1
}

// Reduce applies one event. It never fails; events that do not apply
// (duplicates, unknown provisional ids) leave the transcript untouched.
// Outcome.Changed reports a visible change only, so callers keep the
// returned Transcript either way.
func Reduce(t Transcript, ev Event) (Transcript, Outcome) {
	switch ev := ev.(type) {
	case RemoteInsert:
		return t.applyRemoteInsert(ev.Message)
	case OptimisticSend:
		return t.applyOptimisticSend(ev.Message)
	case ReconcileResult:
		return t.reconcile(ev)
	case PollerSnapshot:
		return t.applySnapshot(ev)
	default:
		return t, Outcome{}
	}
}

func (t Transcript) applyRemoteInsert(msg domain.Message) (Transcript, Outcome) {
	if !msg.ID.IsDurable() || t.indexOf(msg.ID) >= 0 || t.heldIndex(msg.ID) >= 0 {
		return t, Outcome{}
	}
	next := t.clone()
	if t.holds(msg) {
		next.held = append(next.held, msg)
		return next, Outcome{}
	}
	next.rev++
	next.entries = insertOrdered(next.entries, entry{msg: msg, order: next.rev, rev: next.rev})
	appended := msg
	return next, Outcome{Changed: true, Appended: &appended, OwnAction: msg.Sender == t.viewer}
}

func (t Transcript) applyOptimisticSend(msg domain.Message) (Transcript, Outcome) {
	if !msg.ID.IsProvisional() || t.indexOf(msg.ID) >= 0 {
		return t, Outcome{}
	}
	next := t.clone()
	next.rev++
	next.entries = insertOrdered(next.entries, entry{msg: msg, order: next.rev, rev: next.rev})
	appended := msg
	return next, Outcome{Changed: true, Appended: &appended, OwnAction: true}
}

func (t Transcript) reconcile(ev ReconcileResult) (Transcript, Outcome) {
	i := t.indexOf(ev.ProvisionalID)
	if i < 0 || !ev.ProvisionalID.IsProvisional() {
		return t, Outcome{}
	}
	next := t.clone()
	next.rev++

	if ev.Err != nil || ev.Durable == nil {
		dropped := next.entries[i].msg
		next.entries = append(next.entries[:i], next.entries[i+1:]...)
		next.releaseHeld()
		return next, Outcome{Changed: true, Dropped: &dropped, OwnAction: true}
	}

	if h := next.heldIndex(ev.Durable.ID); h >= 0 {
		next.held = append(next.held[:h], next.held[h+1:]...)
	}
	if next.indexOf(ev.Durable.ID) >= 0 {
		next.entries = append(next.entries[:i], next.entries[i+1:]...)
	} else {
		next.entries[i] = entry{msg: *ev.Durable, order: next.entries[i].order, rev: next.rev}
	}
	next.releaseHeld()
	return next, Outcome{Changed: true, OwnAction: true}
}

// releaseHeld moves held rows into the entries once no send is pending.
func (t *Transcript) releaseHeld() {
	if len(t.held) == 0 || t.PendingSendCount() > 0 {
		return
	}
	for _, msg := range t.held {
		if t.indexOf(msg.ID) >= 0 {
			continue
		}
		t.rev++
		t.entries = insertOrdered(t.entries, entry{msg: msg, order: t.rev, rev: t.rev})
	}
	t.held = nil
}

func (t Transcript) applySnapshot(ev PollerSnapshot) (Transcript, Outcome) {
	existing := make(map[domain.MessageID]entry, len(t.entries))
	for _, e := range t.entries {
		existing[e.msg.ID] = e
	}

	next := Transcript{viewer: t.viewer, rev: t.rev + 1, held: cloneMessages(t.held)}
	inSnapshot := make(map[domain.MessageID]struct{}, len(ev.Messages))
	var newest *domain.Message
	order := next.rev - 1
	for _, msg := range ev.Messages {
		if !msg.ID.IsDurable() {
			continue
		}
		if _, dup := inSnapshot[msg.ID]; dup {
			continue
		}
		inSnapshot[msg.ID] = struct{}{}
		if prev, ok := existing[msg.ID]; ok {
			next.entries = append(next.entries, entry{msg: msg, order: prev.order, rev: prev.rev})
			continue
		}
		if t.holds(msg) {
			if next.heldIndex(msg.ID) < 0 {
				next.held = append(next.held, msg)
			}
			continue
		}
		order++
		next.entries = append(next.entries, entry{msg: msg, order: order, rev: next.rev})
		m := msg
		if newest == nil || !m.CreatedAt.Before(newest.CreatedAt) {
			newest = &m
		}
	}
	for _, e := range t.entries {
		if _, ok := inSnapshot[e.msg.ID]; ok {
			continue
		}
		// Provisional entries never appear in a snapshot. Durable entries
		// written after the fetch started are newer than the snapshot.
		if e.msg.ID.IsProvisional() || e.rev > ev.Base {
			next.entries = append(next.entries, e)
		}
	}
	if order > next.rev {
		next.rev = order
	}
	sortEntries(next.entries)

	if sameEntries(t.entries, next.entries) {
		t.held = next.held
		return t, Outcome{}
	}
	out := Outcome{Changed: true}
	if newest != nil {
		out.Appended = newest
		out.OwnAction = newest.Sender == t.viewer
	}
	return next, out
}

func (t Transcript) clone() Transcript {
	entries := make([]entry, len(t.entries), len(t.entries)+1)
	copy(entries, t.entries)
	return Transcript{viewer: t.viewer, entries: entries, rev: t.rev, held: cloneMessages(t.held)}
}

func cloneMessages(msgs []domain.Message) []domain.Message {
	if len(msgs) == 0 {
		return nil
	}
	return append([]domain.Message(nil), msgs...)
}

// insertOrdered places e after every entry with CreatedAt <= e's.
func insertOrdered(entries []entry, e entry) []entry {
	i := sort.Search(len(entries), func(i int) bool {
		return entries[i].msg.CreatedAt.After(e.msg.CreatedAt)
	})
	entries = append(entries, entry{})
	copy(entries[i+1:], entries[i:])
	entries[i] = e
	return entries
}

func sortEntries(entries []entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.msg.CreatedAt.Equal(b.msg.CreatedAt) {
			return a.msg.CreatedAt.Before(b.msg.CreatedAt)
		}
		return a.order < b.order
	})
}

// sameEntries is the canonical equality used to skip redundant snapshot
// replacements: same ids in the same order with the same content.
func sameEntries(a, b []entry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].msg.ID != b[i].msg.ID || !a[i].msg.SameContent(b[i].msg) {
			return false
		}
	}
	return true
}
