package chat

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-chat/internal/domain"
)

var base = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func durable(id string, sender domain.SenderRole, body string, at time.Duration) domain.Message {
	return domain.Message{
		ID:        domain.DurableID(id),
		TicketID:  "t-1",
		Body:      body,
		Sender:    sender,
		CreatedAt: base.Add(at),
	}
}

func provisional(id, body string, at time.Duration) domain.Message {
	return domain.Message{
		ID:        domain.ProvisionalID(id),
		TicketID:  "t-1",
		Body:      body,
		Sender:    domain.SenderAdmin,
		CreatedAt: base.Add(at),
	}
}

func bodies(t Transcript) []string {
	var out []string
	for _, m := range t.Messages() {
		out = append(out, m.Body)
	}
	return out
}

func TestRemoteInsertIsIdempotent(t *testing.T) {
	tr := NewTranscript(domain.SenderAdmin, nil)
	msg := durable("m1", domain.SenderCustomer, "hi", 0)

	tr, out := Reduce(tr, RemoteInsert{Message: msg})
	require.True(t, out.Changed)
	require.NotNil(t, out.Appended)
	assert.False(t, out.OwnAction)
	rev := tr.Revision()

	again, out := Reduce(tr, RemoteInsert{Message: msg})
	assert.False(t, out.Changed)
	assert.Equal(t, 1, again.Len())
	assert.Equal(t, rev, again.Revision())
}

func TestRemoteInsertIgnoresProvisionalIDs(t *testing.T) {
	tr := NewTranscript(domain.SenderAdmin, nil)
	_, out := Reduce(tr, RemoteInsert{Message: provisional("local", "x", 0)})
	assert.False(t, out.Changed)
}

func TestInsertOrdersByTimestampThenArrival(t *testing.T) {
	tr := NewTranscript(domain.SenderAdmin, []domain.Message{
		durable("m3", domain.SenderCustomer, "third", 3*time.Second),
		durable("m1", domain.SenderCustomer, "first", time.Second),
	})
	tr, _ = Reduce(tr, RemoteInsert{Message: durable("m2", domain.SenderAdmin, "second", 2*time.Second)})
	tr, _ = Reduce(tr, RemoteInsert{Message: durable("m2b", domain.SenderAdmin, "second-tie", 2*time.Second)})

	assert.Equal(t, []string{"first", "second", "second-tie", "third"}, bodies(tr))
}

func TestOptimisticSendReconcilesToSingleEntry(t *testing.T) {
	tr := NewTranscript(domain.SenderAdmin, nil)
	tr, out := Reduce(tr, OptimisticSend{Message: provisional("local-1", "Hello", 0)})
	require.True(t, out.Changed)
	assert.True(t, out.OwnAction)
	assert.Equal(t, 1, tr.PendingSendCount())

	stored := durable("m1", domain.SenderAdmin, "Hello", 50*time.Millisecond)
	tr, out = Reduce(tr, ReconcileResult{ProvisionalID: domain.ProvisionalID("local-1"), Durable: &stored})
	require.True(t, out.Changed)

	require.Equal(t, 1, tr.Len())
	assert.Equal(t, 0, tr.PendingSendCount())
	got, ok := tr.Find(domain.DurableID("m1"))
	require.True(t, ok)
	assert.Equal(t, "Hello", got.Body)
}

func TestFeedCopyBeforeReconcileNeverShowsTwice(t *testing.T) {
	tr := NewTranscript(domain.SenderAdmin, nil)
	tr, _ = Reduce(tr, OptimisticSend{Message: provisional("local-1", "Hello", 0)})

	stored := durable("m1", domain.SenderAdmin, "Hello", 50*time.Millisecond)
	tr, out := Reduce(tr, RemoteInsert{Message: stored})
	assert.False(t, out.Changed)
	require.Equal(t, 1, tr.Len())
	assert.Equal(t, 1, tr.PendingSendCount())

	// A repeated delivery is still a no-op.
	tr, out = Reduce(tr, RemoteInsert{Message: stored})
	assert.False(t, out.Changed)
	assert.Equal(t, 1, tr.Len())

	tr, out = Reduce(tr, ReconcileResult{ProvisionalID: domain.ProvisionalID("local-1"), Durable: &stored})
	require.True(t, out.Changed)
	require.Equal(t, 1, tr.Len())
	assert.Equal(t, 0, tr.PendingSendCount())
	got, ok := tr.Find(domain.DurableID("m1"))
	require.True(t, ok)
	assert.Equal(t, "Hello", got.Body)

	tr, out = Reduce(tr, RemoteInsert{Message: stored})
	assert.False(t, out.Changed)
	assert.Equal(t, 1, tr.Len())
}

func TestCustomerInsertIsNotHeldDuringPendingSend(t *testing.T) {
	tr := NewTranscript(domain.SenderAdmin, nil)
	tr, _ = Reduce(tr, OptimisticSend{Message: provisional("local-1", "Hello", time.Second)})

	tr, out := Reduce(tr, RemoteInsert{Message: durable("c1", domain.SenderCustomer, "hi", 0)})
	require.True(t, out.Changed)
	assert.Equal(t, []string{"hi", "Hello"}, bodies(tr))
}

func TestHeldRowsReleasedWhenLastSendSettles(t *testing.T) {
	tr := NewTranscript(domain.SenderAdmin, nil)
	tr, _ = Reduce(tr, OptimisticSend{Message: provisional("local-1", "first", 0)})
	tr, _ = Reduce(tr, OptimisticSend{Message: provisional("local-2", "second", time.Second)})

	// Another admin's reply lands while both sends are pending.
	other := durable("m9", domain.SenderAdmin, "from a colleague", 500*time.Millisecond)
	tr, out := Reduce(tr, RemoteInsert{Message: other})
	assert.False(t, out.Changed)
	assert.Equal(t, []string{"first", "second"}, bodies(tr))

	stored := durable("m1", domain.SenderAdmin, "first", 100*time.Millisecond)
	tr, _ = Reduce(tr, ReconcileResult{ProvisionalID: domain.ProvisionalID("local-1"), Durable: &stored})
	assert.Equal(t, []string{"first", "second"}, bodies(tr))

	tr, _ = Reduce(tr, ReconcileResult{ProvisionalID: domain.ProvisionalID("local-2"), Err: errors.New("timeout")})
	assert.Equal(t, []string{"first", "from a colleague"}, bodies(tr))
	assert.Zero(t, tr.PendingSendCount())
}

func TestSnapshotWithOwnRowDuringPendingSend(t *testing.T) {
	first := durable("m1", domain.SenderCustomer, "need help", 0)
	tr := NewTranscript(domain.SenderAdmin, []domain.Message{first})
	tr, _ = Reduce(tr, OptimisticSend{Message: provisional("local-1", "Hello", time.Second)})

	stored := durable("m2", domain.SenderAdmin, "Hello", 1100*time.Millisecond)
	tr, out := Reduce(tr, PollerSnapshot{Messages: []domain.Message{first, stored}, Base: tr.Revision()})
	assert.False(t, out.Changed)
	assert.Equal(t, []string{"need help", "Hello"}, bodies(tr))

	tr, _ = Reduce(tr, ReconcileResult{ProvisionalID: domain.ProvisionalID("local-1"), Durable: &stored})
	assert.Equal(t, []string{"need help", "Hello"}, bodies(tr))
	_, ok := tr.Find(stored.ID)
	assert.True(t, ok)
}

func TestOptimisticSendFailureRestoresTranscript(t *testing.T) {
	tr := NewTranscript(domain.SenderAdmin, []domain.Message{
		durable("m1", domain.SenderCustomer, "need help", 0),
	})
	before := tr.Messages()

	tr, _ = Reduce(tr, OptimisticSend{Message: provisional("local-1", "On it", time.Second)})
	tr, out := Reduce(tr, ReconcileResult{ProvisionalID: domain.ProvisionalID("local-1"), Err: errors.New("insert failed")})

	require.True(t, out.Changed)
	require.NotNil(t, out.Dropped)
	assert.Equal(t, "On it", out.Dropped.Body)
	assert.Equal(t, before, tr.Messages())
}

func TestReconcileUnknownProvisionalIsNoop(t *testing.T) {
	tr := NewTranscript(domain.SenderAdmin, nil)
	stored := durable("m1", domain.SenderAdmin, "Hello", 0)
	_, out := Reduce(tr, ReconcileResult{ProvisionalID: domain.ProvisionalID("nope"), Durable: &stored})
	assert.False(t, out.Changed)
}

func TestPollerSnapshotNeverDuplicates(t *testing.T) {
	first := durable("m1", domain.SenderCustomer, "need help", 0)
	tr := NewTranscript(domain.SenderAdmin, []domain.Message{first})

	tr, _ = Reduce(tr, OptimisticSend{Message: provisional("local-1", "Hello", time.Second)})
	fetchStart := tr.Revision()

	// The snapshot was taken before the insert landed.
	next, out := Reduce(tr, PollerSnapshot{Messages: []domain.Message{first}, Base: fetchStart})
	assert.False(t, out.Changed)
	assert.Equal(t, []string{"need help", "Hello"}, bodies(next))
	assert.Equal(t, 1, next.PendingSendCount())

	stored := durable("m2", domain.SenderAdmin, "Hello", 1100*time.Millisecond)
	tr, _ = Reduce(next, ReconcileResult{ProvisionalID: domain.ProvisionalID("local-1"), Durable: &stored})

	// A stale snapshot must not hide the reconciled message.
	stale, _ := Reduce(tr, PollerSnapshot{Messages: []domain.Message{first}, Base: fetchStart})
	assert.Equal(t, []string{"need help", "Hello"}, bodies(stale))

	// A fresh snapshot must not add a second copy.
	fresh, out := Reduce(tr, PollerSnapshot{Messages: []domain.Message{first, stored}, Base: tr.Revision()})
	assert.False(t, out.Changed)
	assert.Equal(t, []string{"need help", "Hello"}, bodies(fresh))
}

func TestPollerSnapshotRepairsMissedInsert(t *testing.T) {
	m1 := durable("m1", domain.SenderCustomer, "one", 0)
	m2 := durable("m2", domain.SenderCustomer, "two", time.Second)
	m3 := durable("m3", domain.SenderCustomer, "three", 2*time.Second)
	tr := NewTranscript(domain.SenderAdmin, []domain.Message{m1, m3})

	tr, out := Reduce(tr, PollerSnapshot{Messages: []domain.Message{m1, m2, m3}, Base: tr.Revision()})
	require.True(t, out.Changed)
	require.NotNil(t, out.Appended)
	assert.Equal(t, "two", out.Appended.Body)
	assert.False(t, out.OwnAction)
	assert.Equal(t, []string{"one", "two", "three"}, bodies(tr))

	tr, _ = Reduce(tr, RemoteInsert{Message: durable("m4", domain.SenderAdmin, "four", 3*time.Second)})
	assert.Equal(t, []string{"one", "two", "three", "four"}, bodies(tr))
}

func TestPollerSnapshotIdenticalIsUnchanged(t *testing.T) {
	msgs := []domain.Message{
		durable("m1", domain.SenderCustomer, "one", 0),
		durable("m2", domain.SenderAdmin, "two", time.Second),
	}
	tr := NewTranscript(domain.SenderAdmin, msgs)
	next, out := Reduce(tr, PollerSnapshot{Messages: msgs, Base: tr.Revision()})
	assert.False(t, out.Changed)
	assert.Equal(t, tr.Revision(), next.Revision())
}
