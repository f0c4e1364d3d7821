package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatusAndPriority(t *testing.T) {
	s, err := ParseStatus("waiting_customer")
	require.NoError(t, err)
	assert.Equal(t, TicketStatusWaitingCustomer, s)

	_, err = ParseStatus("pending")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	p, err := ParsePriority("critical")
	require.NoError(t, err)
	assert.Equal(t, TicketPriorityCritical, p)

	_, err = ParsePriority("meh")
	assert.ErrorIs(t, err, ErrInvalidPriority)
}

func TestAfterAdminReply(t *testing.T) {
	for _, s := range []TicketStatus{TicketStatusOpen, TicketStatusInProgress, TicketStatusWaitingCustomer, TicketStatusResolved} {
		assert.Equal(t, TicketStatusWaitingCustomer, s.AfterAdminReply(), s)
		assert.True(t, s.AcceptsReplies(), s)
	}
	assert.Equal(t, TicketStatusClosed, TicketStatusClosed.AfterAdminReply())
	assert.False(t, TicketStatusClosed.AcceptsReplies())
}

func TestValidateRequester(t *testing.T) {
	userID := "u-1"
	withUser := Ticket{RequesterUserID: &userID}
	assert.NoError(t, withUser.ValidateRequester())

	guest := Ticket{Guest: &GuestIdentity{Email: "g@example.com"}}
	assert.NoError(t, guest.ValidateRequester())

	both := Ticket{RequesterUserID: &userID, Guest: &GuestIdentity{Name: "Guest"}}
	assert.ErrorIs(t, both.ValidateRequester(), ErrInvalidRequester)

	assert.ErrorIs(t, (&Ticket{}).ValidateRequester(), ErrInvalidRequester)
}

func TestMessageIDVariants(t *testing.T) {
	d := DurableID("42")
	p := ProvisionalID("42")

	assert.True(t, d.IsDurable())
	assert.True(t, p.IsProvisional())
	assert.NotEqual(t, d, p)
	assert.Equal(t, "42", d.String())
	assert.Equal(t, "provisional:42", p.String())
	assert.True(t, MessageID{}.IsZero())
}

func TestRoleFlags(t *testing.T) {
	assert.Equal(t, SenderCustomer, SenderAdmin.Other())
	assert.Equal(t, SenderAdmin, RoleFromAdminFlag(true))
	assert.Equal(t, SenderCustomer, RoleFromAdminFlag(false))
}

func TestHistoryForOnlyRecordsChanges(t *testing.T) {
	before := Ticket{ID: "t-1", Status: TicketStatusOpen, Priority: TicketPriorityLow}
	same := TicketStatusOpen
	high := TicketPriorityHigh
	actor := "a-1"

	entries := HistoryFor(before, TicketUpdate{Status: &same, Priority: &high}, SenderAdmin, &actor)
	require.Len(t, entries, 1)
	assert.Equal(t, ChangeTypePriority, entries[0].ChangeType)
	assert.Equal(t, "low", entries[0].OldValue)
	assert.Equal(t, "high", entries[0].NewValue)
	assert.Equal(t, &actor, entries[0].ChangedByID)
}
