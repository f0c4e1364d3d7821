package domain

import "time"

// TicketChangeType captures what changed in a history entry.
type TicketChangeType string

const (
	ChangeTypeStatus   TicketChangeType = "STATUS_CHANGE"
	ChangeTypePriority TicketChangeType = "PRIORITY_CHANGE"
)

// TicketHistory is an immutable audit trail entry.
type TicketHistory struct {
	ID            string
	TicketID      string
	ChangedByRole SenderRole
	ChangedByID   *string
	ChangeType    TicketChangeType
	OldValue      string
	NewValue      string
	CreatedAt     time.Time
}

// HistoryFor derives audit entries from an applied update.
func HistoryFor(before Ticket, update TicketUpdate, role SenderRole, actorID *string) []TicketHistory {
	var entries []TicketHistory
	if update.Status != nil && *update.Status != before.Status {
		entries = append(entries, TicketHistory{
			TicketID:      before.ID,
			ChangedByRole: role,
			ChangedByID:   actorID,
			ChangeType:    ChangeTypeStatus,
			OldValue:      string(before.Status),
			NewValue:      string(*update.Status),
		})
	}
	if update.Priority != nil && *update.Priority != before.Priority {
		entries = append(entries, TicketHistory{
			TicketID:      before.ID,
			ChangedByRole: role,
			ChangedByID:   actorID,
			ChangeType:    ChangeTypePriority,
			OldValue:      string(before.Priority),
			NewValue:      string(*update.Priority),
		})
	}
	return entries
}
