package domain

import "time"

type EventType string

const (
	EventRentalCreated       EventType = "rental.created"
	EventRentalAmended       EventType = "rental.amended"
	EventRentalStatusChanged EventType = "rental.status_changed"
	EventTrackingCodeIssued  EventType = "rental.tracking_code_issued"
	EventRentalNoteAdded     EventType = "rental.note_added"
	EventRentalReturnDue     EventType = "rental.return_due"
)

// RentalEvent is both the audit record for a rental and the message handed
// to notification collaborators once the surrounding transaction commits.
type RentalEvent struct {
	ID         string            `json:"id"`
	RentalID   int64             `json:"rental_id"`
	CustomerID int64             `json:"customer_id"`
	Type       EventType         `json:"type"`
	FromStatus RentalStatus      `json:"from_status,omitempty"`
	ToStatus   RentalStatus      `json:"to_status,omitempty"`
	Actor      string            `json:"actor"`
	Attributes map[string]string `json:"attributes,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}
