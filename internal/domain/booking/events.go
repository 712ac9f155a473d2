package booking

import (
	"time"

	"staybook/internal/domain/shared/daterange"
)

// Snapshot is the common payload of every booking event.
type Snapshot struct {
	BookingID  string    `json:"booking_id"`
	PropertyID string    `json:"property_id"`
	GuestID    string    `json:"guest_id"`
	Status     Status    `json:"status"`
	At         time.Time `json:"timestamp"`
}

func (s Snapshot) AggregateID() string   { return s.BookingID }
func (s Snapshot) OccurredAt() time.Time { return s.At }

func (b *Booking) snapshot(at time.Time) Snapshot {
	return Snapshot{
		BookingID:  string(b.ID),
		PropertyID: string(b.PropertyID),
		GuestID:    b.GuestID,
		Status:     b.Status,
		At:         at.UTC(),
	}
}

type BookingCreated struct {
	Snapshot
	Range      daterange.DateRange `json:"range"`
	Guests     int                 `json:"guest_count"`
	GrandTotal string              `json:"total_price"`
	Deposit    string              `json:"deposit_amount"`
	Currency   string              `json:"currency"`
}

func (e BookingCreated) EventName() string { return "booking.created" }

type BookingConfirmed struct {
	Snapshot
	Range daterange.DateRange `json:"range"`
}

func (e BookingConfirmed) EventName() string { return "booking.confirmed" }

type BookingCancelled struct {
	Snapshot
	Reason   CancelReason `json:"reason"`
	Actor    Actor        `json:"actor"`
	Previous Status       `json:"previous_status"`
}

func (e BookingCancelled) EventName() string { return "booking.cancelled" }

type BookingCompleted struct {
	Snapshot
}

func (e BookingCompleted) EventName() string { return "booking.completed" }

type BookingModified struct {
	Snapshot
	PreviousRange daterange.DateRange `json:"previous_range"`
	Range         daterange.DateRange `json:"range"`
	GrandTotal    string              `json:"total_price"`
	Deposit       string              `json:"deposit_amount"`
}

func (e BookingModified) EventName() string { return "booking.modified" }
