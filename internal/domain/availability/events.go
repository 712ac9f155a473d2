package availability

import (
	"time"

	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
)

type CalendarBlocked struct {
	PropertyID string              `json:"property_id"`
	BookingID  string              `json:"booking_id"`
	Range      daterange.DateRange `json:"range"`
	At         time.Time           `json:"timestamp"`
}

func (e CalendarBlocked) EventName() string     { return "calendar.blocked" }
func (e CalendarBlocked) AggregateID() string   { return e.PropertyID }
func (e CalendarBlocked) OccurredAt() time.Time { return e.At }

type CalendarReleased struct {
	PropertyID string              `json:"property_id"`
	BookingID  string              `json:"booking_id"`
	Range      daterange.DateRange `json:"range"`
	At         time.Time           `json:"timestamp"`
}

func (e CalendarReleased) EventName() string     { return "calendar.released" }
func (e CalendarReleased) AggregateID() string   { return e.PropertyID }
func (e CalendarReleased) OccurredAt() time.Time { return e.At }

type CalendarOverbookingPrevented struct {
	PropertyID string              `json:"property_id"`
	BookingID  string              `json:"booking_id"`
	Range      daterange.DateRange `json:"range"`
	At         time.Time           `json:"timestamp"`
}

func (e CalendarOverbookingPrevented) EventName() string     { return "calendar.overbooking_prevented" }
func (e CalendarOverbookingPrevented) AggregateID() string   { return e.PropertyID }
func (e CalendarOverbookingPrevented) OccurredAt() time.Time { return e.At }

func CalendarBlockedEvent(id property.ID, r daterange.DateRange, bookingID string, at time.Time) CalendarBlocked {
	return CalendarBlocked{PropertyID: string(id), BookingID: bookingID, Range: r, At: at.UTC()}
}

func CalendarReleasedEvent(id property.ID, r daterange.DateRange, bookingID string, at time.Time) CalendarReleased {
	return CalendarReleased{PropertyID: string(id), BookingID: bookingID, Range: r, At: at.UTC()}
}

func CalendarOverbookingPreventedEvent(id property.ID, r daterange.DateRange, bookingID string, at time.Time) CalendarOverbookingPrevented {
	return CalendarOverbookingPrevented{PropertyID: string(id), BookingID: bookingID, Range: r, At: at.UTC()}
}
