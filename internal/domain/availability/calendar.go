package availability

import (
	"context"
	"errors"
	"sort"
	"time"

	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/events"
)

var (
	ErrOverlappingRange = errors.New("availability: range overlaps with an existing block")
	ErrRangeNotFound    = errors.New("availability: range not found")
)

// Occupancy is a date range held by a confirmed booking.
type Occupancy struct {
	BookingID string
	Range     daterange.DateRange
}

// Store is the calendar store: the committed occupancies of a property.
// Implementations must reflect every committed confirmation, cancellation and
// modification; a cached Store must be invalidated on each of them.
type Store interface {
	OccupiedRanges(ctx context.Context, id property.ID) ([]Occupancy, error)
}

// Calendar is the occupancy set of one property, rebuilt from confirmed bookings
// inside the property lock and mutated together with the booking status.
type Calendar struct {
	PropertyID property.ID
	Occupied   []Occupancy
	events.EventRecorder
}

func NewCalendar(id property.ID, occupied []Occupancy) *Calendar {
	c := &Calendar{PropertyID: id, Occupied: append([]Occupancy(nil), occupied...)}
	c.sort()
	return c
}

// Load reads a property's occupancies from the store.
func Load(ctx context.Context, store Store, id property.ID) (*Calendar, error) {
	occupied, err := store.OccupiedRanges(ctx, id)
	if err != nil {
		return nil, err
	}
	return NewCalendar(id, occupied), nil
}

func (c *Calendar) OccupiedRanges() []daterange.DateRange {
	out := make([]daterange.DateRange, 0, len(c.Occupied))
	for _, o := range c.Occupied {
		out = append(out, o.Range)
	}
	return out
}

func (c *Calendar) IsOccupied(r daterange.DateRange) bool {
	return c.Conflicts(r, "") != nil
}

// Conflicts returns the first occupancy overlapping r, ignoring the one held by exclude.
func (c *Calendar) Conflicts(r daterange.DateRange, exclude string) *Occupancy {
	for i := range c.Occupied {
		o := c.Occupied[i]
		if exclude != "" && o.BookingID == exclude {
			continue
		}
		if o.Range.Overlaps(r) {
			return &o
		}
	}
	return nil
}

func (c *Calendar) CanReserve(r daterange.DateRange, exclude string) bool {
	return c.Conflicts(r, exclude) == nil
}

func (c *Calendar) Reserve(r daterange.DateRange, bookingID string, now time.Time) error {
	if !c.CanReserve(r, bookingID) {
		c.Record(CalendarOverbookingPreventedEvent(c.PropertyID, r, bookingID, now))
		return ErrOverlappingRange
	}
	c.Occupied = append(c.Occupied, Occupancy{BookingID: bookingID, Range: r})
	c.sort()
	c.Record(CalendarBlockedEvent(c.PropertyID, r, bookingID, now))
	return nil
}

func (c *Calendar) Release(bookingID string, now time.Time) error {
	idx := c.indexOf(bookingID)
	if idx == -1 {
		return ErrRangeNotFound
	}
	removed := c.Occupied[idx]
	c.Occupied = append(c.Occupied[:idx], c.Occupied[idx+1:]...)
	c.Record(CalendarReleasedEvent(c.PropertyID, removed.Range, bookingID, now))
	return nil
}

// Move swaps the range held by bookingID for r; the old range does not count as a conflict.
func (c *Calendar) Move(bookingID string, r daterange.DateRange, now time.Time) error {
	idx := c.indexOf(bookingID)
	if idx == -1 {
		return ErrRangeNotFound
	}
	if !c.CanReserve(r, bookingID) {
		c.Record(CalendarOverbookingPreventedEvent(c.PropertyID, r, bookingID, now))
		return ErrOverlappingRange
	}
	old := c.Occupied[idx].Range
	c.Occupied[idx].Range = r
	c.sort()
	c.Record(CalendarReleasedEvent(c.PropertyID, old, bookingID, now))
	c.Record(CalendarBlockedEvent(c.PropertyID, r, bookingID, now))
	return nil
}

// Compact merges overlapping and back-to-back ranges, optionally clipped to window.
func (c *Calendar) Compact(window *daterange.DateRange) []daterange.DateRange {
	var out []daterange.DateRange
	for _, o := range c.Occupied {
		r := o.Range
		if window != nil {
			clipped, ok := r.Clip(*window)
			if !ok {
				continue
			}
			r = clipped
		}
		if n := len(out); n > 0 {
			if merged, ok := out[n-1].Merge(r); ok {
				out[n-1] = merged
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

// BlockedDates lists each occupied night, optionally limited to window.
func (c *Calendar) BlockedDates(window *daterange.DateRange) []time.Time {
	var out []time.Time
	for _, r := range c.Compact(window) {
		out = append(out, r.Dates()...)
	}
	return out
}

func (c *Calendar) indexOf(bookingID string) int {
	for i, o := range c.Occupied {
		if o.BookingID == bookingID {
			return i
		}
	}
	return -1
}

func (c *Calendar) sort() {
	sort.SliceStable(c.Occupied, func(i, j int) bool {
		return c.Occupied[i].Range.CheckIn.Before(c.Occupied[j].Range.CheckIn)
	})
}
