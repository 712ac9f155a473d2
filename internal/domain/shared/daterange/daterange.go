package daterange

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Layout is the wire format of a calendar date.
const Layout = "2006-01-02"

var (
	ErrInvalidRange = errors.New("daterange: checkout must be after checkin")
	ErrInvalidDate  = errors.New("daterange: malformed date")
)

// DateRange represents a half-open interval [checkIn, checkOut) of calendar dates.
type DateRange struct {
	CheckIn  time.Time
	CheckOut time.Time
}

// New builds a range from two instants, dropping any time-of-day component.
func New(checkIn, checkOut time.Time) (DateRange, error) {
	dr := DateRange{CheckIn: Day(checkIn), CheckOut: Day(checkOut)}
	if err := dr.Validate(); err != nil {
		return DateRange{}, err
	}
	return dr, nil
}

// Parse builds a range from two YYYY-MM-DD strings.
func Parse(checkIn, checkOut string) (DateRange, error) {
	in, err := ParseDate(checkIn)
	if err != nil {
		return DateRange{}, err
	}
	out, err := ParseDate(checkOut)
	if err != nil {
		return DateRange{}, err
	}
	return New(in, out)
}

// ParseDate parses a YYYY-MM-DD string into a UTC midnight.
func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse(Layout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	return t, nil
}

// Day truncates t to the calendar date it falls on, expressed as UTC midnight.
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (dr DateRange) Validate() error {
	if dr.CheckOut.IsZero() || dr.CheckIn.IsZero() {
		return ErrInvalidRange
	}
	if !dr.CheckOut.After(dr.CheckIn) {
		return ErrInvalidRange
	}
	return nil
}

func (dr DateRange) Nights() int {
	return int(dr.CheckOut.Sub(dr.CheckIn).Hours() / 24)
}

func (dr DateRange) Overlaps(other DateRange) bool {
	return dr.CheckIn.Before(other.CheckOut) && other.CheckIn.Before(dr.CheckOut)
}

func (dr DateRange) Equal(other DateRange) bool {
	return dr.CheckIn.Equal(other.CheckIn) && dr.CheckOut.Equal(other.CheckOut)
}

func (dr DateRange) Contains(other DateRange) bool {
	return (dr.CheckIn.Before(other.CheckIn) || dr.CheckIn.Equal(other.CheckIn)) &&
		(dr.CheckOut.After(other.CheckOut) || dr.CheckOut.Equal(other.CheckOut))
}

func (dr DateRange) ContainsDate(t time.Time) bool {
	t = Day(t)
	return (t.Equal(dr.CheckIn) || t.After(dr.CheckIn)) && t.Before(dr.CheckOut)
}

func (dr DateRange) Adjacent(other DateRange) bool {
	return dr.CheckOut.Equal(other.CheckIn) || dr.CheckIn.Equal(other.CheckOut)
}

func (dr DateRange) Merge(other DateRange) (DateRange, bool) {
	if !(dr.Overlaps(other) || dr.Adjacent(other)) {
		return DateRange{}, false
	}
	start := dr.CheckIn
	if other.CheckIn.Before(start) {
		start = other.CheckIn
	}
	end := dr.CheckOut
	if other.CheckOut.After(end) {
		end = other.CheckOut
	}
	return DateRange{CheckIn: start, CheckOut: end}, true
}

// Clip returns the part of dr that falls inside window.
func (dr DateRange) Clip(window DateRange) (DateRange, bool) {
	if !dr.Overlaps(window) {
		return DateRange{}, false
	}
	out := dr
	if window.CheckIn.After(out.CheckIn) {
		out.CheckIn = window.CheckIn
	}
	if window.CheckOut.Before(out.CheckOut) {
		out.CheckOut = window.CheckOut
	}
	return out, true
}

// Dates lists every night of the range, check-out excluded.
func (dr DateRange) Dates() []time.Time {
	nights := dr.Nights()
	if nights <= 0 {
		return nil
	}
	out := make([]time.Time, 0, nights)
	for d := dr.CheckIn; d.Before(dr.CheckOut); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

func (dr DateRange) String() string {
	return "[" + dr.CheckIn.Format(Layout) + ", " + dr.CheckOut.Format(Layout) + ")"
}

type wireRange struct {
	CheckIn  string `json:"check_in"`
	CheckOut string `json:"check_out"`
}

func (dr DateRange) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireRange{CheckIn: dr.CheckIn.Format(Layout), CheckOut: dr.CheckOut.Format(Layout)})
}

func (dr *DateRange) UnmarshalJSON(data []byte) error {
	var w wireRange
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	parsed, err := Parse(w.CheckIn, w.CheckOut)
	if err != nil {
		return err
	}
	*dr = parsed
	return nil
}
