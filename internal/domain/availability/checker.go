package availability

import (
	"context"
	"time"

	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
)

type Reason string

const (
	ReasonNone         Reason = ""
	ReasonInvalidRange Reason = "invalid_range"
	ReasonInvalidDate  Reason = "invalid_date"
	ReasonNotBookable  Reason = "not_bookable"
	ReasonDateConflict Reason = "date_conflict"
)

type Result struct {
	Available bool
	Reason    Reason
	// Conflict is the occupancy that blocked the range, if any.
	Conflict *Occupancy
}

func available() Result { return Result{Available: true} }

func rejected(reason Reason) Result { return Result{Reason: reason} }

// Request describes a range to test against a property's calendar.
type Request struct {
	Range daterange.DateRange
	// Exclude is the booking whose own occupancy must not count as a conflict.
	Exclude string
	// AllowCheckIn admits this check-in even when it is already in the past,
	// used when an ongoing stay keeps its start date.
	AllowCheckIn time.Time
}

// Evaluate applies the availability rules in order: invalid_range, invalid_date,
// not_bookable, date_conflict.
func Evaluate(p *property.Property, cal *Calendar, req Request, today time.Time) Result {
	if err := req.Range.Validate(); err != nil {
		return rejected(ReasonInvalidRange)
	}
	if req.Range.CheckIn.Before(daterange.Day(today)) {
		if req.AllowCheckIn.IsZero() || !req.Range.CheckIn.Equal(daterange.Day(req.AllowCheckIn)) {
			return rejected(ReasonInvalidDate)
		}
	}
	if p == nil || !p.Type.Bookable() {
		return rejected(ReasonNotBookable)
	}
	if cal != nil {
		if o := cal.Conflicts(req.Range, req.Exclude); o != nil {
			res := rejected(ReasonDateConflict)
			res.Conflict = o
			return res
		}
	}
	return available()
}

// Checker answers availability against a Store. Outside the property lock its
// answer is advisory only.
type Checker struct {
	Store Store
	Now   func() time.Time
}

func NewChecker(store Store, now func() time.Time) *Checker {
	if now == nil {
		now = time.Now
	}
	return &Checker{Store: store, Now: now}
}

func (c *Checker) Check(ctx context.Context, p *property.Property, req Request) (Result, error) {
	today := c.Now().UTC()
	// Input faults never need the store.
	if res := Evaluate(p, nil, req, today); !res.Available {
		return res, nil
	}
	cal, err := Load(ctx, c.Store, p.ID)
	if err != nil {
		return Result{}, err
	}
	return Evaluate(p, cal, req, today), nil
}
