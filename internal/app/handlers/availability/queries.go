package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"staybook/internal/app/dto"
	"staybook/internal/app/middleware"
	"staybook/internal/app/queries"
	domainavailability "staybook/internal/domain/availability"
	"staybook/internal/domain/pricing"
	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
)

const (
	getAvailabilityKey   = "availability.get"
	checkAvailabilityKey = "availability.check"
	quoteKey             = "availability.quote"
)

// GetAvailabilityQuery lists blocked dates, optionally limited to [From, To).
type GetAvailabilityQuery struct {
	PropertyID string `validate:"required"`
	From       string `validate:"omitempty,datetime=2006-01-02"`
	To         string `validate:"omitempty,datetime=2006-01-02"`
}

func (q GetAvailabilityQuery) Key() string { return getAvailabilityKey }

type CheckAvailabilityQuery struct {
	PropertyID string `validate:"required"`
	CheckIn    string `validate:"required,datetime=2006-01-02"`
	CheckOut   string `validate:"required,datetime=2006-01-02"`
}

func (q CheckAvailabilityQuery) Key() string { return checkAvailabilityKey }

type QuoteQuery struct {
	PropertyID string `validate:"required"`
	CheckIn    string `validate:"required,datetime=2006-01-02"`
	CheckOut   string `validate:"required,datetime=2006-01-02"`
	GuestCount int    `validate:"min=1,max=64"`
}

func (q QuoteQuery) Key() string { return quoteKey }

// Handlers serve lock-free reads. Their answers may be stale by the time a
// booking is confirmed; confirmation re-checks under the property lock.
type Handlers struct {
	Catalog property.Catalog
	Store   domainavailability.Store
	Pricing pricing.Calculator
	Now     func() time.Time
}

func (h *Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

func (h *Handlers) Get() queries.Handler[GetAvailabilityQuery, dto.Availability] {
	return queries.HandlerFunc[GetAvailabilityQuery, dto.Availability](func(ctx context.Context, q GetAvailabilityQuery) (dto.Availability, error) {
		prop, err := h.Catalog.Property(ctx, property.ID(q.PropertyID))
		if err != nil {
			return dto.Availability{}, err
		}
		window, err := parseWindow(q.From, q.To)
		if err != nil {
			return dto.Availability{}, err
		}
		cal, err := domainavailability.Load(ctx, h.Store, prop.ID)
		if err != nil {
			return dto.Availability{}, err
		}
		return dto.MapAvailability(cal, window), nil
	})
}

func (h *Handlers) Check() queries.Handler[CheckAvailabilityQuery, dto.AvailabilityCheck] {
	return queries.HandlerFunc[CheckAvailabilityQuery, dto.AvailabilityCheck](func(ctx context.Context, q CheckAvailabilityQuery) (dto.AvailabilityCheck, error) {
		prop, err := h.Catalog.Property(ctx, property.ID(q.PropertyID))
		if err != nil {
			return dto.AvailabilityCheck{}, err
		}
		in, err := daterange.ParseDate(q.CheckIn)
		if err != nil {
			return dto.AvailabilityCheck{}, fmt.Errorf("%w: %v", middleware.ErrValidation, err)
		}
		out, err := daterange.ParseDate(q.CheckOut)
		if err != nil {
			return dto.AvailabilityCheck{}, fmt.Errorf("%w: %v", middleware.ErrValidation, err)
		}
		// An inverted range is answered, not rejected.
		req := domainavailability.Request{Range: daterange.DateRange{CheckIn: in, CheckOut: out}}
		res, err := domainavailability.NewChecker(h.Store, h.now).Check(ctx, prop, req)
		if err != nil {
			return dto.AvailabilityCheck{}, err
		}
		return dto.AvailabilityCheck{
			PropertyID: string(prop.ID),
			CheckIn:    q.CheckIn,
			CheckOut:   q.CheckOut,
			Available:  res.Available,
			Reason:     string(res.Reason),
		}, nil
	})
}

func (h *Handlers) Quote() queries.Handler[QuoteQuery, dto.Quote] {
	return queries.HandlerFunc[QuoteQuery, dto.Quote](func(ctx context.Context, q QuoteQuery) (dto.Quote, error) {
		prop, err := h.Catalog.Property(ctx, property.ID(q.PropertyID))
		if err != nil {
			return dto.Quote{}, err
		}
		dr, err := daterange.Parse(q.CheckIn, q.CheckOut)
		if err != nil {
			return dto.Quote{}, err
		}
		calc := h.Pricing
		if calc == nil {
			calc = pricing.StandardCalculator{}
		}
		price, err := calc.Quote(ctx, pricing.QuoteInput{
			PricePerNight: prop.PricePerNight,
			Range:         dr,
			PropertyType:  prop.Type,
			Guests:        q.GuestCount,
		})
		if err != nil {
			return dto.Quote{}, err
		}
		return dto.Quote{
			PropertyID:   string(prop.ID),
			PropertyType: string(prop.Type),
			CheckIn:      q.CheckIn,
			CheckOut:     q.CheckOut,
			GuestCount:   q.GuestCount,
			Price:        dto.MapPriceBreakdown(price),
		}, nil
	})
}

func parseWindow(from, to string) (*daterange.DateRange, error) {
	if from == "" && to == "" {
		return nil, nil
	}
	if from == "" || to == "" {
		return nil, fmt.Errorf("%w: from and to must be given together", middleware.ErrValidation)
	}
	window, err := daterange.Parse(from, to)
	if err != nil {
		if errors.Is(err, daterange.ErrInvalidRange) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", middleware.ErrValidation, err)
	}
	return &window, nil
}
