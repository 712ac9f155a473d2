package dto

import (
	"time"

	domainbooking "staybook/internal/domain/booking"
	"staybook/internal/domain/shared/daterange"
)

type Booking struct {
	ID            string         `json:"id"`
	PropertyID    string         `json:"property_id"`
	GuestID       string         `json:"guest_id"`
	CheckIn       string         `json:"check_in"`
	CheckOut      string         `json:"check_out"`
	GuestCount    int            `json:"guest_count"`
	Status        string         `json:"status"`
	PaymentStatus string         `json:"payment_status"`
	TotalPrice    MoneyDTO       `json:"total_price"`
	DepositAmount MoneyDTO       `json:"deposit_amount"`
	AmountPaid    MoneyDTO       `json:"amount_paid"`
	Price         PriceBreakdown `json:"price"`
	CancelReason  string         `json:"cancel_reason,omitempty"`
	CancelledBy   string         `json:"cancelled_by,omitempty"`
	Notes         string         `json:"notes,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func (b Booking) AffectedProperty() string { return b.PropertyID }

type BookingCollection struct {
	Items []Booking `json:"items"`
}

// MapBooking renders b with lazy completion applied as of now.
func MapBooking(b *domainbooking.Booking, now time.Time) Booking {
	return Booking{
		ID:            string(b.ID),
		PropertyID:    string(b.PropertyID),
		GuestID:       b.GuestID,
		CheckIn:       b.Range.CheckIn.Format(daterange.Layout),
		CheckOut:      b.Range.CheckOut.Format(daterange.Layout),
		GuestCount:    b.Guests,
		Status:        string(b.EffectiveStatus(now)),
		PaymentStatus: string(b.PaymentStatus),
		TotalPrice:    MapMoney(b.TotalPrice()),
		DepositAmount: MapMoney(b.DepositAmount()),
		AmountPaid:    MapMoney(b.AmountPaid),
		Price:         MapPriceBreakdown(b.Price),
		CancelReason:  string(b.CancelReason),
		CancelledBy:   string(b.CancelledBy),
		Notes:         b.Notes,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}

func MapBookings(items []*domainbooking.Booking, now time.Time) BookingCollection {
	out := make([]Booking, 0, len(items))
	for _, b := range items {
		out = append(out, MapBooking(b, now))
	}
	return BookingCollection{Items: out}
}
