package dto

import (
	"staybook/internal/domain/availability"
	"staybook/internal/domain/shared/daterange"
)

type DateRange struct {
	CheckIn  string `json:"check_in"`
	CheckOut string `json:"check_out"`
}

func MapRange(r daterange.DateRange) DateRange {
	return DateRange{CheckIn: r.CheckIn.Format(daterange.Layout), CheckOut: r.CheckOut.Format(daterange.Layout)}
}

type Availability struct {
	PropertyID   string      `json:"property_id"`
	BlockedDates []string    `json:"blocked_dates"`
	Occupied     []DateRange `json:"occupied_ranges"`
}

func MapAvailability(cal *availability.Calendar, window *daterange.DateRange) Availability {
	out := Availability{PropertyID: string(cal.PropertyID), BlockedDates: []string{}, Occupied: []DateRange{}}
	for _, r := range cal.Compact(window) {
		out.Occupied = append(out.Occupied, MapRange(r))
	}
	for _, d := range cal.BlockedDates(window) {
		out.BlockedDates = append(out.BlockedDates, d.Format(daterange.Layout))
	}
	return out
}

type AvailabilityCheck struct {
	PropertyID string `json:"property_id"`
	CheckIn    string `json:"check_in"`
	CheckOut   string `json:"check_out"`
	Available  bool   `json:"available"`
	Reason     string `json:"reason,omitempty"`
}

type Quote struct {
	PropertyID   string         `json:"property_id"`
	PropertyType string         `json:"property_type"`
	CheckIn      string         `json:"check_in"`
	CheckOut     string         `json:"check_out"`
	GuestCount   int            `json:"guest_count"`
	Price        PriceBreakdown `json:"price"`
}
