package booking

import (
	"errors"

	"staybook/internal/domain/availability"
)

var (
	ErrDateConflict      = errors.New("booking: dates conflict with a confirmed booking")
	ErrInvalidRange      = errors.New("booking: check-out must be after check-in")
	ErrInvalidDate       = errors.New("booking: check-in is in the past")
	ErrNotBookable       = errors.New("booking: property is not bookable")
	ErrTerminalState     = errors.New("booking: booking is cancelled or completed")
	ErrNotFound          = errors.New("booking: not found")
	ErrInvalidTransition = errors.New("booking: invalid state transition")
	ErrInvalidGuests     = errors.New("booking: guest count must be positive")
	ErrGuestRequired     = errors.New("booking: guest id required")
	ErrVersionConflict   = errors.New("booking: concurrent update")
	ErrInvalidPayment    = errors.New("booking: paid amount must be between zero and the grand total")
)

// ReasonError maps a rejected availability answer to the booking error taxonomy.
func ReasonError(reason availability.Reason) error {
	switch reason {
	case availability.ReasonNone:
		return nil
	case availability.ReasonInvalidRange:
		return ErrInvalidRange
	case availability.ReasonInvalidDate:
		return ErrInvalidDate
	case availability.ReasonNotBookable:
		return ErrNotBookable
	default:
		return ErrDateConflict
	}
}
