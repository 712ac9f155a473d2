package booking

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

var validTransitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCancelled, StatusCompleted},
	StatusCancelled: {},
	StatusCompleted: {},
}

func ParseStatus(value string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := validTransitions[s]; !ok {
		return "", fmt.Errorf("booking: unknown status %q", value)
	}
	return s, nil
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// Occupies reports whether a booking in this status holds its range on the calendar.
func (s Status) Occupies() bool {
	return s == StatusConfirmed
}

type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "unpaid"
	PaymentPartial PaymentStatus = "partial"
	PaymentPaid    PaymentStatus = "paid"
)

func ParsePaymentStatus(value string) (PaymentStatus, error) {
	switch p := PaymentStatus(strings.ToLower(strings.TrimSpace(value))); p {
	case PaymentUnpaid, PaymentPartial, PaymentPaid:
		return p, nil
	default:
		return "", fmt.Errorf("booking: unknown payment status %q", value)
	}
}

type CancelReason string

const (
	ReasonGuestRequest   CancelReason = "guest_request"
	ReasonOwnerRequest   CancelReason = "owner_request"
	ReasonPaymentFailed  CancelReason = "payment_failed"
	ReasonPaymentTimeout CancelReason = "payment_timeout"
	ReasonLostRace       CancelReason = "lost_race"
)

type Actor string

const (
	ActorGuest  Actor = "guest"
	ActorOwner  Actor = "owner"
	ActorSystem Actor = "system"
)

// DefaultReason picks the cancellation reason implied by the actor.
func (a Actor) DefaultReason() CancelReason {
	switch a {
	case ActorOwner:
		return ReasonOwnerRequest
	case ActorSystem:
		return ReasonPaymentFailed
	default:
		return ReasonGuestRequest
	}
}
