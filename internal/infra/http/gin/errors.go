package ginserver

import (
	"errors"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/handlers/payments"
	"staybook/internal/app/middleware"
	"staybook/internal/app/policies"
	domainbooking "staybook/internal/domain/booking"
	"staybook/internal/domain/pricing"
	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
	"staybook/internal/infra/catalog"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type errorMapping struct {
	status int
	code   string
	match  []error
}

// Order matters: the first mapping whose sentinel matches wins.
var errorMappings = []errorMapping{
	{http.StatusConflict, "date_conflict", []error{domainbooking.ErrDateConflict}},
	{http.StatusConflict, "terminal_state_violation", []error{domainbooking.ErrTerminalState}},
	{http.StatusConflict, "invalid_transition", []error{domainbooking.ErrInvalidTransition}},
	{http.StatusConflict, "version_conflict", []error{domainbooking.ErrVersionConflict}},
	{http.StatusConflict, "idempotency_key_reused", []error{middleware.ErrIdempotencyKeyReused}},
	{http.StatusUnprocessableEntity, "invalid_range", []error{domainbooking.ErrInvalidRange, daterange.ErrInvalidRange, pricing.ErrNightsRange}},
	{http.StatusUnprocessableEntity, "invalid_date", []error{domainbooking.ErrInvalidDate}},
	{http.StatusUnprocessableEntity, "not_bookable", []error{domainbooking.ErrNotBookable, pricing.ErrNotBookable}},
	{http.StatusUnprocessableEntity, "validation_error", []error{
		middleware.ErrValidation,
		daterange.ErrInvalidDate,
		domainbooking.ErrInvalidGuests,
		domainbooking.ErrGuestRequired,
		domainbooking.ErrInvalidPayment,
		pricing.ErrInvalidGuests,
		money.ErrInvalidAmount,
		money.ErrInvalidCurrency,
		money.ErrCurrencyMismatch,
		payments.ErrUnknownEvent,
	}},
	{http.StatusNotFound, "not_found", []error{domainbooking.ErrNotFound, property.ErrNotFound}},
	{http.StatusServiceUnavailable, "lock_timeout", []error{policies.ErrLockTimeout}},
	{http.StatusServiceUnavailable, "catalog_unavailable", []error{catalog.ErrUnavailable}},
}

func classify(err error) (int, string) {
	for _, m := range errorMappings {
		for _, target := range m.match {
			if errors.Is(err, target) {
				return m.status, m.code
			}
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

func writeError(c *gin.Context, err error) {
	status, code := classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		msg = http.StatusText(status)
	}
	if status == http.StatusServiceUnavailable {
		c.Header("Retry-After", "1")
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: code, Message: msg})
}
