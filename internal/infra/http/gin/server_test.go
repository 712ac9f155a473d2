package ginserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	gin "github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/app/dto"
	availabilityapp "staybook/internal/app/handlers/availability"
	bookingapp "staybook/internal/app/handlers/booking"
	"staybook/internal/app/handlers/payments"
	"staybook/internal/app/middleware"
	"staybook/internal/app/policies"
	"staybook/internal/app/queries"
	servicebooking "staybook/internal/app/services/booking"
	domainbooking "staybook/internal/domain/booking"
	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/infra/obs"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeBookings struct {
	create func(ctx context.Context, p servicebooking.CreateParams) (dto.Booking, error)
	modify func(ctx context.Context, id string, p servicebooking.ModifyParams) (dto.Booking, error)
	cancel func(ctx context.Context, id string, actor domainbooking.Actor, reason domainbooking.CancelReason) (dto.Booking, error)
}

func (f fakeBookings) CreateBooking(ctx context.Context, p servicebooking.CreateParams) (dto.Booking, error) {
	return f.create(ctx, p)
}

func (f fakeBookings) ModifyBooking(ctx context.Context, id string, p servicebooking.ModifyParams) (dto.Booking, error) {
	return f.modify(ctx, id, p)
}

func (f fakeBookings) CancelBooking(ctx context.Context, id string, actor domainbooking.Actor, reason domainbooking.CancelReason) (dto.Booking, error) {
	return f.cancel(ctx, id, actor, reason)
}

type processorFunc func(ctx context.Context, ev payments.Event) (payments.Outcome, error)

func (f processorFunc) Process(ctx context.Context, ev payments.Event) (payments.Outcome, error) {
	return f(ctx, ev)
}

func newRouter(bookings BookingService, bus queries.Bus, proc PaymentProcessor) *gin.Engine {
	return NewRouter(nil, obs.Middleware{}, obs.HealthHandlers{}, Handlers{
		Booking:      BookingHandler{Bookings: bookings, Queries: bus},
		Availability: AvailabilityHandler{Queries: bus},
		Payments:     PaymentsHandler{Processor: proc},
	})
}

func do(t *testing.T, r http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var out errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestCreateBooking_PassesHeadersAndReturnsCreated(t *testing.T) {
	var got servicebooking.CreateParams
	bookings := fakeBookings{create: func(_ context.Context, p servicebooking.CreateParams) (dto.Booking, error) {
		got = p
		return dto.Booking{ID: "b-1", PropertyID: p.PropertyID, Status: "pending"}, nil
	}}
	r := newRouter(bookings, queries.NewInMemoryBus(), nil)

	rec := do(t, r, http.MethodPost, "/api/v1/bookings",
		`{"property_id":"p-1","check_in":"2025-06-01","check_out":"2025-06-06","guest_count":2}`,
		map[string]string{"Idempotency-Key": "key-1", "X-Guest-ID": "g-1"})

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "key-1", got.IdempotencyKey)
	assert.Equal(t, "g-1", got.GuestID)
	assert.Equal(t, 2, got.GuestCount)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var body dto.Booking
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "b-1", body.ID)
}

func TestCreateBooking_ErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("confirm: %w", domainbooking.ErrDateConflict), http.StatusConflict, "date_conflict"},
		{domainbooking.ErrInvalidRange, http.StatusUnprocessableEntity, "invalid_range"},
		{daterange.ErrInvalidRange, http.StatusUnprocessableEntity, "invalid_range"},
		{domainbooking.ErrInvalidDate, http.StatusUnprocessableEntity, "invalid_date"},
		{domainbooking.ErrNotBookable, http.StatusUnprocessableEntity, "not_bookable"},
		{fmt.Errorf("%w: guest_id is required", middleware.ErrValidation), http.StatusUnprocessableEntity, "validation_error"},
		{property.ErrNotFound, http.StatusNotFound, "not_found"},
		{policies.ErrLockTimeout, http.StatusServiceUnavailable, "lock_timeout"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			bookings := fakeBookings{create: func(context.Context, servicebooking.CreateParams) (dto.Booking, error) {
				return dto.Booking{}, tc.err
			}}
			rec := do(t, newRouter(bookings, queries.NewInMemoryBus(), nil), http.MethodPost, "/api/v1/bookings",
				`{"property_id":"p-1","guest_id":"g-1","check_in":"2025-06-01","check_out":"2025-06-06","guest_count":2}`, nil)

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, decodeError(t, rec).Error)
		})
	}
}

func TestLockTimeoutSetsRetryAfter(t *testing.T) {
	bookings := fakeBookings{cancel: func(context.Context, string, domainbooking.Actor, domainbooking.CancelReason) (dto.Booking, error) {
		return dto.Booking{}, policies.ErrLockTimeout
	}}
	rec := do(t, newRouter(bookings, queries.NewInMemoryBus(), nil), http.MethodPut, "/api/v1/bookings/b-1/cancel", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestInternalErrorsHideDetails(t *testing.T) {
	bookings := fakeBookings{cancel: func(context.Context, string, domainbooking.Actor, domainbooking.CancelReason) (dto.Booking, error) {
		return dto.Booking{}, errors.New("mongo: connection reset by peer")
	}}
	rec := do(t, newRouter(bookings, queries.NewInMemoryBus(), nil), http.MethodPut, "/api/v1/bookings/b-1/cancel", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "mongo")
}

func TestMalformedBodyIsValidationError(t *testing.T) {
	rec := do(t, newRouter(fakeBookings{}, queries.NewInMemoryBus(), nil), http.MethodPost, "/api/v1/bookings", `{"guest_count":"two"}`, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "validation_error", decodeError(t, rec).Error)
}

func TestCancelBooking_DefaultsToGuestActor(t *testing.T) {
	var gotActor domainbooking.Actor
	var gotReason domainbooking.CancelReason
	bookings := fakeBookings{cancel: func(_ context.Context, id string, actor domainbooking.Actor, reason domainbooking.CancelReason) (dto.Booking, error) {
		gotActor, gotReason = actor, reason
		return dto.Booking{ID: id, Status: "cancelled"}, nil
	}}
	r := newRouter(bookings, queries.NewInMemoryBus(), nil)

	rec := do(t, r, http.MethodPut, "/api/v1/bookings/b-1/cancel", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domainbooking.ActorGuest, gotActor)
	assert.Empty(t, gotReason)

	rec = do(t, r, http.MethodPut, "/api/v1/bookings/b-1/cancel", `{"actor":"owner","reason":"owner_request"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domainbooking.ActorOwner, gotActor)
	assert.Equal(t, domainbooking.ReasonOwnerRequest, gotReason)
}

func TestModifyBooking_TerminalStateIsConflict(t *testing.T) {
	var got servicebooking.ModifyParams
	bookings := fakeBookings{modify: func(_ context.Context, _ string, p servicebooking.ModifyParams) (dto.Booking, error) {
		got = p
		return dto.Booking{}, domainbooking.ErrTerminalState
	}}
	rec := do(t, newRouter(bookings, queries.NewInMemoryBus(), nil), http.MethodPut, "/api/v1/bookings/b-1", `{"notes":"late arrival"}`, nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "terminal_state_violation", decodeError(t, rec).Error)
	require.NotNil(t, got.Notes)
	assert.Equal(t, "late arrival", *got.Notes)
	assert.Nil(t, got.CheckIn)
}

func TestQueriesAreRouted(t *testing.T) {
	bus := queries.NewInMemoryBus()
	queries.RegisterHandler(bus, availabilityapp.GetAvailabilityQuery{}.Key(),
		queries.HandlerFunc[availabilityapp.GetAvailabilityQuery, dto.Availability](func(_ context.Context, q availabilityapp.GetAvailabilityQuery) (dto.Availability, error) {
			return dto.Availability{PropertyID: q.PropertyID, BlockedDates: []string{"2025-06-01"}, Occupied: []dto.DateRange{}}, nil
		}))
	queries.RegisterHandler(bus, availabilityapp.QuoteQuery{}.Key(),
		queries.HandlerFunc[availabilityapp.QuoteQuery, dto.Quote](func(_ context.Context, q availabilityapp.QuoteQuery) (dto.Quote, error) {
			return dto.Quote{PropertyID: q.PropertyID, GuestCount: q.GuestCount}, nil
		}))
	queries.RegisterHandler(bus, bookingapp.GetBookingQuery{}.Key(),
		queries.HandlerFunc[bookingapp.GetBookingQuery, dto.Booking](func(_ context.Context, q bookingapp.GetBookingQuery) (dto.Booking, error) {
			return dto.Booking{}, fmt.Errorf("%w: %s", domainbooking.ErrNotFound, q.BookingID)
		}))
	queries.RegisterHandler(bus, bookingapp.ListGuestBookingsQuery{}.Key(),
		queries.HandlerFunc[bookingapp.ListGuestBookingsQuery, dto.BookingCollection](func(_ context.Context, q bookingapp.ListGuestBookingsQuery) (dto.BookingCollection, error) {
			return dto.BookingCollection{Items: []dto.Booking{{ID: "b-1", GuestID: q.GuestID}}}, nil
		}))
	r := newRouter(fakeBookings{}, bus, nil)

	rec := do(t, r, http.MethodGet, "/api/v1/properties/p-1/availability", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var avail dto.Availability
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &avail))
	assert.Equal(t, []string{"2025-06-01"}, avail.BlockedDates)

	rec = do(t, r, http.MethodGet, "/api/v1/properties/p-1/quote?check_in=2025-06-01&check_out=2025-06-06", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var quote dto.Quote
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &quote))
	assert.Equal(t, 1, quote.GuestCount)

	rec = do(t, r, http.MethodGet, "/api/v1/properties/p-1/quote?guest_count=many", "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, r, http.MethodGet, "/api/v1/bookings/b-404", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, r, http.MethodGet, "/api/v1/guests/g-1/bookings", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list dto.BookingCollection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, "g-1", list.Items[0].GuestID)
}

func TestPaymentWebhook_AssignsEventID(t *testing.T) {
	var got payments.Event
	proc := processorFunc(func(_ context.Context, ev payments.Event) (payments.Outcome, error) {
		got = ev
		return payments.Outcome{EventID: ev.ID}, nil
	})
	r := newRouter(fakeBookings{}, queries.NewInMemoryBus(), proc)

	rec := do(t, r, http.MethodPost, "/api/v1/payments/events",
		`{"type":"payment.deposit_succeeded","booking_id":"b-1"}`, map[string]string{"Idempotency-Key": "pay-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pay-1", got.ID)

	rec = do(t, r, http.MethodPost, "/api/v1/payments/events", `{"type":"payment.deposit_failed","booking_id":"b-2"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, got.ID)
	assert.NotEqual(t, "pay-1", got.ID)
}

func TestPaymentWebhook_UnknownTypeIsRejected(t *testing.T) {
	proc := processorFunc(func(context.Context, payments.Event) (payments.Outcome, error) {
		return payments.Outcome{}, payments.ErrUnknownEvent
	})
	rec := do(t, newRouter(fakeBookings{}, queries.NewInMemoryBus(), proc), http.MethodPost, "/api/v1/payments/events",
		`{"event_id":"e-1","type":"payment.refunded","booking_id":"b-1"}`, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHealthRoutes(t *testing.T) {
	r := NewRouter([]string{"https://staybook.example"}, obs.Middleware{}, obs.HealthHandlers{
		Ready: func(context.Context) error { return errors.New("store down") },
	}, Handlers{})

	assert.Equal(t, http.StatusOK, do(t, r, http.MethodGet, "/livez", "", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, r, http.MethodGet, "/readyz", "", nil).Code)
}
