package ginserver

import (
	"context"
	"fmt"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/dto"
	bookingapp "staybook/internal/app/handlers/booking"
	"staybook/internal/app/middleware"
	"staybook/internal/app/queries"
	servicebooking "staybook/internal/app/services/booking"
	domainbooking "staybook/internal/domain/booking"
)

// BookingService is the coordinator surface the REST handlers drive.
type BookingService interface {
	CreateBooking(ctx context.Context, p servicebooking.CreateParams) (dto.Booking, error)
	ModifyBooking(ctx context.Context, bookingID string, p servicebooking.ModifyParams) (dto.Booking, error)
	CancelBooking(ctx context.Context, bookingID string, actor domainbooking.Actor, reason domainbooking.CancelReason) (dto.Booking, error)
}

type BookingHandler struct {
	Bookings BookingService
	Queries  queries.Bus
}

var _ BookingHTTP = BookingHandler{}

type createBookingRequest struct {
	PropertyID string `json:"property_id"`
	GuestID    string `json:"guest_id"`
	CheckIn    string `json:"check_in"`
	CheckOut   string `json:"check_out"`
	GuestCount int    `json:"guest_count"`
	Notes      string `json:"notes"`
}

type modifyBookingRequest struct {
	CheckIn    *string `json:"check_in"`
	CheckOut   *string `json:"check_out"`
	GuestCount *int    `json:"guest_count"`
	Notes      *string `json:"notes"`
}

type cancelBookingRequest struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason"`
}

func (h BookingHandler) Create(c *gin.Context) {
	var req createBookingRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.GuestID == "" {
		req.GuestID = c.GetHeader("X-Guest-ID")
	}
	booking, err := h.Bookings.CreateBooking(c.Request.Context(), servicebooking.CreateParams{
		PropertyID:     req.PropertyID,
		GuestID:        req.GuestID,
		CheckIn:        req.CheckIn,
		CheckOut:       req.CheckOut,
		GuestCount:     req.GuestCount,
		Notes:          req.Notes,
		IdempotencyKey: c.GetHeader("Idempotency-Key"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, booking)
}

func (h BookingHandler) Get(c *gin.Context) {
	result, err := queries.Ask[bookingapp.GetBookingQuery, dto.Booking](c.Request.Context(), h.Queries, bookingapp.GetBookingQuery{BookingID: c.Param("id")})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) Modify(c *gin.Context) {
	var req modifyBookingRequest
	if !bindJSON(c, &req) {
		return
	}
	booking, err := h.Bookings.ModifyBooking(c.Request.Context(), c.Param("id"), servicebooking.ModifyParams{
		CheckIn:    req.CheckIn,
		CheckOut:   req.CheckOut,
		GuestCount: req.GuestCount,
		Notes:      req.Notes,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

// Cancel accepts an empty body; the actor then defaults to the guest.
func (h BookingHandler) Cancel(c *gin.Context) {
	var req cancelBookingRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	actor := domainbooking.Actor(req.Actor)
	if actor == "" {
		actor = domainbooking.ActorGuest
	}
	booking, err := h.Bookings.CancelBooking(c.Request.Context(), c.Param("id"), actor, domainbooking.CancelReason(req.Reason))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

func (h BookingHandler) ListByProperty(c *gin.Context) {
	query := bookingapp.ListPropertyBookingsQuery{PropertyID: c.Param("id"), Status: c.Query("status")}
	result, err := queries.Ask[bookingapp.ListPropertyBookingsQuery, dto.BookingCollection](c.Request.Context(), h.Queries, query)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) ListByGuest(c *gin.Context) {
	query := bookingapp.ListGuestBookingsQuery{GuestID: c.Param("id")}
	result, err := queries.Ask[bookingapp.ListGuestBookingsQuery, dto.BookingCollection](c.Request.Context(), h.Queries, query)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		writeError(c, fmt.Errorf("%w: malformed request body: %v", middleware.ErrValidation, err))
		return false
	}
	return true
}
