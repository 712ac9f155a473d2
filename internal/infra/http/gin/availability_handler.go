package ginserver

import (
	"fmt"
	"net/http"
	"strconv"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/dto"
	availabilityapp "staybook/internal/app/handlers/availability"
	"staybook/internal/app/middleware"
	"staybook/internal/app/queries"
)

type AvailabilityHandler struct {
	Queries queries.Bus
}

var _ AvailabilityHTTP = AvailabilityHandler{}

func (h AvailabilityHandler) Calendar(c *gin.Context) {
	query := availabilityapp.GetAvailabilityQuery{PropertyID: c.Param("id"), From: c.Query("from"), To: c.Query("to")}
	result, err := queries.Ask[availabilityapp.GetAvailabilityQuery, dto.Availability](c.Request.Context(), h.Queries, query)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AvailabilityHandler) Check(c *gin.Context) {
	query := availabilityapp.CheckAvailabilityQuery{PropertyID: c.Param("id"), CheckIn: c.Query("check_in"), CheckOut: c.Query("check_out")}
	result, err := queries.Ask[availabilityapp.CheckAvailabilityQuery, dto.AvailabilityCheck](c.Request.Context(), h.Queries, query)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AvailabilityHandler) Quote(c *gin.Context) {
	guests := 1
	if raw := c.Query("guest_count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(c, fmt.Errorf("%w: guest_count must be an integer", middleware.ErrValidation))
			return
		}
		guests = n
	}
	query := availabilityapp.QuoteQuery{PropertyID: c.Param("id"), CheckIn: c.Query("check_in"), CheckOut: c.Query("check_out"), GuestCount: guests}
	result, err := queries.Ask[availabilityapp.QuoteQuery, dto.Quote](c.Request.Context(), h.Queries, query)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
