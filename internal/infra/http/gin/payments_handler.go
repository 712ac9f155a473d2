package ginserver

import (
	"context"
	"net/http"

	gin "github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"staybook/internal/app/handlers/payments"
)

type PaymentProcessor interface {
	Process(ctx context.Context, ev payments.Event) (payments.Outcome, error)
}

// PaymentsHandler is the webhook twin of the Kafka payment consumer.
type PaymentsHandler struct {
	Processor PaymentProcessor
}

var _ PaymentsHTTP = PaymentsHandler{}

func (h PaymentsHandler) Receive(c *gin.Context) {
	var ev payments.Event
	if !bindJSON(c, &ev) {
		return
	}
	if ev.ID == "" {
		ev.ID = c.GetHeader("Idempotency-Key")
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	out, err := h.Processor.Process(c.Request.Context(), ev)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
