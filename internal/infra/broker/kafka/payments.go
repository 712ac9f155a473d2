package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"staybook/internal/app/handlers/payments"
	"staybook/internal/app/middleware"
	domainbooking "staybook/internal/domain/booking"
)

var errMalformed = errors.New("kafka: malformed payment event")

// PaymentProcessor is satisfied by *payments.Processor.
type PaymentProcessor interface {
	Process(ctx context.Context, ev payments.Event) (payments.Outcome, error)
}

// PaymentHandler decodes payment events, either raw JSON or wrapped in a
// CloudEvents envelope, and feeds them to the processor.
type PaymentHandler struct {
	Processor PaymentProcessor
	Logger    *slog.Logger
}

var _ MessageHandler = (*PaymentHandler)(nil)

func (h *PaymentHandler) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	ctx = otel.GetTextMapPropagator().Extract(ctx, headerCarrier(msg.Headers))
	ev, err := DecodePaymentEvent(msg.Value)
	if err != nil {
		h.logger().Warn("dropping payment message", "offset", msg.Offset, "err", err)
		return nil
	}
	out, err := h.Processor.Process(ctx, ev)
	switch {
	case err == nil:
		h.logger().Info("payment event processed",
			"event_id", ev.ID, "type", ev.Type, "booking_id", ev.BookingID,
			"duplicate", out.Duplicate, "conflict", out.Conflict)
		return nil
	case isPermanent(err):
		h.logger().Warn("payment event rejected", "event_id", ev.ID, "type", ev.Type, "booking_id", ev.BookingID, "err", err)
		return nil
	default:
		return err
	}
}

func (h *PaymentHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

type envelope struct {
	SpecVersion string          `json:"specversion"`
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Data        json.RawMessage `json:"data"`
}

// DecodePaymentEvent accepts either a bare event or a CloudEvents envelope
// whose data holds one. Envelope id and type fill fields the data omits, and
// a trailing version suffix on the type (".v1") is dropped.
func DecodePaymentEvent(raw []byte) (payments.Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return payments.Event{}, fmt.Errorf("%w: %v", errMalformed, err)
	}
	var ev payments.Event
	if env.SpecVersion == "" {
		if err := json.Unmarshal(raw, &ev); err != nil {
			return payments.Event{}, fmt.Errorf("%w: %v", errMalformed, err)
		}
		return ev, nil
	}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return payments.Event{}, fmt.Errorf("%w: data: %v", errMalformed, err)
		}
	}
	if ev.ID == "" {
		ev.ID = env.ID
	}
	if ev.Type == "" {
		ev.Type = env.Type
	}
	ev.Type = stripVersion(ev.Type)
	return ev, nil
}

func stripVersion(eventType string) string {
	i := strings.LastIndex(eventType, ".v")
	if i <= 0 || i+2 == len(eventType) {
		return eventType
	}
	for _, r := range eventType[i+2:] {
		if r < '0' || r > '9' {
			return eventType
		}
	}
	return eventType[:i]
}

func isPermanent(err error) bool {
	return errors.Is(err, middleware.ErrValidation) ||
		errors.Is(err, payments.ErrUnknownEvent) ||
		errors.Is(err, domainbooking.ErrInvalidPayment) ||
		errors.Is(err, domainbooking.ErrNotFound)
}

type headerCarrier []*sarama.RecordHeader

var _ propagation.TextMapCarrier = headerCarrier(nil)

func (c headerCarrier) Get(key string) string {
	for _, h := range c {
		if h != nil && strings.EqualFold(string(h.Key), key) {
			return string(h.Value)
		}
	}
	return ""
}

func (c headerCarrier) Set(string, string) {}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for _, h := range c {
		if h != nil {
			keys = append(keys, string(h.Key))
		}
	}
	return keys
}
