package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"staybook/internal/domain/shared/events"
)

type EventRecord struct {
	ID         string
	Name       string
	Payload    []byte
	OccurredAt time.Time
	Aggregate  string
	Headers    map[string]string
}

// Writer stages records; inside a unit of work they become visible on commit.
type Writer interface {
	Add(ctx context.Context, record EventRecord) error
}

// Flusher hands committed records to the relay.
type Flusher interface {
	Flush(ctx context.Context) error
}

type Outbox interface {
	Writer
	Flusher
}

type EventEncoder interface {
	Encode(ev events.DomainEvent) (EventRecord, error)
}

// HeaderSource adds transport headers (trace context) to encoded records.
type HeaderSource func(ctx context.Context) map[string]string

type JSONEventEncoder struct {
	IDGenerator func() string
}

func (e JSONEventEncoder) Encode(ev events.DomainEvent) (EventRecord, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return EventRecord{}, err
	}
	idGen := e.IDGenerator
	if idGen == nil {
		idGen = uuid.NewString
	}
	return EventRecord{
		ID:         idGen(),
		Name:       ev.EventName(),
		Payload:    payload,
		OccurredAt: ev.OccurredAt(),
		Aggregate:  ev.AggregateID(),
		Headers:    map[string]string{},
	}, nil
}

func RecordDomainEvents(ctx context.Context, box Writer, encoder EventEncoder, evs []events.DomainEvent) error {
	if box == nil || len(evs) == 0 {
		return nil
	}
	if encoder == nil {
		encoder = JSONEventEncoder{}
	}
	var headers map[string]string
	if src, ok := ctx.Value(headerKey{}).(HeaderSource); ok && src != nil {
		headers = src(ctx)
	}
	for _, ev := range evs {
		rec, err := encoder.Encode(ev)
		if err != nil {
			return err
		}
		for k, v := range headers {
			rec.Headers[k] = v
		}
		if err := box.Add(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

type headerKey struct{}

// WithHeaderSource makes RecordDomainEvents stamp records with headers taken from ctx.
func WithHeaderSource(ctx context.Context, src HeaderSource) context.Context {
	return context.WithValue(ctx, headerKey{}, src)
}
