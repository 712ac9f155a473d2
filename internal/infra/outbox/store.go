package outbox

import (
	"context"
	"time"

	appoutbox "staybook/internal/app/outbox"
)

// Message is an outbox record as seen by the relay.
type Message struct {
	ID         string
	Name       string
	Payload    []byte
	OccurredAt time.Time
	Aggregate  string
	Headers    map[string]string
	Attempts   int
}

func FromRecord(rec appoutbox.EventRecord) Message {
	headers := make(map[string]string, len(rec.Headers))
	for k, v := range rec.Headers {
		headers[k] = v
	}
	return Message{
		ID:         rec.ID,
		Name:       rec.Name,
		Payload:    rec.Payload,
		OccurredAt: rec.OccurredAt,
		Aggregate:  rec.Aggregate,
		Headers:    headers,
	}
}

// Store is the relay's view of a durable outbox. Claim returns nil when nothing is due.
type Store interface {
	Claim(ctx context.Context, workerID string) (*Message, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error
}
