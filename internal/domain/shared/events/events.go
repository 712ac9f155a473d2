package events

import "time"

// DomainEvent is a fact recorded by an aggregate and later relayed through the outbox.
type DomainEvent interface {
	EventName() string
	AggregateID() string
	OccurredAt() time.Time
}

// EventRecorder is embedded by aggregates that buffer events until their unit of work commits.
type EventRecorder struct {
	pending []DomainEvent
}

func (r *EventRecorder) Record(event DomainEvent) {
	if event == nil {
		return
	}
	r.pending = append(r.pending, event)
}

func (r *EventRecorder) PendingEvents() []DomainEvent {
	out := make([]DomainEvent, len(r.pending))
	copy(out, r.pending)
	return out
}

func (r *EventRecorder) ClearEvents() {
	r.pending = nil
}

// Drain returns the buffered events and empties the buffer.
func (r *EventRecorder) Drain() []DomainEvent {
	out := r.PendingEvents()
	r.ClearEvents()
	return out
}
