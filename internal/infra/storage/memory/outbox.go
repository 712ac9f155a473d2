package memory

import (
	"context"
	"sync"
	"time"

	appoutbox "staybook/internal/app/outbox"
	infraoutbox "staybook/internal/infra/outbox"
)

// Outbox keeps committed event records until the relay has published them.
type Outbox struct {
	mu      sync.Mutex
	entries []*outboxEntry
}

type outboxEntry struct {
	msg       infraoutbox.Message
	state     string
	next      time.Time
	claimedBy string
	lastError string
}

const (
	stateNew     = "NEW"
	stateClaimed = "CLAIMED"
	stateSent    = "SENT"
	stateFailed  = "FAILED"
)

func NewOutbox() *Outbox {
	return &Outbox{}
}

var (
	_ appoutbox.Writer  = (*Outbox)(nil)
	_ infraoutbox.Store = (*Outbox)(nil)
)

// Add stores a record outside any unit of work.
func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	o.append([]appoutbox.EventRecord{record}, time.Now().UTC())
	return nil
}

func (o *Outbox) append(records []appoutbox.EventRecord, now time.Time) {
	if len(records) == 0 {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, rec := range records {
		o.entries = append(o.entries, &outboxEntry{msg: infraoutbox.FromRecord(rec), state: stateNew, next: now})
	}
}

func (o *Outbox) Claim(ctx context.Context, workerID string) (*infraoutbox.Message, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := time.Now()
	for _, e := range o.entries {
		if (e.state == stateNew || e.state == stateFailed) && !e.next.After(now) {
			e.state = stateClaimed
			e.claimedBy = workerID
			msg := e.msg
			return &msg, nil
		}
	}
	return nil, nil
}

func (o *Outbox) MarkSent(ctx context.Context, id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, e := range o.entries {
		if e.msg.ID == id {
			o.entries = append(o.entries[:i], o.entries[i+1:]...)
			return nil
		}
	}
	return nil
}

func (o *Outbox) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, e := range o.entries {
		if e.msg.ID == id {
			e.state = stateFailed
			e.next = next
			e.lastError = errMsg
			e.msg.Attempts++
			return nil
		}
	}
	return nil
}

// Pending returns the names of records not yet published, oldest first.
func (o *Outbox) Pending() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.entries))
	for _, e := range o.entries {
		out = append(out, e.msg.Name)
	}
	return out
}
