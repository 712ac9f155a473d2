package memory

import (
	"context"
	"sync"

	"staybook/internal/app/policies"
)

// Inbox remembers processed event ids for the lifetime of the process.
type Inbox struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewInbox() *Inbox {
	return &Inbox{seen: make(map[string]struct{})}
}

var _ policies.Inbox = (*Inbox)(nil)

func (i *Inbox) Seen(ctx context.Context, eventID string) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	_, ok := i.seen[eventID]
	return ok, nil
}

func (i *Inbox) Record(ctx context.Context, eventID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.seen[eventID] = struct{}{}
	return nil
}
