package memory

import (
	"context"
	"sync"

	"staybook/internal/app/policies"
)

// Locker serializes holders of the same key within one process. A key's slot
// lives only while someone holds or waits for it.
type Locker struct {
	mu    sync.Mutex
	slots map[string]*lockSlot
}

type lockSlot struct {
	ch   chan struct{}
	refs int
}

func NewLocker() *Locker {
	return &Locker{slots: make(map[string]*lockSlot)}
}

var _ policies.Locker = (*Locker)(nil)

func (l *Locker) Acquire(ctx context.Context, key string) (policies.Release, error) {
	slot := l.enter(key)
	select {
	case slot.ch <- struct{}{}:
	case <-ctx.Done():
		l.leave(key)
		return nil, policies.ErrLockTimeout
	}
	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			<-slot.ch
			l.leave(key)
		})
		return nil
	}, nil
}

func (l *Locker) enter(key string) *lockSlot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *Locker) leave(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		return
	}
	if s.refs--; s.refs == 0 {
		delete(l.slots, key)
	}
}

// Keys reports how many keys are currently held or awaited.
func (l *Locker) Keys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
