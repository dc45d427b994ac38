package auth

import (
	"sync"
	"time"
)

type EventKind string

const (
	SignedIn  EventKind = "signed_in"
	SignedOut EventKind = "signed_out"
)

// IdentityEvent reports that UserID became or stopped being an active identity.
type IdentityEvent struct {
	Kind   EventKind
	UserID string
	At     time.Time
}

type broker struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(IdentityEvent)
}

func (b *broker) subscribe(fn func(IdentityEvent)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == nil {
		b.subs = map[int]func(IdentityEvent){}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// publish calls subscribers synchronously, in no particular order.
func (b *broker) publish(ev IdentityEvent) {
	b.mu.RLock()
	subs := make([]func(IdentityEvent), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.RUnlock()
	for _, fn := range subs {
		fn(ev)
	}
}
