package pokedex

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"pokedex/internal/auth"
	"pokedex/internal/collection"
	"pokedex/internal/pokemon"
)

const warmupTimeout = 2 * time.Minute

type sessionSlot struct {
	session  *Session
	ready    chan struct{}
	lastUsed atomic.Int64
}

func (s *sessionSlot) touch(now time.Time) {
	s.lastUsed.Store(now.UnixNano())
}

func (s *sessionSlot) loaded() bool {
	select {
	case <-s.ready:
		return true
	default:
		return false
	}
}

// Manager keeps one Session per identity. The empty identity is the
// signed-out view.
type Manager struct {
	loader  CatalogLoader
	records *collection.Service
	runs    pokemon.RunRepository
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	slots map[string]*sessionSlot
}

func NewManager(loader CatalogLoader, records *collection.Service, runs pokemon.RunRepository) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		loader:  loader,
		records: records,
		runs:    runs,
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
		slots:   map[string]*sessionSlot{},
	}
}

// Get returns the session for identity, creating it and waiting for its first
// load if needed. A failed first load still returns the session.
func (m *Manager) Get(ctx context.Context, identity string) (*Session, error) {
	slot := m.slot(identity)
	select {
	case <-slot.ready:
		return slot.session, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Manager) slot(identity string) *sessionSlot {
	m.mu.Lock()
	slot, ok := m.slots[identity]
	if ok {
		slot.touch(m.now())
		m.mu.Unlock()
		return slot
	}
	slot = &sessionSlot{
		session: NewSession(m.loader, m.records, m.runs),
		ready:   make(chan struct{}),
	}
	slot.touch(m.now())
	m.slots[identity] = slot
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer close(slot.ready)
		ctx, cancel := context.WithTimeout(m.ctx, warmupTimeout)
		defer cancel()
		// failures are logged and kept on the session
		_ = slot.session.SetIdentity(ctx, identity)
	}()
	return slot
}

// OnIdentityEvent reacts to sign-in and sign-out. Sign-in warms or refreshes
// the user's session; sign-out drops it and discards any load in flight.
func (m *Manager) OnIdentityEvent(ev auth.IdentityEvent) {
	if ev.UserID == "" {
		return
	}
	switch ev.Kind {
	case auth.SignedIn:
		m.mu.Lock()
		slot, ok := m.slots[ev.UserID]
		m.mu.Unlock()
		if !ok {
			m.slot(ev.UserID)
			return
		}
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			<-slot.ready
			ctx, cancel := context.WithTimeout(m.ctx, warmupTimeout)
			defer cancel()
			if err := slot.session.Reload(ctx); err != nil && !errors.Is(err, ErrStaleLoad) {
				log.Printf("session refresh failed identity=%s error=%v", ev.UserID, err)
			}
		}()
	case auth.SignedOut:
		m.mu.Lock()
		slot, ok := m.slots[ev.UserID]
		delete(m.slots, ev.UserID)
		m.mu.Unlock()
		if ok {
			slot.session.invalidate()
		}
	}
}

// EvictIdle drops signed-in sessions not used for longer than maxIdle and
// returns how many were dropped. Sessions still warming up and the signed-out
// session are kept.
func (m *Manager) EvictIdle(maxIdle time.Duration) int {
	cutoff := m.now().Add(-maxIdle).UnixNano()

	m.mu.Lock()
	var evicted []*sessionSlot
	for identity, slot := range m.slots {
		if identity == "" || !slot.loaded() || slot.lastUsed.Load() > cutoff {
			continue
		}
		delete(m.slots, identity)
		evicted = append(evicted, slot)
	}
	m.mu.Unlock()

	for _, slot := range evicted {
		slot.session.invalidate()
	}
	return len(evicted)
}

// RunEviction calls EvictIdle every interval until ctx is done.
func (m *Manager) RunEviction(ctx context.Context, interval, maxIdle time.Duration) {
	if maxIdle <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.EvictIdle(maxIdle); n > 0 {
				log.Printf("session eviction evicted=%d live=%d", n, m.Sessions())
			}
		}
	}
}

// Sessions returns the number of live sessions.
func (m *Manager) Sessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}

// Close cancels background loads and waits for them to finish.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
}
