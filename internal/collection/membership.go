package collection

import (
	"context"
	"errors"
	"sync"

	"pokedex/internal/pokemon"
)

type State string

const (
	StateUnknown  State = "unknown"
	StateChecking State = "checking"
	StateOwned    State = "owned"
	StateNotOwned State = "not_owned"
)

var ErrMembershipUnknown = errors.New("membership not checked yet")

// Membership tracks whether one catalog entry is owned by one identity.
//
// The state only goes back to Unknown when Reset is called with a different
// identity or name. A check whose (identity, name) changed while in flight is
// dropped.
type Membership struct {
	mu       sync.Mutex
	identity string
	name     string
	gen      uint64
	state    State
}

func NewMembership(identity, name string) *Membership {
	return &Membership{identity: identity, name: name, state: StateUnknown}
}

func (m *Membership) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Membership) Reset(identity, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if identity == m.identity && name == m.name {
		return
	}
	m.identity = identity
	m.name = name
	m.gen++
	m.state = StateUnknown
}

// Check resolves an Unknown membership against the store. Resolved states are
// returned as they are.
func (m *Membership) Check(ctx context.Context, svc *Service) (State, error) {
	m.mu.Lock()
	if m.state == StateOwned || m.state == StateNotOwned {
		st := m.state
		m.mu.Unlock()
		return st, nil
	}
	m.state = StateChecking
	gen, identity, name := m.gen, m.identity, m.name
	m.mu.Unlock()

	owned, err := svc.IsOwned(ctx, name, identity)

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return m.state, nil
	}
	if err != nil {
		m.state = StateUnknown
		return m.state, err
	}
	if owned {
		m.state = StateOwned
	} else {
		m.state = StateNotOwned
	}
	return m.state, nil
}

// Add moves NotOwned to Owned. Any other state is rejected without touching
// the store.
func (m *Membership) Add(ctx context.Context, svc *Service, entry pokemon.Entry) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry.Name != m.name {
		return nil, ErrInvalidRecord
	}
	switch m.state {
	case StateOwned:
		return nil, ErrAlreadyOwned
	case StateNotOwned:
	default:
		return nil, ErrMembershipUnknown
	}

	rec, err := svc.Add(ctx, m.identity, entry)
	if errors.Is(err, ErrAlreadyOwned) {
		m.state = StateOwned
	}
	if err != nil {
		return nil, err
	}
	m.state = StateOwned
	return rec, nil
}

// Remove moves Owned to NotOwned.
func (m *Membership) Remove(ctx context.Context, svc *Service) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case StateNotOwned:
		return ErrNotFound
	case StateOwned:
	default:
		return ErrMembershipUnknown
	}

	err := svc.Remove(ctx, m.name, m.identity)
	if errors.Is(err, ErrNotFound) {
		m.state = StateNotOwned
	}
	if err != nil {
		return err
	}
	m.state = StateNotOwned
	return nil
}
