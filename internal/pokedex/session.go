// Package pokedex owns the per-identity view of the app: the loaded catalog,
// the user's collection and the membership of every entry shown.
package pokedex

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"pokedex/internal/collection"
	"pokedex/internal/pokemon"
)

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

var (
	ErrStaleLoad      = errors.New("catalog load superseded")
	ErrNoIdentity     = errors.New("no signed-in identity")
	ErrUnknownPokemon = errors.New("pokemon not in catalog")
)

type CatalogLoader interface {
	Load(ctx context.Context, identity string) ([]pokemon.Entry, error)
}

// EntryView is a catalog entry annotated with the viewer's ownership.
type EntryView struct {
	pokemon.Entry
	Owned bool `json:"owned"`
}

// Snapshot describes the session without its entries.
type Snapshot struct {
	Identity  string `json:"identity"`
	Seq       uint64 `json:"seq"`
	Status    Status `json:"status"`
	Entries   int    `json:"entries"`
	LastError string `json:"last_error,omitempty"`
	// CollectionReady is false until the collection of a signed-in identity
	// has been fetched.
	CollectionReady bool `json:"collection_ready"`
}

// Session holds state for one identity. Every identity change or reload bumps
// seq; a load only commits if seq and identity still match when it finishes.
type Session struct {
	loader  CatalogLoader
	records *collection.Service
	runs    pokemon.RunRepository
	now     func() time.Time

	mu          sync.RWMutex
	identity    string
	seq         uint64
	status      Status
	lastErr     string
	catalog     []pokemon.Entry
	owned       []collection.Record
	ownedReady  bool
	memberships map[string]*collection.Membership
}

// NewSession returns an idle session. runs may be nil.
func NewSession(loader CatalogLoader, records *collection.Service, runs pokemon.RunRepository) *Session {
	return &Session{
		loader:      loader,
		records:     records,
		runs:        runs,
		now:         time.Now,
		status:      StatusIdle,
		memberships: map[string]*collection.Membership{},
	}
}

func (s *Session) Identity() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Identity:  s.identity,
		Seq:       s.seq,
		Status:    s.status,
		Entries:         len(s.catalog),
		LastError:       s.lastErr,
		CollectionReady: s.ownedReady,
	}
}

// Catalog returns the committed catalog. Entries are shared and must not be mutated.
func (s *Session) Catalog() []pokemon.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]pokemon.Entry(nil), s.catalog...)
}

func (s *Session) Collection() []collection.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]collection.Record{}, s.owned...)
}

// Search filters the catalog by name and marks entries present in the
// collection.
func (s *Session) Search(query string) []EntryView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owned := make(map[string]bool, len(s.owned))
	for _, rec := range s.owned {
		owned[rec.Name] = true
	}
	matches := pokemon.Filter(s.catalog, query)
	views := make([]EntryView, 0, len(matches))
	for _, e := range matches {
		views = append(views, EntryView{Entry: e, Owned: owned[e.Name]})
	}
	return views
}

func (s *Session) Entry(name string) (pokemon.Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return pokemon.FindByName(s.catalog, name)
}

// SetIdentity switches the session to identity and reloads. The collection
// and all memberships are cleared before loading.
func (s *Session) SetIdentity(ctx context.Context, identity string) error {
	s.mu.Lock()
	s.identity = identity
	s.owned = nil
	s.ownedReady = false
	dropped := s.memberships
	s.memberships = map[string]*collection.Membership{}
	seq := s.begin()
	s.mu.Unlock()

	for name, m := range dropped {
		m.Reset(identity, name)
	}
	return s.load(ctx, seq, identity)
}

// Reload re-fetches the catalog and collection for the current identity.
func (s *Session) Reload(ctx context.Context) error {
	s.mu.Lock()
	identity := s.identity
	seq := s.begin()
	s.mu.Unlock()

	return s.load(ctx, seq, identity)
}

// invalidate makes any in-flight load stale.
func (s *Session) invalidate() {
	s.mu.Lock()
	s.seq++
	s.mu.Unlock()
}

// begin must be called with mu held.
func (s *Session) begin() uint64 {
	s.seq++
	s.status = StatusLoading
	return s.seq
}

func (s *Session) load(ctx context.Context, seq uint64, identity string) error {
	run := s.startRun(ctx, seq, identity)

	entries, err := s.loader.Load(ctx, identity)

	var owned []collection.Record
	if err == nil && identity != "" {
		owned, err = s.records.List(ctx, identity)
		if err != nil {
			err = fmt.Errorf("fetch collection: %w", err)
		}
	}

	s.mu.Lock()
	if s.seq != seq || s.identity != identity {
		current := s.seq
		s.mu.Unlock()
		log.Printf("discarding stale catalog load identity=%s seq=%d current_seq=%d", identity, seq, current)
		s.finishRun(ctx, run, pokemon.RunStale, len(entries), nil)
		return ErrStaleLoad
	}
	if err != nil {
		s.status = StatusFailed
		s.lastErr = err.Error()
		s.mu.Unlock()
		log.Printf("catalog load failed identity=%s seq=%d error=%v", identity, seq, err)
		s.finishRun(ctx, run, pokemon.RunFailed, 0, err)
		return err
	}
	s.catalog = entries
	s.owned = owned
	s.ownedReady = identity != ""
	// memberships are rebuilt from the store on next use
	s.memberships = map[string]*collection.Membership{}
	s.status = StatusReady
	s.lastErr = ""
	s.mu.Unlock()

	s.finishRun(ctx, run, pokemon.RunCompleted, len(entries), nil)
	return nil
}

func (s *Session) startRun(ctx context.Context, seq uint64, identity string) *pokemon.LoadRun {
	if s.runs == nil {
		return nil
	}
	run := &pokemon.LoadRun{
		Identity:  identity,
		Seq:       seq,
		Status:    pokemon.RunRunning,
		StartedAt: s.now().UTC(),
	}
	id, err := s.runs.CreateRun(ctx, run)
	if err != nil {
		log.Printf("catalog load run create failed identity=%s seq=%d error=%v", identity, seq, err)
		return nil
	}
	run.ID = id
	return run
}

func (s *Session) finishRun(ctx context.Context, run *pokemon.LoadRun, status pokemon.RunStatus, entries int, loadErr error) {
	if run == nil {
		return
	}
	finished := s.now().UTC()
	run.Status = status
	run.Entries = entries
	run.FinishedAt = &finished
	if loadErr != nil {
		run.Error = loadErr.Error()
	}
	if err := s.runs.UpdateRun(context.WithoutCancel(ctx), run); err != nil {
		log.Printf("catalog load run update failed id=%s error=%v", run.ID, err)
	}
}

func (s *Session) membership(name string) (*collection.Membership, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memberships[name]
	if !ok {
		m = collection.NewMembership(s.identity, name)
		s.memberships[name] = m
	}
	return m, s.identity
}

// Ownership resolves whether the current identity owns name.
func (s *Session) Ownership(ctx context.Context, name string) (collection.State, error) {
	m, identity := s.membership(name)
	if identity == "" {
		return collection.StateUnknown, ErrNoIdentity
	}
	return m.Check(ctx, s.records)
}

// Add saves a catalog entry to the collection. Local state changes only after
// the store accepted the record.
func (s *Session) Add(ctx context.Context, name string) (*collection.Record, error) {
	entry, ok := s.Entry(name)
	if !ok {
		return nil, ErrUnknownPokemon
	}
	if _, err := s.Ownership(ctx, name); err != nil {
		return nil, err
	}

	m, identity := s.membership(name)
	rec, err := m.Add(ctx, s.records, entry)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.identity == identity && !hasRecord(s.owned, rec.Name) {
		s.owned = append(s.owned, *rec)
	}
	s.mu.Unlock()
	return rec, nil
}

func (s *Session) Remove(ctx context.Context, name string) error {
	if _, err := s.Ownership(ctx, name); err != nil {
		return err
	}

	m, identity := s.membership(name)
	if err := m.Remove(ctx, s.records); err != nil {
		return err
	}

	s.mu.Lock()
	if s.identity == identity {
		kept := s.owned[:0:0]
		for _, rec := range s.owned {
			if rec.Name != name {
				kept = append(kept, rec)
			}
		}
		s.owned = kept
	}
	s.mu.Unlock()
	return nil
}

func hasRecord(records []collection.Record, name string) bool {
	for _, rec := range records {
		if rec.Name == name {
			return true
		}
	}
	return false
}
