// Package memory implements the in-memory facility registry store. It is the
// authoritative backend for a browser-style session and the transactional
// engine reused by the durable snapshot backends.
package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"flexdetect/pkg/domain"
)

type state struct {
	facilities map[string]domain.Facility
	// order preserves insertion order for stable enumeration; display order is
	// user-observable and must not reshuffle on unrelated updates.
	order []string
}

func newState() state {
	return state{facilities: make(map[string]domain.Facility)}
}

func (s state) clone() state {
	cloned := newState()
	for id, f := range s.facilities {
		cloned.facilities[id] = domain.CloneFacility(f)
	}
	cloned.order = append([]string(nil), s.order...)
	return cloned
}

// Store provides an in-memory transactional registry for facility records.
type Store struct {
	mu    sync.RWMutex
	state state
	nowFn func() time.Time
}

// NewStore constructs an empty in-memory store.
func NewStore() *Store {
	return &Store{
		state: newState(),
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

// SetNowFunc overrides the timestamp source. Intended for tests.
func (s *Store) SetNowFunc(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = now
}

func newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

// Tx represents a mutation set applied to the store state.
type Tx struct {
	state   *state
	changes []domain.Change
	now     time.Time
}

func (tx *Tx) recordChange(change domain.Change) {
	tx.changes = append(tx.changes, change)
}

// CreateFacility stores a new facility within the transaction, assigning a
// fresh identity when none is supplied. The store performs no field
// validation; callers are responsible for draft validity.
func (tx *Tx) CreateFacility(f domain.Facility) (domain.Facility, error) {
	if f.ID == "" {
		f.ID = newID()
	}
	if _, exists := tx.state.facilities[f.ID]; exists {
		return domain.Facility{}, fmt.Errorf("facility %q already exists", f.ID)
	}
	f.CreatedAt = tx.now
	f.UpdatedAt = tx.now
	tx.state.facilities[f.ID] = domain.CloneFacility(f)
	tx.state.order = append(tx.state.order, f.ID)
	tx.recordChange(domain.Change{Entity: domain.EntityFacility, Action: domain.ActionCreate, After: domain.CloneFacility(f)})
	return domain.CloneFacility(f), nil
}

// UpdateFacility mutates a facility using the provided mutator function. The
// identity is never reassigned; the mutator sees a copy and the result is
// stored back atomically.
func (tx *Tx) UpdateFacility(id string, mutator func(*domain.Facility) error) (domain.Facility, error) {
	current, ok := tx.state.facilities[id]
	if !ok {
		return domain.Facility{}, domain.NotFoundError{Entity: domain.EntityFacility, ID: id}
	}
	before := domain.CloneFacility(current)
	working := domain.CloneFacility(current)
	if err := mutator(&working); err != nil {
		return domain.Facility{}, err
	}
	working.ID = id
	working.CreatedAt = current.CreatedAt
	working.UpdatedAt = tx.now
	tx.state.facilities[id] = domain.CloneFacility(working)
	tx.recordChange(domain.Change{Entity: domain.EntityFacility, Action: domain.ActionUpdate, Before: before, After: domain.CloneFacility(working)})
	return domain.CloneFacility(working), nil
}

// DeleteFacility removes a facility from the transaction state.
func (tx *Tx) DeleteFacility(id string) error {
	current, ok := tx.state.facilities[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityFacility, ID: id}
	}
	delete(tx.state.facilities, id)
	for i, existing := range tx.state.order {
		if existing == id {
			tx.state.order = append(tx.state.order[:i], tx.state.order[i+1:]...)
			break
		}
	}
	tx.recordChange(domain.Change{Entity: domain.EntityFacility, Action: domain.ActionDelete, Before: domain.CloneFacility(current)})
	return nil
}

// FindFacility retrieves a facility by id from the transaction snapshot.
func (tx *Tx) FindFacility(id string) (domain.Facility, bool) {
	f, ok := tx.state.facilities[id]
	if !ok {
		return domain.Facility{}, false
	}
	return domain.CloneFacility(f), true
}

type view struct {
	state *state
}

// ListFacilities returns all facilities in insertion order.
func (v view) ListFacilities() []domain.Facility {
	out := make([]domain.Facility, 0, len(v.state.order))
	for _, id := range v.state.order {
		out = append(out, domain.CloneFacility(v.state.facilities[id]))
	}
	return out
}

// FindFacility retrieves a facility by id from the snapshot.
func (v view) FindFacility(id string) (domain.Facility, bool) {
	f, ok := v.state.facilities[id]
	if !ok {
		return domain.Facility{}, false
	}
	return domain.CloneFacility(f), true
}

// RunInTransaction executes fn within a transactional copy of the store state.
// The committed state is swapped in only when fn succeeds, so a failed
// transaction can never leave the registry partially mutated.
func (s *Store) RunInTransaction(_ context.Context, fn func(domain.Transaction) error) ([]domain.Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.clone()
	tx := &Tx{state: &working, now: s.nowFn()}
	if err := fn(tx); err != nil {
		return nil, err
	}
	s.state = working
	return tx.changes, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(domain.TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	return fn(view{state: &snapshot})
}

// GetFacility retrieves a facility by id from committed state.
func (s *Store) GetFacility(id string) (domain.Facility, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.state.facilities[id]
	if !ok {
		return domain.Facility{}, false
	}
	return domain.CloneFacility(f), true
}

// ListFacilities returns all facilities from committed state in insertion order.
func (s *Store) ListFacilities() []domain.Facility {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Facility, 0, len(s.state.order))
	for _, id := range s.state.order {
		out = append(out, domain.CloneFacility(s.state.facilities[id]))
	}
	return out
}

// Snapshot captures the full store state for durable backends.
type Snapshot struct {
	Facilities []domain.Facility `json:"facilities"`
}

// ExportState returns a deep-copied snapshot of committed state in insertion order.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{Facilities: make([]domain.Facility, 0, len(s.state.order))}
	for _, id := range s.state.order {
		snap.Facilities = append(snap.Facilities, domain.CloneFacility(s.state.facilities[id]))
	}
	return snap
}

// ImportState replaces committed state with the snapshot contents, preserving
// the snapshot's ordering as insertion order.
func (s *Store) ImportState(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := newState()
	for _, f := range snap.Facilities {
		if f.ID == "" {
			continue
		}
		if _, exists := next.facilities[f.ID]; exists {
			continue
		}
		next.facilities[f.ID] = domain.CloneFacility(f)
		next.order = append(next.order, f.ID)
	}
	s.state = next
}
