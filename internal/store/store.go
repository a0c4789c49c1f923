// Package store owns the editor state: it applies operations, keeps the
// derived margin in sync and persists every change.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/karcash/karcard/internal/storage"
	"github.com/karcash/karcard/pkg/karcard"
)

// StateKey is the storage key the root state is saved under
const StateKey = "karcard-state"

const saveTimeout = 5 * time.Second

// Status is runtime-only information that is never persisted
type Status struct {
	Processing bool   `json:"processing"`
	Error      string `json:"error,omitempty"`
}

// Snapshot is a read-only view of the store at one revision
type Snapshot struct {
	State              karcard.State `json:"state"`
	DiscountPercentage int           `json:"discountPercentage"`
	Revision           uint64        `json:"revision"`
	Status             Status        `json:"status"`
}

// Store holds the root state. Every mutation replaces the whole root.
// Subscribers see snapshots in revision order.
type Store struct {
	// pubMu is held from commit through publish
	pubMu sync.Mutex

	mu       sync.Mutex
	state    karcard.State
	revision uint64
	status   Status
	storage  storage.Storage

	subsMu  sync.RWMutex
	subs    map[int]func(Snapshot)
	nextSub int
}

// New creates a store, restoring the persisted state when it is present and
// valid. Anything else falls back to the defaults.
func New(ctx context.Context, st storage.Storage) *Store {
	s := &Store{
		state:   karcard.DefaultState(),
		storage: st,
		subs:    make(map[int]func(Snapshot)),
	}

	if st == nil {
		return s
	}

	data, err := st.Load(ctx, StateKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		log.Printf("📄 No saved state, starting from defaults")
	case err != nil:
		log.Printf("⚠️  Failed to load saved state, starting from defaults: %v", err)
	default:
		restored, err := karcard.Parse(data)
		if err != nil {
			log.Printf("⚠️  Discarding saved state: %v", err)
			break
		}
		s.state = *restored
		log.Printf("📄 Restored saved state (%s)", s.state.Format)
	}

	return s
}

// Apply runs op against the current state. A successful op is committed,
// then the margin invariant is settled as its own commit when needed.
func (s *Store) Apply(op Op) error {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.mu.Lock()

	next, err := op.apply(s.state.Clone())
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if err := karcard.Validate(&next); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}

	snaps := []Snapshot{s.commitLocked(next)}
	if settled, changed := settleMargin(next); changed {
		snaps = append(snaps, s.commitLocked(settled))
	}

	s.mu.Unlock()

	for _, snap := range snaps {
		s.publish(snap)
	}
	return nil
}

// settleMargin recomputes economyPrice from the two prices
func settleMargin(st karcard.State) (karcard.State, bool) {
	margin := karcard.Margin(st.Data)
	if st.Data.EconomyPrice == margin {
		return st, false
	}
	st.Data.EconomyPrice = margin
	return st, true
}

func (s *Store) commitLocked(next karcard.State) Snapshot {
	s.state = next
	s.revision++
	s.persistLocked()
	return s.snapshotLocked()
}

func (s *Store) persistLocked() {
	if s.storage == nil {
		return
	}

	data, err := s.state.ToJSON()
	if err != nil {
		log.Printf("⚠️  Failed to serialize state: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if err := s.storage.Save(ctx, StateKey, data); err != nil {
		// Non-critical, the next commit saves the full state again
		log.Printf("⚠️  Failed to save state: %v", err)
	}
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		State:              s.state.Clone(),
		DiscountPercentage: karcard.DiscountPercentage(s.state.Data),
		Revision:           s.revision,
		Status:             s.status,
	}
}

// Snapshot returns a copy of the current state and derived values
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers fn to be called after every commit and status change.
// fn must not mutate the store. The returned func removes the subscription.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subsMu.Unlock()

	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

func (s *Store) publish(snap Snapshot) {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()

	for _, fn := range s.subs {
		fn(snap)
	}
}

func (s *Store) setStatus(status Status) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.mu.Lock()
	s.status = status
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(snap)
}

// SetImage replaces the subject image reference
func (s *Store) SetImage(ref *string) error {
	return s.Apply(SetImage{Ref: ref})
}

// SetFormat switches the active format
func (s *Store) SetFormat(f karcard.Format) error {
	return s.Apply(SetFormat{Format: f})
}

// UpdateData replaces one vehicle data field
func (s *Store) UpdateData(field, value string) error {
	return s.Apply(UpdateData{Field: field, Value: value})
}

// UpdateConfig applies a loosely typed config update to the active layout
func (s *Store) UpdateConfig(field string, value json.RawMessage) error {
	op, err := ConfigUpdate(field, value)
	if err != nil {
		return err
	}
	return s.Apply(op)
}

// SetBackground replaces the active layout's background
func (s *Store) SetBackground(bg karcard.BackgroundConfig) error {
	return s.Apply(SetBackground{Background: bg})
}

// RestoreDefaults resets the active layout
func (s *Store) RestoreDefaults() error {
	return s.Apply(RestoreDefaults{})
}
