package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BrandonDHaskell/eventgate/server/internal/eventgate/metrics"
	"github.com/BrandonDHaskell/eventgate/server/internal/eventgate/store"
	"github.com/BrandonDHaskell/eventgate/server/internal/eventgate/types"
)

// Publisher is the notifier side the registry drives.
type Publisher interface {
	Publish(snap types.Snapshot)
	MarkReady(initial types.Snapshot)
}

// PresenceRegistry is the live roster of who is on site.  It is built once
// per process by InitializeState and afterwards mutated only by the
// validation service.  A single RWMutex linearises every mutation, and the
// resulting snapshot is published before the lock is released so
// subscribers see mutations in order.
type PresenceRegistry struct {
	mu      sync.RWMutex
	lists   map[types.Category][]types.PresenceEntry
	version uint64
	ready   bool

	sessions  store.SessionStore
	publisher Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewPresenceRegistry(sessions store.SessionStore, pub Publisher, logger *slog.Logger, m *metrics.Metrics) *PresenceRegistry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &PresenceRegistry{
		lists:     make(map[types.Category][]types.PresenceEntry, len(types.Categories)),
		sessions:  sessions,
		publisher: pub,
		logger:    logger,
		metrics:   m,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// AddPresent inserts entry into category.  A structurally equal entry
// already in the list is ErrAlreadyPresent and nothing changes.
func (r *PresenceRegistry) AddPresent(category types.Category, entry types.PresenceEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if indexOf(r.lists[category], entry) >= 0 {
		return fmt.Errorf("%w: %s in %s/%s", ErrAlreadyPresent, entry.CPF, category, entry.Segment)
	}
	r.lists[category] = append(r.lists[category], entry)
	r.changedLocked(category)
	return nil
}

// RemovePresent deletes the structurally equal entry from category, or
// fails with ErrNotPresent.
func (r *PresenceRegistry) RemovePresent(category types.Category, entry types.PresenceEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.lists[category]
	i := indexOf(list, entry)
	if i < 0 {
		return fmt.Errorf("%w: %s in %s/%s", ErrNotPresent, entry.CPF, category, entry.Segment)
	}
	r.lists[category] = append(list[:i:i], list[i+1:]...)
	r.changedLocked(category)
	return nil
}

// Contains reports whether entry is listed under category.
func (r *PresenceRegistry) Contains(category types.Category, entry types.PresenceEntry) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return indexOf(r.lists[category], entry) >= 0
}

// Snapshot returns a copy of every list.
func (r *PresenceRegistry) Snapshot() types.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

// Count is the number of roster rows across all categories.
func (r *PresenceRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, l := range r.lists {
		n += len(l)
	}
	return n
}

// InitializeState rebuilds the roster from the ledger's open sessions and
// marks the publisher ready.  Replayed rows are not announced one by one;
// a single snapshot is published when anything was restored.  Rows already
// present are skipped, so a second call adds nothing.
func (r *PresenceRegistry) InitializeState(ctx context.Context) (int, error) {
	open, err := r.sessions.OpenSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("load open sessions: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	added := 0
	for category, entries := range r.rosterFrom(open) {
		for _, entry := range entries {
			if indexOf(r.lists[category], entry) >= 0 {
				continue
			}
			r.lists[category] = append(r.lists[category], entry)
			added++
		}
		r.metrics.SetPresent(string(category), len(r.lists[category]))
	}

	if added > 0 {
		r.version++
	}
	snap := r.snapshotLocked()
	if r.publisher != nil {
		if added > 0 {
			r.publisher.Publish(snap)
		}
		r.publisher.MarkReady(snap)
	}
	r.ready = true

	r.logger.Info("presence registry initialized", "open_sessions", len(open), "restored", added)
	return added, nil
}

// Ready reports whether InitializeState has completed.
func (r *PresenceRegistry) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ready
}

// Reconcile replaces the roster with the ledger's open sessions and
// returns how many rows were added or dropped.  One snapshot is published
// when anything changed.  Callers must keep ledger writers out until it
// returns.
func (r *PresenceRegistry) Reconcile(ctx context.Context) (int, error) {
	open, err := r.sessions.OpenSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("load open sessions: %w", err)
	}
	want := r.rosterFrom(open)

	r.mu.Lock()
	defer r.mu.Unlock()

	changed := 0
	for _, c := range types.Categories {
		for _, e := range r.lists[c] {
			if indexOf(want[c], e) < 0 {
				changed++
			}
		}
		for _, e := range want[c] {
			if indexOf(r.lists[c], e) < 0 {
				changed++
			}
		}
	}
	if changed == 0 {
		return 0, nil
	}

	r.lists = want
	for _, c := range types.Categories {
		r.metrics.SetPresent(string(c), len(r.lists[c]))
	}
	r.version++
	if r.publisher != nil {
		r.publisher.Publish(r.snapshotLocked())
	}

	r.logger.Warn("presence roster reconciled with session ledger", "changed", changed)
	return changed, nil
}

// rosterFrom projects open sessions into per-category lists, in ledger
// order and without duplicates.
func (r *PresenceRegistry) rosterFrom(open []store.OpenSession) map[types.Category][]types.PresenceEntry {
	lists := make(map[types.Category][]types.PresenceEntry, len(types.Categories))
	for _, s := range open {
		category, ok := types.CategoryFor(s.Participant.Kind)
		if !ok {
			r.logger.Warn("skipping open session with unknown participant kind",
				"participant_id", s.Participant.ID, "kind", s.Participant.Kind, "segment", s.Segment)
			continue
		}
		entry := types.ProjectPresence(s.Participant, s.Segment)
		if indexOf(lists[category], entry) >= 0 {
			continue
		}
		lists[category] = append(lists[category], entry)
	}
	return lists
}

// must hold r.mu for writing
func (r *PresenceRegistry) changedLocked(category types.Category) {
	r.version++
	r.metrics.SetPresent(string(category), len(r.lists[category]))
	if r.publisher != nil {
		r.publisher.Publish(r.snapshotLocked())
	}
}

// must hold r.mu
func (r *PresenceRegistry) snapshotLocked() types.Snapshot {
	return types.Snapshot{
		PharmacyRepresentatives: cloneEntries(r.lists[types.CategoryPharmacyRepresentatives], true),
		LaboratoryMembers:       cloneEntries(r.lists[types.CategoryLaboratoryMembers], true),
		Clients:                 cloneEntries(r.lists[types.CategoryClients], false),
		Laboratories:            cloneEntries(r.lists[types.CategoryLaboratories], false),
		Version:                 r.version,
		GeneratedAt:             r.now(),
	}
}

func cloneEntries(in []types.PresenceEntry, nonNil bool) []types.PresenceEntry {
	if len(in) == 0 {
		if nonNil {
			return []types.PresenceEntry{}
		}
		return nil
	}
	out := make([]types.PresenceEntry, len(in))
	copy(out, in)
	return out
}

func indexOf(list []types.PresenceEntry, e types.PresenceEntry) int {
	for i := range list {
		if list[i] == e {
			return i
		}
	}
	return -1
}
