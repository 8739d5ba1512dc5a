package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BrandonDHaskell/eventgate/server/internal/eventgate/store"
	"github.com/BrandonDHaskell/eventgate/server/internal/eventgate/types"
)

type sessionKey struct {
	participantID int64
	segment       types.Segment
}

// SessionStore is an in-memory session ledger.  It enforces the same
// (participant, segment, cycle) uniqueness as the SQLite schema.
type SessionStore struct {
	mu           sync.RWMutex
	participants *ParticipantStore
	history      map[sessionKey]*store.SegmentHistory
	nextID       int64
}

// NewSessionStore joins open sessions against participants.
func NewSessionStore(participants *ParticipantStore) *SessionStore {
	return &SessionStore{
		participants: participants,
		history:      make(map[sessionKey]*store.SegmentHistory),
	}
}

func (s *SessionStore) SegmentHistory(_ context.Context, participantID int64, seg types.Segment) (store.SegmentHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.history[sessionKey{participantID, seg}]
	if !ok {
		return store.SegmentHistory{}, nil
	}
	return store.SegmentHistory{
		Entries: append([]store.EntryRecord(nil), h.Entries...),
		Exits:   append([]store.ExitRecord(nil), h.Exits...),
	}, nil
}

func (s *SessionStore) AppendEntry(_ context.Context, rec store.EntryRecord) (store.EntryRecord, error) {
	if rec.CheckedInAt.IsZero() {
		rec.CheckedInAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.historyFor(rec.ParticipantID, rec.Segment)
	for _, e := range h.Entries {
		if e.Cycle == rec.Cycle {
			return store.EntryRecord{}, store.ErrConflict
		}
	}
	s.nextID++
	rec.ID = s.nextID
	h.Entries = append(h.Entries, rec)
	return rec, nil
}

func (s *SessionStore) AppendExit(_ context.Context, rec store.ExitRecord) (store.ExitRecord, error) {
	if rec.CheckedOutAt.IsZero() {
		rec.CheckedOutAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.historyFor(rec.ParticipantID, rec.Segment)
	for _, e := range h.Exits {
		if e.Cycle == rec.Cycle {
			return store.ExitRecord{}, store.ErrConflict
		}
	}
	s.nextID++
	rec.ID = s.nextID
	h.Exits = append(h.Exits, rec)
	return rec, nil
}

func (s *SessionStore) OpenSessions(_ context.Context) ([]store.OpenSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.OpenSession
	for k, h := range s.history {
		if !h.Open() {
			continue
		}
		p, ok := s.participants.byID(k.participantID)
		if !ok {
			continue
		}
		out = append(out, store.OpenSession{
			Participant: p,
			Segment:     k.segment,
			Since:       h.Entries[len(h.Entries)-1].CheckedInAt,
		})
	}

	// Map iteration is random; order by check-in like the SQL query.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Since.Equal(out[j].Since) {
			return out[i].Since.Before(out[j].Since)
		}
		return out[i].Participant.ID < out[j].Participant.ID
	})
	return out, nil
}

// must hold s.mu
func (s *SessionStore) historyFor(participantID int64, seg types.Segment) *store.SegmentHistory {
	k := sessionKey{participantID, seg}
	h, ok := s.history[k]
	if !ok {
		h = &store.SegmentHistory{}
		s.history[k] = h
	}
	return h
}
