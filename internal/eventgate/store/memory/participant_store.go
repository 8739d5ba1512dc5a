package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/BrandonDHaskell/eventgate/server/internal/eventgate/store"
	"github.com/BrandonDHaskell/eventgate/server/internal/eventgate/types"
)

type ParticipantStore struct {
	mu     sync.RWMutex
	byCPF  map[string]types.Participant
	nextID int64
}

// NewParticipantStore preloads ps.  Participants without an ID are numbered
// in order.
func NewParticipantStore(ps ...types.Participant) *ParticipantStore {
	s := &ParticipantStore{byCPF: make(map[string]types.Participant, len(ps))}
	for _, p := range ps {
		_, _ = s.Upsert(context.Background(), p)
	}
	return s
}

func (s *ParticipantStore) FindByCPF(_ context.Context, cpf string) (types.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byCPF[strings.TrimSpace(cpf)]
	if !ok {
		return types.Participant{}, store.ErrNotFound
	}
	return p, nil
}

func (s *ParticipantStore) Upsert(_ context.Context, p types.Participant) (types.Participant, error) {
	p.CPF = strings.TrimSpace(p.CPF)
	if !p.Kind.Valid() {
		return types.Participant{}, fmt.Errorf("%w: %q", types.ErrInvalidKind, p.Kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byCPF[p.CPF]; ok {
		p.ID = existing.ID
	} else if p.ID == 0 {
		s.nextID++
		p.ID = s.nextID
	}
	if p.ID > s.nextID {
		s.nextID = p.ID
	}
	s.byCPF[p.CPF] = p
	return p, nil
}

// byID is used by SessionStore to join open sessions.
func (s *ParticipantStore) byID(id int64) (types.Participant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.byCPF {
		if p.ID == id {
			return p, true
		}
	}
	return types.Participant{}, false
}
