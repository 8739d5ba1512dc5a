package store

import (
	"context"

	"github.com/BrandonDHaskell/eventgate/server/internal/eventgate/types"
)

// ParticipantStore resolves scanned identities.  Registration writes are
// owned elsewhere; Upsert exists for seeding and tests.
type ParticipantStore interface {
	FindByCPF(ctx context.Context, cpf string) (types.Participant, error)
	Upsert(ctx context.Context, p types.Participant) (types.Participant, error)
}
