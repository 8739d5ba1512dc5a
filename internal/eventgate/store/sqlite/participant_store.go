package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/BrandonDHaskell/eventgate/server/internal/db"
	"github.com/BrandonDHaskell/eventgate/server/internal/eventgate/store"
	"github.com/BrandonDHaskell/eventgate/server/internal/eventgate/types"
)

type ParticipantStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewParticipantStore(db *sql.DB, writer *dbpkg.Worker) *ParticipantStore {
	return &ParticipantStore{db: db, writer: writer}
}

func (s *ParticipantStore) FindByCPF(ctx context.Context, cpf string) (types.Participant, error) {
	cpf = strings.TrimSpace(cpf)
	if cpf == "" {
		return types.Participant{}, store.ErrNotFound
	}

	var (
		p         types.Participant
		kind      string
		corporate sql.NullString
		lab       sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
SELECT participant_id, cpf, name, kind, corporate_reason, laboratory
FROM participants
WHERE cpf = ?;
`, cpf).Scan(&p.ID, &p.CPF, &p.Name, &kind, &corporate, &lab)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Participant{}, store.ErrNotFound
	}
	if err != nil {
		return types.Participant{}, fmt.Errorf("FindByCPF query: %w", err)
	}

	p.Kind = types.ParticipantKind(kind)
	p.CorporateReason = corporate.String
	p.Laboratory = lab.String
	return p, nil
}

// Upsert inserts or updates by CPF and returns the row with its id.
func (s *ParticipantStore) Upsert(ctx context.Context, p types.Participant) (types.Participant, error) {
	p.CPF = strings.TrimSpace(p.CPF)
	if p.CPF == "" {
		return types.Participant{}, fmt.Errorf("Upsert: empty cpf")
	}
	if !p.Kind.Valid() {
		return types.Participant{}, fmt.Errorf("Upsert: %w: %q", types.ErrInvalidKind, p.Kind)
	}
	nowMs := time.Now().UTC().UnixMilli()

	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `
INSERT INTO participants(
  cpf, name, kind, corporate_reason, laboratory, created_at_ms, updated_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(cpf) DO UPDATE SET
  name             = excluded.name,
  kind             = excluded.kind,
  corporate_reason = excluded.corporate_reason,
  laboratory       = excluded.laboratory,
  updated_at_ms    = excluded.updated_at_ms
RETURNING participant_id;
`,
			p.CPF, p.Name, string(p.Kind), nullIfEmpty(p.CorporateReason), nullIfEmpty(p.Laboratory),
			nowMs, nowMs,
		).Scan(&p.ID); err != nil {
			return fmt.Errorf("Upsert participant %s: %w", p.CPF, err)
		}
		return nil
	})
	if err != nil {
		return types.Participant{}, err
	}
	return p, nil
}
