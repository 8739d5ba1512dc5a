package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/BrandonDHaskell/eventgate/server/internal/db"
	"github.com/BrandonDHaskell/eventgate/server/internal/eventgate/store"
)

type ScanLog struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewScanLog(db *sql.DB, writer *dbpkg.Worker) *ScanLog {
	return &ScanLog{db: db, writer: writer}
}

func (s *ScanLog) RecordScan(ctx context.Context, ev store.ScanEvent) error {
	if ev.DecidedAt.IsZero() {
		ev.DecidedAt = time.Now().UTC()
	}

	var participantID any
	if ev.ParticipantID != nil {
		participantID = *ev.ParticipantID
	}

	var allowed int
	if ev.Allowed {
		allowed = 1
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO scan_events(
  cpf, participant_id, segment, direction, gate_id,
  decision_allowed, decision, message, decided_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);
`,
			ev.CPF, participantID, string(ev.Segment), string(ev.Direction), nullIfEmpty(ev.GateID),
			allowed, ev.Decision, ev.Message, ev.DecidedAt.UTC().UnixMilli(),
		); err != nil {
			return fmt.Errorf("RecordScan insert: %w", err)
		}
		return nil
	})
}
