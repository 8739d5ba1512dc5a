package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/BrandonDHaskell/eventgate/server/internal/db"
	"github.com/BrandonDHaskell/eventgate/server/internal/eventgate/store"
	"github.com/BrandonDHaskell/eventgate/server/internal/eventgate/types"
)

// SessionStore is the SQLite session ledger.  Reads go straight to the
// pool; writes go through the single-writer worker.
type SessionStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewSessionStore(db *sql.DB, writer *dbpkg.Worker) *SessionStore {
	return &SessionStore{db: db, writer: writer}
}

func (s *SessionStore) SegmentHistory(ctx context.Context, participantID int64, seg types.Segment) (store.SegmentHistory, error) {
	var h store.SegmentHistory

	rows, err := s.db.QueryContext(ctx, `
SELECT entry_id, cycle, checked_in_at_ms, COALESCE(gate_id, '')
FROM entry_records
WHERE participant_id = ? AND segment = ?
ORDER BY entry_id;
`, participantID, string(seg))
	if err != nil {
		return h, fmt.Errorf("SegmentHistory entries: %w", err)
	}
	for rows.Next() {
		rec := store.EntryRecord{ParticipantID: participantID, Segment: seg}
		var ms int64
		if err := rows.Scan(&rec.ID, &rec.Cycle, &ms, &rec.GateID); err != nil {
			_ = rows.Close()
			return h, fmt.Errorf("SegmentHistory scan entry: %w", err)
		}
		rec.CheckedInAt = time.UnixMilli(ms).UTC()
		h.Entries = append(h.Entries, rec)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return h, fmt.Errorf("SegmentHistory entries: %w", err)
	}
	_ = rows.Close()

	rows, err = s.db.QueryContext(ctx, `
SELECT exit_id, cycle, checked_out_at_ms, COALESCE(gate_id, '')
FROM exit_records
WHERE participant_id = ? AND segment = ?
ORDER BY exit_id;
`, participantID, string(seg))
	if err != nil {
		return h, fmt.Errorf("SegmentHistory exits: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		rec := store.ExitRecord{ParticipantID: participantID, Segment: seg}
		var ms int64
		if err := rows.Scan(&rec.ID, &rec.Cycle, &ms, &rec.GateID); err != nil {
			return h, fmt.Errorf("SegmentHistory scan exit: %w", err)
		}
		rec.CheckedOutAt = time.UnixMilli(ms).UTC()
		h.Exits = append(h.Exits, rec)
	}
	if err := rows.Err(); err != nil {
		return h, fmt.Errorf("SegmentHistory exits: %w", err)
	}

	return h, nil
}

func (s *SessionStore) AppendEntry(ctx context.Context, rec store.EntryRecord) (store.EntryRecord, error) {
	if rec.CheckedInAt.IsZero() {
		rec.CheckedInAt = time.Now().UTC()
	}

	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
INSERT INTO entry_records(participant_id, segment, cycle, checked_in_at_ms, gate_id)
VALUES (?, ?, ?, ?, ?);
`, rec.ParticipantID, string(rec.Segment), rec.Cycle, rec.CheckedInAt.UTC().UnixMilli(), nullIfEmpty(rec.GateID))
		if err != nil {
			if isUniqueViolation(err) {
				return store.ErrConflict
			}
			return fmt.Errorf("AppendEntry insert: %w", err)
		}
		rec.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return store.EntryRecord{}, err
	}
	return rec, nil
}

func (s *SessionStore) AppendExit(ctx context.Context, rec store.ExitRecord) (store.ExitRecord, error) {
	if rec.CheckedOutAt.IsZero() {
		rec.CheckedOutAt = time.Now().UTC()
	}

	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
INSERT INTO exit_records(participant_id, segment, cycle, checked_out_at_ms, gate_id)
VALUES (?, ?, ?, ?, ?);
`, rec.ParticipantID, string(rec.Segment), rec.Cycle, rec.CheckedOutAt.UTC().UnixMilli(), nullIfEmpty(rec.GateID))
		if err != nil {
			if isUniqueViolation(err) {
				return store.ErrConflict
			}
			return fmt.Errorf("AppendExit insert: %w", err)
		}
		rec.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return store.ExitRecord{}, err
	}
	return rec, nil
}

// OpenSessions returns every (participant, segment) with more check-ins than
// check-outs, oldest check-in first.
func (s *SessionStore) OpenSessions(ctx context.Context) ([]store.OpenSession, error) {
	rows, err := s.db.QueryContext(ctx, `
WITH e AS (
  SELECT participant_id, segment, COUNT(*) AS n, MAX(checked_in_at_ms) AS last_in
  FROM entry_records
  GROUP BY participant_id, segment
), x AS (
  SELECT participant_id, segment, COUNT(*) AS n
  FROM exit_records
  GROUP BY participant_id, segment
)
SELECT p.participant_id, p.cpf, p.name, p.kind,
       COALESCE(p.corporate_reason, ''), COALESCE(p.laboratory, ''),
       e.segment, e.last_in
FROM e
JOIN participants p ON p.participant_id = e.participant_id
LEFT JOIN x ON x.participant_id = e.participant_id AND x.segment = e.segment
WHERE e.n > COALESCE(x.n, 0)
ORDER BY e.last_in, p.participant_id, e.segment;
`)
	if err != nil {
		return nil, fmt.Errorf("OpenSessions query: %w", err)
	}
	defer rows.Close()

	var out []store.OpenSession
	for rows.Next() {
		var (
			sess    store.OpenSession
			kind    string
			segment string
			sinceMs int64
		)
		if err := rows.Scan(
			&sess.Participant.ID, &sess.Participant.CPF, &sess.Participant.Name, &kind,
			&sess.Participant.CorporateReason, &sess.Participant.Laboratory,
			&segment, &sinceMs,
		); err != nil {
			return nil, fmt.Errorf("OpenSessions scan: %w", err)
		}
		sess.Participant.Kind = types.ParticipantKind(kind)
		sess.Segment = types.Segment(segment)
		sess.Since = time.UnixMilli(sinceMs).UTC()
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("OpenSessions rows: %w", err)
	}
	return out, nil
}
