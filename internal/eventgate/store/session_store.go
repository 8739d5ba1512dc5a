package store

import (
	"context"
	"time"

	"github.com/BrandonDHaskell/eventgate/server/internal/eventgate/types"
)

// EntryRecord is an immutable check-in.  Cycle numbers check-ins of one
// participant in one segment from 1.
type EntryRecord struct {
	ID            int64
	ParticipantID int64
	Segment       types.Segment
	Cycle         int
	CheckedInAt   time.Time
	GateID        string
}

// ExitRecord is an immutable check-out closing the entry with the same Cycle.
type ExitRecord struct {
	ID            int64
	ParticipantID int64
	Segment       types.Segment
	Cycle         int
	CheckedOutAt  time.Time
	GateID        string
}

// SegmentHistory holds one participant's records for one segment, each
// slice in insertion order.
type SegmentHistory struct {
	Entries []EntryRecord
	Exits   []ExitRecord
}

// Open reports whether the participant is currently inside the segment.
func (h SegmentHistory) Open() bool {
	return len(h.Entries) > len(h.Exits)
}

// OpenSession is a participant currently inside a segment.
type OpenSession struct {
	Participant types.Participant
	Segment     types.Segment
	Since       time.Time
}

// SessionStore is the append-only session ledger.  Append* return
// ErrConflict when a record with the same (participant, segment, cycle)
// already exists.
type SessionStore interface {
	SegmentHistory(ctx context.Context, participantID int64, seg types.Segment) (SegmentHistory, error)
	AppendEntry(ctx context.Context, rec EntryRecord) (EntryRecord, error)
	AppendExit(ctx context.Context, rec ExitRecord) (ExitRecord, error)
	OpenSessions(ctx context.Context) ([]OpenSession, error)
}
