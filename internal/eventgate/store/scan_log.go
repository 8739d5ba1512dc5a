package store

import (
	"context"
	"time"

	"github.com/BrandonDHaskell/eventgate/server/internal/eventgate/types"
)

// ScanEvent captures one validation decision for the audit log.
// ParticipantID is nil when the CPF did not resolve.
type ScanEvent struct {
	CPF           string
	ParticipantID *int64
	Segment       types.Segment
	Direction     types.Direction
	GateID        string
	Allowed       bool
	Decision      string
	Message       string
	DecidedAt     time.Time
}

// ScanLog persists every decision as an append-only audit log.
type ScanLog interface {
	RecordScan(ctx context.Context, ev ScanEvent) error
}
