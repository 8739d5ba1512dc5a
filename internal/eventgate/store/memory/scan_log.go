package memory

import (
	"context"
	"sync"

	"github.com/BrandonDHaskell/eventgate/server/internal/eventgate/store"
)

// ScanLog is an in-memory append-only log of scan decisions.
// It is intended for use in tests and dev environments.
type ScanLog struct {
	mu     sync.Mutex
	events []store.ScanEvent
}

func NewScanLog() *ScanLog {
	return &ScanLog{}
}

func (s *ScanLog) RecordScan(_ context.Context, ev store.ScanEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

// Events returns a copy of all recorded events.  Test-only helper.
func (s *ScanLog) Events() []store.ScanEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.ScanEvent, len(s.events))
	copy(out, s.events)
	return out
}
