package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/BrandonDHaskell/eventgate/server/internal/eventgate/metrics"
	"github.com/BrandonDHaskell/eventgate/server/internal/eventgate/store"
	"github.com/BrandonDHaskell/eventgate/server/internal/eventgate/types"
)

// SessionMode selects how many entry/exit cycles a participant may make in
// one segment.
type SessionMode string

const (
	// SessionModeSingle allows exactly one entry and one exit per segment
	// for the lifetime of the event.
	SessionModeSingle SessionMode = "single"
	// SessionModeReentry allows unlimited cycles; a new entry only needs
	// the previous one to be checked out.
	SessionModeReentry SessionMode = "reentry"
)

func ParseSessionMode(v string) (SessionMode, error) {
	switch m := SessionMode(strings.ToLower(strings.TrimSpace(v))); m {
	case SessionModeSingle, SessionModeReentry:
		return m, nil
	case "":
		return SessionModeSingle, nil
	}
	return "", ErrInvalidSessionMode
}

const (
	msgAccessGranted = "Access granted"
	msgExitRecorded  = "Exit recorded"
	decisionNotFound = "NOT_FOUND"
	decisionNotReady = "NOT_READY"
	decisionFault    = "CONSISTENCY_FAULT"
	tracerName       = "github.com/BrandonDHaskell/eventgate/server/internal/eventgate/service"
)

func msgAlreadyEntered(p types.Participant) string {
	return fmt.Sprintf("Access denied: CPF %s with ID %d has already been granted access", p.CPF, p.ID)
}

func msgNoCheckIn(p types.Participant) string {
	return fmt.Sprintf("Exit denied: no check-in record found for CPF %s", p.CPF)
}

func msgAlreadyLeft(p types.Participant) string {
	return fmt.Sprintf("Exit denied: CPF %s with ID %d has already checked out", p.CPF, p.ID)
}

type ValidationDeps struct {
	Participants store.ParticipantStore
	Sessions     store.SessionStore
	ScanLog      store.ScanLog // optional
	Registry     *PresenceRegistry
	Mode         SessionMode
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
}

// ValidationService decides check-ins and check-outs.  The read-decide-
// write-register sequence runs under a lock per (CPF, segment), so two
// gates scanning the same badge at once cannot both be admitted.  Every
// such sequence also holds gate for reading; roster repair takes it for
// writing so it sees a quiet ledger.
type ValidationService struct {
	participants store.ParticipantStore
	sessions     store.SessionStore
	scanLog      store.ScanLog
	registry     *PresenceRegistry
	mode         SessionMode
	locks        *keyedMutex
	gate         sync.RWMutex
	logger       *slog.Logger
	metrics      *metrics.Metrics
	tracer       trace.Tracer
	now          func() time.Time
}

func NewValidationService(d ValidationDeps) *ValidationService {
	mode := d.Mode
	if mode == "" {
		mode = SessionModeSingle
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ValidationService{
		participants: d.Participants,
		sessions:     d.Sessions,
		scanLog:      d.ScanLog,
		registry:     d.Registry,
		mode:         mode,
		locks:        newKeyedMutex(),
		logger:       logger,
		metrics:      d.Metrics,
		tracer:       otel.Tracer(tracerName),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *ValidationService) Mode() SessionMode { return s.mode }

// ValidateEntry checks cpf into seg.
func (s *ValidationService) ValidateEntry(ctx context.Context, cpf string, seg types.Segment) (types.Outcome, error) {
	return s.Decide(ctx, types.DirectionEntry, types.ScanRequest{CPF: cpf, Segment: string(seg)})
}

// ValidateExit checks cpf out of seg.
func (s *ValidationService) ValidateExit(ctx context.Context, cpf string, seg types.Segment) (types.Outcome, error) {
	return s.Decide(ctx, types.DirectionExit, types.ScanRequest{CPF: cpf, Segment: string(seg)})
}

// Decide validates one gate scan.  Refusals come back as an Outcome with
// Allowed=false; errors are reserved for bad input, unknown identities,
// persistence failures and ErrStateConsistency.
func (s *ValidationService) Decide(ctx context.Context, dir types.Direction, req types.ScanRequest) (types.Outcome, error) {
	start := time.Now()

	cpf := strings.TrimSpace(req.CPF)
	if cpf == "" {
		return types.Outcome{}, ErrInvalidCPF
	}
	seg, err := types.ParseSegment(req.Segment)
	if err != nil {
		return types.Outcome{}, err
	}
	gateID := strings.TrimSpace(req.GateID)

	// Scans before the roster is rebuilt would race the replay.
	if !s.registry.Ready() {
		s.metrics.ObserveDecision(string(dir), string(seg), decisionNotReady, start)
		return types.Outcome{}, ErrNotReady
	}

	ctx, span := s.tracer.Start(ctx, "ValidationService.Decide", trace.WithAttributes(
		attribute.String("eventgate.direction", string(dir)),
		attribute.String("eventgate.segment", string(seg)),
	))
	defer span.End()

	outcome, err := s.decide(ctx, dir, cpf, seg, gateID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		decision := "ERROR"
		switch {
		case errors.Is(err, ErrParticipantNotFound):
			decision = decisionNotFound
		case errors.Is(err, ErrStateConsistency):
			decision = decisionFault
			s.reconcile(ctx)
		}
		s.metrics.ObserveDecision(string(dir), string(seg), decision, start)
		return types.Outcome{}, err
	}

	span.SetAttributes(attribute.String("eventgate.decision", string(outcome.Decision)))
	s.metrics.ObserveDecision(string(dir), string(seg), string(outcome.Decision), start)
	return outcome, nil
}

func (s *ValidationService) decide(ctx context.Context, dir types.Direction, cpf string, seg types.Segment, gateID string) (types.Outcome, error) {
	p, err := s.participants.FindByCPF(ctx, cpf)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.recordScan(ctx, store.ScanEvent{
				CPF: cpf, Segment: seg, Direction: dir, GateID: gateID,
				Decision: decisionNotFound, Message: ErrParticipantNotFound.Error(),
			})
			return types.Outcome{}, fmt.Errorf("%w: cpf %s", ErrParticipantNotFound, cpf)
		}
		return types.Outcome{}, fmt.Errorf("resolve participant: %w", err)
	}

	category, ok := types.CategoryFor(p.Kind)
	if !ok {
		return types.Outcome{}, fmt.Errorf("%w: %q", ErrUnknownKind, p.Kind)
	}

	s.gate.RLock()
	defer s.gate.RUnlock()
	unlock := s.locks.Lock(string(seg) + "|" + p.CPF)
	defer unlock()

	h, err := s.sessions.SegmentHistory(ctx, p.ID, seg)
	if err != nil {
		return types.Outcome{}, fmt.Errorf("load segment history: %w", err)
	}

	var outcome types.Outcome
	if dir == types.DirectionEntry {
		outcome, err = s.enter(ctx, p, category, seg, gateID, h)
	} else {
		outcome, err = s.exit(ctx, p, category, seg, gateID, h)
	}
	if err != nil {
		if errors.Is(err, ErrStateConsistency) {
			s.recordScan(ctx, scanEventFor(p, seg, dir, gateID, types.Outcome{Decision: decisionFault, Message: err.Error()}))
		}
		return types.Outcome{}, err
	}

	s.recordScan(ctx, scanEventFor(p, seg, dir, gateID, outcome))
	return outcome, nil
}

func (s *ValidationService) enter(
	ctx context.Context,
	p types.Participant,
	category types.Category,
	seg types.Segment,
	gateID string,
	h store.SegmentHistory,
) (types.Outcome, error) {
	if !s.entryAllowed(h) {
		return deny(types.DenyEntry, msgAlreadyEntered(p)), nil
	}

	_, err := s.sessions.AppendEntry(ctx, store.EntryRecord{
		ParticipantID: p.ID,
		Segment:       seg,
		Cycle:         len(h.Entries) + 1,
		CheckedInAt:   s.now(),
		GateID:        gateID,
	})
	if errors.Is(err, store.ErrConflict) {
		// Another writer recorded this cycle first.
		return deny(types.DenyEntry, msgAlreadyEntered(p)), nil
	}
	if err != nil {
		return types.Outcome{}, fmt.Errorf("append entry: %w", err)
	}

	if err := s.registry.AddPresent(category, types.ProjectPresence(p, seg)); err != nil {
		return types.Outcome{}, s.fault(p, seg, types.DirectionEntry, err)
	}

	s.logger.Info("entry granted", "participant_id", p.ID, "segment", seg, "gate_id", gateID)
	return types.Outcome{Allowed: true, Decision: types.AllowEntry, Message: msgAccessGranted}, nil
}

func (s *ValidationService) exit(
	ctx context.Context,
	p types.Participant,
	category types.Category,
	seg types.Segment,
	gateID string,
	h store.SegmentHistory,
) (types.Outcome, error) {
	if len(h.Entries) == 0 {
		return deny(types.DenyExit, msgNoCheckIn(p)), nil
	}
	if !h.Open() {
		return deny(types.DenyExit, msgAlreadyLeft(p)), nil
	}

	_, err := s.sessions.AppendExit(ctx, store.ExitRecord{
		ParticipantID: p.ID,
		Segment:       seg,
		Cycle:         len(h.Exits) + 1,
		CheckedOutAt:  s.now(),
		GateID:        gateID,
	})
	if errors.Is(err, store.ErrConflict) {
		return deny(types.DenyExit, msgAlreadyLeft(p)), nil
	}
	if err != nil {
		return types.Outcome{}, fmt.Errorf("append exit: %w", err)
	}

	if err := s.registry.RemovePresent(category, types.ProjectPresence(p, seg)); err != nil {
		return types.Outcome{}, s.fault(p, seg, types.DirectionExit, err)
	}

	s.logger.Info("exit recorded", "participant_id", p.ID, "segment", seg, "gate_id", gateID)
	return types.Outcome{Allowed: true, Decision: types.AllowExit, Message: msgExitRecorded}, nil
}

func (s *ValidationService) entryAllowed(h store.SegmentHistory) bool {
	if s.mode == SessionModeReentry {
		return !h.Open()
	}
	return len(h.Entries) == 0
}

// fault reports a registry update that failed after the ledger write
// committed.  The ledger stays authoritative; Decide repairs the roster
// with reconcile once the per-key lock is released.
func (s *ValidationService) fault(p types.Participant, seg types.Segment, dir types.Direction, cause error) error {
	s.metrics.IncConsistencyFault()
	s.logger.Error("presence registry diverged from session ledger",
		"participant_id", p.ID, "segment", seg, "direction", dir, "err", cause)
	return fmt.Errorf("%w: %w", ErrStateConsistency, cause)
}

// reconcile rebuilds the roster from the ledger with every validation
// paused.  The request's cancellation is dropped so a departing client
// cannot leave the roster half repaired.
func (s *ValidationService) reconcile(ctx context.Context) {
	s.gate.Lock()
	defer s.gate.Unlock()

	n, err := s.registry.Reconcile(context.WithoutCancel(ctx))
	if err != nil {
		s.logger.Error("presence roster repair failed", "err", err)
		return
	}
	s.logger.Info("presence roster repaired", "changed", n)
}

// recordScan appends the decision to the audit log.  A failed audit write
// is logged and counted but never changes the decision already taken.
func (s *ValidationService) recordScan(ctx context.Context, ev store.ScanEvent) {
	if s.scanLog == nil {
		return
	}
	if ev.DecidedAt.IsZero() {
		ev.DecidedAt = s.now()
	}
	if err := s.scanLog.RecordScan(ctx, ev); err != nil {
		s.metrics.IncScanLogFailure()
		s.logger.Warn("scan log write failed", "segment", ev.Segment, "direction", ev.Direction, "err", err)
	}
}

func scanEventFor(p types.Participant, seg types.Segment, dir types.Direction, gateID string, o types.Outcome) store.ScanEvent {
	id := p.ID
	return store.ScanEvent{
		CPF:           p.CPF,
		ParticipantID: &id,
		Segment:       seg,
		Direction:     dir,
		GateID:        gateID,
		Allowed:       o.Allowed,
		Decision:      string(o.Decision),
		Message:       o.Message,
	}
}

func deny(d types.Decision, msg string) types.Outcome {
	return types.Outcome{Allowed: false, Decision: d, Message: msg}
}
