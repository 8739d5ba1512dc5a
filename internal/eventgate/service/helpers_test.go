package service_test

import (
	"context"
	"sync"

	"github.com/BrandonDHaskell/eventgate/server/internal/eventgate/service"
	"github.com/BrandonDHaskell/eventgate/server/internal/eventgate/store"
	"github.com/BrandonDHaskell/eventgate/server/internal/eventgate/store/memory"
	"github.com/BrandonDHaskell/eventgate/server/internal/eventgate/types"
)

const (
	johnCPF    = "123.456.789-00"
	mariaCPF   = "987.654.321-00"
	unknownCPF = "000.000.000-00"
)

func johnDoe() types.Participant {
	return types.Participant{
		ID:         7,
		CPF:        johnCPF,
		Name:       "John Doe",
		Kind:       types.KindPharmacyRepresentative,
		Laboratory: "Acme Labs",
	}
}

func mariaSilva() types.Participant {
	return types.Participant{
		ID:         8,
		CPF:        mariaCPF,
		Name:       "Maria Silva",
		Kind:       types.KindLaboratoryMember,
		Laboratory: "Acme Labs",
	}
}

// recordingPublisher captures everything the registry publishes.
type recordingPublisher struct {
	mu        sync.Mutex
	published []types.Snapshot
	ready     *types.Snapshot
}

func (p *recordingPublisher) Publish(snap types.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, snap)
}

func (p *recordingPublisher) MarkReady(initial types.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ready = &initial
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

func (p *recordingPublisher) last() types.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.published[len(p.published)-1]
}

type testEnv struct {
	svc          *service.ValidationService
	registry     *service.PresenceRegistry
	publisher    *recordingPublisher
	participants *memory.ParticipantStore
	sessions     *memory.SessionStore
	scans        *memory.ScanLog
}

// newTestEnv builds a ValidationService backed by in-memory stores with
// an initialized (empty) roster, returning the pieces tests inspect.
func newTestEnv(mode service.SessionMode, ps ...types.Participant) *testEnv {
	if len(ps) == 0 {
		ps = []types.Participant{johnDoe(), mariaSilva()}
	}
	participants := memory.NewParticipantStore(ps...)
	sessions := memory.NewSessionStore(participants)
	scans := memory.NewScanLog()
	pub := &recordingPublisher{}
	registry := service.NewPresenceRegistry(sessions, pub, nil, nil)
	svc := service.NewValidationService(service.ValidationDeps{
		Participants: participants,
		Sessions:     sessions,
		ScanLog:      scans,
		Registry:     registry,
		Mode:         mode,
	})
	if _, err := registry.InitializeState(context.Background()); err != nil {
		panic(err)
	}
	return &testEnv{
		svc:          svc,
		registry:     registry,
		publisher:    pub,
		participants: participants,
		sessions:     sessions,
		scans:        scans,
	}
}

var _ store.SessionStore = (*memory.SessionStore)(nil)

// pausingSessionStore blocks OpenSessions after it has read the ledger
// until release is closed.
type pausingSessionStore struct {
	store.SessionStore
	loaded  chan struct{}
	release chan struct{}
}

func newPausingSessionStore(inner store.SessionStore) *pausingSessionStore {
	return &pausingSessionStore{
		SessionStore: inner,
		loaded:       make(chan struct{}),
		release:      make(chan struct{}),
	}
}

func (p *pausingSessionStore) OpenSessions(ctx context.Context) ([]store.OpenSession, error) {
	open, err := p.SessionStore.OpenSessions(ctx)
	close(p.loaded)
	<-p.release
	return open, err
}
