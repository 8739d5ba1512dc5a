package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/BrandonDHaskell/eventgate/server/internal/eventgate/service"
	"github.com/BrandonDHaskell/eventgate/server/internal/eventgate/store"
	"github.com/BrandonDHaskell/eventgate/server/internal/eventgate/store/memory"
	"github.com/BrandonDHaskell/eventgate/server/internal/eventgate/types"
)

type PresenceRegistrySuite struct {
	suite.Suite
	participants *memory.ParticipantStore
	sessions     *memory.SessionStore
	publisher    *recordingPublisher
	registry     *service.PresenceRegistry
}

func TestPresenceRegistrySuite(t *testing.T) {
	suite.Run(t, new(PresenceRegistrySuite))
}

func (s *PresenceRegistrySuite) SetupTest() {
	s.participants = memory.NewParticipantStore(johnDoe(), mariaSilva())
	s.sessions = memory.NewSessionStore(s.participants)
	s.publisher = &recordingPublisher{}
	s.registry = service.NewPresenceRegistry(s.sessions, s.publisher, nil, nil)
}

func (s *PresenceRegistrySuite) TestAddAndRemove() {
	john := types.ProjectPresence(johnDoe(), types.SegmentFair)
	cat := types.CategoryPharmacyRepresentatives

	s.Run("add publishes the new roster", func() {
		s.Require().NoError(s.registry.AddPresent(cat, john))
		s.Equal(1, s.publisher.count())
		s.Equal([]types.PresenceEntry{john}, s.publisher.last().PharmacyRepresentatives)
		s.True(s.registry.Contains(cat, john))
	})

	s.Run("duplicate add fails without publishing", func() {
		err := s.registry.AddPresent(cat, john)
		s.ErrorIs(err, service.ErrAlreadyPresent)
		s.Equal(1, s.publisher.count())
		s.Equal(1, s.registry.Count())
	})

	s.Run("same person in another segment is a different entry", func() {
		party := types.ProjectPresence(johnDoe(), types.SegmentParty)
		s.Require().NoError(s.registry.AddPresent(cat, party))
		s.Equal(2, s.registry.Count())
		s.Require().NoError(s.registry.RemovePresent(cat, party))
	})

	s.Run("remove publishes and empties the list", func() {
		before := s.publisher.count()
		s.Require().NoError(s.registry.RemovePresent(cat, john))
		s.Equal(before+1, s.publisher.count())
		s.Empty(s.registry.Snapshot().PharmacyRepresentatives)
	})

	s.Run("removing an absent entry always fails", func() {
		before := s.publisher.count()
		for i := 0; i < 3; i++ {
			s.ErrorIs(s.registry.RemovePresent(cat, john), service.ErrNotPresent)
		}
		s.Equal(before, s.publisher.count())
	})
}

func (s *PresenceRegistrySuite) TestRemoveRequiresStructuralMatch() {
	cat := types.CategoryLaboratoryMembers
	maria := types.ProjectPresence(mariaSilva(), types.SegmentBuffet)
	s.Require().NoError(s.registry.AddPresent(cat, maria))

	renamed := maria
	renamed.Name = "Maria S."
	s.ErrorIs(s.registry.RemovePresent(cat, renamed), service.ErrNotPresent)
	s.ErrorIs(s.registry.RemovePresent(types.CategoryPharmacyRepresentatives, maria), service.ErrNotPresent)
	s.True(s.registry.Contains(cat, maria))
}

func (s *PresenceRegistrySuite) TestSnapshotIsACopy() {
	cat := types.CategoryLaboratoryMembers
	maria := types.ProjectPresence(mariaSilva(), types.SegmentFair)
	s.Require().NoError(s.registry.AddPresent(cat, maria))

	snap := s.registry.Snapshot()
	snap.LaboratoryMembers[0].Name = "tampered"

	s.Equal("Maria Silva", s.registry.Snapshot().LaboratoryMembers[0].Name)
}

func (s *PresenceRegistrySuite) TestSnapshotVersionAdvances() {
	cat := types.CategoryLaboratoryMembers
	maria := types.ProjectPresence(mariaSilva(), types.SegmentFair)

	v0 := s.registry.Snapshot().Version
	s.Require().NoError(s.registry.AddPresent(cat, maria))
	v1 := s.registry.Snapshot().Version
	s.Require().NoError(s.registry.RemovePresent(cat, maria))
	v2 := s.registry.Snapshot().Version

	s.Less(v0, v1)
	s.Less(v1, v2)
}

// ── InitializeState ──────────────────────────────────────────────────────────

func TestInitializeState_EmptyLedger(t *testing.T) {
	participants := memory.NewParticipantStore(johnDoe())
	sessions := memory.NewSessionStore(participants)
	pub := &recordingPublisher{}
	registry := service.NewPresenceRegistry(sessions, pub, nil, nil)

	// E
	n, err := registry.InitializeState(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	snap := registry.Snapshot()
	assert.NotNil(t, snap.PharmacyRepresentatives)
	assert.NotNil(t, snap.LaboratoryMembers)
	assert.Empty(t, snap.PharmacyRepresentatives)
	assert.Empty(t, snap.LaboratoryMembers)

	assert.Zero(t, pub.count(), "empty ledger must not notify")
	require.NotNil(t, pub.ready)
	assert.Zero(t, pub.ready.Len())
}

func TestInitializeState_RestoresOpenSessions(t *testing.T) {
	ctx := context.Background()

	var ps []types.Participant
	for i := 0; i < 6; i++ {
		kind := types.KindPharmacyRepresentative
		if i%2 == 1 {
			kind = types.KindLaboratoryMember
		}
		ps = append(ps, types.Participant{
			CPF:        fmt.Sprintf("200.000.000-%02d", i),
			Name:       fmt.Sprintf("Attendee %d", i),
			Kind:       kind,
			Laboratory: "Lab",
		})
	}
	ps = append(ps, types.Participant{
		CPF: "300.000.000-00", Name: "Drogaria", Kind: types.KindClient, CorporateReason: "Drogaria LTDA",
	})
	participants := memory.NewParticipantStore(ps...)
	sessions := memory.NewSessionStore(participants)

	t0 := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	var want []types.PresenceEntry
	for i, p := range ps {
		p, err := participants.FindByCPF(ctx, p.CPF)
		require.NoError(t, err)
		_, err = sessions.AppendEntry(ctx, store.EntryRecord{
			ParticipantID: p.ID, Segment: types.SegmentFair, Cycle: 1, CheckedInAt: t0.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)

		// Every third attendee already left.
		if i%3 == 2 {
			_, err = sessions.AppendExit(ctx, store.ExitRecord{
				ParticipantID: p.ID, Segment: types.SegmentFair, Cycle: 1,
			})
			require.NoError(t, err)
			continue
		}
		want = append(want, types.ProjectPresence(p, types.SegmentFair))
	}

	pub := &recordingPublisher{}
	registry := service.NewPresenceRegistry(sessions, pub, nil, nil)

	n, err := registry.InitializeState(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(want), n)

	snap := registry.Snapshot()
	assert.Equal(t, len(want), snap.Len())
	for _, e := range want {
		p, err := participants.FindByCPF(ctx, e.CPF)
		require.NoError(t, err)
		cat, _ := types.CategoryFor(p.Kind)
		assert.Contains(t, snap.List(cat), e)
	}
	assert.Equal(t, "Drogaria LTDA", snap.Clients[0].Detail)

	assert.Equal(t, 1, pub.count(), "restored roster is published once")
	require.NotNil(t, pub.ready)
	assert.Equal(t, len(want), pub.ready.Len())

	// Replaying again restores nothing new.
	n, err = registry.InitializeState(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, len(want), registry.Count())
}

func TestInitializeState_LedgerError(t *testing.T) {
	sessions := new(mockSessionStore)
	sessions.On("OpenSessions", context.Background()).Return([]store.OpenSession(nil), assert.AnError)

	pub := &recordingPublisher{}
	registry := service.NewPresenceRegistry(sessions, pub, nil, nil)

	_, err := registry.InitializeState(context.Background())
	require.ErrorIs(t, err, assert.AnError)
	assert.Nil(t, pub.ready, "a failed rebuild must not mark the notifier ready")
	assert.False(t, registry.Ready())
}

func TestInitializeState_MarksRegistryReady(t *testing.T) {
	participants := memory.NewParticipantStore(johnDoe())
	registry := service.NewPresenceRegistry(memory.NewSessionStore(participants), nil, nil, nil)

	assert.False(t, registry.Ready())
	_, err := registry.InitializeState(context.Background())
	require.NoError(t, err)
	assert.True(t, registry.Ready())
}

// ── Reconcile ────────────────────────────────────────────────────────────────

func (s *PresenceRegistrySuite) TestReconcileMatchesLedger() {
	ctx := context.Background()
	john := types.ProjectPresence(johnDoe(), types.SegmentFair)
	ghost := types.ProjectPresence(mariaSilva(), types.SegmentParty)

	_, err := s.sessions.AppendEntry(ctx, store.EntryRecord{
		ParticipantID: johnDoe().ID, Segment: types.SegmentFair, Cycle: 1,
	})
	s.Require().NoError(err)
	s.Require().NoError(s.registry.AddPresent(types.CategoryLaboratoryMembers, ghost))
	before := s.publisher.count()

	n, err := s.registry.Reconcile(ctx)
	s.Require().NoError(err)
	s.Equal(2, n, "one missing row added, one ghost dropped")

	snap := s.registry.Snapshot()
	s.Equal([]types.PresenceEntry{john}, snap.PharmacyRepresentatives)
	s.Empty(snap.LaboratoryMembers)
	s.NotNil(snap.LaboratoryMembers)
	s.Equal(before+1, s.publisher.count(), "one publish per repair")

	// Already in step: nothing to do, nothing published.
	n, err = s.registry.Reconcile(ctx)
	s.Require().NoError(err)
	s.Zero(n)
	s.Equal(before+1, s.publisher.count())
}

func TestReconcile_LedgerErrorKeepsRoster(t *testing.T) {
	sessions := new(mockSessionStore)
	sessions.On("OpenSessions", mock.Anything).Return([]store.OpenSession(nil), assert.AnError)
	registry := service.NewPresenceRegistry(sessions, nil, nil, nil)

	john := types.ProjectPresence(johnDoe(), types.SegmentFair)
	require.NoError(t, registry.AddPresent(types.CategoryPharmacyRepresentatives, john))

	_, err := registry.Reconcile(context.Background())
	require.ErrorIs(t, err, assert.AnError)
	assert.True(t, registry.Contains(types.CategoryPharmacyRepresentatives, john))
}
