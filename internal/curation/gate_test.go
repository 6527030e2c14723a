package curation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/market-intel/internal/config"
	"github.com/sells-group/market-intel/internal/model"
	"github.com/sells-group/market-intel/internal/store"
)

// memStore is an in-memory Store for gate tests.
type memStore struct {
	sessions  map[string]*model.Session
	artifacts map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{
		sessions:  make(map[string]*model.Session),
		artifacts: make(map[string][]byte),
	}
}

func (m *memStore) CreateSession(_ context.Context, s *model.Session) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	s.Version = 1
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *memStore) GetSession(_ context.Context, id string) (*model.Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) UpdateSessionCAS(_ context.Context, s *model.Session, expectedVersion int) error {
	stored, ok := m.sessions[s.ID]
	if !ok {
		return store.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return store.ErrVersionConflict
	}
	s.Version = expectedVersion + 1
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *memStore) ListSessions(context.Context, int) ([]model.Session, error) { return nil, nil }

func (m *memStore) PutArtifact(_ context.Context, sessionID string, stage model.StageName, payload []byte) error {
	m.artifacts[sessionID+"/"+string(stage)] = payload
	return nil
}

func (m *memStore) GetArtifact(_ context.Context, sessionID string, stage model.StageName) ([]byte, error) {
	return m.artifacts[sessionID+"/"+string(stage)], nil
}

func (m *memStore) Migrate(context.Context) error { return nil }
func (m *memStore) Close() error                  { return nil }

type stubEnricher struct{}

func (stubEnricher) EnrichOne(_ context.Context, _ model.BusinessContext, domain, companyName string) model.EnrichedCandidate {
	return model.EnrichedCandidate{
		Domain:           domain,
		CompanyName:      companyName,
		DiscoverySources: []string{"curator"},
		Metrics:          model.SEOMetrics{AuthorityRating: 25, OrganicKeywords: 2000},
	}
}

type stubClassifier struct{}

func (stubClassifier) Run(_ context.Context, _ model.BusinessContext, cands []model.EnrichedCandidate) ([]model.ClassifiedCandidate, error) {
	out := make([]model.ClassifiedCandidate, 0, len(cands))
	for _, c := range cands {
		out = append(out, model.ClassifiedCandidate{
			EnrichedCandidate: c,
			Purpose:           model.PurposeKeywordSource,
			Threat:            model.ThreatLow,
			CompositeScore:    40,
		})
	}
	return out, nil
}

type recordingCompleter struct {
	calls int
	err   error
}

func (r *recordingCompleter) BuildOpportunity(context.Context, *model.Session) error {
	r.calls++
	return r.err
}

func testGate(st store.Store, completer Completer) *Gate {
	return NewGate(&config.CurationConfig{MinFinalCount: 3, MaxFinalCount: 15}, st, stubEnricher{}, stubClassifier{}, completer)
}

func seedSession(t *testing.T, st store.Store, domains ...string) *model.Session {
	t.Helper()
	shortlist := make([]model.SelectedCandidate, 0, len(domains))
	for _, d := range domains {
		shortlist = append(shortlist, model.SelectedCandidate{
			ClassifiedCandidate: model.ClassifiedCandidate{
				EnrichedCandidate: model.EnrichedCandidate{Domain: d, DiscoverySources: []string{"ai_search"}},
				Purpose:           model.PurposeBenchmarkPeer,
				Threat:            model.ThreatMedium,
				CompositeScore:    60,
			},
			QuotaBucket: model.PurposeBenchmarkPeer,
		})
	}
	sess := &model.Session{
		RunID:        "r1",
		TargetDomain: "target.com",
		State:        model.StateAwaitingCuration,
		Shortlist:    shortlist,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, st.CreateSession(context.Background(), sess))
	return sess
}

func TestGate_AcceptsValidCuration(t *testing.T) {
	st := newMemStore()
	sess := seedSession(t, st, "a.com", "b.com", "c.com", "d.com")
	gate := testGate(st, nil)

	out, err := gate.Submit(context.Background(), sess.ID, model.Curation{
		Keep: []string{"a.com", "b.com", "c.com"},
		Removals: []model.CurationRemoval{
			{Domain: "d.com", Reason: model.RemovalWrongMarket},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, model.StateCurated, out.State)
	require.Len(t, out.Final, 3)
	for _, fc := range out.Final {
		assert.False(t, fc.AddedByUser)
		assert.False(t, fc.LockedAt.IsZero())
	}
}

func TestGate_RejectsCountBelowMinimum(t *testing.T) {
	st := newMemStore()
	sess := seedSession(t, st, "a.com", "b.com", "c.com")
	gate := testGate(st, nil)

	_, err := gate.Submit(context.Background(), sess.ID, model.Curation{
		Keep: []string{"a.com", "b.com"},
		Removals: []model.CurationRemoval{
			{Domain: "c.com", Reason: model.RemovalNotCompetitor},
		},
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, CodeCountOutOfRange, verr.Code)

	// Rejected submission leaves the session untouched.
	stored, err := st.GetSession(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateAwaitingCuration, stored.State)
	assert.Empty(t, stored.Final)
}

func TestGate_RejectsRemovalWithoutReason(t *testing.T) {
	st := newMemStore()
	sess := seedSession(t, st, "a.com", "b.com", "c.com", "d.com")
	gate := testGate(st, nil)

	_, err := gate.Submit(context.Background(), sess.ID, model.Curation{
		Keep:     []string{"a.com", "b.com", "c.com"},
		Removals: []model.CurationRemoval{{Domain: "d.com"}},
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, CodeMissingReason, verr.Code)
}

func TestGate_RejectsUnaccountedShortlistMember(t *testing.T) {
	st := newMemStore()
	sess := seedSession(t, st, "a.com", "b.com", "c.com", "d.com")
	gate := testGate(st, nil)

	_, err := gate.Submit(context.Background(), sess.ID, model.Curation{
		Keep: []string{"a.com", "b.com", "c.com"},
		// d.com is neither kept nor removed.
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, CodeUnaccountedDomain, verr.Code)
}

func TestGate_AdditionsAreRevalidated(t *testing.T) {
	st := newMemStore()
	sess := seedSession(t, st, "a.com", "b.com", "c.com")
	gate := testGate(st, nil)

	out, err := gate.Submit(context.Background(), sess.ID, model.Curation{
		Keep:      []string{"a.com", "b.com", "c.com"},
		Additions: []model.CurationAddition{{Domain: "https://www.Added.com", CompanyName: "Added Inc"}},
	})
	require.NoError(t, err)
	require.Len(t, out.Final, 4)

	added := out.Final[3]
	assert.Equal(t, "added.com", added.Domain)
	assert.True(t, added.AddedByUser)
	assert.Equal(t, model.PurposeKeywordSource, added.Purpose)
	assert.Equal(t, 25, added.Metrics.AuthorityRating)
}

func TestGate_RejectsDuplicateAddition(t *testing.T) {
	st := newMemStore()
	sess := seedSession(t, st, "a.com", "b.com", "c.com")
	gate := testGate(st, nil)

	_, err := gate.Submit(context.Background(), sess.ID, model.Curation{
		Keep:      []string{"a.com", "b.com", "c.com"},
		Additions: []model.CurationAddition{{Domain: "a.com"}},
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, CodeDuplicateAddition, verr.Code)
}

func TestGate_RejectsCurationOnCuratedSession(t *testing.T) {
	st := newMemStore()
	sess := seedSession(t, st, "a.com", "b.com", "c.com")
	gate := testGate(st, nil)

	cur := model.Curation{Keep: []string{"a.com", "b.com", "c.com"}}
	_, err := gate.Submit(context.Background(), sess.ID, cur)
	require.NoError(t, err)

	_, err = gate.Submit(context.Background(), sess.ID, cur)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, CodeBadState, verr.Code)
}

func TestGate_ConcurrentSubmissionLosesWithConflict(t *testing.T) {
	st := newMemStore()
	sess := seedSession(t, st, "a.com", "b.com", "c.com")
	gate := testGate(st, nil)

	// A competing writer bumps the version between read and write.
	stale := *sess
	_, err := gate.Submit(context.Background(), sess.ID, model.Curation{
		Keep: []string{"a.com", "b.com", "c.com"},
	})
	require.NoError(t, err)

	// Restore awaiting state at a newer version, then submit with the same
	// gate; the gate re-reads, so force the conflict directly on the store.
	restored := stale
	restored.Version = st.sessions[sess.ID].Version
	restored.State = model.StateAwaitingCuration
	err = st.UpdateSessionCAS(context.Background(), &restored, restored.Version-1)
	assert.ErrorIs(t, err, store.ErrVersionConflict)
}

func TestGate_CompleteRunsStagesAndMarksCompleted(t *testing.T) {
	st := newMemStore()
	sess := seedSession(t, st, "a.com", "b.com", "c.com")
	completer := &recordingCompleter{}
	gate := testGate(st, completer)

	_, err := gate.Submit(context.Background(), sess.ID, model.Curation{
		Keep: []string{"a.com", "b.com", "c.com"},
	})
	require.NoError(t, err)

	out, err := gate.Complete(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateCompleted, out.State)
	assert.Equal(t, 1, completer.calls)

	// Completing again is idempotent and does not re-run the stages.
	out, err = gate.Complete(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateCompleted, out.State)
	assert.Equal(t, 1, completer.calls)
}

func TestGate_CompleteFailurePreservesCuratedState(t *testing.T) {
	st := newMemStore()
	sess := seedSession(t, st, "a.com", "b.com", "c.com")
	completer := &recordingCompleter{err: eris.New("provider down")}
	gate := testGate(st, completer)

	_, err := gate.Submit(context.Background(), sess.ID, model.Curation{
		Keep: []string{"a.com", "b.com", "c.com"},
	})
	require.NoError(t, err)

	_, err = gate.Complete(context.Background(), sess.ID)
	assert.Error(t, err)

	stored, err := st.GetSession(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateCurated, stored.State)
}

func TestGate_UpdateFinalSetEditsCompletedSession(t *testing.T) {
	st := newMemStore()
	sess := seedSession(t, st, "a.com", "b.com", "c.com", "d.com")
	gate := testGate(st, &recordingCompleter{})

	_, err := gate.Submit(context.Background(), sess.ID, model.Curation{
		Keep: []string{"a.com", "b.com", "c.com", "d.com"},
	})
	require.NoError(t, err)
	_, err = gate.Complete(context.Background(), sess.ID)
	require.NoError(t, err)

	out, err := gate.UpdateFinalSet(context.Background(), sess.ID,
		[]model.CurationRemoval{{Domain: "d.com", Reason: model.RemovalDuplicate}},
		[]model.CurationAddition{{Domain: "new.com"}},
	)
	require.NoError(t, err)
	require.Len(t, out.Final, 4)

	domains := make([]string, 0, len(out.Final))
	for _, fc := range out.Final {
		domains = append(domains, fc.Domain)
	}
	assert.NotContains(t, domains, "d.com")
	assert.Contains(t, domains, "new.com")
}

func TestGate_UpdateFinalSetRejectsCountViolation(t *testing.T) {
	st := newMemStore()
	sess := seedSession(t, st, "a.com", "b.com", "c.com")
	gate := testGate(st, &recordingCompleter{})

	_, err := gate.Submit(context.Background(), sess.ID, model.Curation{
		Keep: []string{"a.com", "b.com", "c.com"},
	})
	require.NoError(t, err)
	_, err = gate.Complete(context.Background(), sess.ID)
	require.NoError(t, err)

	_, err = gate.UpdateFinalSet(context.Background(), sess.ID,
		[]model.CurationRemoval{{Domain: "c.com", Reason: model.RemovalOther}}, nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, CodeCountOutOfRange, verr.Code)
}
