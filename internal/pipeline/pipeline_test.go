package pipeline

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/market-intel/internal/classify"
	"github.com/sells-group/market-intel/internal/config"
	"github.com/sells-group/market-intel/internal/discovery"
	"github.com/sells-group/market-intel/internal/enrich"
	"github.com/sells-group/market-intel/internal/model"
	"github.com/sells-group/market-intel/internal/profile"
	"github.com/sells-group/market-intel/internal/store"
	"github.com/sells-group/market-intel/pkg/seodata"
)

// memStore is an in-memory Store for pipeline tests.
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

type stubProvider struct {
	name  string
	cands []model.RawCandidate
}

func (p stubProvider) Name() string { return p.name }

func (p stubProvider) Discover(context.Context, model.BusinessContext) ([]model.RawCandidate, error) {
	return p.cands, nil
}

type stubSEO struct {
	metrics map[string]*seodata.DomainMetrics
}

func (s stubSEO) DomainMetrics(_ context.Context, domain string) (*seodata.DomainMetrics, error) {
	if m, ok := s.metrics[domain]; ok {
		return m, nil
	}
	return nil, eris.New("status 404: no data")
}

func (s stubSEO) RankedKeywords(context.Context, string, int) ([]seodata.Keyword, error) {
	return nil, eris.New("not implemented")
}

func (s stubSEO) KeywordIdeas(context.Context, []string, int) ([]seodata.Keyword, error) {
	return nil, eris.New("not implemented")
}

func (s stubSEO) SERP(context.Context, string, string) (*seodata.SERPResult, error) {
	return nil, eris.New("status 404: no serp")
}

func testPipelineConfig() *config.Config {
	return &config.Config{
		Discovery: config.DiscoveryConfig{
			MaxCandidates: 50,
			MinCandidates: 3,
			ProviderRPS:   1000, // no throttling in tests
		},
		Selector: config.SelectorConfig{
			TargetCount: 15,
			MaxCount:    15,
			Quotas: map[string]float64{
				"benchmark_peer": 0.40,
				"keyword_source": 0.33,
				"content_model":  0.13,
				"aspirational":   0.13,
			},
		},
	}
}

func testPipeline(st store.Store, providers []discovery.Provider, seo seodata.Client) *Pipeline {
	cfg := testPipelineConfig()
	return New(cfg, st,
		profile.NewAcquirer(nil, ""),
		discovery.NewDiscoverer(&cfg.Discovery, providers),
		enrich.NewEnricher(&cfg.Enrich, seo, nil, "en-US"),
		classify.NewClassifier(classify.RuleOracle{TargetAuthority: 30}, classify.RuleOracle{TargetAuthority: 30}, nil),
	)
}

func TestPipeline_RunToAwaitingCuration(t *testing.T) {
	domains := []string{"rival-one.com", "rival-two.com", "rival-three.com", "rival-four.com"}
	var cands []model.RawCandidate
	metrics := make(map[string]*seodata.DomainMetrics, len(domains))
	for _, d := range domains {
		cands = append(cands, model.RawCandidate{Domain: d, Source: "ai_search"})
		metrics[d] = &seodata.DomainMetrics{AuthorityRating: 40, OrganicKeywords: 5000, OrganicTraffic: 10000}
	}

	st := newMemStore()
	p := testPipeline(st, []discovery.Provider{stubProvider{name: "ai_search", cands: cands}}, stubSEO{metrics: metrics})

	sess, err := p.Run(context.Background(), profile.SeedInput{
		Description: "CRM software for small b2b teams",
		Industry:    "saas",
	})
	require.NoError(t, err)

	assert.Equal(t, model.StateAwaitingCuration, sess.State)
	assert.NotEmpty(t, sess.ID)
	assert.NotEmpty(t, sess.RunID)
	assert.Len(t, sess.Shortlist, 4)
	for _, sc := range sess.Shortlist {
		assert.NotEqual(t, model.PurposeNotRelevant, sc.Purpose)
		assert.NotZero(t, sc.CompositeScore)
	}

	// The session is persisted, not just returned.
	stored, err := st.GetSession(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.RunID, stored.RunID)
	assert.Equal(t, "saas", stored.Context.Industry)
}

func TestPipeline_InsufficientCandidates(t *testing.T) {
	st := newMemStore()
	p := testPipeline(st, []discovery.Provider{
		stubProvider{name: "ai_search", cands: []model.RawCandidate{
			{Domain: "lonely.com", Source: "ai_search"},
		}},
	}, stubSEO{metrics: map[string]*seodata.DomainMetrics{
		"lonely.com": {AuthorityRating: 40, OrganicKeywords: 5000},
	}})

	_, err := p.Run(context.Background(), profile.SeedInput{Description: "niche b2b tool"})
	assert.ErrorIs(t, err, ErrInsufficientCandidates)
	assert.Empty(t, st.sessions)
}

func TestPipeline_RequiresSeedInput(t *testing.T) {
	p := testPipeline(newMemStore(), nil, stubSEO{})
	_, err := p.Run(context.Background(), profile.SeedInput{})
	assert.Error(t, err)
}
