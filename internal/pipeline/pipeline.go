// Package pipeline orchestrates the analysis run: context acquisition through
// shortlist selection, then the post-curation completion stages.
package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/market-intel/internal/classify"
	"github.com/sells-group/market-intel/internal/config"
	"github.com/sells-group/market-intel/internal/discovery"
	"github.com/sells-group/market-intel/internal/enrich"
	"github.com/sells-group/market-intel/internal/model"
	"github.com/sells-group/market-intel/internal/profile"
	"github.com/sells-group/market-intel/internal/selector"
	"github.com/sells-group/market-intel/internal/store"
)

// ErrInsufficientCandidates means too few candidates survived classification
// to build a meaningful shortlist. The caller should relax filters or add
// competitors manually rather than have the pipeline pad the set.
var ErrInsufficientCandidates = eris.New("pipeline: insufficient candidates survived classification")

// Pipeline runs the machine stages of an analysis and persists the resulting
// session awaiting human curation.
type Pipeline struct {
	cfg        *config.Config
	store      store.Store
	acquirer   *profile.Acquirer
	discoverer *discovery.Discoverer
	enricher   *enrich.Enricher
	classifier *classify.Classifier
}

// New creates a pipeline from its stage implementations.
func New(cfg *config.Config, st store.Store, acquirer *profile.Acquirer, discoverer *discovery.Discoverer, enricher *enrich.Enricher, classifier *classify.Classifier) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		store:      st,
		acquirer:   acquirer,
		discoverer: discoverer,
		enricher:   enricher,
		classifier: classifier,
	}
}

// Run executes context acquisition, discovery, processing, enrichment,
// classification, and selection, then stores a session awaiting curation.
func (p *Pipeline) Run(ctx context.Context, seed profile.SeedInput) (*model.Session, error) {
	bc, err := p.acquirer.Acquire(ctx, seed)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: acquire context")
	}

	log := zap.L().With(zap.String("phase", "pipeline"), zap.String("run_id", bc.RunID))

	result, err := p.discoverer.Run(ctx, *bc)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: discovery")
	}

	processed := discovery.Process(result.Candidates, bc.TargetDomain, &p.cfg.Discovery)
	log.Info("candidates processed",
		zap.Int("raw", len(result.Candidates)),
		zap.Int("surviving", len(processed)),
	)

	enriched, err := p.enricher.Run(ctx, *bc, processed)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: enrichment")
	}

	classified, err := p.classifier.Run(ctx, *bc, enriched)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: classification")
	}

	shortlist := selector.Select(classified, &p.cfg.Selector)
	if len(shortlist) < p.minCandidates() {
		return nil, eris.Wrapf(ErrInsufficientCandidates,
			"%d candidates, need at least %d", len(shortlist), p.minCandidates())
	}

	sess := &model.Session{
		RunID:        bc.RunID,
		TargetDomain: bc.TargetDomain,
		State:        model.StateAwaitingCuration,
		Context:      *bc,
		Shortlist:    shortlist,
	}
	if err := p.store.CreateSession(ctx, sess); err != nil {
		return nil, eris.Wrap(err, "pipeline: persist session")
	}

	log.Info("session awaiting curation",
		zap.String("session_id", sess.ID),
		zap.Int("shortlist", len(shortlist)),
	)
	return sess, nil
}

func (p *Pipeline) minCandidates() int {
	if p.cfg.Discovery.MinCandidates > 0 {
		return p.cfg.Discovery.MinCandidates
	}
	return 3
}
