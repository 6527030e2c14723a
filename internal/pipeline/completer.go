package pipeline

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/market-intel/internal/config"
	"github.com/sells-group/market-intel/internal/keywords"
	"github.com/sells-group/market-intel/internal/market"
	"github.com/sells-group/market-intel/internal/model"
	"github.com/sells-group/market-intel/internal/store"
	"github.com/sells-group/market-intel/internal/winnability"
	"github.com/sells-group/market-intel/pkg/seodata"
)

// MarketArtifact is the stored payload of the market stage.
type MarketArtifact struct {
	Beachheads  []model.BeachheadKeyword `json:"beachheads"`
	Opportunity model.MarketOpportunity  `json:"opportunity"`
	Projections model.TrafficProjections `json:"projections"`
}

// Completer runs the post-curation stages. Each stage's result is cached in
// the store keyed by (session, stage), so retrying a partially failed
// completion resumes where it stopped instead of re-billing providers.
type Completer struct {
	cfg    *config.Config
	store  store.Store
	miner  *keywords.Miner
	scorer *winnability.Scorer
	seo    seodata.Client
}

// NewCompleter creates a completer.
func NewCompleter(cfg *config.Config, st store.Store, miner *keywords.Miner, scorer *winnability.Scorer, seo seodata.Client) *Completer {
	return &Completer{cfg: cfg, store: st, miner: miner, scorer: scorer, seo: seo}
}

// BuildOpportunity mines the keyword universe, scores winnability, and
// derives beachheads, market sizing, and projections for a curated session.
func (c *Completer) BuildOpportunity(ctx context.Context, sess *model.Session) error {
	log := zap.L().With(
		zap.String("phase", "completion"),
		zap.String("session_id", sess.ID),
		zap.String("run_id", sess.RunID),
	)

	var universe []model.KeywordCandidate
	cached, err := c.loadStage(ctx, sess.ID, model.StageKeywordUniverse, &universe)
	if err != nil {
		return err
	}
	if !cached {
		universe, err = c.miner.Build(ctx, sess.Context, sess.Final)
		if err != nil {
			return eris.Wrap(err, "completion: keyword universe")
		}
		if err := c.saveStage(ctx, sess.ID, model.StageKeywordUniverse, universe); err != nil {
			return err
		}
	} else {
		log.Info("keyword universe loaded from cache", zap.Int("keywords", len(universe)))
	}

	var records []model.WinnabilityRecord
	cached, err = c.loadStage(ctx, sess.ID, model.StageWinnability, &records)
	if err != nil {
		return err
	}
	if !cached {
		records, err = c.scorer.ScoreUniverse(ctx, sess.Context, c.targetAuthority(ctx, sess, log), universe)
		if err != nil {
			return eris.Wrap(err, "completion: winnability")
		}
		if err := c.saveStage(ctx, sess.ID, model.StageWinnability, records); err != nil {
			return err
		}
	} else {
		log.Info("winnability records loaded from cache", zap.Int("records", len(records)))
	}

	var artifact MarketArtifact
	cached, err = c.loadStage(ctx, sess.ID, model.StageMarket, &artifact)
	if err != nil {
		return err
	}
	if !cached {
		artifact = MarketArtifact{
			Beachheads:  market.SelectBeachheads(records, &c.cfg.Market),
			Opportunity: market.SizeMarket(records, sess.Final),
		}
		artifact.Projections = market.Project(artifact.Beachheads, &c.cfg.Market)
		if err := c.saveStage(ctx, sess.ID, model.StageMarket, artifact); err != nil {
			return err
		}
	}

	log.Info("opportunity built",
		zap.Int("keywords", len(universe)),
		zap.Int("beachheads", len(artifact.Beachheads)),
		zap.Int64("tam_volume", artifact.Opportunity.TAM.SearchVolume),
	)
	return nil
}

// targetAuthority fetches the target's own authority rating. A metrics miss
// degrades winnability precision, it does not block completion.
func (c *Completer) targetAuthority(ctx context.Context, sess *model.Session, log *zap.Logger) int {
	if sess.TargetDomain == "" {
		return 0
	}
	metrics, err := c.seo.DomainMetrics(ctx, sess.TargetDomain)
	if err != nil {
		log.Warn("target metrics unavailable, assuming zero authority", zap.Error(err))
		return 0
	}
	return metrics.AuthorityRating
}

func (c *Completer) loadStage(ctx context.Context, sessionID string, stage model.StageName, out any) (bool, error) {
	payload, err := c.store.GetArtifact(ctx, sessionID, stage)
	if err != nil {
		return false, eris.Wrapf(err, "completion: load %s", stage)
	}
	if payload == nil {
		return false, nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return false, eris.Wrapf(err, "completion: decode %s", stage)
	}
	return true, nil
}

func (c *Completer) saveStage(ctx context.Context, sessionID string, stage model.StageName, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return eris.Wrapf(err, "completion: encode %s", stage)
	}
	return eris.Wrapf(c.store.PutArtifact(ctx, sessionID, stage, payload), "completion: save %s", stage)
}
