// Package curation is the human gate between the machine-built shortlist and
// the locked final competitor set. Nothing downstream of the gate runs until a
// curator has reviewed the shortlist, and a rejected submission leaves the
// session exactly as it was.
package curation

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/market-intel/internal/config"
	"github.com/sells-group/market-intel/internal/discovery"
	"github.com/sells-group/market-intel/internal/model"
	"github.com/sells-group/market-intel/internal/store"
)

// Validation reason codes returned to the curator.
const (
	CodeBadState          = "bad_state"
	CodeCountOutOfRange   = "count_out_of_range"
	CodeUnknownDomain     = "unknown_domain"
	CodeUnaccountedDomain = "unaccounted_domain"
	CodeMissingReason     = "missing_reason"
	CodeInvalidReason     = "invalid_reason"
	CodeEmptyDomain       = "empty_domain"
	CodeDuplicateAddition = "duplicate_addition"
)

// ValidationError rejects a curation submission. The session is unchanged
// when one is returned.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("curation rejected (%s): %s", e.Code, e.Message)
}

// AdditionEnricher validates curator-supplied competitors through the
// lightweight enrichment path.
type AdditionEnricher interface {
	EnrichOne(ctx context.Context, bc model.BusinessContext, domain, companyName string) model.EnrichedCandidate
}

// AdditionClassifier assigns a purpose and composite score to validated
// additions.
type AdditionClassifier interface {
	Run(ctx context.Context, bc model.BusinessContext, cands []model.EnrichedCandidate) ([]model.ClassifiedCandidate, error)
}

// Completer runs the post-curation stages (keyword universe, winnability,
// market sizing) for a curated session.
type Completer interface {
	BuildOpportunity(ctx context.Context, sess *model.Session) error
}

// Gate validates curation submissions and locks the final competitor set.
type Gate struct {
	cfg        *config.CurationConfig
	store      store.Store
	enricher   AdditionEnricher
	classifier AdditionClassifier
	completer  Completer
	nowFunc    func() time.Time
}

// NewGate creates a curation gate. completer may be nil when completion is
// driven separately.
func NewGate(cfg *config.CurationConfig, st store.Store, enricher AdditionEnricher, classifier AdditionClassifier, completer Completer) *Gate {
	return &Gate{
		cfg:        cfg,
		store:      st,
		enricher:   enricher,
		classifier: classifier,
		completer:  completer,
		nowFunc:    time.Now,
	}
}

// Submit applies a curator's keep/remove/add decisions to a session awaiting
// curation. A rejected submission returns a ValidationError and leaves the
// session untouched; an accepted one locks the final set and moves the
// session to curated.
func (g *Gate) Submit(ctx context.Context, sessionID string, cur model.Curation) (*model.Session, error) {
	sess, err := g.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, eris.Wrapf(err, "curation: load session %s", sessionID)
	}
	if sess.State != model.StateAwaitingCuration {
		return nil, &ValidationError{
			Code:    CodeBadState,
			Message: fmt.Sprintf("session is %s, curation requires awaiting_curation", sess.State),
		}
	}

	if err := g.validate(sess, cur); err != nil {
		return nil, err
	}

	log := zap.L().With(zap.String("phase", "curation"), zap.String("session_id", sessionID))

	shortlistByDomain := indexShortlist(sess.Shortlist)
	now := g.nowFunc().UTC()

	final := make([]model.FinalCompetitor, 0, len(cur.Keep)+len(cur.Additions))
	for _, domain := range cur.Keep {
		sc := shortlistByDomain[discovery.NormalizeDomain(domain)]
		final = append(final, model.FinalCompetitor{
			Domain:         sc.Domain,
			CompanyName:    sc.CompanyName,
			Purpose:        sc.Purpose,
			Threat:         sc.Threat,
			CompositeScore: sc.CompositeScore,
			Metrics:        sc.Metrics,
			LockedAt:       now,
		})
	}

	// Curator additions go through lightweight enrichment and classification
	// so they carry the same evidence as machine-selected competitors.
	for _, add := range cur.Additions {
		fc, err := g.validateAddition(ctx, sess.Context, add, now)
		if err != nil {
			return nil, err
		}
		final = append(final, *fc)
		log.Info("curator addition accepted",
			zap.String("domain", fc.Domain),
			zap.String("purpose", string(fc.Purpose)),
		)
	}

	sess.Final = final
	sess.State = model.StateCurated
	if err := g.store.UpdateSessionCAS(ctx, sess, sess.Version); err != nil {
		return nil, eris.Wrap(err, "curation: persist curated session")
	}

	log.Info("final set locked",
		zap.Int("kept", len(cur.Keep)),
		zap.Int("removed", len(cur.Removals)),
		zap.Int("added", len(cur.Additions)),
		zap.Int("final", len(final)),
	)
	return sess, nil
}

// Complete runs the downstream stages for a curated session and marks it
// completed. Stage results are cached in the store, so a retry after a
// partial failure resumes instead of recomputing.
func (g *Gate) Complete(ctx context.Context, sessionID string) (*model.Session, error) {
	if g.completer == nil {
		return nil, eris.New("curation: no completer configured")
	}

	sess, err := g.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, eris.Wrapf(err, "curation: load session %s", sessionID)
	}
	switch sess.State {
	case model.StateCurated:
	case model.StateCompleted:
		return sess, nil // idempotent
	default:
		return nil, &ValidationError{
			Code:    CodeBadState,
			Message: fmt.Sprintf("session is %s, completion requires curated", sess.State),
		}
	}

	if err := g.completer.BuildOpportunity(ctx, sess); err != nil {
		return nil, eris.Wrapf(err, "curation: complete session %s", sessionID)
	}

	sess.State = model.StateCompleted
	if err := g.store.UpdateSessionCAS(ctx, sess, sess.Version); err != nil {
		return nil, eris.Wrap(err, "curation: persist completed session")
	}
	return sess, nil
}

// UpdateFinalSet is the explicit post-completion edit path. The completed
// set never changes implicitly; this is the only way to touch it.
func (g *Gate) UpdateFinalSet(ctx context.Context, sessionID string, removals []model.CurationRemoval, additions []model.CurationAddition) (*model.Session, error) {
	sess, err := g.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, eris.Wrapf(err, "curation: load session %s", sessionID)
	}
	if sess.State != model.StateCompleted && sess.State != model.StateCurated {
		return nil, &ValidationError{
			Code:    CodeBadState,
			Message: fmt.Sprintf("session is %s, final-set updates require curated or completed", sess.State),
		}
	}

	finalByDomain := make(map[string]model.FinalCompetitor, len(sess.Final))
	for _, fc := range sess.Final {
		finalByDomain[fc.Domain] = fc
	}

	for _, rem := range removals {
		domain := discovery.NormalizeDomain(rem.Domain)
		if _, ok := finalByDomain[domain]; !ok {
			return nil, &ValidationError{
				Code:    CodeUnknownDomain,
				Message: fmt.Sprintf("removal %q is not in the final set", rem.Domain),
			}
		}
		if !validReason(rem.Reason) {
			return nil, &ValidationError{
				Code:    CodeInvalidReason,
				Message: fmt.Sprintf("removal %q has invalid reason %q", rem.Domain, rem.Reason),
			}
		}
		delete(finalByDomain, domain)
	}

	now := g.nowFunc().UTC()
	for _, add := range additions {
		fc, err := g.validateAddition(ctx, sess.Context, add, now)
		if err != nil {
			return nil, err
		}
		if _, ok := finalByDomain[fc.Domain]; ok {
			return nil, &ValidationError{
				Code:    CodeDuplicateAddition,
				Message: fmt.Sprintf("addition %q is already in the final set", fc.Domain),
			}
		}
		finalByDomain[fc.Domain] = *fc
	}

	if err := g.checkCount(len(finalByDomain)); err != nil {
		return nil, err
	}

	final := make([]model.FinalCompetitor, 0, len(finalByDomain))
	for _, fc := range sess.Final {
		if kept, ok := finalByDomain[fc.Domain]; ok {
			final = append(final, kept)
			delete(finalByDomain, fc.Domain)
		}
	}
	for _, fc := range finalByDomain {
		final = append(final, fc)
	}

	sess.Final = final
	if err := g.store.UpdateSessionCAS(ctx, sess, sess.Version); err != nil {
		return nil, eris.Wrap(err, "curation: persist final set update")
	}
	return sess, nil
}

func (g *Gate) validate(sess *model.Session, cur model.Curation) error {
	shortlistByDomain := indexShortlist(sess.Shortlist)

	accounted := make(map[string]bool, len(sess.Shortlist))
	for _, domain := range cur.Keep {
		norm := discovery.NormalizeDomain(domain)
		if _, ok := shortlistByDomain[norm]; !ok {
			return &ValidationError{
				Code:    CodeUnknownDomain,
				Message: fmt.Sprintf("keep %q is not on the shortlist", domain),
			}
		}
		accounted[norm] = true
	}

	for _, rem := range cur.Removals {
		norm := discovery.NormalizeDomain(rem.Domain)
		if _, ok := shortlistByDomain[norm]; !ok {
			return &ValidationError{
				Code:    CodeUnknownDomain,
				Message: fmt.Sprintf("removal %q is not on the shortlist", rem.Domain),
			}
		}
		if rem.Reason == "" {
			return &ValidationError{
				Code:    CodeMissingReason,
				Message: fmt.Sprintf("removal %q has no reason code", rem.Domain),
			}
		}
		if !validReason(rem.Reason) {
			return &ValidationError{
				Code:    CodeInvalidReason,
				Message: fmt.Sprintf("removal %q has invalid reason %q", rem.Domain, rem.Reason),
			}
		}
		accounted[norm] = true
	}

	// Every shortlist member must be explicitly kept or removed. Silence is
	// not a decision.
	for domain := range shortlistByDomain {
		if !accounted[domain] {
			return &ValidationError{
				Code:    CodeUnaccountedDomain,
				Message: fmt.Sprintf("shortlist member %q was neither kept nor removed", domain),
			}
		}
	}

	seen := make(map[string]bool, len(cur.Additions))
	for _, add := range cur.Additions {
		norm := discovery.NormalizeDomain(add.Domain)
		if norm == "" {
			return &ValidationError{
				Code:    CodeEmptyDomain,
				Message: "addition has an empty domain",
			}
		}
		if accounted[norm] || seen[norm] {
			return &ValidationError{
				Code:    CodeDuplicateAddition,
				Message: fmt.Sprintf("addition %q duplicates the shortlist or another addition", add.Domain),
			}
		}
		seen[norm] = true
	}

	return g.checkCount(len(cur.Keep) + len(cur.Additions))
}

func (g *Gate) validateAddition(ctx context.Context, bc model.BusinessContext, add model.CurationAddition, lockedAt time.Time) (*model.FinalCompetitor, error) {
	norm := discovery.NormalizeDomain(add.Domain)
	if norm == "" {
		return nil, &ValidationError{
			Code:    CodeEmptyDomain,
			Message: "addition has an empty domain",
		}
	}

	ec := g.enricher.EnrichOne(ctx, bc, norm, add.CompanyName)
	classified, err := g.classifier.Run(ctx, bc, []model.EnrichedCandidate{ec})
	if err != nil {
		return nil, eris.Wrapf(err, "curation: classify addition %s", norm)
	}
	cc := classified[0]

	// The curator's judgment overrides the machine verdict on relevance, but
	// the enriched evidence is still recorded.
	if cc.Purpose == model.PurposeNotRelevant {
		cc.Purpose = model.PurposeBenchmarkPeer
		cc.Threat = model.ThreatLow
	}

	return &model.FinalCompetitor{
		Domain:         cc.Domain,
		CompanyName:    cc.CompanyName,
		Purpose:        cc.Purpose,
		Threat:         cc.Threat,
		CompositeScore: cc.CompositeScore,
		Metrics:        cc.Metrics,
		AddedByUser:    true,
		LockedAt:       lockedAt,
	}, nil
}

func (g *Gate) checkCount(n int) error {
	min, max := g.bounds()
	if n < min || n > max {
		return &ValidationError{
			Code:    CodeCountOutOfRange,
			Message: fmt.Sprintf("final set has %d competitors, need between %d and %d", n, min, max),
		}
	}
	return nil
}

func (g *Gate) bounds() (int, int) {
	min, max := g.cfg.MinFinalCount, g.cfg.MaxFinalCount
	if min <= 0 {
		min = 3
	}
	if max <= 0 {
		max = 15
	}
	return min, max
}

func indexShortlist(shortlist []model.SelectedCandidate) map[string]model.SelectedCandidate {
	byDomain := make(map[string]model.SelectedCandidate, len(shortlist))
	for _, sc := range shortlist {
		byDomain[sc.Domain] = sc
	}
	return byDomain
}

func validReason(r model.RemovalReason) bool {
	switch r {
	case model.RemovalNotCompetitor, model.RemovalWrongMarket,
		model.RemovalTooAspirational, model.RemovalDuplicate, model.RemovalOther:
		return true
	}
	return false
}
