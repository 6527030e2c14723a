package model

import "time"

// SessionState is the curation lifecycle state of a competitor session.
type SessionState string

const (
	// StateAwaitingCuration means the shortlist is ready for human review.
	StateAwaitingCuration SessionState = "awaiting_curation"
	// StateCurated means the final set passed validation and is locked for
	// downstream keyword mining and scoring.
	StateCurated SessionState = "curated"
	// StateCompleted means keyword mining, winnability scoring, and market
	// sizing finished. The final set is immutable from here.
	StateCompleted SessionState = "completed"
)

// Session is one analysis run's competitor set and its curation state.
// Version is bumped on every state-changing write; concurrent writers use it
// for an optimistic check-and-set, so a losing writer conflicts instead of
// silently overwriting.
type Session struct {
	ID           string              `json:"id"`
	RunID        string              `json:"run_id"`
	TargetDomain string              `json:"target_domain"`
	State        SessionState        `json:"state"`
	Version      int                 `json:"version"`
	Context      BusinessContext     `json:"context"`
	Shortlist    []SelectedCandidate `json:"shortlist"`
	Final        []FinalCompetitor   `json:"final,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// CurationRemoval records a curator dropping a shortlisted competitor.
// A reason code is mandatory.
type CurationRemoval struct {
	Domain string        `json:"domain"`
	Reason RemovalReason `json:"reason"`
	Note   string        `json:"note,omitempty"`
}

// CurationAddition is a curator-supplied competitor. Additions are
// re-validated through lightweight enrichment before acceptance.
type CurationAddition struct {
	Domain      string `json:"domain"`
	CompanyName string `json:"company_name,omitempty"`
}

// Curation is a curator's full submission against a session shortlist.
type Curation struct {
	Keep      []string           `json:"keep"` // shortlist domains to retain
	Removals  []CurationRemoval  `json:"removals"`
	Additions []CurationAddition `json:"additions"`
}

// StageName identifies a cached sub-stage of the completion pipeline.
type StageName string

const (
	StageKeywordUniverse StageName = "keyword_universe"
	StageWinnability     StageName = "winnability"
	StageMarket          StageName = "market"
)
