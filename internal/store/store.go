// Package store persists competitor sessions, the locked final sets, and the
// derived keyword artifacts so that reads never trigger recomputation.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/market-intel/internal/model"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = eris.New("store: not found")

// ErrVersionConflict is returned when an optimistic check-and-set loses: the
// session was modified since the caller read it.
var ErrVersionConflict = eris.New("store: session version conflict")

// Store defines the persistence interface for the intelligence pipeline.
type Store interface {
	// Sessions
	CreateSession(ctx context.Context, s *model.Session) error
	GetSession(ctx context.Context, id string) (*model.Session, error)
	// UpdateSessionCAS writes s only if the stored version still equals
	// expectedVersion, then bumps the version. Returns ErrVersionConflict
	// when a concurrent writer won.
	UpdateSessionCAS(ctx context.Context, s *model.Session, expectedVersion int) error
	ListSessions(ctx context.Context, limit int) ([]model.Session, error)

	// Stage artifacts. Completed sub-stage results are cached by
	// (session, stage) so a retried completion never redoes finished work.
	PutArtifact(ctx context.Context, sessionID string, stage model.StageName, payload []byte) error
	// GetArtifact returns (nil, nil) when no artifact exists.
	GetArtifact(ctx context.Context, sessionID string, stage model.StageName) ([]byte, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
