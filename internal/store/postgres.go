package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/market-intel/internal/db"
	"github.com/sells-group/market-intel/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: pool.Close}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS sessions (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	run_id        TEXT NOT NULL,
	target_domain TEXT NOT NULL,
	state         TEXT NOT NULL DEFAULT 'awaiting_curation',
	version       INTEGER NOT NULL DEFAULT 1,
	context       JSONB NOT NULL,
	shortlist     JSONB NOT NULL,
	final         JSONB,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_sessions_state ON sessions(state);
CREATE INDEX IF NOT EXISTS idx_sessions_target_domain ON sessions(target_domain);
CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON sessions(created_at DESC);

CREATE TABLE IF NOT EXISTS artifacts (
	session_id TEXT NOT NULL REFERENCES sessions(id),
	stage      TEXT NOT NULL,
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (session_id, stage)
);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, sess *model.Session) error {
	if sess.ID == "" {
		sess.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	sess.Version = 1
	sess.CreatedAt = now
	sess.UpdatedAt = now

	contextJSON, shortlistJSON, finalJSON, err := marshalSessionFields(sess)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal session")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO sessions (id, run_id, target_domain, state, version, context, shortlist, final, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		sess.ID, sess.RunID, sess.TargetDomain, string(sess.State), sess.Version,
		contextJSON, shortlistJSON, finalJSON, now, now,
	)
	return eris.Wrap(err, "postgres: insert session")
}

func (s *PostgresStore) GetSession(ctx context.Context, id string) (*model.Session, error) {
	var sess model.Session
	var state string
	var contextJSON, shortlistJSON []byte
	var finalJSON *[]byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, run_id, target_domain, state, version, context, shortlist, final, created_at, updated_at
		 FROM sessions WHERE id = $1`,
		id,
	).Scan(&sess.ID, &sess.RunID, &sess.TargetDomain, &state, &sess.Version,
		&contextJSON, &shortlistJSON, &finalJSON, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "postgres: get session %s", id)
	}

	sess.State = model.SessionState(state)
	if err := unmarshalSessionFields(&sess, contextJSON, shortlistJSON, finalJSON); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal session")
	}
	return &sess, nil
}

func (s *PostgresStore) UpdateSessionCAS(ctx context.Context, sess *model.Session, expectedVersion int) error {
	now := time.Now().UTC()

	contextJSON, shortlistJSON, finalJSON, err := marshalSessionFields(sess)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal session")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE sessions
		 SET state = $1, version = version + 1, context = $2, shortlist = $3, final = $4, updated_at = $5
		 WHERE id = $6 AND version = $7`,
		string(sess.State), contextJSON, shortlistJSON, finalJSON, now,
		sess.ID, expectedVersion,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update session %s", sess.ID)
	}
	if tag.RowsAffected() == 0 {
		// Either the session vanished or a concurrent writer bumped the
		// version first. Disambiguate so callers can report precisely.
		if _, getErr := s.GetSession(ctx, sess.ID); getErr != nil {
			return getErr
		}
		return ErrVersionConflict
	}
	sess.Version = expectedVersion + 1
	sess.UpdatedAt = now
	return nil
}

func (s *PostgresStore) ListSessions(ctx context.Context, limit int) ([]model.Session, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, run_id, target_domain, state, version, context, shortlist, final, created_at, updated_at
		 FROM sessions ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sessions")
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		var sess model.Session
		var state string
		var contextJSON, shortlistJSON []byte
		var finalJSON *[]byte

		if err := rows.Scan(&sess.ID, &sess.RunID, &sess.TargetDomain, &state, &sess.Version,
			&contextJSON, &shortlistJSON, &finalJSON, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan session")
		}
		sess.State = model.SessionState(state)
		if err := unmarshalSessionFields(&sess, contextJSON, shortlistJSON, finalJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal session")
		}
		sessions = append(sessions, sess)
	}
	return sessions, eris.Wrap(rows.Err(), "postgres: list sessions iterate")
}

func (s *PostgresStore) PutArtifact(ctx context.Context, sessionID string, stage model.StageName, payload []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO artifacts (session_id, stage, payload, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (session_id, stage) DO UPDATE SET payload = $3, created_at = $4`,
		sessionID, string(stage), payload, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: put artifact %s/%s", sessionID, stage)
}

func (s *PostgresStore) GetArtifact(ctx context.Context, sessionID string, stage model.StageName) ([]byte, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM artifacts WHERE session_id = $1 AND stage = $2`,
		sessionID, string(stage),
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get artifact %s/%s", sessionID, stage)
	}
	return payload, nil
}

func marshalSessionFields(sess *model.Session) (contextJSON, shortlistJSON, finalJSON []byte, err error) {
	if contextJSON, err = json.Marshal(sess.Context); err != nil {
		return nil, nil, nil, err
	}
	if shortlistJSON, err = json.Marshal(sess.Shortlist); err != nil {
		return nil, nil, nil, err
	}
	if sess.Final != nil {
		if finalJSON, err = json.Marshal(sess.Final); err != nil {
			return nil, nil, nil, err
		}
	}
	return contextJSON, shortlistJSON, finalJSON, nil
}

func unmarshalSessionFields(sess *model.Session, contextJSON, shortlistJSON []byte, finalJSON *[]byte) error {
	if err := json.Unmarshal(contextJSON, &sess.Context); err != nil {
		return err
	}
	if err := json.Unmarshal(shortlistJSON, &sess.Shortlist); err != nil {
		return err
	}
	if finalJSON != nil && len(*finalJSON) > 0 {
		if err := json.Unmarshal(*finalJSON, &sess.Final); err != nil {
			return err
		}
	}
	return nil
}
