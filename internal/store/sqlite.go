package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/market-intel/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS sessions (
	id            TEXT PRIMARY KEY,
	run_id        TEXT NOT NULL,
	target_domain TEXT NOT NULL,
	state         TEXT NOT NULL DEFAULT 'awaiting_curation',
	version       INTEGER NOT NULL DEFAULT 1,
	context       TEXT NOT NULL,
	shortlist     TEXT NOT NULL,
	final         TEXT,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_sessions_state ON sessions(state);
CREATE INDEX IF NOT EXISTS idx_sessions_target_domain ON sessions(target_domain);

CREATE TABLE IF NOT EXISTS artifacts (
	session_id TEXT NOT NULL REFERENCES sessions(id),
	stage      TEXT NOT NULL,
	payload    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (session_id, stage)
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateSession(ctx context.Context, sess *model.Session) error {
	if sess.ID == "" {
		sess.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	sess.Version = 1
	sess.CreatedAt = now
	sess.UpdatedAt = now

	contextJSON, shortlistJSON, finalJSON, err := marshalSessionFields(sess)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal session")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, run_id, target_domain, state, version, context, shortlist, final, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.RunID, sess.TargetDomain, string(sess.State), sess.Version,
		string(contextJSON), string(shortlistJSON), nullableString(finalJSON), now, now,
	)
	return eris.Wrap(err, "sqlite: insert session")
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, run_id, target_domain, state, version, context, shortlist, final, created_at, updated_at
		 FROM sessions WHERE id = ?`,
		id,
	)
	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "sqlite: get session %s", id)
	}
	return sess, nil
}

func (s *SQLiteStore) UpdateSessionCAS(ctx context.Context, sess *model.Session, expectedVersion int) error {
	now := time.Now().UTC()

	contextJSON, shortlistJSON, finalJSON, err := marshalSessionFields(sess)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal session")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions
		 SET state = ?, version = version + 1, context = ?, shortlist = ?, final = ?, updated_at = ?
		 WHERE id = ? AND version = ?`,
		string(sess.State), string(contextJSON), string(shortlistJSON), nullableString(finalJSON), now,
		sess.ID, expectedVersion,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update session %s", sess.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		if _, getErr := s.GetSession(ctx, sess.ID); getErr != nil {
			return getErr
		}
		return ErrVersionConflict
	}
	sess.Version = expectedVersion + 1
	sess.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context, limit int) ([]model.Session, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, target_domain, state, version, context, shortlist, final, created_at, updated_at
		 FROM sessions ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sessions")
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan session")
		}
		sessions = append(sessions, *sess)
	}
	return sessions, eris.Wrap(rows.Err(), "sqlite: list sessions iterate")
}

func (s *SQLiteStore) PutArtifact(ctx context.Context, sessionID string, stage model.StageName, payload []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO artifacts (session_id, stage, payload, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (session_id, stage) DO UPDATE SET payload = excluded.payload, created_at = excluded.created_at`,
		sessionID, string(stage), string(payload), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: put artifact %s/%s", sessionID, stage)
}

func (s *SQLiteStore) GetArtifact(ctx context.Context, sessionID string, stage model.StageName) ([]byte, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM artifacts WHERE session_id = ? AND stage = ?`,
		sessionID, string(stage),
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get artifact %s/%s", sessionID, stage)
	}
	return []byte(payload), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*model.Session, error) {
	var sess model.Session
	var state, contextJSON, shortlistJSON string
	var finalJSON sql.NullString

	if err := row.Scan(&sess.ID, &sess.RunID, &sess.TargetDomain, &state, &sess.Version,
		&contextJSON, &shortlistJSON, &finalJSON, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		return nil, err
	}
	sess.State = model.SessionState(state)

	if err := json.Unmarshal([]byte(contextJSON), &sess.Context); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(shortlistJSON), &sess.Shortlist); err != nil {
		return nil, err
	}
	if finalJSON.Valid && finalJSON.String != "" {
		if err := json.Unmarshal([]byte(finalJSON.String), &sess.Final); err != nil {
			return nil, err
		}
	}
	return &sess, nil
}

func nullableString(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}
