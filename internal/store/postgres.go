package store

import (
	"context"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rostralabs/rostra/internal/config"
	"github.com/rostralabs/rostra/internal/debate"
	"github.com/rostralabs/rostra/internal/errors"
)

// schema is applied on open. The full session document lives in the data
// column; the scalar columns exist for listing and ad-hoc queries without
// decoding transcripts.
const schema = `
CREATE TABLE IF NOT EXISTS debate_sessions (
    id           TEXT PRIMARY KEY,
    version      BIGINT NOT NULL,
    topic        TEXT NOT NULL,
    phase        TEXT NOT NULL,
    status       TEXT NOT NULL,
    participants INT NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL,
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    data         JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS debate_sessions_status_idx ON debate_sessions (status);
`

// PostgresStore persists sessions in postgres, one JSONB document per
// session with a version column enforcing the optimistic write guard.
type PostgresStore struct {
	pool   *pgxpool.Pool
	closed atomic.Bool
}

// OpenPostgres connects to postgres, verifies the connection, and
// applies the schema.
func OpenPostgres(ctx context.Context, cfg config.PostgresConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, errors.NewPersistenceError("postgres dsn", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errors.NewPersistenceError("postgres connect", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.NewPersistenceError("postgres ping", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, errors.NewPersistenceError("postgres schema", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Create persists a brand-new session row.
func (p *PostgresStore) Create(ctx context.Context, s *debate.Session) error {
	if p.closed.Load() {
		return errors.ErrStoreClosed
	}
	data, err := marshalSession(s)
	if err != nil {
		return err
	}

	tag, err := p.pool.Exec(ctx, `
		INSERT INTO debate_sessions (id, version, topic, phase, status, participants, created_at, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`, s.ID, int64(s.Version), s.Topic, string(s.Phase), string(s.Status), len(s.Participants), s.CreatedAt, data)
	if err != nil {
		return errors.NewPersistenceError("postgres create", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.ErrSessionExists
	}
	return nil
}

// Save persists a snapshot if it is newer than the stored version.
func (p *PostgresStore) Save(ctx context.Context, s *debate.Session) error {
	if p.closed.Load() {
		return errors.ErrStoreClosed
	}
	data, err := marshalSession(s)
	if err != nil {
		return err
	}

	tag, err := p.pool.Exec(ctx, `
		UPDATE debate_sessions
		SET version = $2, topic = $3, phase = $4, status = $5, participants = $6,
		    updated_at = now(), data = $7
		WHERE id = $1 AND version < $2
	`, s.ID, int64(s.Version), s.Topic, string(s.Phase), string(s.Status), len(s.Participants), data)
	if err != nil {
		return errors.NewPersistenceError("postgres save", err)
	}
	if tag.RowsAffected() == 0 {
		// Missing row and stale version both affect zero rows; one more
		// query tells them apart.
		var exists bool
		err := p.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM debate_sessions WHERE id = $1)`, s.ID).Scan(&exists)
		if err != nil {
			return errors.NewPersistenceError("postgres save", err)
		}
		if !exists {
			return errors.ErrSessionNotFound
		}
		return errors.ErrVersionConflict
	}
	return nil
}

// Load retrieves a session by id.
func (p *PostgresStore) Load(ctx context.Context, id string) (*debate.Session, error) {
	if p.closed.Load() {
		return nil, errors.ErrStoreClosed
	}
	var data []byte
	err := p.pool.QueryRow(ctx,
		`SELECT data FROM debate_sessions WHERE id = $1`, id).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.ErrSessionNotFound
		}
		return nil, errors.NewPersistenceError("postgres load", err)
	}
	return unmarshalSession(data)
}

// List returns summaries of stored sessions, newest first, from the
// scalar columns alone.
func (p *PostgresStore) List(ctx context.Context) ([]Summary, error) {
	if p.closed.Load() {
		return nil, errors.ErrStoreClosed
	}
	rows, err := p.pool.Query(ctx, `
		SELECT id, topic, phase, status, participants, created_at
		FROM debate_sessions
		ORDER BY created_at DESC, id
	`)
	if err != nil {
		return nil, errors.NewPersistenceError("postgres list", err)
	}
	defer rows.Close()

	summaries := []Summary{}
	for rows.Next() {
		var s Summary
		var phase, status string
		if err := rows.Scan(&s.ID, &s.Topic, &phase, &status, &s.Participants, &s.CreatedAt); err != nil {
			return nil, errors.NewPersistenceError("postgres list", err)
		}
		s.Phase = debate.Phase(phase)
		s.Status = debate.Status(status)
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewPersistenceError("postgres list", err)
	}
	return summaries, nil
}

// Delete removes a session row.
func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	if p.closed.Load() {
		return errors.ErrStoreClosed
	}
	tag, err := p.pool.Exec(ctx, `DELETE FROM debate_sessions WHERE id = $1`, id)
	if err != nil {
		return errors.NewPersistenceError("postgres delete", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.ErrSessionNotFound
	}
	return nil
}

// Ping checks the database connection.
func (p *PostgresStore) Ping(ctx context.Context) error {
	if p.closed.Load() {
		return errors.ErrStoreClosed
	}
	if err := p.pool.Ping(ctx); err != nil {
		return errors.NewPersistenceError("postgres ping", err)
	}
	return nil
}

// Close closes the connection pool.
func (p *PostgresStore) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	p.pool.Close()
	return nil
}
