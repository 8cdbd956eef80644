package global

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlGlobalCandidates = `
CREATE TABLE IF NOT EXISTS global_candidates (
    original     TEXT         NOT NULL,
    replacement  TEXT         NOT NULL,
    proposed     INTEGER      NOT NULL DEFAULT 0,
    accepted     INTEGER      NOT NULL DEFAULT 0,
    state        TEXT         NOT NULL DEFAULT 'pending',
    promoted_at  TIMESTAMPTZ,
    PRIMARY KEY (original, replacement)
);

CREATE INDEX IF NOT EXISTS idx_global_candidates_original
    ON global_candidates (original);

CREATE INDEX IF NOT EXISTS idx_global_candidates_promoted
    ON global_candidates (promoted_at) WHERE state = 'promoted';

CREATE TABLE IF NOT EXISTS candidate_acceptances (
    original           TEXT         NOT NULL,
    replacement        TEXT         NOT NULL,
    user_id            TEXT         NOT NULL,
    hardware_verified  BOOLEAN      NOT NULL DEFAULT FALSE,
    accepted_at        TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (original, replacement, user_id)
);
`

// PostgresStore is the PostgreSQL-backed [Store]. All operations run against
// a single [pgxpool.Pool] and are safe for concurrent use.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects to the database at dsn and creates the candidate
// tables when missing.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("global: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("global: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, ddlGlobalCandidates); err != nil {
		pool.Close()
		return nil, fmt.Errorf("global: migrate: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Pool exposes the underlying connection pool for health checks.
func (s *PostgresStore) Pool() *pgxpool.Pool { return s.pool }

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// RecordProposal implements [Store].
func (s *PostgresStore) RecordProposal(ctx context.Context, key PairKey) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO global_candidates (original, replacement, proposed)
		VALUES ($1, $2, 1)
		ON CONFLICT (original, replacement)
		DO UPDATE SET proposed = global_candidates.proposed + 1`,
		key.Original, key.Replacement)
	if err != nil {
		return fmt.Errorf("global: record proposal: %w", err)
	}
	return nil
}

// RecordAccept implements [Store]. The per-user acceptance row carries the
// dedupe: an insert that conflicts on (original, replacement, user_id) only
// upgrades the verified flag, and the aggregate counters move by exactly
// what the insert changed.
func (s *PostgresStore) RecordAccept(ctx context.Context, a Accept) (PairStats, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return PairStats{}, fmt.Errorf("global: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	// xmax = 0 distinguishes a fresh insert from a conflict update, so the
	// aggregate accepted counter moves only for first-time acceptances. A
	// repeat accept can still upgrade the verified flag.
	var inserted bool
	err = tx.QueryRow(ctx, `
		INSERT INTO candidate_acceptances (original, replacement, user_id, hardware_verified, accepted_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (original, replacement, user_id)
		DO UPDATE SET hardware_verified = candidate_acceptances.hardware_verified OR EXCLUDED.hardware_verified
		RETURNING (xmax = 0)`,
		a.Original, a.Replacement, a.UserID, a.HardwareVerified, acceptTime(a)).
		Scan(&inserted)
	if err != nil {
		return PairStats{}, fmt.Errorf("global: upsert acceptance: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO global_candidates (original, replacement, accepted)
		VALUES ($1, $2, 0)
		ON CONFLICT (original, replacement) DO NOTHING`,
		a.Original, a.Replacement)
	if err != nil {
		return PairStats{}, fmt.Errorf("global: ensure candidate row: %w", err)
	}
	if inserted {
		_, err = tx.Exec(ctx, `
			UPDATE global_candidates SET accepted = accepted + 1
			WHERE original = $1 AND replacement = $2`,
			a.Original, a.Replacement)
		if err != nil {
			return PairStats{}, fmt.Errorf("global: bump accepted: %w", err)
		}
	}

	stats, err := scanPair(tx.QueryRow(ctx, `
		SELECT c.original, c.replacement, c.proposed, c.accepted,
		       (SELECT count(*) FROM candidate_acceptances a
		         WHERE a.original = c.original AND a.replacement = c.replacement
		           AND a.hardware_verified),
		       c.state, c.promoted_at
		FROM global_candidates c
		WHERE c.original = $1 AND c.replacement = $2`,
		a.Original, a.Replacement))
	if err != nil {
		return PairStats{}, fmt.Errorf("global: read stats: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return PairStats{}, fmt.Errorf("global: commit: %w", err)
	}
	return stats, nil
}

// PairsForOriginal implements [Store].
func (s *PostgresStore) PairsForOriginal(ctx context.Context, original string) ([]PairStats, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.original, c.replacement, c.proposed, c.accepted,
		       (SELECT count(*) FROM candidate_acceptances a
		         WHERE a.original = c.original AND a.replacement = c.replacement
		           AND a.hardware_verified),
		       c.state, c.promoted_at
		FROM global_candidates c
		WHERE c.original = $1
		ORDER BY c.replacement`,
		original)
	if err != nil {
		return nil, fmt.Errorf("global: query pairs: %w", err)
	}
	defer rows.Close()
	return scanPairs(rows)
}

// SetState implements [Store].
func (s *PostgresStore) SetState(ctx context.Context, key PairKey, state PairState, at time.Time) error {
	var err error
	if state == PairPromoted {
		_, err = s.pool.Exec(ctx, `
			UPDATE global_candidates SET state = $3, promoted_at = $4
			WHERE original = $1 AND replacement = $2`,
			key.Original, key.Replacement, string(state), at)
	} else {
		_, err = s.pool.Exec(ctx, `
			UPDATE global_candidates SET state = $3
			WHERE original = $1 AND replacement = $2`,
			key.Original, key.Replacement, string(state))
	}
	if err != nil {
		return fmt.Errorf("global: set state: %w", err)
	}
	return nil
}

// Promoted implements [Store].
func (s *PostgresStore) Promoted(ctx context.Context, since time.Time) ([]PairStats, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.original, c.replacement, c.proposed, c.accepted,
		       (SELECT count(*) FROM candidate_acceptances a
		         WHERE a.original = c.original AND a.replacement = c.replacement
		           AND a.hardware_verified),
		       c.state, c.promoted_at
		FROM global_candidates c
		WHERE c.state = 'promoted' AND c.promoted_at >= $1
		ORDER BY c.original`,
		since)
	if err != nil {
		return nil, fmt.Errorf("global: query promoted: %w", err)
	}
	defer rows.Close()
	return scanPairs(rows)
}

func scanPairs(rows pgx.Rows) ([]PairStats, error) {
	var out []PairStats
	for rows.Next() {
		stats, err := scanPair(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, stats)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("global: scan pairs: %w", err)
	}
	return out, nil
}

func scanPair(row pgx.Row) (PairStats, error) {
	var stats PairStats
	var state string
	var promotedAt *time.Time
	err := row.Scan(&stats.Original, &stats.Replacement, &stats.Proposed,
		&stats.Accepted, &stats.DistinctVerifiedUsers, &state, &promotedAt)
	if err != nil {
		return PairStats{}, fmt.Errorf("global: scan pair: %w", err)
	}
	stats.State = PairState(state)
	if promotedAt != nil {
		stats.PromotedAt = *promotedAt
	}
	return stats, nil
}

func acceptTime(a Accept) time.Time {
	if a.AcceptedAt.IsZero() {
		return time.Now()
	}
	return a.AcceptedAt
}
