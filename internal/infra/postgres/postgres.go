// Package postgres implements the progress store and history log on
// PostgreSQL through a pgxpool connection pool. Snapshots are stored as
// JSONB documents with points and level denormalized for queries.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"github.com/studyquest/studyquest/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS progress_snapshots (
	user_id    TEXT PRIMARY KEY,
	document   JSONB NOT NULL,
	points     BIGINT NOT NULL DEFAULT 0,
	level      INTEGER NOT NULL DEFAULT 1,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_progress_points ON progress_snapshots(points DESC);

CREATE TABLE IF NOT EXISTS history (
	id               TEXT PRIMARY KEY,
	user_id          TEXT NOT NULL,
	kind             TEXT NOT NULL,
	occurred_at      TIMESTAMPTZ NOT NULL,
	duration_minutes INTEGER NOT NULL DEFAULT 0,
	correct          INTEGER NOT NULL DEFAULT 0,
	incorrect        INTEGER NOT NULL DEFAULT 0,
	revealed         INTEGER NOT NULL DEFAULT 0,
	score            DOUBLE PRECISION NOT NULL DEFAULT 0,
	points_delta     BIGINT NOT NULL DEFAULT 0,
	detail           TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_history_user_time ON history(user_id, occurred_at DESC);
`

// Store wraps a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn, verifies the connection and applies the schema.
func Open(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute
	cfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres unreachable: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.WithField("max_conns", cfg.MaxConns).Info("postgres store ready")
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// ─── Progress Snapshots ─────────────────────────────────────────────────────

func (s *Store) GetSnapshot(ctx context.Context, userID string) (domain.ProgressSnapshot, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx,
		`SELECT document FROM progress_snapshots WHERE user_id = $1`, userID,
	).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ProgressSnapshot{}, fmt.Errorf("snapshot %s: %w", userID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.ProgressSnapshot{}, fmt.Errorf("get snapshot: %w", err)
	}

	var snap domain.ProgressSnapshot
	if err := json.Unmarshal(doc, &snap); err != nil {
		return domain.ProgressSnapshot{}, fmt.Errorf("decode snapshot %s: %w", userID, err)
	}
	return snap, nil
}

func (s *Store) UpsertSnapshot(ctx context.Context, snap domain.ProgressSnapshot) error {
	if snap.UserID == "" {
		return fmt.Errorf("%w: snapshot without user id", domain.ErrValidation)
	}
	doc, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	updatedAt := snap.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO progress_snapshots (user_id, document, points, level, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			document = EXCLUDED.document,
			points = EXCLUDED.points,
			level = EXCLUDED.level,
			updated_at = EXCLUDED.updated_at`,
		snap.UserID, doc, snap.Points, snap.Level, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

func (s *Store) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT user_id FROM progress_snapshots ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan users: %w", err)
	}
	return ids, nil
}

// ─── History ────────────────────────────────────────────────────────────────

func (s *Store) AppendHistory(ctx context.Context, e domain.HistoryEntry) error {
	if e.ID == "" || e.UserID == "" {
		return fmt.Errorf("%w: history entry needs id and user id", domain.ErrValidation)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO history (id, user_id, kind, occurred_at, duration_minutes,
		                     correct, incorrect, revealed, score, points_delta, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, e.UserID, string(e.Kind), e.OccurredAt, e.DurationMinutes,
		e.Correct, e.Incorrect, e.Revealed, e.Score, e.PointsDelta, e.Detail,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: history entry %s already exists", domain.ErrValidation, e.ID)
	}
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (s *Store) ListHistory(ctx context.Context, userID string, f domain.HistoryFilter) ([]domain.HistoryEntry, error) {
	where := []string{"user_id = $1"}
	args := []any{userID}
	if f.Kind != "" {
		args = append(args, string(f.Kind))
		where = append(where, fmt.Sprintf("kind = $%d", len(args)))
	}
	if !f.Since.IsZero() {
		args = append(args, f.Since)
		where = append(where, fmt.Sprintf("occurred_at >= $%d", len(args)))
	}
	if !f.Until.IsZero() {
		args = append(args, f.Until)
		where = append(where, fmt.Sprintf("occurred_at < $%d", len(args)))
	}
	args = append(args, f.EffectiveLimit())

	query := fmt.Sprintf(`
		SELECT id, user_id, kind, occurred_at, duration_minutes, correct,
		       incorrect, revealed, score, points_delta, detail
		FROM history
		WHERE %s
		ORDER BY occurred_at DESC, id DESC
		LIMIT $%d`, strings.Join(where, " AND "), len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.HistoryEntry, error) {
		var e domain.HistoryEntry
		var kind string
		err := row.Scan(&e.ID, &e.UserID, &kind, &e.OccurredAt, &e.DurationMinutes,
			&e.Correct, &e.Incorrect, &e.Revealed, &e.Score, &e.PointsDelta, &e.Detail)
		e.Kind = domain.EventKind(kind)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan history: %w", err)
	}
	return entries, nil
}
