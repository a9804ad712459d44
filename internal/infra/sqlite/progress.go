package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/studyquest/studyquest/internal/domain"
)

// ─── Progress Snapshots ─────────────────────────────────────────────────────

// GetSnapshot loads a user's snapshot. Returns domain.ErrNotFound if the
// user has none.
func (d *DB) GetSnapshot(ctx context.Context, userID string) (domain.ProgressSnapshot, error) {
	var doc string
	err := d.db.QueryRowContext(ctx,
		`SELECT document FROM progress_snapshots WHERE user_id = ?`, userID,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ProgressSnapshot{}, fmt.Errorf("snapshot %s: %w", userID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.ProgressSnapshot{}, fmt.Errorf("get snapshot: %w", err)
	}

	var s domain.ProgressSnapshot
	if err := json.Unmarshal([]byte(doc), &s); err != nil {
		return domain.ProgressSnapshot{}, fmt.Errorf("decode snapshot %s: %w", userID, err)
	}
	return s, nil
}

// UpsertSnapshot replaces the stored snapshot for s.UserID.
// Points and level are denormalized for leaderboard-style queries.
func (d *DB) UpsertSnapshot(ctx context.Context, s domain.ProgressSnapshot) error {
	if s.UserID == "" {
		return fmt.Errorf("%w: snapshot without user id", domain.ErrValidation)
	}
	doc, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	updatedAt := s.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err = d.db.ExecContext(ctx,
		`INSERT INTO progress_snapshots (user_id, document, points, level, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			document=excluded.document,
			points=excluded.points,
			level=excluded.level,
			updated_at=excluded.updated_at`,
		s.UserID, string(doc), s.Points, s.Level, updatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

// ListUserIDs returns every user with a stored snapshot.
func (d *DB) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT user_id FROM progress_snapshots ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
