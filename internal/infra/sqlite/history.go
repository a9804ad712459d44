package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/studyquest/studyquest/internal/domain"
)

// ─── History Log ────────────────────────────────────────────────────────────

// AppendHistory inserts one history entry. Entries are never updated;
// re-appending an existing ID is rejected by the primary key.
func (d *DB) AppendHistory(ctx context.Context, e domain.HistoryEntry) error {
	if e.ID == "" || e.UserID == "" {
		return fmt.Errorf("%w: history entry needs id and user id", domain.ErrValidation)
	}
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO history (id, user_id, kind, occurred_at, duration_minutes, correct, incorrect, revealed, score, points_delta, detail)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, string(e.Kind), e.OccurredAt.UnixMilli(), e.DurationMinutes,
		e.Correct, e.Incorrect, e.Revealed, e.Score, e.PointsDelta, e.Detail,
	)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// ListHistory returns a user's entries newest first, narrowed by f.
func (d *DB) ListHistory(ctx context.Context, userID string, f domain.HistoryFilter) ([]domain.HistoryEntry, error) {
	where := []string{"user_id = ?"}
	args := []any{userID}
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if !f.Since.IsZero() {
		where = append(where, "occurred_at >= ?")
		args = append(args, f.Since.UnixMilli())
	}
	if !f.Until.IsZero() {
		where = append(where, "occurred_at < ?")
		args = append(args, f.Until.UnixMilli())
	}
	args = append(args, f.EffectiveLimit())

	rows, err := d.db.QueryContext(ctx,
		`SELECT id, user_id, kind, occurred_at, duration_minutes, correct, incorrect, revealed, score, points_delta, detail
		 FROM history WHERE `+strings.Join(where, " AND ")+`
		 ORDER BY occurred_at DESC, id DESC LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		e, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanHistory(s scanner) (domain.HistoryEntry, error) {
	var e domain.HistoryEntry
	var kind string
	var occurredAt int64
	err := s.Scan(&e.ID, &e.UserID, &kind, &occurredAt, &e.DurationMinutes,
		&e.Correct, &e.Incorrect, &e.Revealed, &e.Score, &e.PointsDelta, &e.Detail)
	if err != nil {
		return e, err
	}
	e.Kind = domain.EventKind(kind)
	e.OccurredAt = time.UnixMilli(occurredAt)
	return e, nil
}
