package domain

import (
	"context"
	"encoding/json"
)

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// ProgressStore persists one ProgressSnapshot per user.
type ProgressStore interface {
	// GetSnapshot returns ErrNotFound when the user has no record yet.
	GetSnapshot(ctx context.Context, userID string) (ProgressSnapshot, error)

	// UpsertSnapshot replaces the whole stored snapshot for s.UserID.
	UpsertSnapshot(ctx context.Context, s ProgressSnapshot) error
}

// SnapshotScanner enumerates stored users for maintenance jobs.
type SnapshotScanner interface {
	ListUserIDs(ctx context.Context) ([]string, error)
}

// HistoryLog is the append-only record of study and quiz events.
type HistoryLog interface {
	AppendHistory(ctx context.Context, e HistoryEntry) error

	// ListHistory returns entries newest first.
	ListHistory(ctx context.Context, userID string, f HistoryFilter) ([]HistoryEntry, error)
}

// Generator produces structured study content (quizzes, flashcards)
// from a prompt and the user's input material.
type Generator interface {
	Generate(ctx context.Context, prompt, content string) (json.RawMessage, error)
}

// Identity resolves the current user for a request context.
type Identity interface {
	UserID(ctx context.Context) (string, error)
}

// Pinger is implemented by stores that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}
