// Package domain holds the progress engine's data model, event variants,
// sentinel errors and the interfaces infrastructure implements.
package domain

import "time"

// ─── Catalog Definitions ────────────────────────────────────────────────────
// Definitions are static; the per-user earned state lives in the snapshot.

// BadgeDef defines a badge and the predicate that earns it.
type BadgeDef struct {
	ID        string                       `json:"id"`
	Name      string                       `json:"name"`
	Predicate func(ProgressSnapshot) bool `json:"-"` // Not serialized
}

// AchievementDef defines an achievement, its reward and predicate.
type AchievementDef struct {
	ID        string                       `json:"id"`
	Name      string                       `json:"name"`
	Points    int64                        `json:"points"`
	Predicate func(ProgressSnapshot) bool `json:"-"`
}

// QuestTemplate defines a quest or challenge before any progress.
type QuestTemplate struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Category QuestCategory `json:"category"`
	Target   int           `json:"target"`
	Reward   int64         `json:"reward"`
}

// Quest builds the zero-progress Quest for this template.
func (t QuestTemplate) Quest() Quest {
	return Quest{
		ID:       t.ID,
		Name:     t.Name,
		Category: t.Category,
		Target:   t.Target,
		Reward:   t.Reward,
	}
}

// PowerUpDef defines a purchasable multiplier.
type PowerUpDef struct {
	Type       string        `json:"type"`
	Name       string        `json:"name"`
	Category   PointCategory `json:"category"`
	Multiplier int64         `json:"multiplier"`
	Cost       int64         `json:"cost"`
	Duration   time.Duration `json:"duration"`
}

// PowerUp builds the inactive PowerUp for this definition.
func (d PowerUpDef) PowerUp() PowerUp {
	return PowerUp{
		Type:       d.Type,
		Category:   d.Category,
		Multiplier: d.Multiplier,
	}
}

// ─── Unlock Types ───────────────────────────────────────────────────────────

// UnlockKind says what an Unlock refers to.
type UnlockKind string

const (
	UnlockBadge       UnlockKind = "badge"
	UnlockAchievement UnlockKind = "achievement"
	UnlockQuest       UnlockKind = "quest"
	UnlockChallenge   UnlockKind = "challenge"
	UnlockLevel       UnlockKind = "level"
)

// Unlock reports one item earned while applying an event.
type Unlock struct {
	Kind   UnlockKind `json:"kind"`
	ID     string     `json:"id"`
	Reward int64      `json:"reward"`
}
