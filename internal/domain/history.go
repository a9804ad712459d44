package domain

import "time"

// HistoryEntry is one immutable record in the append-only history log.
type HistoryEntry struct {
	ID              string    `json:"id" bson:"_id"`
	UserID          string    `json:"userId" bson:"userId"`
	Kind            EventKind `json:"kind" bson:"kind"`
	OccurredAt      time.Time `json:"occurredAt" bson:"occurredAt"`
	DurationMinutes int       `json:"durationMinutes,omitempty" bson:"durationMinutes,omitempty"`
	Correct         int       `json:"correct,omitempty" bson:"correct,omitempty"`
	Incorrect       int       `json:"incorrect,omitempty" bson:"incorrect,omitempty"`
	Revealed        int       `json:"revealed,omitempty" bson:"revealed,omitempty"`
	Score           float64   `json:"score,omitempty" bson:"score,omitempty"`
	PointsDelta     int64     `json:"pointsDelta" bson:"pointsDelta"`
	Detail          string    `json:"detail,omitempty" bson:"detail,omitempty"`
}

// HistoryFilter narrows a history listing. Zero values mean "no filter".
type HistoryFilter struct {
	Kind  EventKind
	Since time.Time
	Until time.Time
	Limit int
}

// DefaultHistoryLimit caps listings that do not set Limit.
const DefaultHistoryLimit = 100

// EffectiveLimit returns Limit, or DefaultHistoryLimit when unset.
func (f HistoryFilter) EffectiveLimit() int {
	if f.Limit <= 0 {
		return DefaultHistoryLimit
	}
	return f.Limit
}
