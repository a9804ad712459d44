package engagement

import (
	"fmt"
	"time"

	"github.com/studyquest/studyquest/internal/domain"
)

// Power-up economics shared by every type.
const (
	PowerUpCost     int64 = 100
	PowerUpDuration       = time.Hour
)

var powerUpPool = []domain.PowerUpDef{
	{Type: "double_points", Name: "Double Points", Category: domain.CategoryStudy, Multiplier: 2, Cost: PowerUpCost, Duration: PowerUpDuration},
	{Type: "quiz_boost", Name: "Quiz Boost", Category: domain.CategoryQuiz, Multiplier: 2, Cost: PowerUpCost, Duration: PowerUpDuration},
}

// PowerUpCatalog returns the purchasable power-ups.
func PowerUpCatalog() []domain.PowerUpDef {
	return append([]domain.PowerUpDef(nil), powerUpPool...)
}

func powerUpDef(typ string) (domain.PowerUpDef, bool) {
	for _, d := range powerUpPool {
		if d.Type == typ {
			return d, true
		}
	}
	return domain.PowerUpDef{}, false
}

// RefreshPowerUps deactivates every power-up observed expired at now and
// returns the types it flipped. Safe to call on every read.
func RefreshPowerUps(s *domain.ProgressSnapshot, now time.Time) []string {
	var expired []string
	for i := range s.PowerUps {
		p := &s.PowerUps[i]
		if !p.Active {
			continue
		}
		if p.ExpiresAt == nil || !now.Before(*p.ExpiresAt) {
			p.Active = false
			p.ExpiresAt = nil
			expired = append(expired, p.Type)
		}
	}
	return expired
}

// IsPowerUpActive reports whether typ is active at now, after expiry checks.
func IsPowerUpActive(s *domain.ProgressSnapshot, typ string, now time.Time) bool {
	RefreshPowerUps(s, now)
	i := s.FindPowerUp(typ)
	return i >= 0 && s.PowerUps[i].Active
}

// Multiplier returns the multiplier for deltas of cat at now.
// With several matching power-ups active the largest wins; with none it is 1.
func Multiplier(s *domain.ProgressSnapshot, cat domain.PointCategory, now time.Time) int64 {
	RefreshPowerUps(s, now)
	m := int64(1)
	for _, p := range s.PowerUps {
		if p.Active && p.Category == cat && p.Multiplier > m {
			m = p.Multiplier
		}
	}
	return m
}

// purchasePowerUp charges the cost and activates typ.
// Checks run before any mutation: unknown type, already active, then funds.
func purchasePowerUp(s *domain.ProgressSnapshot, typ string, now time.Time) error {
	def, ok := powerUpDef(typ)
	if !ok {
		return fmt.Errorf("%w: unknown power-up %q", domain.ErrValidation, typ)
	}

	RefreshPowerUps(s, now)
	i := s.FindPowerUp(typ)
	if i < 0 {
		s.PowerUps = append(s.PowerUps, def.PowerUp())
		i = len(s.PowerUps) - 1
	}
	if s.PowerUps[i].Active {
		return fmt.Errorf("%s: %w", typ, domain.ErrAlreadyActive)
	}
	if s.Points < def.Cost {
		return fmt.Errorf("%w: have %d, need %d", domain.ErrInsufficientPoints, s.Points, def.Cost)
	}

	s.Points -= def.Cost
	activatedAt := now
	expiresAt := now.Add(def.Duration)
	p := &s.PowerUps[i]
	p.Active = true
	p.ActivatedAt = &activatedAt
	p.ExpiresAt = &expiresAt
	p.Multiplier = def.Multiplier
	p.Category = def.Category
	s.Stats.PowerUpsPurchased++
	return nil
}
