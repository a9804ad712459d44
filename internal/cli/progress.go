package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/studyquest/studyquest/internal/app/engagement"
	"github.com/studyquest/studyquest/internal/domain"
)

// ─── Progress Bars ──────────────────────────────────────────────────────────
// Shows: [==========>.........]  52% | 180 / 350

const barWidth = 30 // Characters for the progress bar

func renderBar(pct float64) string {
	pct = min(max(pct, 0), 100)

	filled := min(int(pct/100*float64(barWidth)), barWidth)
	empty := barWidth - filled

	switch {
	case filled == barWidth:
		return "[" + strings.Repeat("=", filled) + "]"
	case filled > 0:
		return "[" + strings.Repeat("=", filled-1) + ">" + strings.Repeat(".", empty) + "]"
	default:
		return "[" + strings.Repeat(".", barWidth) + "]"
	}
}

// printLevel draws progress toward the next level.
func printLevel(w io.Writer, s domain.ProgressSnapshot) {
	pct := engagement.LevelProgressPct(s.Points)
	next := engagement.PointsForLevel(s.Level + 1)
	fmt.Fprintf(w, "Level %d  %s %3.0f%% | %d / %d points\n", s.Level, renderBar(pct), pct, s.Points, next)
}

// printQuestLine draws one quest or challenge.
func printQuestLine(w io.Writer, q domain.Quest) {
	mark := " "
	if q.Completed {
		mark = "x"
	}
	fmt.Fprintf(w, "  [%s] %-28s %s %d/%d  +%d\n", mark, q.Name, renderBar(q.ProgressPct()), q.Progress, q.Target, q.Reward)
}

// printOutcome summarizes what one event did.
func printOutcome(w io.Writer, out engagement.Outcome) {
	line := fmt.Sprintf("%+d points", out.Delta)
	if out.Multiplier > 1 {
		line += fmt.Sprintf(" (x%d)", out.Multiplier)
	}
	fmt.Fprintf(w, "%s  total %d  level %d\n", line, out.Points, out.Level)

	if out.LeveledUp {
		fmt.Fprintf(w, "Level up! You reached level %d\n", out.Level)
	}
	for _, u := range out.Unlocks {
		if u.Kind == domain.UnlockLevel {
			continue
		}
		if u.Reward > 0 {
			fmt.Fprintf(w, "Unlocked %s %s (+%d)\n", u.Kind, u.ID, u.Reward)
		} else {
			fmt.Fprintf(w, "Unlocked %s %s\n", u.Kind, u.ID)
		}
	}
}
