package engagement

import (
	"fmt"
	"time"

	"github.com/studyquest/studyquest/internal/domain"
)

// questPool is the quest catalog every user starts with.
var questPool = []domain.QuestTemplate{
	{ID: "study-30", Name: "Study for 30 minutes", Category: domain.QuestStudyMinutes, Target: 30, Reward: 50},
	{ID: "quiz-3", Name: "Finish 3 quizzes", Category: domain.QuestQuizzes, Target: 3, Reward: 40},
	{ID: "ask-ai-5", Name: "Ask the tutor 5 questions", Category: domain.QuestAIQuestions, Target: 5, Reward: 30},
	{ID: "streak-3", Name: "Reach a 3-day streak", Category: domain.QuestStreak, Target: 3, Reward: 60},
	{ID: "goal-5", Name: "Hit your daily goal 5 times", Category: domain.QuestDailyGoal, Target: 5, Reward: 100},
}

// challengePool holds the longer-running challenges.
var challengePool = []domain.QuestTemplate{
	{ID: "marathon-300", Name: "Study for 300 minutes", Category: domain.QuestStudyMinutes, Target: 300, Reward: 300},
	{ID: "quiz-25", Name: "Finish 25 quizzes", Category: domain.QuestQuizzes, Target: 25, Reward: 250},
	{ID: "streak-30", Name: "Reach a 30-day streak", Category: domain.QuestStreak, Target: 30, Reward: 500},
}

// QuestTemplates returns the quest catalog.
func QuestTemplates() []domain.QuestTemplate {
	return append([]domain.QuestTemplate(nil), questPool...)
}

// ChallengeTemplates returns the challenge catalog.
func ChallengeTemplates() []domain.QuestTemplate {
	return append([]domain.QuestTemplate(nil), challengePool...)
}

// advanceQuest adds amount to q, clamps at target and completes it once.
// Reports true only on the incomplete -> complete transition.
func advanceQuest(q *domain.Quest, amount int, now time.Time) bool {
	if q.Completed || amount <= 0 {
		return false
	}
	q.Progress = min(q.Progress+amount, q.Target)
	if q.Progress < q.Target {
		return false
	}
	at := now
	q.Completed = true
	q.CompletedAt = &at
	return true
}

// raiseQuest sets progress to value when it is higher. Used for streak
// quests, where the magnitude is a level rather than an increment.
func raiseQuest(q *domain.Quest, value int, now time.Time) bool {
	if value <= q.Progress {
		return false
	}
	return advanceQuest(q, value-q.Progress, now)
}

// recordCategory advances every quest and challenge subscribed to cat.
// Rewards are added to points as they complete.
func recordCategory(s *domain.ProgressSnapshot, cat domain.QuestCategory, amount int, now time.Time) []domain.Unlock {
	var unlocks []domain.Unlock
	step := func(list []domain.Quest, kind domain.UnlockKind) {
		for i := range list {
			q := &list[i]
			if q.Category != cat {
				continue
			}
			var done bool
			if cat == domain.QuestStreak {
				done = raiseQuest(q, amount, now)
			} else {
				done = advanceQuest(q, amount, now)
			}
			if done {
				addPoints(s, q.Reward)
				unlocks = append(unlocks, domain.Unlock{Kind: kind, ID: q.ID, Reward: q.Reward})
			}
		}
	}
	step(s.Quests, domain.UnlockQuest)
	step(s.Challenges, domain.UnlockChallenge)
	return unlocks
}

// checkQuestProgress advances a single quest or challenge by ID.
// After completion any further call, including amount 0, is a no-op.
func checkQuestProgress(s *domain.ProgressSnapshot, id string, amount int, now time.Time) ([]domain.Unlock, error) {
	if amount < 0 {
		return nil, fmt.Errorf("%w: quest amount must not be negative, got %d", domain.ErrValidation, amount)
	}
	for _, list := range []struct {
		items []domain.Quest
		kind  domain.UnlockKind
	}{
		{s.Quests, domain.UnlockQuest},
		{s.Challenges, domain.UnlockChallenge},
	} {
		for i := range list.items {
			q := &list.items[i]
			if q.ID != id {
				continue
			}
			if !advanceQuest(q, amount, now) {
				return nil, nil
			}
			addPoints(s, q.Reward)
			return []domain.Unlock{{Kind: list.kind, ID: q.ID, Reward: q.Reward}}, nil
		}
	}
	return nil, fmt.Errorf("quest %q: %w", id, domain.ErrNotFound)
}
