package domain

// EventKind tags an Event variant.
type EventKind string

const (
	EventStudyCompleted   EventKind = "study_completed"
	EventStudyAborted     EventKind = "study_aborted"
	EventQuizStarted      EventKind = "quiz_started"
	EventQuizSubmitted    EventKind = "quiz_submitted"
	EventRevealUsed       EventKind = "reveal_used"
	EventPowerUpPurchased EventKind = "powerup_purchased"
	EventAIQuestionAsked  EventKind = "ai_question_asked"
	EventQuestProgressed  EventKind = "quest_progressed"
	EventDailyGoalChanged EventKind = "daily_goal_changed"
)

// Event is the closed set of inputs the rule engine accepts.
// Only the types in this file implement it.
type Event interface {
	Kind() EventKind
	isEvent()
}

// StudyCompleted is a study session that ran to the end.
type StudyCompleted struct {
	Minutes int `json:"minutes"`
}

// StudyAborted is a study session the user ended early.
type StudyAborted struct {
	Minutes int `json:"minutes"`
}

// QuizStarted opens a new quiz attempt and resets the reveal counter.
type QuizStarted struct{}

// QuizSubmitted carries the graded result of a quiz attempt.
type QuizSubmitted struct {
	Correct   int `json:"correct"`
	Incorrect int `json:"incorrect"`
	Revealed  int `json:"revealed"`
}

// RevealUsed asks for one answer reveal in the current attempt.
type RevealUsed struct{}

// PowerUpPurchased buys and activates a power-up.
type PowerUpPurchased struct {
	Type string `json:"type"`
}

// AIQuestionAsked records one question answered by the AI generator.
type AIQuestionAsked struct{}

// QuestProgressed adds Amount to a quest or challenge by ID.
type QuestProgressed struct {
	QuestID string `json:"questId"`
	Amount  int    `json:"amount"`
}

// DailyGoalChanged sets the user's daily study goal in minutes.
type DailyGoalChanged struct {
	Minutes int `json:"minutes"`
}

func (StudyCompleted) Kind() EventKind   { return EventStudyCompleted }
func (StudyAborted) Kind() EventKind     { return EventStudyAborted }
func (QuizStarted) Kind() EventKind      { return EventQuizStarted }
func (QuizSubmitted) Kind() EventKind    { return EventQuizSubmitted }
func (RevealUsed) Kind() EventKind       { return EventRevealUsed }
func (PowerUpPurchased) Kind() EventKind { return EventPowerUpPurchased }
func (AIQuestionAsked) Kind() EventKind  { return EventAIQuestionAsked }
func (QuestProgressed) Kind() EventKind  { return EventQuestProgressed }
func (DailyGoalChanged) Kind() EventKind { return EventDailyGoalChanged }

func (StudyCompleted) isEvent()   {}
func (StudyAborted) isEvent()     {}
func (QuizStarted) isEvent()      {}
func (QuizSubmitted) isEvent()    {}
func (RevealUsed) isEvent()       {}
func (PowerUpPurchased) isEvent() {}
func (AIQuestionAsked) isEvent()  {}
func (QuestProgressed) isEvent()  {}
func (DailyGoalChanged) isEvent() {}
