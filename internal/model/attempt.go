package model

import "time"

// AttemptState represents the lifecycle status of a quiz attempt.
type AttemptState string

const (
	AttemptStateNotStarted AttemptState = "not_started"
	AttemptStateInProgress AttemptState = "in_progress"
	AttemptStateOverdue    AttemptState = "overdue"
	AttemptStateFinished   AttemptState = "finished"
	AttemptStateAbandoned  AttemptState = "abandoned"
)

// Attempt is one student's instance of taking a quiz.
type Attempt struct {
	ID           int64        `json:"id"`
	QuizID       int64        `json:"quiz_id"`
	UserID       int64        `json:"user_id"`
	Attempt      int          `json:"attempt"`
	UsageID      int64        `json:"usage_id"`
	State        AttemptState `json:"state"`
	SumGrades    *float64     `json:"sumgrades"`
	Preview      bool         `json:"preview"`
	TimeStart    time.Time    `json:"time_start"`
	TimeFinish   *time.Time   `json:"time_finish,omitempty"`
	TimeModified time.Time    `json:"time_modified"`
}

// IsFinished reports whether the attempt has been submitted.
func (a *Attempt) IsFinished() bool {
	return a.State == AttemptStateFinished
}
