package model

import "time"

// RegradeDelta records one slot whose fraction changed during a regrade pass.
// Regraded is false for dry-run previews.
type RegradeDelta struct {
	UsageID      int64     `json:"usage_id"`
	Slot         int       `json:"slot"`
	OldFraction  *float64  `json:"old_fraction"`
	NewFraction  *float64  `json:"new_fraction"`
	Regraded     bool      `json:"regraded"`
	TimeModified time.Time `json:"time_modified"`
}

// RegradeMode enumerates the batch operations a teacher can start.
type RegradeMode string

const (
	RegradeModeSelected RegradeMode = "selected"
	RegradeModeAll      RegradeMode = "all"
	RegradeModeDryRun   RegradeMode = "dry_run"
	RegradeModeNeeding  RegradeMode = "needing"
)

// DryRun reports whether the mode only previews changes.
func (m RegradeMode) DryRun() bool {
	return m == RegradeModeDryRun
}

// RegradeRequest is the payload for starting a regrade batch.
type RegradeRequest struct {
	Mode       RegradeMode `json:"mode" binding:"required,oneof=selected all dry_run needing"`
	AttemptIDs []int64     `json:"attempt_ids" binding:"required_if=Mode selected,omitempty,max=5000,dive,gt=0"`
	GroupID    *int64      `json:"group_id" binding:"omitempty,gt=0"`
}

// CloseAttemptsRequest is the payload for force-finishing open attempts.
type CloseAttemptsRequest struct {
	AttemptIDs []int64 `json:"attempt_ids" binding:"omitempty,max=5000,dive,gt=0"`
	GroupID    *int64  `json:"group_id" binding:"omitempty,gt=0"`
}

// RunStatus enumerates the states of an asynchronous regrade run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// RegradeRun is the status record of a regrade batch started over HTTP.
type RegradeRun struct {
	ID         string      `json:"id"`
	QuizID     int64       `json:"quiz_id"`
	Mode       RegradeMode `json:"mode"`
	DryRun     bool        `json:"dry_run"`
	Status     RunStatus   `json:"status"`
	Done       int         `json:"done"`
	Total      int         `json:"total"`
	Regraded   int         `json:"regraded"`
	Failed     []int64     `json:"failed_attempt_ids"`
	Deltas     int         `json:"deltas"`
	Message    string      `json:"message,omitempty"`
	Error      string      `json:"error,omitempty"`
	StartedBy  int64       `json:"started_by"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
}

// RegradeProgress is published once per processed attempt.
type RegradeProgress struct {
	RunID   string `json:"run_id"`
	QuizID  int64  `json:"quiz_id"`
	Done    int    `json:"done"`
	Total   int    `json:"total"`
	Message string `json:"message"`
}

// RegradeState summarises the regrade status of one attempt for display.
type RegradeState string

const (
	RegradeStateNone   RegradeState = "none"
	RegradeStateNeeded RegradeState = "needed"
	RegradeStateDone   RegradeState = "done"
)

// AttemptRegrade is one attempt's row in the pending-regrade listing.
type AttemptRegrade struct {
	AttemptID    int64          `json:"attempt_id"`
	UserID       int64          `json:"user_id"`
	UsageID      int64          `json:"usage_id"`
	State        RegradeState   `json:"state"`
	OldSumGrades float64        `json:"old_sumgrades"`
	NewSumGrades float64        `json:"new_sumgrades"`
	OldGrade     float64        `json:"old_grade"`
	NewGrade     float64        `json:"new_grade"`
	Deltas       []RegradeDelta `json:"deltas"`
}

// RegradeListing is the response for the pending-regrade endpoint.
type RegradeListing struct {
	NeedingRegrade int              `json:"needing_regrade"`
	Running        bool             `json:"running"`
	Attempts       []AttemptRegrade `json:"attempts"`
}
