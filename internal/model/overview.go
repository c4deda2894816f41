package model

// GradeSummary holds aggregate grade statistics of finished attempts.
// Nil values mean no attempt has a grade yet.
type GradeSummary struct {
	Average  *float64 `json:"average"`
	Highest  *float64 `json:"highest"`
	Lowest   *float64 `json:"lowest"`
	Count    int      `json:"count"`
	MaxGrade float64  `json:"max_grade"`
}

// SubmissionStats counts enrolled users by how far they got with the quiz.
type SubmissionStats struct {
	Finished   int `json:"finished"`
	InProgress int `json:"in_progress"`
	NotStarted int `json:"not_started"`
}

// BadgeColor classifies how well a question was answered across users.
type BadgeColor string

const (
	BadgeGreen  BadgeColor = "green"
	BadgeYellow BadgeColor = "yellow"
	BadgeRed    BadgeColor = "red"
	BadgeGrey   BadgeColor = "grey"
)

// BadgeFor maps a right-answer ratio onto a badge colour.
func BadgeFor(ratio float64) BadgeColor {
	switch {
	case ratio >= 1:
		return BadgeGreen
	case ratio >= 0.5:
		return BadgeYellow
	case ratio > 0:
		return BadgeRed
	default:
		return BadgeGrey
	}
}

// QuestionStat is one slot's right-answer statistic.
type QuestionStat struct {
	Slot       int          `json:"slot"`
	QuestionID int64        `json:"question_id"`
	QType      QuestionType `json:"qtype"`
	Right      int          `json:"right"`
	Users      int          `json:"users"`
	Ratio      float64      `json:"ratio"`
	Badge      BadgeColor   `json:"badge"`
}

// Bucket is a labelled histogram bar.
type Bucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// GradeDistribution is the generic band breakdown of final grades.
type GradeDistribution struct {
	BandCount int      `json:"band_count"`
	BandWidth float64  `json:"band_width"`
	Labels    []string `json:"labels"`
	Counts    []int    `json:"counts"`
}

// QuizOverview is the teacher dashboard payload for one quiz.
type QuizOverview struct {
	Quiz           *Quiz             `json:"quiz"`
	GroupID        *int64            `json:"group_id,omitempty"`
	Summary        GradeSummary      `json:"summary"`
	Submissions    SubmissionStats   `json:"submissions"`
	Histogram      []Bucket          `json:"histogram"`
	Distribution   GradeDistribution `json:"distribution"`
	Questions      []QuestionStat    `json:"questions"`
	NeedingRegrade int               `json:"needing_regrade"`
}
