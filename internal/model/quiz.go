package model

import "time"

// GradeMethod decides which attempt grade becomes a user's final quiz grade.
type GradeMethod string

const (
	GradeMethodHighest GradeMethod = "highest"
	GradeMethodAverage GradeMethod = "average"
	GradeMethodFirst   GradeMethod = "first"
	GradeMethodLast    GradeMethod = "last"
)

// Quiz is the graded assessment an overview is built for.
type Quiz struct {
	ID            int64       `json:"id"`
	CourseID      int64       `json:"course_id"`
	Name          string      `json:"name"`
	Grade         float64     `json:"grade"`     // Maximum grade shown to students.
	SumGrades     float64     `json:"sumgrades"` // Sum of slot max marks.
	DecimalPoints int         `json:"decimal_points"`
	GradeMethod   GradeMethod `json:"grade_method"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// RescaleGrade converts raw attempt marks onto the quiz grade scale.
func (q *Quiz) RescaleGrade(raw float64) float64 {
	if q.SumGrades <= 0 {
		return 0
	}
	return raw * q.Grade / q.SumGrades
}
