package service

import (
	"math"
	"testing"

	"github.com/stemsi/quiz-overview/internal/model"
)

func marked(userID int64, attempt int, sum *float64, state model.AttemptState) model.Attempt {
	return model.Attempt{UserID: userID, Attempt: attempt, SumGrades: sum, State: state}
}

func f64(v float64) *float64 { return &v }

func TestFinalGrades(t *testing.T) {
	attempts := []model.Attempt{
		marked(1, 1, f64(4), model.AttemptStateFinished),
		marked(1, 2, f64(8), model.AttemptStateFinished),
		marked(1, 3, f64(6), model.AttemptStateFinished),
		marked(2, 1, f64(2), model.AttemptStateFinished),
		marked(2, 2, nil, model.AttemptStateFinished),
		marked(3, 1, f64(10), model.AttemptStateInProgress),
	}

	tests := []struct {
		method model.GradeMethod
		want   map[int64]float64
	}{
		{model.GradeMethodHighest, map[int64]float64{1: 80, 2: 20}},
		{model.GradeMethodAverage, map[int64]float64{1: 60, 2: 20}},
		{model.GradeMethodFirst, map[int64]float64{1: 40, 2: 20}},
		{model.GradeMethodLast, map[int64]float64{1: 60, 2: 20}},
	}

	for _, tt := range tests {
		t.Run(string(tt.method), func(t *testing.T) {
			quiz := &model.Quiz{ID: 1, Grade: 100, SumGrades: 10, GradeMethod: tt.method}
			got := FinalGrades(quiz, attempts)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d grades, want %d: %+v", len(got), len(tt.want), got)
			}
			for _, g := range got {
				if math.Abs(g.Grade-tt.want[g.UserID]) > 1e-9 {
					t.Errorf("user %d grade = %v, want %v", g.UserID, g.Grade, tt.want[g.UserID])
				}
			}
		})
	}
}

func TestFinalGradesWithoutMaximum(t *testing.T) {
	quiz := &model.Quiz{ID: 1, Grade: 10, SumGrades: 0}
	got := FinalGrades(quiz, []model.Attempt{marked(5, 1, f64(3), model.AttemptStateFinished)})
	if len(got) != 1 || got[0].Grade != 0 {
		t.Errorf("got %+v, want a single zero grade", got)
	}
}
