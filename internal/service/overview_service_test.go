package service

import (
	"testing"

	"github.com/stemsi/quiz-overview/internal/model"
	"github.com/stemsi/quiz-overview/internal/repository"
)

func TestSummarizeGrades(t *testing.T) {
	quiz := &model.Quiz{ID: 1, Grade: 10, SumGrades: 6}
	raw := &repository.RawGradeSummary{
		Average: f64(4.1),
		Highest: f64(5.5),
		Lowest:  f64(1),
		Count:   3,
	}

	got := SummarizeGrades(quiz, raw)
	if got.Count != 3 || got.MaxGrade != 10 {
		t.Errorf("count/max = %d/%v", got.Count, got.MaxGrade)
	}
	if got.Average == nil || *got.Average != 6.8 {
		t.Errorf("average = %v, want 6.8", got.Average)
	}
	if got.Highest == nil || *got.Highest != 9 {
		t.Errorf("highest = %v, want 9", got.Highest)
	}
	if got.Lowest == nil || *got.Lowest != 2 {
		t.Errorf("lowest = %v, want 2", got.Lowest)
	}
}

func TestSummarizeGradesWithoutAttempts(t *testing.T) {
	quiz := &model.Quiz{ID: 1, Grade: 10, SumGrades: 6}
	got := SummarizeGrades(quiz, &repository.RawGradeSummary{})
	if got.Average != nil || got.Highest != nil || got.Lowest != nil || got.Count != 0 {
		t.Errorf("summary = %+v, want empty", got)
	}
}

func TestRateQuestions(t *testing.T) {
	got := RateQuestions([]model.QuestionStat{
		{Slot: 1, Right: 4, Users: 4},
		{Slot: 2, Right: 2, Users: 4},
		{Slot: 3, Right: 1, Users: 4},
		{Slot: 4, Right: 0, Users: 4},
		{Slot: 5, Right: 0, Users: 0},
	})

	want := []model.BadgeColor{model.BadgeGreen, model.BadgeYellow, model.BadgeRed, model.BadgeGrey, model.BadgeGrey}
	for i, st := range got {
		if st.Badge != want[i] {
			t.Errorf("slot %d badge = %s, want %s", st.Slot, st.Badge, want[i])
		}
	}
	if got[2].Ratio != 0.25 {
		t.Errorf("slot 3 ratio = %v, want 0.25", got[2].Ratio)
	}
}
