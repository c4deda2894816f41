package service

import (
	"testing"

	"github.com/stemsi/quiz-overview/internal/model"
	"github.com/stemsi/quiz-overview/internal/regrade"
)

func TestScopeFor(t *testing.T) {
	group := int64(4)

	tests := []struct {
		name       string
		mode       model.RegradeMode
		attemptIDs []int64
		groupID    *int64
		wantKind   regrade.ScopeKind
		wantGroup  int64
	}{
		{"selected", model.RegradeModeSelected, []int64{1, 2}, nil, regrade.ScopeExplicit, 0},
		{"all", model.RegradeModeAll, nil, nil, regrade.ScopeAll, 0},
		{"all in group", model.RegradeModeAll, nil, &group, regrade.ScopeAll, 4},
		{"dry run", model.RegradeModeDryRun, nil, nil, regrade.ScopeAll, 0},
		{"dry run of selection", model.RegradeModeDryRun, []int64{3}, nil, regrade.ScopeExplicit, 0},
		{"needing", model.RegradeModeNeeding, nil, &group, regrade.ScopeNeedingRegrade, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := ScopeFor(9, tt.mode, tt.attemptIDs, tt.groupID)
			if s.Kind() != tt.wantKind {
				t.Errorf("kind = %s, want %s", s.Kind(), tt.wantKind)
			}
			if s.GroupID() != tt.wantGroup {
				t.Errorf("group = %d, want %d", s.GroupID(), tt.wantGroup)
			}
			if s.QuizID() != 9 {
				t.Errorf("quiz = %d, want 9", s.QuizID())
			}
			if err := s.Validate(); err != nil {
				t.Errorf("Validate: %v", err)
			}
		})
	}
}

func TestBuildRegradeListing(t *testing.T) {
	quiz := &model.Quiz{ID: 1, Grade: 10, SumGrades: 6, DecimalPoints: 2}
	attempts := []model.Attempt{
		{ID: 1, UserID: 11, UsageID: 101, SumGrades: f64(4)},
		{ID: 2, UserID: 12, UsageID: 102, SumGrades: f64(6)},
		{ID: 3, UserID: 13, UsageID: 103, SumGrades: f64(3)},
	}
	deltas := map[int64]map[int]model.RegradeDelta{
		101: {
			2: {UsageID: 101, Slot: 2, OldFraction: f64(0.5), NewFraction: f64(1), Regraded: false},
		},
		102: {
			1: {UsageID: 102, Slot: 1, OldFraction: f64(0), NewFraction: f64(1), Regraded: true},
		},
	}
	marks := map[int]float64{1: 2, 2: 4}

	got := BuildRegradeListing(quiz, attempts, deltas, marks)

	if got.NeedingRegrade != 1 {
		t.Errorf("NeedingRegrade = %d, want 1", got.NeedingRegrade)
	}
	if len(got.Attempts) != 2 {
		t.Fatalf("attempts = %d, want 2", len(got.Attempts))
	}

	pending := got.Attempts[0]
	if pending.State != model.RegradeStateNeeded || pending.OldSumGrades != 4 || pending.NewSumGrades != 6 {
		t.Errorf("pending = %+v", pending)
	}
	if pending.OldGrade != 6.67 || pending.NewGrade != 10 {
		t.Errorf("pending grades = %v -> %v, want 6.67 -> 10", pending.OldGrade, pending.NewGrade)
	}

	done := got.Attempts[1]
	if done.State != model.RegradeStateDone || done.OldSumGrades != 4 || done.NewSumGrades != 6 {
		t.Errorf("done = %+v", done)
	}
}

func TestBuildRegradeListingEmpty(t *testing.T) {
	got := BuildRegradeListing(&model.Quiz{ID: 1}, nil, nil, nil)
	if got.Attempts == nil || len(got.Attempts) != 0 || got.NeedingRegrade != 0 {
		t.Errorf("empty listing = %+v", got)
	}
}
