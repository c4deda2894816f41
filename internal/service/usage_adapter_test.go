package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stemsi/quiz-overview/internal/model"
	"github.com/stemsi/quiz-overview/internal/scoring"
)

type memUsages struct {
	usages map[int64]*model.QuestionUsage
	saved  []*model.QuestionUsage
}

func (m *memUsages) Load(_ context.Context, id int64) (*model.QuestionUsage, error) {
	u, ok := m.usages[id]
	if !ok {
		return nil, errors.New("missing usage")
	}
	return u.Clone(), nil
}

func (m *memUsages) SaveFractions(_ context.Context, u *model.QuestionUsage) error {
	m.saved = append(m.saved, u.Clone())
	return nil
}

type memQuestions struct {
	questions map[int64]*model.Question
	calls     int
}

func (m *memQuestions) GetQuestions(_ context.Context, ids []int64) (map[int64]*model.Question, error) {
	m.calls++
	out := make(map[int64]*model.Question)
	for _, id := range ids {
		if q, ok := m.questions[id]; ok {
			out[id] = q
		}
	}
	return out, nil
}

func strPtr(s string) *string { return &s }

func TestUsageAdapterRegradeSlot(t *testing.T) {
	usages := &memUsages{usages: map[int64]*model.QuestionUsage{
		10: {ID: 10, Slots: []model.SlotAttempt{
			{Slot: 2, QuestionID: 7, QuestionType: model.QuestionTypeMultiChoice, MaxMark: 1, Response: strPtr("b")},
			{Slot: 1, QuestionID: 8, QuestionType: model.QuestionTypeShortAnswer, MaxMark: 1, Response: strPtr("Paris")},
		}},
	}}
	questions := &memQuestions{questions: map[int64]*model.Question{
		7: {ID: 7, Type: model.QuestionTypeMultiChoice, AnswerKey: model.AnswerKey{Answer: "b"}},
		8: {ID: 8, Type: model.QuestionTypeShortAnswer, AnswerKey: model.AnswerKey{Answers: []string{"paris"}}},
	}}
	a := NewUsageAdapter(usages, questions, scoring.NewScorer())
	ctx := context.Background()

	u, err := a.Load(ctx, 10)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := a.SlotsOf(u); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("SlotsOf = %v, want [1 2]", got)
	}

	for _, slot := range []int{1, 2} {
		f, err := a.RegradeSlot(ctx, u, slot, true)
		if err != nil {
			t.Fatalf("RegradeSlot(%d): %v", slot, err)
		}
		if f == nil || *f != 1 {
			t.Errorf("slot %d fraction = %v, want 1", slot, f)
		}
	}
	if questions.calls != 1 {
		t.Errorf("question lookups = %d, want 1", questions.calls)
	}

	if _, err := a.RegradeSlot(ctx, u, 9, true); err == nil {
		t.Error("expected error for unknown slot")
	}

	if err := a.Save(ctx, u); err != nil || len(usages.saved) != 1 {
		t.Errorf("Save err=%v saved=%d", err, len(usages.saved))
	}
}
