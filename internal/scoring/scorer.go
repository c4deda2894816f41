// Package scoring computes slot fractions from responses and the current answer keys.
package scoring

import (
	"errors"
	"fmt"
	"strings"

	"github.com/stemsi/quiz-overview/internal/model"
)

var (
	ErrUnsupportedType = errors.New("scoring: unsupported question type")
	ErrMalformedKey    = errors.New("scoring: malformed answer key")
)

// Strategy scores a non-empty response for one question type.
type Strategy interface {
	Fraction(key model.AnswerKey, response string) (float64, error)
}

// Scorer routes by question type to the correct Strategy.
type Scorer struct {
	strategies map[model.QuestionType]Strategy
}

// NewScorer installs the built-in strategies.
func NewScorer() *Scorer {
	return &Scorer{
		strategies: map[model.QuestionType]Strategy{
			model.QuestionTypeMultiChoice:   singleChoiceStrategy{},
			model.QuestionTypeTrueFalse:     singleChoiceStrategy{},
			model.QuestionTypeMultiResponse: multiResponseStrategy{},
			model.QuestionTypeNumerical:     numericalStrategy{},
			model.QuestionTypeShortAnswer:   shortAnswerStrategy{},
		},
	}
}

// Score returns the slot's fraction under the question's current answer key.
// Description questions are never graded and essays keep their manual grade.
// An empty response stays ungraded until the attempt is finished, then scores zero.
func (s *Scorer) Score(q *model.Question, slot *model.SlotAttempt, finished bool) (*float64, error) {
	switch q.Type {
	case model.QuestionTypeDescription:
		return nil, nil
	case model.QuestionTypeEssay:
		if slot.Fraction == nil {
			return nil, nil
		}
		v := *slot.Fraction
		return &v, nil
	}

	strategy, ok := s.strategies[q.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, q.Type)
	}

	if slot.Response == nil || strings.TrimSpace(*slot.Response) == "" {
		if finished {
			zero := 0.0
			return &zero, nil
		}
		return nil, nil
	}

	f, err := strategy.Fraction(q.AnswerKey, *slot.Response)
	if err != nil {
		return nil, fmt.Errorf("question %d: %w", q.ID, err)
	}
	f = min(max(f, 0), 1)
	return &f, nil
}
