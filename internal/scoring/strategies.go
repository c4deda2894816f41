package scoring

import (
	"math"
	"strconv"
	"strings"

	"github.com/stemsi/quiz-overview/internal/model"
)

type singleChoiceStrategy struct{}

func (singleChoiceStrategy) Fraction(key model.AnswerKey, response string) (float64, error) {
	if key.Answer == "" {
		return 0, ErrMalformedKey
	}
	if strings.TrimSpace(response) == key.Answer {
		return 1, nil
	}
	return 0, nil
}

// multiResponseStrategy gives partial credit for a subset of the right
// choices and nothing once a wrong choice is selected.
type multiResponseStrategy struct{}

func (multiResponseStrategy) Fraction(key model.AnswerKey, response string) (float64, error) {
	if len(key.Answers) == 0 {
		return 0, ErrMalformedKey
	}
	correct := toSet(key.Answers)
	chosen := toSet(strings.Split(response, ","))

	hits := 0
	for c := range chosen {
		if _, ok := correct[c]; !ok {
			return 0, nil
		}
		hits++
	}
	return float64(hits) / float64(len(correct)), nil
}

// numericalStrategy accepts a response within Tolerance of Value, absolute or
// relative to Value when Relative is set.
type numericalStrategy struct{}

func (numericalStrategy) Fraction(key model.AnswerKey, response string) (float64, error) {
	if key.Value == nil {
		return 0, ErrMalformedKey
	}
	v, ok := parseFloatLoose(response)
	if !ok {
		return 0, nil
	}

	tol := math.Abs(key.Tolerance)
	if key.Relative {
		tol *= math.Abs(*key.Value)
	}
	if math.Abs(v-*key.Value) <= tol {
		return 1, nil
	}
	return 0, nil
}

type shortAnswerStrategy struct{}

func (shortAnswerStrategy) Fraction(key model.AnswerKey, response string) (float64, error) {
	if len(key.Answers) == 0 {
		return 0, ErrMalformedKey
	}
	got := normalize(response, key.CaseSensitive)
	for _, a := range key.Answers {
		if normalize(a, key.CaseSensitive) == got {
			return 1, nil
		}
	}
	return 0, nil
}

func normalize(s string, caseSensitive bool) string {
	s = strings.Join(strings.Fields(s), " ")
	if !caseSensitive {
		s = strings.ToLower(s)
	}
	return s
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			set[it] = struct{}{}
		}
	}
	return set
}

func parseFloatLoose(s string) (float64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, true
	}
	if f := strings.Fields(s); len(f) > 0 {
		if v, err := strconv.ParseFloat(f[0], 64); err == nil {
			return v, true
		}
	}
	return 0, false
}
