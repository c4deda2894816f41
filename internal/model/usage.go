package model

import (
	"sort"
	"time"
)

// QuestionType tags how a slot is scored.
type QuestionType string

const (
	QuestionTypeMultiChoice   QuestionType = "multichoice"
	QuestionTypeTrueFalse     QuestionType = "truefalse"
	QuestionTypeMultiResponse QuestionType = "multiresponse"
	QuestionTypeNumerical     QuestionType = "numerical"
	QuestionTypeShortAnswer   QuestionType = "shortanswer"
	QuestionTypeEssay         QuestionType = "essay"
	QuestionTypeDescription   QuestionType = "description"
)

// AnswerKey is the scoring rule stored with a question as JSONB.
// Which fields apply depends on the question type.
type AnswerKey struct {
	Answer        string   `json:"answer,omitempty"`
	Answers       []string `json:"answers,omitempty"`
	Value         *float64 `json:"value,omitempty"`
	Tolerance     float64  `json:"tolerance,omitempty"`
	Relative      bool     `json:"relative,omitempty"`
	CaseSensitive bool     `json:"case_sensitive,omitempty"`
}

// Question is the current definition of a question, including its scoring rule.
type Question struct {
	ID        int64        `json:"id"`
	Type      QuestionType `json:"qtype"`
	AnswerKey AnswerKey    `json:"answer_key"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// SlotAttempt is the scored state of one question position in a usage.
type SlotAttempt struct {
	Slot         int          `json:"slot"`
	QuestionID   int64        `json:"question_id"`
	QuestionType QuestionType `json:"qtype"`
	MaxMark      float64      `json:"max_mark"`
	Response     *string      `json:"response"`
	Fraction     *float64     `json:"fraction"`
}

// QuestionUsage is the ordered collection of slot attempts owned by one Attempt.
type QuestionUsage struct {
	ID    int64         `json:"id"`
	Slots []SlotAttempt `json:"slots"`
}

// SlotNumbers returns the slot ids of the usage in ascending order.
func (u *QuestionUsage) SlotNumbers() []int {
	nums := make([]int, 0, len(u.Slots))
	for _, s := range u.Slots {
		nums = append(nums, s.Slot)
	}
	sort.Ints(nums)
	return nums
}

// Slot returns the slot attempt with the given number, or nil.
func (u *QuestionUsage) Slot(n int) *SlotAttempt {
	for i := range u.Slots {
		if u.Slots[i].Slot == n {
			return &u.Slots[i]
		}
	}
	return nil
}

// TotalMark is the sum of fraction × max mark over all slots. Ungraded slots count as zero.
func (u *QuestionUsage) TotalMark() float64 {
	var total float64
	for _, s := range u.Slots {
		if s.Fraction != nil {
			total += *s.Fraction * s.MaxMark
		}
	}
	return total
}

// Clone returns a deep copy of the usage.
func (u *QuestionUsage) Clone() *QuestionUsage {
	out := &QuestionUsage{ID: u.ID, Slots: make([]SlotAttempt, len(u.Slots))}
	for i, s := range u.Slots {
		c := s
		if s.Response != nil {
			r := *s.Response
			c.Response = &r
		}
		if s.Fraction != nil {
			f := *s.Fraction
			c.Fraction = &f
		}
		out.Slots[i] = c
	}
	return out
}
