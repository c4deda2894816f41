package regrade

import (
	"context"
	"time"

	"github.com/stemsi/quiz-overview/internal/model"
)

// UsageAdapter loads, rescores and persists question usages.
type UsageAdapter interface {
	Load(ctx context.Context, usageID int64) (*model.QuestionUsage, error)
	SlotsOf(usage *model.QuestionUsage) []int
	// RegradeSlot rescores one slot against the current question definition.
	// finished tells the scorer whether unanswered slots count as wrong.
	RegradeSlot(ctx context.Context, usage *model.QuestionUsage, slot int, finished bool) (*float64, error)
	Save(ctx context.Context, usage *model.QuestionUsage) error
}

// DiffStore persists per-slot regrade deltas.
type DiffStore interface {
	Clear(ctx context.Context, scope Scope) error
	// ClearUsage deletes every delta of one usage.
	ClearUsage(ctx context.Context, usageID int64) error
	InsertBatch(ctx context.Context, deltas []model.RegradeDelta) error
	// QueryPending returns uncommitted deltas keyed by usage id then slot.
	QueryPending(ctx context.Context, scope Scope) (map[int64]map[int]model.RegradeDelta, error)
}

// AttemptSource resolves scopes into attempts.
type AttemptSource interface {
	// ResolveScope returns the non-preview attempts matching scope.
	ResolveScope(ctx context.Context, scope Scope) ([]model.Attempt, error)
	ByUsageIDs(ctx context.Context, quizID int64, usageIDs []int64) ([]model.Attempt, error)
}

// AttemptWriter persists attempt-level score changes.
type AttemptWriter interface {
	UpdateSumGrades(ctx context.Context, attemptID int64, sumGrades float64) error
	Finish(ctx context.Context, attemptID int64, sumGrades float64, at time.Time) error
}

// Stores are the collaborators bound to one attempt's transaction.
type Stores struct {
	Usages   UsageAdapter
	Deltas   DiffStore
	Attempts AttemptWriter
}

// Transactor runs fn in a transaction, committing when it returns nil.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
}

// GradeSync brings quiz-level and gradebook grades in line with attempt scores.
type GradeSync interface {
	RecomputeSumGrades(ctx context.Context, quiz *model.Quiz) error
	RecomputeFinalGrades(ctx context.Context, quiz *model.Quiz) error
	PushToGradebook(ctx context.Context, quiz *model.Quiz) error
}

// ProgressSink observes batch progress. It is called once per processed attempt.
type ProgressSink interface {
	Progress(done, total int, message string)
}

// ProgressFunc adapts a plain function to ProgressSink.
type ProgressFunc func(done, total int, message string)

func (f ProgressFunc) Progress(done, total int, message string) { f(done, total, message) }

// Discard is a ProgressSink that ignores every update.
var Discard ProgressSink = ProgressFunc(func(int, int, string) {})
