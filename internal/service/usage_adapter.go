package service

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/quiz-overview/internal/database"
	"github.com/stemsi/quiz-overview/internal/model"
	"github.com/stemsi/quiz-overview/internal/regrade"
	"github.com/stemsi/quiz-overview/internal/repository"
	"github.com/stemsi/quiz-overview/internal/scoring"
)

// QuestionLoader fetches current question definitions by ID.
type QuestionLoader interface {
	GetQuestions(ctx context.Context, ids []int64) (map[int64]*model.Question, error)
}

// UsageStore reads and writes the slot attempts of a question usage.
type UsageStore interface {
	Load(ctx context.Context, usageID int64) (*model.QuestionUsage, error)
	SaveFractions(ctx context.Context, usage *model.QuestionUsage) error
}

// UsageAdapter rescores question usages against the current answer keys.
// Question definitions are cached for the adapter's lifetime, which is one transaction.
type UsageAdapter struct {
	usages    UsageStore
	questions QuestionLoader
	scorer    *scoring.Scorer
	cache     map[int64]*model.Question
}

// NewUsageAdapter creates a new UsageAdapter.
func NewUsageAdapter(usages UsageStore, questions QuestionLoader, scorer *scoring.Scorer) *UsageAdapter {
	return &UsageAdapter{
		usages:    usages,
		questions: questions,
		scorer:    scorer,
		cache:     make(map[int64]*model.Question),
	}
}

// Load reads a usage and prefetches the questions it references.
func (a *UsageAdapter) Load(ctx context.Context, usageID int64) (*model.QuestionUsage, error) {
	usage, err := a.usages.Load(ctx, usageID)
	if err != nil {
		return nil, fmt.Errorf("load usage %d: %w", usageID, err)
	}

	var missing []int64
	for _, s := range usage.Slots {
		if _, ok := a.cache[s.QuestionID]; !ok {
			missing = append(missing, s.QuestionID)
		}
	}
	if len(missing) > 0 {
		found, err := a.questions.GetQuestions(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("load questions: %w", err)
		}
		for id, q := range found {
			a.cache[id] = q
		}
	}
	return usage, nil
}

// SlotsOf returns every slot of the usage.
func (a *UsageAdapter) SlotsOf(usage *model.QuestionUsage) []int {
	return usage.SlotNumbers()
}

// RegradeSlot scores one slot under its question's current answer key.
func (a *UsageAdapter) RegradeSlot(ctx context.Context, usage *model.QuestionUsage, slot int, finished bool) (*float64, error) {
	st := usage.Slot(slot)
	if st == nil {
		return nil, fmt.Errorf("usage %d has no slot %d", usage.ID, slot)
	}

	q, ok := a.cache[st.QuestionID]
	if !ok {
		found, err := a.questions.GetQuestions(ctx, []int64{st.QuestionID})
		if err != nil {
			return nil, fmt.Errorf("load question %d: %w", st.QuestionID, err)
		}
		if q, ok = found[st.QuestionID]; !ok {
			return nil, fmt.Errorf("question %d not found", st.QuestionID)
		}
		a.cache[q.ID] = q
	}

	return a.scorer.Score(q, st, finished)
}

// Save persists the usage's slot fractions.
func (a *UsageAdapter) Save(ctx context.Context, usage *model.QuestionUsage) error {
	return a.usages.SaveFractions(ctx, usage)
}

// PgTransactor binds the regrade stores to a PostgreSQL transaction.
type PgTransactor struct {
	pool   *pgxpool.Pool
	scorer *scoring.Scorer
}

// NewPgTransactor creates a new PgTransactor.
func NewPgTransactor(pool *pgxpool.Pool, scorer *scoring.Scorer) *PgTransactor {
	return &PgTransactor{pool: pool, scorer: scorer}
}

// InTx runs fn with stores bound to a single transaction.
func (t *PgTransactor) InTx(ctx context.Context, fn func(ctx context.Context, s regrade.Stores) error) error {
	return database.WithTx(ctx, t.pool, func(tx pgx.Tx) error {
		return fn(ctx, regrade.Stores{
			Usages:   NewUsageAdapter(repository.NewUsageRepository(tx), repository.NewQuizRepository(tx), t.scorer),
			Deltas:   repository.NewRegradeRepository(tx),
			Attempts: repository.NewAttemptRepository(tx),
		})
	})
}
