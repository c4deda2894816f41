package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stemsi/quiz-overview/internal/database"
	"github.com/stemsi/quiz-overview/internal/model"
	"github.com/stemsi/quiz-overview/internal/regrade"
)

const attemptColumns = `qa.id, qa.quiz_id, qa.user_id, qa.attempt, qa.usage_id, qa.state,
	qa.sumgrades, qa.preview, qa.time_start, qa.time_finish, qa.time_modified`

// AttemptRepository handles quiz attempt data access.
type AttemptRepository struct {
	db database.DBTX
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(db database.DBTX) *AttemptRepository {
	return &AttemptRepository{db: db}
}

// ResolveScope lists the non-preview attempts matched by scope, ordered by ID.
func (r *AttemptRepository) ResolveScope(ctx context.Context, scope regrade.Scope) ([]model.Attempt, error) {
	args := &queryArgs{}
	where := attemptFilter(scope, "qa", args)
	return r.list(ctx, `SELECT `+attemptColumns+` FROM quiz_attempts qa WHERE `+where+` ORDER BY qa.id`, args.values...)
}

// ByUsageIDs lists the non-preview attempts of a quiz owning the given usages, ordered by ID.
func (r *AttemptRepository) ByUsageIDs(ctx context.Context, quizID int64, usageIDs []int64) ([]model.Attempt, error) {
	return r.list(ctx,
		`SELECT `+attemptColumns+`
		 FROM quiz_attempts qa
		 WHERE qa.quiz_id = $1 AND qa.preview = FALSE AND qa.usage_id = ANY($2::bigint[])
		 ORDER BY qa.id`, quizID, usageIDs)
}

// UpdateSumGrades stores a recomputed raw mark on a finished attempt.
func (r *AttemptRepository) UpdateSumGrades(ctx context.Context, attemptID int64, sum float64) error {
	_, err := r.db.Exec(ctx,
		`UPDATE quiz_attempts SET sumgrades = $1, time_modified = NOW() WHERE id = $2`,
		sum, attemptID)
	return err
}

// Finish marks an attempt as finished with its final raw mark.
func (r *AttemptRepository) Finish(ctx context.Context, attemptID int64, sum float64, at time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE quiz_attempts
		 SET state = $1, sumgrades = $2, time_finish = $3, time_modified = $3
		 WHERE id = $4`,
		model.AttemptStateFinished, sum, at, attemptID)
	return err
}

// ListFinished lists the finished non-preview attempts of a quiz ordered by user and attempt number.
func (r *AttemptRepository) ListFinished(ctx context.Context, quizID int64) ([]model.Attempt, error) {
	return r.list(ctx,
		`SELECT `+attemptColumns+`
		 FROM quiz_attempts qa
		 WHERE qa.quiz_id = $1 AND qa.preview = FALSE AND qa.state = $2
		 ORDER BY qa.user_id, qa.attempt`, quizID, model.AttemptStateFinished)
}

func (r *AttemptRepository) list(ctx context.Context, sql string, args ...any) ([]model.Attempt, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

func scanAttempt(row pgx.Row) (model.Attempt, error) {
	var a model.Attempt
	err := row.Scan(&a.ID, &a.QuizID, &a.UserID, &a.Attempt, &a.UsageID, &a.State,
		&a.SumGrades, &a.Preview, &a.TimeStart, &a.TimeFinish, &a.TimeModified)
	return a, err
}
