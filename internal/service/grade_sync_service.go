package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/quiz-overview/internal/config"
	"github.com/stemsi/quiz-overview/internal/database"
	"github.com/stemsi/quiz-overview/internal/model"
	"github.com/stemsi/quiz-overview/internal/repository"
)

// GradebookPush is the queue payload asking the gradebook worker to mirror a quiz's grades.
type GradebookPush struct {
	QuizID      int64     `json:"quiz_id"`
	RequestedAt time.Time `json:"requested_at"`
}

// GradeSyncService keeps quiz-level grades and the gradebook in line with attempt marks.
type GradeSyncService struct {
	pool     *pgxpool.Pool
	attempts *repository.AttemptRepository
	grades   *repository.GradeRepository
	rdb      *redis.Client
	log      zerolog.Logger
}

// NewGradeSyncService creates a new GradeSyncService.
func NewGradeSyncService(
	pool *pgxpool.Pool,
	attempts *repository.AttemptRepository,
	grades *repository.GradeRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *GradeSyncService {
	return &GradeSyncService{
		pool:     pool,
		attempts: attempts,
		grades:   grades,
		rdb:      rdb,
		log:      log.With().Str("component", "grade_sync").Logger(),
	}
}

// RecomputeSumGrades refreshes the quiz's maximum raw mark from its slots.
func (s *GradeSyncService) RecomputeSumGrades(ctx context.Context, quiz *model.Quiz) error {
	sum, err := s.grades.RecomputeQuizSumGrades(ctx, quiz.ID)
	if err != nil {
		return fmt.Errorf("recompute sumgrades of quiz %d: %w", quiz.ID, err)
	}
	quiz.SumGrades = sum
	return nil
}

// RecomputeFinalGrades rebuilds every user's quiz grade from their finished attempts.
func (s *GradeSyncService) RecomputeFinalGrades(ctx context.Context, quiz *model.Quiz) error {
	attempts, err := s.attempts.ListFinished(ctx, quiz.ID)
	if err != nil {
		return fmt.Errorf("list finished attempts: %w", err)
	}

	grades := FinalGrades(quiz, attempts)

	err = database.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return repository.NewGradeRepository(tx).ReplaceFinalGrades(ctx, quiz.ID, grades)
	})
	if err != nil {
		return fmt.Errorf("replace final grades of quiz %d: %w", quiz.ID, err)
	}

	s.log.Debug().Int64("quiz_id", quiz.ID).Int("users", len(grades)).Msg("Final grades recomputed")
	return nil
}

// PushToGradebook queues the quiz for the gradebook worker.
func (s *GradeSyncService) PushToGradebook(ctx context.Context, quiz *model.Quiz) error {
	raw, err := json.Marshal(GradebookPush{QuizID: quiz.ID, RequestedAt: time.Now()})
	if err != nil {
		return err
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.GradebookPushQueue, raw).Err(); err != nil {
		return fmt.Errorf("enqueue gradebook push: %w", err)
	}
	return nil
}

// FinalGrades derives each user's quiz grade from their finished attempts
// according to the quiz grade method. Attempts are expected in attempt order
// per user; attempts without a mark are ignored.
func FinalGrades(quiz *model.Quiz, attempts []model.Attempt) []repository.FinalGrade {
	type acc struct {
		first, last, highest, sum float64
		n                         int
	}

	order := make([]int64, 0)
	byUser := make(map[int64]*acc)
	for _, a := range attempts {
		if a.SumGrades == nil || !a.IsFinished() || a.Preview {
			continue
		}
		v := *a.SumGrades
		u, ok := byUser[a.UserID]
		if !ok {
			u = &acc{first: v, highest: v}
			byUser[a.UserID] = u
			order = append(order, a.UserID)
		}
		u.last = v
		u.highest = max(u.highest, v)
		u.sum += v
		u.n++
	}

	grades := make([]repository.FinalGrade, 0, len(order))
	for _, userID := range order {
		u := byUser[userID]
		var raw float64
		switch quiz.GradeMethod {
		case model.GradeMethodAverage:
			raw = u.sum / float64(u.n)
		case model.GradeMethodFirst:
			raw = u.first
		case model.GradeMethodLast:
			raw = u.last
		default:
			raw = u.highest
		}
		grades = append(grades, repository.FinalGrade{UserID: userID, Grade: quiz.RescaleGrade(raw)})
	}
	return grades
}
