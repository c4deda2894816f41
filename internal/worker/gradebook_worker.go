package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/quiz-overview/internal/config"
	"github.com/stemsi/quiz-overview/internal/database"
	"github.com/stemsi/quiz-overview/internal/repository"
)

const (
	GradebookBatchSize    = 50
	GradebookBatchTimeout = 2 * time.Second
	GradebookPollTimeout  = 1 * time.Second
)

// GradebookWorker mirrors quiz grades into the gradebook for queued quizzes.
type GradebookWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

func NewGradebookWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *GradebookWorker {
	return &GradebookWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "gradebook_worker").Logger(),
	}
}

type gradebookPayload struct {
	QuizID      int64     `json:"quiz_id"`
	RequestedAt time.Time `json:"requested_at"`
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

func (w *GradebookWorker) Start(ctx context.Context) {
	w.log.Info().Msg("GradebookWorker started")

	batch := make([]*gradebookPayload, 0, GradebookBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= GradebookBatchSize || time.Since(lastFlush) >= GradebookBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, GradebookPollTimeout, config.WorkerKey.GradebookPushQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var p gradebookPayload
			if err := json.Unmarshal([]byte(item[1]), &p); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &p)
		}
	}
}

// ----------------------------------------------------------------
// Batch push with per-quiz fallback
// ----------------------------------------------------------------

func (w *GradebookWorker) flushSafe(ctx context.Context, batch []*gradebookPayload) {
	if len(batch) == 0 {
		return
	}

	quizIDs := uniqueQuizIDs(batch)

	if err := w.push(ctx, quizIDs); err != nil {
		w.log.Warn().Err(err).Int("quizzes", len(quizIDs)).Msg("bulk gradebook push failed, using fallback")

		for _, id := range quizIDs {
			if err := w.push(ctx, []int64{id}); err != nil {
				w.log.Error().Err(err).Int64("quiz_id", id).Msg("gradebook push failed, requeueing")
				raw, _ := json.Marshal(gradebookPayload{QuizID: id, RequestedAt: time.Now()})
				w.rdb.RPush(ctx, config.WorkerKey.GradebookPushQueue, raw)
			}
		}
		return
	}

	w.log.Debug().Int("quizzes", len(quizIDs)).Msg("Gradebook updated")
}

func (w *GradebookWorker) push(ctx context.Context, quizIDs []int64) error {
	now := time.Now()
	return database.WithTx(ctx, w.pool, func(tx pgx.Tx) error {
		return repository.NewGradeRepository(tx).PushGradebook(ctx, quizIDs, now)
	})
}

// uniqueQuizIDs collapses repeated requests for the same quiz, keeping first-seen order.
func uniqueQuizIDs(batch []*gradebookPayload) []int64 {
	seen := make(map[int64]struct{}, len(batch))
	ids := make([]int64, 0, len(batch))
	for _, p := range batch {
		if p.QuizID <= 0 {
			continue
		}
		if _, ok := seen[p.QuizID]; ok {
			continue
		}
		seen[p.QuizID] = struct{}{}
		ids = append(ids, p.QuizID)
	}
	return ids
}
