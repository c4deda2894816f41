package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/quiz-overview/internal/config"
	"github.com/stemsi/quiz-overview/internal/model"
)

// ErrRunNotFound is returned for unknown or expired regrade runs.
var ErrRunNotFound = errors.New("regrade run not found")

// RunStore keeps regrade run records in Redis and broadcasts their progress.
type RunStore struct {
	rdb *redis.Client
	ttl time.Duration
	log zerolog.Logger
}

// NewRunStore creates a new RunStore. Records expire ttl after their last update.
func NewRunStore(rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *RunStore {
	return &RunStore{
		rdb: rdb,
		ttl: ttl,
		log: log.With().Str("component", "run_store").Logger(),
	}
}

// Save writes the run record and marks it as the quiz's latest run.
func (s *RunStore) Save(ctx context.Context, run *model.RegradeRun) error {
	raw, err := json.Marshal(run)
	if err != nil {
		return err
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, config.CacheKey.RegradeRunKey(run.ID), raw, s.ttl)
	pipe.Set(ctx, config.CacheKey.QuizLatestRunKey(run.QuizID), run.ID, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save regrade run: %w", err)
	}
	return nil
}

// Get reads a run record.
func (s *RunStore) Get(ctx context.Context, runID string) (*model.RegradeRun, error) {
	raw, err := s.rdb.Get(ctx, config.CacheKey.RegradeRunKey(runID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}

	var run model.RegradeRun
	if err := json.Unmarshal(raw, &run); err != nil {
		return nil, fmt.Errorf("decode regrade run: %w", err)
	}
	return &run, nil
}

// Latest reads the most recent run of a quiz.
func (s *RunStore) Latest(ctx context.Context, quizID int64) (*model.RegradeRun, error) {
	id, err := s.rdb.Get(ctx, config.CacheKey.QuizLatestRunKey(quizID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return s.Get(ctx, id)
}

// Publish broadcasts a progress event on the quiz's progress channel.
func (s *RunStore) Publish(ctx context.Context, p model.RegradeProgress) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return s.rdb.Publish(ctx, config.CacheKey.RegradeProgressChannel(p.QuizID), raw).Err()
}

// Subscribe listens to a quiz's progress channel. The caller closes the PubSub.
func (s *RunStore) Subscribe(ctx context.Context, quizID int64) *redis.PubSub {
	return s.rdb.Subscribe(ctx, config.CacheKey.RegradeProgressChannel(quizID))
}

// Tracker returns a progress sink that updates run and broadcasts every step.
// Store errors are logged and never interrupt the batch.
func (s *RunStore) Tracker(ctx context.Context, run *model.RegradeRun) *RunTracker {
	return &RunTracker{ctx: ctx, store: s, run: run}
}

// RunTracker forwards engine progress to the run record and the progress channel.
type RunTracker struct {
	ctx   context.Context
	store *RunStore
	run   *model.RegradeRun
}

// Progress implements regrade.ProgressSink.
func (t *RunTracker) Progress(done, total int, message string) {
	t.run.Done = done
	t.run.Total = total
	t.run.Message = message

	if err := t.store.Save(t.ctx, t.run); err != nil {
		t.store.log.Warn().Err(err).Str("run_id", t.run.ID).Msg("Failed to save run progress")
	}
	err := t.store.Publish(t.ctx, model.RegradeProgress{
		RunID:   t.run.ID,
		QuizID:  t.run.QuizID,
		Done:    done,
		Total:   total,
		Message: message,
	})
	if err != nil {
		t.store.log.Warn().Err(err).Str("run_id", t.run.ID).Msg("Failed to publish run progress")
	}
}
