package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/quiz-overview/internal/metrics"
	"github.com/stemsi/quiz-overview/internal/model"
	"github.com/stemsi/quiz-overview/internal/regrade"
	"github.com/stemsi/quiz-overview/internal/repository"
)

// RegradeService runs regrade and close batches for teachers and reports on pending regrades.
type RegradeService struct {
	quizzes  *repository.QuizRepository
	attempts *repository.AttemptRepository
	regrades *repository.RegradeRepository
	engine   *regrade.Engine
	lock     *QuizLock
	runs     *RunStore
	log      zerolog.Logger

	inflight sync.WaitGroup
}

// NewRegradeService creates a new RegradeService.
func NewRegradeService(
	quizzes *repository.QuizRepository,
	attempts *repository.AttemptRepository,
	regrades *repository.RegradeRepository,
	engine *regrade.Engine,
	lock *QuizLock,
	runs *RunStore,
	log zerolog.Logger,
) *RegradeService {
	return &RegradeService{
		quizzes:  quizzes,
		attempts: attempts,
		regrades: regrades,
		engine:   engine,
		lock:     lock,
		runs:     runs,
		log:      log.With().Str("component", "regrade_service").Logger(),
	}
}

// ScopeFor builds the batch scope of a request. Explicit attempt IDs win over the mode.
func ScopeFor(quizID int64, mode model.RegradeMode, attemptIDs []int64, groupID *int64) regrade.Scope {
	var scope regrade.Scope
	switch {
	case len(attemptIDs) > 0:
		scope = regrade.ExplicitAttempts(quizID, attemptIDs)
	case mode == model.RegradeModeNeeding:
		scope = regrade.NeedingRegrade(quizID)
	default:
		scope = regrade.AllAttempts(quizID)
	}
	if groupID != nil {
		scope = scope.InGroup(*groupID)
	}
	return scope
}

// Start validates the request, takes the quiz lock and runs the batch in the background.
// The returned record is a snapshot; poll GetRun or subscribe to progress for updates.
func (s *RegradeService) Start(ctx context.Context, quizID int64, req model.RegradeRequest, userID int64) (*model.RegradeRun, error) {
	quiz, scope, err := s.prepare(ctx, quizID, req)
	if err != nil {
		return nil, err
	}

	lease, err := s.lock.Acquire(ctx, quizID)
	if err != nil {
		return nil, err
	}

	run := newRun(quiz.ID, req.Mode, userID)
	if err := s.runs.Save(ctx, run); err != nil {
		_ = lease.Release(ctx)
		return nil, err
	}
	snapshot := *run

	bg := context.WithoutCancel(ctx)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer s.releaseLock(bg, quiz.ID, lease)
		_ = s.execute(bg, quiz, scope, run, regrade.Discard)
	}()

	return &snapshot, nil
}

// Wait blocks until every batch started by Start has finished or ctx is done.
func (s *RegradeService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes a batch synchronously, reporting progress to sink as well as the run record.
func (s *RegradeService) Run(ctx context.Context, quizID int64, req model.RegradeRequest, userID int64, sink regrade.ProgressSink) (*model.RegradeRun, error) {
	quiz, scope, err := s.prepare(ctx, quizID, req)
	if err != nil {
		return nil, err
	}

	lease, err := s.lock.Acquire(ctx, quizID)
	if err != nil {
		return nil, err
	}
	defer s.releaseLock(context.WithoutCancel(ctx), quiz.ID, lease)

	run := newRun(quiz.ID, req.Mode, userID)
	if err := s.runs.Save(ctx, run); err != nil {
		return nil, err
	}
	if err := s.execute(ctx, quiz, scope, run, sink); err != nil {
		return run, err
	}
	return run, nil
}

// GetRun returns a run record.
func (s *RegradeService) GetRun(ctx context.Context, runID string) (*model.RegradeRun, error) {
	return s.runs.Get(ctx, runID)
}

// LatestRun returns the most recent run of a quiz.
func (s *RegradeService) LatestRun(ctx context.Context, quizID int64) (*model.RegradeRun, error) {
	return s.runs.Latest(ctx, quizID)
}

// CountNeedingRegrade counts attempts of the quiz, optionally limited to a group, with pending deltas.
func (s *RegradeService) CountNeedingRegrade(ctx context.Context, quizID, groupID int64) (int, error) {
	return s.engine.CountNeedingRegrade(ctx, regrade.NeedingRegrade(quizID).InGroup(groupID))
}

// PendingRegrades lists every attempt with stored deltas and what regrading changed or would change.
func (s *RegradeService) PendingRegrades(ctx context.Context, quizID, groupID int64) (*model.RegradeListing, error) {
	quiz, err := s.quizzes.GetByID(ctx, quizID)
	if err != nil {
		return nil, err
	}

	scope := regrade.AllAttempts(quizID).InGroup(groupID)

	deltas, err := s.regrades.ListByScope(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("list regrade deltas: %w", err)
	}
	running, err := s.lock.Held(ctx, quizID)
	if err != nil {
		s.log.Warn().Err(err).Int64("quiz_id", quizID).Msg("Failed to check regrade lock")
	}

	if len(deltas) == 0 {
		return &model.RegradeListing{Running: running, Attempts: []model.AttemptRegrade{}}, nil
	}

	attempts, err := s.attempts.ResolveScope(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("resolve attempts: %w", err)
	}

	marks, err := s.quizzes.GetSlotMarks(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("load slot marks: %w", err)
	}

	listing := BuildRegradeListing(quiz, attempts, deltas, marks)
	listing.Running = running
	return listing, nil
}

// CloseAttempts force-finishes the open attempts selected by req and returns the batch result.
func (s *RegradeService) CloseAttempts(ctx context.Context, quizID int64, req model.CloseAttemptsRequest) (*regrade.BatchResult, error) {
	quiz, err := s.quizzes.GetByID(ctx, quizID)
	if err != nil {
		return nil, err
	}

	scope := ScopeFor(quizID, model.RegradeModeAll, req.AttemptIDs, req.GroupID)
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	lease, err := s.lock.Acquire(ctx, quizID)
	if err != nil {
		return nil, err
	}
	defer s.releaseLock(context.WithoutCancel(ctx), quiz.ID, lease)

	start := time.Now()
	res, err := s.engine.CloseAttempts(ctx, quiz, scope, regrade.Discard)
	metrics.ObserveBatch("close", res, err, time.Since(start))
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("quiz_id", quizID).
		Int("closed", res.Regraded).
		Int("failed", len(res.Failed)).
		Msg("Open attempts closed")
	return res, nil
}

func (s *RegradeService) prepare(ctx context.Context, quizID int64, req model.RegradeRequest) (*model.Quiz, regrade.Scope, error) {
	quiz, err := s.quizzes.GetByID(ctx, quizID)
	if err != nil {
		return nil, regrade.Scope{}, err
	}
	scope := ScopeFor(quizID, req.Mode, req.AttemptIDs, req.GroupID)
	if err := scope.Validate(); err != nil {
		return nil, regrade.Scope{}, err
	}
	return quiz, scope, nil
}

func (s *RegradeService) execute(ctx context.Context, quiz *model.Quiz, scope regrade.Scope, run *model.RegradeRun, sink regrade.ProgressSink) error {
	tracker := s.runs.Tracker(ctx, run)
	progress := regrade.ProgressFunc(func(done, total int, message string) {
		tracker.Progress(done, total, message)
		if sink != nil {
			sink.Progress(done, total, message)
		}
	})

	start := time.Now()
	res, err := s.engine.RegradeBatch(ctx, quiz, run.DryRun, scope, progress)
	metrics.ObserveBatch(string(run.Mode), res, err, time.Since(start))

	finished := time.Now()
	run.FinishedAt = &finished
	if res != nil {
		run.Done = res.Done
		run.Total = res.Total
		run.Regraded = res.Regraded
		run.Failed = res.FailedIDs()
		run.Deltas = res.Deltas
	}

	runLog := s.log.With().Str("run_id", run.ID).Int64("quiz_id", quiz.ID).Logger()
	if err != nil {
		run.Status = model.RunStatusFailed
		run.Error = err.Error()
		runLog.Error().Err(err).Msg("Regrade run failed")
	} else {
		run.Status = model.RunStatusCompleted
		run.Message = "Regrade finished"
		runLog.Info().
			Int("total", run.Total).
			Int("regraded", run.Regraded).
			Int("failed", len(run.Failed)).
			Int("deltas", run.Deltas).
			Msg("Regrade run completed")
	}

	if saveErr := s.runs.Save(ctx, run); saveErr != nil {
		runLog.Warn().Err(saveErr).Msg("Failed to save final run state")
	}
	if pubErr := s.runs.Publish(ctx, model.RegradeProgress{
		RunID:   run.ID,
		QuizID:  run.QuizID,
		Done:    run.Done,
		Total:   run.Total,
		Message: string(run.Status),
	}); pubErr != nil {
		runLog.Warn().Err(pubErr).Msg("Failed to publish final run state")
	}
	return err
}

func (s *RegradeService) releaseLock(ctx context.Context, quizID int64, lease *Lease) {
	if err := lease.Release(ctx); err != nil {
		s.log.Warn().Err(err).Int64("quiz_id", quizID).Msg("Failed to release regrade lock")
	}
}

func newRun(quizID int64, mode model.RegradeMode, userID int64) *model.RegradeRun {
	return &model.RegradeRun{
		ID:        uuid.New().String(),
		QuizID:    quizID,
		Mode:      mode,
		DryRun:    mode.DryRun(),
		Status:    model.RunStatusRunning,
		Failed:    []int64{},
		StartedBy: userID,
		StartedAt: time.Now(),
	}
}

// BuildRegradeListing pairs attempts with their stored deltas. Attempts without
// deltas are left out. For pending deltas the stored mark is the old one; for
// committed deltas it is already the new one.
func BuildRegradeListing(quiz *model.Quiz, attempts []model.Attempt, deltas map[int64]map[int]model.RegradeDelta, marks map[int]float64) *model.RegradeListing {
	listing := &model.RegradeListing{Attempts: []model.AttemptRegrade{}}

	for _, a := range attempts {
		slots, ok := deltas[a.UsageID]
		if !ok || len(slots) == 0 {
			continue
		}

		nums := make([]int, 0, len(slots))
		for n := range slots {
			nums = append(nums, n)
		}
		sort.Ints(nums)

		entry := model.AttemptRegrade{
			AttemptID: a.ID,
			UserID:    a.UserID,
			UsageID:   a.UsageID,
			State:     model.RegradeStateDone,
			Deltas:    make([]model.RegradeDelta, 0, len(nums)),
		}

		var change float64
		for _, n := range nums {
			d := slots[n]
			entry.Deltas = append(entry.Deltas, d)
			change += (fractionOf(d.NewFraction) - fractionOf(d.OldFraction)) * marks[n]
			if !d.Regraded {
				entry.State = model.RegradeStateNeeded
			}
		}

		var stored float64
		if a.SumGrades != nil {
			stored = *a.SumGrades
		}
		if entry.State == model.RegradeStateNeeded {
			entry.OldSumGrades = stored
			entry.NewSumGrades = stored + change
			listing.NeedingRegrade++
		} else {
			entry.OldSumGrades = stored - change
			entry.NewSumGrades = stored
		}
		entry.OldGrade = roundTo(quiz.RescaleGrade(entry.OldSumGrades), quiz.DecimalPoints)
		entry.NewGrade = roundTo(quiz.RescaleGrade(entry.NewSumGrades), quiz.DecimalPoints)

		listing.Attempts = append(listing.Attempts, entry)
	}
	return listing
}

func fractionOf(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
