// Package regrade recomputes quiz attempt scores after a scoring rule changes.
package regrade

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/quiz-overview/internal/model"
)

// FractionTolerance is the smallest fraction change recorded as a delta.
const FractionTolerance = 1e-7

var (
	ErrScoringFailure = errors.New("regrade: scoring failed")
	ErrGradeSync      = errors.New("regrade: aggregate grade sync failed")
)

// ScoringError reports a slot that could not be rescored.
type ScoringError struct {
	AttemptID int64
	UsageID   int64
	Slot      int
	Err       error
}

func (e *ScoringError) Error() string {
	return fmt.Sprintf("regrade attempt %d usage %d slot %d: %v", e.AttemptID, e.UsageID, e.Slot, e.Err)
}

func (e *ScoringError) Unwrap() []error { return []error{ErrScoringFailure, e.Err} }

// AttemptFailure is an attempt whose transaction was rolled back.
type AttemptFailure struct {
	AttemptID int64  `json:"attempt_id"`
	Reason    string `json:"reason"`
	Err       error  `json:"-"`
}

// BatchResult summarises a regrade batch. Done counts attempts considered,
// Regraded those whose transaction committed.
type BatchResult struct {
	Total    int              `json:"total"`
	Done     int              `json:"done"`
	Regraded int              `json:"regraded"`
	Failed   []AttemptFailure `json:"failed"`
	Deltas   int              `json:"deltas"`
	DryRun   bool             `json:"dry_run"`
}

// FailedIDs returns the ids of failed attempts in processing order.
func (r *BatchResult) FailedIDs() []int64 {
	ids := make([]int64, 0, len(r.Failed))
	for _, f := range r.Failed {
		ids = append(ids, f.AttemptID)
	}
	return ids
}

// AttemptResult is the outcome of one committed attempt.
type AttemptResult struct {
	Deltas    []model.RegradeDelta
	SumGrades float64
}

// Engine runs regrade batches one attempt transaction at a time.
type Engine struct {
	attempts AttemptSource
	deltas   DiffStore
	tx       Transactor
	sync     GradeSync
	log      zerolog.Logger
	now      func() time.Time
}

// NewEngine creates an Engine.
func NewEngine(attempts AttemptSource, deltas DiffStore, tx Transactor, sync GradeSync, log zerolog.Logger) *Engine {
	return &Engine{
		attempts: attempts,
		deltas:   deltas,
		tx:       tx,
		sync:     sync,
		log:      log.With().Str("component", "regrade_engine").Logger(),
		now:      time.Now,
	}
}

type target struct {
	attempt model.Attempt
	slots   []int
}

// RegradeBatch regrades every attempt in scope in ascending id order. Stale
// deltas in scope are cleared first; for the needing-regrade scope each
// attempt's deltas are cleared inside its own transaction instead, so a
// failed attempt keeps its pending rows. A failed attempt is rolled back and
// reported without stopping the batch. Unless dryRun, grade aggregates are
// synced once at the end.
func (e *Engine) RegradeBatch(ctx context.Context, quiz *model.Quiz, dryRun bool, scope Scope, sink ProgressSink) (*BatchResult, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if scope.QuizID() != quiz.ID {
		return nil, fmt.Errorf("%w: scope quiz %d does not match quiz %d", ErrInvalidScope, scope.QuizID(), quiz.ID)
	}
	if sink == nil {
		sink = Discard
	}

	targets, err := e.resolve(ctx, scope)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{Total: len(targets), DryRun: dryRun}
	if len(targets) == 0 {
		e.log.Debug().Stringer("scope", scope).Msg("Nothing to regrade")
		return result, nil
	}

	clearPerAttempt := scope.Kind() == ScopeNeedingRegrade
	if !clearPerAttempt {
		if err := e.deltas.Clear(ctx, scope); err != nil {
			return nil, fmt.Errorf("clear regrade deltas: %w", err)
		}
	}

	batchLog := e.log.With().Int64("quiz_id", quiz.ID).Bool("dry_run", dryRun).Logger()
	batchLog.Info().Stringer("scope", scope).Int("attempts", len(targets)).Msg("Regrade batch started")

	for i := range targets {
		t := &targets[i]
		res, err := e.regradeAttempt(ctx, &t.attempt, dryRun, t.slots, clearPerAttempt)
		result.Done = i + 1
		if err != nil {
			batchLog.Warn().Err(err).
				Int64("attempt_id", t.attempt.ID).
				Int64("usage_id", t.attempt.UsageID).
				Msg("Attempt regrade rolled back")
			result.Failed = append(result.Failed, AttemptFailure{AttemptID: t.attempt.ID, Reason: err.Error(), Err: err})
		} else {
			result.Regraded++
			result.Deltas += len(res.Deltas)
		}
		sink.Progress(result.Done, result.Total, fmt.Sprintf("Regrading attempt %d of %d", result.Done, result.Total))
	}

	if !dryRun {
		if err := e.SyncGrades(ctx, quiz); err != nil {
			return result, err
		}
	}

	batchLog.Info().
		Int("regraded", result.Regraded).
		Int("failed", len(result.Failed)).
		Int("deltas", result.Deltas).
		Msg("Regrade batch finished")

	return result, nil
}

// RegradeAttempt rescores the given slots of one attempt (all slots when
// slots is empty) inside a single transaction. Changed slots are recorded as
// deltas. A dry run keeps only the deltas and leaves the usage and attempt untouched.
func (e *Engine) RegradeAttempt(ctx context.Context, attempt *model.Attempt, dryRun bool, slots []int) (*AttemptResult, error) {
	return e.regradeAttempt(ctx, attempt, dryRun, slots, false)
}

func (e *Engine) regradeAttempt(ctx context.Context, attempt *model.Attempt, dryRun bool, slots []int, clearDeltas bool) (*AttemptResult, error) {
	var result *AttemptResult

	err := e.tx.InTx(ctx, func(ctx context.Context, s Stores) error {
		if clearDeltas {
			if err := s.Deltas.ClearUsage(ctx, attempt.UsageID); err != nil {
				return fmt.Errorf("clear deltas of usage %d: %w", attempt.UsageID, err)
			}
		}

		usage, err := s.Usages.Load(ctx, attempt.UsageID)
		if err != nil {
			return fmt.Errorf("load usage %d: %w", attempt.UsageID, err)
		}

		targets := slots
		if len(targets) == 0 {
			targets = s.Usages.SlotsOf(usage)
		}

		finished := attempt.IsFinished()
		now := e.now()
		deltas := make([]model.RegradeDelta, 0)

		for _, slot := range targets {
			state := usage.Slot(slot)
			if state == nil {
				return &ScoringError{AttemptID: attempt.ID, UsageID: usage.ID, Slot: slot, Err: errors.New("slot not in usage")}
			}
			oldFraction := copyFraction(state.Fraction)

			newFraction, err := s.Usages.RegradeSlot(ctx, usage, slot, finished)
			if err != nil {
				return &ScoringError{AttemptID: attempt.ID, UsageID: usage.ID, Slot: slot, Err: err}
			}
			state.Fraction = copyFraction(newFraction)

			if FractionChanged(oldFraction, newFraction) {
				deltas = append(deltas, model.RegradeDelta{
					UsageID:      usage.ID,
					Slot:         slot,
					OldFraction:  oldFraction,
					NewFraction:  copyFraction(newFraction),
					Regraded:     !dryRun,
					TimeModified: now,
				})
			}
		}

		if len(deltas) > 0 {
			if err := s.Deltas.InsertBatch(ctx, deltas); err != nil {
				return fmt.Errorf("insert deltas: %w", err)
			}
		}

		total := usage.TotalMark()
		result = &AttemptResult{Deltas: deltas, SumGrades: total}
		if dryRun {
			return nil
		}

		if err := s.Usages.Save(ctx, usage); err != nil {
			return fmt.Errorf("save usage %d: %w", usage.ID, err)
		}
		if finished {
			if err := s.Attempts.UpdateSumGrades(ctx, attempt.ID, total); err != nil {
				return fmt.Errorf("update sumgrades: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SyncGrades recomputes attempt sumgrades and final grades, then pushes the
// quiz to the gradebook.
func (e *Engine) SyncGrades(ctx context.Context, quiz *model.Quiz) error {
	if err := e.sync.RecomputeSumGrades(ctx, quiz); err != nil {
		return fmt.Errorf("%w: sumgrades: %w", ErrGradeSync, err)
	}
	if err := e.sync.RecomputeFinalGrades(ctx, quiz); err != nil {
		return fmt.Errorf("%w: final grades: %w", ErrGradeSync, err)
	}
	if err := e.sync.PushToGradebook(ctx, quiz); err != nil {
		return fmt.Errorf("%w: gradebook: %w", ErrGradeSync, err)
	}
	return nil
}

// CountNeedingRegrade returns how many attempts in scope have uncommitted deltas.
func (e *Engine) CountNeedingRegrade(ctx context.Context, scope Scope) (int, error) {
	pending, err := e.deltas.QueryPending(ctx, scope)
	if err != nil {
		return 0, fmt.Errorf("query pending deltas: %w", err)
	}
	return len(pending), nil
}

func (e *Engine) resolve(ctx context.Context, scope Scope) ([]target, error) {
	var targets []target

	if scope.Kind() == ScopeNeedingRegrade {
		pending, err := e.deltas.QueryPending(ctx, scope)
		if err != nil {
			return nil, fmt.Errorf("query pending deltas: %w", err)
		}
		if len(pending) == 0 {
			return nil, nil
		}

		usageIDs := make([]int64, 0, len(pending))
		for id := range pending {
			usageIDs = append(usageIDs, id)
		}
		slices.Sort(usageIDs)

		attempts, err := e.attempts.ByUsageIDs(ctx, scope.QuizID(), usageIDs)
		if err != nil {
			return nil, fmt.Errorf("load attempts needing regrade: %w", err)
		}
		for _, a := range attempts {
			slots := make([]int, 0, len(pending[a.UsageID]))
			for slot := range pending[a.UsageID] {
				slots = append(slots, slot)
			}
			slices.Sort(slots)
			targets = append(targets, target{attempt: a, slots: slots})
		}
	} else {
		attempts, err := e.attempts.ResolveScope(ctx, scope)
		if err != nil {
			return nil, fmt.Errorf("resolve scope: %w", err)
		}
		for _, a := range attempts {
			targets = append(targets, target{attempt: a})
		}
	}

	slices.SortFunc(targets, func(a, b target) int {
		return cmp.Compare(a.attempt.ID, b.attempt.ID)
	})
	return targets, nil
}

// FractionChanged compares two fractions with FractionTolerance. Nil counts as zero.
func FractionChanged(old, updated *float64) bool {
	return math.Abs(valueOf(old)-valueOf(updated)) > FractionTolerance
}

func valueOf(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

func copyFraction(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
