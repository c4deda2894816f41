package regrade

import (
	"context"
	"fmt"

	"github.com/stemsi/quiz-overview/internal/model"
)

// CloseAttempts force-finishes every unfinished attempt in scope: each slot is
// scored as final, the usage saved and the attempt marked finished with its
// total mark. Failures are isolated per attempt. Grades are synced once if
// anything was closed.
func (e *Engine) CloseAttempts(ctx context.Context, quiz *model.Quiz, scope Scope, sink ProgressSink) (*BatchResult, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if scope.Kind() == ScopeNeedingRegrade {
		return nil, fmt.Errorf("%w: cannot close attempts by pending regrades", ErrInvalidScope)
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

	open := make([]model.Attempt, 0, len(targets))
	for _, t := range targets {
		if !t.attempt.IsFinished() {
			open = append(open, t.attempt)
		}
	}

	result := &BatchResult{Total: len(open)}
	if len(open) == 0 {
		return result, nil
	}

	for i := range open {
		a := &open[i]
		err := e.closeAttempt(ctx, a)
		result.Done = i + 1
		if err != nil {
			e.log.Warn().Err(err).Int64("attempt_id", a.ID).Int64("quiz_id", quiz.ID).Msg("Closing attempt failed")
			result.Failed = append(result.Failed, AttemptFailure{AttemptID: a.ID, Reason: err.Error(), Err: err})
		} else {
			result.Regraded++
		}
		sink.Progress(result.Done, result.Total, fmt.Sprintf("Closing attempt %d of %d", result.Done, result.Total))
	}

	if result.Regraded > 0 {
		if err := e.SyncGrades(ctx, quiz); err != nil {
			return result, err
		}
	}

	e.log.Info().
		Int64("quiz_id", quiz.ID).
		Int("closed", result.Regraded).
		Int("failed", len(result.Failed)).
		Msg("Open attempts closed")

	return result, nil
}

func (e *Engine) closeAttempt(ctx context.Context, attempt *model.Attempt) error {
	return e.tx.InTx(ctx, func(ctx context.Context, s Stores) error {
		usage, err := s.Usages.Load(ctx, attempt.UsageID)
		if err != nil {
			return fmt.Errorf("load usage %d: %w", attempt.UsageID, err)
		}

		for _, slot := range s.Usages.SlotsOf(usage) {
			fraction, err := s.Usages.RegradeSlot(ctx, usage, slot, true)
			if err != nil {
				return &ScoringError{AttemptID: attempt.ID, UsageID: usage.ID, Slot: slot, Err: err}
			}
			if state := usage.Slot(slot); state != nil {
				state.Fraction = copyFraction(fraction)
			}
		}

		if err := s.Usages.Save(ctx, usage); err != nil {
			return fmt.Errorf("save usage %d: %w", usage.ID, err)
		}
		if err := s.Attempts.Finish(ctx, attempt.ID, usage.TotalMark(), e.now()); err != nil {
			return fmt.Errorf("finish attempt: %w", err)
		}
		return nil
	})
}
