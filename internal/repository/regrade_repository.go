package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/stemsi/quiz-overview/internal/database"
	"github.com/stemsi/quiz-overview/internal/model"
	"github.com/stemsi/quiz-overview/internal/regrade"
)

// RegradeRepository stores per-slot regrade deltas in quiz_regrades.
type RegradeRepository struct {
	db database.DBTX
}

// NewRegradeRepository creates a new RegradeRepository.
func NewRegradeRepository(db database.DBTX) *RegradeRepository {
	return &RegradeRepository{db: db}
}

// Clear deletes every delta belonging to the attempts of scope.
func (r *RegradeRepository) Clear(ctx context.Context, scope regrade.Scope) error {
	args := &queryArgs{}
	where := attemptFilter(scope, "qa", args)
	_, err := r.db.Exec(ctx,
		`DELETE FROM quiz_regrades
		 WHERE usage_id IN (SELECT qa.usage_id FROM quiz_attempts qa WHERE `+where+`)`,
		args.values...)
	if err != nil {
		return fmt.Errorf("clear regrades for %s: %w", scope, err)
	}
	return nil
}

// ClearUsage deletes every delta of one usage.
func (r *RegradeRepository) ClearUsage(ctx context.Context, usageID int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM quiz_regrades WHERE usage_id = $1`, usageID); err != nil {
		return fmt.Errorf("clear regrades of usage %d: %w", usageID, err)
	}
	return nil
}

// InsertBatch writes deltas with a single UNNEST insert. A (usage, slot) that
// already has a row violates the primary key: callers clear before writing.
func (r *RegradeRepository) InsertBatch(ctx context.Context, deltas []model.RegradeDelta) error {
	if len(deltas) == 0 {
		return nil
	}

	n := len(deltas)
	usageIDs := make([]int64, n)
	slots := make([]int32, n)
	oldFractions := make([]*float64, n)
	newFractions := make([]*float64, n)
	regraded := make([]bool, n)
	modified := make([]time.Time, n)
	for i, d := range deltas {
		usageIDs[i] = d.UsageID
		slots[i] = int32(d.Slot)
		oldFractions[i] = d.OldFraction
		newFractions[i] = d.NewFraction
		regraded[i] = d.Regraded
		modified[i] = d.TimeModified
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO quiz_regrades (usage_id, slot, old_fraction, new_fraction, regraded, time_modified)
		 SELECT * FROM UNNEST($1::bigint[], $2::int[], $3::float8[], $4::float8[], $5::bool[], $6::timestamptz[])`,
		usageIDs, slots, oldFractions, newFractions, regraded, modified)
	return err
}

// QueryPending returns the uncommitted deltas of scope keyed by usage ID then slot.
func (r *RegradeRepository) QueryPending(ctx context.Context, scope regrade.Scope) (map[int64]map[int]model.RegradeDelta, error) {
	return r.query(ctx, scope, true)
}

// ListByScope returns every stored delta of scope, committed or not.
func (r *RegradeRepository) ListByScope(ctx context.Context, scope regrade.Scope) (map[int64]map[int]model.RegradeDelta, error) {
	return r.query(ctx, scope, false)
}

func (r *RegradeRepository) query(ctx context.Context, scope regrade.Scope, pendingOnly bool) (map[int64]map[int]model.RegradeDelta, error) {
	args := &queryArgs{}
	where := attemptFilter(scope, "qa", args)
	if pendingOnly {
		where += " AND r.regraded = FALSE"
	}

	rows, err := r.db.Query(ctx,
		`SELECT r.usage_id, r.slot, r.old_fraction, r.new_fraction, r.regraded, r.time_modified
		 FROM quiz_regrades r
		 JOIN quiz_attempts qa ON qa.usage_id = r.usage_id
		 WHERE `+where+`
		 ORDER BY r.usage_id, r.slot`,
		args.values...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]map[int]model.RegradeDelta)
	for rows.Next() {
		var d model.RegradeDelta
		if err := rows.Scan(&d.UsageID, &d.Slot, &d.OldFraction, &d.NewFraction, &d.Regraded, &d.TimeModified); err != nil {
			return nil, err
		}
		if out[d.UsageID] == nil {
			out[d.UsageID] = make(map[int]model.RegradeDelta)
		}
		out[d.UsageID][d.Slot] = d
	}
	return out, rows.Err()
}
