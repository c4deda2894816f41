package repository

import (
	"context"
	"errors"

	"github.com/stemsi/quiz-overview/internal/database"
	"github.com/stemsi/quiz-overview/internal/model"
)

var ErrUsageNotFound = errors.New("question usage not found")

// UsageRepository handles question usage data access.
type UsageRepository struct {
	db database.DBTX
}

// NewUsageRepository creates a new UsageRepository.
func NewUsageRepository(db database.DBTX) *UsageRepository {
	return &UsageRepository{db: db}
}

// Load reads a usage with its slot attempts ordered by slot.
func (r *UsageRepository) Load(ctx context.Context, usageID int64) (*model.QuestionUsage, error) {
	rows, err := r.db.Query(ctx,
		`SELECT qat.slot, qat.question_id, q.qtype, qat.max_mark, qat.response, qat.fraction
		 FROM question_attempts qat
		 JOIN questions q ON q.id = qat.question_id
		 WHERE qat.usage_id = $1
		 ORDER BY qat.slot`, usageID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	usage := &model.QuestionUsage{ID: usageID}
	for rows.Next() {
		var s model.SlotAttempt
		if err := rows.Scan(&s.Slot, &s.QuestionID, &s.QuestionType, &s.MaxMark, &s.Response, &s.Fraction); err != nil {
			return nil, err
		}
		usage.Slots = append(usage.Slots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(usage.Slots) == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM question_usages WHERE id = $1)`, usageID,
		).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, ErrUsageNotFound
		}
	}
	return usage, nil
}

// SaveFractions writes every slot fraction of the usage in a single statement.
func (r *UsageRepository) SaveFractions(ctx context.Context, usage *model.QuestionUsage) error {
	if len(usage.Slots) == 0 {
		return nil
	}

	slots := make([]int32, len(usage.Slots))
	fractions := make([]*float64, len(usage.Slots))
	for i, s := range usage.Slots {
		slots[i] = int32(s.Slot)
		fractions[i] = s.Fraction
	}

	_, err := r.db.Exec(ctx,
		`UPDATE question_attempts qat
		 SET fraction = u.fraction, time_modified = NOW()
		 FROM UNNEST($2::int[], $3::float8[]) AS u(slot, fraction)
		 WHERE qat.usage_id = $1 AND qat.slot = u.slot`,
		usage.ID, slots, fractions)
	return err
}
