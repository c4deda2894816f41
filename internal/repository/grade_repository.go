package repository

import (
	"context"
	"time"

	"github.com/stemsi/quiz-overview/internal/database"
)

// FinalGrade is one user's quiz grade on the quiz grade scale.
type FinalGrade struct {
	UserID int64   `json:"user_id"`
	Grade  float64 `json:"grade"`
}

// GradeRepository handles quiz-level and gradebook grade data access.
type GradeRepository struct {
	db database.DBTX
}

// NewGradeRepository creates a new GradeRepository.
func NewGradeRepository(db database.DBTX) *GradeRepository {
	return &GradeRepository{db: db}
}

// RecomputeQuizSumGrades sets the quiz maximum raw mark to the sum of its slot marks
// and returns the new value.
func (r *GradeRepository) RecomputeQuizSumGrades(ctx context.Context, quizID int64) (float64, error) {
	var sum float64
	err := r.db.QueryRow(ctx,
		`UPDATE quizzes q
		 SET sumgrades = COALESCE((SELECT SUM(s.max_mark) FROM quiz_slots s WHERE s.quiz_id = q.id), 0),
		     updated_at = NOW()
		 WHERE q.id = $1
		 RETURNING q.sumgrades`, quizID,
	).Scan(&sum)
	return sum, err
}

// ReplaceFinalGrades upserts grades for the quiz and removes grades of users not listed.
func (r *GradeRepository) ReplaceFinalGrades(ctx context.Context, quizID int64, grades []FinalGrade) error {
	users := make([]int64, len(grades))
	values := make([]float64, len(grades))
	for i, g := range grades {
		users[i] = g.UserID
		values[i] = g.Grade
	}

	if _, err := r.db.Exec(ctx,
		`DELETE FROM quiz_grades WHERE quiz_id = $1 AND NOT (user_id = ANY($2::bigint[]))`,
		quizID, users,
	); err != nil {
		return err
	}

	if len(grades) == 0 {
		return nil
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO quiz_grades (quiz_id, user_id, grade, time_modified)
		 SELECT $1, u.user_id, u.grade, NOW()
		 FROM UNNEST($2::bigint[], $3::float8[]) AS u (user_id, grade)
		 ON CONFLICT (quiz_id, user_id) DO UPDATE
		 SET grade = EXCLUDED.grade, time_modified = EXCLUDED.time_modified`,
		quizID, users, values)
	return err
}

// ListFinalGrades returns the stored final grades of a quiz ordered by user.
func (r *GradeRepository) ListFinalGrades(ctx context.Context, quizID int64) ([]FinalGrade, error) {
	rows, err := r.db.Query(ctx,
		`SELECT user_id, grade FROM quiz_grades WHERE quiz_id = $1 ORDER BY user_id`, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FinalGrade
	for rows.Next() {
		var g FinalGrade
		if err := rows.Scan(&g.UserID, &g.Grade); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// PushGradebook mirrors the current quiz grades of the given quizzes into the gradebook,
// removing gradebook rows that no longer have a quiz grade.
func (r *GradeRepository) PushGradebook(ctx context.Context, quizIDs []int64, at time.Time) error {
	if _, err := r.db.Exec(ctx,
		`DELETE FROM gradebook_grades gb
		 WHERE gb.quiz_id = ANY($1::bigint[])
		   AND NOT EXISTS (SELECT 1 FROM quiz_grades g WHERE g.quiz_id = gb.quiz_id AND g.user_id = gb.user_id)`,
		quizIDs,
	); err != nil {
		return err
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO gradebook_grades (quiz_id, user_id, grade, pushed_at)
		 SELECT g.quiz_id, g.user_id, g.grade, $2
		 FROM quiz_grades g
		 WHERE g.quiz_id = ANY($1::bigint[])
		 ON CONFLICT (quiz_id, user_id) DO UPDATE
		 SET grade = EXCLUDED.grade, pushed_at = EXCLUDED.pushed_at`,
		quizIDs, at)
	return err
}
