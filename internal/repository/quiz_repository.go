package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/stemsi/quiz-overview/internal/database"
	"github.com/stemsi/quiz-overview/internal/model"
)

var ErrQuizNotFound = errors.New("quiz not found")

// QuizRepository handles quiz data access.
type QuizRepository struct {
	db database.DBTX
}

// NewQuizRepository creates a new QuizRepository.
func NewQuizRepository(db database.DBTX) *QuizRepository {
	return &QuizRepository{db: db}
}

// GetByID retrieves a quiz by its ID.
func (r *QuizRepository) GetByID(ctx context.Context, id int64) (*model.Quiz, error) {
	q := &model.Quiz{}
	err := r.db.QueryRow(ctx,
		`SELECT id, course_id, name, grade, sumgrades, decimal_points, grade_method, created_at, updated_at
		 FROM quizzes WHERE id = $1`, id,
	).Scan(&q.ID, &q.CourseID, &q.Name, &q.Grade, &q.SumGrades, &q.DecimalPoints, &q.GradeMethod, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuizNotFound
		}
		return nil, err
	}
	return q, nil
}

// GetQuestions retrieves the current definitions of the given questions keyed by ID.
func (r *QuizRepository) GetQuestions(ctx context.Context, ids []int64) (map[int64]*model.Question, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, qtype, answer_key, updated_at
		 FROM questions WHERE id = ANY($1::bigint[])`, ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]*model.Question, len(ids))
	for rows.Next() {
		q := &model.Question{}
		if err := rows.Scan(&q.ID, &q.Type, &q.AnswerKey, &q.UpdatedAt); err != nil {
			return nil, err
		}
		out[q.ID] = q
	}
	return out, rows.Err()
}

// GetSlotMarks returns the maximum mark of every slot of a quiz keyed by slot number.
func (r *QuizRepository) GetSlotMarks(ctx context.Context, quizID int64) (map[int]float64, error) {
	rows, err := r.db.Query(ctx,
		`SELECT slot, max_mark FROM quiz_slots WHERE quiz_id = $1`, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	marks := make(map[int]float64)
	for rows.Next() {
		var slot int
		var mark float64
		if err := rows.Scan(&slot, &mark); err != nil {
			return nil, err
		}
		marks[slot] = mark
	}
	return marks, rows.Err()
}
