package repository

import (
	"context"

	"github.com/stemsi/quiz-overview/internal/database"
	"github.com/stemsi/quiz-overview/internal/model"
)

// RawGradeSummary holds attempt mark aggregates before rescaling to the quiz grade.
type RawGradeSummary struct {
	Average *float64
	Highest *float64
	Lowest  *float64
	Count   int
}

// DashboardRepository handles the read queries behind the teacher quiz overview.
type DashboardRepository struct {
	db database.DBTX
}

// NewDashboardRepository creates a new DashboardRepository.
func NewDashboardRepository(db database.DBTX) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// GetGradeSummary aggregates the raw marks of finished non-preview attempts.
func (r *DashboardRepository) GetGradeSummary(ctx context.Context, quizID, groupID int64) (*RawGradeSummary, error) {
	args := &queryArgs{}
	quiz := args.add(quizID)
	state := args.add(model.AttemptStateFinished)
	group := groupFilter("qa.user_id", groupID, args)

	s := &RawGradeSummary{}
	err := r.db.QueryRow(ctx,
		`SELECT AVG(qa.sumgrades), MAX(qa.sumgrades), MIN(qa.sumgrades), COUNT(qa.sumgrades)
		 FROM quiz_attempts qa
		 WHERE qa.quiz_id = `+quiz+` AND qa.preview = FALSE AND qa.state = `+state+group,
		args.values...,
	).Scan(&s.Average, &s.Highest, &s.Lowest, &s.Count)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetSubmissionStats counts enrolled users who finished, are working on, or never started the quiz.
func (r *DashboardRepository) GetSubmissionStats(ctx context.Context, quizID, courseID, groupID int64) (*model.SubmissionStats, error) {
	args := &queryArgs{}
	quiz := args.add(quizID)
	course := args.add(courseID)
	finished := args.add(model.AttemptStateFinished)
	inProgress := args.add(model.AttemptStateInProgress)
	group := groupFilter("e.user_id", groupID, args)

	query := `
		SELECT
			COUNT(*) FILTER (WHERE s.has_finished),
			COUNT(*) FILTER (WHERE s.has_open),
			COUNT(*) FILTER (WHERE NOT s.has_any)
		FROM (
			SELECT
				EXISTS (SELECT 1 FROM quiz_attempts qa
				        WHERE qa.quiz_id = ` + quiz + ` AND qa.user_id = e.user_id
				          AND qa.preview = FALSE AND qa.state = ` + finished + `) AS has_finished,
				EXISTS (SELECT 1 FROM quiz_attempts qa
				        WHERE qa.quiz_id = ` + quiz + ` AND qa.user_id = e.user_id
				          AND qa.preview = FALSE AND qa.state = ` + inProgress + `) AS has_open,
				EXISTS (SELECT 1 FROM quiz_attempts qa
				        WHERE qa.quiz_id = ` + quiz + ` AND qa.user_id = e.user_id
				          AND qa.preview = FALSE) AS has_any
			FROM course_enrolments e
			WHERE e.course_id = ` + course + group + `
		) AS s
	`

	st := &model.SubmissionStats{}
	if err := r.db.QueryRow(ctx, query, args.values...).Scan(&st.Finished, &st.InProgress, &st.NotStarted); err != nil {
		return nil, err
	}
	return st, nil
}

// HasFinalGrades reports whether any final grade exists for the quiz.
func (r *DashboardRepository) HasFinalGrades(ctx context.Context, quizID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM quiz_grades WHERE quiz_id = $1)`, quizID,
	).Scan(&exists)
	return exists, err
}

// GetGradeBandCounts counts final grades per band of the given width, keyed by band index.
// A grade equal to the maximum lands one past the last band and must be folded by the caller.
// The quotient is rounded to 9 places before FLOOR so an inexact width such as
// 3/15 still puts a grade sitting on a boundary into the upper band.
func (r *DashboardRepository) GetGradeBandCounts(ctx context.Context, quizID, groupID int64, width float64) (map[int]int, error) {
	args := &queryArgs{}
	quiz := args.add(quizID)
	w := args.add(width)
	group := groupFilter("g.user_id", groupID, args)

	rows, err := r.db.Query(ctx,
		`SELECT FLOOR(ROUND((g.grade / `+w+`::float8)::numeric, 9))::int AS band, COUNT(*)
		 FROM quiz_grades g
		 WHERE g.quiz_id = `+quiz+group+`
		 GROUP BY band
		 ORDER BY band`,
		args.values...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var band, count int
		if err := rows.Scan(&band, &count); err != nil {
			return nil, err
		}
		counts[band] = count
	}
	return counts, rows.Err()
}

// GetQuestionStats counts, per scored slot, the users whose latest finished attempt got the slot fully right.
// Users is the number of users with a finished attempt.
func (r *DashboardRepository) GetQuestionStats(ctx context.Context, quizID, groupID int64) ([]model.QuestionStat, error) {
	args := &queryArgs{}
	quiz := args.add(quizID)
	finished := args.add(model.AttemptStateFinished)
	description := args.add(model.QuestionTypeDescription)
	group := groupFilter("qa.user_id", groupID, args)

	query := `
		WITH latest AS (
			SELECT DISTINCT ON (qa.user_id) qa.user_id, qa.usage_id
			FROM quiz_attempts qa
			WHERE qa.quiz_id = ` + quiz + ` AND qa.preview = FALSE AND qa.state = ` + finished + group + `
			ORDER BY qa.user_id, qa.attempt DESC
		)
		SELECT
			s.slot,
			s.question_id,
			q.qtype,
			COUNT(qat.usage_id) FILTER (WHERE qat.fraction >= 1 - 1e-7) AS right_count,
			(SELECT COUNT(*) FROM latest) AS users
		FROM quiz_slots s
		JOIN questions q ON q.id = s.question_id
		LEFT JOIN latest l ON TRUE
		LEFT JOIN question_attempts qat ON qat.usage_id = l.usage_id AND qat.slot = s.slot
		WHERE s.quiz_id = ` + quiz + ` AND q.qtype <> ` + description + `
		GROUP BY s.slot, s.question_id, q.qtype
		ORDER BY s.slot
	`

	rows, err := r.db.Query(ctx, query, args.values...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := []model.QuestionStat{}
	for rows.Next() {
		var st model.QuestionStat
		if err := rows.Scan(&st.Slot, &st.QuestionID, &st.QType, &st.Right, &st.Users); err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}
