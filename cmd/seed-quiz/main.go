package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stemsi/quiz-overview/internal/config"
	"github.com/stemsi/quiz-overview/internal/database"
	"github.com/stemsi/quiz-overview/internal/logger"
	"github.com/stemsi/quiz-overview/internal/model"
	"github.com/stemsi/quiz-overview/internal/repository"
	"github.com/stemsi/quiz-overview/internal/scoring"
	"github.com/stemsi/quiz-overview/internal/service"
)

const (
	courseID     = 1
	groupID      = 1
	firstUserID  = 1001
	responseSeed = 42
)

type seedQuestion struct {
	qtype     model.QuestionType
	key       model.AnswerKey
	responses []string
}

func f64(v float64) *float64 { return &v }

var questions = []seedQuestion{
	{model.QuestionTypeMultiChoice, model.AnswerKey{Answer: "b"}, []string{"a", "b", "b", "c"}},
	{model.QuestionTypeTrueFalse, model.AnswerKey{Answer: "true"}, []string{"true", "false"}},
	{model.QuestionTypeNumerical, model.AnswerKey{Value: f64(3.14), Tolerance: 0.01}, []string{"3.14", "3.1", "3.141", "22/7"}},
	{model.QuestionTypeShortAnswer, model.AnswerKey{Answer: "paris"}, []string{"Paris", "paris ", "london", ""}},
	{model.QuestionTypeMultiResponse, model.AnswerKey{Answers: []string{"a", "c"}}, []string{"a", "a,c", "c", "a,b"}},
}

func main() {
	var (
		users    int
		finished int
		stale    bool
	)
	flag.IntVar(&users, "users", 30, "Number of enrolled users")
	flag.IntVar(&finished, "finished", 20, "Users with a finished attempt")
	flag.BoolVar(&stale, "stale", true, "Change an answer key after scoring so a regrade has work to do")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat, "seed-quiz")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	fmt.Printf("=== Seeding demo quiz: %d users, %d finished ===\n", users, finished)

	var quizID int64
	err = database.WithTx(ctx, pool, func(tx pgx.Tx) error {
		var err error
		quizID, err = seed(ctx, tx, users, finished)
		return err
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Seed failed")
	}

	quiz, err := repository.NewQuizRepository(pool).GetByID(ctx, quizID)
	if err != nil {
		log.Fatal().Err(err).Msg("Reload quiz failed")
	}
	sync := service.NewGradeSyncService(pool, repository.NewAttemptRepository(pool), repository.NewGradeRepository(pool), nil, log)
	if err := sync.RecomputeSumGrades(ctx, quiz); err != nil {
		log.Fatal().Err(err).Msg("Recompute sumgrades failed")
	}
	if err := sync.RecomputeFinalGrades(ctx, quiz); err != nil {
		log.Fatal().Err(err).Msg("Recompute final grades failed")
	}

	if stale {
		if _, err := pool.Exec(ctx,
			`UPDATE questions SET answer_key = '{"answer":"c"}'::jsonb, updated_at = NOW()
			 WHERE id = (SELECT question_id FROM quiz_slots WHERE quiz_id = $1 AND slot = 1)`, quizID); err != nil {
			log.Fatal().Err(err).Msg("Failed to change answer key")
		}
		fmt.Println("Slot 1 answer key changed from b to c")
	}

	fmt.Printf("\nSeed completed! Quiz ID: %d\n", quizID)
}

func seed(ctx context.Context, tx pgx.Tx, users, finished int) (int64, error) {
	var quizID int64
	if err := tx.QueryRow(ctx,
		`INSERT INTO quizzes (course_id, name, grade, decimal_points, grade_method)
		 VALUES ($1, $2, 10, 2, $3) RETURNING id`,
		courseID, fmt.Sprintf("Demo quiz %s", time.Now().Format("2006-01-02 15:04")), model.GradeMethodHighest,
	).Scan(&quizID); err != nil {
		return 0, fmt.Errorf("insert quiz: %w", err)
	}

	defs := make([]*model.Question, len(questions))
	for i, q := range questions {
		def := &model.Question{Type: q.qtype, AnswerKey: q.key}
		if err := tx.QueryRow(ctx,
			`INSERT INTO questions (qtype, answer_key) VALUES ($1, $2) RETURNING id`,
			q.qtype, q.key,
		).Scan(&def.ID); err != nil {
			return 0, fmt.Errorf("insert question %d: %w", i+1, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO quiz_slots (quiz_id, slot, question_id, max_mark) VALUES ($1, $2, $3, 1)`,
			quizID, i+1, def.ID,
		); err != nil {
			return 0, fmt.Errorf("insert slot %d: %w", i+1, err)
		}
		defs[i] = def
	}

	scorer := scoring.NewScorer()
	rng := rand.New(rand.NewPCG(responseSeed, uint64(quizID)))
	started := users * 5 / 6
	if finished > started {
		started = finished
	}

	for u := 0; u < users; u++ {
		userID := int64(firstUserID + u)
		if _, err := tx.Exec(ctx,
			`INSERT INTO course_enrolments (course_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			courseID, userID,
		); err != nil {
			return 0, fmt.Errorf("enrol user %d: %w", userID, err)
		}
		if u%2 == 0 {
			if _, err := tx.Exec(ctx,
				`INSERT INTO group_members (group_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
				groupID, userID,
			); err != nil {
				return 0, fmt.Errorf("group user %d: %w", userID, err)
			}
		}
		if u >= started {
			continue
		}

		done := u < finished
		usage := &model.QuestionUsage{}
		if err := tx.QueryRow(ctx, `INSERT INTO question_usages DEFAULT VALUES RETURNING id`).Scan(&usage.ID); err != nil {
			return 0, fmt.Errorf("insert usage: %w", err)
		}

		for i, q := range questions {
			resp := q.responses[rng.IntN(len(q.responses))]
			slot := model.SlotAttempt{Slot: i + 1, QuestionID: defs[i].ID, QuestionType: q.qtype, MaxMark: 1, Response: &resp}
			fraction, err := scorer.Score(defs[i], &slot, done)
			if err != nil {
				return 0, fmt.Errorf("score slot %d: %w", i+1, err)
			}
			slot.Fraction = fraction
			usage.Slots = append(usage.Slots, slot)

			if _, err := tx.Exec(ctx,
				`INSERT INTO question_attempts (usage_id, slot, question_id, max_mark, response, fraction)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				usage.ID, slot.Slot, slot.QuestionID, slot.MaxMark, slot.Response, slot.Fraction,
			); err != nil {
				return 0, fmt.Errorf("insert question attempt: %w", err)
			}
		}

		state := model.AttemptStateInProgress
		var sum *float64
		var finishedAt *time.Time
		if done {
			state = model.AttemptStateFinished
			sum = f64(usage.TotalMark())
			now := time.Now()
			finishedAt = &now
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO quiz_attempts (quiz_id, user_id, attempt, usage_id, state, sumgrades, time_finish)
			 VALUES ($1, $2, 1, $3, $4, $5, $6)`,
			quizID, userID, usage.ID, state, sum, finishedAt,
		); err != nil {
			return 0, fmt.Errorf("insert attempt for user %d: %w", userID, err)
		}
	}

	return quizID, nil
}
