//go:build integration

package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/quiz-overview/internal/model"
	"github.com/stemsi/quiz-overview/internal/regrade"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		fmt.Println("TEST_DATABASE_URL not set, skipping integration tests")
		os.Exit(0)
	}

	mig, err := migrate.New("file://../../migrations", dbURL)
	if err != nil {
		fmt.Printf("migrate init: %v\n", err)
		os.Exit(1)
	}
	if err := mig.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		fmt.Printf("migrate up: %v\n", err)
		os.Exit(1)
	}

	testPool, err = pgxpool.New(context.Background(), dbURL)
	if err != nil {
		fmt.Printf("connect: %v\n", err)
		os.Exit(1)
	}
	code := m.Run()
	testPool.Close()
	os.Exit(code)
}

// withTx runs fn in a transaction that is always rolled back.
func withTx(t *testing.T, fn func(ctx context.Context, tx pgx.Tx)) {
	t.Helper()
	ctx := context.Background()
	tx, err := testPool.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback(ctx)
	fn(ctx, tx)
}

type fixture struct {
	quizID   int64
	attempts []int64
	usages   []int64
}

// seedFixture creates a two-slot quiz with three users: two finished attempts and one open.
// User 11 is in group 5.
func seedFixture(t *testing.T, ctx context.Context, tx pgx.Tx) fixture {
	t.Helper()
	var f fixture
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	must(tx.QueryRow(ctx,
		`INSERT INTO quizzes (course_id, name, grade, sumgrades, grade_method)
		 VALUES (3, 'fixture', 100, 2, 'highest') RETURNING id`).Scan(&f.quizID))

	var q1, q2 int64
	must(tx.QueryRow(ctx, `INSERT INTO questions (qtype, answer_key) VALUES ('multichoice', '{"answer":"b"}') RETURNING id`).Scan(&q1))
	must(tx.QueryRow(ctx, `INSERT INTO questions (qtype, answer_key) VALUES ('description', '{}') RETURNING id`).Scan(&q2))
	_, err := tx.Exec(ctx, `INSERT INTO quiz_slots (quiz_id, slot, question_id, max_mark) VALUES ($1, 1, $2, 2), ($1, 2, $3, 0)`, f.quizID, q1, q2)
	must(err)
	_, err = tx.Exec(ctx, `INSERT INTO group_members (group_id, user_id) VALUES (5, 11)`)
	must(err)

	rows := []struct {
		user     int64
		state    model.AttemptState
		fraction *float64
		sum      *float64
	}{
		{11, model.AttemptStateFinished, ptr(1.0), ptr(2.0)},
		{12, model.AttemptStateFinished, ptr(0.0), ptr(0.0)},
		{13, model.AttemptStateInProgress, nil, nil},
	}
	for _, r := range rows {
		_, err := tx.Exec(ctx, `INSERT INTO course_enrolments (course_id, user_id) VALUES (3, $1)`, r.user)
		must(err)
		var usageID, attemptID int64
		must(tx.QueryRow(ctx, `INSERT INTO question_usages DEFAULT VALUES RETURNING id`).Scan(&usageID))
		_, err = tx.Exec(ctx,
			`INSERT INTO question_attempts (usage_id, slot, question_id, max_mark, response, fraction)
			 VALUES ($1, 1, $2, 2, 'b', $3), ($1, 2, $4, 0, NULL, NULL)`, usageID, q1, r.fraction, q2)
		must(err)
		must(tx.QueryRow(ctx,
			`INSERT INTO quiz_attempts (quiz_id, user_id, attempt, usage_id, state, sumgrades)
			 VALUES ($1, $2, 1, $3, $4, $5) RETURNING id`, f.quizID, r.user, usageID, r.state, r.sum).Scan(&attemptID))
		f.usages = append(f.usages, usageID)
		f.attempts = append(f.attempts, attemptID)
	}
	// A preview attempt never shows up anywhere.
	var previewUsage int64
	must(tx.QueryRow(ctx, `INSERT INTO question_usages DEFAULT VALUES RETURNING id`).Scan(&previewUsage))
	_, err = tx.Exec(ctx,
		`INSERT INTO quiz_attempts (quiz_id, user_id, attempt, usage_id, state, sumgrades, preview)
		 VALUES ($1, 99, 1, $2, 'finished', 2, TRUE)`, f.quizID, previewUsage)
	must(err)
	return f
}

func ptr(v float64) *float64 { return &v }

func TestResolveScopeIntegration(t *testing.T) {
	withTx(t, func(ctx context.Context, tx pgx.Tx) {
		f := seedFixture(t, ctx, tx)
		repo := NewAttemptRepository(tx)

		all, err := repo.ResolveScope(ctx, regrade.AllAttempts(f.quizID))
		if err != nil || len(all) != 3 {
			t.Fatalf("all = %d, %v", len(all), err)
		}
		group, _ := repo.ResolveScope(ctx, regrade.GroupAttempts(f.quizID, 5))
		if len(group) != 1 || group[0].UserID != 11 {
			t.Errorf("group = %+v", group)
		}
		explicit, _ := repo.ResolveScope(ctx, regrade.ExplicitAttempts(f.quizID, []int64{f.attempts[1]}))
		if len(explicit) != 1 || explicit[0].ID != f.attempts[1] {
			t.Errorf("explicit = %+v", explicit)
		}
		needing, _ := repo.ResolveScope(ctx, regrade.NeedingRegrade(f.quizID))
		if len(needing) != 0 {
			t.Errorf("needing before deltas = %d", len(needing))
		}
	})
}

func TestRegradeDeltasIntegration(t *testing.T) {
	withTx(t, func(ctx context.Context, tx pgx.Tx) {
		f := seedFixture(t, ctx, tx)
		deltas := NewRegradeRepository(tx)
		now := time.Now().UTC().Truncate(time.Microsecond)

		err := deltas.InsertBatch(ctx, []model.RegradeDelta{
			{UsageID: f.usages[0], Slot: 1, OldFraction: ptr(1), NewFraction: ptr(0), TimeModified: now},
			{UsageID: f.usages[1], Slot: 1, OldFraction: ptr(0), NewFraction: ptr(1), Regraded: true, TimeModified: now},
		})
		if err != nil {
			t.Fatalf("InsertBatch: %v", err)
		}

		pending, err := deltas.QueryPending(ctx, regrade.AllAttempts(f.quizID))
		if err != nil || len(pending) != 1 || pending[f.usages[0]][1].NewFraction == nil {
			t.Fatalf("pending = %+v, %v", pending, err)
		}
		needing, _ := NewAttemptRepository(tx).ResolveScope(ctx, regrade.NeedingRegrade(f.quizID))
		if len(needing) != 1 || needing[0].UsageID != f.usages[0] {
			t.Errorf("needing = %+v", needing)
		}

		committed := []model.RegradeDelta{
			{UsageID: f.usages[0], Slot: 1, OldFraction: ptr(1), NewFraction: ptr(0), Regraded: true, TimeModified: now},
		}

		// A second row for the same slot is rejected until the usage is cleared.
		sp, err := tx.Begin(ctx)
		if err != nil {
			t.Fatalf("savepoint: %v", err)
		}
		if err := NewRegradeRepository(sp).InsertBatch(ctx, committed); err == nil {
			t.Error("duplicate (usage, slot) insert should fail")
		}
		_ = sp.Rollback(ctx)

		if err := deltas.ClearUsage(ctx, f.usages[0]); err != nil {
			t.Fatalf("ClearUsage: %v", err)
		}
		if err := deltas.InsertBatch(ctx, committed); err != nil {
			t.Fatalf("InsertBatch after clear: %v", err)
		}
		if pending, _ := deltas.QueryPending(ctx, regrade.AllAttempts(f.quizID)); len(pending) != 0 {
			t.Errorf("pending after commit = %+v", pending)
		}

		if err := deltas.Clear(ctx, regrade.GroupAttempts(f.quizID, 5)); err != nil {
			t.Fatalf("Clear: %v", err)
		}
		listed, _ := deltas.ListByScope(ctx, regrade.AllAttempts(f.quizID))
		if _, ok := listed[f.usages[0]]; ok || len(listed) != 1 {
			t.Errorf("listed after group clear = %+v", listed)
		}
	})
}

func TestUsageRoundTripIntegration(t *testing.T) {
	withTx(t, func(ctx context.Context, tx pgx.Tx) {
		f := seedFixture(t, ctx, tx)
		repo := NewUsageRepository(tx)

		usage, err := repo.Load(ctx, f.usages[2])
		if err != nil || len(usage.Slots) != 2 {
			t.Fatalf("Load = %+v, %v", usage, err)
		}
		usage.Slot(1).Fraction = ptr(0.5)
		if err := repo.SaveFractions(ctx, usage); err != nil {
			t.Fatalf("SaveFractions: %v", err)
		}
		again, _ := repo.Load(ctx, f.usages[2])
		if got := again.Slot(1).Fraction; got == nil || *got != 0.5 {
			t.Errorf("fraction after save = %v", got)
		}

		if _, err := repo.Load(ctx, -1); !errors.Is(err, ErrUsageNotFound) {
			t.Errorf("missing usage err = %v", err)
		}
	})
}

func TestDashboardQueriesIntegration(t *testing.T) {
	withTx(t, func(ctx context.Context, tx pgx.Tx) {
		f := seedFixture(t, ctx, tx)
		dash := NewDashboardRepository(tx)

		sum, err := dash.GetGradeSummary(ctx, f.quizID, 0)
		if err != nil || sum.Count != 2 || *sum.Highest != 2 || *sum.Lowest != 0 {
			t.Errorf("summary = %+v, %v", sum, err)
		}

		subs, err := dash.GetSubmissionStats(ctx, f.quizID, 3, 0)
		if err != nil || subs.Finished != 2 || subs.InProgress != 1 || subs.NotStarted != 0 {
			t.Errorf("submissions = %+v, %v", subs, err)
		}

		if has, _ := dash.HasFinalGrades(ctx, f.quizID); has {
			t.Error("no final grades expected yet")
		}
		grades := NewGradeRepository(tx)
		if err := grades.ReplaceFinalGrades(ctx, f.quizID, []FinalGrade{{UserID: 11, Grade: 100}, {UserID: 12, Grade: 0}}); err != nil {
			t.Fatalf("ReplaceFinalGrades: %v", err)
		}
		bands, err := dash.GetGradeBandCounts(ctx, f.quizID, 0, 10)
		if err != nil || bands[10] != 1 || bands[0] != 1 {
			t.Errorf("bands = %v, %v", bands, err)
		}

		// 0.6 / (3.0/15) is 2.9999999999999996 in float64 yet sits on the band 3 boundary.
		if err := grades.ReplaceFinalGrades(ctx, f.quizID, []FinalGrade{{UserID: 11, Grade: 0.6}, {UserID: 12, Grade: 2.4}}); err != nil {
			t.Fatalf("ReplaceFinalGrades: %v", err)
		}
		bands, err = dash.GetGradeBandCounts(ctx, f.quizID, 0, 3.0/15)
		if err != nil || bands[3] != 1 || bands[12] != 1 || len(bands) != 2 {
			t.Errorf("boundary bands = %v, %v", bands, err)
		}

		stats, err := dash.GetQuestionStats(ctx, f.quizID, 0)
		if err != nil || len(stats) != 1 {
			t.Fatalf("stats = %+v, %v", stats, err)
		}
		if stats[0].Right != 1 || stats[0].Users != 2 {
			t.Errorf("slot 1 = %+v", stats[0])
		}

		if err := grades.ReplaceFinalGrades(ctx, f.quizID, []FinalGrade{{UserID: 12, Grade: 50}}); err != nil {
			t.Fatalf("ReplaceFinalGrades: %v", err)
		}
		final, _ := grades.ListFinalGrades(ctx, f.quizID)
		if len(final) != 1 || final[0].UserID != 12 || final[0].Grade != 50 {
			t.Errorf("final = %+v", final)
		}
		if err := grades.PushGradebook(ctx, []int64{f.quizID}, time.Now()); err != nil {
			t.Errorf("PushGradebook: %v", err)
		}
	})
}
