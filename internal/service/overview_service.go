package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/stemsi/quiz-overview/internal/binning"
	"github.com/stemsi/quiz-overview/internal/model"
	"github.com/stemsi/quiz-overview/internal/repository"
)

// PendingCounter counts attempts with uncommitted regrade deltas.
type PendingCounter interface {
	CountNeedingRegrade(ctx context.Context, quizID, groupID int64) (int, error)
}

// OverviewOptions are the display preferences of an overview request.
type OverviewOptions struct {
	GroupID           int64
	Direction         binning.Direction
	NotSubmittedLabel string
}

// OverviewService assembles the teacher dashboard of a quiz.
type OverviewService struct {
	quizzes   *repository.QuizRepository
	dashboard *repository.DashboardRepository
	pending   PendingCounter
	log       zerolog.Logger
}

// NewOverviewService creates a new OverviewService.
func NewOverviewService(
	quizzes *repository.QuizRepository,
	dashboard *repository.DashboardRepository,
	pending PendingCounter,
	log zerolog.Logger,
) *OverviewService {
	return &OverviewService{
		quizzes:   quizzes,
		dashboard: dashboard,
		pending:   pending,
		log:       log.With().Str("component", "overview_service").Logger(),
	}
}

// GetOverview loads every overview block concurrently and assembles the dashboard.
func (s *OverviewService) GetOverview(ctx context.Context, quizID int64, opts OverviewOptions) (*model.QuizOverview, error) {
	quiz, err := s.quizzes.GetByID(ctx, quizID)
	if err != nil {
		return nil, err
	}

	scale := binning.Scale{MaxGrade: quiz.Grade, DecimalPoints: quiz.DecimalPoints}
	spec, err := scale.Spec()
	if err != nil {
		return nil, fmt.Errorf("quiz %d: %w", quizID, err)
	}
	layout := binning.LayoutFor(quiz.Grade)

	var (
		raw         *repository.RawGradeSummary
		submissions *model.SubmissionStats
		hasGrades   bool
		displayRaw  map[int]int
		bandRaw     map[int]int
		questions   []model.QuestionStat
		pending     int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		raw, err = s.dashboard.GetGradeSummary(gctx, quizID, opts.GroupID)
		return err
	})
	g.Go(func() (err error) {
		submissions, err = s.dashboard.GetSubmissionStats(gctx, quizID, quiz.CourseID, opts.GroupID)
		return err
	})
	g.Go(func() (err error) {
		hasGrades, err = s.dashboard.HasFinalGrades(gctx, quizID)
		return err
	})
	g.Go(func() (err error) {
		displayRaw, err = s.dashboard.GetGradeBandCounts(gctx, quizID, opts.GroupID, layout.BandWidth())
		return err
	})
	g.Go(func() (err error) {
		bandRaw, err = s.dashboard.GetGradeBandCounts(gctx, quizID, opts.GroupID, spec.Width)
		return err
	})
	g.Go(func() (err error) {
		questions, err = s.dashboard.GetQuestionStats(gctx, quizID, opts.GroupID)
		return err
	})
	g.Go(func() (err error) {
		pending, err = s.pending.CountNeedingRegrade(gctx, quizID, opts.GroupID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load overview of quiz %d: %w", quizID, err)
	}

	overview := &model.QuizOverview{
		Quiz:           quiz,
		Summary:        SummarizeGrades(quiz, raw),
		Submissions:    *submissions,
		Questions:      RateQuestions(questions),
		NeedingRegrade: pending,
	}
	if opts.GroupID > 0 {
		gid := opts.GroupID
		overview.GroupID = &gid
	}

	if hasGrades {
		overview.Histogram, err = binning.DisplayHistogram(
			binning.FoldBands(displayRaw, binning.DisplayRawBands),
			submissions.InProgress, layout, opts.Direction, opts.NotSubmittedLabel)
		if err != nil {
			return nil, err
		}
	} else {
		overview.Histogram = binning.EmptyHistogram(layout, opts.Direction, opts.NotSubmittedLabel)
	}

	labels, counts := binning.Rebin(spec, scale, binning.FoldBands(bandRaw, spec.Count))
	overview.Distribution = model.GradeDistribution{
		BandCount: spec.Count,
		BandWidth: spec.Width,
		Labels:    labels,
		Counts:    counts,
	}

	s.log.Debug().Int64("quiz_id", quizID).Int64("group_id", opts.GroupID).Msg("Overview assembled")
	return overview, nil
}

// SummarizeGrades rescales raw attempt aggregates onto the quiz grade. The
// average keeps one decimal, highest and lowest are whole numbers.
func SummarizeGrades(quiz *model.Quiz, raw *repository.RawGradeSummary) model.GradeSummary {
	summary := model.GradeSummary{MaxGrade: quiz.Grade}
	if raw == nil || raw.Count == 0 {
		return summary
	}
	summary.Count = raw.Count

	rescale := func(v *float64, places int) *float64 {
		if v == nil {
			return nil
		}
		r := roundTo(quiz.RescaleGrade(*v), places)
		return &r
	}
	summary.Average = rescale(raw.Average, 1)
	summary.Highest = rescale(raw.Highest, 0)
	summary.Lowest = rescale(raw.Lowest, 0)
	return summary
}

// RateQuestions fills each statistic's right-answer ratio and badge.
func RateQuestions(stats []model.QuestionStat) []model.QuestionStat {
	out := make([]model.QuestionStat, len(stats))
	for i, st := range stats {
		if st.Users > 0 {
			st.Ratio = float64(st.Right) / float64(st.Users)
		}
		st.Badge = model.BadgeFor(st.Ratio)
		out[i] = st
	}
	return out
}
