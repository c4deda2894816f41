package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/stemsi/quiz-overview/internal/config"
	"github.com/stemsi/quiz-overview/internal/database"
	"github.com/stemsi/quiz-overview/internal/logger"
	"github.com/stemsi/quiz-overview/internal/model"
	"github.com/stemsi/quiz-overview/internal/regrade"
	"github.com/stemsi/quiz-overview/internal/repository"
	"github.com/stemsi/quiz-overview/internal/scoring"
	"github.com/stemsi/quiz-overview/internal/service"
	"golang.org/x/term"
)

func main() {
	var (
		quizID   int64
		mode     string
		attempts string
		groupID  int64
		closeRun bool
	)
	flag.Int64Var(&quizID, "quiz", 0, "Quiz ID (required)")
	flag.StringVar(&mode, "mode", string(model.RegradeModeAll), "selected, all, dry_run or needing")
	flag.StringVar(&attempts, "attempts", "", "Comma-separated attempt IDs")
	flag.Int64Var(&groupID, "group", 0, "Restrict to one group")
	flag.BoolVar(&closeRun, "close", false, "Finish open attempts instead of regrading")
	flag.Parse()

	cfg := config.Load()
	log := logger.New(os.Stderr, cfg.LogLevel, cfg.LogFormat, "regrade")

	if quizID <= 0 {
		fmt.Fprintln(os.Stderr, "-quiz is required")
		flag.Usage()
		os.Exit(2)
	}
	attemptIDs, err := parseIDs(attempts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -attempts: %v\n", err)
		os.Exit(2)
	}
	var group *int64
	if groupID > 0 {
		group = &groupID
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	attemptRepo := repository.NewAttemptRepository(pool)
	regradeRepo := repository.NewRegradeRepository(pool)
	engine := regrade.NewEngine(
		attemptRepo,
		regradeRepo,
		service.NewPgTransactor(pool, scoring.NewScorer()),
		service.NewGradeSyncService(pool, attemptRepo, repository.NewGradeRepository(pool), rdb, log),
		log,
	)
	svc := service.NewRegradeService(
		repository.NewQuizRepository(pool),
		attemptRepo,
		regradeRepo,
		engine,
		service.NewQuizLock(rdb, cfg.RegradeLockTTL, log),
		service.NewRunStore(rdb, cfg.RegradeRunTTL, log),
		log,
	)

	if closeRun {
		res, err := svc.CloseAttempts(ctx, quizID, model.CloseAttemptsRequest{AttemptIDs: attemptIDs, GroupID: group})
		if err != nil {
			log.Fatal().Err(err).Msg("Close attempts failed")
		}
		printJSON(os.Stdout, res)
		return
	}

	req := model.RegradeRequest{Mode: model.RegradeMode(mode), AttemptIDs: attemptIDs, GroupID: group}
	progress := newProgressLine(os.Stderr)
	run, err := svc.Run(ctx, quizID, req, 0, progress)
	progress.finish()
	if run != nil {
		printJSON(os.Stdout, run)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Regrade failed")
	}
	if len(run.Failed) > 0 {
		os.Exit(1)
	}
}

// progressLine redraws one status line on a terminal and prints plain lines otherwise.
type progressLine struct {
	out   io.Writer
	tty   bool
	width int
	drawn bool
}

func newProgressLine(f *os.File) *progressLine {
	p := &progressLine{out: f, width: 80}
	fd := int(f.Fd())
	if term.IsTerminal(fd) {
		p.tty = true
		if w, _, err := term.GetSize(fd); err == nil && w > 0 {
			p.width = w
		}
	}
	return p
}

// Progress implements regrade.ProgressSink.
func (p *progressLine) Progress(done, total int, message string) {
	line := formatProgress(done, total, message, p.width)
	if !p.tty {
		fmt.Fprintln(p.out, line)
		return
	}
	fmt.Fprintf(p.out, "\r%-*s", p.width-1, line)
	p.drawn = true
}

func (p *progressLine) finish() {
	if p.drawn {
		fmt.Fprintln(p.out)
	}
}

// formatProgress renders "[####----]  3/8 message", clipped to width.
func formatProgress(done, total int, message string, width int) string {
	const barWidth = 20
	filled := 0
	if total > 0 {
		filled = done * barWidth / total
	}
	bar := strings.Repeat("#", filled) + strings.Repeat("-", barWidth-filled)
	line := fmt.Sprintf("[%s] %d/%d %s", bar, done, total, message)
	if width > 1 && len(line) > width-1 {
		line = line[:width-1]
	}
	return line
}

func parseIDs(csv string) ([]int64, error) {
	if strings.TrimSpace(csv) == "" {
		return nil, nil
	}
	parts := strings.Split(csv, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%q is not a positive attempt id", p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
