package regrade

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/stemsi/quiz-overview/internal/model"
)

// world is an in-memory quiz database shared by the fakes below.
type world struct {
	attempts map[int64]*model.Attempt
	usages   map[int64]*model.QuestionUsage
	deltas   []model.RegradeDelta
	groups   map[int64][]int64

	// rules maps usage -> slot -> fraction the current scoring rule yields.
	rules map[int64]map[int]float64
	// failing maps usage -> slot whose scoring errors.
	failing map[int64]int

	loaded      []int64
	clears      int
	usageClears int
	syncCalls   []string
	finished    map[int64]time.Time
}

func newWorld() *world {
	return &world{
		attempts: make(map[int64]*model.Attempt),
		usages:   make(map[int64]*model.QuestionUsage),
		groups:   make(map[int64][]int64),
		rules:    make(map[int64]map[int]float64),
		failing:  make(map[int64]int),
		finished: make(map[int64]time.Time),
	}
}

func frac(v float64) *float64 { return &v }

func (w *world) addAttempt(a model.Attempt, slots ...model.SlotAttempt) {
	a.QuizID = 1
	w.attempts[a.ID] = &a
	w.usages[a.UsageID] = &model.QuestionUsage{ID: a.UsageID, Slots: slots}
}

func (w *world) rule(usageID int64, slot int, fraction float64) {
	if w.rules[usageID] == nil {
		w.rules[usageID] = make(map[int]float64)
	}
	w.rules[usageID][slot] = fraction
}

func (w *world) engine() *Engine {
	e := NewEngine(&fakeAttempts{w}, &fakeDeltas{w}, &fakeTx{w}, &fakeSync{w}, testLogger())
	e.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	return e
}

func (w *world) matches(a *model.Attempt, scope Scope) bool {
	if a.QuizID != scope.QuizID() || a.Preview {
		return false
	}
	if g := scope.GroupID(); g > 0 && !slices.Contains(w.groups[g], a.UserID) {
		return false
	}
	if users := scope.UserIDs(); len(users) > 0 && !slices.Contains(users, a.UserID) {
		return false
	}
	if ids := scope.AttemptIDs(); len(ids) > 0 && !slices.Contains(ids, a.ID) {
		return false
	}
	return true
}

func (w *world) attemptByUsage(usageID int64) *model.Attempt {
	for _, a := range w.attempts {
		if a.UsageID == usageID {
			return a
		}
	}
	return nil
}

func (w *world) hasPending(usageID int64) bool {
	for _, d := range w.deltas {
		if d.UsageID == usageID && !d.Regraded {
			return true
		}
	}
	return false
}

func (w *world) inScope(usageID int64, scope Scope) bool {
	a := w.attemptByUsage(usageID)
	if a == nil || !w.matches(a, scope) {
		return false
	}
	if scope.Kind() == ScopeNeedingRegrade {
		return w.hasPending(usageID)
	}
	return true
}

func (w *world) snapshot() (map[int64]*model.QuestionUsage, map[int64]model.Attempt, []model.RegradeDelta) {
	usages := make(map[int64]*model.QuestionUsage, len(w.usages))
	for id, u := range w.usages {
		usages[id] = u.Clone()
	}
	attempts := make(map[int64]model.Attempt, len(w.attempts))
	for id, a := range w.attempts {
		attempts[id] = *a
	}
	return usages, attempts, slices.Clone(w.deltas)
}

func (w *world) restore(usages map[int64]*model.QuestionUsage, attempts map[int64]model.Attempt, deltas []model.RegradeDelta) {
	w.usages = usages
	for id, a := range attempts {
		a := a
		w.attempts[id] = &a
	}
	w.deltas = deltas
}

// ─── Fakes ──────────────────────────────────────────────────────────

type fakeTx struct{ w *world }

func (f *fakeTx) InTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error {
	usages, attempts, deltas := f.w.snapshot()
	err := fn(ctx, Stores{
		Usages:   &fakeUsages{f.w},
		Deltas:   &fakeDeltas{f.w},
		Attempts: &fakeWriter{f.w},
	})
	if err != nil {
		f.w.restore(usages, attempts, deltas)
	}
	return err
}

type fakeUsages struct{ w *world }

func (f *fakeUsages) Load(_ context.Context, usageID int64) (*model.QuestionUsage, error) {
	u, ok := f.w.usages[usageID]
	if !ok {
		return nil, fmt.Errorf("usage %d not found", usageID)
	}
	f.w.loaded = append(f.w.loaded, usageID)
	return u.Clone(), nil
}

func (f *fakeUsages) SlotsOf(usage *model.QuestionUsage) []int { return usage.SlotNumbers() }

func (f *fakeUsages) RegradeSlot(_ context.Context, usage *model.QuestionUsage, slot int, finished bool) (*float64, error) {
	if bad, ok := f.w.failing[usage.ID]; ok && bad == slot {
		return nil, errors.New("malformed response")
	}
	if v, ok := f.w.rules[usage.ID][slot]; ok {
		return frac(v), nil
	}
	current := usage.Slot(slot).Fraction
	if current == nil && finished {
		return frac(0), nil
	}
	return current, nil
}

func (f *fakeUsages) Save(_ context.Context, usage *model.QuestionUsage) error {
	f.w.usages[usage.ID] = usage.Clone()
	return nil
}

type fakeDeltas struct{ w *world }

func (f *fakeDeltas) Clear(_ context.Context, scope Scope) error {
	f.w.clears++
	kept := f.w.deltas[:0:0]
	for _, d := range f.w.deltas {
		if !f.w.inScope(d.UsageID, scope) {
			kept = append(kept, d)
		}
	}
	f.w.deltas = kept
	return nil
}

func (f *fakeDeltas) ClearUsage(_ context.Context, usageID int64) error {
	f.w.usageClears++
	f.w.deltas = slices.DeleteFunc(f.w.deltas, func(d model.RegradeDelta) bool { return d.UsageID == usageID })
	return nil
}

// InsertBatch rejects a second row for a (usage, slot) like the table's primary key.
func (f *fakeDeltas) InsertBatch(_ context.Context, deltas []model.RegradeDelta) error {
	for _, d := range deltas {
		for _, have := range f.w.deltas {
			if have.UsageID == d.UsageID && have.Slot == d.Slot {
				return fmt.Errorf("duplicate delta for usage %d slot %d", d.UsageID, d.Slot)
			}
		}
	}
	f.w.deltas = append(f.w.deltas, deltas...)
	return nil
}

func (f *fakeDeltas) QueryPending(_ context.Context, scope Scope) (map[int64]map[int]model.RegradeDelta, error) {
	out := make(map[int64]map[int]model.RegradeDelta)
	for _, d := range f.w.deltas {
		if d.Regraded || !f.w.inScope(d.UsageID, scope) {
			continue
		}
		if out[d.UsageID] == nil {
			out[d.UsageID] = make(map[int]model.RegradeDelta)
		}
		out[d.UsageID][d.Slot] = d
	}
	return out, nil
}

type fakeAttempts struct{ w *world }

func (f *fakeAttempts) ResolveScope(_ context.Context, scope Scope) ([]model.Attempt, error) {
	var out []model.Attempt
	for _, a := range f.w.attempts {
		if f.w.matches(a, scope) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAttempts) ByUsageIDs(_ context.Context, quizID int64, usageIDs []int64) ([]model.Attempt, error) {
	var out []model.Attempt
	for _, a := range f.w.attempts {
		if a.QuizID == quizID && slices.Contains(usageIDs, a.UsageID) {
			out = append(out, *a)
		}
	}
	return out, nil
}

type fakeWriter struct{ w *world }

func (f *fakeWriter) UpdateSumGrades(_ context.Context, attemptID int64, sumGrades float64) error {
	f.w.attempts[attemptID].SumGrades = frac(sumGrades)
	return nil
}

func (f *fakeWriter) Finish(_ context.Context, attemptID int64, sumGrades float64, at time.Time) error {
	a := f.w.attempts[attemptID]
	a.SumGrades = frac(sumGrades)
	a.State = model.AttemptStateFinished
	a.TimeFinish = &at
	f.w.finished[attemptID] = at
	return nil
}

type fakeSync struct{ w *world }

func (f *fakeSync) RecomputeSumGrades(context.Context, *model.Quiz) error {
	f.w.syncCalls = append(f.w.syncCalls, "sumgrades")
	return nil
}

func (f *fakeSync) RecomputeFinalGrades(context.Context, *model.Quiz) error {
	f.w.syncCalls = append(f.w.syncCalls, "final")
	return nil
}

func (f *fakeSync) PushToGradebook(context.Context, *model.Quiz) error {
	f.w.syncCalls = append(f.w.syncCalls, "gradebook")
	return nil
}
