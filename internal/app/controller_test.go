package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"escape-room-service/internal/app"
	"escape-room-service/internal/catalog"
	"escape-room-service/internal/clock"
	"escape-room-service/internal/domain"
	"escape-room-service/internal/infra/memory"
	"escape-room-service/internal/scoring"
)

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func TestStartRejectsMissingIdentityWithoutIO(t *testing.T) {
	h := newHarness(t, nil, app.Options{})

	err := h.ctrl.Start(context.Background(), "  ", "R1")
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Field != "name" {
		t.Fatalf("expected name validation error, got %v", err)
	}
	if err := h.ctrl.Start(context.Background(), "Alice", ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if h.ctrl.State() != domain.StateEntry {
		t.Fatalf("expected to stay in entry, got %s", h.ctrl.State())
	}
	if len(h.exec.tasks) != 0 || h.gw.finds != 0 {
		t.Fatalf("expected no persistence calls")
	}
}

func TestStartPlaysBeforeSessionIsCreated(t *testing.T) {
	h := newHarness(t, nil, app.Options{})

	if err := h.ctrl.Start(context.Background(), " Alice ", "R1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	v := h.ctrl.View()
	if v.State != domain.StatePlaying || v.CurrentChallenge != 1 || v.Remaining != 3600 {
		t.Fatalf("unexpected view %+v", v)
	}
	if v.Saved || v.Identity.Name != "Alice" {
		t.Fatalf("expected unsaved local session for Alice, got %+v", v.Identity)
	}
	if !h.platform.fullscreen {
		t.Fatalf("expected fullscreen requested")
	}

	h.exec.RunAll()

	if !h.ctrl.View().Saved || h.ctrl.Session().ID() == "" {
		t.Fatalf("expected session id after creation")
	}
}

func TestCorrectWrongAndAutoSkip(t *testing.T) {
	h := newHarness(t, nil, app.Options{})
	h.start("Alice", "R1")

	mustDo(t, h.ctrl.Correct())
	if s := h.ctrl.Session(); s.Score() != 10 || s.Completed() != 1 || s.Current() != 2 {
		t.Fatalf("expected 10/1 at 2, got %d/%d at %d", s.Score(), s.Completed(), s.Current())
	}

	mustDo(t, h.ctrl.Wrong())
	mustDo(t, h.ctrl.Wrong())
	if h.ctrl.Attempts() != 2 || h.ctrl.Session().Score() != 6 {
		t.Fatalf("expected 2 attempts and score 6, got %d/%d", h.ctrl.Attempts(), h.ctrl.Session().Score())
	}

	mustDo(t, h.ctrl.Wrong())
	s := h.ctrl.Session()
	if s.Score() != 4 || s.Completed() != 2 || s.Current() != 3 || h.ctrl.Attempts() != 0 {
		t.Fatalf("expected auto-skip to 3 with 4/2, got %d/%d at %d (attempts %d)", s.Score(), s.Completed(), s.Current(), h.ctrl.Attempts())
	}

	h.exec.RunAll()
	rec, _ := h.gw.Session(s.ID())
	if rec.Score != 4 || rec.ChallengesCompleted != 2 {
		t.Fatalf("expected persisted 4/2, got %d/%d", rec.Score, rec.ChallengesCompleted)
	}
}

func TestExemptChallengeIsNeverAutoSkipped(t *testing.T) {
	h := newHarness(t, nil, app.Options{})
	h.start("Alice", "R1")

	mustDo(t, h.ctrl.Correct())
	mustDo(t, h.ctrl.Correct())
	for i := 0; i < 6; i++ {
		mustDo(t, h.ctrl.Wrong())
	}
	s := h.ctrl.Session()
	if s.Current() != 3 || s.Completed() != 2 {
		t.Fatalf("expected to stay on exempt challenge 3, got %d", s.Current())
	}
	if s.Score() != 8 || h.ctrl.Attempts() != 6 {
		t.Fatalf("expected score 8 after six penalties, got %d", s.Score())
	}
}

func TestWrongNeverGoesNegative(t *testing.T) {
	h := newHarness(t, nil, app.Options{})
	h.start("Alice", "R1")

	mustDo(t, h.ctrl.Wrong())
	if h.ctrl.Session().Score() != 0 {
		t.Fatalf("expected score floored at 0, got %d", h.ctrl.Session().Score())
	}
}

func TestHintChargesOnceAndToggles(t *testing.T) {
	h := newHarness(t, nil, app.Options{})
	h.start("Alice", "R1")
	mustDo(t, h.ctrl.Correct())

	h.allow = false
	mustDo(t, h.ctrl.Hint(context.Background()))
	if h.ctrl.View().HintOpen || h.ctrl.Session().Score() != 10 {
		t.Fatalf("declined hint must not change anything")
	}

	h.allow = true
	mustDo(t, h.ctrl.Hint(context.Background()))
	v := h.ctrl.View()
	if !v.HintOpen || v.Score != 8 || v.Hint == "" {
		t.Fatalf("expected open hint and score 8, got %+v", v)
	}
	if h.lastPrompt != app.HintPrompt(2) {
		t.Fatalf("unexpected prompt %q", h.lastPrompt)
	}

	mustDo(t, h.ctrl.Hint(context.Background()))
	if h.ctrl.View().HintOpen || h.ctrl.Session().Score() != 8 {
		t.Fatalf("second hint request should close without charge")
	}

	mustDo(t, h.ctrl.Hint(context.Background()))
	mustDo(t, h.ctrl.Correct())
	if h.ctrl.View().HintOpen {
		t.Fatalf("hint must close when the challenge changes")
	}
}

func TestSkipAtLastChallengeFinishes(t *testing.T) {
	h := newHarness(t, smallRound(t, 2), app.Options{})
	h.start("Alice", "R1")

	mustDo(t, h.ctrl.Correct())
	mustDo(t, h.ctrl.Skip(context.Background()))

	v := h.ctrl.View()
	if v.State != domain.StateResult || v.Score != 10 || v.ChallengesCompleted != 2 {
		t.Fatalf("expected result with 10/2, got %+v", v)
	}
	if h.platform.fullscreen {
		t.Fatalf("expected fullscreen exited")
	}

	h.exec.RunAll()
	id := h.ctrl.Session().ID()
	rec, _ := h.gw.Session(id)
	if rec.Status != domain.StatusCompleted || rec.CompletedAt == nil {
		t.Fatalf("expected completed session, got %+v", rec)
	}
	entry, ok := h.gw.Entry(id)
	if !ok || entry.Score != 10 || entry.ChallengesCompleted != 2 || entry.Identity.RollNo != "R1" {
		t.Fatalf("unexpected leaderboard entry %+v", entry)
	}
}

func TestTimerExpiryFinishes(t *testing.T) {
	h := newHarness(t, nil, app.Options{Duration: 3 * time.Second})
	h.start("Alice", "R1")
	mustDo(t, h.ctrl.Correct())

	h.ctrl.Tick()
	h.ctrl.Tick()
	if h.ctrl.State() != domain.StatePlaying {
		t.Fatalf("finished too early")
	}
	h.ctrl.Tick()
	if h.ctrl.State() != domain.StateResult {
		t.Fatalf("expected result after expiry")
	}
	if err := h.ctrl.Correct(); !errors.Is(err, domain.ErrNotPlaying) {
		t.Fatalf("expected events to be ignored after finish, got %v", err)
	}

	h.exec.RunAll()
	entry, ok := h.gw.Entry(h.ctrl.Session().ID())
	if !ok || entry.Score != 10 || entry.ChallengesCompleted != 1 {
		t.Fatalf("unexpected entry %+v", entry)
	}
}

func TestFinishRunsOnce(t *testing.T) {
	h := newHarness(t, smallRound(t, 1), app.Options{Duration: 2 * time.Second})
	h.start("Alice", "R1")

	h.ctrl.Tick()
	mustDo(t, h.ctrl.Correct())
	h.ctrl.Tick()
	h.ctrl.Tick()
	h.exec.RunAll()

	if h.gw.finalUpdates != 1 || h.gw.entries != 1 {
		t.Fatalf("expected exactly one finalization, got %d updates and %d entries", h.gw.finalUpdates, h.gw.entries)
	}
}

func TestFinishBeforeCreationIsReplayed(t *testing.T) {
	h := newHarness(t, smallRound(t, 1), app.Options{})
	if err := h.ctrl.Start(context.Background(), "Alice", "R1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	mustDo(t, h.ctrl.Correct())
	if h.ctrl.State() != domain.StateResult {
		t.Fatalf("expected result")
	}
	if h.gw.updates != 0 {
		t.Fatalf("no writes before the id is known")
	}

	h.exec.RunAll()

	id := h.ctrl.Session().ID()
	rec, ok := h.gw.Session(id)
	if !ok || rec.Status != domain.StatusCompleted || rec.Score != 10 {
		t.Fatalf("expected replayed finalization, got %+v", rec)
	}
	if _, ok := h.gw.Entry(id); !ok {
		t.Fatalf("expected leaderboard entry")
	}
}

func TestCreationFailureWarnsAndContinuesLocally(t *testing.T) {
	h := newHarness(t, nil, app.Options{})
	h.gw.createErr = domain.ErrPersistenceUnavailable
	views, cancel := h.ctrl.Subscribe()
	defer cancel()

	if err := h.ctrl.Start(context.Background(), "Alice", "R1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	h.exec.RunAll()

	notices := 0
	for _, v := range drain(views) {
		if v.Notice != nil && v.Notice.Kind == domain.NoticeUnsaved {
			notices++
		}
	}
	if notices != 1 {
		t.Fatalf("expected one unsaved notice, got %d", notices)
	}

	mustDo(t, h.ctrl.Correct())
	h.exec.RunAll()
	if h.gw.updates != 0 {
		t.Fatalf("expected no writes without a session id")
	}
	if h.ctrl.Session().Score() != 10 {
		t.Fatalf("expected local scoring to continue")
	}
	for _, v := range drain(views) {
		if v.Notice != nil {
			t.Fatalf("unexpected repeated notice %+v", v.Notice)
		}
	}
}

func TestQuitDiscardsLateCreation(t *testing.T) {
	h := newHarness(t, nil, app.Options{})
	if err := h.ctrl.Start(context.Background(), "Alice", "R1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	mustDo(t, h.ctrl.Quit(context.Background()))
	if h.ctrl.State() != domain.StateEntry || h.platform.fullscreen {
		t.Fatalf("expected entry with fullscreen exited")
	}

	h.exec.RunAll()
	if h.ctrl.Session().ID() != "" || h.ctrl.State() != domain.StateEntry {
		t.Fatalf("late creation result must be ignored")
	}
}

func TestQuitRequiresConfirmation(t *testing.T) {
	h := newHarness(t, nil, app.Options{})
	h.start("Alice", "R1")
	mustDo(t, h.ctrl.Correct())

	h.allow = false
	mustDo(t, h.ctrl.Quit(context.Background()))
	if h.ctrl.State() != domain.StatePlaying || h.ctrl.Session().Score() != 10 {
		t.Fatalf("declined quit must keep playing")
	}

	h.allow = true
	mustDo(t, h.ctrl.Quit(context.Background()))
	v := h.ctrl.View()
	if v.State != domain.StateEntry || v.Score != 0 || v.CurrentChallenge != 1 {
		t.Fatalf("expected reset state, got %+v", v)
	}
}

func TestStartResumesExistingSession(t *testing.T) {
	h := newHarness(t, nil, app.Options{})
	rec, _ := h.gw.CreateSession(context.Background(), domain.NewSession{
		Identity: domain.Identity{Name: "Alice", RollNo: "R1"},
		Status:   domain.StatusActive,
	})
	score, completed := 20, 2
	_ = h.gw.UpdateSession(context.Background(), rec.ID, domain.SessionUpdate{Score: &score, ChallengesCompleted: &completed})
	h.clk.Advance(10 * time.Minute)

	if err := h.ctrl.Start(context.Background(), "Alice", "R1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	v := h.ctrl.View()
	if v.State != domain.StatePlaying || v.Score != 20 || v.CurrentChallenge != 3 || v.Remaining != 3000 {
		t.Fatalf("unexpected resumed view %+v", v)
	}
	if h.ctrl.Session().ID() != rec.ID {
		t.Fatalf("expected resumed id")
	}
	if h.gw.creates != 1 {
		t.Fatalf("resume must not create a new session")
	}
}

func TestResumeOutcomes(t *testing.T) {
	ctx := context.Background()
	alice := domain.Identity{Name: "Alice", RollNo: "R1"}

	t.Run("not found", func(t *testing.T) {
		h := newHarness(t, nil, app.Options{})
		res, err := h.ctrl.Resume(ctx, alice)
		if err != nil || res.Outcome != app.ResumeNotFound {
			t.Fatalf("expected not found, got %v %v", res.Outcome, err)
		}
		if h.ctrl.State() != domain.StateEntry {
			t.Fatalf("expected entry")
		}
	})

	t.Run("completed", func(t *testing.T) {
		h := newHarness(t, nil, app.Options{})
		rec, _ := h.gw.CreateSession(ctx, domain.NewSession{Identity: alice, Score: 30, ChallengesCompleted: 3, Status: domain.StatusCompleted})

		res, err := h.ctrl.Resume(ctx, alice)
		if err != nil || res.Outcome != app.ResumeCompleted || res.Session.ID != rec.ID {
			t.Fatalf("expected completed, got %v %v", res.Outcome, err)
		}
		v := h.ctrl.View()
		if v.State != domain.StateResult || v.Score != 30 {
			t.Fatalf("expected result view, got %+v", v)
		}
		h.exec.RunAll()
		if h.gw.finalUpdates != 0 {
			t.Fatalf("completed session must not be finalized again")
		}
	})

	t.Run("expired", func(t *testing.T) {
		h := newHarness(t, nil, app.Options{})
		rec, _ := h.gw.CreateSession(ctx, domain.NewSession{Identity: alice, Score: 12, ChallengesCompleted: 2, Status: domain.StatusActive})
		h.clk.Advance(61 * time.Minute)

		res, err := h.ctrl.Resume(ctx, alice)
		if err != nil || res.Outcome != app.ResumeExpired {
			t.Fatalf("expected expired, got %v %v", res.Outcome, err)
		}
		if h.ctrl.State() != domain.StateResult {
			t.Fatalf("expected immediate finish")
		}
		h.exec.RunAll()
		got, _ := h.gw.Session(rec.ID)
		if got.Status != domain.StatusCompleted {
			t.Fatalf("expected persisted completion")
		}
		if entry, ok := h.gw.Entry(rec.ID); !ok || entry.Score != 12 {
			t.Fatalf("unexpected entry %+v", entry)
		}
	})

	t.Run("resumed outside fullscreen", func(t *testing.T) {
		h := newHarness(t, nil, app.Options{})
		h.platform.deny = true
		_, _ = h.gw.CreateSession(ctx, domain.NewSession{Identity: alice, Status: domain.StatusActive})

		res, err := h.ctrl.Resume(ctx, alice)
		if err != nil || res.Outcome != app.ResumeResumed {
			t.Fatalf("expected resumed, got %v %v", res.Outcome, err)
		}
		v := h.ctrl.View()
		if !v.Warning || v.GraceRemaining != 10 {
			t.Fatalf("expected fullscreen warning, got %+v", v)
		}
	})
}

func TestResumeLookupFailureStartsFresh(t *testing.T) {
	h := newHarness(t, nil, app.Options{})
	h.gw.findErr = domain.ErrPersistenceUnavailable

	if err := h.ctrl.Start(context.Background(), "Alice", "R1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if h.ctrl.State() != domain.StatePlaying {
		t.Fatalf("expected play to start")
	}
}

func TestFullscreenGracePeriod(t *testing.T) {
	h := newHarness(t, nil, app.Options{GracePeriod: 3 * time.Second})
	h.start("Alice", "R1")
	views, cancel := h.ctrl.Subscribe()
	defer cancel()

	h.ctrl.OnFullscreenChange(false)
	h.ctrl.Tick()
	h.ctrl.OnFullscreenChange(true)
	if h.ctrl.View().Warning {
		t.Fatalf("regaining fullscreen must clear the warning")
	}
	var kinds []domain.NoticeKind
	collect := func() {
		for _, v := range drain(views) {
			if v.Notice != nil {
				kinds = append(kinds, v.Notice.Kind)
			}
		}
	}
	collect()
	h.ctrl.Tick()
	h.ctrl.Tick()
	h.ctrl.Tick()
	if h.ctrl.State() != domain.StatePlaying {
		t.Fatalf("cancelled grace period must not abort")
	}

	h.ctrl.OnFullscreenChange(false)
	h.ctrl.OnFullscreenChange(false)
	h.ctrl.Tick()
	h.ctrl.Tick()
	h.ctrl.Tick()
	if h.ctrl.State() != domain.StateResult {
		t.Fatalf("expected abort after grace period")
	}

	collect()
	want := []domain.NoticeKind{domain.NoticeFullscreen, domain.NoticeFullscreen, domain.NoticeAborted}
	if len(kinds) != len(want) {
		t.Fatalf("expected notices %v, got %v", want, kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("expected notices %v, got %v", want, kinds)
		}
	}
}

func TestNavigateOnlyToUnlocked(t *testing.T) {
	h := newHarness(t, nil, app.Options{})
	h.start("Alice", "R1")
	mustDo(t, h.ctrl.Correct())
	mustDo(t, h.ctrl.Correct())

	if err := h.ctrl.Navigate(5); !errors.Is(err, domain.ErrChallengeLocked) {
		t.Fatalf("expected locked, got %v", err)
	}
	mustDo(t, h.ctrl.Wrong())
	mustDo(t, h.ctrl.Navigate(1))
	v := h.ctrl.View()
	if v.CurrentChallenge != 1 || v.Attempts != 0 {
		t.Fatalf("expected challenge 1 with attempts reset, got %+v", v)
	}
	if !v.Challenges[2].Unlocked || v.Challenges[3].Unlocked {
		t.Fatalf("unexpected sidebar %+v", v.Challenges)
	}

	// revisiting a solved challenge scores again but completed stays capped
	mustDo(t, h.ctrl.Correct())
	if s := h.ctrl.Session(); s.Completed() != 3 || s.Current() != 2 {
		t.Fatalf("expected 3 completed at 2, got %d at %d", s.Completed(), s.Current())
	}
}

func TestResyncCorrectsDrift(t *testing.T) {
	h := newHarness(t, nil, app.Options{})
	h.start("Alice", "R1")

	h.ctrl.Tick()
	h.clk.Advance(100 * time.Second)
	h.ctrl.Resync()
	if got := h.ctrl.View().Remaining; got != 3500 {
		t.Fatalf("expected 3500 after resync, got %d", got)
	}

	h.clk.Advance(time.Hour)
	h.ctrl.Resync()
	if h.ctrl.State() != domain.StateResult {
		t.Fatalf("expected finish when resync finds no time left")
	}
}

func TestEventsOutsidePlaying(t *testing.T) {
	h := newHarness(t, nil, app.Options{})
	if err := h.ctrl.Correct(); !errors.Is(err, domain.ErrNotPlaying) {
		t.Fatalf("expected not playing, got %v", err)
	}
	if err := h.ctrl.Navigate(1); !errors.Is(err, domain.ErrNotPlaying) {
		t.Fatalf("expected not playing, got %v", err)
	}
	h.start("Alice", "R1")
	if err := h.ctrl.Start(context.Background(), "Alice", "R1"); !errors.Is(err, domain.ErrNotInEntry) {
		t.Fatalf("expected not in entry, got %v", err)
	}
}

func TestLockedRound(t *testing.T) {
	h := newHarness(t, nil, app.Options{Locked: true})
	if err := h.ctrl.Start(context.Background(), "Alice", "R1"); !errors.Is(err, domain.ErrRoundLocked) {
		t.Fatalf("expected locked round, got %v", err)
	}
}

func TestPrincipalIsAttachedToIdentity(t *testing.T) {
	h := newHarness(t, nil, app.Options{}, func(d *app.Deps) {
		d.Principal = domain.Identity{UID: "uid-1", Email: "a@example.com"}
	})
	h.start("Alice", "R1")

	rec, _ := h.gw.Session(h.ctrl.Session().ID())
	if rec.Identity.UID != "uid-1" || rec.Identity.Email != "a@example.com" {
		t.Fatalf("expected principal on stored identity, got %+v", rec.Identity)
	}
}

func TestViewClock(t *testing.T) {
	cases := []struct {
		seconds int
		clock   string
		level   string
	}{
		{3600, "60:00", app.LevelNormal},
		{901, "15:01", app.LevelNormal},
		{900, "15:00", app.LevelWarning},
		{300, "05:00", app.LevelCritical},
		{0, "00:00", app.LevelCritical},
	}
	for _, tc := range cases {
		if got := app.FormatClock(tc.seconds); got != tc.clock {
			t.Fatalf("FormatClock(%d) = %s, want %s", tc.seconds, got, tc.clock)
		}
		if got := app.TimerLevel(tc.seconds); got != tc.level {
			t.Fatalf("TimerLevel(%d) = %s, want %s", tc.seconds, got, tc.level)
		}
	}
}

func TestClockOnlyShownWhilePlaying(t *testing.T) {
	h := newHarness(t, smallRound(t, 1), app.Options{})

	if v := h.ctrl.View(); v.Clock != "" || v.TimerLevel != "" {
		t.Fatalf("expected no clock on entry, got %q/%q", v.Clock, v.TimerLevel)
	}
	h.start("Alice", "R1")
	if v := h.ctrl.View(); v.Clock != "60:00" || v.TimerLevel != app.LevelNormal {
		t.Fatalf("expected running clock, got %q/%q", v.Clock, v.TimerLevel)
	}
	mustDo(t, h.ctrl.Correct())
	if v := h.ctrl.View(); v.State != domain.StateResult || v.Clock != "" || v.TimerLevel != "" {
		t.Fatalf("expected no clock on result, got %+v", v)
	}
}

func TestScoringSequence(t *testing.T) {
	type step struct {
		name      string
		do        func(*app.Controller) error
		score     int
		completed int
		current   int
	}
	wrong := func(c *app.Controller) error { return c.Wrong() }
	steps := []step{
		{"wrong", wrong, 0, 0, 1},
		{"wrong", wrong, 0, 0, 1},
		{"third wrong skips", wrong, 0, 1, 2},
		{"correct", func(c *app.Controller) error { return c.Correct() }, 10, 2, 3},
		{"skip", func(c *app.Controller) error { return c.Skip(context.Background()) }, 10, 3, 4},
	}

	h := newHarness(t, nil, app.Options{})
	h.start("Alice", "R1")
	for i, st := range steps {
		mustDo(t, st.do(h.ctrl))
		s := h.ctrl.Session()
		if s.Score() != st.score || s.Completed() != st.completed || s.Current() != st.current {
			t.Fatalf("step %d (%s): got %d/%d at %d, want %d/%d at %d",
				i, st.name, s.Score(), s.Completed(), s.Current(), st.score, st.completed, st.current)
		}
	}
}

type harness struct {
	ctrl       *app.Controller
	gw         *countingGateway
	exec       *manualExecutor
	clk        *clock.Manual
	platform   *fakePlatform
	allow      bool
	lastPrompt string
	t          *testing.T
}

func newHarness(t *testing.T, cat *catalog.Catalog, opts app.Options, mutate ...func(*app.Deps)) *harness {
	t.Helper()
	if cat == nil {
		var err error
		cat, err = catalog.New(catalog.DefaultRound())
		if err != nil {
			t.Fatalf("catalog: %v", err)
		}
	}
	clk := clock.NewManual(t0)
	h := &harness{
		gw:       &countingGateway{Gateway: memory.NewGatewayWithClock(clk.Now)},
		exec:     &manualExecutor{},
		clk:      clk,
		platform: &fakePlatform{},
		allow:    true,
		t:        t,
	}
	deps := app.Deps{
		Gateway:  h.gw,
		Catalog:  cat,
		Platform: h.platform,
		Confirm: app.ConfirmFunc(func(_ context.Context, prompt string) bool {
			h.lastPrompt = prompt
			return h.allow
		}),
		Rules:    scoring.DefaultRules(),
		Clock:    clk,
		Executor: h.exec,
	}
	for _, m := range mutate {
		m(&deps)
	}
	h.ctrl = app.NewController(deps, opts)
	return h
}

// start begins a session and lets its creation complete.
func (h *harness) start(name, rollNo string) {
	h.t.Helper()
	if err := h.ctrl.Start(context.Background(), name, rollNo); err != nil {
		h.t.Fatalf("start: %v", err)
	}
	h.exec.RunAll()
	if h.ctrl.Session().ID() == "" {
		h.t.Fatalf("expected session to be created")
	}
}

func smallRound(t *testing.T, n int) *catalog.Catalog {
	t.Helper()
	round := domain.Round{ID: "small"}
	for i := 1; i <= n; i++ {
		round.Challenges = append(round.Challenges, domain.Challenge{Number: i, Title: "C", Hint: "h"})
	}
	cat, err := catalog.New(round)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return cat
}

func mustDo(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func drain(ch <-chan domain.View) []domain.View {
	var out []domain.View
	for {
		select {
		case v := <-ch:
			out = append(out, v)
		default:
			return out
		}
	}
}

type manualExecutor struct {
	tasks []func(ctx context.Context)
}

func (e *manualExecutor) Submit(task func(ctx context.Context)) {
	e.tasks = append(e.tasks, task)
}

// RunAll runs queued tasks in order, including tasks they enqueue.
func (e *manualExecutor) RunAll() {
	for len(e.tasks) > 0 {
		task := e.tasks[0]
		e.tasks = e.tasks[1:]
		task(context.Background())
	}
}

type countingGateway struct {
	*memory.Gateway
	createErr    error
	findErr      error
	creates      int
	finds        int
	updates      int
	finalUpdates int
	entries      int
}

func (g *countingGateway) CreateSession(ctx context.Context, fields domain.NewSession) (domain.Session, error) {
	if g.createErr != nil {
		return domain.Session{}, g.createErr
	}
	g.creates++
	return g.Gateway.CreateSession(ctx, fields)
}

func (g *countingGateway) FindSession(ctx context.Context, identity domain.Identity) (domain.Session, error) {
	g.finds++
	if g.findErr != nil {
		return domain.Session{}, g.findErr
	}
	return g.Gateway.FindSession(ctx, identity)
}

func (g *countingGateway) UpdateSession(ctx context.Context, id string, update domain.SessionUpdate) error {
	g.updates++
	if update.MarkCompleted {
		g.finalUpdates++
	}
	return g.Gateway.UpdateSession(ctx, id, update)
}

func (g *countingGateway) WriteLeaderboardEntry(ctx context.Context, id string, entry domain.LeaderboardEntry) error {
	g.entries++
	return g.Gateway.WriteLeaderboardEntry(ctx, id, entry)
}

type fakePlatform struct {
	fullscreen bool
	deny       bool
}

func (p *fakePlatform) RequestFullscreen() error {
	if p.deny {
		return domain.ErrFullscreenDenied
	}
	p.fullscreen = true
	return nil
}

func (p *fakePlatform) ExitFullscreen() error {
	p.fullscreen = false
	return nil
}

func (p *fakePlatform) IsFullscreen() bool { return p.fullscreen }
