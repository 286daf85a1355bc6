package app

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"escape-room-service/internal/catalog"
	"escape-room-service/internal/clock"
	"escape-room-service/internal/domain"
	"escape-room-service/internal/scoring"
)

// Options are the round-level settings of a controller.
type Options struct {
	Duration    time.Duration // default: 60 minutes
	GracePeriod time.Duration // default: 10 seconds
	Locked      bool
}

// Deps are the collaborators of a controller. Gateway and Catalog are required.
type Deps struct {
	Gateway  Gateway
	Catalog  *catalog.Catalog
	Platform Platform
	Confirm  Confirmer
	Rules    scoring.Rules
	Clock    clock.Clock
	Executor Executor
	Logger   *slog.Logger
	// Post re-enters the host loop with fn. Defaults to calling fn directly.
	Post func(fn func())
	// Principal is the authenticated identity behind the connection, if any.
	Principal domain.Identity
}

// Controller owns the entry → playing → result state machine of one participant.
// It is not safe for concurrent use: a single host loop calls every method. Only the
// cancel func returned by Subscribe may be called from another goroutine.
type Controller struct {
	gateway   Gateway
	catalog   *catalog.Catalog
	platform  Platform
	confirm   Confirmer
	rules     scoring.Rules
	clock     clock.Clock
	executor  Executor
	logger    *slog.Logger
	post      func(fn func())
	opts      Options
	principal domain.Identity

	state     domain.GameState
	session   *SessionStore
	countdown CountdownTimer
	monitor   *FullscreenMonitor
	attempts  int
	hintOpen  bool
	notice    *domain.Notice

	// epoch changes whenever local session state is replaced, so late persistence
	// completions for an abandoned session are ignored.
	epoch           uint64
	finalized       bool
	remoteFinalized bool
	final           Snapshot

	mu          sync.Mutex
	subscribers map[chan domain.View]struct{}
}

func NewController(deps Deps, opts Options) *Controller {
	if opts.Duration <= 0 {
		opts.Duration = 60 * time.Minute
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = 10 * time.Second
	}
	if deps.Rules == (scoring.Rules{}) {
		deps.Rules = scoring.DefaultRules()
	}
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}
	if deps.Platform == nil {
		deps.Platform = headless{}
	}
	if deps.Confirm == nil {
		deps.Confirm = NewApproval()
	}
	if deps.Executor == nil {
		deps.Executor = ExecutorFunc(func(task func(ctx context.Context)) { task(context.Background()) })
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Post == nil {
		deps.Post = func(fn func()) { fn() }
	}

	return &Controller{
		gateway:     deps.Gateway,
		catalog:     deps.Catalog,
		platform:    deps.Platform,
		confirm:     deps.Confirm,
		rules:       deps.Rules,
		clock:       deps.Clock,
		executor:    deps.Executor,
		logger:      deps.Logger,
		post:        deps.Post,
		opts:        opts,
		principal:   deps.Principal.Normalized(),
		state:       domain.StateEntry,
		session:     NewSessionStore(deps.Catalog.Total()),
		monitor:     NewFullscreenMonitor(int(opts.GracePeriod / time.Second)),
		subscribers: make(map[chan domain.View]struct{}),
	}
}

// State returns the current finite state.
func (c *Controller) State() domain.GameState { return c.state }

// Session exposes the local session for read-only inspection.
func (c *Controller) Session() *SessionStore { return c.session }

// Attempts returns the wrong-answer count on the current challenge.
func (c *Controller) Attempts() int { return c.attempts }

// Start validates the identity, resumes an existing session for it if there is one,
// and otherwise begins a fresh session without waiting for the store.
func (c *Controller) Start(ctx context.Context, name, rollNo string) error {
	if c.state != domain.StateEntry {
		return domain.ErrNotInEntry
	}
	name = strings.TrimSpace(name)
	rollNo = strings.TrimSpace(rollNo)
	if name == "" {
		return &domain.ValidationError{Field: "name", Message: "name is required"}
	}
	if rollNo == "" {
		return &domain.ValidationError{Field: "rollNo", Message: "roll number is required"}
	}
	if c.opts.Locked {
		return domain.ErrRoundLocked
	}

	identity := domain.Identity{Name: name, RollNo: rollNo, UID: c.principal.UID, Email: c.principal.Email}

	res, err := c.Resume(ctx, identity)
	if err != nil {
		c.logger.Warn("session lookup failed, starting fresh", "error", err)
	} else if res.Outcome != ResumeNotFound {
		return nil
	}

	c.begin(identity)
	return nil
}

func (c *Controller) begin(identity domain.Identity) {
	c.epoch++
	epoch := c.epoch

	if err := c.platform.RequestFullscreen(); err != nil {
		c.logger.Warn("fullscreen request failed", "error", err, "kind", domain.ErrFullscreenDenied)
	}

	c.session.Begin(identity, c.clock.Now())
	c.resetPlay()
	c.state = domain.StatePlaying
	c.countdown.Start(int(c.opts.Duration / time.Second))

	fields := domain.NewSession{
		Identity: identity,
		Status:   domain.StatusActive,
	}
	c.executor.Submit(func(ctx context.Context) {
		rec, err := c.gateway.CreateSession(ctx, fields)
		c.post(func() { c.sessionCreated(epoch, rec, err) })
	})
	c.publish()
}

func (c *Controller) sessionCreated(epoch uint64, rec domain.Session, err error) {
	if epoch != c.epoch {
		c.logger.Info("discarding session created for an abandoned attempt", "id", rec.ID)
		return
	}
	if err != nil {
		c.logger.Error("create session failed, continuing without persistence", "error", err)
		c.raise(domain.NoticeUnsaved, "Error initializing game session. Progress might not be saved!")
		c.publish()
		return
	}

	c.session.Created(rec)
	c.logger.Info("session created", "id", rec.ID)

	switch {
	case c.finalized && !c.remoteFinalized:
		c.finalizeRemote(c.final)
	case c.session.Snapshot() != (Snapshot{}):
		c.persist()
	}
	c.publish()
}

// Correct records a solved challenge and advances.
func (c *Controller) Correct() error {
	if c.state != domain.StatePlaying {
		return domain.ErrNotPlaying
	}
	c.session.Apply(c.rules.OnCorrect(c.session.Score(), c.session.Completed()))
	c.persist()
	c.advance()
	c.publish()
	return nil
}

// Wrong charges a wrong answer and auto-skips once the attempt limit is reached on a
// non-exempt challenge.
func (c *Controller) Wrong() error {
	if c.state != domain.StatePlaying {
		return domain.ErrNotPlaying
	}
	c.session.Apply(c.rules.OnWrong(c.session.Score()), c.session.Completed())
	c.persist()
	c.attempts++

	if c.rules.AutoSkip(c.attempts, c.catalog.Exempt(c.session.Current())) {
		c.logger.Info("attempt limit reached, skipping", "challenge", c.session.Current())
		c.session.Apply(c.rules.OnAutoSkip(c.session.Score(), c.session.Completed()))
		c.persist()
		c.advance()
	}
	c.publish()
	return nil
}

// Hint reveals the current hint after confirmation. While the hint is open a second
// request closes it without charging again.
func (c *Controller) Hint(ctx context.Context) error {
	if c.state != domain.StatePlaying {
		return domain.ErrNotPlaying
	}
	if c.hintOpen {
		c.hintOpen = false
		c.publish()
		return nil
	}
	if !c.confirm.Confirm(ctx, HintPrompt(c.rules.HintCost)) {
		return nil
	}
	c.session.Apply(c.rules.OnHint(c.session.Score()), c.session.Completed())
	c.persist()
	c.hintOpen = true
	c.publish()
	return nil
}

// CloseHint dismisses the hint without any cost.
func (c *Controller) CloseHint() error {
	if c.state != domain.StatePlaying {
		return domain.ErrNotPlaying
	}
	if c.hintOpen {
		c.hintOpen = false
		c.publish()
	}
	return nil
}

// Skip advances without points after confirmation.
func (c *Controller) Skip(ctx context.Context) error {
	if c.state != domain.StatePlaying {
		return domain.ErrNotPlaying
	}
	if !c.confirm.Confirm(ctx, PromptSkip) {
		return nil
	}
	c.session.Apply(c.rules.OnSkip(c.session.Score(), c.session.Completed()))
	c.persist()
	c.advance()
	c.publish()
	return nil
}

// Quit discards the local session after confirmation and returns to entry.
// The persisted session stays active and can be resumed.
func (c *Controller) Quit(ctx context.Context) error {
	if c.state == domain.StateEntry {
		return domain.ErrNotPlaying
	}
	if !c.confirm.Confirm(ctx, PromptQuit) {
		return nil
	}
	c.cancelTimers()
	c.exitFullscreen()

	c.epoch++
	c.session.Reset()
	c.resetPlay()
	c.finalized = false
	c.remoteFinalized = false
	c.final = Snapshot{}
	c.state = domain.StateEntry
	c.publish()
	return nil
}

// Navigate jumps to an unlocked challenge from the sidebar.
func (c *Controller) Navigate(number int) error {
	if c.state != domain.StatePlaying {
		return domain.ErrNotPlaying
	}
	if number == c.session.Current() {
		return nil
	}
	if err := c.session.NavigateTo(number); err != nil {
		return err
	}
	c.attempts = 0
	c.hintOpen = false
	c.publish()
	return nil
}

// Tick advances the countdown and the grace countdown by one second.
func (c *Controller) Tick() {
	if c.state != domain.StatePlaying {
		return
	}
	expired := c.countdown.Tick()
	aborted := c.monitor.Tick()

	switch {
	case expired:
		c.logger.Info("time is up", "id", c.session.ID())
		c.finish(c.session.Snapshot())
	case aborted:
		c.logger.Info("fullscreen grace period expired", "id", c.session.ID())
		c.raise(domain.NoticeAborted, "You failed to return to fullscreen. Mission Aborted.")
		c.finish(c.session.Snapshot())
	}
	c.publish()
}

// Resync corrects the countdown against the session's start timestamp.
func (c *Controller) Resync() {
	if c.state != domain.StatePlaying {
		return
	}
	remaining := c.session.Remaining(c.opts.Duration, c.clock.Now())
	if remaining == c.countdown.Remaining() {
		return
	}
	c.countdown.Set(remaining)
	if remaining == 0 {
		c.finish(c.session.Snapshot())
	}
	c.publish()
}

// OnFullscreenChange reports a change in fullscreen engagement from the platform.
func (c *Controller) OnFullscreenChange(active bool) {
	if c.state != domain.StatePlaying {
		return
	}
	if active {
		if !c.monitor.Regained() {
			return
		}
	} else {
		if !c.monitor.Lost() {
			return
		}
		c.raise(domain.NoticeFullscreen, "You have left fullscreen mode!")
	}
	c.publish()
}

func (c *Controller) advance() {
	c.attempts = 0
	c.hintOpen = false
	if !c.session.Advance() {
		c.finish(c.session.Snapshot())
	}
}

// persist submits the current snapshot. Without an id the session is local-only.
func (c *Controller) persist() {
	id := c.session.ID()
	if id == "" {
		return
	}
	snap := c.session.Snapshot()
	c.executor.Submit(func(ctx context.Context) {
		err := c.gateway.UpdateSession(ctx, id, domain.SessionUpdate{
			Score:               &snap.Score,
			ChallengesCompleted: &snap.ChallengesCompleted,
		})
		if err != nil {
			c.logger.Error("update session failed", "id", id, "error", err)
		}
	})
}

func (c *Controller) resetPlay() {
	c.attempts = 0
	c.hintOpen = false
	c.countdown.Stop()
	c.monitor.Cancel()
}

func (c *Controller) cancelTimers() {
	c.countdown.Stop()
	c.monitor.Cancel()
}

func (c *Controller) exitFullscreen() {
	if !c.platform.IsFullscreen() {
		return
	}
	if err := c.platform.ExitFullscreen(); err != nil {
		c.logger.Warn("exit fullscreen failed", "error", err)
	}
}

func (c *Controller) raise(kind domain.NoticeKind, message string) {
	c.notice = &domain.Notice{Kind: kind, Message: message}
}

type headless struct{}

func (headless) RequestFullscreen() error { return nil }
func (headless) ExitFullscreen() error    { return nil }
func (headless) IsFullscreen() bool       { return true }
