// Package tui provides the Bubble Tea rehearsal client for a round. The alternate
// screen stands in for fullscreen: losing terminal focus counts as leaving it.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"escape-room-service/internal/app"
	"escape-room-service/internal/catalog"
	"escape-room-service/internal/domain"
	"escape-room-service/internal/scoring"
)

// Config wires the terminal client. Gateway and Catalog are required.
type Config struct {
	Gateway        app.Gateway
	Catalog        *catalog.Catalog
	Options        app.Options
	Rules          scoring.Rules
	Logger         *slog.Logger
	PersistTimeout time.Duration
	ResyncEvery    int
}

type tickMsg time.Time

// postMsg carries a persistence completion back onto the program loop.
type postMsg func()

type poster struct {
	send func(tea.Msg)
}

func (p *poster) post(fn func()) {
	if p.send == nil {
		fn()
		return
	}
	p.send(postMsg(fn))
}

// terminal maps fullscreen onto the alternate screen plus terminal focus. Requests
// queue Bubble Tea commands that the model returns from Update.
type terminal struct {
	alt     bool
	focused bool
	cmds    []tea.Cmd
}

func (t *terminal) RequestFullscreen() error {
	t.alt = true
	t.cmds = append(t.cmds, tea.EnterAltScreen)
	return nil
}

func (t *terminal) ExitFullscreen() error {
	t.alt = false
	t.cmds = append(t.cmds, tea.ExitAltScreen)
	return nil
}

func (t *terminal) IsFullscreen() bool { return t.alt && t.focused }

func (t *terminal) take() []tea.Cmd {
	cmds := t.cmds
	t.cmds = nil
	return cmds
}

// Model implements tea.Model around one controller.
type Model struct {
	ctx         context.Context
	ctrl        *app.Controller
	approval    *app.Approval
	platform    *terminal
	poster      *poster
	rules       scoring.Rules
	views       <-chan domain.View
	resyncEvery int
	ticks       int

	view    domain.View
	notice  *domain.Notice
	err     error
	pending string

	name  textinput.Model
	roll  textinput.Model
	focus int

	width  int
	height int
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#C89A3A"))
	normalStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	warningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FAAD14"))
	criticalStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF4D4F"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	activeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A"))
	hintStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	footerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
)

// NewModel builds a model whose controller persists through exec. A nil exec
// persists inline.
func NewModel(ctx context.Context, cfg Config, exec app.Executor) *Model {
	rules := cfg.Rules
	if rules == (scoring.Rules{}) {
		rules = scoring.DefaultRules()
	}
	platform := &terminal{focused: true}
	approval := app.NewApproval()
	p := &poster{}
	ctrl := app.NewController(app.Deps{
		Gateway:  cfg.Gateway,
		Catalog:  cfg.Catalog,
		Platform: platform,
		Confirm:  approval,
		Rules:    rules,
		Executor: exec,
		Logger:   cfg.Logger,
		Post:     p.post,
	}, cfg.Options)
	views, _ := ctrl.Subscribe()

	m := &Model{
		ctx:         ctx,
		ctrl:        ctrl,
		approval:    approval,
		platform:    platform,
		poster:      p,
		rules:       rules,
		views:       views,
		resyncEvery: cfg.ResyncEvery,
		name:        newInput("Name: ", "Your name"),
		roll:        newInput("Roll No: ", "Your roll number"),
	}
	m.name.Focus()
	m.drain()
	return m
}

func newInput(prompt, placeholder string) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt
	input.Placeholder = placeholder
	input.CharLimit = 64
	return input
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, tick())
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		m.ctrl.Tick()
		m.ticks++
		if m.resyncEvery > 0 && m.ticks%m.resyncEvery == 0 {
			m.ctrl.Resync()
		}
		cmds = append(cmds, tick())
	case postMsg:
		msg()
	case tea.BlurMsg:
		was := m.platform.IsFullscreen()
		m.platform.focused = false
		if was {
			m.ctrl.OnFullscreenChange(false)
		}
	case tea.FocusMsg:
		m.platform.focused = true
		if m.platform.IsFullscreen() {
			m.ctrl.OnFullscreenChange(true)
		}
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		m.notice = nil
		cmds = append(cmds, m.handleKey(msg))
	}

	m.drain()
	cmds = append(cmds, m.platform.take()...)
	return m, tea.Batch(cmds...)
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if m.pending != "" {
		m.resolve(msg.String())
		return nil
	}

	switch m.view.State {
	case domain.StateEntry:
		return m.handleEntryKey(msg)
	case domain.StatePlaying:
		m.handlePlayKey(msg.String())
	case domain.StateResult:
		if msg.String() == "q" {
			m.pending = "quit"
		}
	}
	return nil
}

func (m *Model) handleEntryKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyTab, tea.KeyShiftTab, tea.KeyUp, tea.KeyDown:
		m.toggleFocus()
		return nil
	case tea.KeyEnter:
		if m.focus == 0 {
			m.toggleFocus()
			return nil
		}
		m.err = m.ctrl.Start(m.ctx, m.name.Value(), m.roll.Value())
		return nil
	}

	var cmd tea.Cmd
	if m.focus == 0 {
		m.name, cmd = m.name.Update(msg)
	} else {
		m.roll, cmd = m.roll.Update(msg)
	}
	return cmd
}

func (m *Model) toggleFocus() {
	if m.focus == 0 {
		m.focus = 1
		m.name.Blur()
		m.roll.Focus()
		return
	}
	m.focus = 0
	m.roll.Blur()
	m.name.Focus()
}

func (m *Model) handlePlayKey(key string) {
	m.err = nil
	switch key {
	case "c":
		m.err = m.ctrl.Correct()
	case "w":
		m.err = m.ctrl.Wrong()
	case "h":
		if m.view.HintOpen {
			m.err = m.ctrl.CloseHint()
			return
		}
		m.pending = "hint"
	case "g":
		m.err = m.ctrl.CloseHint()
	case "s":
		m.pending = "skip"
	case "q":
		m.pending = "quit"
	case "f":
		// re-entering fullscreen is the participant's own gesture
		m.platform.alt = true
		m.platform.cmds = append(m.platform.cmds, tea.EnterAltScreen)
		if m.platform.IsFullscreen() {
			m.ctrl.OnFullscreenChange(true)
		}
	default:
		if len(key) == 1 && key[0] >= '1' && key[0] <= '9' {
			m.err = m.ctrl.Navigate(int(key[0] - '0'))
		}
	}
}

// resolve answers the pending confirmation with y or n.
func (m *Model) resolve(key string) {
	action := m.pending
	switch strings.ToLower(key) {
	case "y":
		m.approval.Arm(true)
	case "n", "esc":
		m.pending = ""
		return
	default:
		return
	}
	m.pending = ""

	switch action {
	case "hint":
		m.err = m.ctrl.Hint(m.ctx)
	case "skip":
		m.err = m.ctrl.Skip(m.ctx)
	case "quit":
		m.err = m.ctrl.Quit(m.ctx)
		if m.err == nil {
			m.name.SetValue("")
			m.roll.SetValue("")
			m.focus = 1
			m.toggleFocus()
		}
	}
}

// drain keeps the newest view and any notice raised since the last update.
func (m *Model) drain() {
	for {
		select {
		case v := <-m.views:
			m.view = v
			if v.Notice != nil {
				m.notice = v.Notice
			}
		default:
			return
		}
	}
}

func (m *Model) prompt() string {
	switch m.pending {
	case "hint":
		return app.HintPrompt(m.rules.HintCost)
	case "skip":
		return app.PromptSkip
	case "quit":
		return app.PromptQuit
	}
	return ""
}

// View implements tea.Model.
func (m *Model) View() string {
	var body string
	switch m.view.State {
	case domain.StatePlaying:
		body = m.renderPlaying()
	case domain.StateResult:
		body = m.renderResult()
	default:
		body = m.renderEntry()
	}

	var footer []string
	if m.notice != nil {
		footer = append(footer, criticalStyle.Render(m.notice.Message))
	}
	if m.err != nil {
		footer = append(footer, criticalStyle.Render(m.err.Error()))
	}
	if p := m.prompt(); p != "" {
		footer = append(footer, warningStyle.Render(p+" [y/n]"))
	}
	if len(footer) > 0 {
		body += "\n\n" + strings.Join(footer, "\n")
	}

	if m.width == 0 || m.height == 0 {
		return body
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, body)
}

func (m *Model) renderEntry() string {
	lines := []string{
		titleStyle.Render("Escape Room"),
		"",
		m.name.View(),
		m.roll.View(),
		"",
		footerStyle.Render("tab switch field · enter start · ctrl+c exit"),
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderPlaying() string {
	v := m.view
	header := fmt.Sprintf("%s  %s  Score %d  Solved %d/%d",
		titleStyle.Render(v.Identity.Name),
		clockStyle(v.TimerLevel).Render(v.Clock),
		v.Score, v.ChallengesCompleted, v.TotalChallenges)

	var sidebar []string
	for _, link := range v.Challenges {
		label := fmt.Sprintf("%d. %s", link.Number, link.Title)
		switch {
		case link.Active:
			sidebar = append(sidebar, activeStyle.Render("> "+label))
		case link.Unlocked:
			sidebar = append(sidebar, normalStyle.Render("  "+label))
		default:
			sidebar = append(sidebar, mutedStyle.Render("  "+label))
		}
	}

	c := v.Challenge
	content := []string{
		titleStyle.Render(fmt.Sprintf("Challenge %d: %s", c.Number, c.Title)),
		c.Story,
	}
	for _, rule := range c.Rules {
		content = append(content, "• "+rule)
	}
	if v.Attempts > 0 {
		content = append(content, warningStyle.Render(fmt.Sprintf("Wrong attempts: %d", v.Attempts)))
	}
	if v.HintOpen {
		content = append(content, hintStyle.Render(v.Hint))
	}
	if v.Warning {
		content = append(content, criticalStyle.Render(
			fmt.Sprintf("Return to fullscreen within %d seconds (press f).", v.GraceRemaining)))
	}

	main := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().MarginRight(4).Render(strings.Join(sidebar, "\n")),
		lipgloss.NewStyle().Width(60).Render(strings.Join(content, "\n")),
	)
	keys := footerStyle.Render("c correct · w wrong · h hint · g got it · s skip · 1-9 jump · q quit")
	return strings.Join([]string{header, "", main, "", keys}, "\n")
}

func (m *Model) renderResult() string {
	v := m.view
	lines := []string{
		titleStyle.Render("Round complete"),
		"",
		fmt.Sprintf("Score: %d", v.Score),
		fmt.Sprintf("Challenges completed: %d/%d", v.ChallengesCompleted, v.TotalChallenges),
		"",
		footerStyle.Render("q back · ctrl+c exit"),
	}
	return strings.Join(lines, "\n")
}

func clockStyle(level string) lipgloss.Style {
	switch level {
	case app.LevelCritical:
		return criticalStyle
	case app.LevelWarning:
		return warningStyle
	default:
		return normalStyle
	}
}

// Run starts the program and blocks until the participant exits. Pending writes are
// flushed before it returns.
func Run(ctx context.Context, cfg Config, opts ...tea.ProgramOption) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := app.NewPersistQueue(cfg.PersistTimeout, cfg.Logger)
	go queue.Run(ctx)

	m := NewModel(ctx, cfg, queue)
	opts = append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithReportFocus()}, opts...)
	program := tea.NewProgram(m, opts...)
	m.poster.send = program.Send

	_, err := program.Run()
	cancel()
	<-queue.Done()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run terminal client: %w", err)
	}
	return nil
}
