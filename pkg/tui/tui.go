// Package tui provides a terminal user interface for groovectl
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/james-see/groovectl/pkg/tempo"
)

// Acid-inspired color scheme (303/acid aesthetic)
var (
	acidGreen  = lipgloss.Color("#39FF14")
	acidYellow = lipgloss.Color("#FFFF00")
	silverGray = lipgloss.Color("#C0C0C0")
	darkGray   = lipgloss.Color("#333333")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(acidGreen).
			Background(darkGray).
			Padding(0, 2).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(silverGray).
			Width(8)

	valueStyle = lipgloss.NewStyle().
			Foreground(acidGreen).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	statusStyle = lipgloss.NewStyle().
			Foreground(acidYellow).
			PaddingTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(acidGreen).
			Padding(1, 2)
)

// Width of the tempo and swing meters in cells
const meterWidth = 28

type keyMap struct {
	TempoUp   key.Binding
	TempoDown key.Binding
	FastUp    key.Binding
	FastDown  key.Binding
	SwingUp   key.Binding
	SwingDown key.Binding
	Tap       key.Binding
	ResetTaps key.Binding
	Groove    key.Binding
	MPC       key.Binding
	Quit      key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.TempoUp, k.TempoDown, k.SwingUp, k.SwingDown, k.Tap, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.TempoUp, k.TempoDown, k.FastUp, k.FastDown},
		{k.SwingUp, k.SwingDown, k.Groove, k.MPC},
		{k.Tap, k.ResetTaps, k.Quit},
	}
}

var keys = keyMap{
	TempoUp:   key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "+1 bpm")),
	TempoDown: key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "-1 bpm")),
	FastUp:    key.NewBinding(key.WithKeys("pgup", "K"), key.WithHelp("pgup", "+10 bpm")),
	FastDown:  key.NewBinding(key.WithKeys("pgdown", "J"), key.WithHelp("pgdn", "-10 bpm")),
	SwingUp:   key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "+1% swing")),
	SwingDown: key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "-1% swing")),
	Tap:       key.NewBinding(key.WithKeys(" ", "t"), key.WithHelp("space/t", "tap")),
	ResetTaps: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reset taps")),
	Groove:    key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "groove preset")),
	MPC:       key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "mpc preset")),
	Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// Model represents the TUI model
type Model struct {
	ctrl        *tempo.Controller
	events      <-chan tempo.Event
	unsubscribe func()
	now         func() time.Time

	keys    keyMap
	help    help.Model
	spinner spinner.Model

	state     tempo.State
	lastTap   float64
	message   string
	isError   bool
	grooveIdx int
	mpcIdx    int
	width     int
}

// stateMsg carries a controller change into the update loop
type stateMsg struct {
	state tempo.State
}

// eventsClosedMsg signals the controller subscription ended
type eventsClosedMsg struct{}

// New creates a TUI model bound to ctrl
func New(ctrl *tempo.Controller) Model {
	events, unsubscribe := ctrl.Subscribe(64)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(acidGreen)

	return Model{
		ctrl:        ctrl,
		events:      events,
		unsubscribe: unsubscribe,
		now:         time.Now,
		keys:        keys,
		help:        help.New(),
		spinner:     s,
		state:       ctrl.State(),
		grooveIdx:   -1,
		mpcIdx:      -1,
	}
}

// Init initializes the TUI model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

func waitForEvent(events <-chan tempo.Event) tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return stateMsg{state: evt.State}
	}
}

// Update handles TUI updates
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.updateKeys(msg)

	case stateMsg:
		m.state = msg.state
		return m, waitForEvent(m.events)

	case eventsClosedMsg:
		m.state = m.ctrl.State()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.message, m.isError = "", false

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.TempoUp):
		m.nudgeTempo(1)
	case key.Matches(msg, m.keys.TempoDown):
		m.nudgeTempo(-1)
	case key.Matches(msg, m.keys.FastUp):
		m.nudgeTempo(10)
	case key.Matches(msg, m.keys.FastDown):
		m.nudgeTempo(-10)
	case key.Matches(msg, m.keys.SwingUp):
		m.nudgeSwing(1)
	case key.Matches(msg, m.keys.SwingDown):
		m.nudgeSwing(-1)
	case key.Matches(msg, m.keys.Tap):
		if bpm, ok := m.ctrl.TapTempo(m.now()); ok {
			m.lastTap = bpm
			m.ctrl.SetTempo(bpm, true)
			m.message = fmt.Sprintf("tap tempo %.1f BPM", bpm)
		} else {
			m.message = "keep tapping..."
		}
	case key.Matches(msg, m.keys.ResetTaps):
		m.ctrl.ResetTapTempo()
		m.lastTap = 0
		m.message = "taps cleared"
	case key.Matches(msg, m.keys.Groove):
		presets := tempo.GroovePresets()
		m.grooveIdx = (m.grooveIdx + 1) % len(presets)
		m.ctrl.ApplyGroovePreset(presets[m.grooveIdx].Name)
		m.message = "groove: " + presets[m.grooveIdx].Name
	case key.Matches(msg, m.keys.MPC):
		presets := tempo.MPCSwingPresets()
		m.mpcIdx = (m.mpcIdx + 1) % len(presets)
		m.ctrl.ApplyMPCSwingPreset(presets[m.mpcIdx].Name)
		m.message = "mpc swing: " + presets[m.mpcIdx].Name
	default:
		return m, nil
	}

	m.state = m.ctrl.State()
	return m, nil
}

// nudgeTempo moves the target, so repeated presses during a glide accumulate
func (m *Model) nudgeTempo(delta float64) {
	requested := m.ctrl.NudgeTempo(delta, true)
	if err := tempo.TempoValidationError(requested); err != nil {
		m.message, m.isError = err.Error(), true
	}
}

func (m *Model) nudgeSwing(delta int) {
	next := m.ctrl.SwingPercentage() + delta
	if next < tempo.MinSwingPercent || next > tempo.MaxSwingPercent {
		m.message = fmt.Sprintf("swing must stay within %d%%-%d%%", tempo.MinSwingPercent, tempo.MaxSwingPercent)
		m.isError = true
	}
	m.ctrl.SetSwingPercentage(next)
}

// View renders the TUI
func (m Model) View() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" GROOVECTL "))
	s.WriteString("\n\n")

	tempoLine := valueStyle.Render(fmt.Sprintf("%6.1f BPM", m.state.Tempo))
	if m.state.Transitioning {
		tempoLine += fmt.Sprintf(" %s → %.1f", m.spinner.View(), m.state.Target)
	}
	s.WriteString(labelStyle.Render("Tempo") + tempoLine + "\n")
	s.WriteString(labelStyle.Render("") + meter(m.state.Tempo, tempo.MinTempo, tempo.MaxTempo) + "\n\n")

	s.WriteString(labelStyle.Render("Swing") +
		valueStyle.Render(fmt.Sprintf("%4.2f", m.state.Swing)) +
		dimStyle.Render(fmt.Sprintf("  (MPC %d%%)", m.state.SwingPercentage())) + "\n")
	s.WriteString(labelStyle.Render("") + meter(m.state.Swing, tempo.MinSwing, tempo.MaxSwing) + "\n")

	if m.lastTap > 0 {
		s.WriteString("\n" + labelStyle.Render("Tap") + dimStyle.Render(fmt.Sprintf("%.1f BPM", m.lastTap)) + "\n")
	}

	if m.message != "" {
		if m.isError {
			s.WriteString("\n" + errorStyle.Render(m.message))
		} else {
			s.WriteString(statusStyle.Render(m.message))
		}
	}

	return boxStyle.Render(s.String()) + "\n" + m.help.View(m.keys)
}

func meter(v, lo, hi float64) string {
	filled := int((v - lo) / (hi - lo) * meterWidth)
	if filled < 0 {
		filled = 0
	}
	if filled > meterWidth {
		filled = meterWidth
	}
	return valueStyle.Render(strings.Repeat("█", filled)) + dimStyle.Render(strings.Repeat("░", meterWidth-filled))
}

// Run starts the TUI application
func Run(ctrl *tempo.Controller) error {
	m := New(ctrl)
	defer m.unsubscribe()

	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
