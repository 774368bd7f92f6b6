// SPDX-License-Identifier: MIT
package tui

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"vocalosc/internal/analysis"
	"vocalosc/internal/store"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// MonitorRefresh is the redraw interval of the live monitor.
const MonitorRefresh = 50 * time.Millisecond

// GainStep is the input gain change per key press, in dB.
const GainStep = 1.0

const (
	meterWidth   = 40
	historyWidth = 64
)

var (
	keyGainUp   = key.NewBinding(key.WithKeys("+", "="))
	keyGainDown = key.NewBinding(key.WithKeys("-", "_"))
	keyGate     = key.NewBinding(key.WithKeys("g"))

	labelStyle = lipgloss.NewStyle().Width(11).Foreground(lipgloss.Color("#7D7D7D"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#4A4A4A"))
)

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// Results is the read side of the result store used by the monitor.
type Results interface {
	Cycle() uint64
	LoudnessDb() float64
	FundamentalHz() float64
	Harmonics() analysis.HarmonicGains
	Formants() []float64
	PitchHistory(unit store.PitchUnit) []float64
}

// GainControl adjusts the analyzer input gain while it runs.
type GainControl interface {
	InputGainDb() float64
	SetInputGainDb(db float64)
}

// GateControl switches the capture noise gate.
type GateControl interface {
	Enabled() bool
	Enable()
	Disable()
	Threshold() float64
}

type tickMsg time.Time

// MonitorModel renders the latest analysis results as text.
type MonitorModel struct {
	results Results
	gain    GainControl
	gate    GateControl
	device  string
	width   int
}

// NewMonitorModel creates a monitor over results. gain and gate may be nil,
// in which case their keys do nothing.
func NewMonitorModel(results Results, gain GainControl, gate GateControl, device string) MonitorModel {
	return MonitorModel{results: results, gain: gain, gate: gate, device: device}
}

func tick() tea.Cmd {
	return tea.Tick(MonitorRefresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m MonitorModel) Init() tea.Cmd {
	return tick()
}

func (m MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		return m, tick()
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keyQuit):
			return m, tea.Quit
		case key.Matches(msg, keyGainUp):
			m.adjustGain(GainStep)
		case key.Matches(msg, keyGainDown):
			m.adjustGain(-GainStep)
		case key.Matches(msg, keyGate):
			m.toggleGate()
		}
	}
	return m, nil
}

func (m MonitorModel) adjustGain(delta float64) {
	if m.gain == nil {
		return
	}
	m.gain.SetInputGainDb(m.gain.InputGainDb() + delta)
}

func (m MonitorModel) toggleGate() {
	switch {
	case m.gate == nil:
	case m.gate.Enabled():
		m.gate.Disable()
	default:
		m.gate.Enable()
	}
}

func (m MonitorModel) View() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("vocalosc"))
	if m.device != "" {
		sb.WriteString(" " + infoStyle.Render(m.device))
	}
	sb.WriteString("\n\n")

	loudness := m.results.LoudnessDb()
	fmt.Fprintf(&sb, "%s%s %6.1f dB\n", labelStyle.Render("Loudness"), loudnessMeter(loudness, meterWidth), loudness)

	f0 := m.results.FundamentalHz()
	if f0 == store.Unvoiced {
		fmt.Fprintf(&sb, "%s%s\n", labelStyle.Render("Pitch"), dimStyle.Render("unvoiced"))
	} else {
		note := store.HzToMIDI(f0)
		fmt.Fprintf(&sb, "%s%s %7.1f Hz (%+.0f cents)\n",
			labelStyle.Render("Pitch"),
			highlightStyle.Render(fmt.Sprintf("%-4s", store.NoteName(note))),
			f0, 100*(note-math.Round(note)))
	}
	fmt.Fprintf(&sb, "%s%s\n", labelStyle.Render("History"), sparkline(m.results.PitchHistory(store.MIDINote), historyWidth))

	formants := m.results.Formants()
	fmt.Fprintf(&sb, "%s%s\n", labelStyle.Render("Formants"), formatFormants(formants))

	harmonics := m.results.Harmonics()
	fmt.Fprintf(&sb, "%s%s\n", labelStyle.Render("Harmonics"), harmonicBars(harmonics[:]))

	if m.gain != nil {
		fmt.Fprintf(&sb, "%s%+.0f dB\n", labelStyle.Render("Gain"), m.gain.InputGainDb())
	}
	if m.gate != nil {
		state := dimStyle.Render("off")
		if m.gate.Enabled() {
			state = highlightStyle.Render("on")
		}
		fmt.Fprintf(&sb, "%s%s (threshold %.3f)\n", labelStyle.Render("Gate"), state, m.gate.Threshold())
	}
	fmt.Fprintf(&sb, "%s%d\n\n", labelStyle.Render("Cycle"), m.results.Cycle())

	sb.WriteString(infoStyle.Render("+/-: Input Gain • g: Noise Gate • q: Quit"))
	return sb.String()
}

// loudnessMeter draws the loudness between the floor and 0 dB as a bar.
func loudnessMeter(db float64, width int) string {
	frac := (db - analysis.LoudnessFloorDb) / -analysis.LoudnessFloorDb
	filled := int(math.Round(clamp01(frac) * float64(width)))
	return highlightStyle.Render(strings.Repeat("█", filled)) + dimStyle.Render(strings.Repeat("░", width-filled))
}

// sparkline draws the newest width values scaled to their own range. NaN
// entries (unvoiced cycles) render as blanks.
func sparkline(values []float64, width int) string {
	if len(values) > width {
		values = values[len(values)-width:]
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	var sb strings.Builder
	for _, v := range values {
		switch {
		case math.IsNaN(v):
			sb.WriteRune(' ')
		case hi-lo < 1e-9:
			sb.WriteRune(sparkRunes[len(sparkRunes)/2])
		default:
			idx := int((v - lo) / (hi - lo) * float64(len(sparkRunes)-1))
			sb.WriteRune(sparkRunes[idx])
		}
	}
	return sb.String()
}

func formatFormants(formants []float64) string {
	if len(formants) == 0 {
		return dimStyle.Render("none")
	}
	parts := make([]string, 0, len(formants))
	for i, f := range formants {
		if i == 4 {
			break
		}
		parts = append(parts, fmt.Sprintf("F%d %4.0f", i+1, f))
	}
	return strings.Join(parts, "  ")
}

func harmonicBars(gains []float64) string {
	var sb strings.Builder
	for _, g := range gains {
		idx := int(math.Round(clamp01(g) * float64(len(sparkRunes)-1)))
		if g <= 0 {
			sb.WriteRune('·')
			continue
		}
		sb.WriteRune(sparkRunes[idx])
	}
	return sb.String()
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}

// RunMonitor shows the live monitor until the user quits or ctx is done.
func RunMonitor(ctx context.Context, results Results, gain GainControl, gate GateControl, device string) error {
	p := tea.NewProgram(
		NewMonitorModel(results, gain, gate, device),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	if ctx.Err() != nil && err != nil {
		// Cancellation of the surrounding session is a normal exit.
		return nil
	}
	return err
}
