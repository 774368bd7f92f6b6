// SPDX-License-Identifier: MIT
package tui

import (
	"errors"
	"math"
	"testing"
	"time"
	"unicode/utf8"

	"vocalosc/internal/analysis"
	"vocalosc/internal/audio"
	"vocalosc/internal/store"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDevices = []audio.Device{
	{ID: 0, Name: "USB Mic", HostAPI: "ALSA", MaxInputChannels: 1, DefaultSampleRate: 22050},
	{ID: 3, Name: "Built-in", HostAPI: "Core Audio", MaxInputChannels: 2, DefaultSampleRate: 48000, IsDefaultInput: true},
}

func keyPress(t tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: t}
}

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

// drive feeds msgs through Update and returns the final model and command.
func drive(t *testing.T, m tea.Model, msgs ...tea.Msg) (tea.Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, msg := range msgs {
		m, cmd = m.Update(msg)
	}
	return m, cmd
}

func loadedPicker(t *testing.T) DeviceListModel {
	t.Helper()
	m := NewDeviceListModel(func() ([]audio.Device, error) { return testDevices, nil })
	msg := m.Init()()
	require.IsType(t, devicesMsg{}, msg)

	model, _ := drive(t, m, tea.WindowSizeMsg{Width: 100, Height: 30}, msg)
	return model.(DeviceListModel)
}

func TestPickerStartsOnDefaultInput(t *testing.T) {
	m := loadedPicker(t)
	assert.Equal(t, 1, m.selectedIndex)
	assert.Contains(t, m.View(), "Input Devices")
	assert.Contains(t, m.View(), "[default]")

	_, ok := m.Selection()
	assert.False(t, ok)
}

func TestPickerSelectsDeviceAndRate(t *testing.T) {
	m := loadedPicker(t)

	model, _ := drive(t, m, keyPress(tea.KeyEnter))
	m = model.(DeviceListModel)
	require.Equal(t, ConfigScreen, m.activeScreen)
	assert.Equal(t, 48000.0, m.selectedSampleRate)
	assert.Contains(t, m.View(), "Configure Device: Built-in")

	model, cmd := drive(t, m, keyPress(tea.KeyDown), keyPress(tea.KeyEnter))
	m = model.(DeviceListModel)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	sel, ok := m.Selection()
	require.True(t, ok)
	assert.Equal(t, Selection{DeviceID: 3, DeviceName: "Built-in", SampleRate: 88200}, sel)
}

func TestPickerOffersDeviceDefaultRate(t *testing.T) {
	m := loadedPicker(t)

	model, _ := drive(t, m, keyPress(tea.KeyUp), keyPress(tea.KeyEnter))
	m = model.(DeviceListModel)
	assert.Equal(t, []float64{22050, 44100, 48000, 88200, 96000}, m.availableSampleRates)
	assert.Equal(t, 0, m.sampleRateIndex)
	assert.Equal(t, 22050.0, m.selectedSampleRate)

	model, _ = drive(t, m, keyPress(tea.KeyEsc))
	m = model.(DeviceListModel)
	assert.Equal(t, ListScreen, m.activeScreen)
	assert.Equal(t, 0, m.selectedIndex)
}

func TestPickerNavigationBounds(t *testing.T) {
	m := loadedPicker(t)
	model, _ := drive(t, m, keyPress(tea.KeyDown), keyPress(tea.KeyDown))
	assert.Equal(t, 1, model.(DeviceListModel).selectedIndex)

	model, _ = drive(t, model, keyPress(tea.KeyUp), keyPress(tea.KeyUp), keyPress(tea.KeyUp))
	assert.Equal(t, 0, model.(DeviceListModel).selectedIndex)
}

func TestPickerQuitWithoutSelection(t *testing.T) {
	m := loadedPicker(t)
	model, cmd := drive(t, m, runeKey('q'))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	_, ok := model.(DeviceListModel).Selection()
	assert.False(t, ok)
}

func TestPickerFetchError(t *testing.T) {
	m := NewDeviceListModel(func() ([]audio.Device, error) { return nil, errors.New("no host") })
	model, _ := drive(t, m, m.Init()())
	assert.Contains(t, model.View(), "no host")

	_, cmd := drive(t, model, keyPress(tea.KeyEnter))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestPickerNoDevices(t *testing.T) {
	m := NewDeviceListModel(func() ([]audio.Device, error) { return nil, nil })
	model, _ := drive(t, m, tea.WindowSizeMsg{Width: 80, Height: 20}, m.Init()(), keyPress(tea.KeyEnter))
	assert.Equal(t, ListScreen, model.(DeviceListModel).activeScreen)
	assert.Contains(t, model.View(), "No input devices found.")
}

type fakeGain struct{ db float64 }

func (g *fakeGain) InputGainDb() float64      { return g.db }
func (g *fakeGain) SetInputGainDb(db float64) { g.db = db }

func TestMonitorRendersResults(t *testing.T) {
	results := store.New(16)
	snap := &analysis.FeatureSnapshot{
		Cycle:         7,
		LoudnessDb:    -20,
		FundamentalHz: 440,
		Formants:      []float64{700, 1200},
	}
	snap.Harmonics[0] = 1
	results.Publish(snap)

	m := NewMonitorModel(results, &fakeGain{db: 3}, nil, "Built-in")
	view := m.View()
	assert.Contains(t, view, "Built-in")
	assert.Contains(t, view, "A4")
	assert.Contains(t, view, "440.0 Hz")
	assert.Contains(t, view, "F1  700")
	assert.Contains(t, view, "F2 1200")
	assert.Contains(t, view, "+3 dB")
	assert.Contains(t, view, "-20.0 dB")
}

func TestMonitorUnvoiced(t *testing.T) {
	m := NewMonitorModel(store.New(4), nil, nil, "")
	view := m.View()
	assert.Contains(t, view, "unvoiced")
	assert.Contains(t, view, "none")
	assert.NotContains(t, view, "+0 dB")
}

func TestMonitorGainKeys(t *testing.T) {
	gain := &fakeGain{}
	m := NewMonitorModel(store.New(4), gain, nil, "")

	_, cmd := drive(t, m, runeKey('+'), runeKey('+'), runeKey('='), runeKey('-'))
	assert.Nil(t, cmd)
	assert.Equal(t, 2*GainStep, gain.db)

	_, cmd = drive(t, m, runeKey('q'))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestMonitorGateKey(t *testing.T) {
	gate := audio.NewGate(0.02)
	m := NewMonitorModel(store.New(4), nil, gate, "")
	assert.Contains(t, m.View(), "on (threshold 0.020)")

	_, cmd := drive(t, m, runeKey('g'))
	assert.Nil(t, cmd)
	assert.False(t, gate.Enabled())
	assert.Contains(t, m.View(), "off (threshold 0.020)")

	chunk := []float32{0.001, -0.001}
	assert.False(t, gate.Apply(chunk))

	drive(t, m, runeKey('g'))
	assert.True(t, gate.Enabled())
	assert.True(t, gate.Apply(chunk))
	assert.Equal(t, []float32{0, 0}, chunk)
}

func TestMonitorWithoutGate(t *testing.T) {
	m := NewMonitorModel(store.New(4), nil, nil, "")
	_, cmd := drive(t, m, runeKey('g'))
	assert.Nil(t, cmd)
	assert.NotContains(t, m.View(), "threshold")
}

func TestMonitorTickReschedules(t *testing.T) {
	m := NewMonitorModel(store.New(4), nil, nil, "")
	_, cmd := m.Update(tickMsg(time.Now()))
	assert.NotNil(t, cmd)
}

func TestSparkline(t *testing.T) {
	assert.Equal(t, " ▁█", sparkline([]float64{math.NaN(), 60, 72}, 8))
	assert.Equal(t, "▅▅", sparkline([]float64{69, 69}, 8))
	assert.Empty(t, sparkline(nil, 8))

	long := make([]float64, 100)
	for i := range long {
		long[i] = float64(i)
	}
	assert.Equal(t, 64, utf8.RuneCountInString(sparkline(long, 64)))
}

func TestHarmonicBars(t *testing.T) {
	assert.Equal(t, "█·▁", harmonicBars([]float64{1, 0, 0.01}))
}
