// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"slices"
	"strings"

	"vocalosc/internal/audio"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)
)

// Key bindings shared by the picker and the monitor.
var (
	keyQuit  = key.NewBinding(key.WithKeys("q", "ctrl+c"))
	keyUp    = key.NewBinding(key.WithKeys("up", "k"))
	keyDown  = key.NewBinding(key.WithKeys("down", "j"))
	keyEnter = key.NewBinding(key.WithKeys("enter"))
	keyBack  = key.NewBinding(key.WithKeys("esc"))
)

// commonSampleRates are offered in addition to the device default.
var commonSampleRates = []float64{44100, 48000, 88200, 96000}

// ScreenType defines which screen is currently active
type ScreenType int

const (
	ListScreen ScreenType = iota
	ConfigScreen
)

// Selection is the outcome of the device picker.
type Selection struct {
	DeviceID   int
	DeviceName string
	SampleRate float64
}

// DeviceListModel is the Bubble Tea model of the input device picker.
type DeviceListModel struct {
	fetch         func() ([]audio.Device, error)
	devices       []audio.Device
	selectedIndex int
	viewport      viewport.Model
	ready         bool
	err           error
	activeScreen  ScreenType

	// Configuration options
	selectedSampleRate   float64
	availableSampleRates []float64
	sampleRateIndex      int

	selection *Selection
}

type devicesMsg struct {
	devices []audio.Device
}

type errMsg struct {
	err error
}

// NewDeviceListModel creates a picker listing the devices returned by
// fetch, normally audio.InputDevices.
func NewDeviceListModel(fetch func() ([]audio.Device, error)) DeviceListModel {
	return DeviceListModel{
		fetch:        fetch,
		activeScreen: ListScreen,
	}
}

// Init initializes the Bubble Tea model
func (m DeviceListModel) Init() tea.Cmd {
	return m.fetchDevices
}

// fetchDevices gets the available audio devices
func (m DeviceListModel) fetchDevices() tea.Msg {
	devices, err := m.fetch()
	if err != nil {
		return errMsg{err}
	}
	return devicesMsg{devices}
}

// Selection returns the confirmed choice, if any.
func (m DeviceListModel) Selection() (Selection, bool) {
	if m.selection == nil {
		return Selection{}, false
	}
	return *m.selection, true
}

func (m DeviceListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.viewport.Style = lipgloss.NewStyle()
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}
		m.refresh()

	case devicesMsg:
		m.devices = msg.devices
		// Start on the system default input.
		for i, d := range m.devices {
			if d.IsDefaultInput {
				m.selectedIndex = i
				break
			}
		}
		m.refresh()

	case errMsg:
		m.err = msg.err

	case tea.KeyMsg:
		if key.Matches(msg, keyQuit) || m.err != nil {
			return m, tea.Quit
		}

		switch m.activeScreen {
		case ListScreen:
			switch {
			case key.Matches(msg, keyUp):
				if m.selectedIndex > 0 {
					m.selectedIndex--
				}
			case key.Matches(msg, keyDown):
				if m.selectedIndex < len(m.devices)-1 {
					m.selectedIndex++
				}
			case key.Matches(msg, keyEnter):
				if len(m.devices) > 0 {
					m.openConfig()
				}
			}
		case ConfigScreen:
			switch {
			case key.Matches(msg, keyBack):
				m.activeScreen = ListScreen
			case key.Matches(msg, keyUp):
				if m.sampleRateIndex > 0 {
					m.sampleRateIndex--
				}
			case key.Matches(msg, keyDown):
				if m.sampleRateIndex < len(m.availableSampleRates)-1 {
					m.sampleRateIndex++
				}
			case key.Matches(msg, keyEnter):
				device := m.devices[m.selectedIndex]
				m.selection = &Selection{
					DeviceID:   device.ID,
					DeviceName: device.Name,
					SampleRate: m.availableSampleRates[m.sampleRateIndex],
				}
				return m, tea.Quit
			}
			m.selectedSampleRate = m.availableSampleRates[m.sampleRateIndex]
		}
		m.refresh()
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// openConfig switches to the sample rate screen for the highlighted device.
func (m *DeviceListModel) openConfig() {
	m.activeScreen = ConfigScreen

	def := m.devices[m.selectedIndex].DefaultSampleRate
	m.availableSampleRates = slices.Clone(commonSampleRates)
	if def > 0 && !slices.Contains(m.availableSampleRates, def) {
		m.availableSampleRates = append(m.availableSampleRates, def)
		slices.Sort(m.availableSampleRates)
	}
	m.sampleRateIndex = max(slices.Index(m.availableSampleRates, def), 0)
	m.selectedSampleRate = m.availableSampleRates[m.sampleRateIndex]
}

func (m *DeviceListModel) refresh() {
	if !m.ready {
		return
	}
	if m.activeScreen == ConfigScreen {
		m.viewport.SetContent(m.renderDeviceConfig())
		return
	}
	m.viewport.SetContent(m.renderDevices())
}

// View renders the UI
func (m DeviceListModel) View() string {
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress any key to exit.", m.err)
	}
	if !m.ready {
		return "Initializing..."
	}

	var title, help string
	if m.activeScreen == ListScreen {
		title = titleStyle.Render("Input Devices")
		help = infoStyle.Render("↑/↓: Navigate • Enter: Configure • q: Quit")
	} else {
		title = titleStyle.Render("Device Configuration")
		help = infoStyle.Render("↑/↓: Change Value • Enter: Start • Esc: Back • q: Quit")
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

// renderDevices formats the device list
func (m DeviceListModel) renderDevices() string {
	if len(m.devices) == 0 {
		return "No input devices found."
	}

	var sb strings.Builder
	for i, device := range m.devices {
		marker := ""
		if device.IsDefaultInput {
			marker = " [default]"
		}
		deviceInfo := fmt.Sprintf("[%d] %s%s\n", device.ID, device.Name, marker)
		deviceInfo += fmt.Sprintf("    %s, input channels: %d\n", device.HostAPI, device.MaxInputChannels)
		deviceInfo += fmt.Sprintf("    Default sample rate: %.0f Hz, latency %.1f-%.1f ms\n",
			device.DefaultSampleRate,
			device.LowInputLatency.Seconds()*1000,
			device.HighInputLatency.Seconds()*1000)

		if i == m.selectedIndex {
			deviceInfo = highlightStyle.Render(deviceInfo)
		}

		sb.WriteString(deviceInfo)
		sb.WriteString("\n")
	}

	return sb.String()
}

// renderDeviceConfig formats the device configuration screen
func (m DeviceListModel) renderDeviceConfig() string {
	var sb strings.Builder
	device := m.devices[m.selectedIndex]

	fmt.Fprintf(&sb, "Configure Device: %s\n\n", device.Name)
	sb.WriteString("Sample Rate:\n")

	for i, rate := range m.availableSampleRates {
		cursor := " "
		if i == m.sampleRateIndex {
			cursor = "▶"
		}
		line := fmt.Sprintf("  %s %.0f Hz\n", cursor, rate)
		if i == m.sampleRateIndex {
			line = highlightStyle.Render(line)
		}
		sb.WriteString(line)
	}

	return sb.String()
}

// RunDevicePicker shows the picker and returns the confirmed selection.
// ok is false when the user quit without choosing.
func RunDevicePicker(fetch func() ([]audio.Device, error)) (sel Selection, ok bool, err error) {
	p := tea.NewProgram(
		NewDeviceListModel(fetch),
		tea.WithAltScreen(),
	)
	final, err := p.Run()
	if err != nil {
		return Selection{}, false, err
	}
	model, isModel := final.(DeviceListModel)
	if !isModel {
		return Selection{}, false, nil
	}
	if model.err != nil {
		return Selection{}, false, model.err
	}
	sel, ok = model.Selection()
	return sel, ok, nil
}
