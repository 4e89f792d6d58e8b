package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"viz/internal/audio"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B6B6B"))
)

// screen identifies which picker screen is active.
type screen int

const (
	deviceScreen screen = iota
	captureScreen
)

// Selection holds the capture source the user picked.
type Selection struct {
	DeviceID   int
	SampleRate float64
	FFTSize    int
	Confirmed  bool
}

var captureRates = []float64{44100, 48000, 88200, 96000}

// Sizes below 512 would yield fewer bins than the analyser consumes,
// so they are not offered.
var fftSizes = []int{512, 1024, 2048}

// PickerModel is the Bubble Tea model for choosing a capture source
// for the visualizer. The first screen lists devices, the second sets
// the sample rate and FFT size used for spectrum analysis.
type PickerModel struct {
	devices      []audio.Device
	cursor       int
	viewport     viewport.Model
	ready        bool
	err          error
	activeScreen screen

	selection Selection
	rateIndex int
	fftIndex  int
	fieldRow  int
}

// NewPickerModel creates a picker with nothing selected.
func NewPickerModel() PickerModel {
	return PickerModel{
		activeScreen: deviceScreen,
		selection:    Selection{DeviceID: -1},
	}
}

// Selection returns what the user picked. Confirmed is false if the
// picker was quit without choosing.
func (m PickerModel) Selection() Selection {
	return m.selection
}

func (m PickerModel) Init() tea.Cmd {
	return fetchDevices
}

func fetchDevices() tea.Msg {
	devices, err := audio.GetDevices()
	if err != nil {
		return errMsg{err}
	}

	// Only input-capable devices can feed the analyser.
	inputs := devices[:0]
	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			inputs = append(inputs, d)
		}
	}
	return devicesMsg{inputs}
}

type devicesMsg struct {
	devices []audio.Device
}

type errMsg struct {
	err error
}

func (m PickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.viewport.Style = lipgloss.NewStyle()
			m.ready = true

			if len(m.devices) > 0 {
				m.viewport.SetContent(m.renderDevices())
			}
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}

	case devicesMsg:
		m.devices = msg.devices
		if m.ready {
			m.viewport.SetContent(m.renderDevices())
		}

	case errMsg:
		m.err = msg.err

	case tea.KeyMsg:
		if key.Matches(msg, key.NewBinding(key.WithKeys("q", "ctrl+c"))) {
			return m, tea.Quit
		}

		switch m.activeScreen {
		case deviceScreen:
			switch {
			case key.Matches(msg, key.NewBinding(key.WithKeys("up", "k"))):
				if m.cursor > 0 {
					m.cursor--
					m.viewport.SetContent(m.renderDevices())
				}

			case key.Matches(msg, key.NewBinding(key.WithKeys("down", "j"))):
				if m.cursor < len(m.devices)-1 {
					m.cursor++
					m.viewport.SetContent(m.renderDevices())
				}

			case key.Matches(msg, key.NewBinding(key.WithKeys("enter"))):
				if len(m.devices) > 0 {
					device := m.devices[m.cursor]
					m.activeScreen = captureScreen
					m.fieldRow = 0

					m.selection.DeviceID = device.ID
					m.selection.SampleRate = device.DefaultSampleRate
					m.rateIndex = 0
					for i, rate := range captureRates {
						if rate == device.DefaultSampleRate {
							m.rateIndex = i
							break
						}
					}

					m.fftIndex = 0 // 512, the analyser default
					m.selection.FFTSize = fftSizes[m.fftIndex]

					m.viewport.SetContent(m.renderCapture())
				}
			}

		case captureScreen:
			switch {
			case key.Matches(msg, key.NewBinding(key.WithKeys("esc"))):
				m.activeScreen = deviceScreen
				m.viewport.SetContent(m.renderDevices())

			case key.Matches(msg, key.NewBinding(key.WithKeys("tab"))):
				m.fieldRow = (m.fieldRow + 1) % 2
				m.viewport.SetContent(m.renderCapture())

			case key.Matches(msg, key.NewBinding(key.WithKeys("up", "k"))):
				if m.fieldRow == 0 && m.rateIndex > 0 {
					m.rateIndex--
				} else if m.fieldRow == 1 && m.fftIndex > 0 {
					m.fftIndex--
				}
				m.selection.SampleRate = captureRates[m.rateIndex]
				m.selection.FFTSize = fftSizes[m.fftIndex]
				m.viewport.SetContent(m.renderCapture())

			case key.Matches(msg, key.NewBinding(key.WithKeys("down", "j"))):
				if m.fieldRow == 0 && m.rateIndex < len(captureRates)-1 {
					m.rateIndex++
				} else if m.fieldRow == 1 && m.fftIndex < len(fftSizes)-1 {
					m.fftIndex++
				}
				m.selection.SampleRate = captureRates[m.rateIndex]
				m.selection.FFTSize = fftSizes[m.fftIndex]
				m.viewport.SetContent(m.renderCapture())

			case key.Matches(msg, key.NewBinding(key.WithKeys("enter"))):
				m.selection.Confirmed = true
				return m, tea.Quit
			}
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m PickerModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress q to exit.", m.err)
	}

	var title, help string

	if m.activeScreen == deviceScreen {
		title = titleStyle.Render("Capture Source")
		help = infoStyle.Render("↑/↓: Navigate • Enter: Configure • q: Quit")
	} else {
		title = titleStyle.Render("Capture Settings")
		help = infoStyle.Render("↑/↓: Change Value • Tab: Next Field • Enter: Confirm • Esc: Back • q: Quit")
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

func (m PickerModel) renderDevices() string {
	if len(m.devices) == 0 {
		return "No input devices found."
	}

	var sb strings.Builder
	for i, device := range m.devices {
		info := fmt.Sprintf("[%d] %s\n", device.ID, device.Name)
		info += fmt.Sprintf("    Input channels: %d\n", device.MaxInputChannels)
		info += fmt.Sprintf("    Default sample rate: %.0f Hz\n", device.DefaultSampleRate)

		if i == m.cursor {
			info = highlightStyle.Render(info)
		}

		sb.WriteString(info)
		sb.WriteString("\n")
	}

	return sb.String()
}

func (m PickerModel) renderCapture() string {
	var sb strings.Builder
	device := m.devices[m.cursor]

	sb.WriteString(fmt.Sprintf("Device: %s\n\n", device.Name))

	sb.WriteString(m.renderField("Sample Rate", 0))
	for i, rate := range captureRates {
		sb.WriteString(m.renderOption(fmt.Sprintf("%.0f Hz", rate), i == m.rateIndex))
	}

	sb.WriteString("\n")
	sb.WriteString(m.renderField("FFT Size", 1))
	for i, size := range fftSizes {
		label := fmt.Sprintf("%d (%d frequency bins)", size, size/2)
		sb.WriteString(m.renderOption(label, i == m.fftIndex))
	}

	return sb.String()
}

func (m PickerModel) renderField(name string, row int) string {
	if m.fieldRow == row {
		return highlightStyle.Render(name+":") + "\n"
	}
	return dimStyle.Render(name+":") + "\n"
}

func (m PickerModel) renderOption(label string, selected bool) string {
	marker := " "
	if selected {
		marker = "▶"
	}
	line := fmt.Sprintf("  %s %s\n", marker, label)
	if selected {
		line = highlightStyle.Render(line)
	}
	return line
}

// RunPicker launches the interactive capture source picker and reports
// what was chosen.
func RunPicker() (Selection, error) {
	p := tea.NewProgram(
		NewPickerModel(),
		tea.WithAltScreen(),
	)
	final, err := p.Run()
	if err != nil {
		return Selection{}, err
	}
	if m, ok := final.(PickerModel); ok {
		return m.Selection(), nil
	}
	return Selection{}, nil
}
