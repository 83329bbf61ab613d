// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/fmtvend/internal/session"
	"github.com/Thermoquad/fmtvend/pkg/vending"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

// Focus states
const (
	focusCommandList = iota
	focusBayInput
)

const maxLogEntries = 100

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// commandItem is one catalog entry in the command list
type commandItem struct {
	cmd     vending.Command
	payload string
}

// Implement list.Item interface
func (c commandItem) Title() string       { return c.cmd.String() }
func (c commandItem) Description() string { return c.payload }
func (c commandItem) FilterValue() string { return c.cmd.String() }

// Event log entry
type logEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// exchangeStats counts exchange outcomes for the statistics bar
type exchangeStats struct {
	total     int
	succeeded int
	failed    int
	last      time.Duration
}

// consoleModel is the Bubble Tea model for the console TUI
type consoleModel struct {
	ctx  context.Context
	sess *session.Session

	connInfo       string
	connectedAt    time.Time
	connectionLost bool

	commandList  list.Model
	bayInput     textinput.Model
	focusedField int

	// Exchange state
	busy      bool
	pending   string
	sentAt    time.Time
	polling   bool
	lastPoll  time.Time
	stats     exchangeStats
	status    *vending.MachineStatus
	firmware  *vending.FirmwareVersion
	dispense  *vending.DispenseResult
	lastFrame string

	// UI state
	eventLog []logEntry
	width    int
	height   int
	quitting bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type consoleTickMsg time.Time

type exchangeResultMsg struct {
	res     vending.ExchangeResult
	elapsed time.Duration
}

type connectionLostMsg struct {
	err error
}

type reconnectedMsg struct {
	connInfo string
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialConsoleModel(ctx context.Context, sess *session.Session, connInfo string) consoleModel {
	ti := textinput.New()
	ti.Placeholder = "1-5"
	ti.CharLimit = 1
	ti.Width = 4

	items := []list.Item{}
	for _, cmd := range sess.Profile.Commands() {
		payload, _ := sess.Profile.Payload(cmd)
		items = append(items, commandItem{cmd: cmd, payload: payload})
	}

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	commandList := list.New(items, delegate, 48, 12)
	commandList.Title = "Commands"
	commandList.SetShowStatusBar(false)
	commandList.SetShowHelp(false)
	commandList.SetFilteringEnabled(false)

	return consoleModel{
		ctx:          ctx,
		sess:         sess,
		connInfo:     connInfo,
		connectedAt:  time.Now(),
		commandList:  commandList,
		bayInput:     ti,
		focusedField: focusCommandList,
		eventLog:     make([]logEntry, 0),
		width:        80,
		height:       24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m consoleModel) Init() tea.Cmd {
	return consoleTickCmd()
}

func consoleTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return consoleTickMsg(t)
	})
}

func (m consoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateListSize()

	case consoleTickMsg:
		if m.polling && !m.busy && !m.connectionLost && time.Since(m.lastPoll) >= pollInterval {
			m.lastPoll = time.Now()
			return m, tea.Batch(m.startExchange(vending.CmdGetMachineStatus), consoleTickCmd())
		}
		return m, consoleTickCmd()

	case exchangeResultMsg:
		m.busy = false
		m.pending = ""
		m.processResult(msg.res, msg.elapsed)

	case connectionLostMsg:
		m.connectionLost = true
		m.addLogEntry(fmt.Sprintf("Connection lost (%v) - reconnecting...", msg.err), true)

	case reconnectedMsg:
		m.connectionLost = false
		m.connInfo = msg.connInfo
		m.connectedAt = time.Now()
		m.addLogEntry("Reconnected: "+msg.connInfo, false)
	}

	var cmd tea.Cmd
	if m.focusedField == focusCommandList {
		m.commandList, cmd = m.commandList.Update(msg)
	}
	return m, cmd
}

func (m *consoleModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "tab", "shift+tab":
		m.toggleFocus()
		return m, nil

	case "enter":
		return m.handleEnter()

	case "r":
		if m.focusedField == focusCommandList {
			m.polling = !m.polling
			if m.polling {
				m.lastPoll = time.Time{}
				m.addLogEntry(fmt.Sprintf("Status polling on (every %s)", pollInterval), false)
			} else {
				m.addLogEntry("Status polling off", false)
			}
			return m, nil
		}
	}

	// Pass through to focused component
	var cmd tea.Cmd
	if m.focusedField == focusBayInput {
		m.bayInput, cmd = m.bayInput.Update(msg)
	} else {
		m.commandList, cmd = m.commandList.Update(msg)
	}
	return m, cmd
}

func (m *consoleModel) toggleFocus() {
	if m.focusedField == focusCommandList {
		m.focusedField = focusBayInput
		m.bayInput.Focus()
		return
	}
	m.focusedField = focusCommandList
	m.bayInput.Blur()
}

func (m *consoleModel) handleEnter() (tea.Model, tea.Cmd) {
	if m.connectionLost {
		m.addLogEntry("Cannot send command: connection lost", true)
		return m, nil
	}
	if m.busy {
		m.addLogEntry(fmt.Sprintf("Still waiting for %s", m.pending), true)
		return m, nil
	}

	if m.focusedField == focusBayInput {
		bay, err := strconv.Atoi(m.bayInput.Value())
		if err != nil {
			m.addLogEntry(fmt.Sprintf("Invalid bay %q", m.bayInput.Value()), true)
			return m, nil
		}
		cmd, err := vending.DispenseCommand(bay)
		if err != nil {
			m.addLogEntry(fmt.Sprintf("Invalid bay %d: use 1-5", bay), true)
			return m, nil
		}
		m.bayInput.SetValue("")
		return m, m.startDispense(bay, cmd)
	}

	item, ok := m.commandList.SelectedItem().(commandItem)
	if !ok {
		return m, nil
	}
	return m, m.startExchange(item.cmd)
}

// startExchange runs one exchange in a tea.Cmd goroutine
func (m *consoleModel) startExchange(cmd vending.Command) tea.Cmd {
	m.busy = true
	m.pending = cmd.String()
	m.sentAt = time.Now()
	m.addLogEntry("Sent "+cmd.String(), false)

	ctx, sess := m.ctx, m.sess
	return func() tea.Msg {
		start := time.Now()
		res := sess.Exchange(ctx, cmd)
		return exchangeResultMsg{res: res, elapsed: time.Since(start)}
	}
}

func (m *consoleModel) startDispense(bay int, cmd vending.Command) tea.Cmd {
	m.busy = true
	m.pending = cmd.String()
	m.sentAt = time.Now()
	m.addLogEntry(fmt.Sprintf("Dispensing bay %d", bay), false)

	ctx, sess := m.ctx, m.sess
	return func() tea.Msg {
		start := time.Now()
		res := sess.Dispense(ctx, bay)
		return exchangeResultMsg{res: res, elapsed: time.Since(start)}
	}
}

//////////////////////////////////////////////////////////////
// Data Processing
//////////////////////////////////////////////////////////////

func (m *consoleModel) processResult(res vending.ExchangeResult, elapsed time.Duration) {
	m.stats.total++
	m.stats.last = elapsed

	if !res.Status {
		m.stats.failed++
		m.addLogEntry(fmt.Sprintf("%s: %s", res.Command, res.Error), true)
		return
	}

	m.stats.succeeded++
	m.lastFrame = res.Response.String()

	switch t := res.Metadata.(type) {
	case vending.MachineStatus:
		m.status = &t
	case vending.FirmwareVersion:
		m.firmware = &t
	case vending.DispenseResult:
		m.dispense = &t
		if !t.ItemDropped {
			m.addLogEntry(fmt.Sprintf("Bay %d: no drop detected", t.Bay), true)
			return
		}
	}
	m.addLogEntry(fmt.Sprintf("%s: %s", res.Command, res.Log), false)
}

func (m *consoleModel) addLogEntry(message string, isError bool) {
	entry := logEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	if len(m.eventLog) > maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-maxLogEntries:]
	}
}

func (m *consoleModel) updateListSize() {
	listHeight := m.height / 2
	if listHeight < 6 {
		listHeight = 6
	}
	m.commandList.SetSize(46, listHeight)
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

func (m consoleModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	focusedBoxStyle := boxStyle.
		BorderForeground(lipgloss.Color("12"))

	// Header
	s.WriteString(titleStyle.Render("FMTVEND CONSOLE"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.connectionLost {
		connStatus = warningStyle.Render("RECONNECTING...")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | %s | q=quit Tab=switch Enter=send r=poll",
		m.sess.Profile.Name(), connStatus)))
	s.WriteString("\n")
	if !m.connectionLost {
		s.WriteString(fmt.Sprintf(" %s %s",
			statsLabelStyle.Render("Connected:"),
			statsValueStyle.Render(formatUptime(uint64(time.Since(m.connectedAt).Milliseconds())))))
	}
	s.WriteString("\n\n")

	// Layout: left panel (commands) | right panel (bay input + telemetry)
	leftWidth := 48
	rightWidth := m.width - leftWidth - 6
	if rightWidth < 30 {
		rightWidth = 30
	}

	listStyle := boxStyle.Width(leftWidth)
	if m.focusedField == focusCommandList {
		listStyle = focusedBoxStyle.Width(leftWidth)
	}
	commandPanel := listStyle.Render(m.commandList.View())

	rightStyle := boxStyle.Width(rightWidth)
	if m.focusedField == focusBayInput {
		rightStyle = focusedBoxStyle.Width(rightWidth)
	}
	rightPanel := rightStyle.Render(m.renderTelemetry(statsLabelStyle, statsValueStyle, headerStyle, warningStyle))

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, commandPanel, " ", rightPanel))
	s.WriteString("\n\n")

	s.WriteString(m.renderStatisticsBar(statsLabelStyle, statsValueStyle, errorStyle, boxStyle))
	s.WriteString("\n\n")

	s.WriteString(m.renderEventLog(statsLabelStyle, warningStyle, errorStyle, headerStyle, boxStyle))

	return s.String()
}

func (m consoleModel) renderTelemetry(statsLabelStyle, statsValueStyle, headerStyle, warningStyle lipgloss.Style) string {
	var s strings.Builder

	// Bay input
	s.WriteString(statsLabelStyle.Render("Dispense bay: "))
	if m.focusedField == focusBayInput {
		s.WriteString(m.bayInput.View())
	} else {
		val := m.bayInput.Value()
		if val == "" {
			val = m.bayInput.Placeholder
		}
		s.WriteString(fmt.Sprintf("[%s]", val))
	}
	s.WriteString("\n")

	if m.busy {
		s.WriteString(warningStyle.Render(fmt.Sprintf("Waiting for %s (%.0fs)", m.pending, time.Since(m.sentAt).Seconds())))
	} else if m.polling {
		s.WriteString(headerStyle.Render(fmt.Sprintf("Polling status every %s", pollInterval)))
	}
	s.WriteString("\n\n")

	s.WriteString(statsLabelStyle.Render("MACHINE STATUS"))
	s.WriteString("\n")
	if m.status == nil {
		s.WriteString(headerStyle.Render("  (no status yet)\n"))
	} else {
		s.WriteString(statsValueStyle.Render(vending.FormatTelemetry(*m.status)))
	}

	s.WriteString(statsLabelStyle.Render("FIRMWARE"))
	s.WriteString("\n")
	if m.firmware == nil {
		s.WriteString(headerStyle.Render("  (not read)\n"))
	} else {
		s.WriteString(statsValueStyle.Render(vending.FormatTelemetry(*m.firmware)))
	}

	s.WriteString(statsLabelStyle.Render("LAST DISPENSE"))
	s.WriteString("\n")
	if m.dispense == nil {
		s.WriteString(headerStyle.Render("  (none)\n"))
	} else {
		s.WriteString(statsValueStyle.Render(vending.FormatTelemetry(*m.dispense)))
	}

	if m.lastFrame != "" {
		s.WriteString("\n")
		s.WriteString(headerStyle.Render("Frame: " + m.lastFrame))
	}

	return s.String()
}

func (m consoleModel) renderStatisticsBar(statsLabelStyle, statsValueStyle, errorStyle, boxStyle lipgloss.Style) string {
	var okPercent float64
	if m.stats.total > 0 {
		okPercent = float64(m.stats.succeeded) * 100.0 / float64(m.stats.total)
	}

	failed := statsValueStyle.Render("0")
	if m.stats.failed > 0 {
		failed = errorStyle.Render(fmt.Sprintf("%d", m.stats.failed))
	}

	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s",
		statsLabelStyle.Render("Exchanges:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.total)),
		statsLabelStyle.Render("OK:"), statsValueStyle.Render(fmt.Sprintf("%.1f%%", okPercent)),
		statsLabelStyle.Render("Failed:"), failed,
		statsLabelStyle.Render("Last:"), statsValueStyle.Render(m.stats.last.Round(time.Millisecond).String()),
	)

	return boxStyle.Width(m.width - 4).Render(content)
}

func (m consoleModel) renderEventLog(statsLabelStyle, warningStyle, errorStyle, headerStyle, boxStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(statsLabelStyle.Render("EVENTS"))
	s.WriteString("\n")

	logHeight := m.height - m.height/2 - 14
	if logHeight < 4 {
		logHeight = 4
	}

	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			icon := "i"
			style := warningStyle
			if entry.isError {
				icon = "x"
				style = errorStyle
			}
			s.WriteString(fmt.Sprintf("%s %s %s\n",
				headerStyle.Render(timestamp),
				style.Render(icon),
				entry.message))
		}
	}

	return boxStyle.Width(m.width - 4).Render(s.String())
}

// formatUptime formats a duration in milliseconds to human-friendly string
func formatUptime(ms uint64) string {
	if ms == 0 {
		return "0 seconds"
	}

	seconds := ms / 1000
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	plural := func(n uint64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}

	parts := []string{}
	if days > 0 {
		parts = append(parts, plural(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, plural(seconds, "second"))
	}

	// Join with commas and "and" for last item
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}
