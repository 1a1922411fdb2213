// Package ui provides the Bubble Tea dashboard for the funding scanner.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dlemos/perparb/pkg/ui/components"
)

// ErrorEntry represents an error with timestamp.
type ErrorEntry struct {
	Message   string
	Timestamp time.Time
}

// Model is the main Bubble Tea model for the dashboard.
type Model struct {
	opportunities *components.OpportunitiesComponent
	accounts      *components.AccountsComponent
	stats         *components.StatsComponent
	progressBar   progress.Model
	keys          KeyMap

	rescanInterval time.Duration
	lastScan       time.Time
	scanning       bool
	completed      int
	total          int

	volAdjusted bool
	scanCycles  int64
	quitting    bool
	ready       bool
	width       int
	height      int

	errors []ErrorEntry // last 3
}

// New creates a dashboard model. topN bounds the opportunity table and
// rescanInterval drives the countdown shown in the status bar.
func New(rescanInterval time.Duration, topN int) Model {
	if topN <= 0 {
		topN = 5
	}
	return Model{
		opportunities:  components.NewOpportunitiesComponent(topN),
		accounts:       components.NewAccountsComponent(),
		stats:          components.NewStatsComponent(),
		progressBar:    progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		keys:           DefaultKeyMap(),
		rescanInterval: rescanInterval,
		lastScan:       time.Now(),
	}
}

// Init initializes the dashboard model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// tickCmd sends a tick every 250ms for the countdown and spinner.
func tickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg{}
	})
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Rescan):
			if OnRescan != nil && !m.scanning {
				go OnRescan()
			}
			return m, nil
		case key.Matches(msg, m.keys.Ranking):
			m.volAdjusted = !m.volAdjusted
			m.opportunities.SortByAdjusted(m.volAdjusted)
			return m, nil
		case key.Matches(msg, m.keys.Clear):
			m.errors = nil
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progressBar.Width = msg.Width / 3
		m.ready = true

	case TickMsg:
		return m, tickCmd()

	case ScanStartedMsg:
		m.scanning = true
		m.completed = 0
		m.total = msg.UniverseSize

	case ProgressMsg:
		m.completed = msg.Completed
		m.total = msg.Total

	case ScanResultMsg:
		m.scanning = false
		m.scanCycles++
		m.lastScan = time.Now()
		m.opportunities.Update(msg.Rows)
		m.opportunities.SortByAdjusted(m.volAdjusted)
		m.stats.Update(components.ScanStats{
			Cycles:        m.scanCycles,
			Opportunities: int64(len(msg.Rows)),
			UniverseSize:  m.total,
			LastDuration:  msg.Duration,
		})

	case AccountsMsg:
		m.accounts.Update(msg.Rows)

	case ErrorMsg:
		m.errors = append(m.errors, ErrorEntry{
			Message:   msg.Error.Error(),
			Timestamp: time.Now(),
		})
		if len(m.errors) > 3 {
			m.errors = m.errors[len(m.errors)-3:]
		}
	}

	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return "\n  Goodbye!\n\n"
	}
	if !m.ready {
		return "\n  Loading..."
	}

	var b strings.Builder

	title := TitleStyle.Render(" Perpetual Funding Scanner ")
	b.WriteString(title)
	b.WriteString("\n\n")

	b.WriteString(m.renderStatusBar())
	b.WriteString("\n\n")

	left := m.opportunities.View()
	right := m.accounts.View() + "\n\n" + m.stats.View()

	if m.width > 120 {
		leftBox := BoxStyle.Width(2*m.width/3 - 2).Render(left)
		rightBox := BoxStyle.Width(m.width/3 - 2).Render(right)
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, leftBox, rightBox))
	} else {
		b.WriteString(BoxStyle.Width(m.width - 4).Render(left))
		b.WriteString("\n")
		b.WriteString(BoxStyle.Width(m.width - 4).Render(right))
	}

	b.WriteString("\n\n")

	if len(m.errors) > 0 {
		errorHeader := lipgloss.NewStyle().Bold(true).Foreground(ColorDanger)
		b.WriteString(errorHeader.Render("ERRORS"))
		b.WriteString(MutedValue.Render(" (e: clear)"))
		b.WriteString("\n")
		for _, err := range m.errors {
			ago := time.Since(err.Timestamp).Round(time.Second)
			b.WriteString(NegativeValue.Render("  • " + err.Message + " "))
			b.WriteString(MutedValue.Render(fmt.Sprintf("(%s ago)", ago)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	ranking := "APR"
	if m.volAdjusted {
		ranking = "APR/vol"
	}
	helpText := fmt.Sprintf("q: quit • r: rescan • v: ranking (%s) • e: clear errors", ranking)
	b.WriteString(HelpStyle.Render(helpText))

	return b.String()
}

func (m Model) renderStatusBar() string {
	var parts []string

	if m.scanning {
		spinners := []string{"◐", "◓", "◑", "◒"}
		idx := int(time.Now().UnixMilli()/200) % len(spinners)
		scanStyle := lipgloss.NewStyle().Foreground(ColorProfit).Bold(true)
		parts = append(parts, scanStyle.Render(spinners[idx]+" Scanning"))

		if m.total > 0 {
			parts = append(parts, m.progressBar.ViewAs(float64(m.completed)/float64(m.total)))
			parts = append(parts, fmt.Sprintf("%d/%d", m.completed, m.total))
		}
	} else if m.rescanInterval > 0 {
		next := m.rescanInterval - time.Since(m.lastScan)
		if next < 0 {
			next = 0
		}
		parts = append(parts, MutedValue.Render(
			fmt.Sprintf("Next scan in %s", next.Round(time.Second))))
	}

	parts = append(parts, MutedValue.Render(
		fmt.Sprintf("Last update: %s", m.lastScan.Format("15:04:05"))))

	return strings.Join(parts, "  │  ")
}

// Program holds the Bubble Tea program instance for external access.
var Program *tea.Program

// OnRescan is called when the user requests an immediate scan. Set by the
// composition root before Run.
var OnRescan func()

// Run starts the Bubble Tea program and blocks until it exits.
func Run(rescanInterval time.Duration, topN int) error {
	Program = tea.NewProgram(New(rescanInterval, topN), tea.WithAltScreen())
	_, err := Program.Run()
	return err
}

// Send sends a message to the running program.
func Send(msg tea.Msg) {
	if Program != nil {
		Program.Send(msg)
	}
}

// Quit stops the running program.
func Quit() {
	if Program != nil {
		Program.Quit()
	}
}
