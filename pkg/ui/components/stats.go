package components

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// ScanStats holds scan cycle statistics for display.
type ScanStats struct {
	Cycles        int64
	Opportunities int64
	UniverseSize  int
	LastDuration  time.Duration
}

// StatsComponent renders scan statistics.
type StatsComponent struct {
	stats ScanStats
}

// NewStatsComponent creates a stats component.
func NewStatsComponent() *StatsComponent {
	return &StatsComponent{}
}

// Update updates the statistics.
func (s *StatsComponent) Update(stats ScanStats) {
	s.stats = stats
}

// View renders the stats component.
func (s *StatsComponent) View() string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true)

	return style.Render("STATS") + "\n" +
		fmt.Sprintf("Cycles: %s  │  Universe: %s  │  Opportunities: %s  │  Last scan: %s",
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Cycles)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.UniverseSize)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Opportunities)),
			valueStyle.Render(s.stats.LastDuration.Round(time.Millisecond).String()),
		)
}
