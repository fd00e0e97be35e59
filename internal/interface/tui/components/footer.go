package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	footerKeyStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	footerDescStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	footerMetricStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240"))
)

// Footer renders the key hints plus a rolling writes-per-second
// sparkline (deltas applied per second, summed over all documents).
type Footer struct {
	flushRateHistory []float64
}

// NewFooter builds an empty footer.
func NewFooter() *Footer {
	return &Footer{}
}

// RecordFlushRate appends the latest writes/sec sample, keeping at
// most the last 60 samples (one minute at a one-second poll interval).
func (f *Footer) RecordFlushRate(rate float64) {
	f.flushRateHistory = append(f.flushRateHistory, rate)
	if len(f.flushRateHistory) > 60 {
		f.flushRateHistory = f.flushRateHistory[len(f.flushRateHistory)-60:]
	}
}

// View renders the key-hint line and the writes-per-second sparkline.
func (f *Footer) View(hints []struct{ Key, Desc string }) string {
	var keyHelps []string
	for _, h := range hints {
		keyHelps = append(keyHelps, fmt.Sprintf("%s %s",
			footerKeyStyle.Render("["+h.Key+"]"),
			footerDescStyle.Render(h.Desc)))
	}
	keyLine := strings.Join(keyHelps, "  ")

	var rate float64
	if n := len(f.flushRateHistory); n > 0 {
		rate = f.flushRateHistory[n-1]
	}
	sparkline := RenderSparkline(f.flushRateHistory, 40)
	metricsLine := footerMetricStyle.Render(
		fmt.Sprintf("writes/s: %.1f %s", rate, sparkline))

	return keyLine + "\n" + metricsLine
}
