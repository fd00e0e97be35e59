package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var sparkChars = []string{"▁", "▂", "▃", "▄", "▅", "▆", "▇", "█"}

var sparklineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))

// RenderSparkline renders a one-line bar chart of data, sampled or
// padded to width columns.
func RenderSparkline(data []float64, width int) string {
	if len(data) == 0 {
		return strings.Repeat(sparkChars[0], width)
	}

	sampled := sampleData(data, width)

	max := 0.0
	for _, v := range sampled {
		if v > max {
			max = v
		}
	}
	if max == 0 {
		return strings.Repeat(sparkChars[0], width)
	}

	var result strings.Builder
	for _, v := range sampled {
		idx := int((v / max) * float64(len(sparkChars)-1))
		if idx >= len(sparkChars) {
			idx = len(sparkChars) - 1
		}
		if idx < 0 {
			idx = 0
		}
		result.WriteString(sparklineStyle.Render(sparkChars[idx]))
	}
	return result.String()
}

func sampleData(data []float64, width int) []float64 {
	if len(data) <= width {
		result := make([]float64, width)
		copy(result, data)
		return result
	}

	result := make([]float64, width)
	step := float64(len(data)) / float64(width)
	for i := 0; i < width; i++ {
		idx := int(float64(i) * step)
		if idx >= len(data) {
			idx = len(data) - 1
		}
		result[i] = data[idx]
	}
	return result
}
