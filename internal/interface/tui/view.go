package tui

import (
	"fmt"

	"synckit/internal/interface/tui/mode"
)

// View renders the dashboard: header, document table, filter input
// (when active), and footer.
func (m Model) View() string {
	lastPolled := "never"
	if !m.lastPolled.IsZero() {
		lastPolled = m.lastPolled.Format("15:04:05")
	}
	m.header.Update(m.reachable, m.documentCount, m.connections, lastPolled)

	out := m.header.View() + "\n\n"

	if m.err != nil {
		out += ErrorStyle.Render(fmt.Sprintf("poll failed: %v", m.err)) + "\n\n"
	}

	if m.mode == mode.Filter {
		out += FilterPromptStyle.Render("filter: ") + m.filterInput.View() + "\n\n"
	}

	rows := make([][]string, 0, len(m.filteredRows))
	for _, r := range m.filteredRows {
		kind := "map"
		if r.IsText {
			kind = "text"
		}
		rows = append(rows, []string{
			r.DocID,
			kind,
			fmt.Sprintf("%d", r.Subscribers),
			fmt.Sprintf("%d", r.FieldCount),
			fmt.Sprintf("%d", r.TombstoneCount),
		})
	}
	m.table.SetRows(rows)
	m.table.SetSelected(m.selected)
	out += m.table.View() + "\n\n"

	hints := []struct{ Key, Desc string }{
		{"↑/↓", "navigate"},
		{"/", "filter"},
		{"r", "refresh"},
		{"q", "quit"},
	}
	out += m.footer.View(hints)

	return out
}
