package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	tableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("62")).
				Padding(0, 1)

	tableRowStyle = lipgloss.NewStyle().
			Padding(0, 1)

	tableSelectedStyle = tableRowStyle.Copy().
				Background(lipgloss.Color("236"))

	tableBorderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240"))
)

// TableColumn describes one fixed-width column.
type TableColumn struct {
	Name  string
	Width int
}

// Table is a simple fixed-width row renderer used for the dashboard's
// document list.
type Table struct {
	columns  []TableColumn
	rows     [][]string
	selected int
}

// NewTable builds a table with no rows selected.
func NewTable(columns []TableColumn) *Table {
	return &Table{columns: columns, selected: -1}
}

// SetRows replaces the table's rows.
func (t *Table) SetRows(rows [][]string) {
	t.rows = rows
}

// SetSelected highlights row idx (-1 for none).
func (t *Table) SetSelected(idx int) {
	t.selected = idx
}

// View renders the header, a separator, and every row.
func (t *Table) View() string {
	var lines []string

	var headerCells []string
	for _, col := range t.columns {
		headerCells = append(headerCells, fmt.Sprintf("%-*s", col.Width, col.Name))
	}
	lines = append(lines, tableHeaderStyle.Render(strings.Join(headerCells, " ")))

	totalWidth := 0
	for _, col := range t.columns {
		totalWidth += col.Width + 1
	}
	lines = append(lines, tableBorderStyle.Render(strings.Repeat("─", totalWidth)))

	for i, row := range t.rows {
		var cells []string
		for j, cell := range row {
			if j < len(t.columns) {
				cells = append(cells, fmt.Sprintf("%-*s", t.columns[j].Width, cell))
			}
		}
		rowStr := strings.Join(cells, " ")

		style := tableRowStyle
		if i == t.selected {
			style = tableSelectedStyle
		}
		lines = append(lines, style.Render(rowStr))
	}

	return strings.Join(lines, "\n")
}
