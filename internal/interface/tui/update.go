package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"synckit/internal/interface/tui/mode"
)

// Update handles bubbletea messages: the poll tick, poll results, and
// key presses for the Normal and Filter modes.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case TickMsg:
		return m, tea.Batch(m.tick(), m.pollStats())

	case StatsMsg:
		m.reachable = true
		m.err = nil
		m.lastPolled = time.Now()
		m.documentCount = msg.DocumentCount
		m.connections = msg.ConnectionCount

		rows := make([]docRow, 0, len(msg.Documents))
		for _, d := range msg.Documents {
			row := docRow{DocID: d.DocID, IsText: d.IsText, Subscribers: d.Subscribers}
			if d.IsText {
				row.TombstoneCount = d.Text.TombstoneCount
			} else {
				row.FieldCount = d.Map.FieldCount
				row.TombstoneCount = d.Map.TombstoneCount
				row.DeltaCount = d.Map.DeltaCount
			}
			rows = append(rows, row)
		}
		m.rows = rows

		deltaSum := totalDeltaCount(rows)
		if !m.lastPollTime.IsZero() {
			elapsed := time.Since(m.lastPollTime).Seconds()
			if elapsed > 0 {
				rate := float64(deltaSum-m.lastDeltaSum) / elapsed
				if rate < 0 {
					rate = 0
				}
				m.footer.RecordFlushRate(rate)
			}
		}
		m.lastDeltaSum = deltaSum
		m.lastPollTime = time.Now()

		m.applyFilter()
		return m, nil

	case ErrMsg:
		m.reachable = false
		m.err = msg.Err
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.mode == mode.Filter {
		switch {
		case key.Matches(msg, m.keys.Escape):
			m.mode = mode.Normal
			m.filterInput.SetValue("")
			m.filterInput.Blur()
			m.applyFilter()
			return m, nil
		case key.Matches(msg, m.keys.Enter):
			m.mode = mode.Normal
			m.filterInput.Blur()
			return m, nil
		default:
			var cmd tea.Cmd
			m.filterInput, cmd = m.filterInput.Update(msg)
			m.applyFilter()
			return m, cmd
		}
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Refresh):
		return m, m.pollStats()
	case key.Matches(msg, m.keys.Filter):
		m.mode = mode.Filter
		m.filterInput.Focus()
		return m, textinput.Blink
	case key.Matches(msg, m.keys.Up):
		if m.selected > 0 {
			m.selected--
		}
		return m, nil
	case key.Matches(msg, m.keys.Down):
		if m.selected < len(m.filteredRows)-1 {
			m.selected++
		}
		return m, nil
	}
	return m, nil
}
