package tui

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"synckit/internal/interface/tui/components"
	"synckit/internal/interface/tui/mode"
)

// Option configures a new dashboard Model.
type Option func(*Model)

// WithRefreshInterval overrides the default one-second poll interval.
func WithRefreshInterval(d time.Duration) Option {
	return func(m *Model) { m.refreshInterval = d }
}

// NewApp builds a dashboard that polls addr's /stats endpoint.
func NewApp(addr string, opts ...Option) *Model {
	fi := textinput.New()
	fi.Placeholder = "filter documents..."
	fi.CharLimit = 128
	fi.Width = 40

	m := &Model{
		addr:            addr,
		refreshInterval: time.Second,
		keys:            DefaultKeyMap(),
		mode:            mode.Normal,
		header:          components.NewHeader(addr),
		footer:          components.NewFooter(),
		table: components.NewTable([]components.TableColumn{
			{Name: "DOCUMENT", Width: 30},
			{Name: "KIND", Width: 6},
			{Name: "SUBS", Width: 6},
			{Name: "FIELDS", Width: 8},
			{Name: "TOMBSTONES", Width: 12},
		}),
		filterInput: fi,
		selected:    -1,
	}

	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Init starts the poll loop and the cursor blink.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.tick(), m.pollStats(), textinput.Blink)
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.refreshInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m Model) pollStats() tea.Cmd {
	addr := m.addr
	return func() tea.Msg {
		resp, err := http.Get(fmt.Sprintf("http://%s/stats", addr))
		if err != nil {
			return ErrMsg{Err: err}
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return ErrMsg{Err: fmt.Errorf("GET /stats: unexpected status %d", resp.StatusCode)}
		}
		var snap statsSnapshot
		if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
			return ErrMsg{Err: err}
		}
		return StatsMsg(snap)
	}
}
