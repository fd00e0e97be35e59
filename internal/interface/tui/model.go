package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/sahilm/fuzzy"

	"synckit/internal/interface/tui/components"
	"synckit/internal/interface/tui/mode"
)

// docRow is one document's row in the dashboard table, decoded from
// GET /stats on the running node (internal/interface/httpapi).
type docRow struct {
	DocID          string
	IsText         bool
	Subscribers    int
	FieldCount     int
	TombstoneCount int
	DeltaCount     int
}

// statsSnapshot mirrors coordinator.Stats' JSON shape closely enough
// to decode it without importing the coordinator package from a
// client-facing dashboard.
type statsSnapshot struct {
	DocumentCount   int
	ConnectionCount int
	Documents       []struct {
		DocID       string
		IsText      bool
		Subscribers int
		Map         struct {
			FieldCount     int
			TombstoneCount int
			DeltaCount     int
		}
		Text struct {
			VisibleLength  int
			TombstoneCount int
			NodeCount      int
		}
	}
}

// TickMsg fires the periodic poll.
type TickMsg time.Time

// StatsMsg carries a successful poll result.
type StatsMsg statsSnapshot

// ErrMsg carries a failed poll.
type ErrMsg struct{ Err error }

// Model is the dashboard's bubbletea state.
type Model struct {
	addr            string
	refreshInterval time.Duration
	keys            KeyMap
	mode            mode.Mode

	header *components.Header
	footer *components.Footer
	table  *components.Table

	filterInput textinput.Model

	width, height int

	rows         []docRow
	filteredRows []docRow
	selected     int
	reachable    bool
	lastPolled   time.Time
	lastDeltaSum int
	lastPollTime time.Time

	connections   int
	documentCount int
	err           error
}

func totalDeltaCount(rows []docRow) int {
	sum := 0
	for _, r := range rows {
		sum += r.DeltaCount
	}
	return sum
}

// applyFilter narrows rows to those whose doc id fuzzy-matches the
// filter text, using github.com/sahilm/fuzzy the way the teacher's
// command palette filtered command names.
func (m *Model) applyFilter() {
	query := m.filterInput.Value()
	if query == "" {
		m.filteredRows = m.rows
		return
	}
	names := make([]string, len(m.rows))
	for i, r := range m.rows {
		names[i] = r.DocID
	}
	matches := fuzzy.Find(query, names)
	filtered := make([]docRow, 0, len(matches))
	for _, match := range matches {
		filtered = append(filtered, m.rows[match.Index])
	}
	m.filteredRows = filtered
	if m.selected >= len(m.filteredRows) {
		m.selected = len(m.filteredRows) - 1
	}
}
