package tui

import "testing"

func TestApplyFilterNarrowsByFuzzyMatch(t *testing.T) {
	m := NewApp("localhost:8080")
	m.rows = []docRow{
		{DocID: "notes/roadmap"},
		{DocID: "notes/standup"},
		{DocID: "board/sprint-12"},
	}

	m.filterInput.SetValue("notes")
	m.applyFilter()

	if len(m.filteredRows) != 2 {
		t.Fatalf("expected 2 matches, got %d: %+v", len(m.filteredRows), m.filteredRows)
	}
}

func TestApplyFilterEmptyQueryReturnsAllRows(t *testing.T) {
	m := NewApp("localhost:8080")
	m.rows = []docRow{{DocID: "a"}, {DocID: "b"}}

	m.filterInput.SetValue("")
	m.applyFilter()

	if len(m.filteredRows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(m.filteredRows))
	}
}

func TestTotalDeltaCountSums(t *testing.T) {
	rows := []docRow{{DeltaCount: 3}, {DeltaCount: 5}}
	if got := totalDeltaCount(rows); got != 8 {
		t.Fatalf("expected 8, got %d", got)
	}
}
