package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("205"))

	headerInfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	headerStatusOnline = lipgloss.NewStyle().
				Foreground(lipgloss.Color("82")).
				Render("●")

	headerStatusOffline = lipgloss.NewStyle().
				Foreground(lipgloss.Color("196")).
				Render("○")
)

// Header shows the polled server's address and connection health.
type Header struct {
	addr            string
	reachable       bool
	documentCount   int
	connectionCount int
	lastPolled      string
}

// NewHeader builds an unreachable header for addr until the first
// successful poll.
func NewHeader(addr string) *Header {
	return &Header{addr: addr}
}

// Update refreshes the counters shown by the header.
func (h *Header) Update(reachable bool, documentCount, connectionCount int, lastPolled string) {
	h.reachable = reachable
	h.documentCount = documentCount
	h.connectionCount = connectionCount
	h.lastPolled = lastPolled
}

// View renders the header.
func (h *Header) View() string {
	title := headerTitleStyle.Render("synckitd dashboard")

	statusIcon := headerStatusOffline
	statusText := "unreachable"
	if h.reachable {
		statusIcon = headerStatusOnline
		statusText = "connected"
	}

	line1 := fmt.Sprintf("%s   %s", title, headerInfoStyle.Render(h.addr))
	line2 := fmt.Sprintf("%s %s | documents: %d | connections: %d | polled: %s",
		statusIcon, statusText, h.documentCount, h.connectionCount, h.lastPolled)

	return line1 + "\n" + line2
}
