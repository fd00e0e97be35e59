package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"synckit/internal/interface/tui"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard [addr]",
	Short: "Launch the read-only TUI dashboard against a running server",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDashboard,
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}

func runDashboard(cmd *cobra.Command, args []string) error {
	addr := viper.GetString("listen_addr")
	if addr == "" {
		addr = ":8080"
	}
	if len(args) == 1 {
		addr = args[0]
	}
	if addr[0] == ':' {
		addr = "localhost" + addr
	}

	p := tea.NewProgram(tui.NewApp(addr))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("dashboard exited with error: %w", err)
	}
	return nil
}
