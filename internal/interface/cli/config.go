package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"synckit/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or change the resolved configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one configuration value and persist it",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore default configuration values",
	RunE:  runConfigReset,
}

var configResetForce bool

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configResetCmd)

	configResetCmd.Flags().BoolVarP(&configResetForce, "force", "f", false, "reset without confirmation")
}

var settableKeys = map[string]bool{
	"listen_addr":             true,
	"storage_kind":            true,
	"badger_dir":              true,
	"postgres_dsn":            true,
	"libp2p_listen":           true,
	"max_connections_per_ip":  true,
	"max_messages_per_minute": true,
	"max_message_bytes":       true,
	"max_document_id_length":  true,
	"batch_window_ms":         true,
	"heartbeat_interval_ms":   true,
	"heartbeat_timeout_ms":    true,
	"awareness_ttl_ms":        true,
	"outbound_queue_depth":    true,
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	fmt.Println("=== Server ===")
	fmt.Printf("  %-28s: %s\n", "listen_addr", cfg.ListenAddr)
	fmt.Printf("  %-28s: %s\n", "storage_kind", orNone(cfg.StorageKind))
	fmt.Printf("  %-28s: %s\n", "badger_dir", cfg.BadgerDir)
	fmt.Printf("  %-28s: %s\n", "postgres_dsn", redactDSN(cfg.PostgresDSN))
	fmt.Printf("  %-28s: %s\n", "libp2p_listen", orNone(cfg.LibP2PListen))
	fmt.Println()

	fmt.Println("=== Limits ===")
	fmt.Printf("  %-28s: %d\n", "max_connections_per_ip", cfg.MaxConnectionsPerIP)
	fmt.Printf("  %-28s: %d\n", "max_messages_per_minute", cfg.MaxMessagesPerMinute)
	fmt.Printf("  %-28s: %d\n", "max_message_bytes", cfg.MaxMessageBytes)
	fmt.Printf("  %-28s: %d\n", "max_document_id_length", cfg.MaxDocumentIDLength)
	fmt.Println()

	fmt.Println("=== Timing ===")
	fmt.Printf("  %-28s: %s\n", "batch_window", cfg.BatchWindow)
	fmt.Printf("  %-28s: %s\n", "heartbeat_interval", cfg.HeartbeatInterval)
	fmt.Printf("  %-28s: %s\n", "heartbeat_timeout", cfg.HeartbeatTimeout)
	fmt.Printf("  %-28s: %s\n", "awareness_ttl", cfg.AwarenessTTL)
	fmt.Printf("  %-28s: %d\n", "outbound_queue_depth", cfg.OutboundQueueDepth)
	fmt.Println()

	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		configFile = "(none)"
	}
	fmt.Printf("config file: %s\n", configFile)
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return "(none)"
	}
	return "(set)"
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	if !settableKeys[key] {
		fmt.Printf("unknown configuration key: %s\n", key)
		return nil
	}

	viper.Set(key, value)
	if err := viper.WriteConfig(); err != nil {
		if err := viper.SafeWriteConfig(); err != nil {
			return fmt.Errorf("failed to persist config: %w", err)
		}
	}
	fmt.Printf("set %s = %s\n", key, value)
	return nil
}

func runConfigReset(cmd *cobra.Command, args []string) error {
	if !configResetForce {
		fmt.Println("this resets every configuration value to its default.")
		fmt.Println("pass --force to proceed.")
		return nil
	}
	viper.Reset()
	fmt.Println("configuration reset to defaults")
	return nil
}
