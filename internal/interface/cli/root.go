// Package cli implements the synckitd command surface, adapted from the
// teacher's cobra+viper root command (internal/interface/cli/root.go):
// persistent --config/--verbose flags, SYNCKIT_-prefixed environment
// binding, and a YAML config file searched in the working directory and
// the user's home config directory.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "synckitd",
	Short: "Replicated document sync server",
	Long: `synckitd runs the SyncKit delta sync coordinator: a server that
accepts WebSocket connections, resolves concurrent edits to map and
text documents with CRDTs, and mirrors changes across nodes over
libp2p gossipsub.

Getting started:
  synckitd serve              start the sync server
  synckitd config show        inspect the resolved configuration
  synckitd dashboard          launch the read-only TUI dashboard`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string reported by "synckitd version".
func SetVersion(v string) {
	version = v
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, "could not resolve home directory:", err)
			os.Exit(1)
		}

		viper.AddConfigPath(home + "/.synckit")
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("SYNCKIT")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintln(os.Stderr, "using config file:", viper.ConfigFileUsed())
		}
	}
}
