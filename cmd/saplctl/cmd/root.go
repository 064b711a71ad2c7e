// Package cmd provides the CLI commands for saplctl.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sapl-go/sapl/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "saplctl",
	Short: "saplctl - offline SAPL decision demo",
	Long: `saplctl loads a fixture policy set and a subscription from disk and
runs one decision through the sapl policy decision point.

It exists to exercise the library end to end without standing up a server:
there is no networked endpoint and no policy grammar parser. Fixture
policies are a deliberately simplified JSON shape (see "saplctl decide
--help"), not SAPL source.

Configuration:
  Config is loaded from sapl.yaml in the current directory, $HOME/.sapl/,
  or /etc/sapl/. Environment variables override config values with the
  SAPL_ prefix, e.g. SAPL_ENGINE_TARGET_STRATEGY=predicate_sharing.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./sapl.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
