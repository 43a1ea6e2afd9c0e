package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spindleworks/spindle/pkg/config"
	"github.com/spindleworks/spindle/pkg/logger"
	"github.com/spindleworks/spindle/pkg/runtime"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "spindle",
	Short: "Client runtime for streaming agent backends",
	Long: `Spindle keeps a local conversation state synchronized with a remote
generative agent backend: it decodes the response stream, routes events
through registered processors, and persists threads through a pluggable
storage adapter.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default .spindle/settings.yaml)")

	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initRuntime loads settings, starts logging, and assembles the
// runtime. Shared by every subcommand.
func initRuntime() (*runtime.Runtime, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
	}
	return runtime.FromConfig(cfg), nil
}
