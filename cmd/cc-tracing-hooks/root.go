package main

import (
	"fmt"
	"os"

	"github.com/HikaruEgashira/cc-tracing-hooks/internal/config"
	"github.com/HikaruEgashira/cc-tracing-hooks/internal/logger"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "cc-tracing-hooks",
	Short: "Turn telemetry for AI coding assistants",
	Long: `cc-tracing-hooks turns assistant hook events into normalized turn
telemetry and ships it to OTLP or Langfuse backends.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cmd)
		if err != nil {
			return err
		}

		level := config.DefaultLogLevel
		if cfg.Debug {
			level = "debug"
		}
		logger.Setup(level)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.cc-tracing-hooks/config.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringSlice("backends", nil, "delivery backends (otlp, langfuse)")
	rootCmd.PersistentFlags().String("otlp.endpoint", "", "OTLP/HTTP endpoint")
	rootCmd.PersistentFlags().String("state.dir", "", "cursor state directory")
}
