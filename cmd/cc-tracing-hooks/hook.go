package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/HikaruEgashira/cc-tracing-hooks/internal/hookerr"
	"github.com/HikaruEgashira/cc-tracing-hooks/internal/logger"
	"github.com/HikaruEgashira/cc-tracing-hooks/internal/pipeline"

	"github.com/spf13/cobra"
)

// hookTimeout bounds one invocation end to end. The host tool blocks on
// the hook process, so a hung collector must not hang the assistant.
const hookTimeout = 30 * time.Second

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Process one hook payload from stdin",
	Long: `Read a hook payload from stdin, reconstruct any newly completed turns
and deliver them. Always exits zero: telemetry failures are logged to the
state-dir hook log, never surfaced to the calling tool.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger.SetupHook(cfg.State.Dir, cfg.Debug)

		ctx, cancel := context.WithTimeout(cmd.Context(), hookTimeout)
		defer cancel()

		if err := pipeline.Run(ctx, cfg, os.Stdin); err != nil {
			slog.Error("Hook invocation failed",
				"category", hookerr.Category(err),
				"error", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hookCmd)
}
