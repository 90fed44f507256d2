package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/HikaruEgashira/cc-tracing-hooks/internal/cursor"
	"github.com/HikaruEgashira/cc-tracing-hooks/internal/toolcfg"

	"github.com/spf13/cobra"
)

// staleCursorAge is how long an untouched session record survives
// before doctor prunes it.
const staleCursorAge = 30 * 24 * time.Hour

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose the installation",
	Long: `Check hook registration, backend configuration and state directory
health. Exits non-zero when issues are found.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var issues []string

		if !cfg.Enabled {
			issues = append(issues, "tracing is disabled (run 'cc-tracing-hooks enable <tool>')")
		}
		if len(cfg.Backends) == 0 {
			issues = append(issues, "no backends configured (set 'backends' to otlp and/or langfuse)")
		}
		for _, name := range cfg.Backends {
			switch name {
			case "otlp":
				if cfg.OTLP.Endpoint == "" {
					issues = append(issues, "otlp backend selected but otlp.endpoint is empty")
				}
			case "langfuse":
				if cfg.Langfuse.PublicKey == "" || cfg.Langfuse.SecretKey == "" {
					issues = append(issues, "langfuse backend selected but public/secret key is missing")
				}
			default:
				issues = append(issues, fmt.Sprintf("unknown backend %q", name))
			}
		}

		if !anyToolRegistered() {
			issues = append(issues, "no tool has the hook registered in any scope")
		}

		if err := checkStateDir(cfg.State.Dir); err != nil {
			issues = append(issues, fmt.Sprintf("state dir %s not writable: %v", cfg.State.Dir, err))
		} else {
			store, err := cursor.NewStore(cfg.State.Dir, cursor.DefaultLockConfig())
			if err == nil {
				if removed, err := store.Prune(staleCursorAge); err == nil && removed > 0 {
					fmt.Printf("Pruned %d stale session record(s)\n", removed)
				}
			}
		}

		if len(issues) == 0 {
			fmt.Println("No issues found.")
			return nil
		}
		for _, issue := range issues {
			fmt.Printf("- %s\n", issue)
		}
		return fmt.Errorf("%d issue(s) found", len(issues))
	},
}

func anyToolRegistered() bool {
	for _, tool := range toolcfg.All(cfg) {
		for _, scope := range tool.Scopes() {
			settings, err := tool.Load(scope)
			if err != nil {
				continue
			}
			if tool.IsRegistered(settings) {
				return true
			}
		}
	}
	return false
}

func checkStateDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	probe := filepath.Join(dir, ".doctor-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return err
	}
	return os.Remove(probe)
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
