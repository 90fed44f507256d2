package main

import (
	"fmt"
	"strings"

	"github.com/HikaruEgashira/cc-tracing-hooks/internal/toolcfg"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show registration and configuration state",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("enabled:  %v\n", cfg.Enabled)
		fmt.Printf("backends: %s\n", backendSummary())
		fmt.Printf("state:    %s\n", cfg.State.Dir)
		fmt.Println()

		for _, tool := range toolcfg.All(cfg) {
			fmt.Printf("%s:\n", tool.Name())
			for _, scope := range tool.Scopes() {
				path, err := tool.SettingsPath(scope)
				if err != nil {
					fmt.Printf("  %-8s error: %v\n", scope, err)
					continue
				}
				settings, err := tool.Load(scope)
				if err != nil {
					fmt.Printf("  %-8s %s (unreadable: %v)\n", scope, path, err)
					continue
				}
				state := "not registered"
				if tool.IsRegistered(settings) {
					state = "registered"
				}
				fmt.Printf("  %-8s %s: %s\n", scope, path, state)
			}
		}
		return nil
	},
}

func backendSummary() string {
	if len(cfg.Backends) == 0 {
		return "(none)"
	}
	parts := make([]string, 0, len(cfg.Backends))
	for _, name := range cfg.Backends {
		switch name {
		case "otlp":
			endpoint := cfg.OTLP.Endpoint
			if endpoint == "" {
				endpoint = "(no endpoint)"
			}
			parts = append(parts, fmt.Sprintf("otlp endpoint=%s", endpoint))
		case "langfuse":
			parts = append(parts, fmt.Sprintf("langfuse base=%s pk=%s sk=%s",
				cfg.Langfuse.BaseURL, mask(cfg.Langfuse.PublicKey), mask(cfg.Langfuse.SecretKey)))
		default:
			parts = append(parts, name+" (unknown)")
		}
	}
	return strings.Join(parts, ", ")
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
