package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var enableCmd = &cobra.Command{
	Use:   "enable <tool>",
	Short: "Register the hook with a tool and turn tracing on",
	Long: `Register the hook command in the tool's native settings file and set
enabled: true in the global configuration. Registration is idempotent.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scope, err := scopeFromFlags(cmd)
		if err != nil {
			return err
		}
		tool, err := resolveTool(args[0], scope)
		if err != nil {
			return err
		}

		settings, err := tool.Load(scope)
		if err != nil {
			return err
		}
		already := tool.IsRegistered(settings)
		if !already {
			settings = tool.Register(settings)
			if err := tool.Save(settings, scope); err != nil {
				return err
			}
		}

		if err := setEnabledFlag(true); err != nil {
			return err
		}

		path, _ := tool.SettingsPath(scope)
		if already {
			fmt.Printf("%s already registered in %s (%s scope)\n", tool.Name(), path, scope)
		} else {
			fmt.Printf("Registered %s hook in %s (%s scope)\n", tool.Name(), path, scope)
		}
		fmt.Println("Tracing enabled.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(enableCmd)
	addScopeFlags(enableCmd)
}
