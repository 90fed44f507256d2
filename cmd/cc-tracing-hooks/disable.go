package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var disableCmd = &cobra.Command{
	Use:   "disable <tool>",
	Short: "Remove the hook registration from a tool",
	Long: `Remove the hook command from the tool's settings file. Other tools'
registrations and the global enabled flag are left alone; pass --all-off
to also set enabled: false.`,
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
		if !tool.IsRegistered(settings) {
			fmt.Printf("%s is not registered (%s scope), nothing to do\n", tool.Name(), scope)
		} else {
			settings = tool.Unregister(settings)
			if err := tool.Save(settings, scope); err != nil {
				return err
			}
			path, _ := tool.SettingsPath(scope)
			fmt.Printf("Removed %s hook from %s (%s scope)\n", tool.Name(), path, scope)
		}

		allOff, err := cmd.Flags().GetBool("all-off")
		if err != nil {
			return err
		}
		if allOff {
			if err := setEnabledFlag(false); err != nil {
				return err
			}
			fmt.Println("Tracing disabled.")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(disableCmd)
	addScopeFlags(disableCmd)
	disableCmd.Flags().Bool("all-off", false, "also set enabled: false in the global config")
}
