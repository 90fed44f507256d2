package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/HikaruEgashira/cc-tracing-hooks/internal/config"
	"github.com/HikaruEgashira/cc-tracing-hooks/internal/toolcfg"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func addScopeFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("global", false, "apply to the user-wide settings file")
	cmd.Flags().Bool("project", false, "apply to the project settings file")
	cmd.Flags().Bool("local", false, "apply to the project-local settings file")
}

// scopeFromFlags resolves the mutually exclusive scope flags, defaulting
// to global.
func scopeFromFlags(cmd *cobra.Command) (toolcfg.Scope, error) {
	chosen := make([]toolcfg.Scope, 0, 3)
	for _, pair := range []struct {
		flag  string
		scope toolcfg.Scope
	}{
		{"global", toolcfg.ScopeGlobal},
		{"project", toolcfg.ScopeProject},
		{"local", toolcfg.ScopeLocal},
	} {
		set, err := cmd.Flags().GetBool(pair.flag)
		if err != nil {
			return "", err
		}
		if set {
			chosen = append(chosen, pair.scope)
		}
	}
	switch len(chosen) {
	case 0:
		return toolcfg.ScopeGlobal, nil
	case 1:
		return chosen[0], nil
	default:
		return "", fmt.Errorf("at most one of --global, --project, --local may be set")
	}
}

// resolveTool validates the tool argument against the known set and the
// requested scope.
func resolveTool(name string, scope toolcfg.Scope) (toolcfg.Tool, error) {
	t, ok := toolcfg.For(name, cfg)
	if !ok {
		return nil, fmt.Errorf("unknown tool %q (known: %v)", name, toolcfg.Names())
	}
	if !toolcfg.HasScope(t, scope) {
		return nil, fmt.Errorf("tool %q does not support scope %q (supported: %v)", name, scope, t.Scopes())
	}
	return t, nil
}

// setEnabledFlag flips the enabled key in the global config file,
// preserving all other keys.
func setEnabledFlag(enabled bool) error {
	path, err := config.GlobalConfigPath()
	if err != nil {
		return err
	}

	doc := map[string]any{}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}
	doc["enabled"] = enabled

	data, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// mask hides the middle of a secret, keeping two characters on each end.
func mask(secret string) string {
	if secret == "" {
		return "(unset)"
	}
	if len(secret) <= 4 {
		return "****"
	}
	return secret[:2] + "****" + secret[len(secret)-2:]
}
