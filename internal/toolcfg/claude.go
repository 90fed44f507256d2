package toolcfg

import (
	"os"
	"path/filepath"
)

// claudeTool registers under hooks.Stop in the claude settings files.
// Stop fires once per completed turn, which is when the transcript is
// worth re-reading.
type claudeTool struct{}

func (t *claudeTool) Name() string { return "claude" }

func (t *claudeTool) Scopes() []Scope {
	return []Scope{ScopeGlobal, ScopeProject, ScopeLocal}
}

func (t *claudeTool) SettingsPath(scope Scope) (string, error) {
	switch scope {
	case ScopeGlobal:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".claude", "settings.json"), nil
	case ScopeLocal:
		return filepath.Join(".claude", "settings.local.json"), nil
	default:
		return filepath.Join(".claude", "settings.json"), nil
	}
}

func (t *claudeTool) Load(scope Scope) (map[string]any, error) {
	path, err := t.SettingsPath(scope)
	if err != nil {
		return nil, err
	}
	return loadJSONSettings(path, nil)
}

func (t *claudeTool) Save(settings map[string]any, scope Scope) error {
	path, err := t.SettingsPath(scope)
	if err != nil {
		return err
	}
	return saveJSONSettings(path, settings)
}

// IsRegistered scans every hook group under Stop.
func (t *claudeTool) IsRegistered(settings map[string]any) bool {
	for _, group := range hookEntries(settings, "Stop") {
		if groupHasHook(group) {
			return true
		}
	}
	return false
}

// Register appends one Stop group wrapping the hook command. Claude
// nests commands inside groups keyed by an optional matcher.
func (t *claudeTool) Register(settings map[string]any) map[string]any {
	if t.IsRegistered(settings) {
		return settings
	}
	groups := hookEntries(settings, "Stop")
	groups = append(groups, map[string]any{
		"hooks": []any{
			map[string]any{"type": "command", "command": HookCommand},
		},
	})
	return setHookEntries(settings, "Stop", groups)
}

func (t *claudeTool) Unregister(settings map[string]any) map[string]any {
	var kept []any
	for _, group := range hookEntries(settings, "Stop") {
		if !groupHasHook(group) {
			kept = append(kept, group)
		}
	}
	return setHookEntries(settings, "Stop", kept)
}

func groupHasHook(group any) bool {
	m, ok := group.(map[string]any)
	if !ok {
		return false
	}
	inner, ok := m["hooks"].([]any)
	if !ok {
		return false
	}
	for _, hook := range inner {
		if commandRegistered(entryCommand(hook)) {
			return true
		}
	}
	return false
}
