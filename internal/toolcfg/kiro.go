package toolcfg

import (
	"os"
	"path/filepath"
)

// kiroTool registers under hooks.stop in the kiro agent definition.
type kiroTool struct{}

func (t *kiroTool) Name() string { return "kiro" }

func (t *kiroTool) Scopes() []Scope { return []Scope{ScopeGlobal, ScopeProject} }

func (t *kiroTool) SettingsPath(scope Scope) (string, error) {
	if scope == ScopeGlobal {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".kiro", "agents", "default.json"), nil
	}
	return filepath.Join(".kiro", "agents", "default.json"), nil
}

func (t *kiroTool) Load(scope Scope) (map[string]any, error) {
	path, err := t.SettingsPath(scope)
	if err != nil {
		return nil, err
	}
	return loadJSONSettings(path, nil)
}

func (t *kiroTool) Save(settings map[string]any, scope Scope) error {
	path, err := t.SettingsPath(scope)
	if err != nil {
		return err
	}
	return saveJSONSettings(path, settings)
}

func (t *kiroTool) IsRegistered(settings map[string]any) bool {
	for _, entry := range hookEntries(settings, "stop") {
		if commandRegistered(entryCommand(entry)) {
			return true
		}
	}
	return false
}

func (t *kiroTool) Register(settings map[string]any) map[string]any {
	if t.IsRegistered(settings) {
		return settings
	}
	entries := hookEntries(settings, "stop")
	entries = append(entries, map[string]any{"command": HookCommand})
	return setHookEntries(settings, "stop", entries)
}

func (t *kiroTool) Unregister(settings map[string]any) map[string]any {
	var kept []any
	for _, entry := range hookEntries(settings, "stop") {
		if !commandRegistered(entryCommand(entry)) {
			kept = append(kept, entry)
		}
	}
	return setHookEntries(settings, "stop", kept)
}
