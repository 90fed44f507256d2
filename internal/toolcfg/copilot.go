package toolcfg

import "path/filepath"

// copilotTool registers under hooks.sessionEnd in the repository hooks
// file. Copilot only surfaces boundary events, so a session-end hook is
// the single delivery point.
type copilotTool struct{}

func (t *copilotTool) Name() string { return "copilot" }

func (t *copilotTool) Scopes() []Scope { return []Scope{ScopeProject} }

func (t *copilotTool) SettingsPath(scope Scope) (string, error) {
	return filepath.Join(".github", "hooks", "cc-tracing-hooks.json"), nil
}

func (t *copilotTool) Load(scope Scope) (map[string]any, error) {
	path, err := t.SettingsPath(scope)
	if err != nil {
		return nil, err
	}
	return loadJSONSettings(path, map[string]any{"version": float64(1), "hooks": map[string]any{}})
}

func (t *copilotTool) Save(settings map[string]any, scope Scope) error {
	path, err := t.SettingsPath(scope)
	if err != nil {
		return err
	}
	return saveJSONSettings(path, settings)
}

func (t *copilotTool) IsRegistered(settings map[string]any) bool {
	for _, entry := range hookEntries(settings, "sessionEnd") {
		if commandRegistered(entryCommand(entry)) {
			return true
		}
	}
	return false
}

func (t *copilotTool) Register(settings map[string]any) map[string]any {
	if t.IsRegistered(settings) {
		return settings
	}
	if _, ok := settings["version"]; !ok {
		settings["version"] = float64(1)
	}
	entries := hookEntries(settings, "sessionEnd")
	entries = append(entries, map[string]any{
		"type": "command",
		"bash": HookCommand,
	})
	return setHookEntries(settings, "sessionEnd", entries)
}

func (t *copilotTool) Unregister(settings map[string]any) map[string]any {
	var kept []any
	for _, entry := range hookEntries(settings, "sessionEnd") {
		if !commandRegistered(entryCommand(entry)) {
			kept = append(kept, entry)
		}
	}
	return setHookEntries(settings, "sessionEnd", kept)
}
