package toolcfg

import "path/filepath"

// cursorTool registers under hooks.stop in the project hooks file.
// Cursor reuses the claude transcript format, so one stop hook per turn
// is enough for full trace capture.
type cursorTool struct{}

func (t *cursorTool) Name() string { return "cursor" }

func (t *cursorTool) Scopes() []Scope { return []Scope{ScopeProject} }

func (t *cursorTool) SettingsPath(scope Scope) (string, error) {
	return filepath.Join(".cursor", "hooks.json"), nil
}

func (t *cursorTool) Load(scope Scope) (map[string]any, error) {
	path, err := t.SettingsPath(scope)
	if err != nil {
		return nil, err
	}
	return loadJSONSettings(path, map[string]any{"version": float64(1), "hooks": map[string]any{}})
}

func (t *cursorTool) Save(settings map[string]any, scope Scope) error {
	path, err := t.SettingsPath(scope)
	if err != nil {
		return err
	}
	return saveJSONSettings(path, settings)
}

func (t *cursorTool) IsRegistered(settings map[string]any) bool {
	for _, entry := range hookEntries(settings, "stop") {
		if commandRegistered(entryCommand(entry)) {
			return true
		}
	}
	return false
}

func (t *cursorTool) Register(settings map[string]any) map[string]any {
	if t.IsRegistered(settings) {
		return settings
	}
	if _, ok := settings["version"]; !ok {
		settings["version"] = float64(1)
	}
	entries := hookEntries(settings, "stop")
	entries = append(entries, map[string]any{"command": HookCommand})
	return setHookEntries(settings, "stop", entries)
}

func (t *cursorTool) Unregister(settings map[string]any) map[string]any {
	var kept []any
	for _, entry := range hookEntries(settings, "stop") {
		if !commandRegistered(entryCommand(entry)) {
			kept = append(kept, entry)
		}
	}
	return setHookEntries(settings, "stop", kept)
}
