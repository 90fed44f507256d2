// Package toolcfg manages hook registration inside each assistant
// tool's native configuration file. The tool set is closed and
// statically enumerated; adding a tool is a code change.
package toolcfg

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/shlex"
	"github.com/natefinch/atomic"

	"github.com/HikaruEgashira/cc-tracing-hooks/internal/config"
)

// HookCommand is the command line each tool is configured to run.
const HookCommand = "cc-tracing-hooks hook"

// hookBinary is the executable name matched inside existing entries.
const hookBinary = "cc-tracing-hooks"

// Scope selects which settings file a registration touches.
type Scope string

const (
	ScopeGlobal  Scope = "global"
	ScopeProject Scope = "project"
	ScopeLocal   Scope = "local"
)

// Tool is one assistant integration. Settings are the tool's own config
// document; Register and Unregister are idempotent on it.
type Tool interface {
	Name() string
	Scopes() []Scope
	SettingsPath(scope Scope) (string, error)
	Load(scope Scope) (map[string]any, error)
	Save(settings map[string]any, scope Scope) error
	IsRegistered(settings map[string]any) bool
	Register(settings map[string]any) map[string]any
	Unregister(settings map[string]any) map[string]any
}

// All returns every known tool. cfg feeds the codex integration, which
// has no hook mechanism and is configured with exporter settings instead.
func All(cfg *config.Config) []Tool {
	return []Tool{
		&claudeTool{},
		&cursorTool{},
		&copilotTool{},
		&kiroTool{},
		&codexTool{cfg: cfg},
	}
}

// For looks a tool up by name.
func For(name string, cfg *config.Config) (Tool, bool) {
	for _, t := range All(cfg) {
		if t.Name() == name {
			return t, true
		}
	}
	return nil, false
}

// Names lists the known tool names in registration order.
func Names() []string {
	names := make([]string, 0, 5)
	for _, t := range All(nil) {
		names = append(names, t.Name())
	}
	return names
}

// HasScope reports whether the tool supports the given scope.
func HasScope(t Tool, scope Scope) bool {
	for _, s := range t.Scopes() {
		if s == scope {
			return true
		}
	}
	return false
}

// commandRegistered reports whether cmdline invokes the hook binary's
// hook subcommand. Tokenizing instead of substring matching keeps
// wrapped forms like `sh -c 'cc-tracing-hooks hook'` recognized without
// false positives on look-alike paths.
func commandRegistered(cmdline string) bool {
	tokens, err := shlex.Split(cmdline)
	if err != nil {
		return strings.Contains(cmdline, HookCommand)
	}
	for i, tok := range tokens {
		if filepath.Base(tok) == hookBinary && i+1 < len(tokens) && tokens[i+1] == "hook" {
			return true
		}
		// Shell wrapper argument carrying the real command line.
		if strings.ContainsRune(tok, ' ') && commandRegistered(tok) {
			return true
		}
	}
	return false
}

// loadJSONSettings reads a JSON settings document, returning the given
// default when the file does not exist yet.
func loadJSONSettings(path string, defaults map[string]any) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if defaults == nil {
				return map[string]any{}, nil
			}
			return defaults, nil
		}
		return nil, err
	}
	var settings map[string]any
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if settings == nil {
		settings = map[string]any{}
	}
	return settings, nil
}

// saveJSONSettings writes the document atomically with owner-only
// permissions, since settings files can carry credentials.
func saveJSONSettings(path string, settings map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if err := atomic.WriteFile(path, strings.NewReader(string(data))); err != nil {
		return err
	}
	return os.Chmod(path, 0o600)
}

// hookEntries pulls a []any hook list out of settings.hooks[key].
func hookEntries(settings map[string]any, key string) []any {
	hooks, ok := settings["hooks"].(map[string]any)
	if !ok {
		return nil
	}
	entries, ok := hooks[key].([]any)
	if !ok {
		return nil
	}
	return entries
}

// setHookEntries stores entries under settings.hooks[key], dropping the
// key (and an emptied hooks map) when entries is empty.
func setHookEntries(settings map[string]any, key string, entries []any) map[string]any {
	hooks, ok := settings["hooks"].(map[string]any)
	if !ok {
		if len(entries) == 0 {
			return settings
		}
		hooks = map[string]any{}
		settings["hooks"] = hooks
	}
	if len(entries) == 0 {
		delete(hooks, key)
		if len(hooks) == 0 {
			delete(settings, "hooks")
		}
		return settings
	}
	hooks[key] = entries
	return settings
}

// entryCommand extracts the command string from a hook entry under any
// of the field names the tools use.
func entryCommand(entry any) string {
	m, ok := entry.(map[string]any)
	if !ok {
		return ""
	}
	for _, field := range []string{"command", "bash"} {
		if cmd, ok := m[field].(string); ok {
			return cmd
		}
	}
	return ""
}
