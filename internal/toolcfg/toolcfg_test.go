package toolcfg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/HikaruEgashira/cc-tracing-hooks/internal/config"
)

func TestCommandRegistered(t *testing.T) {
	cases := []struct {
		cmdline string
		want    bool
	}{
		{"cc-tracing-hooks hook", true},
		{"/usr/local/bin/cc-tracing-hooks hook", true},
		{`sh -c 'cc-tracing-hooks hook'`, true},
		{`bash -lc "/opt/bin/cc-tracing-hooks hook"`, true},
		{"cc-tracing-hooks enable claude", false},
		{"other-binary hook", false},
		{"", false},
		{"echo cc-tracing-hooks", false},
	}
	for _, tc := range cases {
		if got := commandRegistered(tc.cmdline); got != tc.want {
			t.Errorf("commandRegistered(%q) = %v, want %v", tc.cmdline, got, tc.want)
		}
	}
}

func TestClaudeRegisterIdempotent(t *testing.T) {
	tool := &claudeTool{}
	settings := map[string]any{}

	settings = tool.Register(settings)
	if !tool.IsRegistered(settings) {
		t.Fatal("not registered after Register")
	}
	settings = tool.Register(settings)

	groups := hookEntries(settings, "Stop")
	if len(groups) != 1 {
		t.Fatalf("Stop groups = %d, want 1 after double register", len(groups))
	}
}

func TestClaudeUnregisterPreservesOthers(t *testing.T) {
	tool := &claudeTool{}
	settings := map[string]any{
		"hooks": map[string]any{
			"Stop": []any{
				map[string]any{"hooks": []any{
					map[string]any{"type": "command", "command": "some-other-tool run"},
				}},
			},
		},
	}

	settings = tool.Register(settings)
	settings = tool.Unregister(settings)
	settings = tool.Unregister(settings)

	if tool.IsRegistered(settings) {
		t.Error("still registered after Unregister")
	}
	groups := hookEntries(settings, "Stop")
	if len(groups) != 1 {
		t.Fatalf("foreign hook group lost: %d groups", len(groups))
	}
	if entryCommand(groups[0].(map[string]any)["hooks"].([]any)[0]) != "some-other-tool run" {
		t.Error("foreign hook mutated")
	}
}

func TestClaudeUnregisterRemovesEmptyHooks(t *testing.T) {
	tool := &claudeTool{}
	settings := tool.Register(map[string]any{})
	settings = tool.Unregister(settings)
	if _, ok := settings["hooks"]; ok {
		t.Error("empty hooks map left behind")
	}
}

func TestClaudeSaveLoadRoundtrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	tool := &claudeTool{}

	settings := tool.Register(map[string]any{})
	if err := tool.Save(settings, ScopeGlobal); err != nil {
		t.Fatal(err)
	}

	path, _ := tool.SettingsPath(ScopeGlobal)
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := tool.Load(ScopeGlobal)
	if err != nil {
		t.Fatal(err)
	}
	if !tool.IsRegistered(loaded) {
		t.Error("registration lost in roundtrip")
	}
}

func TestCopilotRegisterShape(t *testing.T) {
	tool := &copilotTool{}
	settings, err := tool.Load(ScopeProject)
	if err != nil {
		t.Fatal(err)
	}

	settings = tool.Register(settings)
	settings = tool.Register(settings)

	entries := hookEntries(settings, "sessionEnd")
	if len(entries) != 1 {
		t.Fatalf("sessionEnd entries = %d, want 1", len(entries))
	}
	entry := entries[0].(map[string]any)
	if entry["type"] != "command" || entry["bash"] != HookCommand {
		t.Errorf("entry = %+v", entry)
	}
	if settings["version"] != float64(1) {
		t.Errorf("version = %v", settings["version"])
	}
}

func TestKiroRegisterUnregister(t *testing.T) {
	tool := &kiroTool{}
	settings := tool.Register(map[string]any{})
	if !tool.IsRegistered(settings) {
		t.Fatal("not registered")
	}
	entries := hookEntries(settings, "stop")
	if len(entries) != 1 || entryCommand(entries[0]) != HookCommand {
		t.Errorf("entries = %+v", entries)
	}
	settings = tool.Unregister(settings)
	if tool.IsRegistered(settings) {
		t.Error("still registered")
	}
}

func TestCodexRegisterLangfuse(t *testing.T) {
	cfg := &config.Config{}
	cfg.Langfuse.PublicKey = "pk-test"
	cfg.Langfuse.SecretKey = "sk-test"
	tool := &codexTool{cfg: cfg}

	settings := tool.Register(map[string]any{"model": "gpt"})
	if !tool.IsRegistered(settings) {
		t.Fatal("not registered")
	}

	table := settings["otel"].(map[string]any)["exporter"].(map[string]any)["otlp-http"].(map[string]any)
	if table["endpoint"] != "https://cloud.langfuse.com/api/public/otel/v1/traces" {
		t.Errorf("endpoint = %v", table["endpoint"])
	}
	if table["protocol"] != "json" {
		t.Errorf("protocol = %v", table["protocol"])
	}
	headers := table["headers"].(map[string]any)
	auth, _ := headers["Authorization"].(string)
	// base64("pk-test:sk-test")
	if auth != "Basic cGstdGVzdDpzay10ZXN0" {
		t.Errorf("auth = %q", auth)
	}
	if settings["model"] != "gpt" {
		t.Error("unrelated key lost")
	}

	settings = tool.Unregister(settings)
	if tool.IsRegistered(settings) {
		t.Error("still registered after unregister")
	}
	if _, ok := settings["otel"]; ok {
		t.Error("empty otel table left behind")
	}
	if settings["model"] != "gpt" {
		t.Error("unrelated key lost on unregister")
	}
}

func TestCodexRegisterOTLPFallback(t *testing.T) {
	cfg := &config.Config{}
	cfg.OTLP.Endpoint = "http://localhost:4318"
	cfg.OTLP.Headers = "x-team=obs"
	tool := &codexTool{cfg: cfg}

	settings := tool.Register(map[string]any{})
	table := settings["otel"].(map[string]any)["exporter"].(map[string]any)["otlp-http"].(map[string]any)
	if table["endpoint"] != "http://localhost:4318" {
		t.Errorf("endpoint = %v", table["endpoint"])
	}
	headers := table["headers"].(map[string]any)
	if headers["x-team"] != "obs" {
		t.Errorf("headers = %+v", headers)
	}
}

func TestCodexRegisterWithoutTargetNoop(t *testing.T) {
	tool := &codexTool{cfg: &config.Config{}}
	settings := tool.Register(map[string]any{})
	if tool.IsRegistered(settings) {
		t.Error("registered with no exporter target configured")
	}
}

func TestCodexSaveLoadRoundtrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg := &config.Config{}
	cfg.OTLP.Endpoint = "http://localhost:4318"
	tool := &codexTool{cfg: cfg}

	settings := tool.Register(map[string]any{})
	if err := tool.Save(settings, ScopeGlobal); err != nil {
		t.Fatal(err)
	}

	path, _ := tool.SettingsPath(ScopeGlobal)
	if filepath.Base(path) != "config.toml" {
		t.Errorf("path = %s", path)
	}
	loaded, err := tool.Load(ScopeGlobal)
	if err != nil {
		t.Fatal(err)
	}
	if !tool.IsRegistered(loaded) {
		t.Error("registration lost in TOML roundtrip")
	}
}

func TestForAndNames(t *testing.T) {
	names := Names()
	if len(names) != 5 {
		t.Fatalf("names = %v", names)
	}
	for _, name := range names {
		if _, ok := For(name, nil); !ok {
			t.Errorf("For(%q) not found", name)
		}
	}
	if _, ok := For("emacs", nil); ok {
		t.Error("unknown tool resolved")
	}
}
