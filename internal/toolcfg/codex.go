package toolcfg

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/pelletier/go-toml/v2"

	"github.com/HikaruEgashira/cc-tracing-hooks/internal/config"
)

// codexTool has no hook mechanism. Enabling it writes an OTLP exporter
// table into ~/.codex/config.toml so codex ships telemetry directly,
// bypassing the pipeline. The exporter target is derived from the
// configured backend: langfuse credentials become an OTLP endpoint on
// the Langfuse ingestion route with basic auth.
type codexTool struct {
	cfg *config.Config
}

func (t *codexTool) Name() string { return "codex" }

func (t *codexTool) Scopes() []Scope { return []Scope{ScopeGlobal} }

func (t *codexTool) SettingsPath(scope Scope) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".codex", "config.toml"), nil
}

func (t *codexTool) Load(scope Scope) (map[string]any, error) {
	path, err := t.SettingsPath(scope)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}
	var settings map[string]any
	if err := toml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if settings == nil {
		settings = map[string]any{}
	}
	return settings, nil
}

func (t *codexTool) Save(settings map[string]any, scope Scope) error {
	path, err := t.SettingsPath(scope)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := toml.Marshal(settings)
	if err != nil {
		return err
	}
	if err := atomic.WriteFile(path, strings.NewReader(string(data))); err != nil {
		return err
	}
	return os.Chmod(path, 0o600)
}

func (t *codexTool) IsRegistered(settings map[string]any) bool {
	otel, ok := settings["otel"].(map[string]any)
	if !ok {
		return false
	}
	exporter, ok := otel["exporter"].(map[string]any)
	if !ok {
		return false
	}
	_, ok = exporter["otlp-http"].(map[string]any)
	return ok
}

func (t *codexTool) Register(settings map[string]any) map[string]any {
	endpoint, headers := t.exporterTarget()
	if endpoint == "" {
		return settings
	}
	table := map[string]any{
		"endpoint": endpoint,
		"protocol": "json",
	}
	if len(headers) > 0 {
		table["headers"] = headers
	}
	otel, ok := settings["otel"].(map[string]any)
	if !ok {
		otel = map[string]any{}
		settings["otel"] = otel
	}
	exporter, ok := otel["exporter"].(map[string]any)
	if !ok {
		exporter = map[string]any{}
		otel["exporter"] = exporter
	}
	exporter["otlp-http"] = table
	return settings
}

func (t *codexTool) Unregister(settings map[string]any) map[string]any {
	otel, ok := settings["otel"].(map[string]any)
	if !ok {
		return settings
	}
	exporter, ok := otel["exporter"].(map[string]any)
	if ok {
		delete(exporter, "otlp-http")
		if len(exporter) == 0 {
			delete(otel, "exporter")
		}
	}
	if len(otel) == 0 {
		delete(settings, "otel")
	}
	return settings
}

// exporterTarget resolves endpoint and headers from the active backend
// configuration. Langfuse takes precedence when both are configured,
// since a bare OTLP endpoint is usually the local collector langfuse
// users do not run.
func (t *codexTool) exporterTarget() (string, map[string]any) {
	if t.cfg == nil {
		return "", nil
	}
	if t.cfg.Langfuse.PublicKey != "" && t.cfg.Langfuse.SecretKey != "" {
		base := t.cfg.Langfuse.BaseURL
		if base == "" {
			base = config.DefaultLangfuseBaseURL
		}
		auth := base64.StdEncoding.EncodeToString(
			[]byte(t.cfg.Langfuse.PublicKey + ":" + t.cfg.Langfuse.SecretKey))
		return strings.TrimSuffix(base, "/") + "/api/public/otel/v1/traces",
			map[string]any{"Authorization": "Basic " + auth}
	}
	if t.cfg.OTLP.Endpoint == "" {
		return "", nil
	}
	headers := map[string]any{}
	for k, v := range config.ParseHeaders(t.cfg.OTLP.Headers) {
		headers[k] = v
	}
	return t.cfg.OTLP.Endpoint, headers
}
