package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load(nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Enabled {
		t.Error("enabled must default to false")
	}
	if cfg.Service.Name != DefaultServiceName {
		t.Errorf("service name = %q", cfg.Service.Name)
	}
	if cfg.Limits.MaxContentChars != DefaultMaxContentChars {
		t.Errorf("max chars = %d", cfg.Limits.MaxContentChars)
	}
	if cfg.Langfuse.BaseURL != DefaultLangfuseBaseURL {
		t.Errorf("langfuse base = %q", cfg.Langfuse.BaseURL)
	}
	wantState := filepath.Join(os.Getenv("HOME"), ".cc-tracing-hooks", "state")
	if cfg.State.Dir != wantState {
		t.Errorf("state dir = %q, want %q", cfg.State.Dir, wantState)
	}
}

func TestLoadGlobalFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".cc-tracing-hooks")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	yaml := "enabled: true\nbackends:\n  - otlp\notlp:\n  endpoint: http://collector:4318\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(nil)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Enabled {
		t.Error("enabled not loaded from global file")
	}
	if len(cfg.Backends) != 1 || cfg.Backends[0] != "otlp" {
		t.Errorf("backends = %v", cfg.Backends)
	}
	if cfg.OTLP.Endpoint != "http://collector:4318" {
		t.Errorf("endpoint = %q", cfg.OTLP.Endpoint)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".cc-tracing-hooks")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"),
		[]byte("debug: false\nservice:\n  name: from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CC_TRACING_DEBUG", "true")
	t.Setenv("CC_TRACING_SERVICE_NAME", "from-env")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("env must override file")
	}
	if cfg.Service.Name != "from-env" {
		t.Errorf("service name = %q, want from-env", cfg.Service.Name)
	}
}

func TestStandardEnvFillsGaps(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://otel:4318")
	t.Setenv("LANGFUSE_PUBLIC_KEY", "pk-x")
	t.Setenv("LANGFUSE_SECRET_KEY", "sk-x")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.OTLP.Endpoint != "http://otel:4318" {
		t.Errorf("endpoint = %q", cfg.OTLP.Endpoint)
	}
	if cfg.Langfuse.PublicKey != "pk-x" || cfg.Langfuse.SecretKey != "sk-x" {
		t.Errorf("langfuse keys = %q/%q", cfg.Langfuse.PublicKey, cfg.Langfuse.SecretKey)
	}
}

func TestParseHeaders(t *testing.T) {
	got := ParseHeaders("a=1, b = two ,malformed,c=")
	if len(got) != 3 {
		t.Fatalf("headers = %v", got)
	}
	if got["a"] != "1" || got["b"] != "two" || got["c"] != "" {
		t.Errorf("headers = %v", got)
	}
}

func TestDurationOrDefault(t *testing.T) {
	d, err := DurationOrDefault("", "2s")
	if err != nil || d != 2*time.Second {
		t.Errorf("default: %v %v", d, err)
	}
	d, err = DurationOrDefault("150ms", "2s")
	if err != nil || d != 150*time.Millisecond {
		t.Errorf("explicit: %v %v", d, err)
	}
	if _, err = DurationOrDefault("nope", "2s"); err == nil {
		t.Error("invalid duration must error")
	}
}
