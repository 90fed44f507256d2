package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/HikaruEgashira/cc-tracing-hooks/internal/pathutil"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
)

// Config is the fully resolved configuration handed to the pipeline.
// Layering, lowest to highest precedence: built-in defaults, global file
// (~/.cc-tracing-hooks/config.yaml), project file (./.cc-tracing-hooks.yaml),
// CC_TRACING_* environment variables, CLI flags.
type Config struct {
	Enabled  bool           `koanf:"enabled"`
	Debug    bool           `koanf:"debug"`
	Backends []string       `koanf:"backends"`
	Service  ServiceConfig  `koanf:"service"`
	OTLP     OTLPConfig     `koanf:"otlp"`
	Langfuse LangfuseConfig `koanf:"langfuse"`
	Limits   LimitsConfig   `koanf:"limits"`
	State    StateConfig    `koanf:"state"`
}

type ServiceConfig struct {
	Name string `koanf:"name"`
}

type OTLPConfig struct {
	Endpoint string `koanf:"endpoint"`
	Headers  string `koanf:"headers"` // comma-separated k=v pairs
	Insecure bool   `koanf:"insecure"`
}

type LangfuseConfig struct {
	PublicKey string `koanf:"public_key"`
	SecretKey string `koanf:"secret_key"`
	BaseURL   string `koanf:"base_url"`
}

type LimitsConfig struct {
	MaxContentChars int `koanf:"max_content_chars"`
}

type StateConfig struct {
	Dir          string `koanf:"dir"`
	LockTimeout  string `koanf:"lock_timeout"`
	LockRetry    string `koanf:"lock_retry"`
	LockMaxRetry int    `koanf:"lock_max_retry"`
}

const (
	DefaultServiceName       = "cc-tracing-hooks"
	DefaultLangfuseBaseURL   = "https://cloud.langfuse.com"
	DefaultMaxContentChars   = 20000
	DefaultStateLockTimeout  = "2s"
	DefaultStateLockRetry    = "50ms"
	DefaultStateLockMaxRetry = 40
	DefaultLogLevel          = "info"

	EnvPrefix = "CC_TRACING_"
)

// GlobalConfigPath returns ~/.cc-tracing-hooks/config.yaml.
func GlobalConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cc-tracing-hooks", "config.yaml"), nil
}

// ProjectConfigPath returns ./.cc-tracing-hooks.yaml relative to cwd.
func ProjectConfigPath() string {
	return ".cc-tracing-hooks.yaml"
}

// DefaultStateDir returns ~/.cc-tracing-hooks/state.
func DefaultStateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cc-tracing-hooks", "state"), nil
}

// Load resolves the configuration. cmd may be nil (no flag layer).
func Load(cmd *cobra.Command) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"enabled":                  false,
		"debug":                    false,
		"backends":                 []string{},
		"service.name":             DefaultServiceName,
		"langfuse.base_url":        DefaultLangfuseBaseURL,
		"limits.max_content_chars": DefaultMaxContentChars,
		"state.dir":                "",
		"state.lock_timeout":       DefaultStateLockTimeout,
		"state.lock_retry":         DefaultStateLockRetry,
		"state.lock_max_retry":     DefaultStateLockMaxRetry,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	configPath := ""
	if cmd != nil {
		if flag := cmd.Flags().Lookup("config"); flag != nil {
			configPath = strings.TrimSpace(flag.Value.String())
		}
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, err
		}
	} else {
		if globalPath, err := GlobalConfigPath(); err == nil {
			if err := k.Load(file.Provider(globalPath), yaml.Parser()); err != nil {
				slog.Debug("Global config not found or invalid", "path", globalPath, "error", err)
			}
		}
		projectPath := ProjectConfigPath()
		if err := k.Load(file.Provider(projectPath), yaml.Parser()); err != nil {
			slog.Debug("Project config not found or invalid", "path", projectPath, "error", err)
		}
	}

	// Environment variables override files.
	k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".", -1)
	}), nil)

	if cmd != nil {
		k.Load(posflag.Provider(cmd.Flags(), ".", k), nil)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	// Standard exporter env vars fill gaps the layered config left empty.
	if cfg.OTLP.Endpoint == "" {
		cfg.OTLP.Endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	if cfg.OTLP.Headers == "" {
		cfg.OTLP.Headers = os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")
	}
	if cfg.Langfuse.PublicKey == "" {
		cfg.Langfuse.PublicKey = os.Getenv("LANGFUSE_PUBLIC_KEY")
	}
	if cfg.Langfuse.SecretKey == "" {
		cfg.Langfuse.SecretKey = os.Getenv("LANGFUSE_SECRET_KEY")
	}
	if base := os.Getenv("LANGFUSE_BASE_URL"); base != "" && cfg.Langfuse.BaseURL == DefaultLangfuseBaseURL {
		cfg.Langfuse.BaseURL = base
	}

	if err := normalizePathFields(&cfg); err != nil {
		return nil, err
	}

	if cfg.State.Dir == "" {
		dir, err := DefaultStateDir()
		if err != nil {
			return nil, err
		}
		cfg.State.Dir = dir
	}

	if cfg.Limits.MaxContentChars <= 0 {
		cfg.Limits.MaxContentChars = DefaultMaxContentChars
	}

	return &cfg, nil
}

// ParseHeaders splits a comma-separated "k=v,k2=v2" header string.
// Pairs without an equals sign are dropped.
func ParseHeaders(raw string) map[string]string {
	headers := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key != "" {
			headers[key] = value
		}
	}
	return headers
}

func normalizePathFields(cfg *Config) error {
	stateDir, err := pathutil.Expand(cfg.State.Dir)
	if err != nil {
		return err
	}
	if stateDir != "" {
		cfg.State.Dir = stateDir
	}
	return nil
}
