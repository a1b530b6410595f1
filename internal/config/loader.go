package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Loader hydrates the run configuration while respecting env > file > default precedence.
type Loader struct {
	envPrefix string
	files     []string
}

// NewLoader prepares a config hydrator for the given env prefix and optional files.
func NewLoader(envPrefix string, files ...string) *Loader {
	return &Loader{
		envPrefix: envPrefix,
		files:     files,
	}
}

// Load assembles the effective snapshot following the documented precedence rules.
func (l *Loader) Load(ctx context.Context) (Config, error) {
	cfg, err := l.load(ctx)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadProbe is Load for probe runs: only target and fixtures are validated.
func (l *Loader) LoadProbe(ctx context.Context) (Config, error) {
	cfg, err := l.load(ctx)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.ValidateProbe(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (l *Loader) load(ctx context.Context) (Config, error) {
	defaultCfg := DefaultConfig()
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(structToMap(defaultCfg), "."), nil); err != nil {
		return Config{}, fmt.Errorf("config: load defaults: %w", err)
	}

	for _, path := range l.files {
		if path == "" {
			continue
		}
		select {
		case <-ctx.Done():
			return Config{}, ctx.Err()
		default:
		}
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("config: file %s not found", path)
			}
			return Config{}, fmt.Errorf("config: stat %s: %w", path, err)
		}
		parser, err := parserFor(path)
		if err != nil {
			return Config{}, err
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return Config{}, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	if l.envPrefix != "" {
		canonical := map[string]string{
			"target.baseurl":             "target.baseURL",
			"target.useragent":           "target.userAgent",
			"fixtures.createname":        "fixtures.createName",
			"fixtures.createinfo":        "fixtures.createInfo",
			"fixtures.updatename":        "fixtures.updateName",
			"fixtures.updateinfo":        "fixtures.updateInfo",
			"fake.store.redis.keyprefix": "fake.store.redis.keyPrefix",
		}
		transform := func(s string) string {
			// Double underscores signal a nested path (TARGET__BASEURL -> target.baseURL).
			key := strings.TrimPrefix(s, l.envPrefix+"_")
			key = strings.ReplaceAll(key, "__", ".")
			lower := strings.ToLower(key)
			if mapped, ok := canonical[lower]; ok {
				return mapped
			}
			key = strings.ReplaceAll(key, "_", "")
			return strings.ToLower(key)
		}
		if err := k.Load(env.Provider(l.envPrefix, ".", transform), nil); err != nil {
			return Config{}, fmt.Errorf("config: load env: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	case ".toml":
		return toml.Parser(), nil
	default:
		return nil, fmt.Errorf("config: unsupported file extension for %s", path)
	}
}

// structToMap converts DefaultConfig into a map for the koanf confmap provider.
func structToMap(cfg Config) map[string]any {
	return map[string]any{
		"target": map[string]any{
			"baseURL":   cfg.Target.BaseURL,
			"timeout":   cfg.Target.Timeout.String(),
			"userAgent": cfg.Target.UserAgent,
		},
		"fixtures": map[string]any{
			"createName": cfg.Fixtures.CreateName,
			"createInfo": cfg.Fixtures.CreateInfo,
			"updateName": cfg.Fixtures.UpdateName,
			"updateInfo": cfg.Fixtures.UpdateInfo,
		},
		"logging": map[string]any{
			"level":  cfg.Logging.Level,
			"format": cfg.Logging.Format,
		},
		"metrics": map[string]any{
			"textfile": cfg.Metrics.Textfile,
		},
		"fake": map[string]any{
			"listen": map[string]any{
				"address": cfg.Fake.Listen.Address,
				"port":    cfg.Fake.Listen.Port,
			},
			"store": map[string]any{
				"backend": cfg.Fake.Store.Backend,
				"redis": map[string]any{
					"address":   cfg.Fake.Store.Redis.Address,
					"username":  cfg.Fake.Store.Redis.Username,
					"password":  cfg.Fake.Store.Redis.Password,
					"db":        cfg.Fake.Store.Redis.DB,
					"keyPrefix": cfg.Fake.Store.Redis.KeyPrefix,
				},
			},
		},
	}
}
