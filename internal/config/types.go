package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the public demo API the suite targets unless told otherwise.
const DefaultBaseURL = "https://api.restful-api.dev/"

// Config holds every option the probe and the fake objects API read at startup.
type Config struct {
	Target   TargetConfig  `koanf:"target"`
	Fixtures FixtureConfig `koanf:"fixtures"`
	Logging  LoggingConfig `koanf:"logging"`
	Metrics  MetricsConfig `koanf:"metrics"`
	Fake     FakeAPIConfig `koanf:"fake"`
}

// TargetConfig describes the objects API under test.
type TargetConfig struct {
	BaseURL   string        `koanf:"baseURL"`
	Timeout   time.Duration `koanf:"timeout"`
	UserAgent string        `koanf:"userAgent"`
}

// FixtureConfig carries the values written by the create and update scenarios.
type FixtureConfig struct {
	CreateName string `koanf:"createName"`
	CreateInfo string `koanf:"createInfo"`
	UpdateName string `koanf:"updateName"`
	UpdateInfo string `koanf:"updateInfo"`
}

// LoggingConfig expresses log level and format.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// MetricsConfig controls where run metrics are dumped once the suite finishes.
type MetricsConfig struct {
	Textfile string `koanf:"textfile"`
}

// FakeAPIConfig configures the in-process objects API served with -serve.
type FakeAPIConfig struct {
	Listen ListenConfig    `koanf:"listen"`
	Store  FakeStoreConfig `koanf:"store"`
}

// ListenConfig instructs the HTTP listener about bind address and port.
type ListenConfig struct {
	Address string `koanf:"address"`
	Port    int    `koanf:"port"`
}

// FakeStoreConfig selects where the fake API keeps its objects.
type FakeStoreConfig struct {
	Backend string           `koanf:"backend"`
	Redis   RedisStoreConfig `koanf:"redis"`
}

// RedisStoreConfig locates the valkey/redis server behind the redis backend.
type RedisStoreConfig struct {
	Address   string `koanf:"address"`
	Username  string `koanf:"username"`
	Password  string `koanf:"password"`
	DB        int    `koanf:"db"`
	KeyPrefix string `koanf:"keyPrefix"`
}

// Validate enforces invariants that keep a run predictable before any request is sent.
func (c *Config) Validate() error {
	if err := c.ValidateProbe(); err != nil {
		return err
	}
	if c.Fake.Listen.Port < 0 || c.Fake.Listen.Port > 65535 {
		return fmt.Errorf("config: fake.listen.port invalid: %d", c.Fake.Listen.Port)
	}
	switch strings.TrimSpace(strings.ToLower(c.Fake.Store.Backend)) {
	case "", "memory":
	case "redis":
		if strings.TrimSpace(c.Fake.Store.Redis.Address) == "" {
			return errors.New("config: fake.store.redis.address required for redis backend")
		}
	default:
		return fmt.Errorf("config: fake.store.backend unsupported: %s", c.Fake.Store.Backend)
	}
	return nil
}

// ValidateProbe checks only the sections a probe run reads (target and
// fixtures), so fake API settings cannot block a run against a remote target.
func (c *Config) ValidateProbe() error {
	if c == nil {
		return errors.New("config: nil")
	}
	base := strings.TrimSpace(c.Target.BaseURL)
	if base == "" {
		return errors.New("config: target.baseURL required")
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return fmt.Errorf("config: target.baseURL invalid: %w", err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("config: target.baseURL must be an absolute http(s) URL: %q", base)
	}
	if c.Target.Timeout <= 0 {
		return fmt.Errorf("config: target.timeout invalid: %s", c.Target.Timeout)
	}
	fixtures := map[string]string{
		"fixtures.createName": c.Fixtures.CreateName,
		"fixtures.createInfo": c.Fixtures.CreateInfo,
		"fixtures.updateName": c.Fixtures.UpdateName,
		"fixtures.updateInfo": c.Fixtures.UpdateInfo,
	}
	for _, key := range []string{"fixtures.createName", "fixtures.createInfo", "fixtures.updateName", "fixtures.updateInfo"} {
		if strings.TrimSpace(fixtures[key]) == "" {
			return fmt.Errorf("config: %s required", key)
		}
	}
	if c.Fixtures.CreateName == c.Fixtures.UpdateName {
		return errors.New("config: fixtures.updateName must differ from fixtures.createName")
	}
	return nil
}

// DefaultConfig returns the baseline values used when nothing overrides them.
func DefaultConfig() Config {
	return Config{
		Target: TargetConfig{
			BaseURL:   DefaultBaseURL,
			Timeout:   30 * time.Second,
			UserAgent: "objectprobe",
		},
		Fixtures: FixtureConfig{
			CreateName: "Test Object",
			CreateInfo: "Sample Data",
			UpdateName: "Updated Object",
			UpdateInfo: "Updated Data",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Fake: FakeAPIConfig{
			Listen: ListenConfig{
				Address: "127.0.0.1",
				Port:    8080,
			},
			Store: FakeStoreConfig{
				Backend: "memory",
				Redis: RedisStoreConfig{
					KeyPrefix: "objectprobe:objects:",
				},
			},
		},
	}
}
