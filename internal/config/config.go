// Package config loads wslink settings. Sources, lowest priority first:
// defaults, YAML file, WSLINK_ environment variables, then explicit
// overrides (command line flags).
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/matst80/wslink/internal/registry"
)

// EnvPrefix marks environment variables read by Load. WSLINK_REDIS_ADDR maps to redis.addr.
const EnvPrefix = "WSLINK_"

type Control struct {
	Addr string `koanf:"addr"`
}

type Handshake struct {
	Timeout     time.Duration `koanf:"timeout"`
	TokenHeader string        `koanf:"tokenheader"`
	UserAgent   string        `koanf:"useragent"`
	ReadLimit   int64         `koanf:"readlimit"`
}

type Close struct {
	Timeout time.Duration `koanf:"timeout"`
}

type Redis struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	// Publish mirrors relayed messages to Redis pub/sub.
	Publish bool `koanf:"publish"`
}

type RateLimit struct {
	PerSecond float64 `koanf:"persecond"`
	Global    float64 `koanf:"global"`
	Burst     int     `koanf:"burst"`
}

type Breaker struct {
	Failures uint32        `koanf:"failures"`
	Cooldown time.Duration `koanf:"cooldown"`
}

// Config holds all runtime configuration.
type Config struct {
	Debug     bool             `koanf:"debug"`
	Control   Control          `koanf:"control"`
	Handshake Handshake        `koanf:"handshake"`
	Close     Close            `koanf:"close"`
	Redis     Redis            `koanf:"redis"`
	RateLimit RateLimit        `koanf:"ratelimit"`
	Breaker   Breaker          `koanf:"breaker"`
	Servers   []registry.Entry `koanf:"servers"`
}

func Default() Config {
	return Config{
		Control:   Control{Addr: "127.0.0.1:9300"},
		Handshake: Handshake{Timeout: 30 * time.Second, TokenHeader: "X-API-TOKEN", UserAgent: "wslink"},
		Close:     Close{Timeout: 5 * time.Second},
		RateLimit: RateLimit{PerSecond: 1, Burst: 3},
		Breaker:   Breaker{Failures: 5, Cooldown: 30 * time.Second},
	}
}

// Load reads path (optional; a missing file is not an error), the
// environment and then overrides, keyed by koanf path ("control.addr").
func Load(path string, overrides map[string]any) (Config, error) {
	cfg := Default()
	k := koanf.New(".")
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return cfg, fmt.Errorf("load config file %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("stat config file %s: %w", path, err)
		}
	}
	envTransformer := func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "_", ".")
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformer), nil); err != nil {
		return cfg, fmt.Errorf("load env: %w", err)
	}
	if len(overrides) > 0 {
		if err := k.Load(mapProvider(overrides), nil); err != nil {
			return cfg, fmt.Errorf("load overrides: %w", err)
		}
	}
	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Handshake.Timeout <= 0 {
		return errors.New("handshake.timeout must be positive")
	}
	if c.Close.Timeout <= 0 {
		return errors.New("close.timeout must be positive")
	}
	if c.Handshake.TokenHeader == "" {
		return errors.New("handshake.tokenheader must not be empty")
	}
	if c.Redis.Publish && c.Redis.Addr == "" {
		return errors.New("redis.publish requires redis.addr")
	}
	seen := make(map[string]bool, len(c.Servers))
	for i, s := range c.Servers {
		if s.ID == "" {
			return fmt.Errorf("servers[%d]: id is required", i)
		}
		if seen[s.ID] {
			return fmt.Errorf("servers[%d]: duplicate id %q", i, s.ID)
		}
		seen[s.ID] = true
		if s.Endpoint == "" {
			return fmt.Errorf("servers[%d] (%s): endpoint is required", i, s.ID)
		}
	}
	return nil
}

// mapProvider feeds a plain map into koanf.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("config: map provider does not support ReadBytes")
}

func (m mapProvider) Read() (map[string]any, error) {
	return m, nil
}
