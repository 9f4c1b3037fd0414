package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/samaelod/fixdesk/session"
	"github.com/samaelod/fixdesk/types"
)

const envPrefix = "FIXDESK_"

type Config struct {
	LogLines      int           `koanf:"log_lines"`
	LogsDir       string        `koanf:"logs_dir"`
	RecentDir     string        `koanf:"recent_dir"`
	LogLevel      string        `koanf:"log_level"`
	MetricsAddr   string        `koanf:"metrics_addr"`
	ShutdownGrace time.Duration `koanf:"shutdown_grace"`

	Session  SessionConfig  `koanf:"session"`
	Dispatch DispatchConfig `koanf:"dispatch"`
	Sequence SequenceConfig `koanf:"sequence"`
	Defaults DefaultsConfig `koanf:"defaults"`
}

// SessionConfig is engine tuning that the connect form does not expose.
type SessionConfig struct {
	BeginString       string `koanf:"begin_string"`
	DefaultApplVerID  string `koanf:"default_appl_ver_id"`
	HeartbeatInterval int    `koanf:"heartbeat_interval"`
	ReconnectInterval int    `koanf:"reconnect_interval"`
	LogoutTimeout     int    `koanf:"logout_timeout"`
	ResetOnLogon      bool   `koanf:"reset_on_logon"`
	ResetOnDisconnect bool   `koanf:"reset_on_disconnect"`
}

type DispatchConfig struct {
	Interval    time.Duration `koanf:"interval"`
	MaxAttempts int           `koanf:"max_attempts"`
}

type SequenceConfig struct {
	RefreshInterval time.Duration `koanf:"refresh_interval"`
}

// DefaultsConfig pre-fills the connect form.
type DefaultsConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
	Role string `koanf:"role"`
}

func Default() *Config {
	return &Config{
		LogLines:      1000,
		LogsDir:       "logs",
		RecentDir:     "recent",
		LogLevel:      "info",
		ShutdownGrace: time.Second,
		Session: SessionConfig{
			BeginString:       "FIXT.1.1",
			DefaultApplVerID:  "FIX.5.0",
			HeartbeatInterval: 30,
			ReconnectInterval: 60,
			LogoutTimeout:     5,
			ResetOnLogon:      true,
			ResetOnDisconnect: true,
		},
		Dispatch: DispatchConfig{Interval: time.Second},
		Sequence: SequenceConfig{RefreshInterval: time.Second},
		Defaults: DefaultsConfig{Host: "127.0.0.1", Port: 9878, Role: "initiator"},
	}
}

// DefaultPaths are searched, in order, when no path is given.
func DefaultPaths() []string {
	return []string{
		"fixdesk.yaml",
		".fixdesk.yaml",
		filepath.Join(os.Getenv("HOME"), ".config", "fixdesk", "config.yaml"),
	}
}

// Load layers defaults, the YAML file at path (or the first of DefaultPaths
// that exists) and FIXDESK_* environment variables. A double underscore in a
// variable name separates nesting levels: FIXDESK_SESSION__HEARTBEAT_INTERVAL.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path == "" {
		for _, p := range DefaultPaths() {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("load %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults restores defaults for values a file explicitly zeroed.
func (c *Config) applyDefaults() {
	d := Default()
	if c.LogLines <= 0 {
		c.LogLines = d.LogLines
	}
	if c.LogsDir == "" {
		c.LogsDir = d.LogsDir
	}
	if c.RecentDir == "" {
		c.RecentDir = d.RecentDir
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.Session.BeginString == "" {
		c.Session.BeginString = d.Session.BeginString
	}
	if c.Session.HeartbeatInterval <= 0 {
		c.Session.HeartbeatInterval = d.Session.HeartbeatInterval
	}
	if c.Dispatch.Interval <= 0 {
		c.Dispatch.Interval = d.Dispatch.Interval
	}
	if c.Sequence.RefreshInterval <= 0 {
		c.Sequence.RefreshInterval = d.Sequence.RefreshInterval
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = d.ShutdownGrace
	}
}

func (c *Config) Validate() error {
	if c.Dispatch.MaxAttempts < 0 {
		return fmt.Errorf("dispatch.max_attempts must be >= 0, got %d", c.Dispatch.MaxAttempts)
	}
	if c.Defaults.Port < 0 || c.Defaults.Port > 65535 {
		return fmt.Errorf("defaults.port %d out of range", c.Defaults.Port)
	}
	if _, err := types.ParseRole(c.Defaults.Role); err != nil {
		return fmt.Errorf("defaults.role: %w", err)
	}
	return nil
}

// DefaultEndpoint pre-fills the connect form. Comp ids are left empty.
func (c *Config) DefaultEndpoint() types.SessionEndpoint {
	role, _ := types.ParseRole(c.Defaults.Role)
	return types.SessionEndpoint{Host: c.Defaults.Host, Port: c.Defaults.Port, Role: role}
}

// EngineSettings is the engine tuning shared by every session.
func (c *Config) EngineSettings() session.Settings {
	return session.Settings{
		BeginString:       c.Session.BeginString,
		DefaultApplVerID:  c.Session.DefaultApplVerID,
		HeartBtInt:        c.Session.HeartbeatInterval,
		ReconnectInterval: c.Session.ReconnectInterval,
		LogoutTimeout:     c.Session.LogoutTimeout,
		ResetOnLogon:      c.Session.ResetOnLogon,
		ResetOnDisconnect: c.Session.ResetOnDisconnect,
	}
}
