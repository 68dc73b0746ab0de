package config

import (
	"slices"
	"time"

	"github.com/mattjoyce/plugkit/internal/protocol"
)

// Config represents the complete plugkit host configuration.
type Config struct {
	Service    ServiceConfig         `yaml:"service"`
	State      StateConfig           `yaml:"state"`
	API        APIConfig             `yaml:"api,omitempty"`
	PluginsDir string                `yaml:"plugins_dir" validate:"required"`
	Server     ServerConfig          `yaml:"server"`
	Timeouts   TimeoutsConfig        `yaml:"timeouts"`
	Progress   ProgressConfig        `yaml:"progress"`
	Plugins    map[string]PluginConf `yaml:"plugins,omitempty" validate:"dive"`
	// Disabled lists plugin IDs that are discovered but never run.
	Disabled   []string              `yaml:"disabled,omitempty" validate:"dive,required"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name      string `yaml:"name" validate:"required"`
	LogLevel  string `yaml:"log_level" validate:"oneof=trace debug info warn error"`
	LogFormat string `yaml:"log_format" validate:"oneof=json text"`
}

// StateConfig defines where run history is stored.
type StateConfig struct {
	Path string `yaml:"path" validate:"required"`
}

// APIConfig defines the read-only HTTP API.
type APIConfig struct {
	Listen string `yaml:"listen" validate:"required,hostname_port"`
	// Token, when set, is required as a bearer token on every route except
	// /healthz and /metrics.
	Token string `yaml:"token,omitempty"`
}

// ServerConfig is the backend connection handed to every plugin run.
type ServerConfig struct {
	Scheme        string `yaml:"scheme" validate:"oneof=http https"`
	Host          string `yaml:"host,omitempty"`
	Port          int    `yaml:"port" validate:"min=0,max=65535"`
	SessionCookie string `yaml:"session_cookie,omitempty"`
}

// TimeoutsConfig bounds plugin runs.
type TimeoutsConfig struct {
	// Run is the wall-clock limit of one run.
	Run time.Duration `yaml:"run" validate:"gt=0"`
	// Grace is how long a plugin gets between SIGTERM and SIGKILL.
	Grace time.Duration `yaml:"grace" validate:"gte=0"`
}

// ProgressConfig controls how progress updates are persisted.
type ProgressConfig struct {
	// PersistRate is the maximum number of progress writes per second per run.
	PersistRate float64 `yaml:"persist_rate" validate:"gt=0"`
}

// PluginConf holds per-plugin overrides.
type PluginConf struct {
	Timeout time.Duration  `yaml:"timeout,omitempty" validate:"gte=0"`
	Args    map[string]any `yaml:"args,omitempty"`
}

// Connection returns the server connection plugins receive.
func (s ServerConfig) Connection() protocol.ServerConnection {
	conn := protocol.ServerConnection{
		Scheme: s.Scheme,
		Host:   s.Host,
		Port:   s.Port,
	}
	if s.SessionCookie != "" {
		conn.SessionCookie = &protocol.SessionCookie{Name: "session", Value: s.SessionCookie}
	}
	return conn
}

// RunTimeout returns the run limit for a plugin, honoring its override.
func (c *Config) RunTimeout(pluginID string) time.Duration {
	if pc, ok := c.Plugins[pluginID]; ok && pc.Timeout > 0 {
		return pc.Timeout
	}
	return c.Timeouts.Run
}

// PluginDisabled reports whether the plugin is listed in Disabled.
func (c *Config) PluginDisabled(pluginID string) bool {
	return slices.Contains(c.Disabled, pluginID)
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "plugkit",
			LogLevel:  "info",
			LogFormat: "text",
		},
		State: StateConfig{
			Path: "./data/plugkit.db",
		},
		API: APIConfig{
			Listen: "127.0.0.1:8080",
		},
		PluginsDir: "./plugins",
		Server: ServerConfig{
			Scheme: "http",
			Port:   9999,
		},
		Timeouts: TimeoutsConfig{
			Run:   10 * time.Minute,
			Grace: 5 * time.Second,
		},
		Progress: ProgressConfig{
			PersistRate: 2,
		},
		Plugins: make(map[string]PluginConf),
	}
}
