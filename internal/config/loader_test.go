package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		env     map[string]string
		wantErr string
		checkFn func(t *testing.T, cfg *Config)
	}{
		{
			name: "minimal valid config",
			yaml: `
state:
  path: ./test.db
plugins_dir: ./plugins
`,
			checkFn: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "./test.db", cfg.State.Path)
				assert.Equal(t, "./plugins", cfg.PluginsDir)
				assert.Equal(t, "plugkit", cfg.Service.Name)
				assert.Equal(t, 9999, cfg.Server.Port)
				assert.Equal(t, 10*time.Minute, cfg.Timeouts.Run)
				assert.NotNil(t, cfg.Plugins)
			},
		},
		{
			name: "full config",
			yaml: `
service:
  name: media-host
  log_level: debug
  log_format: json
api:
  listen: 0.0.0.0:9090
server:
  scheme: https
  host: stash.lan
  port: 443
  session_cookie: abc
timeouts:
  run: 30s
  grace: 2s
progress:
  persist_rate: 0.5
plugins:
  tagger:
    timeout: 5s
    args:
      tag: Favourite
`,
			checkFn: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "debug", cfg.Service.LogLevel)
				assert.Equal(t, "0.0.0.0:9090", cfg.API.Listen)
				assert.Equal(t, 30*time.Second, cfg.Timeouts.Run)
				assert.Equal(t, 2*time.Second, cfg.Timeouts.Grace)
				assert.InDelta(t, 0.5, cfg.Progress.PersistRate, 1e-9)
				assert.Equal(t, 5*time.Second, cfg.RunTimeout("tagger"))
				assert.Equal(t, 30*time.Second, cfg.RunTimeout("other"))
				assert.Equal(t, "Favourite", cfg.Plugins["tagger"].Args["tag"])

				conn := cfg.Server.Connection()
				assert.Equal(t, "https://stash.lan:443", conn.URL().String())
				require.NotNil(t, conn.SessionCookie)
				assert.Equal(t, "abc", conn.SessionCookie.Value)
			},
		},
		{
			name: "env interpolation",
			yaml: `
server:
  session_cookie: ${PLUGKIT_TEST_COOKIE}
`,
			env: map[string]string{"PLUGKIT_TEST_COOKIE": "from-env"},
			checkFn: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "from-env", cfg.Server.SessionCookie)
			},
		},
		{
			name: "unset env var rejected",
			yaml: `
server:
  session_cookie: ${PLUGKIT_TEST_UNSET_COOKIE}
`,
			wantErr: "PLUGKIT_TEST_UNSET_COOKIE",
		},
		{
			name:    "bad log level",
			yaml:    "service:\n  log_level: loud\n",
			wantErr: "service.log_level",
		},
		{
			name:    "bad scheme",
			yaml:    "server:\n  scheme: ftp\n",
			wantErr: "server.scheme",
		},
		{
			name:    "zero run timeout",
			yaml:    "timeouts:\n  run: 0s\n",
			wantErr: "timeouts.run",
		},
		{
			name:    "empty plugins dir",
			yaml:    "plugins_dir: \"\"\n",
			wantErr: "plugins_dir is required",
		},
		{
			name:    "negative plugin timeout",
			yaml:    "plugins:\n  tagger:\n    timeout: -1s\n",
			wantErr: "timeout",
		},
		{
			name: "disabled plugins",
			yaml: "disabled: [tagger, legacy]\n",
			checkFn: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []string{"tagger", "legacy"}, cfg.Disabled)
				assert.True(t, cfg.PluginDisabled("legacy"))
				assert.False(t, cfg.PluginDisabled("other"))
			},
		},
		{
			name:    "empty disabled entry",
			yaml:    "disabled: [tagger, \"\"]\n",
			wantErr: "disabled[1] is required",
		},
		{
			name:    "malformed yaml",
			yaml:    "service: [\n",
			wantErr: "failed to parse config YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o600))

			cfg, err := Load(path)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.checkFn != nil {
				tt.checkFn(t, cfg)
			}
		})
	}
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("service:\n  name: dir\n"), 0o600))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "dir", cfg.Service.Name)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "config file not found")
}

func TestLoadOrDefaultUsesEnvPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plugkit.yaml")
	require.NoError(t, os.WriteFile(path, []byte("service:\n  name: from-env\n"), 0o600))
	t.Setenv(EnvConfigPath, path)

	cfg, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Service.Name)
}

func TestDefaultsAreValid(t *testing.T) {
	assert.NoError(t, Validate(Defaults()))
}

func TestConnectionWithoutCookie(t *testing.T) {
	conn := Defaults().Server.Connection()
	assert.Nil(t, conn.SessionCookie)
	assert.Equal(t, "http://localhost:9999", conn.URL().String())
}
