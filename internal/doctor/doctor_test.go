package doctor

import (
	"strings"
	"testing"
	"time"

	"github.com/mattjoyce/plugkit/internal/config"
	"github.com/mattjoyce/plugkit/internal/plugin"
	"github.com/mattjoyce/plugkit/internal/protocol"
)

func validConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Server.SessionCookie = "abc"
	cfg.Plugins["tagger"] = config.PluginConf{Args: map[string]any{"mode": "remove"}}
	return cfg
}

func registryWith(plugins ...*plugin.Plugin) *plugin.Registry {
	r := plugin.NewRegistry()
	for _, p := range plugins {
		_ = r.Add(p)
	}
	return r
}

func taggerPlugin() *plugin.Plugin {
	return &plugin.Plugin{
		ID:     "tagger",
		Name:   "tagger",
		Exec:   []string{"/opt/plugins/tagger/tagger"},
		ErrLog: protocol.ErrorLevel,
		Tasks:  plugin.Tasks{{Name: "add"}, {Name: "remove"}},
	}
}

func hasIssue(issues []Issue, category, field string) bool {
	for _, i := range issues {
		if i.Category == category && i.Field == field {
			return true
		}
	}
	return false
}

func TestValidate_ValidConfig(t *testing.T) {
	t.Parallel()
	r := New(validConfig(), registryWith(taggerPlugin())).Validate()
	if !r.Valid {
		t.Fatalf("expected valid, got errors: %v", r.Errors)
	}
	if len(r.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", r.Warnings)
	}
	if got := FormatHuman(r); got != "Configuration valid.\n" {
		t.Fatalf("FormatHuman = %q", got)
	}
}

func TestValidate_InvalidStruct(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.PluginsDir = ""
	r := New(cfg, registryWith(taggerPlugin())).Validate()
	if r.Valid {
		t.Fatal("expected invalid config")
	}
	if !strings.Contains(r.Errors[0].Message, "plugins_dir is required") {
		t.Fatalf("unexpected error: %v", r.Errors[0])
	}
}

func TestValidate_UnknownPluginRef(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Plugins["ghost"] = config.PluginConf{}
	r := New(cfg, registryWith(taggerPlugin())).Validate()
	if r.Valid {
		t.Fatal("expected invalid config")
	}
	if !hasIssue(r.Errors, "plugin_refs", "plugins.ghost") {
		t.Fatalf("expected plugin_refs error, got %v", r.Errors)
	}
}

func TestValidate_UnknownMode(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Plugins["tagger"] = config.PluginConf{Args: map[string]any{"mode": "explode"}}
	r := New(cfg, registryWith(taggerPlugin())).Validate()
	if !r.Valid {
		t.Fatalf("unknown mode should only warn, got %v", r.Errors)
	}
	if !hasIssue(r.Warnings, "plugin_refs", "plugins.tagger.args.mode") {
		t.Fatalf("expected mode warning, got %v", r.Warnings)
	}
	if !strings.Contains(r.Warnings[0].Message, "add, remove") {
		t.Fatalf("warning should list tasks: %q", r.Warnings[0].Message)
	}
}

func TestValidate_Warnings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mutate   func(*config.Config, *plugin.Plugin)
		category string
		field    string
	}{
		{
			name: "grace swallows run timeout",
			mutate: func(c *config.Config, _ *plugin.Plugin) {
				c.Timeouts.Run = time.Second
				c.Timeouts.Grace = 2 * time.Second
			},
			category: "timeouts",
			field:    "timeouts.grace",
		},
		{
			name: "plugin timeout inside grace",
			mutate: func(c *config.Config, _ *plugin.Plugin) {
				c.Plugins["tagger"] = config.PluginConf{Timeout: time.Second}
			},
			category: "timeouts",
			field:    "plugins.tagger.timeout",
		},
		{
			name:     "discarded stderr",
			mutate:   func(_ *config.Config, p *plugin.Plugin) { p.ErrLog = protocol.NoLevel },
			category: "plugins",
			field:    "tagger.errLog",
		},
		{
			name:     "exec on PATH",
			mutate:   func(_ *config.Config, p *plugin.Plugin) { p.Exec = []string{"python3", "tagger.py"} },
			category: "plugins",
			field:    "tagger.exec",
		},
		{
			name:     "unknown disabled plugin",
			mutate:   func(c *config.Config, _ *plugin.Plugin) { c.Disabled = []string{"tagger", "ghost"} },
			category: "plugin_refs",
			field:    "disabled[1]",
		},
		{
			name:     "exposed API without token",
			mutate:   func(c *config.Config, _ *plugin.Plugin) { c.API.Listen = "0.0.0.0:8080" },
			category: "api",
			field:    "api.token",
		},
		{
			name:     "no session",
			mutate:   func(c *config.Config, _ *plugin.Plugin) { c.Server.SessionCookie = "" },
			category: "server",
			field:    "server.session_cookie",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			p := taggerPlugin()
			tt.mutate(cfg, p)
			r := New(cfg, registryWith(p)).Validate()
			if !r.Valid {
				t.Fatalf("expected valid, got errors: %v", r.Errors)
			}
			if !hasIssue(r.Warnings, tt.category, tt.field) {
				t.Fatalf("expected %s warning on %s, got %v", tt.category, tt.field, r.Warnings)
			}
		})
	}
}

func TestValidate_LoopbackAPIWithoutToken(t *testing.T) {
	t.Parallel()
	for _, listen := range []string{"127.0.0.1:8080", "localhost:9000", "[::1]:8080"} {
		cfg := validConfig()
		cfg.API.Listen = listen
		r := New(cfg, registryWith(taggerPlugin())).Validate()
		if hasIssue(r.Warnings, "api", "api.token") {
			t.Fatalf("%s: loopback listener should not warn", listen)
		}
	}
}

func TestValidate_NoPlugins(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	delete(cfg.Plugins, "tagger")
	r := New(cfg, registryWith()).Validate()
	if !hasIssue(r.Warnings, "plugins", "plugins_dir") {
		t.Fatalf("expected empty plugins_dir warning, got %v", r.Warnings)
	}
}

func TestFormatHuman(t *testing.T) {
	t.Parallel()
	r := &Result{
		Valid:    false,
		Errors:   []Issue{{Category: "plugin_refs", Field: "plugins.ghost", Message: "missing"}},
		Warnings: []Issue{{Category: "server", Message: "no cookie"}},
	}
	got := FormatHuman(r)
	for _, want := range []string{
		"Configuration invalid (1 error(s), 1 warning(s))",
		"  ERROR [plugin_refs] plugins.ghost: missing",
		"  WARN  [server] no cookie",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("FormatHuman missing %q:\n%s", want, got)
		}
	}

	out, err := FormatJSON(r)
	if err != nil {
		t.Fatalf("FormatJSON: %v", err)
	}
	if !strings.Contains(out, `"valid": false`) {
		t.Fatalf("unexpected JSON: %s", out)
	}
}
