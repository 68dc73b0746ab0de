// Package doctor checks a plugkit configuration against the plugins it
// discovers.
package doctor

import (
	"encoding/json"
	"fmt"
	"maps"
	"net"
	"path/filepath"
	"slices"
	"strings"

	"github.com/mattjoyce/plugkit/internal/config"
	"github.com/mattjoyce/plugkit/internal/plugin"
	"github.com/mattjoyce/plugkit/internal/protocol"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor validates configuration against discovered plugins.
type Doctor struct {
	cfg      *config.Config
	registry *plugin.Registry
}

// New creates a Doctor from a loaded config and plugin registry.
func New(cfg *config.Config, registry *plugin.Registry) *Doctor {
	return &Doctor{cfg: cfg, registry: registry}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	d.validateConfig(r)
	d.validatePluginRefs(r)
	d.validateTimeouts(r)
	d.warnNoPlugins(r)
	d.warnPluginSetup(r)
	d.warnOpenAPI(r)
	d.warnNoSession(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

// validateConfig reruns struct validation so configs built in code are held
// to the same rules as loaded ones.
func (d *Doctor) validateConfig(r *Result) {
	if err := config.Validate(d.cfg); err != nil {
		d.addError(r, "config", "", err.Error())
	}
}

// validatePluginRefs checks that plugins configured by ID are discoverable and
// that a configured mode names one of their tasks.
func (d *Doctor) validatePluginRefs(r *Result) {
	for _, id := range slices.Sorted(maps.Keys(d.cfg.Plugins)) {
		pc := d.cfg.Plugins[id]
		p, ok := d.registry.Get(id)
		if !ok {
			d.addError(r, "plugin_refs", "plugins."+id,
				fmt.Sprintf("plugin %q in config but not found in plugins_dir", id))
			continue
		}
		mode, ok := pc.Args[protocol.ModeKey]
		if !ok {
			continue
		}
		name := fmt.Sprint(mode)
		if _, found := p.Task(name); !found {
			d.addWarning(r, "plugin_refs", fmt.Sprintf("plugins.%s.args.mode", id),
				fmt.Sprintf("mode %q is not a task of %q (tasks: %s); the plugin will do nothing",
					name, id, strings.Join(p.TaskNames(), ", ")))
		}
	}
	for i, id := range d.cfg.Disabled {
		if _, ok := d.registry.Get(id); !ok {
			d.addWarning(r, "plugin_refs", fmt.Sprintf("disabled[%d]", i),
				fmt.Sprintf("disabled plugin %q not found in plugins_dir", id))
		}
	}
}

// validateTimeouts flags grace periods that swallow the run limit.
func (d *Doctor) validateTimeouts(r *Result) {
	if d.cfg.Timeouts.Grace >= d.cfg.Timeouts.Run {
		d.addWarning(r, "timeouts", "timeouts.grace",
			fmt.Sprintf("grace %v is not shorter than the run timeout %v", d.cfg.Timeouts.Grace, d.cfg.Timeouts.Run))
	}
	for _, id := range slices.Sorted(maps.Keys(d.cfg.Plugins)) {
		if t := d.cfg.Plugins[id].Timeout; t > 0 && t <= d.cfg.Timeouts.Grace {
			d.addWarning(r, "timeouts", fmt.Sprintf("plugins.%s.timeout", id),
				fmt.Sprintf("timeout %v is not longer than the grace period %v", t, d.cfg.Timeouts.Grace))
		}
	}
}

func (d *Doctor) warnNoPlugins(r *Result) {
	if len(d.registry.All()) == 0 {
		d.addWarning(r, "plugins", "plugins_dir",
			fmt.Sprintf("no plugins discovered in %s", d.cfg.PluginsDir))
	}
}

// warnPluginSetup flags manifests that work but probably not as intended.
func (d *Doctor) warnPluginSetup(r *Result) {
	for _, p := range d.registry.All() {
		if p.ErrLog == protocol.NoLevel {
			d.addWarning(r, "plugins", p.ID+".errLog",
				"stderr lines that are not log records will be discarded")
		}
		if len(p.Exec) > 0 && !filepath.IsAbs(p.Exec[0]) {
			d.addWarning(r, "plugins", p.ID+".exec",
				fmt.Sprintf("%q is resolved through PATH, which wins over a plugin-local file of the same name", p.Exec[0]))
		}
	}
}

func (d *Doctor) warnOpenAPI(r *Result) {
	if d.cfg.API.Token != "" {
		return
	}
	host, _, err := net.SplitHostPort(d.cfg.API.Listen)
	if err != nil {
		return
	}
	if ip := net.ParseIP(host); host == "localhost" || (ip != nil && ip.IsLoopback()) {
		return
	}
	d.addWarning(r, "api", "api.token",
		fmt.Sprintf("API listens on %s without a token; run history and stderr are readable by anyone who can reach it", d.cfg.API.Listen))
}

func (d *Doctor) warnNoSession(r *Result) {
	if d.cfg.Server.SessionCookie == "" {
		d.addWarning(r, "server", "server.session_cookie",
			"no session cookie configured; plugins reach the backend unauthenticated")
	}
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	switch {
	case r.Valid && len(r.Warnings) == 0:
		b.WriteString("Configuration valid.\n")
		return b.String()
	case r.Valid:
		fmt.Fprintf(&b, "Configuration valid (%d warning(s))\n", len(r.Warnings))
	default:
		fmt.Fprintf(&b, "Configuration invalid (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		writeIssue(&b, "ERROR", e)
	}
	for _, w := range r.Warnings {
		writeIssue(&b, "WARN ", w)
	}
	return b.String()
}

func writeIssue(b *strings.Builder, label string, i Issue) {
	if i.Field != "" {
		fmt.Fprintf(b, "  %s [%s] %s: %s\n", label, i.Category, i.Field, i.Message)
		return
	}
	fmt.Fprintf(b, "  %s [%s] %s\n", label, i.Category, i.Message)
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
