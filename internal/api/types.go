package api

import (
	"github.com/mattjoyce/plugkit/internal/plugin"
	"github.com/mattjoyce/plugkit/internal/runlog"
)

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	PluginsLoaded int    `json:"plugins_loaded"`
}

// TaskResponse describes one task a plugin declares.
type TaskResponse struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	ExecArgs    []string       `json:"exec_args,omitempty"`
	DefaultArgs map[string]any `json:"default_args,omitempty"`
}

// PluginResponse describes a discovered plugin.
type PluginResponse struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Version     string         `json:"version,omitempty"`
	URL         string         `json:"url,omitempty"`
	Interface   string         `json:"interface"`
	Enabled     bool           `json:"enabled"`
	Tasks       []TaskResponse `json:"tasks"`
	Hash        string         `json:"manifest_hash"`
}

// PluginListResponse is returned by GET /plugins.
type PluginListResponse struct {
	Plugins []PluginResponse `json:"plugins"`
}

// RunListResponse is returned by GET /runs.
type RunListResponse struct {
	Runs []runlog.Run `json:"runs"`
}

// RunResponse is returned by GET /runs/{runID}.
type RunResponse struct {
	runlog.Run
	Logs []runlog.LogEntry `json:"logs"`
}

// RunLogsResponse is returned by GET /runs/{runID}/logs.
type RunLogsResponse struct {
	RunID string            `json:"run_id"`
	Logs  []runlog.LogEntry `json:"logs"`
}

func pluginResponse(p *plugin.Plugin) PluginResponse {
	tasks := make([]TaskResponse, 0, len(p.Tasks))
	for _, t := range p.Tasks {
		tasks = append(tasks, TaskResponse{
			Name:        t.Name,
			Description: t.Description,
			ExecArgs:    t.ExecArgs,
			DefaultArgs: t.DefaultArgs,
		})
	}
	return PluginResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Version:     p.Version,
		URL:         p.URL,
		Interface:   string(p.Interface),
		Enabled:     !p.Disabled,
		Tasks:       tasks,
		Hash:        p.Hash,
	}
}
