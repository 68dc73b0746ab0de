package api

import (
	"github.com/mattjoyce/plugkit/internal/plugin"
)

// buildOpenAPIDoc describes the API routes. Plugins and their tasks are listed
// as tags so clients can discover what runs may reference.
func buildOpenAPIDoc(plugins []*plugin.Plugin) map[string]any {
	tags := make([]any, 0, len(plugins)+2)
	tags = append(tags,
		map[string]any{"name": "runs", "description": "Run history"},
		map[string]any{"name": "plugins", "description": "Discovered plugins"},
	)
	for _, p := range plugins {
		tags = append(tags, map[string]any{
			"name":             "plugin:" + p.ID,
			"description":      p.Description,
			"x-plugkit-tasks":  p.TaskNames(),
			"x-plugkit-errlog": string(p.ErrLog),
		})
	}

	return map[string]any{
		"openapi": "3.1.0",
		"info": map[string]any{
			"title":   "plugkit",
			"version": "1.0",
		},
		"tags":  tags,
		"paths": buildPaths(),
		"components": map[string]any{
			"securitySchemes": map[string]any{
				"BearerAuth": map[string]any{
					"type":   "http",
					"scheme": "bearer",
				},
			},
		},
	}
}

func buildPaths() map[string]any {
	get := func(id, summary, tag string, params ...map[string]any) map[string]any {
		op := map[string]any{
			"operationId": id,
			"summary":     summary,
			"tags":        []string{tag},
			"responses": map[string]any{
				"200": map[string]any{"description": "OK"},
				"401": map[string]any{"description": "Missing or invalid bearer token"},
			},
			"security": []any{map[string]any{"BearerAuth": []string{}}},
		}
		if len(params) > 0 {
			op["parameters"] = params
		}
		return map[string]any{"get": op}
	}
	pathParam := func(name string) map[string]any {
		return map[string]any{"name": name, "in": "path", "required": true, "schema": map[string]any{"type": "string"}}
	}
	queryParam := func(name, typ string) map[string]any {
		return map[string]any{"name": name, "in": "query", "required": false, "schema": map[string]any{"type": typ}}
	}

	return map[string]any{
		"/plugins":            get("listPlugins", "List discovered plugins", "plugins"),
		"/plugins/{pluginID}": get("getPlugin", "Get one plugin", "plugins", pathParam("pluginID")),
		"/runs": get("listRuns", "List runs, newest first", "runs",
			queryParam("plugin", "string"), queryParam("status", "string"), queryParam("limit", "integer")),
		"/runs/{runID}":      get("getRun", "Get a run with its log records", "runs", pathParam("runID")),
		"/runs/{runID}/logs": get("getRunLogs", "Get a run's log records", "runs", pathParam("runID")),
	}
}
