package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mattjoyce/plugkit/internal/config"
	"github.com/mattjoyce/plugkit/internal/log"
	"github.com/mattjoyce/plugkit/internal/plugin"
)

func printPluginNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: plugkit plugin <list|show> [flags]")
	fmt.Fprintln(w, "Use 'plugkit plugin <action> --help' for action-specific usage.")
}

func printPluginListHelp() {
	fmt.Println("Usage: plugkit plugin list [--config PATH] [--enabled] [--json]")
	fmt.Println("Lists plugins discovered under plugins_dir. Plugins named in the")
	fmt.Println("disabled config list are marked; --enabled hides them.")
}

func printPluginShowHelp() {
	fmt.Println("Usage: plugkit plugin show <id> [--config PATH] [--json]")
	fmt.Println("Shows one plugin's manifest, tasks and configured args.")
}

func runPluginNoun(args []string) int {
	if len(args) < 1 {
		printPluginNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printPluginNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "list":
		if hasHelpFlag(actionArgs) {
			printPluginListHelp()
			return 0
		}
		return runPluginList(actionArgs)
	case "show":
		if hasHelpFlag(actionArgs) {
			printPluginShowHelp()
			return 0
		}
		return runPluginShow(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown plugin action: %s\n", action)
		return 1
	}
}

type pluginView struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Version     string         `json:"version,omitempty"`
	URL         string         `json:"url,omitempty"`
	Path        string         `json:"path"`
	Enabled     bool           `json:"enabled"`
	Exec        []string       `json:"exec"`
	ErrLog      string         `json:"err_log"`
	Hash        string         `json:"manifest_hash"`
	Tasks       []plugin.Task  `json:"tasks"`
	Args        map[string]any `json:"configured_args,omitempty"`
}

func viewPlugin(p *plugin.Plugin, cfg *config.Config) pluginView {
	v := pluginView{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Version:     p.Version,
		URL:         p.URL,
		Path:        p.Path,
		Enabled:     !p.Disabled,
		Exec:        p.Exec,
		ErrLog:      string(p.ErrLog),
		Hash:        p.Hash,
		Tasks:       p.Tasks,
	}
	if pc, ok := cfg.Plugins[p.ID]; ok {
		v.Args = pc.Args
	}
	return v
}

// loadRegistry loads config and discovers plugins for read-only commands.
func loadRegistry(configPath string) (*config.Config, *plugin.Registry, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	setupLogging(cfg, os.Stderr)
	registry, err := discoverPlugins(cfg, log.WithComponent("cli"))
	if err != nil {
		return nil, nil, fmt.Errorf("discover plugins: %w", err)
	}
	return cfg, registry, nil
}

func runPluginList(args []string) int {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	enabledOnly := fs.Bool("enabled", false, "Hide disabled plugins")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, registry, err := loadRegistry(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	plugins := registry.All()
	if *enabledOnly {
		plugins = registry.Enabled()
	}
	if *jsonOut {
		views := make([]pluginView, 0, len(plugins))
		for _, p := range plugins {
			views = append(views, viewPlugin(p, cfg))
		}
		return printJSON(views)
	}

	if len(plugins) == 0 {
		fmt.Printf("No plugins found in %s\n", cfg.PluginsDir)
		return 0
	}
	for _, p := range plugins {
		version := p.Version
		if version == "" {
			version = "-"
		}
		state := "enabled"
		if p.Disabled {
			state = "disabled"
		}
		fmt.Printf("%-20s %-10s %-9s %s\n", p.ID, version, state, strings.Join(p.TaskNames(), ", "))
	}
	return 0
}

func runPluginShow(args []string) int {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	positional, err := parseInterspersed(fs, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if len(positional) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: plugkit plugin show <id> [--config PATH] [--json]")
		return 1
	}

	cfg, registry, err := loadRegistry(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	p, ok := registry.Get(positional[0])
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown plugin: %s\n", positional[0])
		return 1
	}

	v := viewPlugin(p, cfg)
	if *jsonOut {
		return printJSON(v)
	}

	fmt.Printf("%s (%s)\n", v.Name, v.ID)
	if v.Description != "" {
		fmt.Printf("  %s\n", v.Description)
	}
	if v.Version != "" {
		fmt.Printf("version: %s\n", v.Version)
	}
	fmt.Printf("path:    %s\n", v.Path)
	if !v.Enabled {
		fmt.Println("status:  disabled")
	}
	fmt.Printf("exec:    %s\n", strings.Join(v.Exec, " "))
	fmt.Printf("errLog:  %s\n", v.ErrLog)
	fmt.Printf("hash:    %s\n", v.Hash)
	fmt.Println("tasks:")
	for _, t := range v.Tasks {
		line := "  " + t.Name
		if len(t.ExecArgs) > 0 {
			line += " [" + strings.Join(t.ExecArgs, " ") + "]"
		}
		if t.Description != "" {
			line += " - " + t.Description
		}
		fmt.Println(line)
	}
	if len(v.Args) > 0 {
		fmt.Println("configured args:")
		for k, val := range v.Args {
			fmt.Printf("  %s: %v\n", k, val)
		}
	}
	return 0
}
