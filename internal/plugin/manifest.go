package plugin

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/plugkit/internal/protocol"
)

// Interface is how the host talks to a plugin process.
type Interface string

// InterfaceRaw is JSON over stdin/stdout with framed log records on stderr.
const InterfaceRaw Interface = "raw"

// Task declares one mode a plugin can be invoked with.
type Task struct {
	Name        string         `yaml:"name" json:"name" validate:"required"`
	Description string         `yaml:"description,omitempty" json:"description,omitempty"`
	// ExecArgs are appended to the plugin's exec line for this task.
	ExecArgs    []string       `yaml:"execArgs,omitempty" json:"execArgs,omitempty"`
	DefaultArgs map[string]any `yaml:"defaultArgs,omitempty" json:"defaultArgs,omitempty"`
}

// PluginDirPlaceholder in an exec argument is replaced by the plugin
// directory.
const PluginDirPlaceholder = "{pluginDir}"

// Tasks is the task list of a manifest.
//
// Accepted formats:
//   - short form: tasks: [add, remove]
//   - object form: tasks: [{name: add, description: ..., execArgs: [...], defaultArgs: {...}}]
type Tasks []Task

func (t *Tasks) UnmarshalYAML(n *yaml.Node) error {
	if n == nil {
		*t = nil
		return nil
	}
	if n.Kind != yaml.SequenceNode {
		return fmt.Errorf("tasks must be a sequence")
	}

	out := make([]Task, 0, len(n.Content))
	for _, item := range n.Content {
		switch item.Kind {
		case yaml.ScalarNode:
			out = append(out, Task{Name: strings.TrimSpace(item.Value)})
		case yaml.MappingNode:
			var tmp Task
			if err := item.Decode(&tmp); err != nil {
				return fmt.Errorf("invalid task object: %w", err)
			}
			tmp.Name = strings.TrimSpace(tmp.Name)
			out = append(out, tmp)
		default:
			return fmt.Errorf("invalid task entry (must be string or object)")
		}
	}

	*t = out
	return nil
}

// Manifest is the content of a plugin's manifest.yaml.
type Manifest struct {
	Name        string    `yaml:"name" validate:"required"`
	Description string    `yaml:"description,omitempty"`
	Version     string    `yaml:"version,omitempty"`
	URL         string    `yaml:"url,omitempty" validate:"omitempty,url"`
	Exec        []string  `yaml:"exec" validate:"required,min=1,dive,required"`
	Interface   Interface `yaml:"interface,omitempty" validate:"omitempty,oneof=raw"`
	ErrLog      string    `yaml:"errLog,omitempty" validate:"omitempty,oneof=none trace debug info warn warning error"`
	Tasks       Tasks     `yaml:"tasks" validate:"required,min=1,unique=Name,dive"`
}

// Plugin is a discovered and validated plugin.
type Plugin struct {
	ID           string         // Plugin directory name
	Name         string         // Display name from the manifest
	Description  string         // Human-readable description
	Version      string         // Plugin version
	URL          string         // Project URL
	Path         string         // Absolute path to the plugin directory
	ManifestPath string         // Absolute path to manifest.yaml
	Exec         []string       // Command line; Exec[0] falls back to a file in Path when PATH has no such command
	Interface    Interface      // Always InterfaceRaw
	ErrLog       protocol.Level // Level for stderr lines that are not framed records
	Tasks        Tasks
	Hash         string // BLAKE3 of the manifest file
	Disabled     bool   // Listed in the host's disabled plugins; never run
}

// Command returns the argv that runs task: the exec line, then the task's
// execArgs, with {pluginDir} in every argument after the program replaced
// by the plugin directory. Exec is never modified.
func (p *Plugin) Command(task *Task) []string {
	argv := append([]string{}, p.Exec...)
	if task != nil {
		argv = append(argv, task.ExecArgs...)
	}
	for i := 1; i < len(argv); i++ {
		argv[i] = strings.ReplaceAll(argv[i], PluginDirPlaceholder, p.Path)
	}
	return argv
}

// Task returns the named task. An empty name selects the first declared
// task.
func (p *Plugin) Task(name string) (*Task, bool) {
	if name == "" && len(p.Tasks) > 0 {
		return &p.Tasks[0], true
	}
	for i := range p.Tasks {
		if p.Tasks[i].Name == name {
			return &p.Tasks[i], true
		}
	}
	return nil, false
}

// TaskNames returns task names in manifest order.
func (p *Plugin) TaskNames() []string {
	out := make([]string, 0, len(p.Tasks))
	for _, t := range p.Tasks {
		out = append(out, t.Name)
	}
	return out
}
