package dispatch

import (
	"context"
	"fmt"

	"github.com/mattjoyce/plugkit/internal/pluginlog"
	"github.com/mattjoyce/plugkit/internal/protocol"
)

// Mode identifies a task.
type Mode string

// Env is what a running task gets to work with.
type Env struct {
	Input *protocol.PluginInput
	Log   *pluginlog.Logger
}

// Task is one plugin behavior. A nil output with a nil error means "ok".
type Task interface {
	Run(ctx context.Context, env *Env) (*protocol.PluginOutput, error)
}

// TaskFunc adapts a function to Task.
type TaskFunc func(ctx context.Context, env *Env) (*protocol.PluginOutput, error)

// Run implements Task.
func (f TaskFunc) Run(ctx context.Context, env *Env) (*protocol.PluginOutput, error) {
	return f(ctx, env)
}

// Entry binds a mode to its task.
type Entry struct {
	Mode Mode
	Task Task
}

// Registry is the fixed set of tasks a plugin offers. It cannot be changed
// after construction.
type Registry struct {
	def   Mode
	tasks map[Mode]Task
	order []Mode
}

// NewRegistry builds a registry. The default mode must be one of the entries.
func NewRegistry(def Mode, entries ...Entry) (*Registry, error) {
	if def == "" {
		return nil, fmt.Errorf("default mode is required")
	}
	r := &Registry{
		def:   def,
		tasks: make(map[Mode]Task, len(entries)),
		order: make([]Mode, 0, len(entries)),
	}
	for _, e := range entries {
		if e.Mode == "" {
			return nil, fmt.Errorf("task mode must not be empty")
		}
		if e.Task == nil {
			return nil, fmt.Errorf("task for mode %q is nil", e.Mode)
		}
		if _, exists := r.tasks[e.Mode]; exists {
			return nil, fmt.Errorf("mode %q registered twice", e.Mode)
		}
		r.tasks[e.Mode] = e.Task
		r.order = append(r.order, e.Mode)
	}
	if _, ok := r.tasks[def]; !ok {
		return nil, fmt.Errorf("default mode %q has no task", def)
	}
	return r, nil
}

// MustRegistry is NewRegistry for static tables; it panics on error.
func MustRegistry(def Mode, entries ...Entry) *Registry {
	r, err := NewRegistry(def, entries...)
	if err != nil {
		panic(err)
	}
	return r
}

// Default returns the mode "" resolves to.
func (r *Registry) Default() Mode {
	return r.def
}

// Modes returns registered modes in registration order.
func (r *Registry) Modes() []Mode {
	return append([]Mode(nil), r.order...)
}

// Resolve maps a requested mode to its canonical mode and task. ok is false
// for unregistered modes.
func (r *Registry) Resolve(mode string) (Mode, Task, bool) {
	m := Mode(mode)
	if m == "" {
		m = r.def
	}
	t, ok := r.tasks[m]
	return m, t, ok
}
