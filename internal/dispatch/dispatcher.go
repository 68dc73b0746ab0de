package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mattjoyce/plugkit/internal/protocol"
)

// okOutput is the result of a task that reports nothing else.
const okOutput = "ok"

// ErrAlreadyDispatched is returned when a Dispatcher is used twice.
var ErrAlreadyDispatched = errors.New("dispatcher already ran")

// ErrorPolicy decides what happens to a task failure.
type ErrorPolicy int

const (
	// ErrorPolicyCrash returns the failure with no result to write.
	ErrorPolicyCrash ErrorPolicy = iota
	// ErrorPolicyReport returns the failure together with an error result.
	ErrorPolicyReport
)

// State is the dispatcher's lifecycle position.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// TaskError wraps a failure raised by a task.
type TaskError struct {
	Mode Mode
	Err  error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %q failed: %v", e.Mode, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// Dispatcher runs one task for one invocation.
type Dispatcher struct {
	registry *Registry
	policy   ErrorPolicy

	mu    sync.Mutex
	state State
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithErrorPolicy sets how task failures are surfaced.
func WithErrorPolicy(p ErrorPolicy) Option {
	return func(d *Dispatcher) {
		d.policy = p
	}
}

// New creates a Dispatcher over reg.
func New(reg *Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{registry: reg}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// State returns the current lifecycle state.
func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Dispatch resolves env.Input's mode and runs the matching task.
//
// The returned output, when non-nil, is the one result to write. A non-nil
// error means the process must exit non-zero; under ErrorPolicyCrash the
// output is nil in that case.
func (d *Dispatcher) Dispatch(ctx context.Context, env *Env) (*protocol.PluginOutput, error) {
	d.mu.Lock()
	if d.state != StateIdle {
		d.mu.Unlock()
		return nil, ErrAlreadyDispatched
	}
	d.state = StateRunning
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.state = StateDone
		d.mu.Unlock()
	}()

	mode, task, ok := d.registry.Resolve(env.Input.Mode())
	if !ok {
		// Unregistered modes are accepted as no-ops.
		return protocol.OK(okOutput), nil
	}

	out, err := task.Run(ctx, env)
	if err != nil {
		terr := &TaskError{Mode: mode, Err: err}
		if d.policy == ErrorPolicyReport {
			return protocol.Failed(terr.Error()), terr
		}
		return nil, terr
	}
	if out == nil {
		out = protocol.OK(okOutput)
	}
	return out, nil
}
