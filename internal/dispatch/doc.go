// Package dispatch selects and runs the single task a plugin process was
// invoked for.
//
// A plugin registers a closed set of tasks keyed by mode when it starts. The
// dispatcher resolves the invocation's mode against that registry and runs
// exactly one task:
//   - "" resolves to the registry's default mode
//   - an unregistered mode runs nothing and succeeds with output "ok"
//   - a task failure is returned to the caller uncaptured; the process exits
//     non-zero without writing a result (ErrorPolicyCrash, the default)
//
// State machine: idle → running → done. A Dispatcher is single-use; a second
// Dispatch call returns ErrAlreadyDispatched.
//
// ErrorPolicyReport captures a task failure into the result's "error" field
// instead. The process still exits non-zero. It is opt-in only.
package dispatch
